package router

import (
	"regexp"
	"strings"
)

// queryTrimCutset removes surrounding punctuation from extracted
// queries, including inverted Spanish marks.
const queryTrimCutset = " \t\n\r?¡!.,;:¿"

// searchPatterns detect messages that ask for a web lookup. Each
// pattern captures the query in its first group. Evaluated in order;
// the first match wins.
var searchPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:puedes\s+|podrias\s+|podrías\s+|me\s+)?` +
		`(?:buscar|busca|buscame|búscame|investiga|consulta|averigua)` +
		`(?:\s+en\s+(?:la\s+)?(?:web|internet|google))?` +
		`(?:\s+sobre)?\s+(.+)`),
	regexp.MustCompile(`(?:que\s*noticias|noticias\s*(?:sobre|de)|ultimas\s*noticias)\s+(.+)`),
	regexp.MustCompile(`(?:que\s*(?:es|son|significa)|quien\s*es|donde\s*(?:queda|esta))\s+(.+)`),
	regexp.MustCompile(`(?:cuanto\s*(?:cuesta|vale))\s+(.+)`),
	regexp.MustCompile(`(?:precio|cotizaci[oó]n|valor)(?:\s+actual)?(?:\s+(?:de|del))?\s+(.+)`),
	regexp.MustCompile(`(.+?)\s+(?:precio|cotizaci[oó]n|valor)(?:\s+actual)?\b`),
}

// invalidQueries are captures too generic to search for on their own.
var invalidQueries = map[string]struct{}{
	"actual": {}, "hoy": {}, "ahora": {}, "de": {}, "del": {},
}

// extractSearchIntent returns the search query a message asks for, or
// "" when the message is not a search request.
func extractSearchIntent(text string) string {
	lower := strings.Trim(strings.ToLower(text), queryTrimCutset)

	for _, pattern := range searchPatterns {
		m := pattern.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		query := strings.Trim(m[1], queryTrimCutset)
		if query == "" {
			continue
		}
		if _, bad := invalidQueries[query]; bad {
			continue
		}
		return query
	}
	return ""
}

var (
	politePrefixRe = regexp.MustCompile(`(?i)^(puedes|podrias|podr[ií]as|me\s+puedes|me\s+podr[ií]as)\s+`)
	searchVerbRe   = regexp.MustCompile(`(?i)^(buscar|busca|investiga|consulta|averigua|googlea)\s+`)
)

// normalizeQuery strips polite prefixes and leading search verbs from a
// message so it can be used as a literal query.
func normalizeQuery(message string) string {
	cleaned := strings.Trim(message, queryTrimCutset)
	cleaned = politePrefixRe.ReplaceAllString(cleaned, "")
	cleaned = searchVerbRe.ReplaceAllString(cleaned, "")
	return strings.Trim(cleaned, queryTrimCutset)
}
