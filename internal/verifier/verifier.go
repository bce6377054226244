// Package verifier applies lightweight quality checks to a drafted
// response before it reaches the user: temporal coherence, source
// safety, and failure-message helpfulness. Checks only rewrite text;
// they never call the model.
package verifier

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/jmnavarro/sabio/internal/router"
	"github.com/jmnavarro/sabio/internal/timeref"
)

var (
	relativeTemporalRe = regexp.MustCompile(`(?i)\b(hoy|manana|mañana|pasado\s+manana|actualmente|ahora)\b`)
	absoluteDateRe     = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	sourceLineRe       = regexp.MustCompile(`(?i)\bfuentes?\b|\bfuente:\b`)
	genericFailureRe   = regexp.MustCompile(`(?i)\b(no\s+se|no\s+tengo\s+datos|no\s+puedo\s+ayudar)\b`)
)

// WebResult is one search result backing a response.
type WebResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// VerificationResult reports the issues found and carries the possibly
// rewritten response.
type VerificationResult struct {
	Passed   bool     `json:"passed"`
	Issues   []string `json:"issues"`
	Response string   `json:"response"`
}

const maxSources = 2

// SourceDomains extracts up to two deduplicated hostnames from the
// results, dropping a leading "www." prefix. Useful for compact source
// attributions where full URLs are too noisy.
func SourceDomains(results []WebResult) []string {
	domains := make([]string, 0, maxSources)
	seen := make(map[string]struct{})

	for _, result := range results {
		raw := strings.TrimSpace(result.URL)
		if raw == "" {
			continue
		}
		parsed, err := url.Parse(raw)
		if err != nil {
			continue
		}
		host := strings.ToLower(parsed.Host)
		host = strings.TrimPrefix(host, "www.")
		if host == "" {
			continue
		}
		if _, dup := seen[host]; dup {
			continue
		}
		seen[host] = struct{}{}
		domains = append(domains, host)
		if len(domains) >= maxSources {
			break
		}
	}
	return domains
}

// urlsFromResults extracts up to maxSources deduplicated URLs in order.
func urlsFromResults(results []WebResult) []string {
	urls := make([]string, 0, maxSources)
	seen := make(map[string]struct{})

	for _, result := range results {
		raw := strings.TrimSpace(result.URL)
		if raw == "" {
			continue
		}
		key := strings.ToLower(raw)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		urls = append(urls, raw)
		if len(urls) >= maxSources {
			break
		}
	}
	return urls
}

// Verify checks a drafted response against the route that produced it.
// An empty draft is replaced wholesale; other issues append or strip
// lines but keep the draft's substance.
func Verify(responseText string, route router.Decision, webResults []WebResult, datetimePayload *timeref.Payload) VerificationResult {
	text := strings.TrimSpace(responseText)
	var issues []string

	if text == "" {
		return VerificationResult{
			Passed:   false,
			Issues:   []string{"empty_response"},
			Response: "No pude completar la respuesta. Podrias reformular la pregunta con mas detalle?",
		}
	}

	if route.TemporalReference() && relativeTemporalRe.MatchString(text) && !absoluteDateRe.MatchString(text) {
		if datetimePayload != nil && datetimePayload.Date != "" {
			issues = append(issues, "missing_absolute_date")
			text = fmt.Sprintf("%s\n\nFecha de referencia usada: %s.", text, datetimePayload.Date)
		}
	}

	// A response must not claim sources it does not have.
	if len(webResults) == 0 && sourceLineRe.MatchString(text) {
		issues = append(issues, "source_claim_without_results")
		kept := make([]string, 0)
		for _, line := range strings.Split(text, "\n") {
			if sourceLineRe.MatchString(line) {
				continue
			}
			kept = append(kept, line)
		}
		text = strings.TrimSpace(strings.Join(kept, "\n"))
	}

	if len(webResults) > 0 && !sourceLineRe.MatchString(text) {
		if urls := urlsFromResults(webResults); len(urls) > 0 {
			issues = append(issues, "sources_appended")
			var block strings.Builder
			block.WriteString("Fuentes:")
			for _, u := range urls {
				block.WriteString("\n- ")
				block.WriteString(u)
			}
			text = text + "\n\n" + block.String()
		}
	}

	if route.Intent == router.IntentWebSearch && len(webResults) == 0 && genericFailureRe.MatchString(text) {
		issues = append(issues, "unhelpful_failure_message")
		clarification := "No encontre resultados verificables. Dime termino exacto, pais o fecha para refinar la busqueda."
		if !strings.Contains(strings.ToLower(text), strings.ToLower(clarification)) {
			text = text + "\n\n" + clarification
		}
	}

	return VerificationResult{
		Passed:   len(issues) == 0,
		Issues:   issues,
		Response: text,
	}
}
