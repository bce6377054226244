package guard

import (
	"regexp"
	"strings"
)

var (
	openFenceRe     = regexp.MustCompile("(?i)^```(?:json)?[ \t]*\n?")
	closeFenceRe    = regexp.MustCompile("\n?[ \t]*```$")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// StripFences removes a leading/trailing markdown code fence.
func StripFences(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = openFenceRe.ReplaceAllString(cleaned, "")
	cleaned = closeFenceRe.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// ExtractObject returns the first balanced JSON object inside text, or
// "" when there is none. Brace depth is tracked with string-literal and
// backslash-escape state, so braces inside quoted strings never affect
// the count.
func ExtractObject(text string) string {
	cleaned := StripFences(text)
	if cleaned == "" {
		return ""
	}

	if strings.HasPrefix(cleaned, "{") && strings.HasSuffix(cleaned, "}") {
		return cleaned
	}

	start := strings.IndexByte(cleaned, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(cleaned); i++ {
		ch := cleaned[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
			// braces inside string literals are data, not structure
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return cleaned[start : i+1]
			}
		}
	}
	return ""
}

// Repair applies cheap local fixes before asking the model to
// regenerate: fence stripping, balanced-object extraction, and removal
// of trailing commas before a closing brace or bracket.
func Repair(raw string) string {
	candidate := ExtractObject(raw)
	if candidate == "" {
		candidate = StripFences(raw)
	}
	candidate = trailingCommaRe.ReplaceAllString(candidate, "$1")
	return strings.TrimSpace(candidate)
}
