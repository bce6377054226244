package verifier

import (
	"strings"
	"testing"

	"github.com/jmnavarro/sabio/internal/router"
	"github.com/jmnavarro/sabio/internal/timeref"
)

func TestVerifyEmptyResponse(t *testing.T) {
	result := Verify("   ", router.Decision{}, nil, nil)
	if result.Passed {
		t.Fatal("Passed = true, want false")
	}
	if len(result.Issues) != 1 || result.Issues[0] != "empty_response" {
		t.Fatalf("Issues = %v, want [empty_response]", result.Issues)
	}
	if result.Response == "" {
		t.Fatal("rewritten response is empty")
	}
}

func TestVerifyAppendsReferenceDate(t *testing.T) {
	route := router.Decision{
		Intent:   router.IntentWebSearch,
		Entities: map[string]any{"temporal_reference": true},
	}
	payload := &timeref.Payload{Date: "2026-08-26"}

	result := Verify("Hoy hace sol en Pamplona.", route, []WebResult{{URL: "https://aemet.es/pamplona"}}, payload)
	if result.Passed {
		t.Fatal("Passed = true, want false")
	}
	if !strings.Contains(result.Response, "Fecha de referencia usada: 2026-08-26.") {
		t.Fatalf("response missing reference date: %q", result.Response)
	}
}

func TestVerifyKeepsAbsoluteDates(t *testing.T) {
	route := router.Decision{Entities: map[string]any{"temporal_reference": true}}
	payload := &timeref.Payload{Date: "2026-08-26"}

	result := Verify("Hoy, 2026-08-26, hace sol.", route, nil, payload)
	for _, issue := range result.Issues {
		if issue == "missing_absolute_date" {
			t.Fatal("missing_absolute_date flagged despite absolute date present")
		}
	}
}

func TestVerifyStripsUnbackedSourceClaims(t *testing.T) {
	text := "El resultado fue 2-1.\nFuentes: un sitio que no consulte."
	result := Verify(text, router.Decision{}, nil, nil)

	if result.Passed {
		t.Fatal("Passed = true, want false")
	}
	if strings.Contains(strings.ToLower(result.Response), "fuente") {
		t.Fatalf("source line survived: %q", result.Response)
	}
	if !strings.Contains(result.Response, "El resultado fue 2-1.") {
		t.Fatalf("substance lost: %q", result.Response)
	}
}

func TestVerifyAppendsSourcesBlock(t *testing.T) {
	results := []WebResult{
		{URL: "https://www.example.com/a"},
		{URL: "https://WWW.example.com/a"},
		{URL: "https://example.com/a"},
		{URL: "https://otro.example.org/b"},
		{URL: "https://tercero.example.net/c"},
	}

	result := Verify("La noticia es esta.", router.Decision{}, results, nil)
	if !strings.Contains(result.Response, "Fuentes:") {
		t.Fatalf("missing sources block: %q", result.Response)
	}
	if n := strings.Count(result.Response, "\n- "); n != 2 {
		t.Fatalf("source lines = %d, want 2", n)
	}
}

func TestVerifyUnhelpfulSearchFailure(t *testing.T) {
	route := router.Decision{Intent: router.IntentWebSearch}

	result := Verify("No tengo datos sobre eso.", route, nil, nil)
	if result.Passed {
		t.Fatal("Passed = true, want false")
	}
	if !strings.Contains(result.Response, "refinar la busqueda") {
		t.Fatalf("missing refinement suggestion: %q", result.Response)
	}
}

func TestVerifyCleanResponsePasses(t *testing.T) {
	result := Verify("La capital de Navarra es Pamplona.", router.Decision{Intent: router.IntentGeneralChat}, nil, nil)
	if !result.Passed {
		t.Fatalf("Passed = false, issues = %v", result.Issues)
	}
	if result.Response != "La capital de Navarra es Pamplona." {
		t.Fatalf("response rewritten unexpectedly: %q", result.Response)
	}
}

func TestSourceDomains(t *testing.T) {
	results := []WebResult{
		{URL: "https://www.marca.com/futbol"},
		{URL: "https://marca.com/baloncesto"},
		{URL: "https://elpais.com/deportes"},
		{URL: "https://aemet.es"},
	}
	domains := SourceDomains(results)
	if len(domains) != 2 || domains[0] != "marca.com" || domains[1] != "elpais.com" {
		t.Fatalf("SourceDomains = %v, want [marca.com elpais.com]", domains)
	}
}
