package registry

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"github.com/jmnavarro/sabio/internal/scope"
)

const sampleCatalog = `version: 3
updated_at: "2025-11-02T10:00:00Z"
capabilities:
  - id: chat_general
    phase: 1
    provider: llm
    summary: General conversation fallback.
    input_schema:
      type: object
      required: [message]
      properties:
        message: {type: string}
    output_schema:
      type: object
    fallback_to: []
  - id: web_search_general
    phase: 1
    provider: search
    summary: General web search.
    input_schema:
      type: object
      required: [query]
      properties:
        query: {type: string}
    output_schema:
      type: object
    fallback_to: [web_search_news, chat_general, ghost_tool, chat_general]
  - id: web_search_news
    phase: 2
    provider: search
    summary: News-oriented web search.
    input_schema:
      type: object
    output_schema:
      type: object
    fallback_to: [web_search_general]
  - id: get_current_datetime
    phase: 1
    provider: clock
    summary: Current date and time.
    input_schema:
      type: object
    output_schema:
      type: object
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestRegistry(t *testing.T, catalog string, ps *scope.ProductScope) *Registry {
	t.Helper()
	return New(slog.Default(), writeFile(t, "CAPABILITIES.yaml", catalog), ps)
}

func TestReload_ParsesCatalog(t *testing.T) {
	r := newTestRegistry(t, sampleCatalog, nil)

	if r.Version() != 3 {
		t.Errorf("Version() = %d, want 3", r.Version())
	}
	if r.UpdatedAt() != "2025-11-02T10:00:00Z" {
		t.Errorf("UpdatedAt() = %q", r.UpdatedAt())
	}

	c, ok := r.Get("web_search_general")
	if !ok {
		t.Fatal("Get(web_search_general) not found")
	}
	if c.Provider != "search" || c.Phase != 1 {
		t.Errorf("unexpected capability: %+v", c)
	}
	if len(c.InputSchema.Required) != 1 || c.InputSchema.Required[0] != "query" {
		t.Errorf("input schema required = %v", c.InputSchema.Required)
	}
}

func TestReload_MissingFileYieldsEmptyCatalog(t *testing.T) {
	r := New(slog.Default(), "/nonexistent/CAPABILITIES.yaml", nil)

	if got := r.AllIDs(); len(got) != 0 {
		t.Errorf("AllIDs() = %v, want empty", got)
	}
	if _, ok := r.Get("chat_general"); ok {
		t.Error("Get must not find anything in an empty catalog")
	}
}

func TestReload_StructuralFailureYieldsEmptyCatalog(t *testing.T) {
	tests := []struct {
		name    string
		catalog string
	}{
		{name: "not yaml", catalog: "{{{{ nope"},
		{name: "missing version", catalog: "capabilities: []\n"},
		{name: "capability without id", catalog: "version: 1\ncapabilities:\n  - phase: 1\n    provider: x\n    summary: y\n"},
		{name: "phase below one", catalog: "version: 1\ncapabilities:\n  - id: a\n    phase: 0\n    provider: x\n    summary: y\n"},
		{name: "missing provider", catalog: "version: 1\ncapabilities:\n  - id: a\n    phase: 1\n    summary: y\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(t, tt.catalog, nil)
			if got := r.AllIDs(); len(got) != 0 {
				t.Errorf("AllIDs() = %v, want empty catalog", got)
			}
		})
	}
}

func TestReload_FailureClearsPreviousSnapshot(t *testing.T) {
	path := writeFile(t, "CAPABILITIES.yaml", sampleCatalog)
	r := New(slog.Default(), path, nil)

	if _, ok := r.Get("chat_general"); !ok {
		t.Fatal("initial load failed")
	}

	os.WriteFile(path, []byte("{{{{ broken"), 0600)
	r.Reload()

	// Fails closed: the previous snapshot is not retained.
	if got := r.AllIDs(); len(got) != 0 {
		t.Errorf("after broken reload AllIDs() = %v, want empty", got)
	}
	if r.Version() != 0 {
		t.Errorf("after broken reload Version() = %d, want 0", r.Version())
	}
}

func TestReload_DuplicateIDFirstWins(t *testing.T) {
	catalog := `version: 1
capabilities:
  - id: chat_general
    phase: 1
    provider: first
    summary: first occurrence
    input_schema: {type: object}
    output_schema: {type: object}
  - id: chat_general
    phase: 2
    provider: second
    summary: later duplicate
    input_schema: {type: object}
    output_schema: {type: object}
`
	r := newTestRegistry(t, catalog, nil)

	c, ok := r.Get("chat_general")
	if !ok {
		t.Fatal("Get(chat_general) not found")
	}
	if c.Provider != "first" {
		t.Errorf("duplicate resolution kept %q, want first occurrence", c.Provider)
	}
	if got := len(r.AllIDs()); got != 1 {
		t.Errorf("AllIDs() has %d entries, want 1", got)
	}
}

func TestGet_ScopeDenialLooksLikeAbsence(t *testing.T) {
	ps := scope.New(slog.Default(), writeFile(t, "SCOPE.md", "`chat_general` only\n"))
	r := newTestRegistry(t, sampleCatalog, ps)

	if _, ok := r.Get("chat_general"); !ok {
		t.Error("in-scope capability should resolve")
	}
	if _, ok := r.Get("web_search_general"); ok {
		t.Error("out-of-scope capability must look absent")
	}
	if _, ok := r.Get("no_such_tool"); ok {
		t.Error("unknown capability must look absent")
	}
}

func TestAllIDs_ScopeFiltered(t *testing.T) {
	ps := scope.New(slog.Default(), writeFile(t, "SCOPE.md",
		"`chat_general` `get_current_datetime` `tool_not_in_registry`\n"))
	r := newTestRegistry(t, sampleCatalog, ps)

	got := r.AllIDs()
	sort.Strings(got)
	want := []string{"chat_general", "get_current_datetime"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AllIDs() = %v, want %v", got, want)
	}
}

func TestResolveChain(t *testing.T) {
	r := newTestRegistry(t, sampleCatalog, nil)

	tests := []struct {
		name    string
		primary string
		want    []string
	}{
		{
			name:    "dedup and skip unresolvable",
			primary: "web_search_general",
			// ghost_tool is skipped silently, chat_general deduped.
			want: []string{"web_search_general", "web_search_news", "chat_general"},
		},
		{
			name:    "no fallbacks",
			primary: "chat_general",
			want:    []string{"chat_general"},
		},
		{
			name:    "unknown primary",
			primary: "ghost_tool",
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.ResolveChain(tt.primary)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ResolveChain(%q) = %v, want %v", tt.primary, got, tt.want)
			}
		})
	}
}

func TestResolveChain_ScopeFiltered(t *testing.T) {
	ps := scope.New(slog.Default(), writeFile(t, "SCOPE.md",
		"`web_search_general` `chat_general`\n"))
	r := newTestRegistry(t, sampleCatalog, ps)

	got := r.ResolveChain("web_search_general")
	// web_search_news exists in the catalog but is out of scope.
	want := []string{"web_search_general", "chat_general"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ResolveChain = %v, want %v", got, want)
	}

	// Every id in a resolved chain must itself resolve under scope.
	for _, id := range got {
		if _, ok := r.Get(id); !ok {
			t.Errorf("chain id %q does not resolve via Get", id)
		}
	}
}

func TestEnsureScopeConsistency(t *testing.T) {
	ps := scope.New(slog.Default(), writeFile(t, "SCOPE.md",
		"`chat_general` `tool_not_in_registry`\n"))
	r := newTestRegistry(t, sampleCatalog, ps)

	diff := r.EnsureScopeConsistency()

	if !reflect.DeepEqual(diff.InScopeNotInRegistry, []string{"tool_not_in_registry"}) {
		t.Errorf("InScopeNotInRegistry = %v", diff.InScopeNotInRegistry)
	}

	got := append([]string(nil), diff.InRegistryNotInScope...)
	sort.Strings(got)
	want := []string{"get_current_datetime", "web_search_general", "web_search_news"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("InRegistryNotInScope = %v, want %v", got, want)
	}
}

func TestEnsureScopeConsistency_NoScope(t *testing.T) {
	r := newTestRegistry(t, sampleCatalog, nil)

	diff := r.EnsureScopeConsistency()
	if len(diff.InScopeNotInRegistry) != 0 || len(diff.InRegistryNotInScope) != 0 {
		t.Errorf("diff without scope = %+v, want empty", diff)
	}
}
