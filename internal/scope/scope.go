// Package scope loads the product capability allow-list.
//
// The scope document is markdown in which every permitted capability id
// appears as an inline code span (for example `web_search_general`).
// Any code span that looks like a capability id is allowed; there is no
// cross-validation against the registry at load time. A missing document
// yields an empty scope, which denies everything.
package scope

import (
	"log/slog"
	"os"
	"regexp"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// capability ids are lowercase snake_case tokens.
var capabilityIDRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// ProductScope answers membership queries against the allow-list
// extracted from a scope document. Reload replaces the whole set;
// readers between reloads may transiently observe an empty scope,
// which degrades to deny-all rather than failing.
type ProductScope struct {
	logger *slog.Logger
	path   string

	mu           sync.RWMutex
	capabilities map[string]struct{}
}

// New creates a ProductScope for the given document path and performs
// the initial load.
func New(logger *slog.Logger, path string) *ProductScope {
	s := &ProductScope{
		logger:       logger,
		path:         path,
		capabilities: map[string]struct{}{},
	}
	s.Reload()
	return s
}

// Reload re-reads the scope document. A missing or unreadable document
// empties the scope; it never returns an error to the caller.
func (s *ProductScope) Reload() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Warn("scope document not readable, scope is empty",
			"path", s.path, "error", err)
		s.replace(map[string]struct{}{})
		return
	}

	found := extractCapabilityTokens(data)
	s.replace(found)
	s.logger.Info("product scope loaded",
		"path", s.path, "capabilities", len(found))
}

// extractCapabilityTokens walks the markdown AST and collects every
// inline code span whose text is a well-formed capability id.
func extractCapabilityTokens(doc []byte) map[string]struct{} {
	found := map[string]struct{}{}

	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(doc))

	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		cs, ok := n.(*ast.CodeSpan)
		if !ok {
			return ast.WalkContinue, nil
		}
		token := string(cs.Text(doc))
		if capabilityIDRe.MatchString(token) {
			found[token] = struct{}{}
		}
		return ast.WalkContinue, nil
	})

	return found
}

func (s *ProductScope) replace(caps map[string]struct{}) {
	s.mu.Lock()
	s.capabilities = caps
	s.mu.Unlock()
}

// IsAllowed reports whether a capability id is in the allow-list.
func (s *ProductScope) IsAllowed(capabilityID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.capabilities[capabilityID]
	return ok
}

// FilterAllowed returns ids with duplicates removed (first occurrence
// kept, order preserved) and non-allowed ids dropped.
func (s *ProductScope) FilterAllowed(ids []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := s.capabilities[id]; ok {
			filtered = append(filtered, id)
		}
	}
	return filtered
}

// Capabilities returns a copy of the allow-list, for diagnostics.
func (s *ProductScope) Capabilities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.capabilities))
	for id := range s.capabilities {
		out = append(out, id)
	}
	return out
}

// Len returns how many capabilities are allowed.
func (s *ProductScope) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.capabilities)
}
