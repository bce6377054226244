// Package registry loads the versioned capability catalog.
//
// The catalog is a YAML document listing every capability the assistant
// can invoke, with a minimal schema descriptor per capability and an
// ordered fallback chain. Lookups are filtered through an optionally
// attached product scope: a capability that exists but is out of scope
// is indistinguishable from one that does not exist.
package registry

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/jmnavarro/sabio/internal/scope"
)

// JSONSchema is a minimal JSON-schema-shaped descriptor, kept for
// auditability. It is not enforced at runtime by this layer.
type JSONSchema struct {
	Type       string         `yaml:"type" json:"type"`
	Required   []string       `yaml:"required" json:"required,omitempty"`
	Properties map[string]any `yaml:"properties" json:"properties,omitempty"`
}

// Capability is a single catalog entry.
type Capability struct {
	ID           string     `yaml:"id" json:"id"`
	Phase        int        `yaml:"phase" json:"phase"`
	Provider     string     `yaml:"provider" json:"provider"`
	Summary      string     `yaml:"summary" json:"summary"`
	InputSchema  JSONSchema `yaml:"input_schema" json:"input_schema"`
	OutputSchema JSONSchema `yaml:"output_schema" json:"output_schema"`
	FallbackTo   []string   `yaml:"fallback_to" json:"fallback_to,omitempty"`
}

// catalogFile is the top-level document shape.
type catalogFile struct {
	Version      int          `yaml:"version"`
	UpdatedAt    string       `yaml:"updated_at"`
	Capabilities []Capability `yaml:"capabilities"`
}

// snapshot is an immutable load result. Reload builds a new snapshot and
// swaps it in whole; it is never patched in place.
type snapshot struct {
	version      int
	updatedAt    string
	capabilities map[string]Capability
}

// Registry is the runtime capability catalog with scope filtering and
// fallback chain resolution.
type Registry struct {
	logger *slog.Logger
	path   string
	scope  *scope.ProductScope // optional, nil means unfiltered

	mu   sync.RWMutex
	snap snapshot
}

// New creates a Registry for the given document path and performs the
// initial load. The product scope may be nil.
func New(logger *slog.Logger, path string, ps *scope.ProductScope) *Registry {
	r := &Registry{
		logger: logger,
		path:   path,
		scope:  ps,
		snap:   snapshot{capabilities: map[string]Capability{}},
	}
	r.Reload()
	return r
}

// Reload re-reads the catalog document. Any structural failure (missing
// file, YAML error, invalid entry) results in an empty capability map.
// It is logged but never raised: every read path degrades to "no
// capabilities" instead.
func (r *Registry) Reload() {
	data, err := os.ReadFile(r.path)
	if err != nil {
		r.logger.Warn("capability registry not readable, catalog is empty",
			"path", r.path, "error", err)
		r.replace(snapshot{capabilities: map[string]Capability{}})
		return
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		r.logger.Error("capability registry is not valid YAML, catalog is empty",
			"path", r.path, "error", err)
		r.replace(snapshot{capabilities: map[string]Capability{}})
		return
	}

	if err := validateCatalog(&file); err != nil {
		r.logger.Error("capability registry failed validation, catalog is empty",
			"path", r.path, "error", err)
		r.replace(snapshot{capabilities: map[string]Capability{}})
		return
	}

	capabilities := make(map[string]Capability, len(file.Capabilities))
	for _, c := range file.Capabilities {
		if _, dup := capabilities[c.ID]; dup {
			// First occurrence wins; later duplicates are dropped.
			r.logger.Warn("duplicate capability id ignored", "id", c.ID)
			continue
		}
		capabilities[c.ID] = c
	}

	r.replace(snapshot{
		version:      file.Version,
		updatedAt:    file.UpdatedAt,
		capabilities: capabilities,
	})
	r.logger.Info("capability registry loaded",
		"path", r.path, "version", file.Version, "capabilities", len(capabilities))
}

// validateCatalog checks the structural invariants of a parsed document.
func validateCatalog(file *catalogFile) error {
	if file.Version <= 0 {
		return fmt.Errorf("version must be a positive integer, got %d", file.Version)
	}
	for i, c := range file.Capabilities {
		if c.ID == "" {
			return fmt.Errorf("capability %d has no id", i)
		}
		if c.Phase < 1 {
			return fmt.Errorf("capability %q: phase must be >= 1, got %d", c.ID, c.Phase)
		}
		if c.Provider == "" {
			return fmt.Errorf("capability %q has no provider", c.ID)
		}
		if c.Summary == "" {
			return fmt.Errorf("capability %q has no summary", c.ID)
		}
	}
	return nil
}

func (r *Registry) replace(s snapshot) {
	r.mu.Lock()
	r.snap = s
	r.mu.Unlock()
}

func (r *Registry) snapshot() snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Version returns the version of the current snapshot (0 when empty).
func (r *Registry) Version() int {
	return r.snapshot().version
}

// UpdatedAt returns the timestamp string of the current snapshot.
func (r *Registry) UpdatedAt() string {
	return r.snapshot().updatedAt
}

// Get returns the capability definition for id. The second return is
// false when the id is unknown or when an attached scope denies it;
// callers cannot distinguish the two cases.
func (r *Registry) Get(id string) (Capability, bool) {
	snap := r.snapshot()
	c, ok := snap.capabilities[id]
	if !ok {
		return Capability{}, false
	}
	if r.scope != nil && !r.scope.IsAllowed(id) {
		return Capability{}, false
	}
	return c, true
}

// AllIDs returns every known capability id, scope-filtered when a scope
// is attached. Order is not specified.
func (r *Registry) AllIDs() []string {
	snap := r.snapshot()
	ids := make([]string, 0, len(snap.capabilities))
	for id := range snap.capabilities {
		if r.scope != nil && !r.scope.IsAllowed(id) {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// ResolveChain returns primary followed by its resolvable fallbacks,
// deduplicated by first occurrence. Unresolvable fallbacks are skipped
// silently. When primary itself does not resolve, the chain is empty.
func (r *Registry) ResolveChain(primary string) []string {
	first, ok := r.Get(primary)
	if !ok {
		return []string{}
	}

	chain := []string{primary}
	seen := map[string]struct{}{primary: {}}
	for _, fallbackID := range first.FallbackTo {
		if _, dup := seen[fallbackID]; dup {
			continue
		}
		if _, ok := r.Get(fallbackID); ok {
			chain = append(chain, fallbackID)
			seen[fallbackID] = struct{}{}
		}
	}
	return chain
}

// ScopeDiff is the result of a scope/registry consistency audit.
type ScopeDiff struct {
	// InScopeNotInRegistry are allow-listed ids with no catalog entry.
	InScopeNotInRegistry []string
	// InRegistryNotInScope are catalog ids the scope does not permit.
	InRegistryNotInScope []string
}

// EnsureScopeConsistency computes both set differences between the
// attached scope and the catalog. It is diagnostic only — startup
// audits use it, routing never does. With no scope attached both
// differences are empty.
func (r *Registry) EnsureScopeConsistency() ScopeDiff {
	if r.scope == nil {
		return ScopeDiff{}
	}

	snap := r.snapshot()
	var diff ScopeDiff

	for _, id := range r.scope.Capabilities() {
		if _, ok := snap.capabilities[id]; !ok {
			diff.InScopeNotInRegistry = append(diff.InScopeNotInRegistry, id)
		}
	}
	for id := range snap.capabilities {
		if !r.scope.IsAllowed(id) {
			diff.InRegistryNotInScope = append(diff.InRegistryNotInScope, id)
		}
	}
	return diff
}
