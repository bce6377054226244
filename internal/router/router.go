// Package router turns a user message into a sanitized route decision.
//
// Two independent classifiers produce the same Decision type: a cheap
// deterministic keyword pass that always runs, and a model-backed
// semantic pass guarded by strict JSON validation. One explicit
// confidence comparison picks between them, then the winner is
// sanitized against the capability registry and product scope. The
// router never invokes the capabilities it selects.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmnavarro/sabio/internal/guard"
	"github.com/jmnavarro/sabio/internal/llm"
	"github.com/jmnavarro/sabio/internal/registry"
	"github.com/jmnavarro/sabio/internal/scope"
	"github.com/jmnavarro/sabio/internal/timeref"
)

// Config holds router tuning knobs.
type Config struct {
	// MaxRetries bounds the JSON guard repair loop for the semantic pass.
	MaxRetries int
	// HistoryTail is how many recent turns the classifier prompt shows.
	HistoryTail int
	// MaxAuditLog is how many decisions to keep in memory.
	MaxAuditLog int
}

// Router composes the registry, scope, and guarded model client into
// the single routing entry point used by the rest of the application.
// Each Route call is independent; the only shared state is read access
// to the registry/scope snapshots and the audit log.
type Router struct {
	logger   *slog.Logger
	gen      llm.Generator
	registry *registry.Registry
	scope    *scope.ProductScope
	config   Config

	mu       sync.Mutex
	auditLog []AuditRecord
	stats    Stats
}

// AuditRecord captures why a routing decision was made.
type AuditRecord struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`

	MessageLen          int     `json:"message_len"`
	Temporal            bool    `json:"temporal"`
	HeuristicIntent     string  `json:"heuristic_intent"`
	HeuristicConfidence float64 `json:"heuristic_confidence"`
	SemanticConfidence  float64 `json:"semantic_confidence,omitempty"`
	SemanticUsed        bool    `json:"semantic_used"`
	GuardOutputs        int     `json:"guard_outputs,omitempty"`

	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Tools      []string `json:"tools"`
}

// Stats tracks routing statistics.
type Stats struct {
	TotalRequests int64            `json:"total_requests"`
	IntentCounts  map[string]int64 `json:"intent_counts"`
	SemanticWins  int64            `json:"semantic_wins"`
	HeuristicWins int64            `json:"heuristic_wins"`
}

// New creates a Router.
func New(logger *slog.Logger, gen llm.Generator, reg *registry.Registry, ps *scope.ProductScope, config Config) *Router {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 2
	}
	if config.HistoryTail <= 0 {
		config.HistoryTail = 4
	}
	if config.MaxAuditLog <= 0 {
		config.MaxAuditLog = 1000
	}
	return &Router{
		logger:   logger,
		gen:      gen,
		registry: reg,
		scope:    ps,
		config:   config,
		stats: Stats{
			IntentCounts: make(map[string]int64),
		},
	}
}

// Route classifies a message (plus short history) into a sanitized
// Decision. It never returns an error: every failure mode inside the
// layer degrades to the deterministic heuristic or the chat fallback.
func (r *Router) Route(ctx context.Context, message string, history []llm.Message) Decision {
	record := AuditRecord{
		RequestID:  uuid.NewString(),
		Timestamp:  time.Now(),
		MessageLen: len(message),
	}

	heuristic := heuristicRoute(message)
	record.HeuristicIntent = heuristic.Intent
	record.HeuristicConfidence = heuristic.Confidence

	semantic, trace := r.semanticRoute(ctx, message, history)
	record.GuardOutputs = len(trace.Outputs)

	// The probabilistic classifier replaces the heuristic only when it
	// is reasonably confident and not meaningfully worse. This bounds
	// how much unreliable model output can steer routing.
	decision := heuristic
	if semantic != nil && semantic.Confidence >= max(0.35, heuristic.Confidence-0.10) {
		decision = *semantic
		record.SemanticUsed = true
		record.SemanticConfidence = semantic.Confidence
	} else if semantic != nil {
		record.SemanticConfidence = semantic.Confidence
	}

	decision = r.sanitize(message, decision)

	record.Temporal, _ = decision.Entities["temporal_reference"].(bool)
	record.Intent = decision.Intent
	record.Confidence = decision.Confidence
	record.Tools = decision.CandidateTools
	r.record(record)

	r.logger.Info("route decision",
		"request_id", record.RequestID,
		"intent", decision.Intent,
		"confidence", fmt.Sprintf("%.2f", decision.Confidence),
		"tools", decision.CandidateTools,
		"semantic", record.SemanticUsed,
	)

	return decision
}

// semanticRoute asks the model for a route decision in strict JSON.
// Returns nil when the scope allows no tools or the guard exhausts its
// retry budget — both are normal outcomes, not errors.
func (r *Router) semanticRoute(ctx context.Context, message string, history []llm.Message) (*Decision, guard.Trace) {
	allowedTools := r.registry.AllIDs()
	if len(allowedTools) == 0 {
		return nil, guard.Trace{}
	}

	decision, trace := guard.Generate(ctx, r.logger, r.gen, guard.Request{
		SystemPrompt: "Eres un clasificador semantico de intenciones para un asistente personal. " +
			"Debes devolver solo JSON con alta precision.",
		UserPrompt: r.classifierPrompt(message, history, allowedTools),
		MaxRetries: r.config.MaxRetries,
	}, (*Decision).Validate)

	if decision == nil && trace.LastError != "" {
		r.logger.Warn("semantic route JSON invalid, keeping heuristic",
			"trace_id", trace.ID, "error", trace.LastError)
	}
	return decision, trace
}

// classifierPrompt enumerates the intent vocabulary, the scope-filtered
// tool ids, and the recent history for the semantic classifier.
func (r *Router) classifierPrompt(message string, history []llm.Message, allowedTools []string) string {
	tail := history
	if len(tail) > r.config.HistoryTail {
		tail = tail[len(tail)-r.config.HistoryTail:]
	}

	var historyText strings.Builder
	for _, turn := range tail {
		content := turn.Content
		if len(content) > 160 {
			content = content[:160]
		}
		fmt.Fprintf(&historyText, "- %s: %s\n", turn.Role, content)
	}
	if historyText.Len() == 0 {
		historyText.WriteString("- (sin historial)\n")
	}

	// Anchor relative references before the model classifies them.
	var temporalBlock string
	if timeref.HasTemporalReference(message) {
		temporalBlock = timeref.ContextBlock(time.Time{}) + "\n"
	}

	return temporalBlock + fmt.Sprintf(
		"Clasifica el siguiente mensaje y propone herramientas candidatas.\n"+
			"Mensaje actual: %s\n"+
			"Historial corto:\n%s"+
			"Intenciones permitidas: general_chat, web_search, time_sensitive_answer, "+
			"reminder_management, memory_store, memory_recall, memory_update, "+
			"memory_delete, memory_purge.\n"+
			"Herramientas permitidas: %s\n"+
			"Schema requerido:\n"+
			"{\n"+
			"  \"intent\": \"...\",\n"+
			"  \"entities\": {\"query\": \"...\", \"temporal_reference\": true},\n"+
			"  \"candidate_tools\": [\"tool_a\", \"tool_b\"],\n"+
			"  \"confidence\": 0.0,\n"+
			"  \"needs_clarification\": false,\n"+
			"  \"clarification_question\": \"\"\n"+
			"}",
		message, historyText.String(), strings.Join(allowedTools, ", "))
}

// intentAliases canonicalizes classifier synonyms to the fixed
// vocabulary.
var intentAliases = map[string]string{
	"memory_edit":   IntentMemoryUpdate,
	"memory_forget": IntentMemoryDelete,
	"memory_wipe":   IntentMemoryPurge,
	"memory_reset":  IntentMemoryPurge,
}

// sanitize makes the winning decision comply with the registry and
// product scope, pins canonical primary tools per intent, and clamps
// confidence. It guarantees a non-empty tool list whenever the chat
// fallback is in scope.
func (r *Router) sanitize(message string, decision Decision) Decision {
	if canonical, ok := intentAliases[decision.Intent]; ok {
		decision.Intent = canonical
	}
	if decision.Entities == nil {
		decision.Entities = map[string]any{}
	}

	allowed := make(map[string]struct{})
	for _, id := range r.registry.AllIDs() {
		allowed[id] = struct{}{}
	}

	filtered := make([]string, 0, len(decision.CandidateTools))
	for _, id := range decision.CandidateTools {
		if _, ok := allowed[id]; ok {
			filtered = append(filtered, id)
		}
	}
	if len(filtered) == 0 {
		if _, ok := allowed[toolChatGeneral]; ok {
			filtered = []string{toolChatGeneral}
		}
	}

	temporal := decision.TemporalReference() || timeref.HasTemporalReference(message)
	decision.Entities["temporal_reference"] = temporal
	if temporal {
		if _, ok := allowed[toolCurrentDatetime]; ok && !contains(filtered, toolCurrentDatetime) {
			filtered = prepend(filtered, toolCurrentDatetime)
		}
	}

	switch decision.Intent {
	case IntentWebSearch:
		query, _ := decision.Entities["query"].(string)
		query = strings.TrimSpace(query)
		if query == "" {
			query = extractSearchIntent(message)
			if query == "" {
				query = normalizeQuery(message)
			}
			decision.Entities["query"] = query
		}
		if _, ok := allowed[toolWebSearchGeneral]; ok &&
			!contains(filtered, toolWebSearchGeneral) && !contains(filtered, toolWebSearchNews) {
			filtered = prepend(filtered, toolWebSearchGeneral)
		}
	case IntentMemoryStore:
		filtered = pinPrimary(filtered, allowed, toolMemoryStore)
	case IntentMemoryRecall:
		filtered = pinPrimary(filtered, allowed, toolMemoryRecall)
	case IntentMemoryUpdate:
		filtered = pinPrimary(filtered, allowed, toolMemoryUpdate)
	case IntentMemoryDelete:
		filtered = pinPrimary(filtered, allowed, toolMemoryDelete)
	case IntentMemoryPurge:
		filtered = pinPrimary(filtered, allowed, toolMemoryPurge)
	}

	decision.CandidateTools = r.scope.FilterAllowed(filtered)
	if len(decision.CandidateTools) == 0 && r.scope.IsAllowed(toolChatGeneral) {
		decision.CandidateTools = []string{toolChatGeneral}
	}

	if decision.NeedsClarification && decision.ClarificationQuestion == "" {
		decision.ClarificationQuestion = "Podrias darme un poco mas de contexto para ayudarte mejor?"
	}

	if decision.Confidence < 0.05 {
		decision.Confidence = 0.05
	} else if decision.Confidence > 1.0 {
		decision.Confidence = 1.0
	}

	return decision
}

// pinPrimary ensures the canonical primary tool for an intent leads the
// list when the registry and scope allow it.
func pinPrimary(filtered []string, allowed map[string]struct{}, primary string) []string {
	if _, ok := allowed[primary]; !ok {
		return filtered
	}
	if contains(filtered, primary) {
		return filtered
	}
	return prepend(filtered, primary)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func prepend(ids []string, id string) []string {
	return append([]string{id}, ids...)
}

// record adds an audit record, trimming the log at capacity.
func (r *Router) record(rec AuditRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.auditLog) >= r.config.MaxAuditLog {
		r.auditLog = r.auditLog[1:]
	}
	r.auditLog = append(r.auditLog, rec)

	r.stats.TotalRequests++
	r.stats.IntentCounts[rec.Intent]++
	if rec.SemanticUsed {
		r.stats.SemanticWins++
	} else {
		r.stats.HeuristicWins++
	}
}

// AuditLog returns the most recent routing decisions.
func (r *Router) AuditLog(limit int) []AuditRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 || limit > len(r.auditLog) {
		limit = len(r.auditLog)
	}
	start := len(r.auditLog) - limit
	out := make([]AuditRecord, limit)
	copy(out, r.auditLog[start:])
	return out
}

// GetStats returns a snapshot of the routing statistics.
func (r *Router) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.stats
	snapshot.IntentCounts = make(map[string]int64, len(r.stats.IntentCounts))
	for intent, n := range r.stats.IntentCounts {
		snapshot.IntentCounts[intent] = n
	}
	return snapshot
}
