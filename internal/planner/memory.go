// Package planner holds the guarded semantic extractors that turn a
// user message into structured plans for memory, reminder, and media
// stack operations. Planners only describe what should happen; they
// never execute anything.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmnavarro/sabio/internal/guard"
	"github.com/jmnavarro/sabio/internal/llm"
)

// MemoryWritePlan is a structured plan for explicit long-term memory
// writes.
type MemoryWritePlan struct {
	ShouldStore           bool     `json:"should_store"`
	Facts                 []string `json:"facts"`
	Confidence            float64  `json:"confidence"`
	ClarificationQuestion string   `json:"clarification_question"`
}

// Validate bounds confidence; used as the guard validation hook.
func (p *MemoryWritePlan) Validate() error {
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0, 1]", p.Confidence)
	}
	return nil
}

const maxMemoryFacts = 6

// cleanFacts normalizes whitespace, drops entries shorter than three
// characters, and deduplicates case-insensitively, keeping at most
// maxMemoryFacts in first-seen order.
func cleanFacts(facts []string) []string {
	cleaned := make([]string, 0, len(facts))
	seen := make(map[string]struct{})

	for _, raw := range facts {
		fact := strings.Join(strings.Fields(raw), " ")
		if len(fact) < 3 {
			continue
		}
		key := strings.ToLower(fact)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, fact)
		if len(cleaned) >= maxMemoryFacts {
			break
		}
	}
	return cleaned
}

// historyTail renders the last n turns as prompt bullet lines, each
// truncated to 180 runes.
func historyTail(history []llm.Message, n int) string {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	var b strings.Builder
	for _, turn := range history {
		content := turn.Content
		if len(content) > 180 {
			content = content[:180]
		}
		fmt.Fprintf(&b, "- %s: %s\n", turn.Role, content)
	}
	if b.Len() == 0 {
		return "- (sin historial)\n"
	}
	return b.String()
}

// ExtractMemoryWritePlan asks the model whether the message asks to
// persist personal facts, and which ones. Returns nil when the guarded
// generation produces no valid plan.
func ExtractMemoryWritePlan(ctx context.Context, logger *slog.Logger, gen llm.Generator, message string, history []llm.Message) *MemoryWritePlan {
	userPrompt := fmt.Sprintf(
		"Analiza el mensaje y determina si el usuario quiere guardar memoria de largo plazo.\n"+
			"Guarda solo datos personales estables o relevantes (relaciones, preferencias, nombres, contexto personal).\n"+
			"No guardes: tareas temporales, recordatorios, instrucciones del sistema, ni texto ambiguo.\n"+
			"Mensaje actual: %s\n"+
			"Historial corto:\n%s"+
			"Devuelve JSON con schema:\n"+
			"{\n"+
			"  \"should_store\": true,\n"+
			"  \"facts\": [\"...\"],\n"+
			"  \"confidence\": 0.0,\n"+
			"  \"clarification_question\": \"\"\n"+
			"}",
		message, historyTail(history, 4))

	plan, trace := guard.Generate(ctx, logger, gen, guard.Request{
		SystemPrompt: "Eres un analizador semantico para memoria de largo plazo. " +
			"Detecta cuando el usuario pide guardar informacion personal.",
		UserPrompt: userPrompt,
		MaxRetries: 2,
	}, (*MemoryWritePlan).Validate)
	if plan == nil {
		if trace.LastError != "" {
			logger.Warn("memory write plan invalid", "trace_id", trace.ID, "error", trace.LastError)
		}
		return nil
	}

	plan.Facts = cleanFacts(plan.Facts)
	if plan.ShouldStore && len(plan.Facts) == 0 {
		plan.ShouldStore = false
	}
	return plan
}
