// Package guard forces free-text model output into schema-valid JSON.
//
// Models asked for strict JSON still wrap replies in markdown fences,
// surround them with prose, or leave trailing commas. The guard tries a
// cheap local repair before spending another model round-trip, and when
// it does retry, it quotes the exact validation error back at the model,
// which converges much faster than a generic "try again".
package guard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jmnavarro/sabio/internal/llm"
)

// Trace records every raw model reply observed during one guarded call,
// plus the most recent validation failure. It is diagnostic only and is
// surfaced through logs, never persisted.
type Trace struct {
	ID        string
	Outputs   []string
	LastError string
}

// Request describes one guarded generation.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	// MaxRetries bounds the repair loop; total model calls = MaxRetries + 1.
	// Negative values are treated as zero.
	MaxRetries int
}

const jsonOnlyInstruction = "Debes responder SOLO con un objeto JSON valido. " +
	"No uses markdown, no agregues texto adicional."

// Generate runs the generation → validation → repair loop.
//
// Each raw reply gets two decode candidates: the text as-is, then a
// locally repaired version. The first candidate that both parses and
// validates wins immediately. When the attempt budget is exhausted the
// result is nil — not an error. Callers must treat "no value" as a
// normal outcome.
//
// validate receives the freshly decoded value; it may normalize fields
// in place and returns an error when the value violates its schema.
func Generate[T any](ctx context.Context, logger *slog.Logger, gen llm.Generator, req Request, validate func(*T) error) (*T, Trace) {
	trace := Trace{ID: uuid.NewString()}

	systemPrompt := strings.TrimSpace(req.SystemPrompt) + "\n\n" + jsonOnlyInstruction

	messages := []llm.Message{{Role: "user", Content: req.UserPrompt}}
	attempts := max(0, req.MaxRetries) + 1

	for attempt := 0; attempt < attempts; attempt++ {
		raw, err := gen.Generate(ctx, messages, systemPrompt)
		if err != nil {
			trace.LastError = err.Error()
			logger.Warn("guarded generation call failed",
				"trace_id", trace.ID, "attempt", attempt, "error", err)
			return nil, trace
		}
		trace.Outputs = append(trace.Outputs, raw)

		for _, candidate := range []string{raw, Repair(raw)} {
			value, err := decode[T](candidate, validate)
			if err != nil {
				trace.LastError = err.Error()
				continue
			}
			return value, trace
		}

		if attempt >= attempts-1 {
			break
		}

		// Quote the exact validation failure back at the model.
		repairRequest := fmt.Sprintf(
			"Tu salida no cumple el schema JSON requerido. "+
				"Error de validacion: %s\n"+
				"Devuelve solo JSON valido, sin markdown y sin texto extra.",
			trace.LastError)
		messages = []llm.Message{
			{Role: "user", Content: req.UserPrompt},
			{Role: "assistant", Content: raw},
			{Role: "user", Content: repairRequest},
		}
	}

	return nil, trace
}

// decode extracts the first JSON object from text, parses it, and runs
// the schema validation hook.
func decode[T any](text string, validate func(*T) error) (*T, error) {
	candidate := ExtractObject(text)
	if candidate == "" {
		return nil, fmt.Errorf("no JSON object found in output")
	}

	var value T
	if err := json.Unmarshal([]byte(candidate), &value); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if validate != nil {
		if err := validate(&value); err != nil {
			return nil, err
		}
	}
	return &value, nil
}
