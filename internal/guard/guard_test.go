package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/jmnavarro/sabio/internal/llm"
)

// scriptedGenerator replays a fixed sequence of replies and records the
// conversations it was asked to complete.
type scriptedGenerator struct {
	replies []string
	calls   [][]llm.Message
	prompts []string
}

func (g *scriptedGenerator) Generate(ctx context.Context, messages []llm.Message, systemPrompt string) (string, error) {
	g.calls = append(g.calls, messages)
	g.prompts = append(g.prompts, systemPrompt)
	if len(g.calls) > len(g.replies) {
		return "", errors.New("script exhausted")
	}
	return g.replies[len(g.calls)-1], nil
}

type testPayload struct {
	Kind  string  `json:"kind"`
	Score float64 `json:"score"`
}

func validatePayload(p *testPayload) error {
	if p.Kind == "" {
		return fmt.Errorf("kind is required")
	}
	if p.Score < 0 || p.Score > 1 {
		return fmt.Errorf("score %v out of range [0, 1]", p.Score)
	}
	return nil
}

func TestGenerate_FirstAttemptValid(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{`{"kind": "ok", "score": 0.9}`}}

	got, trace := Generate(context.Background(), slog.Default(), gen, Request{
		SystemPrompt: "clasifica",
		UserPrompt:   "mensaje",
		MaxRetries:   2,
	}, validatePayload)

	if got == nil {
		t.Fatalf("Generate returned nil, trace: %+v", trace)
	}
	if got.Kind != "ok" || got.Score != 0.9 {
		t.Errorf("Generate = %+v", got)
	}
	if len(trace.Outputs) != 1 {
		t.Errorf("recorded %d outputs, want 1", len(trace.Outputs))
	}
	if !strings.Contains(gen.prompts[0], "SOLO con un objeto JSON") {
		t.Error("system prompt must carry the JSON-only instruction")
	}
}

func TestGenerate_RecoversOnThirdAttempt(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{
		"I think the answer is probably general chat",
		`{"kind": "ok", "score": 7}`,
		`{"kind": "ok", "score": 0.7}`,
	}}

	got, trace := Generate(context.Background(), slog.Default(), gen, Request{
		UserPrompt: "mensaje",
		MaxRetries: 2,
	}, validatePayload)

	if got == nil {
		t.Fatalf("Generate returned nil, trace: %+v", trace)
	}
	if got.Score != 0.7 {
		t.Errorf("Score = %v, want 0.7", got.Score)
	}
	if len(trace.Outputs) != 3 {
		t.Errorf("recorded %d outputs, want 3", len(trace.Outputs))
	}

	// The second retry must replay the original prompt, the previous
	// reply, and a repair instruction quoting the validation error.
	lastCall := gen.calls[2]
	if len(lastCall) != 3 {
		t.Fatalf("retry conversation has %d messages, want 3", len(lastCall))
	}
	if lastCall[0].Content != "mensaje" {
		t.Errorf("retry did not replay the user prompt: %q", lastCall[0].Content)
	}
	if lastCall[1].Role != "assistant" || lastCall[1].Content != `{"kind": "ok", "score": 7}` {
		t.Errorf("retry did not include previous raw reply: %+v", lastCall[1])
	}
	if !strings.Contains(lastCall[2].Content, "out of range") {
		t.Errorf("repair instruction must quote the validation error: %q", lastCall[2].Content)
	}
}

func TestGenerate_ExhaustsBudget(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"nope", "still nope", "nope again"}}

	got, trace := Generate(context.Background(), slog.Default(), gen, Request{
		UserPrompt: "mensaje",
		MaxRetries: 2,
	}, validatePayload)

	if got != nil {
		t.Fatalf("Generate = %+v, want nil", got)
	}
	if len(trace.Outputs) != 3 {
		t.Errorf("recorded %d outputs, want 3", len(trace.Outputs))
	}
	if trace.LastError == "" {
		t.Error("trace must carry the last validation error")
	}
}

func TestGenerate_ZeroRetriesMeansOneAttempt(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"not json"}}

	got, trace := Generate(context.Background(), slog.Default(), gen, Request{
		UserPrompt: "m",
		MaxRetries: 0,
	}, validatePayload)

	if got != nil {
		t.Fatal("expected no value")
	}
	if len(trace.Outputs) != 1 {
		t.Errorf("recorded %d outputs, want 1", len(trace.Outputs))
	}
}

func TestGenerate_LocalRepairAvoidsRetry(t *testing.T) {
	// Fenced, prose-wrapped, trailing-comma output is fixable locally —
	// the guard must not spend a second model call on it.
	gen := &scriptedGenerator{replies: []string{
		"Sure! Here you go:\n```json\n{\"kind\": \"ok\", \"score\": 0.5,}\n```",
	}}

	got, trace := Generate(context.Background(), slog.Default(), gen, Request{
		UserPrompt: "m",
		MaxRetries: 2,
	}, validatePayload)

	if got == nil {
		t.Fatalf("Generate returned nil, trace: %+v", trace)
	}
	if len(gen.calls) != 1 {
		t.Errorf("made %d model calls, want 1", len(gen.calls))
	}
}

func TestGenerate_GeneratorError(t *testing.T) {
	gen := &scriptedGenerator{} // empty script errors immediately

	got, trace := Generate(context.Background(), slog.Default(), gen, Request{
		UserPrompt: "m",
		MaxRetries: 2,
	}, validatePayload)

	if got != nil {
		t.Fatal("expected no value on generator failure")
	}
	if trace.LastError == "" {
		t.Error("trace must record the generator error")
	}
}
