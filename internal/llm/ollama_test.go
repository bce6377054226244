package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaGenerate(t *testing.T) {
	var gotReq ollamaChatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Model:   gotReq.Model,
			Message: ollamaMessage{Role: "assistant", Content: `{"ok": true}`},
			Done:    true,
		})
	}))
	defer server.Close()

	c := NewOllamaClient(server.URL, "test-model")
	got, err := c.Generate(context.Background(), []Message{
		{Role: "user", Content: "hola"},
	}, "responde solo JSON")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if got != `{"ok": true}` {
		t.Errorf("Generate = %q", got)
	}

	if gotReq.Stream {
		t.Error("Generate should not request streaming")
	}
	if len(gotReq.Messages) != 2 {
		t.Fatalf("sent %d messages, want 2 (system + user)", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" {
		t.Errorf("first message role = %q, want system", gotReq.Messages[0].Role)
	}
	if gotReq.Messages[1].Content != "hola" {
		t.Errorf("user content = %q", gotReq.Messages[1].Content)
	}
}

func TestOllamaGenerate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	c := NewOllamaClient(server.URL, "missing-model")
	_, err := c.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}}, "")
	if err == nil {
		t.Fatal("Generate should return error on non-200 status")
	}
}

func TestOllamaPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"models": []}`))
	}))
	defer server.Close()

	c := NewOllamaClient(server.URL, "m")
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping error: %v", err)
	}
}
