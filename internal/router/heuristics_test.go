package router

import "testing"

func TestHeuristicRoute(t *testing.T) {
	tests := []struct {
		name           string
		message        string
		wantIntent     string
		wantConfidence float64
	}{
		{
			name:           "reminder creation",
			message:        "Recuérdame llamar al dentista mañana",
			wantIntent:     IntentReminder,
			wantConfidence: 0.80,
		},
		{
			name:           "reminder listing",
			message:        "lista recordatorios pendientes",
			wantIntent:     IntentReminder,
			wantConfidence: 0.80,
		},
		{
			name:           "memory purge protocol",
			message:        "activa el protocolo de borrado",
			wantIntent:     IntentMemoryPurge,
			wantConfidence: 0.76,
		},
		{
			name:           "memory purge free form",
			message:        "borra toda mi memoria por favor",
			wantIntent:     IntentMemoryPurge,
			wantConfidence: 0.76,
		},
		{
			name:           "memory update",
			message:        "actualiza el dato de mi trabajo",
			wantIntent:     IntentMemoryUpdate,
			wantConfidence: 0.72,
		},
		{
			name:           "memory delete",
			message:        "olvida el dato de mi antigua direccion",
			wantIntent:     IntentMemoryDelete,
			wantConfidence: 0.72,
		},
		{
			name:           "memory recall",
			message:        "que sabes de mi?",
			wantIntent:     IntentMemoryRecall,
			wantConfidence: 0.73,
		},
		{
			name:           "memory store",
			message:        "recuerda que mi hermana se llama Ana",
			wantIntent:     IntentMemoryStore,
			wantConfidence: 0.73,
		},
		{
			name:           "web search",
			message:        "busca vuelos baratos a Lisboa",
			wantIntent:     IntentWebSearch,
			wantConfidence: 0.78,
		},
		{
			name:           "implicit search question",
			message:        "cuanto cuesta el bitcoin",
			wantIntent:     IntentWebSearch,
			wantConfidence: 0.78,
		},
		{
			name:           "time sensitive without search",
			message:        "que planes tengo para mañana",
			wantIntent:     IntentTimeSensitive,
			wantConfidence: 0.70,
		},
		{
			name:           "general chat fallback",
			message:        "cuentame un chiste de programadores",
			wantIntent:     IntentGeneralChat,
			wantConfidence: 0.55,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := heuristicRoute(tt.message)
			if d.Intent != tt.wantIntent {
				t.Errorf("intent = %q, want %q", d.Intent, tt.wantIntent)
			}
			if d.Confidence != tt.wantConfidence {
				t.Errorf("confidence = %v, want %v", d.Confidence, tt.wantConfidence)
			}
			if len(d.CandidateTools) == 0 {
				t.Error("candidate tools is empty")
			}
		})
	}
}

func TestHeuristicRoutePriorityOrder(t *testing.T) {
	// A message matching both the reminder and the web detectors must
	// route as reminder, which is checked first.
	d := heuristicRoute("recuérdame buscar el informe de ventas")
	if d.Intent != IntentReminder {
		t.Fatalf("intent = %q, want %q", d.Intent, IntentReminder)
	}
}

func TestHeuristicRouteNewsPreference(t *testing.T) {
	d := heuristicRoute("busca noticias de la bolsa española")
	if d.Intent != IntentWebSearch {
		t.Fatalf("intent = %q, want %q", d.Intent, IntentWebSearch)
	}
	if d.CandidateTools[0] != toolWebSearchNews {
		t.Fatalf("primary tool = %q, want %q", d.CandidateTools[0], toolWebSearchNews)
	}
	if preferNews, _ := d.Entities["prefer_news"].(bool); !preferNews {
		t.Fatal("prefer_news = false, want true")
	}
}

func TestHeuristicRouteTemporalFlag(t *testing.T) {
	d := heuristicRoute("busca el clima hoy en Pamplona")
	if temporal, _ := d.Entities["temporal_reference"].(bool); !temporal {
		t.Fatal("temporal_reference = false, want true")
	}
}
