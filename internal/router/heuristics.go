package router

import (
	"regexp"
	"strings"

	"github.com/jmnavarro/sabio/internal/timeref"
)

// Keyword detectors, evaluated in fixed priority order. The assistant's
// users write Spanish, accents optional.
var (
	webHintRe = regexp.MustCompile(`(?i)\b(busca|buscar|investiga|consulta|averigua|google|internet|web|` +
		`noticias?|precio|cotizacion|cotización|valor|actual)\b`)
	newsHintRe     = regexp.MustCompile(`(?i)\b(noticias?|news|titulares|actualidad)\b`)
	reminderHintRe = regexp.MustCompile(`(?i)\b(recordatorio|recordatorios|recuerdame|recuérdame|avisame|avísame|` +
		`elimina\s+recordatorio|lista\s+recordatorios|pendientes)\b`)
	memoryPurgeHintRe = regexp.MustCompile(`(?i)\b(protocolo\s+de\s+borrado|borrado\s+de\s+memoria|` +
		`resetea(?:r)?\s+memoria|reinicia(?:r)?\s+memoria)\b|` +
		`\b(borra|elimina|limpia|olvida)\b.{0,35}\b(toda|todo)\b.{0,35}\b(memoria|conversaciones?)\b`)
	memoryUpdateHintRe = regexp.MustCompile(`(?i)\b(actualiza|corrige|edita|modifica|cambia)\b.{0,45}\b(` +
		`memoria|recuerdo|dato|lo\s+que\s+recuerdas|perfil)\b`)
	memoryDeleteHintRe = regexp.MustCompile(`(?i)\b(olvida|borra|elimina|quita|remueve)\b.{0,45}\b(` +
		`memoria|recuerdo|dato|lo\s+que\s+recuerdas|perfil)\b`)
	memoryRecallHintRe = regexp.MustCompile(`(?i)\b(que\s+recuerdas|que\s+sabes\s+de\s+mi|mi\s+perfil|` +
		`lo\s+que\s+tienes\s+guardado|recuerdos?\s+sobre)\b`)
	memoryStoreHintRe = regexp.MustCompile(`(?i)\b(recuerda\s+que|acu[eé]rdate\s+de|guarda(?:r)?\s+en\s+(?:tu\s+)?memoria|` +
		`ten\s+presente\s+que|anota(?:r)?\s+en\s+tu\s+memoria)\b`)
)

// heuristicRoute is the fast deterministic classifier used as base and
// fallback. The first matching detector wins and supplies a fixed
// confidence plus a default candidate tool list.
func heuristicRoute(message string) Decision {
	clean := strings.TrimSpace(message)
	lower := strings.ToLower(clean)
	temporal := timeref.HasTemporalReference(clean)

	if reminderHintRe.MatchString(clean) {
		return Decision{
			Intent:         IntentReminder,
			Entities:       map[string]any{"temporal_reference": temporal},
			CandidateTools: []string{"reminder_create", "reminder_list", "reminder_delete"},
			Confidence:     0.80,
		}
	}

	if memoryPurgeHintRe.MatchString(clean) {
		return Decision{
			Intent:         IntentMemoryPurge,
			Entities:       map[string]any{"temporal_reference": temporal},
			CandidateTools: []string{toolMemoryPurge, toolChatGeneral},
			Confidence:     0.76,
		}
	}

	if memoryUpdateHintRe.MatchString(clean) {
		return Decision{
			Intent:         IntentMemoryUpdate,
			Entities:       map[string]any{"temporal_reference": temporal},
			CandidateTools: []string{toolMemoryUpdate, toolMemoryRecall},
			Confidence:     0.72,
		}
	}

	if memoryDeleteHintRe.MatchString(clean) {
		return Decision{
			Intent:         IntentMemoryDelete,
			Entities:       map[string]any{"temporal_reference": temporal},
			CandidateTools: []string{toolMemoryDelete, toolMemoryRecall},
			Confidence:     0.72,
		}
	}

	if memoryRecallHintRe.MatchString(clean) {
		return Decision{
			Intent:         IntentMemoryRecall,
			Entities:       map[string]any{"temporal_reference": temporal},
			CandidateTools: []string{toolMemoryRecall, "memory_retrieval"},
			Confidence:     0.73,
		}
	}

	if memoryStoreHintRe.MatchString(clean) {
		return Decision{
			Intent:         IntentMemoryStore,
			Entities:       map[string]any{"temporal_reference": temporal},
			CandidateTools: []string{toolMemoryStore, "memory_store_summary"},
			Confidence:     0.73,
		}
	}

	extracted := extractSearchIntent(clean)
	explicitWeb := webHintRe.MatchString(clean)
	if extracted != "" || explicitWeb {
		query := extracted
		if query == "" {
			query = normalizeQuery(clean)
		}
		primary := toolWebSearchGeneral
		if newsHintRe.MatchString(lower) {
			primary = toolWebSearchNews
		}
		return Decision{
			Intent: IntentWebSearch,
			Entities: map[string]any{
				"query":              query,
				"temporal_reference": temporal,
				"prefer_news":        primary == toolWebSearchNews,
			},
			CandidateTools: []string{primary, toolWebSearchGeneral, toolChatGeneral},
			Confidence:     0.78,
		}
	}

	if temporal {
		return Decision{
			Intent:         IntentTimeSensitive,
			Entities:       map[string]any{"temporal_reference": true},
			CandidateTools: []string{toolCurrentDatetime, toolChatGeneral},
			Confidence:     0.70,
		}
	}

	return Decision{
		Intent:         IntentGeneralChat,
		Entities:       map[string]any{"temporal_reference": false},
		CandidateTools: []string{toolChatGeneral},
		Confidence:     0.55,
	}
}
