package planner

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jmnavarro/sabio/internal/guard"
	"github.com/jmnavarro/sabio/internal/llm"
	"github.com/jmnavarro/sabio/internal/timeref"
)

// Reminder operations a plan can describe.
const (
	ReminderOpNone     = "none"
	ReminderOpCreate   = "create"
	ReminderOpList     = "list"
	ReminderOpDelete   = "delete"
	ReminderOpUpdate   = "update"
	ReminderOpPostpone = "postpone"
)

// ReminderActionPlan is a structured reminder operation inferred from
// the message.
type ReminderActionPlan struct {
	Operation             string  `json:"operation"`
	ShouldApply           bool    `json:"should_apply"`
	TargetID              string  `json:"target_id"`
	TargetQuery           string  `json:"target_query"`
	TaskText              string  `json:"task_text"`
	DatetimeText          string  `json:"datetime_text"`
	DeleteAll             bool    `json:"delete_all"`
	Confidence            float64 `json:"confidence"`
	ClarificationQuestion string  `json:"clarification_question"`
}

// Validate checks the operation vocabulary and confidence bounds.
func (p *ReminderActionPlan) Validate() error {
	switch p.Operation {
	case "", ReminderOpNone, ReminderOpCreate, ReminderOpList, ReminderOpDelete, ReminderOpUpdate, ReminderOpPostpone:
	default:
		return fmt.Errorf("unknown operation %q", p.Operation)
	}
	if p.Operation == "" {
		p.Operation = ReminderOpNone
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0, 1]", p.Confidence)
	}
	return nil
}

// ReminderDraft is a single reminder extracted from a multi-reminder
// message.
type ReminderDraft struct {
	TaskText     string `json:"task_text"`
	DatetimeText string `json:"datetime_text"`
}

// MultiReminderPlan describes several reminders requested in one
// message. ShouldApply is true only when at least two complete drafts
// survive normalization.
type MultiReminderPlan struct {
	ShouldApply           bool            `json:"should_apply"`
	Reminders             []ReminderDraft `json:"reminders"`
	Confidence            float64         `json:"confidence"`
	ClarificationQuestion string          `json:"clarification_question"`
}

func (p *MultiReminderPlan) Validate() error {
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0, 1]", p.Confidence)
	}
	return nil
}

func collapse(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// ExtractReminderActionPlan asks the model for a reminder operation
// plan and applies per-operation guardrails: incomplete plans come back
// with ShouldApply=false and a clarification question instead of a
// half-specified mutation.
func ExtractReminderActionPlan(ctx context.Context, logger *slog.Logger, gen llm.Generator, message string, history []llm.Message) *ReminderActionPlan {
	userPrompt := fmt.Sprintf(
		"Analiza si el usuario quiere gestionar recordatorios.\n"+
			"Operaciones permitidas:\n"+
			"- create: crear recordatorio nuevo\n"+
			"- list: listar recordatorios activos\n"+
			"- delete: eliminar uno o varios recordatorios\n"+
			"- update: editar texto y/o fecha de un recordatorio existente\n"+
			"- postpone: posponer/mover fecha de un recordatorio existente\n"+
			"- none: no es gestion de recordatorios\n"+
			"Reglas importantes:\n"+
			"- No confundas notas de memoria con recordatorios. "+
			"Si no hay intencion de aviso futuro, usa operation='none'.\n"+
			"- Para create, incluye task_text y datetime_text cuando sea posible.\n"+
			"- Para update/postpone/delete, intenta extraer target_id o target_query.\n"+
			"- Si pide borrar todos, marca delete_all=true.\n"+
			"- Si falta informacion critica, usa should_apply=false y clarification_question.\n"+
			"Mensaje actual: %s\n"+
			"Historial corto:\n%s"+
			"Devuelve JSON con schema:\n"+
			"{\n"+
			"  \"operation\": \"none|create|list|delete|update|postpone\",\n"+
			"  \"should_apply\": true,\n"+
			"  \"target_id\": \"\",\n"+
			"  \"target_query\": \"\",\n"+
			"  \"task_text\": \"\",\n"+
			"  \"datetime_text\": \"\",\n"+
			"  \"delete_all\": false,\n"+
			"  \"confidence\": 0.0,\n"+
			"  \"clarification_question\": \"\"\n"+
			"}",
		message, historyTail(history, 5))

	plan, trace := guard.Generate(ctx, logger, gen, guard.Request{
		SystemPrompt: "Eres un analizador semantico de recordatorios para un asistente personal. " +
			"Debes inferir intenciones aunque el usuario use frases variadas.",
		UserPrompt: userPrompt,
		MaxRetries: 2,
	}, (*ReminderActionPlan).Validate)
	if plan == nil {
		if trace.LastError != "" {
			logger.Warn("reminder action plan invalid", "trace_id", trace.ID, "error", trace.LastError)
		}
		return nil
	}

	plan.TargetID = strings.ToLower(collapse(plan.TargetID))
	plan.TargetQuery = collapse(plan.TargetQuery)
	plan.TaskText = collapse(plan.TaskText)
	plan.DatetimeText = collapse(plan.DatetimeText)

	switch plan.Operation {
	case ReminderOpNone:
		plan.ShouldApply = false

	case ReminderOpList:
		plan.ShouldApply = true

	case ReminderOpCreate:
		// Without any temporal signal the message is probably a memory
		// note, not an alarm.
		if plan.DatetimeText == "" && !timeref.HasTemporalReference(message) {
			plan.ShouldApply = false
			if plan.ClarificationQuestion == "" {
				plan.ClarificationQuestion = "¿Quieres guardarlo en memoria (sin alarma) o crear un recordatorio con fecha/hora?"
			}
		} else if plan.TaskText == "" && plan.DatetimeText == "" {
			plan.ShouldApply = false
			if plan.ClarificationQuestion == "" {
				plan.ClarificationQuestion = "¿Qué recordatorio quieres crear y para cuándo?"
			}
		}

	case ReminderOpDelete:
		if !plan.DeleteAll && plan.TargetID == "" && plan.TargetQuery == "" {
			plan.ShouldApply = false
			if plan.ClarificationQuestion == "" {
				plan.ClarificationQuestion = "¿Qué recordatorio quieres eliminar? Dime ID o parte del texto."
			}
		}

	case ReminderOpUpdate:
		if plan.TargetID == "" && plan.TargetQuery == "" {
			plan.ShouldApply = false
			if plan.ClarificationQuestion == "" {
				plan.ClarificationQuestion = "¿Qué recordatorio quieres editar? Dime ID o una parte del texto."
			}
		} else if plan.TaskText == "" && plan.DatetimeText == "" {
			plan.ShouldApply = false
			if plan.ClarificationQuestion == "" {
				plan.ClarificationQuestion = "¿Qué cambio hago en ese recordatorio: texto, fecha, o ambos?"
			}
		}

	case ReminderOpPostpone:
		if plan.TargetID == "" && plan.TargetQuery == "" {
			plan.ShouldApply = false
			if plan.ClarificationQuestion == "" {
				plan.ClarificationQuestion = "¿Qué recordatorio quieres posponer? Dime ID o una parte del texto."
			}
		} else if plan.DatetimeText == "" {
			plan.ShouldApply = false
			if plan.ClarificationQuestion == "" {
				plan.ClarificationQuestion = "¿Cuánto quieres posponerlo? Ejemplo: '30 minutos' o 'mañana a las 8'."
			}
		}
	}

	return plan
}

var (
	multiDatetimeHitRe = regexp.MustCompile(`(?i)\b(` +
		`mañana|manana|pasado\s+mañana|hoy|esta\s+noche|` +
		`lunes|martes|mi[eé]rcoles|jueves|viernes|s[áa]bado|domingo|` +
		`\d{1,2}:\d{2}|\d{1,2}\s*(?:am|pm)|` +
		`a\s*las\s*\d{1,2}|en\s*\d+\s*(?:minutos?|horas?|d[ií]as?)|` +
		`dentro\s*de\s*\d+\s*(?:minutos?|horas?|d[ií]as?)` +
		`)\b`)
	conjunctionRe  = regexp.MustCompile(`\by\b`)
	andForRe       = regexp.MustCompile(`\by\s+para\b`)
	forRe          = regexp.MustCompile(`\bpara\b`)
	anotherHintRe  = regexp.MustCompile(`(?i)\b(y\s+otro|y\s+otra|adem[aá]s|tambi[eé]n|dos|2)\b`)
	numberedListRe = regexp.MustCompile(`\n\s*\d+[.)]\s*`)
)

// LooksLikeMultiReminderRequest is a heuristic for messages that likely
// ask for more than one reminder at once.
func LooksLikeMultiReminderRequest(message string) bool {
	lowered := strings.ToLower(message)

	if len(multiDatetimeHitRe.FindAllString(lowered, -1)) >= 2 && conjunctionRe.MatchString(lowered) {
		return true
	}
	if andForRe.MatchString(lowered) && len(forRe.FindAllString(lowered, -1)) >= 2 {
		return true
	}
	if anotherHintRe.MatchString(lowered) {
		return true
	}
	return numberedListRe.MatchString(message)
}

// ExtractMultiReminderPlan splits one message into independent reminder
// drafts. Drafts missing task or datetime are dropped; duplicates are
// removed case-insensitively.
func ExtractMultiReminderPlan(ctx context.Context, logger *slog.Logger, gen llm.Generator, message string, history []llm.Message) *MultiReminderPlan {
	userPrompt := fmt.Sprintf(
		"Si el mensaje contiene varios recordatorios, extraelos todos.\n"+
			"Cada recordatorio debe tener:\n"+
			"- task_text: accion concreta\n"+
			"- datetime_text: fecha/hora asociada\n"+
			"Reglas:\n"+
			"- Si solo hay un recordatorio, devuelve una lista de un elemento.\n"+
			"- Si falta fecha/hora en algun item, no inventes datos.\n"+
			"Mensaje actual: %s\n"+
			"Historial corto:\n%s"+
			"Devuelve JSON con schema:\n"+
			"{\n"+
			"  \"should_apply\": true,\n"+
			"  \"reminders\": [\n"+
			"    {\"task_text\": \"\", \"datetime_text\": \"\"}\n"+
			"  ],\n"+
			"  \"confidence\": 0.0,\n"+
			"  \"clarification_question\": \"\"\n"+
			"}",
		message, historyTail(history, 4))

	plan, trace := guard.Generate(ctx, logger, gen, guard.Request{
		SystemPrompt: "Eres un extractor semantico de recordatorios. " +
			"Tu tarea es separar un mensaje en uno o mas recordatorios independientes.",
		UserPrompt: userPrompt,
		MaxRetries: 2,
	}, (*MultiReminderPlan).Validate)
	if plan == nil {
		if trace.LastError != "" {
			logger.Warn("multi reminder plan invalid", "trace_id", trace.ID, "error", trace.LastError)
		}
		return nil
	}

	normalized := make([]ReminderDraft, 0, len(plan.Reminders))
	seen := make(map[[2]string]struct{})
	for _, draft := range plan.Reminders {
		task := collapse(draft.TaskText)
		dt := collapse(draft.DatetimeText)
		if task == "" || dt == "" {
			continue
		}
		key := [2]string{strings.ToLower(task), strings.ToLower(dt)}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		normalized = append(normalized, ReminderDraft{TaskText: task, DatetimeText: dt})
	}

	plan.Reminders = normalized
	plan.ShouldApply = len(plan.Reminders) >= 2

	if !plan.ShouldApply && LooksLikeMultiReminderRequest(message) && plan.ClarificationQuestion == "" {
		plan.ClarificationQuestion = "Puedo crear varios recordatorios en un solo mensaje, " +
			"pero necesito que cada uno tenga accion y fecha/hora."
	}
	return plan
}
