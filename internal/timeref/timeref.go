// Package timeref detects temporal references in user text and builds
// datetime context for prompts. The assistant speaks Spanish, so the
// patterns cover Spanish day names and relative words with and without
// accents.
package timeref

import (
	"fmt"
	"regexp"
	"time"
)

var temporalRe = regexp.MustCompile(`(?i)\b(` +
	`hoy|manana|mañana|pasado\s+manana|pasado\s+mañana|ayer|` +
	`actual|actualmente|ahora|esta\s+semana|este\s+mes|este\s+ano|este\s+año|` +
	`lunes|martes|miercoles|miércoles|jueves|viernes|sabado|sábado|domingo|` +
	`\d{1,2}:\d{2}|\d{1,2}\s*(?:am|pm)` +
	`)\b`)

// HasTemporalReference reports whether text includes a temporal
// reference (relative day words, weekday names, clock times).
func HasTemporalReference(text string) bool {
	return temporalRe.MatchString(text)
}

// Payload is a normalized datetime snapshot for prompts and the
// get_current_datetime capability output.
type Payload struct {
	ISODateTime   string `json:"iso_datetime"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Weekday       string `json:"weekday"`
	HumanReadable string `json:"human_readable"`
}

// CurrentPayload builds a Payload for now.
func CurrentPayload(now time.Time) Payload {
	if now.IsZero() {
		now = time.Now()
	}
	return Payload{
		ISODateTime:   now.Format("2006-01-02T15:04:05"),
		Date:          now.Format("2006-01-02"),
		Time:          now.Format("15:04:05"),
		Weekday:       now.Weekday().String(),
		HumanReadable: now.Format("2006-01-02 15:04:05"),
	}
}

// ContextBlock builds the temporal context block injected into system
// prompts so the model anchors relative references to a real date.
func ContextBlock(now time.Time) string {
	p := CurrentPayload(now)
	return fmt.Sprintf(
		"Contexto temporal obligatorio:\n"+
			"- Fecha y hora actual (ISO): %s\n"+
			"- Fecha actual: %s\n"+
			"- Dia de la semana: %s\n"+
			"Cuando el usuario use referencias relativas (hoy, manana, actual), "+
			"responde usando esta fecha como ancla.",
		p.ISODateTime, p.Date, p.Weekday)
}
