package planner

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jmnavarro/sabio/internal/guard"
	"github.com/jmnavarro/sabio/internal/llm"
)

// Actions for the local media stack (Radarr, Prowlarr, Transmission,
// Jellyfin).
const (
	MediaActionNone   = "none"
	MediaActionStart  = "start"
	MediaActionStop   = "stop"
	MediaActionStatus = "status"
)

// MediaServicePorts maps each media stack service to its local port.
var MediaServicePorts = map[string]int{
	"Radarr":       7878,
	"Prowlarr":     9696,
	"Transmission": 9091,
	"Jellyfin":     8096,
}

var (
	mediaStartVerbRe = regexp.MustCompile(`(?i)\b(inicia|iniciar|arranca|arrancar|activa|activar|enciende|encender|` +
		`levanta|levantar|prende|habilita|habilitar)\b`)
	mediaScopeRe = regexp.MustCompile(`(?i)\b(protocolo|stack|servicios?|modo)\b.{0,35}\b(pel[ií]culas?|cine|media)\b|` +
		`\b(pel[ií]culas?|cine|media)\b.{0,35}\b(protocolo|stack|servicios?|modo)\b`)
	mediaStatusRe = regexp.MustCompile(`(?i)\b(estado|estatus|status|activo|activos|encendido|encendidos|` +
		`disponible|disponibles)\b.{0,40}\b(protocolo|stack|pel[ií]culas?|media)\b|` +
		`\b(protocolo|stack)\b.{0,40}\b(pel[ií]culas?|media)\b.{0,40}\b(estado|activo)\b`)
	mediaStopVerbRe = regexp.MustCompile(`(?i)\b(apaga|apagar|det[eé]n|deten|detener|desactiva|desactivar|` +
		`cierra|cerrar|termina|terminar|mata|matar|kill)\b`)
	mediaFollowupStartRe = regexp.MustCompile(`(?i)^\s*(?:ya\s+)?(?:act[ií]va(?:lo)?|act[ií]var(?:lo)?|` +
		`inicia(?:lo)?|iniciar(?:lo)?|arranca(?:lo)?|arrancar(?:lo)?|` +
		`enci[eé]nde(?:lo)?|encender(?:lo)?|prende(?:lo)?|prender(?:lo)?|` +
		`levanta(?:lo)?|levantar(?:lo)?|habilita(?:lo)?|habilitar(?:lo)?)\s*[.!?¡¿]*\s*$`)
	mediaFollowupStopRe = regexp.MustCompile(`(?i)^\s*(?:ya\s+)?(?:ap[aá]ga(?:lo)?|apagar(?:lo)?|desactiva(?:lo)?|desactivar(?:lo)?|` +
		`det[eé]n(?:lo)?|detener(?:lo)?|cierra(?:lo)?|cerrar(?:lo)?|` +
		`termina(?:lo)?|terminar(?:lo)?|m[aá]ta(?:lo)?|matar(?:lo)?)\s*[.!?¡¿]*\s*$`)
	mediaContextHintRe = regexp.MustCompile(`(?i)\b(protocolo|stack|pel[ií]culas?|cine|media|radarr|prowlarr|transmission|jellyfin)\b|` +
		`Radarr:|Prowlarr:|Transmission:|Jellyfin:`)
	mediaExplicitHintRe = regexp.MustCompile(`(?i)\b(radarr|prowlarr|transmission|jellyfin|` +
		`pel[ií]culas|cine|media|multimedia|` +
		`modo\s+pel[ií]culas?|stack\s+de\s+pel[ií]culas?)\b`)
	mediaGenericHintRe        = regexp.MustCompile(`(?i)\b(protocolo|stack|servicios?|modo)\b`)
	mediaSemanticActionHintRe = regexp.MustCompile(`(?i)\b(activa(?:r)?(?:lo)?|inicia(?:r)?(?:lo)?|arranca(?:r)?(?:lo)?|` +
		`enciende(?:r)?(?:lo)?|prende(?:r)?(?:lo)?|levanta(?:r)?(?:lo)?|` +
		`habilita(?:r)?(?:lo)?|apaga(?:r)?(?:lo)?|desactiva(?:r)?(?:lo)?|` +
		`det[eé]n(?:er)?(?:lo)?|cierra(?:r)?(?:lo)?|termina(?:r)?(?:lo)?|` +
		`estado|status|estatus|reinicia(?:r)?(?:lo)?|reactiva(?:r)?(?:lo)?|` +
		`encendido|apagado|arriba|caido|caído|` +
		`ponlo|ponla|hazlo|d[eé]jalo)\b`)
	shortImperativeRe = regexp.MustCompile(`(?i)^\s*(?:ok[, ]+)?(?:ya\s+)?(?:hazlo|dale|listo|ponlo|ponla|enciendelo|enciéndelo|` +
		`apágalo|apagalo|actívalo|activalo|deténlo|detenlo|reinícialo|reinicialo)\s*[.!?¡¿]*\s*$`)
	negatedStartRe = regexp.MustCompile(`(?i)\b(no|nunca)\b.{0,10}\b(inicies?|arranques?|actives?|enciendas?|` +
		`levantes?|prendas?|habilites?)\b`)
	negatedStopRe = regexp.MustCompile(`(?i)\b(no|nunca)\b.{0,12}\b(apagues?|detengas?|desactives?|cierres?|` +
		`termines?|mates?)\b`)
	movieOnCmdRe     = regexp.MustCompile(`(?i)^\s*/movie_on\s*$`)
	movieOffCmdRe    = regexp.MustCompile(`(?i)^\s*/movie_off\s*$`)
	movieStatusCmdRe = regexp.MustCompile(`(?i)^\s*/movie_status\s*$`)
	wordTokenRe      = regexp.MustCompile(`[a-zA-Z0-9áéíóúñü]+`)
)

// MediaStackDecision is the structured output of the media stack
// semantic classifier.
type MediaStackDecision struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

func (d *MediaStackDecision) Validate() error {
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0, 1]", d.Confidence)
	}
	return nil
}

// LooksLikeMediaStackStart detects explicit requests to bring the media
// stack up.
func LooksLikeMediaStackStart(message string) bool {
	text := strings.TrimSpace(message)
	if text == "" {
		return false
	}
	if movieOnCmdRe.MatchString(text) {
		return true
	}
	if negatedStartRe.MatchString(text) {
		return false
	}
	return mediaStartVerbRe.MatchString(text) && mediaScopeRe.MatchString(text)
}

// LooksLikeMediaStackStop detects explicit requests to shut the media
// stack down.
func LooksLikeMediaStackStop(message string) bool {
	text := strings.TrimSpace(message)
	if text == "" {
		return false
	}
	if movieOffCmdRe.MatchString(text) {
		return true
	}
	if negatedStopRe.MatchString(text) {
		return false
	}
	return mediaStopVerbRe.MatchString(text) && mediaScopeRe.MatchString(text)
}

// LooksLikeMediaStackStatus detects media stack status queries.
func LooksLikeMediaStackStatus(message string) bool {
	text := strings.TrimSpace(message)
	if text == "" {
		return false
	}
	return movieStatusCmdRe.MatchString(text) || mediaStatusRe.MatchString(text)
}

// hasRecentMediaContext reports whether the last few history lines
// mention the media stack.
func hasRecentMediaContext(recentMessages []string) bool {
	inspected := 0
	for i := len(recentMessages) - 1; i >= 0; i-- {
		text := strings.TrimSpace(recentMessages[i])
		if text == "" {
			continue
		}
		if mediaContextHintRe.MatchString(text) {
			return true
		}
		inspected++
		if inspected >= 6 {
			break
		}
	}
	return false
}

// LooksLikeMediaStackCandidate gates the semantic classifier: it must
// only run for messages plausibly about the media stack, so ambiguous
// chatter does not pay model latency.
func LooksLikeMediaStackCandidate(message string, recentMessages []string) bool {
	text := strings.TrimSpace(message)
	if text == "" {
		return false
	}
	if mediaExplicitHintRe.MatchString(text) {
		return true
	}
	if !hasRecentMediaContext(recentMessages) {
		return false
	}
	if mediaGenericHintRe.MatchString(text) && mediaSemanticActionHintRe.MatchString(text) {
		return true
	}
	if shortImperativeRe.MatchString(text) {
		return true
	}
	return len(wordTokenRe.FindAllString(text, -1)) <= 10 && mediaSemanticActionHintRe.MatchString(text)
}

// LooksLikeMediaStackFollowupStart detects anaphoric follow-ups like
// "actívalo" when recent context was about the media stack.
func LooksLikeMediaStackFollowupStart(message string, recentMessages []string) bool {
	text := strings.TrimSpace(message)
	if text == "" || negatedStartRe.MatchString(text) {
		return false
	}
	return mediaFollowupStartRe.MatchString(text) && hasRecentMediaContext(recentMessages)
}

// LooksLikeMediaStackFollowupStop detects shutdown follow-ups like
// "apágalo" with media context.
func LooksLikeMediaStackFollowupStop(message string, recentMessages []string) bool {
	text := strings.TrimSpace(message)
	if text == "" || negatedStopRe.MatchString(text) {
		return false
	}
	return mediaFollowupStopRe.MatchString(text) && hasRecentMediaContext(recentMessages)
}

// minMediaConfidence is the confidence floor below which a non-none
// semantic classification is discarded.
const minMediaConfidence = 0.62

// InferMediaStackAction classifies the media stack intent semantically.
// It returns action none when the candidate gate rejects the message,
// the guard produces no valid JSON, or confidence is below the floor.
func InferMediaStackAction(ctx context.Context, logger *slog.Logger, gen llm.Generator, message string, recentMessages []string) MediaStackDecision {
	if gen == nil || !LooksLikeMediaStackCandidate(message, recentMessages) {
		return MediaStackDecision{Action: MediaActionNone}
	}

	tail := recentMessages
	if len(tail) > 6 {
		tail = tail[len(tail)-6:]
	}
	var historyLines strings.Builder
	for _, line := range tail {
		if len(line) > 180 {
			line = line[:180]
		}
		fmt.Fprintf(&historyLines, "- %s\n", line)
	}
	if historyLines.Len() == 0 {
		historyLines.WriteString("- (sin historial relevante)\n")
	}

	userPrompt := fmt.Sprintf(
		"Clasifica la intencion del usuario respecto al stack multimedia "+
			"(Radarr, Prowlarr, Transmission, Jellyfin).\n"+
			"Devuelve accion exacta: start, stop, status o none.\n"+
			"Usa historial para resolver anaforas como 'activalo', 'ponlo en marcha', "+
			"'apagalo', 'como va eso'.\n"+
			"Mensaje actual: %s\n"+
			"Historial reciente:\n%s"+
			"Schema requerido:\n"+
			"{\n"+
			"  \"action\": \"start|stop|status|none\",\n"+
			"  \"confidence\": 0.0,\n"+
			"  \"rationale\": \"breve\"\n"+
			"}",
		message, historyLines.String())

	decision, trace := guard.Generate(ctx, logger, gen, guard.Request{
		SystemPrompt: "Eres un clasificador semantico para control de un stack multimedia local. " +
			"Debes responder SOLO JSON valido.",
		UserPrompt: userPrompt,
		MaxRetries: 2,
	}, (*MediaStackDecision).Validate)
	if decision == nil {
		if trace.LastError != "" {
			logger.Warn("media stack classification invalid", "trace_id", trace.ID, "error", trace.LastError)
		}
		return MediaStackDecision{Action: MediaActionNone}
	}

	action := strings.ToLower(strings.TrimSpace(decision.Action))
	switch action {
	case MediaActionStart, MediaActionStop, MediaActionStatus, MediaActionNone:
	default:
		action = MediaActionNone
	}

	if action != MediaActionNone && decision.Confidence < minMediaConfidence {
		return MediaStackDecision{Action: MediaActionNone, Confidence: decision.Confidence, Rationale: decision.Rationale}
	}
	return MediaStackDecision{Action: action, Confidence: decision.Confidence, Rationale: decision.Rationale}
}

// MediaStackStatus probes each service's local port and reports which
// are up. Observation only; nothing is started or stopped.
func MediaStackStatus() map[string]bool {
	status := make(map[string]bool, len(MediaServicePorts))
	for service, port := range MediaServicePorts {
		status[service] = isLocalPortOpen(port)
	}
	return status
}

func isLocalPortOpen(port int) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), 350*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// FormatMediaStackStatus builds a compact readable status line, in a
// fixed service order so output is stable.
func FormatMediaStackStatus(status map[string]bool) string {
	order := []string{"Radarr", "Prowlarr", "Transmission", "Jellyfin"}
	parts := make([]string, 0, len(order))
	for _, service := range order {
		up, known := status[service]
		if !known {
			continue
		}
		state := "OFF"
		if up {
			state = "OK"
		}
		parts = append(parts, service+":"+state)
	}
	return strings.Join(parts, " | ")
}
