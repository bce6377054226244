package router

import "fmt"

// Intent vocabulary. The classifier may emit synonyms; sanitization
// canonicalizes them before the decision leaves this package.
const (
	IntentGeneralChat   = "general_chat"
	IntentWebSearch     = "web_search"
	IntentTimeSensitive = "time_sensitive_answer"
	IntentReminder      = "reminder_management"
	IntentMemoryStore   = "memory_store"
	IntentMemoryRecall  = "memory_recall"
	IntentMemoryUpdate  = "memory_update"
	IntentMemoryDelete  = "memory_delete"
	IntentMemoryPurge   = "memory_purge"
)

// Canonical tool ids the sanitizer pins to the front of the candidate
// list for specific intents. They only apply when present in scope.
const (
	toolChatGeneral      = "chat_general"
	toolWebSearchGeneral = "web_search_general"
	toolWebSearchNews    = "web_search_news"
	toolCurrentDatetime  = "get_current_datetime"
	toolMemoryStore      = "memory_store_user_fact"
	toolMemoryRecall     = "memory_recall_profile"
	toolMemoryUpdate     = "memory_update_user_fact"
	toolMemoryDelete     = "memory_delete_user_fact"
	toolMemoryPurge      = "memory_purge_all"
)

// Decision is the structured output of intent classification: chosen
// intent, extracted entities, ranked candidate tools, and confidence.
// After sanitization every id in CandidateTools is registry-resolvable
// and scope-allowed.
type Decision struct {
	Intent                string         `json:"intent"`
	Entities              map[string]any `json:"entities"`
	CandidateTools        []string       `json:"candidate_tools"`
	Confidence            float64        `json:"confidence"`
	NeedsClarification    bool           `json:"needs_clarification"`
	ClarificationQuestion string         `json:"clarification_question"`
}

// Validate checks a freshly decoded classifier decision against its
// schema and fills the defaults for absent fields. Used as the JSON
// guard validation hook.
func (d *Decision) Validate() error {
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0, 1]", d.Confidence)
	}
	if d.Intent == "" {
		d.Intent = IntentGeneralChat
	}
	if d.Entities == nil {
		d.Entities = map[string]any{}
	}
	if d.CandidateTools == nil {
		d.CandidateTools = []string{toolChatGeneral}
	}
	return nil
}

// TemporalReference reports the decision's own temporal entity flag.
func (d *Decision) TemporalReference() bool {
	v, _ := d.Entities["temporal_reference"].(bool)
	return v
}
