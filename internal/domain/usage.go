package domain

// Call types recorded in the usage ledger.
const (
	CallTypeClassification = "classification"
	CallTypeConversation   = "conversation"
	CallTypeJobVetting     = "job_vetting"
)

// Scope labels attached by the intent classifier.
const (
	ScopeIn  = "IN_SCOPE"
	ScopeOut = "OUT_OF_SCOPE"
)

// UsageRecord is one line of usage_tracking.ndjson: token counts and cost
// for a single upstream model call.
type UsageRecord struct {
	SessionID        string  `json:"session_id"`
	Timestamp        string  `json:"timestamp"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Model            string  `json:"model"`
	CallType         string  `json:"call_type"`
	Scope            *string `json:"scope"`
	InputCost        float64 `json:"input_cost"`
	OutputCost       float64 `json:"output_cost"`
	TotalCost        float64 `json:"total_cost"`
}
