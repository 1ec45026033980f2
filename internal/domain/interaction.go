package domain

// Interaction is one chat exchange written to the per-day log files.
type Interaction struct {
	Timestamp         string `json:"timestamp"`
	SessionID         string `json:"session_id"`
	UserMessage       string `json:"user_message"`
	AssistantResponse string `json:"assistant_response"`
	FilteredPreLLM    bool   `json:"filtered_pre_llm"`
}
