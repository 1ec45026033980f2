package domain

// Turn is one message of a session's conversation transcript.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SessionState is the server-side state behind one browser session token.
// The query counter lives in its own store key so it can be incremented
// atomically; it is carried here for read paths only.
type SessionState struct {
	SessionID          string `json:"session_id"`
	QueryCount         int    `json:"query_count"`
	Conversation       []Turn `json:"conversation"`
	ExtensionRequested bool   `json:"extension_requested"`
	ExtensionRequestID string `json:"extension_request_id,omitempty"`
}
