package domain

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDenied   = "denied"
)

// ExtensionRequest is one line of the extension_requests.ndjson ledger.
// Field names are part of the on-disk contract; admin tooling reads the
// raw file.
type ExtensionRequest struct {
	SessionID      string  `json:"session_id"`
	Email          string  `json:"email"`
	Timestamp      string  `json:"timestamp"`
	Status         string  `json:"status"`
	QueriesGranted int     `json:"queries_granted"`
	ApprovedAt     *string `json:"approved_at"`
	RequestID      string  `json:"request_id"`
}

// ApprovalGrant is the value stored per session in approved_extensions.json.
// A later approval for the same session overwrites the earlier grant.
type ApprovalGrant struct {
	QueriesGranted int    `json:"queries_granted"`
	ApprovedAt     string `json:"approved_at"`
	RequestID      string `json:"request_id"`
	Email          string `json:"email"`
}

func ValidStatusFilter(filter string) bool {
	switch filter {
	case "all", StatusPending, StatusApproved, StatusDenied:
		return true
	}
	return false
}
