package model

// OperationType categorizes in-flight work for UI messaging.
type OperationType string

const (
	OpSendMessage    OperationType = "send-message"
	OpAwaitingReply  OperationType = "awaiting-reply"
	OpHandoffRequest OperationType = "handoff-request"
	OpIdentification OperationType = "identification"
	OpFeedback       OperationType = "feedback"
)

// LoadingOperation is a named unit of in-flight async work. IDs are
// caller-supplied ("send-message-<ts>"); registering a duplicate id
// replaces the existing entry.
type LoadingOperation struct {
	ID                string        `json:"id"`
	Type              OperationType `json:"type"`
	Priority          int           `json:"priority"`
	BlockInteractions bool          `json:"blockInteractions"`
}
