package adapter

import "context"

// UserData is the identification snapshot forwarded to a human agent.
type UserData struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// HandoffContext carries where the widget was embedded when the user asked
// for a human.
type HandoffContext struct {
	PageURL            string `json:"pageUrl,omitempty"`
	BrowserString      string `json:"browserString,omitempty"`
	IdentificationType string `json:"identificationType,omitempty"`
}

type HandoffRequest struct {
	ConversationID string         `json:"conversationId"`
	Reason         string         `json:"reason,omitempty"`
	UserData       UserData       `json:"userData"`
	Context        HandoffContext `json:"context"`
}

// HumanHandoffService is the port to the external agent-handoff backend.
type HumanHandoffService interface {
	// RequestHandoff returns the backend chat id for the escalated
	// conversation.
	RequestHandoff(ctx context.Context, req HandoffRequest) (chatID string, err error)
}
