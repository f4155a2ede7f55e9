package model

import (
	"time"

	"support-widget-engine/internal/domain"
)

type FeedbackKind string

const (
	FeedbackPositive FeedbackKind = "positive"
	FeedbackNegative FeedbackKind = "negative"
)

// Feedback is a thumbs-up/down on one message, or an end-of-conversation
// satisfaction note (MessageID empty).
type Feedback struct {
	ID        string
	MessageID string
	SessionID string
	Kind      FeedbackKind
	Comment   string
	CreatedAt time.Time
}

func NewFeedback(id, messageID, sessionID string, kind FeedbackKind, comment string) (*Feedback, error) {
	if id == "" || sessionID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if kind != FeedbackPositive && kind != FeedbackNegative {
		return nil, domain.ErrInvalidArgument
	}
	return &Feedback{
		ID:        id,
		MessageID: messageID,
		SessionID: sessionID,
		Kind:      kind,
		Comment:   comment,
		CreatedAt: time.Now(),
	}, nil
}
