package model

import (
	"time"
)

type SessionStatus string

const (
	SessionActive        SessionStatus = "active"
	SessionWaitingHuman  SessionStatus = "waiting_human"
	SessionIdleTimeout   SessionStatus = "idle_timeout"
	SessionMaxDuration   SessionStatus = "max_session"
	SessionQuotaExceeded SessionStatus = "quota_exceeded"
	SessionEnded         SessionStatus = "ended"
)

type MessageType string

const (
	MessageUser           MessageType = "user"
	MessageAI             MessageType = "ai"
	MessageSystem         MessageType = "system"
	MessageIdentifyPrompt MessageType = "identification-prompt"
)

// Message is one transcript entry. Content is empty for prompt entries.
type Message struct {
	ID                string      `json:"id"`
	Type              MessageType `json:"type"`
	Content           string      `json:"content,omitempty"`
	Timestamp         time.Time   `json:"timestamp"`
	IsPending         bool        `json:"isPending,omitempty"`
	FeedbackSubmitted bool        `json:"feedbackSubmitted,omitempty"`
}

// Session is the aggregate root for one widget conversation. It survives
// page reloads until the user explicitly starts a new chat.
type Session struct {
	ID                string        `json:"sessionId"`
	ProfileID         string        `json:"profileId"`
	Status            SessionStatus `json:"status"`
	Messages          []Message     `json:"messages"`
	IsExpanded        bool          `json:"isExpanded"`
	ExpandStateKnown  bool          `json:"expandStateKnown"`
	CreatedAt         time.Time     `json:"createdAt"`
	LastInteractionAt time.Time     `json:"lastInteractionAt"`
	FirstReplyAt      time.Time     `json:"firstReplyAt,omitempty"`
	UserContext       *UserContext  `json:"userContext,omitempty"`
}

// UserContext is the identification snapshot. The identification flow owns
// it; the engine only reads it.
type UserContext struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func NewSession(id, profileID string) *Session {
	now := time.Now()
	return &Session{
		ID:                id,
		ProfileID:         profileID,
		Status:            SessionActive,
		Messages:          make([]Message, 0, 8),
		CreatedAt:         now,
		LastInteractionAt: now,
	}
}

// AddMessage appends in insertion order; the transcript is never reordered.
func (s *Session) AddMessage(m Message) {
	s.Messages = append(s.Messages, m)
	s.LastInteractionAt = time.Now()
	if m.Type == MessageAI && s.FirstReplyAt.IsZero() {
		s.FirstReplyAt = m.Timestamp
	}
}

func (s *Session) Touch() {
	s.LastInteractionAt = time.Now()
}

// PendingUserMessages returns user messages queued behind identification,
// oldest first.
func (s *Session) PendingUserMessages() []Message {
	var out []Message
	for _, m := range s.Messages {
		if m.Type == MessageUser && m.IsPending {
			out = append(out, m)
		}
	}
	return out
}

func (s *Session) Ended() bool {
	return s.Status == SessionEnded
}

func (s *Session) RecentMessages(n int) []Message {
	if n <= 0 || len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}
