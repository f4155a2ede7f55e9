package repository

import (
	"context"

	"support-widget-engine/internal/domain/model"
)

// -----------------------------
// Widget Sessions
// -----------------------------

// SessionRepository is the durable store of record for widget sessions.
// One session row per browser profile; messages live in their own table
// but are always read back as part of the session aggregate.
type SessionRepository interface {
	Save(ctx context.Context, qx any, session *model.Session) error
	AppendMessage(ctx context.Context, qx any, profileID string, m *model.Message, isExpanded bool) error
	// ReplaceMessages swaps the full transcript in a single transaction so
	// no reader ever observes a partially rewritten list.
	ReplaceMessages(ctx context.Context, qx any, profileID string, msgs []model.Message) error
	FindByProfile(ctx context.Context, qx any, profileID string) (*model.Session, error)
	UpdateStatus(ctx context.Context, qx any, profileID string, status model.SessionStatus) error
	UpdateWidgetState(ctx context.Context, qx any, profileID string, isExpanded bool) error
	UpdateUserContext(ctx context.Context, qx any, profileID string, uc *model.UserContext) error
	Delete(ctx context.Context, qx any, profileID string) error
	// ListUnfinished returns sessions whose status is neither ended nor
	// idle_timeout, for the lifecycle sweep.
	ListUnfinished(ctx context.Context, qx any) ([]*model.Session, error)
}
