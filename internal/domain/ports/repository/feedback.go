package repository

import (
	"context"

	"support-widget-engine/internal/domain/model"
)

// FeedbackRepository records satisfaction feedback. Sessions are kept
// after ending precisely so feedback can still land on them.
type FeedbackRepository interface {
	Save(ctx context.Context, qx any, fb *model.Feedback) error
	ListBySession(ctx context.Context, qx any, sessionID string) ([]*model.Feedback, error)
}
