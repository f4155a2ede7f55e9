package repository

import (
	"context"

	"support-widget-engine/internal/domain/model"
)

// QuotaStateRepository persists per-profile quota counters so a page
// reload never resets them.
type QuotaStateRepository interface {
	Get(ctx context.Context, profileID string) (*model.QuotaState, error)
	Save(ctx context.Context, profileID string, state *model.QuotaState) error
	Delete(ctx context.Context, profileID string) error
}
