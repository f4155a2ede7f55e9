package application

import (
	"context"

	"support-widget-engine/internal/domain/ports/adapter"
)

// ---- small interfaces to decouple the facade from concrete infra types ----
// These describe the minimal surface the facade needs; tests pass in
// light-weight fakes.

// TaskRunner is how the facade schedules suspended work (AI replies).
type TaskRunner interface {
	Submit(task func(ctx context.Context) error) error
}

// NoticeSource drains queued toast notices for one profile; implemented by
// the notify hub alongside adapter.Notifier.
type NoticeSource interface {
	Drain(profileID string) []adapter.Notice
}
