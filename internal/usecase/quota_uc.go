// File: internal/usecase/quota_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"support-widget-engine/internal/domain"
	"support-widget-engine/internal/domain/model"
	"support-widget-engine/internal/domain/ports/adapter"
	"support-widget-engine/internal/domain/ports/repository"
)

// Compile-time check
var _ QuotaUseCase = (*quotaUC)(nil)

// QuotaUseCase tracks per-profile message counters over the daily, hourly
// and session windows.
type QuotaUseCase interface {
	CanSend(ctx context.Context, profileID string) (bool, error)
	// Increment counts one message; called for accepted user messages and
	// for produced AI replies alike.
	Increment(ctx context.Context, profileID string) error
	// ResetSession zeroes the session counter only; called when the
	// conversation ends.
	ResetSession(ctx context.Context, profileID string) error
	State(ctx context.Context, profileID string) (*model.QuotaState, error)
	Remaining(ctx context.Context, profileID string) (map[model.QuotaWindow]int, error)
	// ExceededWindow reports the first exhausted enabled window in
	// priority order (daily, hourly, session), or "" when sends are still
	// allowed.
	ExceededWindow(ctx context.Context, profileID string) (model.QuotaWindow, error)
}

type quotaUC struct {
	cfg      model.QuotaConfig
	states   repository.QuotaStateRepository
	notifier adapter.Notifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewQuotaUseCase(cfg model.QuotaConfig, states repository.QuotaStateRepository, notifier adapter.Notifier, logger *zerolog.Logger) *quotaUC {
	return &quotaUC{
		cfg:      cfg,
		states:   states,
		notifier: notifier,
		log:      logger.With().Str("component", "QuotaUC").Logger(),
		now:      time.Now,
	}
}

// load returns the rolled-forward state for a profile, creating a fresh
// one when nothing is persisted yet. Window crossings are applied (and
// persisted) exactly once here.
func (q *quotaUC) load(ctx context.Context, profileID string) (*model.QuotaState, error) {
	st, err := q.states.Get(ctx, profileID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		st = model.NewQuotaState(q.now())
	case errors.Is(err, domain.ErrCorruptState):
		q.log.Warn().Err(err).Str("profile_id", profileID).Msg("persisted quota state unreadable; starting fresh")
		st = model.NewQuotaState(q.now())
		if err := q.states.Save(ctx, profileID, st); err != nil {
			return nil, fmt.Errorf("quota state reset: %w", err)
		}
	default:
		return nil, fmt.Errorf("quota state load: %w", err)
	}
	if st.RollWindows(q.now()) {
		if err := q.states.Save(ctx, profileID, st); err != nil {
			return nil, fmt.Errorf("quota state save after roll: %w", err)
		}
	}
	return st, nil
}

func (q *quotaUC) CanSend(ctx context.Context, profileID string) (bool, error) {
	st, err := q.load(ctx, profileID)
	if err != nil {
		return false, err
	}
	return st.Exceeded(q.cfg) == "", nil
}

func (q *quotaUC) ExceededWindow(ctx context.Context, profileID string) (model.QuotaWindow, error) {
	st, err := q.load(ctx, profileID)
	if err != nil {
		return "", err
	}
	return st.Exceeded(q.cfg), nil
}

func (q *quotaUC) Increment(ctx context.Context, profileID string) error {
	st, err := q.load(ctx, profileID)
	if err != nil {
		return err
	}
	st.Increment()
	if err := q.states.Save(ctx, profileID, st); err != nil {
		return fmt.Errorf("quota state save: %w", err)
	}
	q.warnIfNearLimit(profileID, st)
	return nil
}

// warnIfNearLimit recomputes on every increment; repeated toasts are
// acceptable, a missed one is not.
func (q *quotaUC) warnIfNearLimit(profileID string, st *model.QuotaState) {
	if q.cfg.WarningThreshold <= 0 || q.notifier == nil {
		return
	}
	var parts []string
	for _, w := range []model.QuotaWindow{model.QuotaDaily, model.QuotaHourly, model.QuotaSession} {
		r := st.Remaining(q.cfg, w)
		if r > 0 && r <= q.cfg.WarningThreshold {
			parts = append(parts, fmt.Sprintf("%s limit almost reached (%d left)", w, r))
		}
	}
	if len(parts) == 0 {
		return
	}
	q.notifier.Notify(profileID, adapter.Notice{
		Kind: adapter.NoticeWarning,
		Text: strings.Join(parts, "; "),
	})
}

func (q *quotaUC) ResetSession(ctx context.Context, profileID string) error {
	st, err := q.load(ctx, profileID)
	if err != nil {
		return err
	}
	st.ResetSession()
	if err := q.states.Save(ctx, profileID, st); err != nil {
		return fmt.Errorf("quota state save: %w", err)
	}
	q.log.Debug().Str("profile_id", profileID).Msg("session quota reset")
	return nil
}

func (q *quotaUC) State(ctx context.Context, profileID string) (*model.QuotaState, error) {
	return q.load(ctx, profileID)
}

func (q *quotaUC) Remaining(ctx context.Context, profileID string) (map[model.QuotaWindow]int, error) {
	st, err := q.load(ctx, profileID)
	if err != nil {
		return nil, err
	}
	out := make(map[model.QuotaWindow]int, 3)
	for _, w := range []model.QuotaWindow{model.QuotaDaily, model.QuotaHourly, model.QuotaSession} {
		if r := st.Remaining(q.cfg, w); r >= 0 {
			out[w] = r
		}
	}
	return out, nil
}

// ExceededText is the user-facing wording for a blocked send.
func ExceededText(w model.QuotaWindow) string {
	switch w {
	case model.QuotaDaily:
		return "Daily message limit reached. Please come back tomorrow or talk to a human agent."
	case model.QuotaHourly:
		return "Hourly message limit reached. Please try again later or talk to a human agent."
	case model.QuotaSession:
		return "This conversation reached its message limit. Start a new chat or talk to a human agent."
	}
	return "Message limit reached."
}
