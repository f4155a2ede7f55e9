// File: internal/usecase/lifecycle_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"support-widget-engine/internal/domain"
	"support-widget-engine/internal/domain/model"
	"support-widget-engine/internal/domain/ports/adapter"
)

// Compile-time check
var _ LifecycleUseCase = (*lifecycleUC)(nil)

// LifecycleConfig drives the conversation timers.
type LifecycleConfig struct {
	IdleTimeout        time.Duration // no user interaction -> idle_timeout
	MaxSessionDuration time.Duration // counted from the first AI reply
	HandoffTimeout     time.Duration // waiting_human falls back to active
}

// SweepResult summarizes one pass of the lifecycle timers.
type SweepResult struct {
	IdledOut       int
	MaxedOut       int
	HandoffExpired int
}

// LifecycleUseCase owns the session status transitions. Status changes go
// through here so the entry side effects (quota session reset, cooldown
// clear on ended) always run.
type LifecycleUseCase interface {
	// RequestHuman escalates to a human agent. Allowed while active,
	// quota_exceeded or max_session; a failed backend call leaves the
	// state unchanged.
	RequestHuman(ctx context.Context, profileID, reason string, hctx adapter.HandoffContext) (chatID string, err error)
	// AgentAccepted is the backend callback once a human picked up the
	// conversation.
	AgentAccepted(ctx context.Context, profileID string) error
	MarkQuotaExceeded(ctx context.Context, profileID string, window model.QuotaWindow) error
	// End flags the session ended and runs the terminal side effects.
	// The record is kept so feedback can still be submitted against it.
	End(ctx context.Context, profileID string) error
	// Reactivate resumes an idle session on the next user interaction.
	Reactivate(ctx context.Context, profileID string) error
	// SweepTimeouts applies the idle, max-session and handoff timers to
	// every unfinished session.
	SweepTimeouts(ctx context.Context) (SweepResult, error)
}

type lifecycleUC struct {
	cfg      LifecycleConfig
	sessions SessionUseCase
	quota    QuotaUseCase
	spam     SpamGuardUseCase
	handoff  adapter.HumanHandoffService
	identity adapter.IdentificationService
	notifier adapter.Notifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewLifecycleUseCase(
	cfg LifecycleConfig,
	sessions SessionUseCase,
	quota QuotaUseCase,
	spam SpamGuardUseCase,
	handoff adapter.HumanHandoffService,
	identity adapter.IdentificationService,
	notifier adapter.Notifier,
	logger *zerolog.Logger,
) *lifecycleUC {
	return &lifecycleUC{
		cfg:      cfg,
		sessions: sessions,
		quota:    quota,
		spam:     spam,
		handoff:  handoff,
		identity: identity,
		notifier: notifier,
		log:      logger.With().Str("component", "LifecycleUC").Logger(),
		now:      time.Now,
	}
}

func (l *lifecycleUC) RequestHuman(ctx context.Context, profileID, reason string, hctx adapter.HandoffContext) (string, error) {
	s, err := l.sessions.Load(ctx, profileID)
	if err != nil {
		return "", err
	}
	switch s.Status {
	case model.SessionActive, model.SessionQuotaExceeded, model.SessionMaxDuration:
	case model.SessionWaitingHuman:
		return "", domain.ErrAwaitingHuman
	case model.SessionEnded:
		return "", domain.ErrSessionEnded
	default:
		return "", domain.ErrSessionNotActive
	}

	req := adapter.HandoffRequest{
		ConversationID: s.ID,
		Reason:         reason,
		Context:        hctx,
	}
	if s.UserContext != nil {
		req.UserData = adapter.UserData{Name: s.UserContext.Name, Email: s.UserContext.Email, Phone: s.UserContext.Phone}
	} else if l.identity != nil {
		if ud, err := l.identity.UserContext(ctx, profileID); err == nil && ud != nil {
			req.UserData = *ud
		}
	}

	chatID, err := l.handoff.RequestHandoff(ctx, req)
	if err != nil {
		// Non-fatal: surface a toast, keep the state, let the user retry.
		l.log.Error().Err(err).Str("profile_id", profileID).Msg("handoff request failed")
		l.notify(profileID, adapter.NoticeError, "We couldn't reach a human agent. Please try again.")
		return "", fmt.Errorf("%w: %v", domain.ErrHandoffFailed, err)
	}

	if err := l.sessions.UpdateStatus(ctx, profileID, model.SessionWaitingHuman); err != nil {
		return "", err
	}
	l.notify(profileID, adapter.NoticeInfo, "Request sent. A human agent will join shortly.")
	l.log.Info().Str("profile_id", profileID).Str("chat_id", chatID).Msg("handoff requested")
	return chatID, nil
}

func (l *lifecycleUC) AgentAccepted(ctx context.Context, profileID string) error {
	s, err := l.sessions.Load(ctx, profileID)
	if err != nil {
		return err
	}
	if s.Status != model.SessionWaitingHuman {
		return domain.ErrSessionNotActive
	}
	if err := l.sessions.UpdateStatus(ctx, profileID, model.SessionActive); err != nil {
		return err
	}
	return l.sessions.AddMessage(ctx, profileID, model.Message{
		ID:        model.NewMessageID(),
		Type:      model.MessageSystem,
		Content:   "You're now connected to a human agent.",
		Timestamp: l.now(),
	}, s.IsExpanded)
}

func (l *lifecycleUC) MarkQuotaExceeded(ctx context.Context, profileID string, window model.QuotaWindow) error {
	s, err := l.sessions.Load(ctx, profileID)
	if err != nil {
		return err
	}
	switch s.Status {
	case model.SessionActive, model.SessionWaitingHuman:
	default:
		return nil
	}
	if err := l.sessions.UpdateStatus(ctx, profileID, model.SessionQuotaExceeded); err != nil {
		return err
	}
	l.notify(profileID, adapter.NoticeWarning, ExceededText(window))
	return nil
}

func (l *lifecycleUC) End(ctx context.Context, profileID string) error {
	s, err := l.sessions.Load(ctx, profileID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if !s.Ended() {
		if err := l.sessions.UpdateStatus(ctx, profileID, model.SessionEnded); err != nil {
			return err
		}
	}
	if err := l.quota.ResetSession(ctx, profileID); err != nil {
		l.log.Error().Err(err).Str("profile_id", profileID).Msg("session quota reset failed")
	}
	l.spam.ResetCooldown(profileID)
	l.log.Info().Str("profile_id", profileID).Str("session_id", s.ID).Msg("conversation ended")
	return nil
}

func (l *lifecycleUC) Reactivate(ctx context.Context, profileID string) error {
	s, err := l.sessions.Load(ctx, profileID)
	if err != nil {
		return err
	}
	if s.Status != model.SessionIdleTimeout {
		return nil
	}
	return l.sessions.UpdateStatus(ctx, profileID, model.SessionActive)
}

func (l *lifecycleUC) SweepTimeouts(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	sessions, err := l.sessions.ListUnfinished(ctx)
	if err != nil {
		return res, err
	}
	now := l.now()
	for _, s := range sessions {
		switch s.Status {
		case model.SessionActive:
			if l.cfg.MaxSessionDuration > 0 && !s.FirstReplyAt.IsZero() && now.Sub(s.FirstReplyAt) > l.cfg.MaxSessionDuration {
				if err := l.sessions.UpdateStatus(ctx, s.ProfileID, model.SessionMaxDuration); err != nil {
					l.log.Error().Err(err).Str("profile_id", s.ProfileID).Msg("max-session transition failed")
					continue
				}
				l.notify(s.ProfileID, adapter.NoticeInfo, "This session reached its maximum duration. You can still talk to a human agent.")
				res.MaxedOut++
				continue
			}
			if l.cfg.IdleTimeout > 0 && now.Sub(s.LastInteractionAt) > l.cfg.IdleTimeout {
				// isExpanded is deliberately untouched so the user resumes
				// exactly where they left off.
				if err := l.sessions.UpdateStatus(ctx, s.ProfileID, model.SessionIdleTimeout); err != nil {
					l.log.Error().Err(err).Str("profile_id", s.ProfileID).Msg("idle transition failed")
					continue
				}
				res.IdledOut++
			}
		case model.SessionWaitingHuman:
			if l.cfg.HandoffTimeout > 0 && now.Sub(s.LastInteractionAt) > l.cfg.HandoffTimeout {
				if err := l.sessions.UpdateStatus(ctx, s.ProfileID, model.SessionActive); err != nil {
					l.log.Error().Err(err).Str("profile_id", s.ProfileID).Msg("handoff timeout transition failed")
					continue
				}
				l.notify(s.ProfileID, adapter.NoticeInfo, "No agent is available right now. You can keep chatting here.")
				res.HandoffExpired++
			}
		}
	}
	return res, nil
}

func (l *lifecycleUC) notify(profileID string, kind adapter.NoticeKind, text string) {
	if l.notifier != nil {
		l.notifier.Notify(profileID, adapter.Notice{Kind: kind, Text: text})
	}
}
