// File: internal/usecase/session_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"support-widget-engine/internal/domain"
	"support-widget-engine/internal/domain/model"
	"support-widget-engine/internal/domain/ports/repository"
)

// Compile-time check
var _ SessionUseCase = (*sessionUC)(nil)

// WidgetConfig holds presentation-adjacent defaults the engine needs when
// restoring a session.
type WidgetConfig struct {
	// AutoOpenWithMessages opens the widget on load when the restored
	// session already has messages and no expand state was persisted.
	AutoOpenWithMessages bool
	WelcomeMessage       string
}

// SessionUseCase is the gate to the durable session record. Every mutation
// writes through to the store before the caller observes it; the persisted
// representation is the single source of truth across reloads.
type SessionUseCase interface {
	// Load restores the profile's session and resolves the widget expand
	// state. Corrupt persisted state degrades to ErrNotFound so the caller
	// starts fresh instead of crashing.
	Load(ctx context.Context, profileID string) (*model.Session, error)
	CreateNew(ctx context.Context, profileID, welcome string, expandedHint bool) (*model.Session, error)
	AddMessage(ctx context.Context, profileID string, m model.Message, isExpanded bool) error
	// ReplaceMessages atomically swaps the whole transcript in one
	// transaction; observers never see an interim list.
	ReplaceMessages(ctx context.Context, profileID string, msgs []model.Message, reason string) error
	UpdateWidgetState(ctx context.Context, profileID string, isExpanded bool) error
	UpdateStatus(ctx context.Context, profileID string, status model.SessionStatus) error
	SetUserContext(ctx context.Context, profileID string, uc *model.UserContext) error
	// Clear discards the session entirely. Distinct from flagging it
	// ended: clearing is only used when starting a brand-new chat.
	Clear(ctx context.Context, profileID string) error
	ListUnfinished(ctx context.Context) ([]*model.Session, error)
}

type sessionUC struct {
	cfg      WidgetConfig
	sessions repository.SessionRepository
	tm       repository.TransactionManager
	log      zerolog.Logger
}

func NewSessionUseCase(cfg WidgetConfig, sessions repository.SessionRepository, tm repository.TransactionManager, logger *zerolog.Logger) *sessionUC {
	return &sessionUC{
		cfg:      cfg,
		sessions: sessions,
		tm:       tm,
		log:      logger.With().Str("component", "SessionUC").Logger(),
	}
}

func (u *sessionUC) Load(ctx context.Context, profileID string) (*model.Session, error) {
	s, err := u.sessions.FindByProfile(ctx, nil, profileID)
	if err != nil {
		if errors.Is(err, domain.ErrCorruptState) {
			u.log.Warn().Err(err).Str("profile_id", profileID).Msg("persisted session unreadable; starting fresh")
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	u.resolveExpandState(s)
	return s, nil
}

// resolveExpandState applies the restore precedence: a resumed idle
// session always keeps its persisted value, an ended one is forced
// collapsed, otherwise the persisted value wins when present and the
// auto-open flag decides when it is not.
func (u *sessionUC) resolveExpandState(s *model.Session) {
	switch {
	case s.Status == model.SessionIdleTimeout:
		// never force-collapse a resumed idle session
	case s.Status == model.SessionEnded:
		s.IsExpanded = false
	case s.ExpandStateKnown:
		// keep persisted value
	default:
		s.IsExpanded = u.cfg.AutoOpenWithMessages && len(s.Messages) > 0
	}
	s.ExpandStateKnown = true
}

func (u *sessionUC) CreateNew(ctx context.Context, profileID, welcome string, expandedHint bool) (*model.Session, error) {
	s := model.NewSession(uuid.NewString(), profileID)
	s.IsExpanded = expandedHint
	s.ExpandStateKnown = true
	if welcome != "" {
		s.AddMessage(model.Message{
			ID:        model.NewMessageID(),
			Type:      model.MessageSystem,
			Content:   welcome,
			Timestamp: time.Now(),
		})
	}
	if err := u.sessions.Save(ctx, nil, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	u.log.Info().Str("profile_id", profileID).Str("session_id", s.ID).Msg("session created")
	return s, nil
}

func (u *sessionUC) AddMessage(ctx context.Context, profileID string, m model.Message, isExpanded bool) error {
	if m.ID == "" {
		return domain.ErrInvalidArgument
	}
	if err := u.sessions.AppendMessage(ctx, nil, profileID, &m, isExpanded); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (u *sessionUC) ReplaceMessages(ctx context.Context, profileID string, msgs []model.Message, reason string) error {
	var err error
	if u.tm != nil {
		err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			return u.sessions.ReplaceMessages(ctx, tx, profileID, msgs)
		})
	} else {
		err = u.sessions.ReplaceMessages(ctx, nil, profileID, msgs)
	}
	if err != nil {
		return fmt.Errorf("replace messages (%s): %w", reason, err)
	}
	u.log.Debug().Str("profile_id", profileID).Str("reason", reason).Int("count", len(msgs)).Msg("transcript replaced")
	return nil
}

func (u *sessionUC) UpdateWidgetState(ctx context.Context, profileID string, isExpanded bool) error {
	return u.sessions.UpdateWidgetState(ctx, nil, profileID, isExpanded)
}

func (u *sessionUC) UpdateStatus(ctx context.Context, profileID string, status model.SessionStatus) error {
	return u.sessions.UpdateStatus(ctx, nil, profileID, status)
}

func (u *sessionUC) SetUserContext(ctx context.Context, profileID string, uc *model.UserContext) error {
	return u.sessions.UpdateUserContext(ctx, nil, profileID, uc)
}

func (u *sessionUC) Clear(ctx context.Context, profileID string) error {
	if err := u.sessions.Delete(ctx, nil, profileID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("clear session: %w", err)
	}
	u.log.Info().Str("profile_id", profileID).Msg("session cleared")
	return nil
}

func (u *sessionUC) ListUnfinished(ctx context.Context) ([]*model.Session, error) {
	return u.sessions.ListUnfinished(ctx, nil)
}
