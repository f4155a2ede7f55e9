// File: internal/usecase/feedback_uc.go
package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"support-widget-engine/internal/domain"
	"support-widget-engine/internal/domain/model"
	"support-widget-engine/internal/domain/ports/repository"
)

// Compile-time check
var _ FeedbackUseCase = (*feedbackUC)(nil)

type FeedbackUseCase interface {
	// SubmitMessageFeedback records a thumbs-up/down on one AI message and
	// marks the message so the UI stops offering the buttons.
	SubmitMessageFeedback(ctx context.Context, profileID, messageID string, kind model.FeedbackKind, comment string) error
	// SubmitSatisfaction records the end-of-conversation note. Works on
	// ended sessions; that is why ending only flags the record.
	SubmitSatisfaction(ctx context.Context, profileID string, kind model.FeedbackKind, comment string) error
}

type feedbackUC struct {
	sessions SessionUseCase
	feedback repository.FeedbackRepository
	log      zerolog.Logger
}

func NewFeedbackUseCase(sessions SessionUseCase, feedback repository.FeedbackRepository, logger *zerolog.Logger) *feedbackUC {
	return &feedbackUC{
		sessions: sessions,
		feedback: feedback,
		log:      logger.With().Str("component", "FeedbackUC").Logger(),
	}
}

func (f *feedbackUC) SubmitMessageFeedback(ctx context.Context, profileID, messageID string, kind model.FeedbackKind, comment string) error {
	s, err := f.sessions.Load(ctx, profileID)
	if err != nil {
		return err
	}

	found := false
	msgs := make([]model.Message, len(s.Messages))
	copy(msgs, s.Messages)
	for i := range msgs {
		if msgs[i].ID == messageID {
			msgs[i].FeedbackSubmitted = true
			found = true
			break
		}
	}
	if !found {
		return domain.ErrNotFound
	}

	fb, err := model.NewFeedback(uuid.NewString(), messageID, s.ID, kind, comment)
	if err != nil {
		return err
	}
	if err := f.feedback.Save(ctx, nil, fb); err != nil {
		return fmt.Errorf("save feedback: %w", err)
	}
	return f.sessions.ReplaceMessages(ctx, profileID, msgs, "feedback-submitted")
}

func (f *feedbackUC) SubmitSatisfaction(ctx context.Context, profileID string, kind model.FeedbackKind, comment string) error {
	s, err := f.sessions.Load(ctx, profileID)
	if err != nil {
		return err
	}
	fb, err := model.NewFeedback(uuid.NewString(), "", s.ID, kind, comment)
	if err != nil {
		return err
	}
	if err := f.feedback.Save(ctx, nil, fb); err != nil {
		return fmt.Errorf("save satisfaction feedback: %w", err)
	}
	f.log.Info().Str("session_id", s.ID).Str("kind", string(kind)).Msg("satisfaction feedback recorded")
	return nil
}
