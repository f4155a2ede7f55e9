package application

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
	"support-widget-engine/internal/usecase"
)

// WidgetFacade is the action dispatcher: it receives user intents from the
// widget API and sequences them across the quota tracker, spam guard,
// lifecycle machine, session store and operation coordinator.
type WidgetFacade struct {
	sessions  usecase.SessionUseCase
	lifecycle usecase.LifecycleUseCase
	quota     usecase.QuotaUseCase
	spam      usecase.SpamGuardUseCase
	ops       usecase.OperationCoordinator
	feedback  usecase.FeedbackUseCase

	ai       adapter.AIReplyService
	identity adapter.IdentificationService
	notifier adapter.Notifier
	notices  NoticeSource
	runner   TaskRunner

	aiModel        string
	welcomeMessage string
	contextWindow  int

	log zerolog.Logger
}

type FacadeDeps struct {
	Sessions  usecase.SessionUseCase
	Lifecycle usecase.LifecycleUseCase
	Quota     usecase.QuotaUseCase
	Spam      usecase.SpamGuardUseCase
	Ops       usecase.OperationCoordinator
	Feedback  usecase.FeedbackUseCase
	AI        adapter.AIReplyService
	Identity  adapter.IdentificationService
	Notifier  adapter.Notifier
	Notices   NoticeSource
	Runner    TaskRunner
}

func NewWidgetFacade(deps FacadeDeps, aiModel, welcomeMessage string, contextWindow int, logger *zerolog.Logger) *WidgetFacade {
	if contextWindow <= 0 {
		contextWindow = 30
	}
	return &WidgetFacade{
		sessions:       deps.Sessions,
		lifecycle:      deps.Lifecycle,
		quota:          deps.Quota,
		spam:           deps.Spam,
		ops:            deps.Ops,
		feedback:       deps.Feedback,
		ai:             deps.AI,
		identity:       deps.Identity,
		notifier:       deps.Notifier,
		notices:        deps.Notices,
		runner:         deps.Runner,
		aiModel:        aiModel,
		welcomeMessage: welcomeMessage,
		contextWindow:  contextWindow,
		log:            logger.With().Str("component", "WidgetFacade").Logger(),
	}
}

// WidgetState is what the surrounding UI renders from.
type WidgetState struct {
	Session           *model.Session            `json:"session,omitempty"`
	Quota             map[model.QuotaWindow]int `json:"quotaRemaining,omitempty"`
	ActiveOperations  []model.LoadingOperation  `json:"activeOperations"`
	BlockInteractions bool                      `json:"blockInteractions"`
	LoadingType       model.OperationType       `json:"loadingType,omitempty"`
	Notices           []adapter.Notice          `json:"notices,omitempty"`
}

// SatisfactionInput is the optional feedback submitted while ending.
type SatisfactionInput struct {
	Kind    model.FeedbackKind
	Comment string
}

func (f *WidgetFacade) GetState(ctx context.Context, profileID string) (*WidgetState, error) {
	st := &WidgetState{
		ActiveOperations:  f.ops.Active(profileID),
		BlockInteractions: f.ops.ShouldBlockInteractions(profileID),
	}
	if op, ok := f.ops.BlockingOperation(profileID); ok {
		st.LoadingType = op.Type
	}
	s, err := f.sessions.Load(ctx, profileID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	st.Session = s
	if q, err := f.quota.Remaining(ctx, profileID); err == nil {
		st.Quota = q
	}
	if f.notices != nil {
		st.Notices = f.notices.Drain(profileID)
	}
	return st, nil
}

// SendMessage accepts one user message, runs every gate in order and
// schedules the asynchronous reply. The returned message reflects what was
// appended (possibly pending on identification).
func (f *WidgetFacade) SendMessage(ctx context.Context, profileID, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrInvalidArgument
	}

	s, err := f.sessions.Load(ctx, profileID)
	if errors.Is(err, domain.ErrNotFound) {
		// first message creates the session
		s, err = f.sessions.CreateNew(ctx, profileID, f.welcomeMessage, true)
	}
	if err != nil {
		return nil, err
	}

	switch s.Status {
	case model.SessionActive:
	case model.SessionIdleTimeout:
		if err := f.lifecycle.Reactivate(ctx, profileID); err != nil {
			return nil, err
		}
		s.Status = model.SessionActive
	case model.SessionWaitingHuman:
		return nil, domain.ErrAwaitingHuman
	case model.SessionEnded:
		return nil, domain.ErrSessionEnded
	case model.SessionQuotaExceeded:
		return nil, domain.ErrQuotaExceeded
	default:
		return nil, domain.ErrSessionNotActive
	}

	if f.spam.CheckSpamAttempt(profileID) {
		return nil, domain.ErrSpamCooldown
	}

	ok, err := f.quota.CanSend(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if !ok {
		w, _ := f.quota.ExceededWindow(ctx, profileID)
		if err := f.lifecycle.MarkQuotaExceeded(ctx, profileID, w); err != nil {
			f.log.Error().Err(err).Str("profile_id", profileID).Msg("quota transition failed")
		}
		return nil, domain.ErrQuotaExceeded
	}

	allowed := true
	if f.identity != nil {
		canSend, err := f.identity.CanSendMessage(ctx, profileID)
		if err != nil {
			// external flow failure is non-fatal; don't wedge sends on it
			f.log.Warn().Err(err).Str("profile_id", profileID).Msg("identification check failed; allowing send")
		} else {
			allowed = canSend
		}
	}

	msg := model.Message{
		ID:        model.NewMessageID(),
		Type:      model.MessageUser,
		Content:   content,
		Timestamp: time.Now(),
		IsPending: !allowed,
	}

	if !allowed {
		return f.queueBehindIdentification(ctx, profileID, s, msg)
	}

	f.spam.RecordSend(profileID)
	if err := f.sessions.AddMessage(ctx, profileID, msg, s.IsExpanded); err != nil {
		return nil, err
	}
	if err := f.quota.Increment(ctx, profileID); err != nil {
		f.log.Error().Err(err).Str("profile_id", profileID).Msg("quota increment failed")
	}

	s.AddMessage(msg)
	f.scheduleReply(profileID, s)
	return &msg, nil
}

// queueBehindIdentification appends the message as pending and makes sure
// exactly one identification prompt sits in the transcript. Pending
// messages are never dropped, only reclassified once identification
// completes.
func (f *WidgetFacade) queueBehindIdentification(ctx context.Context, profileID string, s *model.Session, msg model.Message) (*model.Message, error) {
	if err := f.sessions.AddMessage(ctx, profileID, msg, s.IsExpanded); err != nil {
		return nil, err
	}
	hasPrompt := false
	for _, m := range s.Messages {
		if m.Type == model.MessageIdentifyPrompt {
			hasPrompt = true
			break
		}
	}
	if !hasPrompt {
		prompt := model.Message{
			ID:        model.NewMessageID(),
			Type:      model.MessageIdentifyPrompt,
			Timestamp: time.Now(),
		}
		if err := f.sessions.AddMessage(ctx, profileID, prompt, s.IsExpanded); err != nil {
			return nil, err
		}
	}
	f.notify(profileID, adapter.NoticeInfo, "Please identify yourself to continue the conversation.")
	return &msg, nil
}

// scheduleReply registers the loading operation and hands the suspended
// reply to the worker pool. Each send carries its own operation id so
// overlapping sends stay distinguishable.
func (f *WidgetFacade) scheduleReply(profileID string, s *model.Session) {
	opID := "send-message-" + model.NewMessageID()
	f.ops.Add(profileID, model.LoadingOperation{
		ID:                opID,
		Type:              model.OpAwaitingReply,
		Priority:          2,
		BlockInteractions: true,
	})

	history := f.buildContext(s)
	task := func(ctx context.Context) error {
		defer f.ops.Remove(profileID, opID)
		reply, err := f.ai.Reply(ctx, f.aiModel, history)
		if err != nil {
			// non-fatal: toast and leave the lifecycle state untouched
			f.notify(profileID, adapter.NoticeError, "We couldn't answer right now. Please try again.")
			return fmt.Errorf("ai reply: %w", err)
		}
		return f.deliverReply(ctx, profileID, reply)
	}
	if err := f.runner.Submit(task); err != nil {
		f.ops.Remove(profileID, opID)
		f.notify(profileID, adapter.NoticeError, "We're a bit busy. Please try again in a moment.")
		f.log.Error().Err(err).Str("profile_id", profileID).Msg("reply task rejected")
	}
}

// deliverReply appends the AI reply when it resolves. A session that was
// ended in the meantime still receives the reply; only a cleared (deleted)
// session drops it.
func (f *WidgetFacade) deliverReply(ctx context.Context, profileID, reply string) error {
	s, err := f.sessions.Load(ctx, profileID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			f.log.Debug().Str("profile_id", profileID).Msg("reply resolved after session was cleared; dropping")
			return nil
		}
		return err
	}
	msg := model.Message{
		ID:        model.NewMessageID(),
		Type:      model.MessageAI,
		Content:   reply,
		Timestamp: time.Now(),
	}
	if err := f.sessions.AddMessage(ctx, profileID, msg, s.IsExpanded); err != nil {
		return err
	}
	// replies count toward quota too
	if err := f.quota.Increment(ctx, profileID); err != nil {
		f.log.Error().Err(err).Str("profile_id", profileID).Msg("quota increment failed")
	}
	return nil
}

// buildContext maps the transcript onto the provider roles, skipping
// prompts and messages still queued behind identification.
func (f *WidgetFacade) buildContext(s *model.Session) []adapter.Message {
	recent := s.RecentMessages(f.contextWindow)
	out := make([]adapter.Message, 0, len(recent))
	for _, m := range recent {
		if m.IsPending || m.Type == model.MessageIdentifyPrompt {
			continue
		}
		role := ""
		switch m.Type {
		case model.MessageUser:
			role = "user"
		case model.MessageAI:
			role = "assistant"
		case model.MessageSystem:
			role = "system"
		default:
			continue
		}
		out = append(out, adapter.Message{Role: role, Content: m.Content})
	}
	return out
}

// RequestHuman escalates the conversation to a human agent.
func (f *WidgetFacade) RequestHuman(ctx context.Context, profileID, reason string, hctx adapter.HandoffContext) (string, error) {
	opID := fmt.Sprintf("handoff-request-%d", time.Now().UnixMilli())
	f.ops.Add(profileID, model.LoadingOperation{
		ID:                opID,
		Type:              model.OpHandoffRequest,
		Priority:          3,
		BlockInteractions: true,
	})
	defer f.ops.Remove(profileID, opID)
	return f.lifecycle.RequestHuman(ctx, profileID, reason, hctx)
}

// EndConversation confirms the end, optionally recording satisfaction
// feedback first so it can land on the still-existing session.
func (f *WidgetFacade) EndConversation(ctx context.Context, profileID string, satisfaction *SatisfactionInput) error {
	if satisfaction != nil {
		if err := f.feedback.SubmitSatisfaction(ctx, profileID, satisfaction.Kind, satisfaction.Comment); err != nil {
			// feedback failure never blocks ending
			f.log.Error().Err(err).Str("profile_id", profileID).Msg("satisfaction feedback failed")
			f.notify(profileID, adapter.NoticeError, "We couldn't record your feedback.")
		}
	}
	return f.lifecycle.End(ctx, profileID)
}

// StartNewChat always transitions through ended before reinitializing.
func (f *WidgetFacade) StartNewChat(ctx context.Context, profileID string) (*model.Session, error) {
	if err := f.lifecycle.End(ctx, profileID); err != nil {
		return nil, err
	}
	if err := f.sessions.Clear(ctx, profileID); err != nil {
		return nil, err
	}
	return f.sessions.CreateNew(ctx, profileID, f.welcomeMessage, true)
}

// CompleteIdentification reclassifies everything blocked on identification
// in one observable update: the prompt disappears, pending messages become
// regular ones and the acknowledgment lands, with no interim list visible.
// It then triggers the deferred reply to the newest previously queued
// message.
func (f *WidgetFacade) CompleteIdentification(ctx context.Context, profileID string, ud adapter.UserData, sessionType string) error {
	s, err := f.sessions.Load(ctx, profileID)
	if err != nil {
		return err
	}

	pending := s.PendingUserMessages()
	msgs := make([]model.Message, 0, len(s.Messages)+1)
	for _, m := range s.Messages {
		if m.Type == model.MessageIdentifyPrompt {
			continue
		}
		m.IsPending = false
		msgs = append(msgs, m)
	}
	ack := model.Message{
		ID:        model.NewMessageID(),
		Type:      model.MessageSystem,
		Content:   identificationAck(ud),
		Timestamp: time.Now(),
	}
	msgs = append(msgs, ack)

	if err := f.sessions.ReplaceMessages(ctx, profileID, msgs, "identification-complete"); err != nil {
		return err
	}
	if err := f.sessions.SetUserContext(ctx, profileID, &model.UserContext{Name: ud.Name, Email: ud.Email, Phone: ud.Phone}); err != nil {
		f.log.Error().Err(err).Str("profile_id", profileID).Msg("user context save failed")
	}

	if len(pending) > 0 {
		// the queued sends are accepted now
		f.spam.RecordSend(profileID)
		for range pending {
			if err := f.quota.Increment(ctx, profileID); err != nil {
				f.log.Error().Err(err).Str("profile_id", profileID).Msg("quota increment failed")
			}
		}
		s.Messages = msgs
		f.scheduleReply(profileID, s)
	}
	f.log.Info().Str("profile_id", profileID).Str("session_type", sessionType).Int("released", len(pending)).Msg("identification completed")
	return nil
}

// SetWidgetExpanded persists the open/closed state; the first explicit
// expansion creates the session with the welcome message.
func (f *WidgetFacade) SetWidgetExpanded(ctx context.Context, profileID string, expanded bool) (*model.Session, error) {
	s, err := f.sessions.Load(ctx, profileID)
	if errors.Is(err, domain.ErrNotFound) {
		if !expanded {
			return nil, nil
		}
		return f.sessions.CreateNew(ctx, profileID, f.welcomeMessage, true)
	}
	if err != nil {
		return nil, err
	}
	if err := f.sessions.UpdateWidgetState(ctx, profileID, expanded); err != nil {
		return nil, err
	}
	s.IsExpanded = expanded
	return s, nil
}

// SubmitMessageFeedback records thumbs on one message; failures are
// toast-level only.
func (f *WidgetFacade) SubmitMessageFeedback(ctx context.Context, profileID, messageID string, kind model.FeedbackKind, comment string) error {
	opID := "feedback-" + messageID
	f.ops.Add(profileID, model.LoadingOperation{ID: opID, Type: model.OpFeedback, Priority: 1})
	defer f.ops.Remove(profileID, opID)
	if err := f.feedback.SubmitMessageFeedback(ctx, profileID, messageID, kind, comment); err != nil {
		f.notify(profileID, adapter.NoticeError, "We couldn't record your feedback.")
		return err
	}
	return nil
}

// AgentAccepted forwards the handoff backend's acceptance callback.
func (f *WidgetFacade) AgentAccepted(ctx context.Context, profileID string) error {
	return f.lifecycle.AgentAccepted(ctx, profileID)
}

// RecoverProfile is the emergency path for uncaught failures in the
// widget surface (panic middleware).
func (f *WidgetFacade) RecoverProfile(profileID, reason string) bool {
	return f.ops.Recover(profileID, reason)
}

func (f *WidgetFacade) notify(profileID string, kind adapter.NoticeKind, text string) {
	if f.notifier != nil {
		f.notifier.Notify(profileID, adapter.Notice{Kind: kind, Text: text})
	}
}

func identificationAck(ud adapter.UserData) string {
	if ud.Name != "" {
		return fmt.Sprintf("Thanks %s! Your messages are on their way.", ud.Name)
	}
	return "Thanks! Your messages are on their way."
}
