package main

import (
	"context"
	"sync"

	"support-widget-engine/internal/domain"
	"support-widget-engine/internal/domain/model"
	"support-widget-engine/internal/domain/ports/repository"
)

// In-memory stores so the demo runs without Postgres or Redis.

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

var _ repository.SessionRepository = (*memSessionRepo)(nil)

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*model.Session)}
}

func (m *memSessionRepo) Save(ctx context.Context, qx any, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	cp.Messages = append([]model.Message(nil), s.Messages...)
	m.sessions[s.ProfileID] = &cp
	return nil
}

func (m *memSessionRepo) AppendMessage(ctx context.Context, qx any, profileID string, msg *model.Message, isExpanded bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[profileID]
	if !ok {
		return domain.ErrNotFound
	}
	s.AddMessage(*msg)
	return nil
}

func (m *memSessionRepo) ReplaceMessages(ctx context.Context, qx any, profileID string, msgs []model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[profileID]
	if !ok {
		return domain.ErrNotFound
	}
	s.Messages = append([]model.Message(nil), msgs...)
	return nil
}

func (m *memSessionRepo) FindByProfile(ctx context.Context, qx any, profileID string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[profileID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	cp.Messages = append([]model.Message(nil), s.Messages...)
	return &cp, nil
}

func (m *memSessionRepo) UpdateStatus(ctx context.Context, qx any, profileID string, status model.SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[profileID]
	if !ok {
		return domain.ErrNotFound
	}
	s.Status = status
	s.Touch()
	return nil
}

func (m *memSessionRepo) UpdateWidgetState(ctx context.Context, qx any, profileID string, isExpanded bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[profileID]
	if !ok {
		return domain.ErrNotFound
	}
	s.IsExpanded = isExpanded
	s.ExpandStateKnown = true
	return nil
}

func (m *memSessionRepo) UpdateUserContext(ctx context.Context, qx any, profileID string, uc *model.UserContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[profileID]
	if !ok {
		return domain.ErrNotFound
	}
	s.UserContext = uc
	return nil
}

func (m *memSessionRepo) Delete(ctx context.Context, qx any, profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[profileID]; !ok {
		return domain.ErrNotFound
	}
	delete(m.sessions, profileID)
	return nil
}

func (m *memSessionRepo) ListUnfinished(ctx context.Context, qx any) ([]*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Session
	for _, s := range m.sessions {
		if s.Status == model.SessionEnded || s.Status == model.SessionIdleTimeout {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

type memQuotaRepo struct {
	mu     sync.Mutex
	states map[string]*model.QuotaState
}

var _ repository.QuotaStateRepository = (*memQuotaRepo)(nil)

func newMemQuotaRepo() *memQuotaRepo {
	return &memQuotaRepo{states: make(map[string]*model.QuotaState)}
}

func (m *memQuotaRepo) Get(ctx context.Context, profileID string) (*model.QuotaState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[profileID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (m *memQuotaRepo) Save(ctx context.Context, profileID string, st *model.QuotaState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *st
	m.states[profileID] = &cp
	return nil
}

func (m *memQuotaRepo) Delete(ctx context.Context, profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, profileID)
	return nil
}

type memFeedbackRepo struct {
	mu   sync.Mutex
	rows []*model.Feedback
}

var _ repository.FeedbackRepository = (*memFeedbackRepo)(nil)

func newMemFeedbackRepo() *memFeedbackRepo { return &memFeedbackRepo{} }

func (m *memFeedbackRepo) Save(ctx context.Context, qx any, fb *model.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *fb
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memFeedbackRepo) ListBySession(ctx context.Context, qx any, sessionID string) ([]*model.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Feedback
	for _, fb := range m.rows {
		if fb.SessionID == sessionID {
			cp := *fb
			out = append(out, &cp)
		}
	}
	return out, nil
}
