// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"support-widget-engine/internal/domain"
	"support-widget-engine/internal/domain/model"
	"support-widget-engine/internal/domain/ports/adapter"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	return &l
}

// memSessionRepo is a small in-memory implementation used by unit tests.
type memSessionRepo struct {
	mu       sync.RWMutex
	store    map[string]*model.Session // by profileID
	saveErr  error                     // simulate save failures
	findErr  error                     // simulate read failures
	replaced int                       // ReplaceMessages call count
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{store: make(map[string]*model.Session)}
}

func (m *memSessionRepo) clone(s *model.Session) *model.Session {
	cp := *s
	cp.Messages = append([]model.Message(nil), s.Messages...)
	if s.UserContext != nil {
		uc := *s.UserContext
		cp.UserContext = &uc
	}
	return &cp
}

func (m *memSessionRepo) Save(ctx context.Context, qx any, s *model.Session) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[s.ProfileID] = m.clone(s)
	return nil
}

func (m *memSessionRepo) AppendMessage(ctx context.Context, qx any, profileID string, msg *model.Message, isExpanded bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[profileID]
	if !ok {
		return domain.ErrNotFound
	}
	s.AddMessage(*msg)
	return nil
}

func (m *memSessionRepo) ReplaceMessages(ctx context.Context, qx any, profileID string, msgs []model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[profileID]
	if !ok {
		return domain.ErrNotFound
	}
	m.replaced++
	s.Messages = append([]model.Message(nil), msgs...)
	return nil
}

func (m *memSessionRepo) FindByProfile(ctx context.Context, qx any, profileID string) (*model.Session, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[profileID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m.clone(s), nil
}

func (m *memSessionRepo) UpdateStatus(ctx context.Context, qx any, profileID string, status model.SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[profileID]
	if !ok {
		return domain.ErrNotFound
	}
	s.Status = status
	return nil
}

func (m *memSessionRepo) UpdateWidgetState(ctx context.Context, qx any, profileID string, isExpanded bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[profileID]
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
	s, ok := m.store[profileID]
	if !ok {
		return domain.ErrNotFound
	}
	s.UserContext = uc
	return nil
}

func (m *memSessionRepo) Delete(ctx context.Context, qx any, profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[profileID]; !ok {
		return domain.ErrNotFound
	}
	delete(m.store, profileID)
	return nil
}

func (m *memSessionRepo) ListUnfinished(ctx context.Context, qx any) ([]*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Session
	for _, s := range m.store {
		if s.Status == model.SessionEnded || s.Status == model.SessionIdleTimeout {
			continue
		}
		out = append(out, m.clone(s))
	}
	return out, nil
}

// memQuotaStateRepo keeps quota counters in a map.
type memQuotaStateRepo struct {
	mu     sync.RWMutex
	states map[string]*model.QuotaState
	getErr error
}

func newMemQuotaStateRepo() *memQuotaStateRepo {
	return &memQuotaStateRepo{states: make(map[string]*model.QuotaState)}
}

func (m *memQuotaStateRepo) Get(ctx context.Context, profileID string) (*model.QuotaState, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[profileID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (m *memQuotaStateRepo) Save(ctx context.Context, profileID string, st *model.QuotaState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *st
	m.states[profileID] = &cp
	return nil
}

func (m *memQuotaStateRepo) Delete(ctx context.Context, profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, profileID)
	return nil
}

// memFeedbackRepo collects feedback rows.
type memFeedbackRepo struct {
	mu   sync.Mutex
	rows []*model.Feedback
}

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

// fakeNotifier records notices per profile.
type fakeNotifier struct {
	mu      sync.Mutex
	notices map[string][]adapter.Notice
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{notices: make(map[string][]adapter.Notice)}
}

func (f *fakeNotifier) Notify(profileID string, n adapter.Notice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices[profileID] = append(f.notices[profileID], n)
}

func (f *fakeNotifier) count(profileID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notices[profileID])
}

func (f *fakeNotifier) last(profileID string) (adapter.Notice, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ns := f.notices[profileID]
	if len(ns) == 0 {
		return adapter.Notice{}, false
	}
	return ns[len(ns)-1], true
}

// fakeSurface records SetInteractive calls.
type fakeSurface struct {
	mu    sync.Mutex
	calls []bool
}

func (f *fakeSurface) SetInteractive(profileID string, interactive bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, interactive)
}

// fakeHandoff returns a fixed chat id or fails on demand.
type fakeHandoff struct {
	mu       sync.Mutex
	chatID   string
	err      error
	requests []adapter.HandoffRequest
}

func (f *fakeHandoff) RequestHandoff(ctx context.Context, req adapter.HandoffRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.requests = append(f.requests, req)
	if f.chatID == "" {
		return "chat-1", nil
	}
	return f.chatID, nil
}

// fakeIdentity gates sends via a flag.
type fakeIdentity struct {
	allowed bool
	err     error
	data    *adapter.UserData
}

func (f *fakeIdentity) CanSendMessage(ctx context.Context, profileID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.allowed, nil
}

func (f *fakeIdentity) UserContext(ctx context.Context, profileID string) (*adapter.UserData, error) {
	return f.data, nil
}
