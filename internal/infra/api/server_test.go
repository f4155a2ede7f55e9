package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"support-widget-engine/internal/application"
	"support-widget-engine/internal/domain"
	"support-widget-engine/internal/domain/model"
	"support-widget-engine/internal/domain/ports/adapter"
	"support-widget-engine/internal/infra/web"
	"support-widget-engine/internal/usecase"
)

// The server tests run against real use cases over in-memory stores; only
// the outer infrastructure (Postgres, Redis, the AI provider) is faked.

type stubSessionRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Session
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{store: make(map[string]*model.Session)}
}

func (m *stubSessionRepo) clone(s *model.Session) *model.Session {
	cp := *s
	cp.Messages = append([]model.Message(nil), s.Messages...)
	if s.UserContext != nil {
		uc := *s.UserContext
		cp.UserContext = &uc
	}
	return &cp
}

func (m *stubSessionRepo) Save(ctx context.Context, qx any, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[s.ProfileID] = m.clone(s)
	return nil
}

func (m *stubSessionRepo) AppendMessage(ctx context.Context, qx any, profileID string, msg *model.Message, isExpanded bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[profileID]
	if !ok {
		return domain.ErrNotFound
	}
	s.AddMessage(*msg)
	return nil
}

func (m *stubSessionRepo) ReplaceMessages(ctx context.Context, qx any, profileID string, msgs []model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[profileID]
	if !ok {
		return domain.ErrNotFound
	}
	s.Messages = append([]model.Message(nil), msgs...)
	return nil
}

func (m *stubSessionRepo) FindByProfile(ctx context.Context, qx any, profileID string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[profileID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m.clone(s), nil
}

func (m *stubSessionRepo) UpdateStatus(ctx context.Context, qx any, profileID string, status model.SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[profileID]
	if !ok {
		return domain.ErrNotFound
	}
	s.Status = status
	return nil
}

func (m *stubSessionRepo) UpdateWidgetState(ctx context.Context, qx any, profileID string, isExpanded bool) error {
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

func (m *stubSessionRepo) UpdateUserContext(ctx context.Context, qx any, profileID string, uc *model.UserContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[profileID]
	if !ok {
		return domain.ErrNotFound
	}
	s.UserContext = uc
	return nil
}

func (m *stubSessionRepo) Delete(ctx context.Context, qx any, profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[profileID]; !ok {
		return domain.ErrNotFound
	}
	delete(m.store, profileID)
	return nil
}

func (m *stubSessionRepo) ListUnfinished(ctx context.Context, qx any) ([]*model.Session, error) {
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

type stubQuotaRepo struct {
	mu     sync.RWMutex
	states map[string]*model.QuotaState
}

func (m *stubQuotaRepo) Get(ctx context.Context, profileID string) (*model.QuotaState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[profileID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (m *stubQuotaRepo) Save(ctx context.Context, profileID string, st *model.QuotaState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *st
	m.states[profileID] = &cp
	return nil
}

func (m *stubQuotaRepo) Delete(ctx context.Context, profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, profileID)
	return nil
}

type stubFeedbackRepo struct {
	mu   sync.Mutex
	rows []*model.Feedback
}

func (m *stubFeedbackRepo) Save(ctx context.Context, qx any, fb *model.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *fb
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *stubFeedbackRepo) ListBySession(ctx context.Context, qx any, sessionID string) ([]*model.Feedback, error) {
	return nil, nil
}

type stubHub struct {
	mu      sync.Mutex
	notices map[string][]adapter.Notice
}

func (h *stubHub) Notify(profileID string, n adapter.Notice) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.notices == nil {
		h.notices = make(map[string][]adapter.Notice)
	}
	h.notices[profileID] = append(h.notices[profileID], n)
}

func (h *stubHub) Drain(profileID string) []adapter.Notice {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.notices[profileID]
	delete(h.notices, profileID)
	return out
}

type stubAI struct{}

func (stubAI) Reply(ctx context.Context, modelName string, messages []adapter.Message) (string, error) {
	return "Sure, here's what I found.", nil
}

func (stubAI) CountTokens(ctx context.Context, modelName string, messages []adapter.Message) (int, error) {
	return len(messages), nil
}

// panicAI blows up inside the request path to exercise the recovery
// middleware.
type panicAI struct{}

func (panicAI) Reply(ctx context.Context, modelName string, messages []adapter.Message) (string, error) {
	panic("provider crashed")
}

func (panicAI) CountTokens(ctx context.Context, modelName string, messages []adapter.Message) (int, error) {
	return len(messages), nil
}

// recordingSurface remembers which profiles were force-unlocked.
type recordingSurface struct {
	mu       sync.Mutex
	unlocked []string
}

func (s *recordingSurface) SetInteractive(profileID string, interactive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if interactive {
		s.unlocked = append(s.unlocked, profileID)
	}
}

type stubHandoff struct{}

func (stubHandoff) RequestHandoff(ctx context.Context, req adapter.HandoffRequest) (string, error) {
	return "chat-99", nil
}

type openIdentity struct{}

func (openIdentity) CanSendMessage(ctx context.Context, profileID string) (bool, error) {
	return true, nil
}

func (openIdentity) UserContext(ctx context.Context, profileID string) (*adapter.UserData, error) {
	return nil, nil
}

type inlineRunner struct{}

func (inlineRunner) Submit(task func(ctx context.Context) error) error {
	return task(context.Background())
}

func newTestServer(t *testing.T) (*httptest.Server, *web.AuthManager, *stubSessionRepo) {
	t.Helper()
	return newTestServerWith(t, stubAI{}, nil)
}

func newTestServerWith(t *testing.T, ai adapter.AIReplyService, surface adapter.InteractiveSurface) (*httptest.Server, *web.AuthManager, *stubSessionRepo) {
	t.Helper()
	logger := zerolog.Nop()

	repo := newStubSessionRepo()
	hub := &stubHub{}

	sessions := usecase.NewSessionUseCase(usecase.WidgetConfig{AutoOpenWithMessages: true}, repo, nil, &logger)
	quota := usecase.NewQuotaUseCase(model.QuotaConfig{
		SessionEnabled: true, SessionLimit: 50,
	}, &stubQuotaRepo{states: make(map[string]*model.QuotaState)}, hub, &logger)
	spam := usecase.NewSpamGuardUseCase(time.Millisecond, hub, &logger)
	ops := usecase.NewOperationCoordinator(usecase.OpsConfig{}, surface, &logger)
	lifecycle := usecase.NewLifecycleUseCase(usecase.LifecycleConfig{
		IdleTimeout:        10 * time.Minute,
		MaxSessionDuration: time.Hour,
		HandoffTimeout:     2 * time.Minute,
	}, sessions, quota, spam, stubHandoff{}, openIdentity{}, hub, &logger)
	feedback := usecase.NewFeedbackUseCase(sessions, &stubFeedbackRepo{}, &logger)

	facade := application.NewWidgetFacade(application.FacadeDeps{
		Sessions:  sessions,
		Lifecycle: lifecycle,
		Quota:     quota,
		Spam:      spam,
		Ops:       ops,
		Feedback:  feedback,
		AI:        ai,
		Identity:  openIdentity{},
		Notifier:  hub,
		Notices:   hub,
		Runner:    inlineRunner{},
	}, "test-model", "Hi! How can we help?", 30, &logger)

	auth := web.NewAuthManager("test-secret", time.Hour)
	srv := NewServer(facade, auth, nil, 0, &logger)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, auth, repo
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func bootstrap(t *testing.T, ts *httptest.Server, profileID string) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/widget/bootstrap", "", map[string]string{"profileId": profileID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bootstrap status = %d", resp.StatusCode)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode bootstrap: %v", err)
	}
	if body.Token == "" {
		t.Fatal("empty token")
	}
	return body.Token
}

func TestServer_Health(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestServer_BootstrapRequiresProfileID(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/widget/bootstrap", "", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestServer_AuthedRoutesRejectMissingToken(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp := doJSON(t, http.MethodGet, ts.URL+"/v1/widget/state", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestServer_AuthedRoutesRejectForgedToken(t *testing.T) {
	ts, _, _ := newTestServer(t)
	forged := web.NewAuthManager("other-secret", time.Hour)
	tok, err := forged.Mint("p1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	resp := doJSON(t, http.MethodGet, ts.URL+"/v1/widget/state", tok, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestServer_SendMessageRoundTrip(t *testing.T) {
	ts, _, repo := newTestServer(t)
	tok := bootstrap(t, ts, "p1")

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/widget/messages", tok, map[string]string{"content": "hello"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var msg model.Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.Type != model.MessageUser || msg.Content != "hello" {
		t.Fatalf("message = %+v", msg)
	}

	s, err := repo.FindByProfile(context.Background(), nil, "p1")
	if err != nil {
		t.Fatalf("session not created: %v", err)
	}
	// welcome + user + inline AI reply
	if len(s.Messages) != 3 {
		t.Fatalf("transcript length = %d, want 3", len(s.Messages))
	}
}

func TestServer_SendMessageEmptyContent(t *testing.T) {
	ts, _, _ := newTestServer(t)
	tok := bootstrap(t, ts, "p1")
	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/widget/messages", tok, map[string]string{"content": "   "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var eb errorBody
	if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if eb.Error != "invalid_argument" {
		t.Fatalf("error = %q", eb.Error)
	}
}

func TestServer_ErrorMapping(t *testing.T) {
	cases := []struct {
		status   model.SessionStatus
		wantCode int
		wantName string
	}{
		{model.SessionWaitingHuman, http.StatusConflict, "awaiting_human"},
		{model.SessionEnded, http.StatusConflict, "session_ended"},
		{model.SessionQuotaExceeded, http.StatusTooManyRequests, "quota_exceeded"},
	}
	for _, tc := range cases {
		t.Run(tc.wantName, func(t *testing.T) {
			ts, _, repo := newTestServer(t)
			tok := bootstrap(t, ts, "p1")
			s := model.NewSession("s1", "p1")
			s.Status = tc.status
			if err := repo.Save(context.Background(), nil, s); err != nil {
				t.Fatalf("seed: %v", err)
			}

			resp := doJSON(t, http.MethodPost, ts.URL+"/v1/widget/messages", tok, map[string]string{"content": "hi"})
			if resp.StatusCode != tc.wantCode {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.wantCode)
			}
			var eb errorBody
			if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if eb.Error != tc.wantName {
				t.Fatalf("error = %q, want %q", eb.Error, tc.wantName)
			}
		})
	}
}

func TestServer_StateReflectsSession(t *testing.T) {
	ts, _, _ := newTestServer(t)
	tok := bootstrap(t, ts, "p1")

	doJSON(t, http.MethodPost, ts.URL+"/v1/widget/messages", tok, map[string]string{"content": "hello"})

	resp := doJSON(t, http.MethodGet, ts.URL+"/v1/widget/state", tok, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var st application.WidgetState
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if st.Session == nil || len(st.Session.Messages) != 3 {
		t.Fatalf("state session = %+v", st.Session)
	}
	if st.BlockInteractions {
		t.Fatal("interactions blocked with no in-flight operation")
	}
}

func TestServer_HandoffFlow(t *testing.T) {
	ts, _, repo := newTestServer(t)
	tok := bootstrap(t, ts, "p1")
	doJSON(t, http.MethodPost, ts.URL+"/v1/widget/messages", tok, map[string]string{"content": "human please"})

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/widget/handoff", tok, map[string]any{
		"reason":  "complex issue",
		"context": map[string]string{"pageUrl": "https://example.com/pricing"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("handoff status = %d", resp.StatusCode)
	}
	var body struct {
		ChatID string `json:"chatId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode handoff: %v", err)
	}
	if body.ChatID != "chat-99" {
		t.Fatalf("chatId = %q", body.ChatID)
	}

	s, _ := repo.FindByProfile(context.Background(), nil, "p1")
	if s.Status != model.SessionWaitingHuman {
		t.Fatalf("status = %q, want waiting_human", s.Status)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/v1/widget/handoff/accepted", tok, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("accepted status = %d", resp.StatusCode)
	}
	s, _ = repo.FindByProfile(context.Background(), nil, "p1")
	if s.Status != model.SessionActive {
		t.Fatalf("status = %q after accept, want active", s.Status)
	}
}

func TestServer_EndWithSatisfaction(t *testing.T) {
	ts, _, repo := newTestServer(t)
	tok := bootstrap(t, ts, "p1")
	doJSON(t, http.MethodPost, ts.URL+"/v1/widget/messages", tok, map[string]string{"content": "hello"})

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/widget/end", tok, map[string]any{
		"satisfaction": map[string]string{"kind": "positive", "comment": "thanks"},
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("end status = %d", resp.StatusCode)
	}
	s, _ := repo.FindByProfile(context.Background(), nil, "p1")
	if s.Status != model.SessionEnded {
		t.Fatalf("status = %q, want ended", s.Status)
	}
}

func TestServer_EndWithoutBody(t *testing.T) {
	ts, _, repo := newTestServer(t)
	tok := bootstrap(t, ts, "p1")
	doJSON(t, http.MethodPost, ts.URL+"/v1/widget/messages", tok, map[string]string{"content": "hello"})

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/widget/end", tok, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("end status = %d", resp.StatusCode)
	}
	s, _ := repo.FindByProfile(context.Background(), nil, "p1")
	if s.Status != model.SessionEnded {
		t.Fatalf("status = %q, want ended", s.Status)
	}
}

func TestServer_NewChat(t *testing.T) {
	ts, _, _ := newTestServer(t)
	tok := bootstrap(t, ts, "p1")
	doJSON(t, http.MethodPost, ts.URL+"/v1/widget/messages", tok, map[string]string{"content": "old"})

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/widget/new", tok, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("new chat status = %d", resp.StatusCode)
	}
	var s model.Session
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if s.Status != model.SessionActive || len(s.Messages) != 1 {
		t.Fatalf("new session = %+v", s)
	}
}

func TestServer_WidgetStateRequiresFlag(t *testing.T) {
	ts, _, _ := newTestServer(t)
	tok := bootstrap(t, ts, "p1")

	resp := doJSON(t, http.MethodPatch, ts.URL+"/v1/widget/widget-state", tok, map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPatch, ts.URL+"/v1/widget/widget-state", tok, map[string]any{"isExpanded": true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var s model.Session
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if !s.IsExpanded {
		t.Fatal("session not expanded")
	}
}

func TestServer_FeedbackRequiresMessageID(t *testing.T) {
	ts, _, _ := newTestServer(t)
	tok := bootstrap(t, ts, "p1")

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/widget/feedback", tok, map[string]string{"kind": "positive"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestServer_FeedbackOnUnknownMessage(t *testing.T) {
	ts, _, _ := newTestServer(t)
	tok := bootstrap(t, ts, "p1")
	doJSON(t, http.MethodPost, ts.URL+"/v1/widget/messages", tok, map[string]string{"content": "hello"})

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/widget/feedback", tok, map[string]string{
		"messageId": "nope", "kind": "positive",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestServer_IdentificationEndpoint(t *testing.T) {
	ts, _, repo := newTestServer(t)
	tok := bootstrap(t, ts, "p1")
	doJSON(t, http.MethodPost, ts.URL+"/v1/widget/messages", tok, map[string]string{"content": "hello"})

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/widget/identification", tok, map[string]any{
		"userData":    map[string]string{"name": "Sam", "email": "sam@example.com"},
		"sessionType": "chat",
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	s, _ := repo.FindByProfile(context.Background(), nil, "p1")
	if s.UserContext == nil || s.UserContext.Name != "Sam" {
		t.Fatalf("user context = %+v", s.UserContext)
	}
}

func TestServer_PanicRecoveryUnlocksProfile(t *testing.T) {
	surface := &recordingSurface{}
	ts, _, _ := newTestServerWith(t, panicAI{}, surface)
	tok := bootstrap(t, ts, "profile-1")

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/widget/messages", tok, map[string]string{"content": "hello"})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}

	surface.mu.Lock()
	defer surface.mu.Unlock()
	if len(surface.unlocked) != 1 || surface.unlocked[0] != "profile-1" {
		t.Fatalf("unlocked = %v, want exactly [profile-1]", surface.unlocked)
	}
}
