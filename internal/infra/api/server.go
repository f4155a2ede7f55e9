package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"support-widget-engine/internal/application"
	"support-widget-engine/internal/domain"
	"support-widget-engine/internal/domain/model"
	"support-widget-engine/internal/domain/ports/adapter"
	"support-widget-engine/internal/infra/metrics"
	"support-widget-engine/internal/infra/redis"
	"support-widget-engine/internal/infra/web"
)

// Server exposes the widget engine over JSON HTTP. The embed script
// bootstraps a profile token once, then drives the conversation through
// the authenticated /v1/widget routes.
type Server struct {
	facade  *application.WidgetFacade
	auth    *web.AuthManager
	limiter *redis.RateLimiter
	perMin  int
	log     *zerolog.Logger
}

func NewServer(facade *application.WidgetFacade, auth *web.AuthManager, limiter *redis.RateLimiter, ratePerMinute int, logger *zerolog.Logger) *Server {
	return &Server{
		facade:  facade,
		auth:    auth,
		limiter: limiter,
		perMin:  ratePerMinute,
		log:     logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1/widget", func(r chi.Router) {
		base := []Middleware{TraceID(), RequestLog(s.log), Recover(s.log, nil), Timeout(30 * time.Second)}

		// Bootstrap is the only unauthenticated route; it mints the token
		// everything else requires.
		r.Method(http.MethodPost, "/bootstrap", Chain(http.HandlerFunc(s.handleBootstrap), base...))

		// The profile-aware recoverer sits inside WidgetAuth: a panic must
		// unwind with the token's profile bound in the context, or the
		// emergency path has no profile to unlock.
		authed := append(base, WidgetAuth(s.auth), Recover(s.log, s.facade), RateLimit(s.limiter, s.perMin, s.log))
		route := func(method, pattern string, h http.HandlerFunc) {
			r.Method(method, pattern, Chain(h, authed...))
		}

		route(http.MethodGet, "/state", s.handleState)
		route(http.MethodPost, "/messages", s.handleSendMessage)
		route(http.MethodPost, "/handoff", s.handleHandoff)
		route(http.MethodPost, "/handoff/accepted", s.handleAgentAccepted)
		route(http.MethodPost, "/end", s.handleEnd)
		route(http.MethodPost, "/new", s.handleNewChat)
		route(http.MethodPost, "/identification", s.handleIdentification)
		route(http.MethodPatch, "/widget-state", s.handleWidgetState)
		route(http.MethodPost, "/feedback", s.handleFeedback)
	})

	return r
}

// ---------- handlers ----------

func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProfileID string `json:"profileId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ProfileID == "" {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	tok, err := s.auth.Mint(body.ProfileID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": tok})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, err := s.facade.GetState(r.Context(), ProfileFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	msg, err := s.facade.SendMessage(r.Context(), ProfileFromContext(r.Context()), body.Content)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSpamCooldown):
			metrics.IncSpamBlock()
			metrics.IncSend("rejected")
		case errors.Is(err, domain.ErrQuotaExceeded):
			metrics.IncQuotaBlock()
			metrics.IncSend("rejected")
		default:
			metrics.IncSend("rejected")
		}
		writeError(w, err)
		return
	}
	if msg.IsPending {
		metrics.IncSend("pending")
	} else {
		metrics.IncSend("accepted")
	}
	writeJSON(w, http.StatusAccepted, msg)
}

func (s *Server) handleHandoff(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason  string                 `json:"reason"`
		Context adapter.HandoffContext `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	chatID, err := s.facade.RequestHuman(r.Context(), ProfileFromContext(r.Context()), body.Reason, body.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"chatId": chatID})
}

func (s *Server) handleAgentAccepted(w http.ResponseWriter, r *http.Request) {
	if err := s.facade.AgentAccepted(r.Context(), ProfileFromContext(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Satisfaction *struct {
			Kind    string `json:"kind"`
			Comment string `json:"comment"`
		} `json:"satisfaction"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, domain.ErrInvalidArgument)
			return
		}
	}
	var sat *application.SatisfactionInput
	if body.Satisfaction != nil {
		sat = &application.SatisfactionInput{
			Kind:    model.FeedbackKind(body.Satisfaction.Kind),
			Comment: body.Satisfaction.Comment,
		}
	}
	if err := s.facade.EndConversation(r.Context(), ProfileFromContext(r.Context()), sat); err != nil {
		writeError(w, err)
		return
	}
	metrics.IncSessionEvent("ended")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNewChat(w http.ResponseWriter, r *http.Request) {
	sess, err := s.facade.StartNewChat(r.Context(), ProfileFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.IncSessionEvent("created")
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleIdentification(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserData    adapter.UserData `json:"userData"`
		SessionType string           `json:"sessionType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	if err := s.facade.CompleteIdentification(r.Context(), ProfileFromContext(r.Context()), body.UserData, body.SessionType); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWidgetState(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IsExpanded *bool `json:"isExpanded"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.IsExpanded == nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	sess, err := s.facade.SetWidgetExpanded(r.Context(), ProfileFromContext(r.Context()), *body.IsExpanded)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MessageID string `json:"messageId"`
		Kind      string `json:"kind"`
		Comment   string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.MessageID == "" {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	if err := s.facade.SubmitMessageFeedback(r.Context(), ProfileFromContext(r.Context()), body.MessageID, model.FeedbackKind(body.Kind), body.Comment); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------- responses ----------

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError maps engine sentinels onto HTTP statuses. Gate rejections
// are client errors; only infrastructure failures become 5xx.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	name := "internal"
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		code, name = http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, domain.ErrNotFound):
		code, name = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrSpamCooldown):
		code, name = http.StatusTooManyRequests, "spam_cooldown"
	case errors.Is(err, domain.ErrQuotaExceeded):
		code, name = http.StatusTooManyRequests, "quota_exceeded"
	case errors.Is(err, domain.ErrSessionEnded):
		code, name = http.StatusConflict, "session_ended"
	case errors.Is(err, domain.ErrAwaitingHuman):
		code, name = http.StatusConflict, "awaiting_human"
	case errors.Is(err, domain.ErrSessionNotActive):
		code, name = http.StatusConflict, "session_not_active"
	case errors.Is(err, domain.ErrNotIdentified):
		code, name = http.StatusForbidden, "not_identified"
	case errors.Is(err, domain.ErrHandoffFailed):
		code, name = http.StatusBadGateway, "handoff_failed"
	}
	writeJSON(w, code, errorBody{Error: name, Message: err.Error()})
}
