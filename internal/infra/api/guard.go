package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"support-widget-engine/internal/infra/logging"
	"support-widget-engine/internal/infra/metrics"
	"support-widget-engine/internal/infra/redis"
	"support-widget-engine/internal/infra/web"
)

type Middleware func(http.Handler) http.Handler

func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func TraceID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tid := uuid.NewString()
			ctx := logging.WithTraceID(r.Context(), tid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequestLog(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := logging.With(r.Context(), logger)
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: 200}
			next.ServeHTTP(ww, r)
			metrics.ObserveHTTPRequest(r.URL.Path, ww.status, time.Since(start))
			l.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.status).
				Dur("duration", time.Since(start)).
				Msg("http_request")
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// ProfileRecoverer is the slice of the facade the panic path needs.
type ProfileRecoverer interface {
	RecoverProfile(profileID, reason string) bool
}

// Recover converts a handler panic into a 500 and clears the profile's
// operation state so the widget doesn't stay locked behind a loading
// indicator that will never resolve.
func Recover(logger *zerolog.Logger, rec ProfileRecoverer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					l := logging.With(r.Context(), logger)
					l.Error().Interface("panic", p).Msg("panic recovered")
					if pid := ProfileFromContext(r.Context()); pid != "" && rec != nil {
						if rec.RecoverProfile(pid, "panic") {
							metrics.IncEmergencyRecovery("panic")
						}
					}
					http.Error(w, "internal error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type profileKey struct{}

func ProfileFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(profileKey{}).(string); ok {
		return v
	}
	return ""
}

// WidgetAuth verifies the widget token and binds the profile id into the
// request context. Handlers never read a profile id from the body or
// path, only from the verified token.
func WidgetAuth(am *web.AuthManager) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := am.ParseFromRequest(r)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), profileKey{}, claims.ProfileID)
			ctx = logging.WithProfileID(ctx, claims.ProfileID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimit caps requests per profile per minute at the edge. It sits in
// front of the in-engine spam guard, which enforces the inter-message
// cooldown separately.
func RateLimit(limiter *redis.RateLimiter, perMinute int, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || perMinute <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			pid := ProfileFromContext(r.Context())
			if pid == "" {
				next.ServeHTTP(w, r)
				return
			}
			ok, err := limiter.Allow(r.Context(), redis.ProfileKey(pid, "api"), perMinute, time.Minute)
			if err != nil {
				// fail open so a Redis blip doesn't take the widget down
				logging.With(r.Context(), logger).Warn().Err(err).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				metrics.IncRateLimited()
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
