package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/workshop-scheduling/internal/appointment"
	"github.com/hackgods/workshop-scheduling/internal/auth"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// PrincipalLoader resolves the token subject to the stored principal, so a
// deactivated account is rejected even while its token is still valid.
type PrincipalLoader interface {
	GetPrincipalByID(ctx context.Context, id uuid.UUID) (*auth.Principal, error)
}

// RequestIDMiddleware adds a unique request ID to each request context
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware logs HTTP requests with method, path, status, duration, and request ID
func LoggingMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", GetRequestID(r.Context())),
			}

			level := slog.LevelInfo
			if wrapped.statusCode >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			log.Log(r.Context(), level, "http request", attrs...)
		})
	}
}

// Authenticate resolves the bearer token to an active principal and stores
// it in the request context.
func Authenticate(tokens *auth.TokenManager, principals PrincipalLoader, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "missing bearer token")
				return
			}

			claims, err := tokens.Parse(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "invalid or expired token")
				return
			}
			id, err := claims.PrincipalID()
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "invalid token subject")
				return
			}

			p, err := principals.GetPrincipalByID(r.Context(), id)
			if err != nil {
				if errors.Is(err, appointment.ErrPrincipalNotFound) {
					writeError(w, http.StatusUnauthorized, "unauthenticated", "unknown principal")
					return
				}
				log.ErrorContext(r.Context(), "load principal failed",
					slog.String("principal_id", id.String()),
					slog.Any("err", err),
				)
				writeError(w, http.StatusInternalServerError, "internal_error", "could not load principal")
				return
			}
			if !p.Authenticated() {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "account is inactive")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}

// Authorize rejects the request unless the context principal may perform op.
func Authorize(policy *auth.Policy, op auth.Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := policy.Authorize(auth.PrincipalFrom(r.Context()), op); err != nil {
				if errors.Is(err, auth.ErrUnauthenticated) {
					writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
					return
				}
				writeError(w, http.StatusForbidden, "permission_denied", err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
