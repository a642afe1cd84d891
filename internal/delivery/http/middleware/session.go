package middleware

import (
	"errors"
	"net/http"
	"strings"

	"navidrive/internal/application/session"
	"navidrive/internal/delivery/http/handler"
	domain "navidrive/internal/domain/session"
)

// Session middleware resolves the session token to a live runtime
func Session(sessions session.Service) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				handler.SendError(w, "Session token required", http.StatusUnauthorized)
				return
			}

			rt, err := sessions.Get(r.Context(), token)
			if err != nil {
				if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrSessionExpired) {
					handler.SendError(w, "Invalid or expired session", http.StatusUnauthorized)
					return
				}
				handler.SendServiceError(w, err, "Failed to load session")
				return
			}

			next(w, r.WithContext(handler.WithSession(r.Context(), rt)))
		}
	}
}

// OptionalSession middleware adds the runtime to context if the token is valid, but doesn't require it
func OptionalSession(sessions session.Service) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token != "" {
				if rt, err := sessions.Get(r.Context(), token); err == nil {
					r = r.WithContext(handler.WithSession(r.Context(), rt))
				}
			}
			next(w, r)
		}
	}
}

func extractToken(r *http.Request) string {
	// Check Authorization header
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	// Check query parameter (EventSource cannot set headers)
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	return ""
}
