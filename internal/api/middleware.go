package api

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/sellvid/backend/internal/models"
)

type contextKey string

const userContextKey contextKey = "user"

// APIKeyAuth guards all routes with a shared key. An empty configured key
// disables the check (local development).
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				respondError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// UserResolver maps the verified upstream identity headers to an internal
// user record and attaches it to the request context. Token verification
// happens at the gateway in front of this service.
func (h *Handlers) UserResolver(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		externalID := r.Header.Get("X-User-Id")
		if externalID == "" {
			respondError(w, http.StatusUnauthorized, "missing user identity")
			return
		}

		user, err := h.db.ResolveUser(r.Context(), externalID, r.Header.Get("X-User-Email"))
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to resolve user")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}
