package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/user/tasktalk/internal/auth"
)

type userKey struct{}

func withUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

func userFromContext(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(userKey{}).(string)
	return u, ok && u != ""
}

// authorize checks that the authenticated user is the one named in the path.
func authorize(ctx context.Context, pathUser string) (string, huma.StatusError) {
	user, ok := userFromContext(ctx)
	if !ok {
		return "", newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required")
	}
	if pathUser != "" && pathUser != user {
		return "", newAPIError(http.StatusForbidden, "forbidden", "token does not match user")
	}
	return user, nil
}

// authMiddleware requires a bearer token on every /api/ route.
func (s *server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required"))
			return
		}
		user, err := s.verify(token)
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials"))
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

func (s *server) verify(token string) (string, error) {
	if s.cfg.Verifier == nil {
		return "", auth.ErrNoSecret
	}
	return s.cfg.Verifier.Verify(token)
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.GetStatus())
	_ = json.NewEncoder(w).Encode(err)
}
