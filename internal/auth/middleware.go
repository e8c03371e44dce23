package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

type ctxKey struct{}

var userKey ctxKey

type User struct {
	ID string
}

type apiError struct {
	Error string `json:"error"`
}

func FromContext(ctx context.Context) (User, bool) {
	v := ctx.Value(userKey)
	u, ok := v.(User)
	return u, ok
}

func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg})
}

func bearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
	return tok, tok != ""
}

// RequireAuth verifies the bearer token signature and puts the caller's
// user id on the request context. There is no local user table; the id
// is whatever the identity provider signed.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := bearerToken(r)
			if !ok {
				writeErr(w, http.StatusUnauthorized, "missing token")
				return
			}

			claims, err := ParseToken(jwtSecret, tok)
			if err != nil {
				writeErr(w, http.StatusUnauthorized, "invalid token")
				return
			}

			user := User{ID: claims.UserID}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireService guards internal endpoints called by the worker. The
// shared token is compared in constant time.
func RequireService(serviceToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := bearerToken(r)
			if !ok {
				writeErr(w, http.StatusUnauthorized, "missing token")
				return
			}
			if serviceToken == "" ||
				subtle.ConstantTimeCompare([]byte(tok), []byte(serviceToken)) != 1 {
				writeErr(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
