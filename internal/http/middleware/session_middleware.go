package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/polymorphcorp/profilegpt/internal/session"
)

const SessionCookieName = "session_id"

const sessionIDKey contextKey = "session_id"

// Session assigns every request a session token, minting one and setting
// the cookie when the visitor arrives without it.
func Session(ttl time.Duration, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(SessionCookieName); err == nil && len(c.Value) == session.TokenLength {
				id = c.Value
			}
			if id == "" {
				id = session.NewToken()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    id,
					Path:     "/",
					MaxAge:   int(ttl.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx := context.WithValue(r.Context(), sessionIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}
