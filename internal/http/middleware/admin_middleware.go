package middleware

import (
	"net/http"

	"github.com/polymorphcorp/profilegpt/internal/http/response"
	"github.com/polymorphcorp/profilegpt/internal/observability"
	"github.com/polymorphcorp/profilegpt/internal/security"
)

const AdminKeyHeader = "X-Admin-Key"

// AdminKey guards the admin surface with the shared secret. An unset key
// disables the surface entirely rather than leaving it open. Both cases
// are a 403, but the codes are distinct so operators can tell a
// deployment gap from a bad credential.
func AdminKey(configured string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if configured == "" {
				response.Error(w, r, http.StatusForbidden,
					"ADMIN_NOT_CONFIGURED", "admin interface is not configured", nil)
				return
			}
			presented := r.Header.Get(AdminKeyHeader)
			if presented == "" {
				presented = r.URL.Query().Get("key")
			}
			if !security.ValidAdminKey(configured, presented) {
				observability.Audit(r, "admin.auth.denied")
				response.Error(w, r, http.StatusForbidden,
					"INVALID_ADMIN_KEY", "invalid admin key", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
