package middleware

import (
	"net/http"

	"github.com/wolfman30/clinic-booking/internal/apperr"
	"github.com/wolfman30/clinic-booking/internal/auth"
	"github.com/wolfman30/clinic-booking/internal/http/respond"
	"github.com/wolfman30/clinic-booking/internal/identity"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// SessionAuthenticator verifies a session token issued for a role.
type SessionAuthenticator interface {
	Authenticate(token string, role identity.Role) (identity.Identity, error)
}

// RequireSession authenticates the session cookie of the first listed role that
// presents one and attaches the caller to the request context.
func RequireSession(authenticator SessionAuthenticator, logger *logging.Logger, roles ...identity.Role) func(http.Handler) http.Handler {
	if authenticator == nil {
		panic("middleware: session authenticator required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var lastErr error = apperr.Unauthorized("Not authorized. Please log in again.")
			for _, role := range roles {
				cookie, err := r.Cookie(auth.CookieName(role))
				if err != nil || cookie.Value == "" {
					continue
				}
				caller, err := authenticator.Authenticate(cookie.Value, role)
				if err != nil {
					logger.Debug("session rejected", "role", role, "error", err)
					lastErr = err
					continue
				}
				next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), caller)))
				return
			}
			respond.Error(w, r, logger, lastErr)
		})
	}
}
