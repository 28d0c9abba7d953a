package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/clinic-booking/internal/apperr"
	"github.com/wolfman30/clinic-booking/internal/http/respond"
	"github.com/wolfman30/clinic-booking/internal/identity"
)

// AdminJWT enforces an HMAC-signed bearer JWT for admin endpoints and attaches
// an admin identity to the request context.
func AdminJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				respond.Error(w, r, nil, apperr.Unauthorized("Admin access is disabled."))
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				respond.Error(w, r, nil, apperr.Unauthorized("Missing authorization header."))
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")
			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				respond.Error(w, r, nil, apperr.Unauthorized("Invalid admin token."))
				return
			}
			subject := claims.Subject
			if subject == "" {
				subject = "admin"
			}
			ctx := identity.WithIdentity(r.Context(), identity.Identity{ID: subject, Role: identity.RoleAdmin})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
