package auth

import (
	"net/http"
	"time"

	"github.com/wolfman30/clinic-booking/internal/identity"
)

const (
	PatientCookie = "patientToken"
	DoctorCookie  = "doctorToken"
)

// CookieName returns the session cookie carrying role's token.
func CookieName(role identity.Role) string {
	if role == identity.RoleDoctor {
		return DoctorCookie
	}
	return PatientCookie
}

// CookiePolicy controls session cookie attributes. Production cookies are
// Secure and cross-site; development cookies are lax and insecure.
type CookiePolicy struct {
	Secure bool
}

func (p CookiePolicy) base(role identity.Role) *http.Cookie {
	c := &http.Cookie{
		Name:     CookieName(role),
		Path:     "/",
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if p.Secure {
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}

// Set writes the session cookie for role.
func (p CookiePolicy) Set(w http.ResponseWriter, role identity.Role, token string, expires time.Time) {
	c := p.base(role)
	c.Value = token
	c.Expires = expires.UTC()
	c.MaxAge = int(time.Until(expires).Seconds())
	http.SetCookie(w, c)
}

// Clear expires the session cookie with the same attributes it was set with.
func (p CookiePolicy) Clear(w http.ResponseWriter, role identity.Role) {
	c := p.base(role)
	c.Value = ""
	c.Expires = time.Unix(0, 0)
	c.MaxAge = -1
	http.SetCookie(w, c)
}
