package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wolfman30/clinic-booking/internal/apperr"
	"github.com/wolfman30/clinic-booking/internal/auth"
	"github.com/wolfman30/clinic-booking/internal/identity"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

type stubAuthenticator map[string]identity.Identity

func (s stubAuthenticator) Authenticate(token string, role identity.Role) (identity.Identity, error) {
	id, ok := s[token]
	if !ok || id.Role != role {
		return identity.Identity{}, apperr.Unauthorized("Not authorized. Please log in again.")
	}
	return id, nil
}

func TestRequireSession(t *testing.T) {
	authenticator := stubAuthenticator{
		"pat-token": {ID: "pat-1", Role: identity.RolePatient},
		"doc-token": {ID: "doc-1", Role: identity.RoleDoctor},
	}

	tests := []struct {
		name     string
		roles    []identity.Role
		cookies  map[string]string
		wantCode int
		wantID   string
	}{
		{"no cookie", []identity.Role{identity.RolePatient}, nil, http.StatusUnauthorized, ""},
		{"patient cookie", []identity.Role{identity.RolePatient}, map[string]string{auth.PatientCookie: "pat-token"}, http.StatusOK, "pat-1"},
		{"forged cookie", []identity.Role{identity.RolePatient}, map[string]string{auth.PatientCookie: "forged"}, http.StatusUnauthorized, ""},
		{"doctor cookie on patient route", []identity.Role{identity.RolePatient}, map[string]string{auth.DoctorCookie: "doc-token"}, http.StatusUnauthorized, ""},
		{"patient token in doctor cookie", []identity.Role{identity.RoleDoctor}, map[string]string{auth.DoctorCookie: "pat-token"}, http.StatusUnauthorized, ""},
		{"either role", []identity.Role{identity.RolePatient, identity.RoleDoctor}, map[string]string{auth.DoctorCookie: "doc-token"}, http.StatusOK, "doc-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID string
			mw := RequireSession(authenticator, logging.Default(), tt.roles...)
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				caller, ok := identity.FromContext(r.Context())
				if !ok {
					t.Fatalf("expected identity in context")
				}
				gotID = caller.ID
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/appointment/patient", nil)
			for name, value := range tt.cookies {
				req.AddCookie(&http.Cookie{Name: name, Value: value})
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if gotID != tt.wantID {
				t.Fatalf("expected caller %q, got %q", tt.wantID, gotID)
			}
		})
	}
}

func TestRequestLoggerRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter("info", &buf)
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/appointment", nil))

	out := buf.String()
	if !bytes.Contains([]byte(out), []byte(`"status":409`)) {
		t.Fatalf("expected status in log line, got %s", out)
	}
	if !bytes.Contains([]byte(out), []byte(`"path":"/api/appointment"`)) {
		t.Fatalf("expected path in log line, got %s", out)
	}
}
