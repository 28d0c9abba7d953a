package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinic-booking/internal/accounts"
	"github.com/wolfman30/clinic-booking/internal/appointments"
	"github.com/wolfman30/clinic-booking/internal/auth"
	"github.com/wolfman30/clinic-booking/internal/dashboard"
	"github.com/wolfman30/clinic-booking/internal/events"
	"github.com/wolfman30/clinic-booking/internal/notify"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/internal/payments"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const adminSecret = "admin-secret"

type testApp struct {
	handler http.Handler
	gateway *payments.FakeGateway
	queue   *notify.MemoryQueue
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	logger := logging.Default()
	reg := prometheus.NewRegistry()
	m := metrics.NewBookingMetrics(reg)

	repo := accounts.NewInMemoryRepository()
	authService := auth.NewService(repo, auth.NewTokenIssuer("test-secret", time.Hour), nil, m, logger)
	apptService := appointments.NewService(appointments.NewInMemoryStore(), repo, m, logger)

	queue := notify.NewMemoryQueue(16)
	gateway := payments.NewFakeGateway(logger)
	bridge := payments.NewBridge(gateway, apptService, repo, notify.NewPublisher(queue, logger),
		payments.BridgeConfig{Currency: "INR"}, m, logger)

	cfg := &Config{
		Logger:          logger,
		Sessions:        authService,
		AuthHandler:     auth.NewHandler(authService, auth.CookiePolicy{}, logger),
		AccountsHandler: accounts.NewHandler(repo, apptService, nil, logger),
		Appointments:    appointments.NewHandler(apptService, logger),
		Dashboard:       dashboard.NewHandler(apptService, time.UTC, logger),
		Payments:        payments.NewHandler(bridge, logger),
		RazorpayWebhook: payments.NewRazorpayWebhookHandler("whsec", bridge, events.NewMemoryProcessedStore(), m, logger),
		FakePayments:    payments.NewFakePaymentsHandler(gateway, bridge, logger),
		AdminAuthSecret: adminSecret,
		MetricsHandler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	return &testApp{handler: New(cfg), gateway: gateway, queue: queue}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type client struct {
	t       *testing.T
	app     *testApp
	cookies []*http.Cookie
	bearer  string
}

func (c *client) do(method, path, body string) (int, envelope) {
	c.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	rec := httptest.NewRecorder()
	c.app.handler.ServeHTTP(rec, req)
	if set := rec.Result().Cookies(); len(set) > 0 {
		c.cookies = set
	}
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			c.t.Fatalf("decode %s %s: %v: %s", method, path, err, rec.Body.String())
		}
	}
	return rec.Code, env
}

func (c *client) id(env envelope) string {
	c.t.Helper()
	var v struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &v); err != nil || v.ID == "" {
		c.t.Fatalf("expected id in %s", string(env.Data))
	}
	return v.ID
}

func adminToken(t *testing.T) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "ops"}).SignedString([]byte(adminSecret))
	if err != nil {
		t.Fatalf("sign admin token: %v", err)
	}
	return token
}

func registerPatient(t *testing.T, app *testApp, name, email string) *client {
	t.Helper()
	c := &client{t: t, app: app}
	code, env := c.do(http.MethodPost, "/api/auth/register-patient",
		`{"name":"`+name+`","email":"`+email+`","password":"password1"}`)
	if code != http.StatusCreated {
		t.Fatalf("register %s: %d %s", email, code, env.Message)
	}
	return c
}

func TestRouterHealthEndpoint(t *testing.T) {
	app := newTestApp(t)
	c := &client{t: t, app: app}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}

	if code, env := c.do(http.MethodGet, "/api/nope", ""); code != http.StatusNotFound || env.Success {
		t.Errorf("expected 404 envelope, got %d %+v", code, env)
	}
}

func TestRouterRequiresSessions(t *testing.T) {
	app := newTestApp(t)
	anon := &client{t: t, app: app}

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/appointment"},
		{http.MethodGet, "/api/appointment/patient"},
		{http.MethodGet, "/api/appointment/doctor/dashboard"},
		{http.MethodGet, "/api/profile"},
		{http.MethodPost, "/api/payment/verify"},
	} {
		code, env := anon.do(tc.method, tc.path, "{}")
		if code != http.StatusUnauthorized || env.Success {
			t.Errorf("%s %s: expected 401, got %d", tc.method, tc.path, code)
		}
	}

	if code, _ := anon.do(http.MethodGet, "/api/admin/appointments", ""); code != http.StatusUnauthorized {
		t.Errorf("admin routes require bearer token, got %d", code)
	}
}

func TestRouterBookingScenario(t *testing.T) {
	app := newTestApp(t)

	admin := &client{t: t, app: app, bearer: adminToken(t)}
	code, env := admin.do(http.MethodPost, "/api/admin/doctors",
		`{"name":"Rao","email":"rao@clinic.test","password":"password1","speciality":"Dermatologist","fees":500}`)
	if code != http.StatusCreated {
		t.Fatalf("provision doctor: %d %s", code, env.Message)
	}
	doctorID := admin.id(env)

	doctor := &client{t: t, app: app}
	if code, env := doctor.do(http.MethodPost, "/api/auth/login-doctor", `{"email":"rao@clinic.test","password":"password1"}`); code != http.StatusOK {
		t.Fatalf("doctor login: %d %s", code, env.Message)
	}

	asha := registerPatient(t, app, "Asha", "asha@example.com")
	ravi := registerPatient(t, app, "Ravi", "ravi@example.com")

	book := `{"doctor_id":"` + doctorID + `","slot_date":"2024-05-01","slot_time":"10:00"}`
	code, env = asha.do(http.MethodPost, "/api/appointment", book)
	if code != http.StatusCreated {
		t.Fatalf("book: %d %s", code, env.Message)
	}
	apptID := asha.id(env)

	if code, env := ravi.do(http.MethodPost, "/api/appointment", `{"doctor_id":"`+doctorID+`","slot_date":"2024-05-01","slot_time":"10:00 AM"}`); code != http.StatusConflict {
		t.Fatalf("expected conflict for taken slot, got %d %s", code, env.Message)
	}

	code, env = asha.do(http.MethodGet, "/api/doctor/"+doctorID, "")
	if code != http.StatusOK || !strings.Contains(string(env.Data), `"2024-05-01":["10:00"]`) {
		t.Fatalf("expected booked slot in doctor view, got %d %s", code, string(env.Data))
	}

	if code, _ := ravi.do(http.MethodPost, "/api/appointment/"+apptID+"/cancel", ""); code != http.StatusForbidden {
		t.Fatalf("other patient must not cancel, got %d", code)
	}
	if code, env := asha.do(http.MethodPost, "/api/appointment/"+apptID+"/cancel", ""); code != http.StatusOK {
		t.Fatalf("cancel: %d %s", code, env.Message)
	}
	code, env = ravi.do(http.MethodPost, "/api/appointment", book)
	if code != http.StatusCreated {
		t.Fatalf("rebook after cancel: %d %s", code, env.Message)
	}
	rebooked := ravi.id(env)

	// Approval is gated on payment.
	if code, env := doctor.do(http.MethodPost, "/api/appointment/"+rebooked+"/approve", ""); code != http.StatusBadRequest {
		t.Fatalf("expected unpaid approval to fail, got %d %s", code, env.Message)
	}

	code, env = ravi.do(http.MethodPost, "/api/payment/"+rebooked+"/order", "")
	if code != http.StatusOK {
		t.Fatalf("create order: %d %s", code, env.Message)
	}
	orderID := ravi.id(env)
	if err := app.gateway.Complete(orderID); err != nil {
		t.Fatalf("complete fake order: %v", err)
	}
	for i := 0; i < 2; i++ {
		if code, env := ravi.do(http.MethodPost, "/api/payment/verify", `{"razorpay_order_id":"`+orderID+`"}`); code != http.StatusOK {
			t.Fatalf("verify %d: %d %s", i, code, env.Message)
		}
	}
	msgs, err := app.queue.Receive(context.Background(), 10, 1)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("expected exactly one confirmation job, got %d (%v)", len(msgs), err)
	}

	if code, env := doctor.do(http.MethodPost, "/api/appointment/"+rebooked+"/approve", ""); code != http.StatusOK {
		t.Fatalf("approve paid appointment: %d %s", code, env.Message)
	}

	code, env = doctor.do(http.MethodGet, "/api/appointment/doctor/dashboard", "")
	if code != http.StatusOK {
		t.Fatalf("dashboard: %d %s", code, env.Message)
	}
	var dash dashboard.Dashboard
	if err := json.Unmarshal(env.Data, &dash); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if dash.Stats.TotalAppointments != 2 || dash.Stats.CompletedAppointments != 1 || dash.Stats.TotalEarnings != 500 {
		t.Fatalf("unexpected dashboard stats %+v", dash.Stats)
	}

	code, env = admin.do(http.MethodGet, "/api/admin/appointments", "")
	if code != http.StatusOK {
		t.Fatalf("admin list: %d %s", code, env.Message)
	}
	var all []appointments.Details
	if err := json.Unmarshal(env.Data, &all); err != nil || len(all) != 2 {
		t.Fatalf("expected two appointments in admin list, got %d (%v)", len(all), err)
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)
	registerPatient(t, app, "Asha", "asha@example.com")

	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", rr.Code)
	}
}
