package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

func memoryConfig() *appconfig.Config {
	return &appconfig.Config{
		Env:               "development",
		StoreDriver:       "memory",
		JWTSecret:         "test-secret",
		AdminJWTSecret:    "admin-secret",
		UseMemoryQueue:    true,
		AllowFakePayments: true,
		Currency:          "INR",
		WorkerCount:       1,
		ClinicTimezone:    "UTC",
	}
}

func TestBuildApplicationServesHealthAndMetrics(t *testing.T) {
	app, err := buildApplication(context.Background(), memoryConfig(), logging.New("error"))
	if err != nil {
		t.Fatalf("build application: %v", err)
	}
	defer app.Close()

	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatalf("expected runtime metrics to be exported, got %d", rr.Code)
	}
}

func TestBuildApplicationMountsFakeCheckout(t *testing.T) {
	app, err := buildApplication(context.Background(), memoryConfig(), logging.New("error"))
	if err != nil {
		t.Fatalf("build application: %v", err)
	}
	defer app.Close()

	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/demo/payments/order_unknown", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected demo checkout to 404 unknown orders, got %d", rr.Code)
	}
}

func TestBuildApplicationWithoutGatewayDisablesPayments(t *testing.T) {
	cfg := memoryConfig()
	cfg.AllowFakePayments = false
	app, err := buildApplication(context.Background(), cfg, logging.New("error"))
	if err != nil {
		t.Fatalf("build application: %v", err)
	}
	defer app.Close()

	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/payment/verify", strings.NewReader("{}")))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected payment routes to be absent, got %d", rr.Code)
	}
}

func TestBuildApplicationRequiresJWTSecret(t *testing.T) {
	cfg := memoryConfig()
	cfg.JWTSecret = ""
	if _, err := buildApplication(context.Background(), cfg, logging.New("error")); err == nil {
		t.Fatalf("expected error without JWT secret")
	}
}

func TestNeedsAWS(t *testing.T) {
	cfg := memoryConfig()
	if needsAWS(cfg) {
		t.Fatalf("memory queue with stub email should not need AWS")
	}
	cfg.DoctorImageBucket = "doctor-images"
	if !needsAWS(cfg) {
		t.Fatalf("image bucket requires AWS")
	}
}
