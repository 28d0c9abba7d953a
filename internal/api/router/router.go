package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/clinic-booking/internal/accounts"
	"github.com/wolfman30/clinic-booking/internal/appointments"
	"github.com/wolfman30/clinic-booking/internal/auth"
	"github.com/wolfman30/clinic-booking/internal/dashboard"
	httpmiddleware "github.com/wolfman30/clinic-booking/internal/http/middleware"
	"github.com/wolfman30/clinic-booking/internal/http/respond"
	"github.com/wolfman30/clinic-booking/internal/identity"
	"github.com/wolfman30/clinic-booking/internal/payments"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	Sessions        httpmiddleware.SessionAuthenticator
	AuthHandler     *auth.Handler
	AccountsHandler *accounts.Handler
	Appointments    *appointments.Handler
	Dashboard       *dashboard.Handler
	Payments        *payments.Handler
	RazorpayWebhook *payments.RazorpayWebhookHandler
	FakePayments    *payments.FakePaymentsHandler
	AdminAuthSecret string
	MetricsHandler  http.Handler

	// AuthRateLimiter guards the unauthenticated register/login routes (optional).
	AuthRateLimiter    *httpmiddleware.RateLimiter
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg.Sessions == nil || cfg.AuthHandler == nil || cfg.AccountsHandler == nil || cfg.Appointments == nil {
		panic("router: sessions, auth, accounts and appointments handlers required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(logger))

	patient := httpmiddleware.RequireSession(cfg.Sessions, logger, identity.RolePatient)
	doctor := httpmiddleware.RequireSession(cfg.Sessions, logger, identity.RoleDoctor)
	anySession := httpmiddleware.RequireSession(cfg.Sessions, logger, identity.RolePatient, identity.RoleDoctor)

	// Public endpoints (health, metrics, webhooks)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.RazorpayWebhook != nil {
			public.Post("/api/payment/webhook", cfg.RazorpayWebhook.Handle)
		}
		if cfg.FakePayments != nil {
			public.Mount("/demo", cfg.FakePayments.Routes())
		}
	})

	r.Route("/api/auth", func(a chi.Router) {
		a.Group(func(limited chi.Router) {
			if cfg.AuthRateLimiter != nil {
				limited.Use(httpmiddleware.RateLimit(cfg.AuthRateLimiter))
			}
			limited.Post("/register-patient", cfg.AuthHandler.RegisterPatient)
			limited.Post("/register-doctor", cfg.AuthHandler.RegisterDoctor)
			limited.Post("/login-patient", cfg.AuthHandler.LoginPatient)
			limited.Post("/login-doctor", cfg.AuthHandler.LoginDoctor)
		})
		a.Get("/logout-patient", cfg.AuthHandler.LogoutPatient)
		a.Get("/logout-doctor", cfg.AuthHandler.LogoutDoctor)
	})

	r.Route("/api/doctor", func(d chi.Router) {
		d.Get("/", cfg.AccountsHandler.ListDoctors)
		d.With(doctor).Get("/profile", cfg.AccountsHandler.DoctorProfile)
		d.Get("/{id}", cfg.AccountsHandler.GetDoctor)
	})

	r.Route("/api/profile", func(p chi.Router) {
		p.Use(patient)
		p.Get("/", cfg.AccountsHandler.GetProfile)
		p.Put("/", cfg.AccountsHandler.UpdateProfile)
	})

	r.Route("/api/appointment", func(a chi.Router) {
		a.With(patient).Post("/", cfg.Appointments.Book)
		a.With(patient).Get("/patient", cfg.Appointments.ListForPatient)
		a.With(doctor).Get("/doctor", cfg.Appointments.ListForDoctor)
		if cfg.Dashboard != nil {
			a.With(doctor).Get("/doctor/dashboard", cfg.Dashboard.Get)
		}
		a.With(anySession).Post("/{id}/cancel", cfg.Appointments.Cancel)
		a.With(doctor).Post("/{id}/approve", cfg.Appointments.Approve)
	})

	if cfg.Payments != nil {
		r.Route("/api/payment", func(p chi.Router) {
			p.Use(patient)
			p.Post("/{id}/order", cfg.Payments.CreateOrder)
			p.Post("/verify", cfg.Payments.Verify)
		})
	}

	// Admin routes (HMAC bearer JWT)
	if cfg.AdminAuthSecret != "" {
		r.Route("/api/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Post("/doctors", cfg.AuthHandler.ProvisionDoctor)
			admin.Patch("/doctors/{id}/availability", cfg.AccountsHandler.SetAvailability)
			admin.Put("/doctors/{id}/image", cfg.AccountsHandler.UploadImage)
			admin.Get("/appointments", cfg.Appointments.ListAll)
			admin.Post("/appointments/{id}/cancel", cfg.Appointments.Cancel)
		})
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusNotFound, respond.Envelope{Success: false, Message: "Route not found."})
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
