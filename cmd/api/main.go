package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinic-booking/cmd/mainconfig"
	"github.com/wolfman30/clinic-booking/internal/accounts"
	"github.com/wolfman30/clinic-booking/internal/api/router"
	"github.com/wolfman30/clinic-booking/internal/app/bootstrap"
	"github.com/wolfman30/clinic-booking/internal/appointments"
	"github.com/wolfman30/clinic-booking/internal/auth"
	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	"github.com/wolfman30/clinic-booking/internal/dashboard"
	httpmiddleware "github.com/wolfman30/clinic-booking/internal/http/middleware"
	"github.com/wolfman30/clinic-booking/internal/notify"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/internal/payments"
	"github.com/wolfman30/clinic-booking/internal/storage"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"store", cfg.StoreDriver,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancel()
	logger.Info("server exited")
}

type application struct {
	handler http.Handler
	closers []func()
}

// Close runs shutdown hooks in reverse order.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApplication(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*application, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	app := &application{}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(registry)

	stores, err := bootstrap.BuildStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, func() { stores.Close(context.Background()) })

	var awsCfg *aws.Config
	if needsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		awsCfg = &loaded
	}

	queue, err := bootstrap.BuildQueue(cfg, awsCfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		app.closers = append(app.closers, func() { _ = redisClient.Close() })
	}
	throttle := auth.NewLoginThrottle(redisClient, auth.ThrottleConfig{
		MaxFailures: cfg.LoginMaxAttempts,
		Window:      cfg.LoginWindow,
	}, logger)

	authService := auth.NewService(stores.Accounts, auth.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL), throttle, bookingMetrics, logger)
	apptService := appointments.NewService(stores.Appointments, stores.Accounts, bookingMetrics, logger)

	var images accounts.ImageStore
	if awsCfg != nil {
		if store := storage.NewImageStore(mainconfig.NewS3Client(*awsCfg, cfg), storage.Config{
			Bucket:      cfg.DoctorImageBucket,
			Region:      cfg.AWSRegion,
			EndpointURL: cfg.AWSEndpointOverride,
		}, logger); store != nil {
			images = store
		}
	}

	rateLimiter := httpmiddleware.NewRateLimiter(5, 20)
	app.closers = append(app.closers, rateLimiter.Stop)

	routerCfg := &router.Config{
		Logger:             logger,
		Sessions:           authService,
		AuthHandler:        auth.NewHandler(authService, auth.CookiePolicy{Secure: cfg.IsProduction()}, logger),
		AccountsHandler:    accounts.NewHandler(stores.Accounts, apptService, images, logger),
		Appointments:       appointments.NewHandler(apptService, logger),
		Dashboard:          dashboard.NewHandler(apptService, cfg.Location(), logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AuthRateLimiter:    rateLimiter,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}

	gateway, fakeGateway, err := bootstrap.BuildGateway(cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	if gateway != nil {
		bridge := payments.NewBridge(gateway, apptService, stores.Accounts, notify.NewPublisher(queue, logger),
			payments.BridgeConfig{Currency: cfg.Currency}, bookingMetrics, logger)
		routerCfg.Payments = payments.NewHandler(bridge, logger)
		if cfg.RazorpayWebhookSecret != "" {
			routerCfg.RazorpayWebhook = payments.NewRazorpayWebhookHandler(cfg.RazorpayWebhookSecret, bridge, stores.Processed, bookingMetrics, logger)
		}
		if fakeGateway != nil {
			logger.Warn("fake payments enabled; demo checkout mounted at /demo/payments")
			routerCfg.FakePayments = payments.NewFakePaymentsHandler(fakeGateway, bridge, logger)
		}
	} else {
		logger.Warn("no payment gateway configured; payment routes disabled")
	}

	// The in-memory queue is only visible in this process, so its consumer runs here too.
	if cfg.UseMemoryQueue {
		workerCtx, stopWorker := context.WithCancel(ctx)
		notifier := notify.NewService(bootstrap.BuildEmailSender(cfg, awsCfg, logger), cfg.ExternalCallTimeout, bookingMetrics, logger)
		worker := notify.NewWorker(queue, notifier, logger,
			notify.WithWorkerCount(cfg.WorkerCount),
			notify.WithProcessedTracker(stores.Processed),
		)
		worker.Start(workerCtx)
		app.closers = append(app.closers, func() {
			stopWorker()
			worker.Wait()
		})
	}

	app.handler = router.New(routerCfg)
	return app, nil
}

func needsAWS(cfg *appconfig.Config) bool {
	return !cfg.UseMemoryQueue || cfg.EmailProvider == "ses" || cfg.DoctorImageBucket != ""
}
