package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/clinic-booking/cmd/mainconfig"
	"github.com/wolfman30/clinic-booking/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	"github.com/wolfman30/clinic-booking/internal/notify"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.UseMemoryQueue {
		logger.Error("notification worker needs SQS; set USE_MEMORY_QUEUE=false and NOTIFY_QUEUE_URL")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsConfig, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	queue, err := bootstrap.BuildQueue(cfg, &awsConfig)
	if err != nil {
		logger.Error("failed to build queue", "error", err)
		os.Exit(1)
	}

	stores, err := bootstrap.BuildStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect stores", "error", err)
		os.Exit(1)
	}
	defer stores.Close(context.Background())

	notifier := notify.NewService(
		bootstrap.BuildEmailSender(cfg, &awsConfig, logger),
		cfg.ExternalCallTimeout,
		metrics.NewBookingMetrics(prometheus.DefaultRegisterer),
		logger,
	)
	worker := notify.NewWorker(queue, notifier, logger,
		notify.WithWorkerCount(cfg.WorkerCount),
		notify.WithProcessedTracker(stores.Processed),
	)

	worker.Start(ctx)
	logger.Info("notification worker started", "workers", cfg.WorkerCount, "email_provider", cfg.EmailProvider)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down notification worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("notification worker stopped")
	case <-doneCtx.Done():
		logger.Error("notification worker shutdown timed out", "error", doneCtx.Err())
	}
}
