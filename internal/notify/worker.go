package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/clinic-booking/internal/events"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// PaymentNotifier handles payment confirmation jobs.
type PaymentNotifier interface {
	NotifyPaymentConfirmed(ctx context.Context, evt events.PaymentConfirmedV1) error
}

const (
	defaultWorkerCount   = 1
	defaultWaitSeconds   = 10
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeout        = 5 * time.Second
	processedProviderKey = "notify"
)

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	processed        events.ProcessedTracker
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithProcessedTracker skips jobs whose id was already delivered, which
// guards against queue redelivery.
func WithProcessedTracker(tracker events.ProcessedTracker) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.processed = tracker
	}
}

// Worker consumes notification jobs from a Queue.
type Worker struct {
	queue    Queue
	notifier PaymentNotifier
	logger   *logging.Logger
	cfg      workerConfig
	wg       sync.WaitGroup
}

func NewWorker(queue Queue, notifier PaymentNotifier, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if queue == nil {
		panic("notify: queue cannot be nil")
	}
	if notifier == nil {
		panic("notify: notifier cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{queue: queue, notifier: notifier, logger: logger, cfg: cfg}
}

// Start launches the consumer goroutines; they stop when ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("notification worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			w.logger.Debug("notification worker stopping", "worker_id", workerID)
			return
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive notification jobs", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg Message) {
	var j job
	if err := json.Unmarshal([]byte(msg.Body), &j); err != nil {
		w.logger.Error("failed to decode notification job", "error", err, "msg_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}
	if j.Kind != events.PaymentConfirmedType || j.Payment == nil {
		w.logger.Warn("dropping unknown notification job", "job_id", j.ID, "kind", j.Kind)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	if w.cfg.processed != nil && j.ID != "" {
		seen, err := w.cfg.processed.AlreadyProcessed(ctx, processedProviderKey, j.ID)
		if err != nil {
			w.logger.Warn("processed lookup failed", "error", err, "job_id", j.ID)
		} else if seen {
			w.logger.Info("skipping duplicate notification job", "job_id", j.ID)
			w.deleteMessage(msg.ReceiptHandle)
			return
		}
	}

	if err := w.notifier.NotifyPaymentConfirmed(ctx, *j.Payment); err != nil {
		// Left on the queue so SQS redelivers it after the visibility timeout.
		w.logger.Error("notification job failed", "error", err, "job_id", j.ID, "appointment_id", j.Payment.AppointmentID)
		return
	}

	if w.cfg.processed != nil && j.ID != "" {
		if _, err := w.cfg.processed.MarkProcessed(ctx, processedProviderKey, j.ID); err != nil {
			w.logger.Warn("failed to record processed notification", "error", err, "job_id", j.ID)
		}
	}
	w.deleteMessage(msg.ReceiptHandle)
}

func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete notification job", "error", err)
	}
}
