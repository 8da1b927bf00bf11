package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"kardex/internal/core/apperror"
	appctx "kardex/internal/core/context"
	"kardex/internal/domain/documents/stock_movement"
	"kardex/pkg/logger"
)

// WorkerConfig collects what the worker needs.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Queue       string
	Concurrency int
	Job         *ApplyMovementJob
	Logger      *logger.Logger
}

// Worker wraps the asynq server.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewWorker constructs a worker. With Concurrency 1 movements are applied
// strictly in dequeue order.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Job == nil {
		return nil, errors.New("worker: movement job is required")
	}
	if cfg.Queue == "" {
		cfg.Queue = QueueMovements
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{cfg.Queue: 1},
		Logger:      asynqLogger{log.WithComponent("asynq")},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			log.Warnw("movement task failed",
				"task_type", t.Type(),
				"retry", retried,
				"max_retry", maxRetry,
				"error", err,
			)
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskApplyMovement, func(ctx context.Context, t *asynq.Task) error {
		return cfg.Job.Handle(logger.WithLogger(ctx, log), t)
	})

	return &Worker{server: srv, mux: mux}, nil
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}

// Client enqueues movement tasks.
type Client struct {
	client *asynq.Client
	queue  string
}

// NewClient constructs a queue client.
func NewClient(redisOpts asynq.RedisClientOpt, queue string) *Client {
	if queue == "" {
		queue = QueueMovements
	}
	return &Client{client: asynq.NewClient(redisOpts), queue: queue}
}

// EnqueueApplyMovement queues m and returns the task ID and queue.
func (c *Client) EnqueueApplyMovement(ctx context.Context, m *stock_movement.Movement) (string, string, error) {
	task, err := NewApplyMovementTask(ApplyMovementPayload{
		Movement:  *m,
		UserID:    appctx.GetUserID(ctx),
		RequestID: appctx.GetRequestID(ctx),
	}, c.queue)
	if err != nil {
		return "", "", err
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return "", "", errDuplicateMovement(m)
		}
		return "", "", fmt.Errorf("enqueue movement: %w", err)
	}
	return info.ID, info.Queue, nil
}

func errDuplicateMovement(m *stock_movement.Movement) error {
	return apperror.NewConflict("movement is already queued").
		WithDetail("movement_id", m.ID.String())
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// asynqLogger adapts the zap logger to asynq.Logger.
type asynqLogger struct {
	l *logger.Logger
}

func (a asynqLogger) Debug(args ...any) { a.l.Debug(args...) }
func (a asynqLogger) Info(args ...any)  { a.l.Info(args...) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn(args...) }
func (a asynqLogger) Error(args ...any) { a.l.Error(args...) }
func (a asynqLogger) Fatal(args ...any) { a.l.Fatal(args...) }
