package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"kardex/internal/core/apperror"
	appctx "kardex/internal/core/context"
	"kardex/internal/domain/documents/stock_movement"
	"kardex/internal/domain/posting"
	"kardex/pkg/logger"
)

// MovementApplier applies movements. Satisfied by *posting.Service.
type MovementApplier interface {
	Apply(ctx context.Context, m *stock_movement.Movement) (*posting.Result, error)
}

// ApplyMovementJob handles TaskApplyMovement.
type ApplyMovementJob struct {
	service MovementApplier
}

// NewApplyMovementJob creates the job handler.
func NewApplyMovementJob(service MovementApplier) *ApplyMovementJob {
	return &ApplyMovementJob{service: service}
}

// Handle applies the queued movement. Rejections that another attempt
// cannot fix are not retried; lock contention and stale versions are.
func (j *ApplyMovementJob) Handle(ctx context.Context, t *asynq.Task) error {
	payload, err := ParseApplyMovementPayload(t)
	if err != nil {
		logger.Error(ctx, "discarding malformed movement task", "error", err)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext(payload.RequestID))
	if payload.UserID != "" {
		ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: payload.UserID})
	}

	m := payload.Movement
	if _, err := j.service.Apply(ctx, &m); err != nil {
		if retryable(err) {
			return err
		}
		if apperror.IsClientError(err) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}

func retryable(err error) bool {
	return apperror.HasCode(err, apperror.CodeLocked) || apperror.IsConcurrentModification(err)
}
