// Package jobs runs movement application through an asynq queue, so a
// single worker pool drains writes in arrival order.
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"kardex/internal/domain/documents/stock_movement"
)

const (
	// QueueMovements is the default queue for movement tasks.
	QueueMovements = "movements"
	// TaskApplyMovement applies a queued stock movement.
	TaskApplyMovement = "movement:apply"
)

// ApplyMovementPayload carries the movement and the caller that submitted it.
type ApplyMovementPayload struct {
	Movement  stock_movement.Movement `json:"movement"`
	UserID    string                  `json:"user_id,omitempty"`
	RequestID string                  `json:"request_id,omitempty"`
}

// NewApplyMovementTask constructs an asynq task for the movement. The task
// ID is the movement ID, so the same movement cannot be queued twice while
// its task is retained.
func NewApplyMovementTask(payload ApplyMovementPayload, queue string) (*asynq.Task, error) {
	if queue == "" {
		queue = QueueMovements
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal movement payload: %w", err)
	}
	return asynq.NewTask(TaskApplyMovement, body,
		asynq.Queue(queue),
		asynq.TaskID(payload.Movement.ID.String()),
		asynq.MaxRetry(10),
		asynq.Retention(24*time.Hour),
	), nil
}

// ParseApplyMovementPayload decodes a task payload.
func ParseApplyMovementPayload(t *asynq.Task) (ApplyMovementPayload, error) {
	var payload ApplyMovementPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("unmarshal movement payload: %w", err)
	}
	return payload, nil
}
