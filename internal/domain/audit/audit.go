// Package audit defines the audit trail contract used by domain services.
// The PostgreSQL implementation lives in infrastructure/storage/postgres.
package audit

import (
	"context"
	"encoding/json"
	"time"

	appctx "kardex/internal/core/context"
	"kardex/internal/core/id"
)

// Action represents the type of audited operation.
type Action string

const (
	ActionApply  Action = "apply"
	ActionReject Action = "reject"
)

// Logger records entity changes.
type Logger interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action Action, changes map[string]any) error
}

// Record is a stored entry with its snapshot in plain JSON.
type Record struct {
	ID        id.ID           `json:"id"`
	Action    Action          `json:"action"`
	UserID    string          `json:"userId,omitempty"`
	Changes   json.RawMessage `json:"changes"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Reader returns the newest records of an entity first.
type Reader interface {
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]Record, error)
}

// Actor returns the user recorded on audit entries, or "system" for
// background work without a caller.
func Actor(ctx context.Context) string {
	if uid := appctx.GetUserID(ctx); uid != "" {
		return uid
	}
	return "system"
}

// Nop discards audit entries.
type Nop struct{}

// LogChange implements Logger.
func (Nop) LogChange(context.Context, string, id.ID, Action, map[string]any) error {
	return nil
}

var _ Logger = Nop{}
