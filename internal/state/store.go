// Package state provides the conversation state store: append-only message
// history per thread, paused-workflow checkpoints, and the audit trail of
// confirmation decisions.
//
// Two drivers ship behind the Store interface: an in-memory driver used by
// tests and zero-config deployments, and a Redis driver for production where
// checkpoints must survive restarts. The factory in factory.go picks one
// from configuration.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/briefdesk/briefdesk/pkg/models"
)

// Store is the conversation state dependency of the orchestration engine.
//
// Ordering guarantee: message appends for the same thread are applied in
// arrival order. Checkpoint resolution is atomic: a checkpoint transitions
// out of pending exactly once, and a second resolve of the same thread is
// rejected rather than re-applied.
type Store interface {
	// AppendMessages appends messages to the thread's history in order.
	AppendMessages(ctx context.Context, threadID string, msgs ...models.Message) error

	// History returns the thread's full message history, oldest first.
	History(ctx context.Context, threadID string) ([]models.Message, error)

	// ClearHistory removes the thread's history.
	ClearHistory(ctx context.Context, threadID string) error

	// SaveCheckpoint persists a pending checkpoint for the thread,
	// replacing any previous checkpoint for the same thread.
	SaveCheckpoint(ctx context.Context, cp *models.Checkpoint) error

	// GetCheckpoint returns the thread's checkpoint.
	// Returns *ErrNotFound if the thread has none.
	GetCheckpoint(ctx context.Context, threadID string) (*models.Checkpoint, error)

	// ResolveCheckpoint atomically transitions the thread's pending
	// checkpoint to approved or rejected. Returns *ErrNotFound when no
	// checkpoint exists, ErrAlreadyResolved when it has already been
	// resolved, and ErrExpired when the approval window has passed (the
	// checkpoint is marked expired as a side effect).
	ResolveCheckpoint(ctx context.Context, threadID string, decision models.Decision, resolvedBy string) (*models.Checkpoint, error)

	// ExpireCheckpoints marks every pending checkpoint whose window has
	// passed as expired, returning the number affected.
	ExpireCheckpoints(ctx context.Context, now time.Time) (int, error)

	// AppendAudit records an audit event for the thread.
	AppendAudit(ctx context.Context, event *models.AuditEvent) error

	// ListAudit returns the thread's audit events, oldest first.
	ListAudit(ctx context.Context, threadID string) ([]models.AuditEvent, error)

	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

// IsNotFound reports whether err is an ErrNotFound.
func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return errors.As(err, &nf)
}

// ErrAlreadyResolved is returned by ResolveCheckpoint when the checkpoint
// has already been approved or rejected. Distinct from a not-found miss so
// callers can tell a duplicate resume from a bogus thread id.
var ErrAlreadyResolved = errors.New("checkpoint already resolved")

// ErrExpired is returned by ResolveCheckpoint when the approval window has
// passed without a decision.
var ErrExpired = errors.New("checkpoint expired")
