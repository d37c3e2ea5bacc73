package message

import (
	"context"
	"time"

	"github.com/ignite/impression/internal/domain"
)

// Repository defines the data access contract for messages.
type Repository interface {
	// Create inserts msg together with its extra recipients and fills in
	// ID, Created and Updated.
	Create(ctx context.Context, msg *domain.Message) error

	// Get returns ErrNotFound when the message does not exist.
	Get(ctx context.Context, id string) (*domain.Message, error)

	// MarkReady sets ready_to_send. It never clears it.
	MarkReady(ctx context.Context, id string) error

	// WithLock runs fn inside a transaction holding the message row lock.
	// The message passed to fn is read after the lock was taken. The
	// transaction commits when fn returns nil.
	WithLock(ctx context.Context, id string, fn func(ctx context.Context, tx TxRepository, msg *domain.Message) error) error

	// ListPendingIDs returns ready, unsent messages that were never
	// attempted, plus attempted ones when includeFailed is set. The result
	// is a hint; callers re-check under lock.
	ListPendingIDs(ctx context.Context, includeFailed bool) ([]string, error)
}

// TxRepository writes delivery outcomes inside a WithLock transaction.
type TxRepository interface {
	RecordAttempt(ctx context.Context, id string, at time.Time) error
	RecordSent(ctx context.Context, id string, at time.Time, final domain.FinalSnapshot) error
}

// Transport delivers a composed envelope. Success is reported through
// the result; a non-nil error also counts as failure.
type Transport interface {
	Send(ctx context.Context, env *domain.Envelope) (*domain.SendResult, error)
}

// Archiver stores a copy of each sent envelope.
type Archiver interface {
	Archive(ctx context.Context, msg *domain.Message, env *domain.Envelope) error
}
