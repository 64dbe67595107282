package session

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id int64) (*Session, error)
	// GetByIDForUpdate re-reads the session row under the store's row-level
	// write lock. Must be called inside a transaction.
	GetByIDForUpdate(ctx context.Context, id int64) (*Session, error)
	GetByDocID(ctx context.Context, docID string) (*Session, error)
	// GetByDocIDForUpdate is the locking variant used by the sync upsert.
	// Must be called inside a transaction.
	GetByDocIDForUpdate(ctx context.Context, docID string) (*Session, error)
	// UpdateState mutates only the workflow state, its timestamp, and the
	// completion stamp. All other fields belong to the sync upsert.
	UpdateState(ctx context.Context, id int64, state State, stateUpdatedAt time.Time, completedAt *time.Time) error
	// UpsertByDocID inserts the session or refreshes its document-sourced
	// fields. The workflow state is set only on insert; afterwards it is
	// owned exclusively by the state machine.
	UpsertByDocID(ctx context.Context, s *Session) error
	ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Session, int, error)

	// Audit trail
	AddTransition(ctx context.Context, t *Transition) error
	Transitions(ctx context.Context, sessionID int64) ([]*Transition, error)
}
