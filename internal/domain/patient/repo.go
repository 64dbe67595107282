package patient

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
	GetByTrackingCode(ctx context.Context, code string) (*Patient, error)
	GetByDocID(ctx context.Context, docID string) (*Patient, error)
	// GetByDocIDForUpdate re-reads the row under the store's row-level write
	// lock. Must be called inside a transaction.
	GetByDocIDForUpdate(ctx context.Context, docID string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	// UpsertByDocID inserts the patient or, when a row already exists for the
	// same document-store identifier, replaces its demographic fields. The
	// tracking code and visit counter are never touched by the upsert.
	UpsertByDocID(ctx context.Context, p *Patient) error
	// RecordVisit increments the visit counter and stamps last_seen_at.
	RecordVisit(ctx context.Context, id int64, seenAt time.Time) error
	Deactivate(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
}
