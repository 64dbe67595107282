package referral

import "context"

type Repository interface {
	Create(ctx context.Context, r *Referral) error
	GetByID(ctx context.Context, id int64) (*Referral, error)
	// GetOpenBySession returns the newest pending or accepted referral for a
	// session.
	GetOpenBySession(ctx context.Context, sessionID int64) (*Referral, error)
	// UpdateStatus moves the referral and, when given, records the assignee
	// and the justification for the move. Nil leaves the stored value alone.
	UpdateStatus(ctx context.Context, id int64, status Status, assignedToID *int64, reason *string) error
	ListBySession(ctx context.Context, sessionID int64) ([]*Referral, error)
	List(ctx context.Context, status Status, limit, offset int) ([]*Referral, int, error)
}
