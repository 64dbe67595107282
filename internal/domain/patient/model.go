package patient

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no patient matches a lookup.
var ErrNotFound = errors.New("patient not found")

// Patient maps to the patient table. The tracking code is the human-assigned
// join key used by every other entity and is immutable once issued; the
// document-store identifier, when present, is also unique.
type Patient struct {
	ID           int64      `db:"id" json:"id"`
	TrackingCode string     `db:"tracking_code" json:"tracking_code"`
	DocID        *string    `db:"doc_id" json:"doc_id,omitempty"`
	FullName     string     `db:"full_name" json:"full_name"`
	Sex          *string    `db:"sex" json:"sex,omitempty"`
	BirthDate    *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	Village      *string    `db:"village" json:"village,omitempty"`
	VisitCount   int        `db:"visit_count" json:"visit_count"`
	LastSeenAt   *time.Time `db:"last_seen_at" json:"last_seen_at,omitempty"`
	DocUpdatedAt *time.Time `db:"doc_updated_at" json:"doc_updated_at,omitempty"`
	Active       bool       `db:"active" json:"active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}
