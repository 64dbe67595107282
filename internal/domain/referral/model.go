package referral

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no referral matches a lookup.
var ErrNotFound = errors.New("referral not found")

// Status is the referral lifecycle state. It is a smaller machine mirroring
// the session-level REFERRED -> IN_REVIEW/CLOSED transitions.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusAccepted, StatusRejected, StatusCancelled},
	StatusAccepted:  {StatusCompleted, StatusCancelled},
	StatusRejected:  {},
	StatusCompleted: {},
	StatusCancelled: {},
}

// CanMove reports whether a referral may move from one status to another.
func CanMove(from, to Status) bool {
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// StatusError reports an attempt to move a referral along an illegal edge.
type StatusError struct {
	From Status
	To   Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("illegal referral status change %s -> %s", e.From, e.To)
}

// Referral maps to the referral table: a request to move responsibility for
// a session to another actor or specialty. Referrals are never deleted.
type Referral struct {
	ID           int64     `db:"id" json:"id"`
	SessionID    int64     `db:"session_id" json:"session_id"`
	Status       Status    `db:"status" json:"status"`
	Priority     string    `db:"priority" json:"priority"`
	Specialty    *string   `db:"specialty" json:"specialty,omitempty"`
	Reason       *string   `db:"reason" json:"reason,omitempty"`
	AssignedToID *int64    `db:"assigned_to_id" json:"assigned_to_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
