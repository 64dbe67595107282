package directory

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no user matches a lookup.
var ErrNotFound = errors.New("user not found")

// User maps to the app_user table. It is the canonical local identity that
// opaque actor references inside synced documents resolve to.
type User struct {
	ID        int64     `db:"id" json:"id"`
	UID       *string   `db:"uid" json:"uid,omitempty"`
	Email     *string   `db:"email" json:"email,omitempty"`
	FullName  string    `db:"full_name" json:"full_name"`
	Role      string    `db:"role" json:"role"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
