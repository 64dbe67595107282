package directory

import "context"

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	// FindByReference matches a non-numeric actor reference against the
	// directory's known identifier (uid) and contact (email) fields.
	FindByReference(ctx context.Context, ref string) (*User, error)
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
}
