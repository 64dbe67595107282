package directory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/clinsync/clinsync/internal/platform/db"
)

type repoMySQL struct {
	conn *sql.DB
}

func NewRepo(conn *sql.DB) Repository {
	return &repoMySQL{conn: conn}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (r *repoMySQL) q(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.conn
}

const userCols = `id, uid, email, full_name, role, active, created_at`

func (r *repoMySQL) Create(ctx context.Context, u *User) error {
	res, err := r.q(ctx).ExecContext(ctx, `
		INSERT INTO app_user (uid, email, full_name, role, active)
		VALUES (?, ?, ?, ?, ?)`,
		u.UID, u.Email, u.FullName, u.Role, u.Active,
	)
	if err != nil {
		return err
	}
	u.ID, err = res.LastInsertId()
	return err
}

func (r *repoMySQL) GetByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(r.q(ctx).QueryRowContext(ctx,
		`SELECT `+userCols+` FROM app_user WHERE id = ?`, id))
}

func (r *repoMySQL) FindByReference(ctx context.Context, ref string) (*User, error) {
	return scanUser(r.q(ctx).QueryRowContext(ctx,
		`SELECT `+userCols+` FROM app_user WHERE uid = ? OR email = ? LIMIT 1`, ref, ref))
}

func (r *repoMySQL) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	var total int
	if err := r.q(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM app_user`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.q(ctx).QueryContext(ctx,
		`SELECT `+userCols+` FROM app_user ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.UID, &u.Email, &u.FullName, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, 0, err
		}
		users = append(users, &u)
	}
	return users, total, rows.Err()
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.UID, &u.Email, &u.FullName, &u.Role, &u.Active, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
