package referral

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

const referralCols = `id, session_id, status, priority, specialty, reason, assigned_to_id, created_at, updated_at`

func (r *repoMySQL) Create(ctx context.Context, ref *Referral) error {
	if ref.Status == "" {
		ref.Status = StatusPending
	}
	res, err := r.q(ctx).ExecContext(ctx, `
		INSERT INTO referral (session_id, status, priority, specialty, reason, assigned_to_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ref.SessionID, ref.Status, ref.Priority, ref.Specialty, ref.Reason, ref.AssignedToID,
	)
	if err != nil {
		return err
	}
	ref.ID, err = res.LastInsertId()
	return err
}

func (r *repoMySQL) GetByID(ctx context.Context, id int64) (*Referral, error) {
	return scanReferral(r.q(ctx).QueryRowContext(ctx,
		`SELECT `+referralCols+` FROM referral WHERE id = ?`, id))
}

func (r *repoMySQL) GetOpenBySession(ctx context.Context, sessionID int64) (*Referral, error) {
	return scanReferral(r.q(ctx).QueryRowContext(ctx, `
		SELECT `+referralCols+` FROM referral
		WHERE session_id = ? AND status IN (?, ?)
		ORDER BY created_at DESC, id DESC LIMIT 1`,
		sessionID, StatusPending, StatusAccepted))
}

func (r *repoMySQL) UpdateStatus(ctx context.Context, id int64, status Status, assignedToID *int64, reason *string) error {
	_, err := r.q(ctx).ExecContext(ctx, `
		UPDATE referral SET status = ?, assigned_to_id = COALESCE(?, assigned_to_id),
			reason = COALESCE(?, reason), updated_at = NOW()
		WHERE id = ?`,
		status, assignedToID, reason, id)
	return err
}

func (r *repoMySQL) ListBySession(ctx context.Context, sessionID int64) ([]*Referral, error) {
	rows, err := r.q(ctx).QueryContext(ctx,
		`SELECT `+referralCols+` FROM referral WHERE session_id = ? ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReferrals(rows)
}

func (r *repoMySQL) List(ctx context.Context, status Status, limit, offset int) ([]*Referral, int, error) {
	var total int
	if err := r.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM referral WHERE status = ?`, status).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.q(ctx).QueryContext(ctx,
		`SELECT `+referralCols+` FROM referral WHERE status = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	referrals, err := collectReferrals(rows)
	if err != nil {
		return nil, 0, err
	}
	return referrals, total, nil
}

func scanReferral(row *sql.Row) (*Referral, error) {
	var ref Referral
	err := row.Scan(&ref.ID, &ref.SessionID, &ref.Status, &ref.Priority, &ref.Specialty,
		&ref.Reason, &ref.AssignedToID, &ref.CreatedAt, &ref.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func collectReferrals(rows *sql.Rows) ([]*Referral, error) {
	var referrals []*Referral
	for rows.Next() {
		var ref Referral
		if err := rows.Scan(&ref.ID, &ref.SessionID, &ref.Status, &ref.Priority, &ref.Specialty,
			&ref.Reason, &ref.AssignedToID, &ref.CreatedAt, &ref.UpdatedAt); err != nil {
			return nil, err
		}
		referrals = append(referrals, &ref)
	}
	return referrals, rows.Err()
}
