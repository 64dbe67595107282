package patient

import (
	"context"
	"database/sql"
	"errors"
	"time"

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

const patientCols = `id, tracking_code, doc_id, full_name, sex, birth_date, phone, village,
	visit_count, last_seen_at, doc_updated_at, active, created_at, updated_at`

func (r *repoMySQL) Create(ctx context.Context, p *Patient) error {
	res, err := r.q(ctx).ExecContext(ctx, `
		INSERT INTO patient (tracking_code, doc_id, full_name, sex, birth_date, phone, village, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.TrackingCode, p.DocID, p.FullName, p.Sex, p.BirthDate, p.Phone, p.Village, p.Active,
	)
	if err != nil {
		return err
	}
	p.ID, err = res.LastInsertId()
	return err
}

func (r *repoMySQL) GetByID(ctx context.Context, id int64) (*Patient, error) {
	return scanPatient(r.q(ctx).QueryRowContext(ctx,
		`SELECT `+patientCols+` FROM patient WHERE id = ?`, id))
}

func (r *repoMySQL) GetByTrackingCode(ctx context.Context, code string) (*Patient, error) {
	return scanPatient(r.q(ctx).QueryRowContext(ctx,
		`SELECT `+patientCols+` FROM patient WHERE tracking_code = ?`, code))
}

func (r *repoMySQL) GetByDocID(ctx context.Context, docID string) (*Patient, error) {
	return scanPatient(r.q(ctx).QueryRowContext(ctx,
		`SELECT `+patientCols+` FROM patient WHERE doc_id = ?`, docID))
}

func (r *repoMySQL) GetByDocIDForUpdate(ctx context.Context, docID string) (*Patient, error) {
	return scanPatient(r.q(ctx).QueryRowContext(ctx,
		`SELECT `+patientCols+` FROM patient WHERE doc_id = ? FOR UPDATE`, docID))
}

func (r *repoMySQL) Update(ctx context.Context, p *Patient) error {
	_, err := r.q(ctx).ExecContext(ctx, `
		UPDATE patient SET
			full_name = ?, sex = ?, birth_date = ?, phone = ?, village = ?,
			active = ?, updated_at = NOW()
		WHERE id = ?`,
		p.FullName, p.Sex, p.BirthDate, p.Phone, p.Village, p.Active, p.ID,
	)
	return err
}

func (r *repoMySQL) UpsertByDocID(ctx context.Context, p *Patient) error {
	// Replace, not accumulate: demographic fields track the incoming
	// document, tracking_code and visit_count are left alone.
	_, err := r.q(ctx).ExecContext(ctx, `
		INSERT INTO patient (tracking_code, doc_id, full_name, sex, birth_date, phone, village, last_seen_at, doc_updated_at, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			full_name = VALUES(full_name),
			sex = VALUES(sex),
			birth_date = VALUES(birth_date),
			phone = VALUES(phone),
			village = VALUES(village),
			last_seen_at = VALUES(last_seen_at),
			doc_updated_at = VALUES(doc_updated_at),
			updated_at = NOW()`,
		p.TrackingCode, p.DocID, p.FullName, p.Sex, p.BirthDate, p.Phone, p.Village, p.LastSeenAt, p.DocUpdatedAt, p.Active,
	)
	return err
}

func (r *repoMySQL) RecordVisit(ctx context.Context, id int64, seenAt time.Time) error {
	_, err := r.q(ctx).ExecContext(ctx, `
		UPDATE patient SET visit_count = visit_count + 1, last_seen_at = ?, updated_at = NOW()
		WHERE id = ?`, seenAt, id)
	return err
}

func (r *repoMySQL) Deactivate(ctx context.Context, id int64) error {
	_, err := r.q(ctx).ExecContext(ctx,
		`UPDATE patient SET active = FALSE, updated_at = NOW() WHERE id = ?`, id)
	return err
}

func (r *repoMySQL) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.q(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.q(ctx).QueryContext(ctx,
		`SELECT `+patientCols+` FROM patient ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(
			&p.ID, &p.TrackingCode, &p.DocID, &p.FullName, &p.Sex, &p.BirthDate, &p.Phone, &p.Village,
			&p.VisitCount, &p.LastSeenAt, &p.DocUpdatedAt, &p.Active, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		patients = append(patients, &p)
	}
	return patients, total, rows.Err()
}

func scanPatient(row *sql.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.TrackingCode, &p.DocID, &p.FullName, &p.Sex, &p.BirthDate, &p.Phone, &p.Village,
		&p.VisitCount, &p.LastSeenAt, &p.DocUpdatedAt, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
