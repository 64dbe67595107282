package session

import (
	"context"
	"database/sql"
	"encoding/json"
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

const sessionCols = `id, patient_id, doc_id, stage, state, priority, complaint, notes,
	treatment_plan, doc_updated_at, state_updated_at, completed_at, created_at, updated_at`

func (r *repoMySQL) Create(ctx context.Context, s *Session) error {
	if s.State == "" {
		s.State = StateNew
	}
	if s.Priority == "" {
		s.Priority = PriorityUnknown
	}
	if s.StateUpdatedAt.IsZero() {
		s.StateUpdatedAt = time.Now().UTC()
	}
	res, err := r.q(ctx).ExecContext(ctx, `
		INSERT INTO clinical_session (patient_id, doc_id, stage, state, priority, complaint, notes,
			treatment_plan, doc_updated_at, state_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.PatientID, s.DocID, s.Stage, s.State, s.Priority, s.Complaint, s.Notes,
		s.TreatmentPlan, s.DocUpdatedAt, s.StateUpdatedAt,
	)
	if err != nil {
		return err
	}
	s.ID, err = res.LastInsertId()
	return err
}

func (r *repoMySQL) GetByID(ctx context.Context, id int64) (*Session, error) {
	return scanSession(r.q(ctx).QueryRowContext(ctx,
		`SELECT `+sessionCols+` FROM clinical_session WHERE id = ?`, id))
}

func (r *repoMySQL) GetByIDForUpdate(ctx context.Context, id int64) (*Session, error) {
	return scanSession(r.q(ctx).QueryRowContext(ctx,
		`SELECT `+sessionCols+` FROM clinical_session WHERE id = ? FOR UPDATE`, id))
}

func (r *repoMySQL) GetByDocID(ctx context.Context, docID string) (*Session, error) {
	return scanSession(r.q(ctx).QueryRowContext(ctx,
		`SELECT `+sessionCols+` FROM clinical_session WHERE doc_id = ?`, docID))
}

func (r *repoMySQL) GetByDocIDForUpdate(ctx context.Context, docID string) (*Session, error) {
	return scanSession(r.q(ctx).QueryRowContext(ctx,
		`SELECT `+sessionCols+` FROM clinical_session WHERE doc_id = ? FOR UPDATE`, docID))
}

func (r *repoMySQL) UpdateState(ctx context.Context, id int64, state State, stateUpdatedAt time.Time, completedAt *time.Time) error {
	_, err := r.q(ctx).ExecContext(ctx, `
		UPDATE clinical_session SET state = ?, state_updated_at = ?, completed_at = ?, updated_at = NOW()
		WHERE id = ?`,
		state, stateUpdatedAt, completedAt, id,
	)
	return err
}

func (r *repoMySQL) UpsertByDocID(ctx context.Context, s *Session) error {
	if s.State == "" {
		s.State = StateNew
	}
	if s.Priority == "" {
		s.Priority = PriorityUnknown
	}
	if s.StateUpdatedAt.IsZero() {
		s.StateUpdatedAt = time.Now().UTC()
	}
	// State is written only on insert; on conflict the machine keeps
	// ownership and only document-sourced fields refresh.
	_, err := r.q(ctx).ExecContext(ctx, `
		INSERT INTO clinical_session (patient_id, doc_id, stage, state, priority, complaint, notes,
			treatment_plan, doc_updated_at, state_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			stage = VALUES(stage),
			priority = VALUES(priority),
			complaint = VALUES(complaint),
			notes = VALUES(notes),
			treatment_plan = VALUES(treatment_plan),
			doc_updated_at = VALUES(doc_updated_at),
			updated_at = NOW()`,
		s.PatientID, s.DocID, s.Stage, s.State, s.Priority, s.Complaint, s.Notes,
		s.TreatmentPlan, s.DocUpdatedAt, s.StateUpdatedAt,
	)
	return err
}

func (r *repoMySQL) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Session, int, error) {
	var total int
	if err := r.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM clinical_session WHERE patient_id = ?`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.q(ctx).QueryContext(ctx,
		`SELECT `+sessionCols+` FROM clinical_session WHERE patient_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSessionRows(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, s)
	}
	return sessions, total, rows.Err()
}

func (r *repoMySQL) AddTransition(ctx context.Context, t *Transition) error {
	var metadata interface{}
	if len(t.Metadata) > 0 {
		raw, err := json.Marshal(t.Metadata)
		if err != nil {
			return err
		}
		metadata = raw
	}
	res, err := r.q(ctx).ExecContext(ctx, `
		INSERT INTO state_transition (session_id, from_state, to_state, actor_id, reason, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.SessionID, t.FromState, t.ToState, t.ActorID, t.Reason, metadata, t.CreatedAt,
	)
	if err != nil {
		return err
	}
	t.ID, err = res.LastInsertId()
	return err
}

func (r *repoMySQL) Transitions(ctx context.Context, sessionID int64) ([]*Transition, error) {
	rows, err := r.q(ctx).QueryContext(ctx, `
		SELECT id, session_id, from_state, to_state, actor_id, reason, metadata, created_at
		FROM state_transition WHERE session_id = ? ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []*Transition
	for rows.Next() {
		var t Transition
		var metadata []byte
		if err := rows.Scan(&t.ID, &t.SessionID, &t.FromState, &t.ToState, &t.ActorID, &t.Reason, &metadata, &t.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
				return nil, err
			}
		}
		history = append(history, &t)
	}
	return history, rows.Err()
}

func scanSession(row *sql.Row) (*Session, error) {
	var s Session
	err := row.Scan(
		&s.ID, &s.PatientID, &s.DocID, &s.Stage, &s.State, &s.Priority, &s.Complaint, &s.Notes,
		&s.TreatmentPlan, &s.DocUpdatedAt, &s.StateUpdatedAt, &s.CompletedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanSessionRows(rows *sql.Rows) (*Session, error) {
	var s Session
	err := rows.Scan(
		&s.ID, &s.PatientID, &s.DocID, &s.Stage, &s.State, &s.Priority, &s.Complaint, &s.Notes,
		&s.TreatmentPlan, &s.DocUpdatedAt, &s.StateUpdatedAt, &s.CompletedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
