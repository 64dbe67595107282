package sync

import (
	"context"
	"database/sql"
	"errors"

	"github.com/clinsync/clinsync/internal/platform/db"
)

type storeMySQL struct {
	conn *sql.DB
}

func NewStore(conn *sql.DB) Store {
	return &storeMySQL{conn: conn}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *storeMySQL) q(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.conn
}

func (s *storeMySQL) UpsertForm(ctx context.Context, rec *FormRecord) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO sync_form (doc_id, patient_ref, session_ref, form_type, payload, doc_updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			patient_ref = VALUES(patient_ref),
			session_ref = VALUES(session_ref),
			form_type = VALUES(form_type),
			payload = VALUES(payload),
			doc_updated_at = VALUES(doc_updated_at),
			updated_at = NOW()`,
		rec.DocID, rec.PatientRef, rec.SessionRef, rec.FormType, []byte(rec.Payload), rec.UpdatedAt,
	)
	return err
}

func (s *storeMySQL) UpsertAILog(ctx context.Context, rec *AILogRecord) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO sync_ai_log (doc_id, session_ref, model, intent, payload, doc_updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			session_ref = VALUES(session_ref),
			model = VALUES(model),
			intent = VALUES(intent),
			payload = VALUES(payload),
			doc_updated_at = VALUES(doc_updated_at),
			updated_at = NOW()`,
		rec.DocID, rec.SessionRef, rec.Model, rec.Intent, []byte(rec.Payload), rec.UpdatedAt,
	)
	return err
}

func (s *storeMySQL) UpsertReport(ctx context.Context, rec *ReportRecord) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO sync_report (doc_id, session_ref, report_type, title, payload, doc_updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			session_ref = VALUES(session_ref),
			report_type = VALUES(report_type),
			title = VALUES(title),
			payload = VALUES(payload),
			doc_updated_at = VALUES(doc_updated_at),
			updated_at = NOW()`,
		rec.DocID, rec.SessionRef, rec.ReportType, rec.Title, []byte(rec.Payload), rec.UpdatedAt,
	)
	return err
}

func (s *storeMySQL) UpsertImaging(ctx context.Context, rec *ImagingRecord) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO sync_imaging (doc_id, session_ref, modality, body_site, image_ref, payload, doc_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			session_ref = VALUES(session_ref),
			modality = VALUES(modality),
			body_site = VALUES(body_site),
			image_ref = VALUES(image_ref),
			payload = VALUES(payload),
			doc_updated_at = VALUES(doc_updated_at),
			updated_at = NOW()`,
		rec.DocID, rec.SessionRef, rec.Modality, rec.BodySite, rec.ImageRef, []byte(rec.Payload), rec.UpdatedAt,
	)
	return err
}

func (s *storeMySQL) SaveRaw(ctx context.Context, rec *RawRecord) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO sync_raw_document (doc_id, kind, encrypted, body)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			kind = VALUES(kind),
			encrypted = VALUES(encrypted),
			body = VALUES(body),
			updated_at = NOW()`,
		rec.DocID, rec.Kind, rec.Encrypted, []byte(rec.Body),
	)
	return err
}

func (s *storeMySQL) Checkpoint(ctx context.Context) (string, error) {
	var seq string
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT seq FROM sync_checkpoint WHERE name = 'change_feed'`).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return seq, err
}

func (s *storeMySQL) SetCheckpoint(ctx context.Context, seq string) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO sync_checkpoint (name, seq) VALUES ('change_feed', ?)
		ON DUPLICATE KEY UPDATE seq = VALUES(seq), updated_at = NOW()`,
		seq)
	return err
}
