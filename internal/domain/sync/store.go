package sync

import (
	"context"
	"encoding/json"
	"time"
)

// FormRecord is a canonical assessment form entry.
type FormRecord struct {
	DocID      string          `db:"doc_id" json:"doc_id"`
	PatientRef string          `db:"patient_ref" json:"patient_ref"`
	SessionRef string          `db:"session_ref" json:"session_ref"`
	FormType   string          `db:"form_type" json:"form_type"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	UpdatedAt  *time.Time      `db:"doc_updated_at" json:"doc_updated_at,omitempty"`
}

// AILogRecord is a canonical AI interaction log entry.
type AILogRecord struct {
	DocID      string          `db:"doc_id" json:"doc_id"`
	SessionRef string          `db:"session_ref" json:"session_ref"`
	Model      string          `db:"model" json:"model"`
	Intent     string          `db:"intent" json:"intent"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	UpdatedAt  *time.Time      `db:"doc_updated_at" json:"doc_updated_at,omitempty"`
}

// ReportRecord is a canonical clinical report entry.
type ReportRecord struct {
	DocID      string          `db:"doc_id" json:"doc_id"`
	SessionRef string          `db:"session_ref" json:"session_ref"`
	ReportType string          `db:"report_type" json:"report_type"`
	Title      string          `db:"title" json:"title"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	UpdatedAt  *time.Time      `db:"doc_updated_at" json:"doc_updated_at,omitempty"`
}

// ImagingRecord is a canonical imaging study entry.
type ImagingRecord struct {
	DocID      string          `db:"doc_id" json:"doc_id"`
	SessionRef string          `db:"session_ref" json:"session_ref"`
	Modality   string          `db:"modality" json:"modality"`
	BodySite   string          `db:"body_site" json:"body_site"`
	ImageRef   string          `db:"image_ref" json:"image_ref"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	UpdatedAt  *time.Time      `db:"doc_updated_at" json:"doc_updated_at,omitempty"`
}

// RawRecord preserves a document verbatim. Written for encrypted payloads so
// they can be reprocessed once a key is available.
type RawRecord struct {
	DocID     string          `db:"doc_id" json:"doc_id"`
	Kind      Kind            `db:"kind" json:"kind"`
	Encrypted bool            `db:"encrypted" json:"encrypted"`
	Body      json.RawMessage `db:"body" json:"body"`
}

// Store persists the non-core document kinds and the feed checkpoint.
// Patients and sessions go through their own domain repositories.
type Store interface {
	UpsertForm(ctx context.Context, rec *FormRecord) error
	UpsertAILog(ctx context.Context, rec *AILogRecord) error
	UpsertReport(ctx context.Context, rec *ReportRecord) error
	UpsertImaging(ctx context.Context, rec *ImagingRecord) error
	SaveRaw(ctx context.Context, rec *RawRecord) error

	// Checkpoint returns the last fully-processed feed sequence, "" when the
	// feed has never been read.
	Checkpoint(ctx context.Context) (string, error)
	SetCheckpoint(ctx context.Context, seq string) error
}
