// Package sync ingests the one-way change feed from the offline document
// store into the relational tables. The feed is re-deliverable, out of order,
// and produced by several client versions with drifted field names, so every
// write here is an idempotent upsert behind alias-tolerant mapping.
package sync

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Kind is the closed set of document kinds the engine dispatches on.
type Kind string

const (
	KindPatient Kind = "patient"
	KindSession Kind = "session"
	KindForm    Kind = "form"
	KindAILog   Kind = "ai_log"
	KindReport  Kind = "report"
	KindImaging Kind = "imaging"
	KindUnknown Kind = "unknown"
)

// ParseKind normalizes the discriminant found in a document. Unrecognized
// values map to KindUnknown, never an error: unknown producers must not crash
// the pipeline.
func ParseKind(raw string) Kind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "patient", "patients":
		return KindPatient
	case "session", "visit", "clinical_session":
		return KindSession
	case "form", "assessment_form":
		return KindForm
	case "ai_log", "ailog", "ai_interaction", "aiinteractionlog":
		return KindAILog
	case "report", "lab_report":
		return KindReport
	case "imaging", "imaging_study", "imagingstudy":
		return KindImaging
	default:
		return KindUnknown
	}
}

// RawDocument is a change-feed document as delivered: loosely typed, with any
// subset of the historically-seen field aliases present. Unknown extra fields
// are carried along and ignored.
type RawDocument map[string]interface{}

// Alias tables. Order is the contract: the first non-null match wins, and
// reordering changes which of two conflicting fields is honored. Append new
// aliases at the end.
var (
	idAliases        = []string{"_id", "id", "docId", "doc_id"}
	kindAliases      = []string{"type", "kind", "docType"}
	updatedAtAliases = []string{"updatedAt", "updated_at", "lastUpdated", "last_updated"}
	encryptedAliases = []string{"encrypted", "isEncrypted", "is_encrypted"}
	revAliases       = []string{"_rev", "rev", "revision"}
)

// ID returns the document-store identifier, the upsert key.
func (d RawDocument) ID() (string, bool) {
	s := d.FirstString(idAliases)
	return s, s != ""
}

// DocKind returns the declared kind, or KindUnknown when the discriminant is
// absent or unrecognized.
func (d RawDocument) DocKind() Kind {
	raw := d.FirstString(kindAliases)
	if raw == "" {
		return KindUnknown
	}
	return ParseKind(raw)
}

// Encrypted reports whether the document declares itself encrypted.
func (d RawDocument) Encrypted() bool {
	for _, key := range encryptedAliases {
		switch v := d[key].(type) {
		case bool:
			return v
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
	}
	return false
}

// Rev returns the externally-assigned revision marker, if any.
func (d RawDocument) Rev() string {
	return d.FirstString(revAliases)
}

// UpdatedAt returns the document-declared update time, or nil when the
// document carries none.
func (d RawDocument) UpdatedAt() *time.Time {
	return d.FirstTime(updatedAtAliases)
}

// FirstString returns the first alias whose value is a non-empty string or a
// number (numbers are stringified, since some producers sent numeric IDs).
func (d RawDocument) FirstString(aliases []string) string {
	for _, key := range aliases {
		switch v := d[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		case int:
			return strconv.Itoa(v)
		case int64:
			return strconv.FormatInt(v, 10)
		}
	}
	return ""
}

// FirstTime parses the first alias carrying a usable timestamp. RFC 3339
// strings and epoch numbers (seconds or milliseconds) have both been seen in
// the feed.
func (d RawDocument) FirstTime(aliases []string) *time.Time {
	for _, key := range aliases {
		if t := parseTime(d[key]); t != nil {
			return t
		}
	}
	return nil
}

// FirstValue returns the first alias present with a non-nil value, unparsed.
// Used for actor references, which the identity resolver interprets.
func (d RawDocument) FirstValue(aliases []string) interface{} {
	for _, key := range aliases {
		if v, ok := d[key]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v
		}
	}
	return nil
}

func parseTime(v interface{}) *time.Time {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, s); err == nil {
				parsed = parsed.UTC()
				return &parsed
			}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return epochTime(n)
		}
	case float64:
		return epochTime(int64(t))
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return epochTime(n)
		}
	case int64:
		return epochTime(t)
	}
	return nil
}

// epochTime interprets an epoch value, treating anything past the year ~2286
// in seconds as milliseconds.
func epochTime(n int64) *time.Time {
	if n <= 0 {
		return nil
	}
	var t time.Time
	if n > 1e10 {
		t = time.UnixMilli(n).UTC()
	} else {
		t = time.Unix(n, 0).UTC()
	}
	return &t
}
