package sync

import (
	"testing"
	"time"
)

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"patient":       KindPatient,
		"Patient":       KindPatient,
		"session":       KindSession,
		"visit":         KindSession,
		"form":          KindForm,
		"ai_log":        KindAILog,
		"aiLog":         KindAILog,
		"report":        KindReport,
		"imaging_study": KindImaging,
		"telemetry":     KindUnknown,
		"":              KindUnknown,
	}
	for raw, want := range cases {
		if got := ParseKind(raw); got != want {
			t.Errorf("ParseKind(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestDocKindMissingDiscriminant(t *testing.T) {
	doc := RawDocument{"_id": "d-1", "name": "no type here"}
	if got := doc.DocKind(); got != KindUnknown {
		t.Errorf("DocKind = %s, want unknown", got)
	}
}

func TestFirstStringAliasPriority(t *testing.T) {
	// Both historical aliases present: the earlier alias must win, since
	// that order decides which of two conflicting fields is honored.
	doc := RawDocument{"patientCpt": "CPT-001", "patient_id": "CPT-999"}
	if got := doc.FirstString(patientRefAliases); got != "CPT-001" {
		t.Errorf("patient ref = %q, want CPT-001", got)
	}

	doc = RawDocument{"patient_id": "CPT-999"}
	if got := doc.FirstString(patientRefAliases); got != "CPT-999" {
		t.Errorf("patient ref = %q, want CPT-999", got)
	}

	// Numeric IDs were produced by some client versions.
	doc = RawDocument{"patient_id": float64(42)}
	if got := doc.FirstString(patientRefAliases); got != "42" {
		t.Errorf("patient ref = %q, want 42", got)
	}
}

func TestFirstTime(t *testing.T) {
	want := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)

	for name, doc := range map[string]RawDocument{
		"rfc3339":      {"updatedAt": "2026-02-10T09:30:00Z"},
		"snake_case":   {"updated_at": "2026-02-10T09:30:00Z"},
		"epoch_secs":   {"updatedAt": float64(want.Unix())},
		"epoch_millis": {"updatedAt": float64(want.UnixMilli())},
	} {
		got := doc.UpdatedAt()
		if got == nil || !got.Equal(want) {
			t.Errorf("%s: UpdatedAt = %v, want %v", name, got, want)
		}
	}

	if got := (RawDocument{"updatedAt": "not a time"}).UpdatedAt(); got != nil {
		t.Errorf("garbage timestamp parsed to %v", got)
	}
	if got := (RawDocument{}).UpdatedAt(); got != nil {
		t.Errorf("absent timestamp parsed to %v", got)
	}
}

func TestEncryptedFlag(t *testing.T) {
	if !(RawDocument{"encrypted": true}).Encrypted() {
		t.Error("encrypted=true not detected")
	}
	if !(RawDocument{"isEncrypted": "true"}).Encrypted() {
		t.Error("isEncrypted=\"true\" not detected")
	}
	if (RawDocument{"encrypted": false}).Encrypted() {
		t.Error("encrypted=false misread")
	}
	if (RawDocument{}).Encrypted() {
		t.Error("absent flag misread")
	}
}

func TestDecide(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	if Decide(&older, &newer) != DecisionSkip {
		t.Error("older incoming must skip")
	}
	if Decide(&newer, &older) != DecisionApply {
		t.Error("newer incoming must apply")
	}
	// Equal timestamps apply: redelivering the same revision is idempotent.
	if Decide(&older, &older) != DecisionApply {
		t.Error("equal timestamps must apply")
	}
	if Decide(nil, &older) != DecisionApply || Decide(&older, nil) != DecisionApply {
		t.Error("missing timestamps must apply")
	}
}
