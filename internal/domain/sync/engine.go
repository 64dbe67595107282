package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/clinsync/clinsync/internal/domain/patient"
	"github.com/clinsync/clinsync/internal/domain/session"
	"github.com/clinsync/clinsync/internal/platform/db"
)

// SkipError marks a document the engine deliberately did not apply: missing
// identifier or discriminant, or a stale revision. Skips are logged and the
// batch continues; they never surface to the feed caller.
type SkipError struct {
	DocID  string
	Reason string
}

func (e *SkipError) Error() string {
	if e.DocID == "" {
		return "skipped document: " + e.Reason
	}
	return fmt.Sprintf("skipped document %s: %s", e.DocID, e.Reason)
}

// ActorResolver resolves an opaque actor reference from a document to a
// local user ID, nil on a miss.
type ActorResolver interface {
	Resolve(ctx context.Context, ref interface{}) *int64
}

// Engine ingests raw change-feed documents. Each document kind dispatches to
// its own mapper plus upsert; patients and sessions run through the domain
// repositories so their invariants hold, everything else lands in the sync
// store.
type Engine struct {
	patients patient.Repository
	sessions session.Repository
	store    Store
	resolver ActorResolver
	log      zerolog.Logger

	// referrals, when set, receives the auto-referral side effect for
	// session documents. This is the engine's only cross-entity write.
	referrals    session.Referrals
	autoReferral bool

	runTx func(ctx context.Context, fn func(ctx context.Context) error) error
}

// NewEngine builds the ingest engine. conn supplies the transactional
// boundary for the read-check-write upsert paths; a nil conn (in-memory
// tests) runs them without one.
func NewEngine(conn *sql.DB, patients patient.Repository, sessions session.Repository, store Store, resolver ActorResolver, log zerolog.Logger) *Engine {
	e := &Engine{
		patients: patients,
		sessions: sessions,
		store:    store,
		resolver: resolver,
		log:      log,
	}
	e.runTx = func(ctx context.Context, fn func(ctx context.Context) error) error {
		if conn == nil {
			return fn(ctx)
		}
		return db.RunInTx(ctx, conn, fn)
	}
	return e
}

// EnableAutoReferral turns on referral creation for newly-synced sessions
// that report a referred state or arrive with red triage priority.
func (e *Engine) EnableAutoReferral(referrals session.Referrals) {
	e.referrals = referrals
	e.autoReferral = referrals != nil
}

// Upsert applies one raw document. A *SkipError return means the document
// was intentionally not applied; any other error is a per-document failure.
// Both leave previously-stored rows untouched.
func (e *Engine) Upsert(ctx context.Context, doc RawDocument) error {
	id, ok := doc.ID()
	if !ok {
		return &SkipError{Reason: "missing document identifier"}
	}
	kind := doc.DocKind()
	if kind == KindUnknown {
		return &SkipError{DocID: id, Reason: "missing or unrecognized kind discriminant"}
	}

	if doc.Encrypted() {
		// No attempt to interpret the contents: persist the identifier, a
		// stub, and the verbatim body for later reprocessing.
		body, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal encrypted document %s: %w", id, err)
		}
		return e.store.SaveRaw(ctx, &RawRecord{DocID: id, Kind: kind, Encrypted: true, Body: body})
	}

	switch kind {
	case KindPatient:
		return e.upsertPatient(ctx, doc)
	case KindSession:
		return e.upsertSession(ctx, doc)
	case KindForm:
		rec, err := mapForm(doc)
		if err != nil {
			return err
		}
		return e.store.UpsertForm(ctx, rec)
	case KindAILog:
		rec, err := mapAILog(doc)
		if err != nil {
			return err
		}
		return e.store.UpsertAILog(ctx, rec)
	case KindReport:
		rec, err := mapReport(doc)
		if err != nil {
			return err
		}
		return e.store.UpsertReport(ctx, rec)
	case KindImaging:
		rec, err := mapImaging(doc)
		if err != nil {
			return err
		}
		return e.store.UpsertImaging(ctx, rec)
	case KindUnknown:
		// Handled above; kept so the switch stays exhaustive over Kind.
	}
	return nil
}

func (e *Engine) upsertPatient(ctx context.Context, doc RawDocument) error {
	p, err := mapPatient(doc)
	if err != nil {
		return err
	}

	// The stale check and the write must see the same row. The locking read
	// holds the row until commit, so concurrent deliveries of the same
	// document serialize and each decides against the latest committed
	// revision.
	return e.runTx(ctx, func(txCtx context.Context) error {
		stored, err := e.patients.GetByDocIDForUpdate(txCtx, *p.DocID)
		switch {
		case err == nil:
			if Decide(p.DocUpdatedAt, stored.DocUpdatedAt) == DecisionSkip {
				return &SkipError{DocID: *p.DocID, Reason: "stale revision"}
			}
		case errors.Is(err, patient.ErrNotFound):
			// First sight of this document: insert below.
		default:
			return fmt.Errorf("load patient %s: %w", *p.DocID, err)
		}

		return e.patients.UpsertByDocID(txCtx, p)
	})
}

func (e *Engine) upsertSession(ctx context.Context, doc RawDocument) error {
	sd, err := mapSession(doc)
	if err != nil {
		return err
	}
	docID := *sd.sess.DocID

	pat, err := e.resolvePatient(ctx, sd.patientRef)
	if err != nil {
		return err
	}
	sd.sess.PatientID = pat.ID

	// Same shape as the patient path: the locking read pins the row so the
	// conflict decision and the write commit as one unit.
	var stored *session.Session
	err = e.runTx(ctx, func(txCtx context.Context) error {
		cur, err := e.sessions.GetByDocIDForUpdate(txCtx, docID)
		switch {
		case err == nil:
			if Decide(sd.sess.DocUpdatedAt, cur.DocUpdatedAt) == DecisionSkip {
				return &SkipError{DocID: docID, Reason: "stale revision"}
			}
		case errors.Is(err, session.ErrNotFound):
			cur = nil
		default:
			return fmt.Errorf("load session %s: %w", docID, err)
		}
		stored = cur

		if cur == nil && sd.stateKnown {
			sd.sess.State = sd.state
		}
		return e.sessions.UpsertByDocID(txCtx, sd.sess)
	})
	if err != nil {
		return err
	}

	if e.autoReferral {
		if err := e.maybeAutoRefer(ctx, sd, stored); err != nil {
			// The session row is already applied; a referral failure is
			// logged but does not fail the document.
			e.log.Error().Err(err).Str("doc_id", docID).Msg("auto-referral failed")
		}
	}
	return nil
}

// resolvePatient matches a session's patient reference against the local
// patient table, first as a document-store identifier, then as a tracking
// code.
func (e *Engine) resolvePatient(ctx context.Context, ref string) (*patient.Patient, error) {
	pat, err := e.patients.GetByDocID(ctx, ref)
	if err == nil {
		return pat, nil
	}
	if !errors.Is(err, patient.ErrNotFound) {
		return nil, err
	}
	pat, err = e.patients.GetByTrackingCode(ctx, ref)
	if errors.Is(err, patient.ErrNotFound) {
		return nil, fmt.Errorf("unknown patient reference %q", ref)
	}
	return pat, err
}

// maybeAutoRefer opens a referral when a synced session first reports a
// referred workflow state, or first arrives carrying red triage priority.
func (e *Engine) maybeAutoRefer(ctx context.Context, sd *sessionDoc, stored *session.Session) error {
	newlyReferred := sd.stateKnown && sd.state == session.StateReferred &&
		(stored == nil || stored.State != session.StateReferred)
	newlyCritical := stored == nil && sd.sess.Priority == session.PriorityRed

	if !newlyReferred && !newlyCritical {
		return nil
	}

	current, err := e.sessions.GetByDocID(ctx, *sd.sess.DocID)
	if err != nil {
		return err
	}

	reason := session.ReasonSpecialistRequired
	if !newlyReferred {
		reason = session.ReasonAutoTriageEscalation
	}
	var actor *int64
	if e.resolver != nil {
		actor = e.resolver.Resolve(ctx, sd.actorRef)
	}
	return e.referrals.OpenForSession(ctx, current.ID, string(current.Priority), "", reason, actor)
}

// ProcessBatch applies one change-feed page sequentially. Per-document
// failures and skips are logged with the document identifier and kind and do
// not abort the batch. The return value counts only documents actually
// applied.
func (e *Engine) ProcessBatch(ctx context.Context, docs []RawDocument) int {
	applied := 0
	for _, doc := range docs {
		err := e.Upsert(ctx, doc)
		if err == nil {
			applied++
			continue
		}

		id, _ := doc.ID()
		var skip *SkipError
		if errors.As(err, &skip) {
			e.log.Warn().
				Str("doc_id", id).
				Str("kind", string(doc.DocKind())).
				Str("reason", skip.Reason).
				Msg("document skipped")
		} else {
			e.log.Error().Err(err).
				Str("doc_id", id).
				Str("kind", string(doc.DocKind())).
				Msg("document failed")
		}
	}
	return applied
}

// FeedPage is one page of the change feed: its documents plus the sequence
// token to resume from once the page is fully processed.
type FeedPage struct {
	Seq  string        `json:"seq"`
	Docs []RawDocument `json:"docs"`
}

// ProcessFeed applies a page and advances the checkpoint only after the
// whole page has been attempted, so a crash mid-page re-delivers the page
// and idempotent upserts absorb the duplicates.
func (e *Engine) ProcessFeed(ctx context.Context, page FeedPage) (int, error) {
	applied := e.ProcessBatch(ctx, page.Docs)
	if page.Seq != "" {
		if err := e.store.SetCheckpoint(ctx, page.Seq); err != nil {
			return applied, fmt.Errorf("advance checkpoint: %w", err)
		}
	}
	return applied, nil
}
