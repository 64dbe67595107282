package session

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/clinsync/clinsync/internal/platform/db"
	"github.com/clinsync/clinsync/internal/platform/events"
)

// Referrals is the hook through which the workflow keeps referral records in
// step with session-level transitions. All three calls run inside the
// transition's transaction.
type Referrals interface {
	OpenForSession(ctx context.Context, sessionID int64, priority, specialty, reason string, actorID *int64) error
	MarkAccepted(ctx context.Context, sessionID int64, actorID *int64) error
	MarkRejected(ctx context.Context, sessionID int64, reason string) error
}

type Service struct {
	repo      Repository
	wf        *Workflow
	bus       events.Bus
	referrals Referrals
	runTx     func(ctx context.Context, fn func(ctx context.Context) error) error
	now       func() time.Time
}

// NewService builds the workflow service. conn supplies the transactional
// boundary; a nil conn (in-memory tests) runs each operation without one.
func NewService(conn *sql.DB, repo Repository, wf *Workflow, bus events.Bus) *Service {
	if wf == nil {
		wf = DefaultWorkflow()
	}
	if bus == nil {
		bus = events.NopBus{}
	}
	s := &Service{
		repo: repo,
		wf:   wf,
		bus:  bus,
		now:  func() time.Time { return time.Now().UTC() },
	}
	s.runTx = func(ctx context.Context, fn func(ctx context.Context) error) error {
		if conn == nil {
			return fn(ctx)
		}
		return db.RunInTx(ctx, conn, fn)
	}
	return s
}

// SetReferrals wires the referral hook (optional).
func (s *Service) SetReferrals(r Referrals) { s.referrals = r }

// Workflow exposes the read-only transition table.
func (s *Service) Workflow() *Workflow { return s.wf }

// Open creates a fresh session in the NEW state.
func (s *Service) Open(ctx context.Context, sess *Session) error {
	if sess.PatientID == 0 {
		return fmt.Errorf("patient_id is required")
	}
	if sess.Stage == "" {
		sess.Stage = StageRegistration
	}
	sess.State = StateNew
	sess.Priority = ParsePriority(string(sess.Priority))
	sess.StateUpdatedAt = s.now()
	return s.repo.Create(ctx, sess)
}

func (s *Service) Get(ctx context.Context, id int64) (*Session, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByDocID(ctx context.Context, docID string) (*Session, error) {
	return s.repo.GetByDocID(ctx, docID)
}

func (s *Service) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Session, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// CanTransition is a side-effect-free guard for UI hints.
func (s *Service) CanTransition(sess *Session, to State) bool {
	return s.wf.CanTransition(sess.State, to)
}

// AllowedTransitions returns the legal next states for a session.
func (s *Service) AllowedTransitions(sess *Session) []State {
	return s.wf.AllowedTransitions(sess.State)
}

// TransitionHistory returns the ordered audit trail for a session.
func (s *Service) TransitionHistory(ctx context.Context, sessionID int64) ([]*Transition, error) {
	return s.repo.Transitions(ctx, sessionID)
}

// Transition moves a session to a new workflow state. Within a single
// transaction it re-reads the session under the row lock, guards the
// legal-transition table and the reason requirement, appends the audit row,
// and updates the session's state. Two concurrent requests against the same
// session therefore serialize: the second re-reads the new state and fails
// its guard cleanly instead of racing.
//
// The audit row and the state update commit together or not at all.
func (s *Service) Transition(ctx context.Context, sessionID int64, to State, reason string, metadata map[string]string, actorID *int64) (*Transition, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("unknown workflow state %q", to)
	}
	reason = strings.TrimSpace(reason)

	var record *Transition
	err := s.runTx(ctx, func(txCtx context.Context) error {
		sess, err := s.repo.GetByIDForUpdate(txCtx, sessionID)
		if err != nil {
			return fmt.Errorf("load session %d: %w", sessionID, err)
		}

		from := sess.State
		if !s.wf.CanTransition(from, to) {
			return &TransitionError{From: from, To: to}
		}
		if s.wf.ReasonRequired(from, to) && reason == "" {
			return &ReasonRequiredError{From: from, To: to}
		}

		now := s.now()
		// State-updated timestamps never run backwards for a session.
		if now.Before(sess.StateUpdatedAt) {
			now = sess.StateUpdatedAt
		}

		record = &Transition{
			SessionID: sessionID,
			FromState: from,
			ToState:   to,
			ActorID:   actorID,
			Reason:    reason,
			Metadata:  metadata,
			CreatedAt: now,
		}
		if err := s.repo.AddTransition(txCtx, record); err != nil {
			return fmt.Errorf("write audit row: %w", err)
		}

		var completedAt *time.Time
		if to == StateClosed {
			completedAt = &now
		}
		if err := s.repo.UpdateState(txCtx, sessionID, to, now, completedAt); err != nil {
			return fmt.Errorf("update session state: %w", err)
		}

		if s.referrals != nil {
			if err := s.syncReferral(txCtx, sess, to, reason, metadata, actorID); err != nil {
				return fmt.Errorf("sync referral: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = s.bus.Publish(ctx, events.New(events.TypeSessionStateChanged, events.SessionStateChanged{
		SessionID: sessionID,
		FromState: string(record.FromState),
		ToState:   string(record.ToState),
		ActorID:   actorID,
		Timestamp: record.CreatedAt,
	}))

	return record, nil
}

func (s *Service) syncReferral(ctx context.Context, sess *Session, to State, reason string, metadata map[string]string, actorID *int64) error {
	switch to {
	case StateReferred:
		return s.referrals.OpenForSession(ctx, sess.ID, string(sess.Priority), metadata["specialty"], reason, actorID)
	case StateInReview:
		if sess.State == StateReferred {
			return s.referrals.MarkAccepted(ctx, sess.ID, actorID)
		}
	case StateClosed:
		if sess.State == StateReferred {
			return s.referrals.MarkRejected(ctx, sess.ID, reason)
		}
	}
	return nil
}

// -- Convenience wrappers --
//
// Named operations standardize the reason vocabulary per business scenario.
// They all funnel through Transition and cannot bypass its guards.

// AcceptReferral moves a referred session into review.
func (s *Service) AcceptReferral(ctx context.Context, sessionID int64, actorID *int64) (*Transition, error) {
	return s.Transition(ctx, sessionID, StateInReview, ReasonReferralAccepted, nil, actorID)
}

// RejectReferral closes a referred session with a rejection reason.
func (s *Service) RejectReferral(ctx context.Context, sessionID int64, reason string, actorID *int64) (*Transition, error) {
	if strings.TrimSpace(reason) == "" {
		reason = ReasonReferralRejected
	}
	return s.Transition(ctx, sessionID, StateClosed, reason, nil, actorID)
}

// StartTreatment moves a session into active treatment.
func (s *Service) StartTreatment(ctx context.Context, sessionID int64, actorID *int64) (*Transition, error) {
	return s.Transition(ctx, sessionID, StateUnderTreatment, ReasonTreatmentStarted, nil, actorID)
}

// RequestSpecialistReferral refers a session out to a named specialty.
func (s *Service) RequestSpecialistReferral(ctx context.Context, sessionID int64, specialty, reason string, actorID *int64) (*Transition, error) {
	if strings.TrimSpace(reason) == "" {
		reason = ReasonSpecialistRequired
	}
	metadata := map[string]string{}
	if specialty != "" {
		metadata["specialty"] = specialty
	}
	return s.Transition(ctx, sessionID, StateReferred, reason, metadata, actorID)
}

// CloseSession ends a session with an explicit justification.
func (s *Service) CloseSession(ctx context.Context, sessionID int64, reason string, actorID *int64) (*Transition, error) {
	return s.Transition(ctx, sessionID, StateClosed, reason, nil, actorID)
}
