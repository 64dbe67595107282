package referral

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/clinsync/clinsync/internal/platform/events"
)

type Service struct {
	repo Repository
	bus  events.Bus
}

func NewService(repo Repository, bus events.Bus) *Service {
	if bus == nil {
		bus = events.NopBus{}
	}
	return &Service{repo: repo, bus: bus}
}

func (s *Service) Get(ctx context.Context, id int64) (*Referral, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListBySession(ctx context.Context, sessionID int64) ([]*Referral, error) {
	return s.repo.ListBySession(ctx, sessionID)
}

func (s *Service) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Referral, int, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.List(ctx, status, limit, offset)
}

// OpenForSession opens a pending referral for a session. At most one open
// referral exists per session: if one is already pending or accepted it is
// returned unchanged instead of a duplicate being created.
func (s *Service) OpenForSession(ctx context.Context, sessionID int64, priority, specialty, reason string, actorID *int64) error {
	if sessionID == 0 {
		return fmt.Errorf("session_id is required")
	}
	if existing, err := s.repo.GetOpenBySession(ctx, sessionID); err == nil && existing != nil {
		return nil
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	ref := &Referral{
		SessionID: sessionID,
		Status:    StatusPending,
		Priority:  priority,
	}
	if specialty = strings.TrimSpace(specialty); specialty != "" {
		ref.Specialty = &specialty
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		ref.Reason = &reason
	}
	ref.AssignedToID = actorID
	if err := s.repo.Create(ctx, ref); err != nil {
		return err
	}

	_ = s.bus.Publish(ctx, events.New(events.TypeReferralCreated, events.ReferralCreated{
		ReferralID: ref.ID,
		SessionID:  ref.SessionID,
		Priority:   ref.Priority,
		Specialty:  specialty,
	}))
	return nil
}

// MarkAccepted moves the session's open referral to accepted. A session with
// no open referral is a no-op, not an error: the session may have been
// referred before referral records existed.
func (s *Service) MarkAccepted(ctx context.Context, sessionID int64, actorID *int64) error {
	ref, err := s.repo.GetOpenBySession(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.move(ctx, ref, StatusAccepted, actorID, nil)
}

// MarkRejected moves the session's open referral to rejected and records the
// justification on the referral row.
func (s *Service) MarkRejected(ctx context.Context, sessionID int64, reason string) error {
	ref, err := s.repo.GetOpenBySession(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.move(ctx, ref, StatusRejected, nil, optionalReason(reason))
}

// Accept marks a specific referral accepted.
func (s *Service) Accept(ctx context.Context, id int64, actorID *int64) error {
	return s.moveByID(ctx, id, StatusAccepted, actorID, nil)
}

// Reject marks a specific referral rejected with an optional justification.
func (s *Service) Reject(ctx context.Context, id int64, reason string) error {
	return s.moveByID(ctx, id, StatusRejected, nil, optionalReason(reason))
}

// Complete marks an accepted referral completed.
func (s *Service) Complete(ctx context.Context, id int64) error {
	return s.moveByID(ctx, id, StatusCompleted, nil, nil)
}

// Cancel withdraws a pending or accepted referral.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	return s.moveByID(ctx, id, StatusCancelled, nil, nil)
}

func (s *Service) moveByID(ctx context.Context, id int64, to Status, actorID *int64, reason *string) error {
	ref, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.move(ctx, ref, to, actorID, reason)
}

func (s *Service) move(ctx context.Context, ref *Referral, to Status, actorID *int64, reason *string) error {
	if !CanMove(ref.Status, to) {
		return &StatusError{From: ref.Status, To: to}
	}
	return s.repo.UpdateStatus(ctx, ref.ID, to, actorID, reason)
}

func optionalReason(reason string) *string {
	if reason = strings.TrimSpace(reason); reason == "" {
		return nil
	}
	return &reason
}
