package referral

import (
	"context"
	"errors"
	"testing"

	"github.com/clinsync/clinsync/internal/platform/events"
)

type mockRepo struct {
	referrals map[int64]*Referral
	nextID    int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{referrals: map[int64]*Referral{}, nextID: 1}
}

func (m *mockRepo) Create(_ context.Context, r *Referral) error {
	r.ID = m.nextID
	m.nextID++
	cp := *r
	m.referrals[r.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*Referral, error) {
	r, ok := m.referrals[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepo) GetOpenBySession(_ context.Context, sessionID int64) (*Referral, error) {
	var newest *Referral
	for _, r := range m.referrals {
		if r.SessionID != sessionID {
			continue
		}
		if r.Status != StatusPending && r.Status != StatusAccepted {
			continue
		}
		if newest == nil || r.ID > newest.ID {
			newest = r
		}
	}
	if newest == nil {
		return nil, ErrNotFound
	}
	cp := *newest
	return &cp, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id int64, status Status, assignedToID *int64, reason *string) error {
	r, ok := m.referrals[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	if assignedToID != nil {
		r.AssignedToID = assignedToID
	}
	if reason != nil {
		r.Reason = reason
	}
	return nil
}

func (m *mockRepo) ListBySession(_ context.Context, sessionID int64) ([]*Referral, error) {
	var out []*Referral
	for _, r := range m.referrals {
		if r.SessionID == sessionID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) List(_ context.Context, status Status, limit, offset int) ([]*Referral, int, error) {
	var out []*Referral
	for _, r := range m.referrals {
		if r.Status == status {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func TestOpenForSession(t *testing.T) {
	repo := newMockRepo()
	bus := events.NewMemoryBus()
	var published []events.Event
	bus.Subscribe(events.TypeReferralCreated, func(_ context.Context, e events.Event) {
		published = append(published, e)
	})
	svc := NewService(repo, bus)

	if err := svc.OpenForSession(context.Background(), 7, "red", "cardiology", "specialist_required", nil); err != nil {
		t.Fatalf("OpenForSession: %v", err)
	}

	open, err := repo.GetOpenBySession(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetOpenBySession: %v", err)
	}
	if open.Status != StatusPending {
		t.Errorf("status = %s, want pending", open.Status)
	}
	if open.Specialty == nil || *open.Specialty != "cardiology" {
		t.Errorf("specialty = %v, want cardiology", open.Specialty)
	}
	if len(published) != 1 {
		t.Fatalf("expected 1 referral.created event, got %d", len(published))
	}
}

func TestOpenForSession_NoDuplicateOpen(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	if err := svc.OpenForSession(ctx, 7, "red", "", "specialist_required", nil); err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := svc.OpenForSession(ctx, 7, "yellow", "", "specialist_required", nil); err != nil {
		t.Fatalf("second open: %v", err)
	}
	if len(repo.referrals) != 1 {
		t.Errorf("expected 1 referral, got %d", len(repo.referrals))
	}
}

func TestMarkAccepted(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	actor := int64(42)

	if err := svc.OpenForSession(ctx, 7, "red", "", "specialist_required", nil); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := svc.MarkAccepted(ctx, 7, &actor); err != nil {
		t.Fatalf("MarkAccepted: %v", err)
	}

	ref := repo.referrals[1]
	if ref.Status != StatusAccepted {
		t.Errorf("status = %s, want accepted", ref.Status)
	}
	if ref.AssignedToID == nil || *ref.AssignedToID != actor {
		t.Errorf("assigned_to_id = %v, want %d", ref.AssignedToID, actor)
	}
}

func TestMarkAccepted_NoOpenReferralIsNoop(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	if err := svc.MarkAccepted(context.Background(), 99, nil); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestMarkRejected(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	if err := svc.OpenForSession(ctx, 7, "red", "", "specialist_required", nil); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := svc.MarkRejected(ctx, 7, "no specialist available"); err != nil {
		t.Fatalf("MarkRejected: %v", err)
	}

	ref := repo.referrals[1]
	if ref.Status != StatusRejected {
		t.Errorf("status = %s, want rejected", ref.Status)
	}
	// The justification replaces the opening reason on the row.
	if ref.Reason == nil || *ref.Reason != "no specialist available" {
		t.Errorf("reason = %v, want the rejection justification persisted", ref.Reason)
	}
}

func TestReject_PersistsReason(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	if err := svc.OpenForSession(ctx, 7, "red", "", "specialist_required", nil); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := svc.Reject(ctx, 1, "duplicate request"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if got := repo.referrals[1].Reason; got == nil || *got != "duplicate request" {
		t.Errorf("reason = %v, want duplicate request", got)
	}

	// A blank reason keeps whatever the row already holds.
	repo.referrals[1].Status = StatusPending
	if err := svc.Reject(ctx, 1, "  "); err != nil {
		t.Fatalf("Reject without reason: %v", err)
	}
	if got := repo.referrals[1].Reason; got == nil || *got != "duplicate request" {
		t.Errorf("blank reason overwrote the stored one: %v", got)
	}
}

func TestIllegalStatusMoves(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	if err := svc.OpenForSession(ctx, 7, "red", "", "specialist_required", nil); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := svc.Reject(ctx, 1, "not needed"); err != nil {
		t.Fatalf("reject: %v", err)
	}

	// A rejected referral is terminal.
	for _, to := range []func() error{
		func() error { return svc.Accept(ctx, 1, nil) },
		func() error { return svc.Complete(ctx, 1) },
		func() error { return svc.Cancel(ctx, 1) },
	} {
		var statusErr *StatusError
		if err := to(); !errors.As(err, &statusErr) {
			t.Errorf("expected StatusError, got %v", err)
		}
	}
}

func TestCompleteRequiresAccepted(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	if err := svc.OpenForSession(ctx, 7, "red", "", "specialist_required", nil); err != nil {
		t.Fatalf("open: %v", err)
	}

	var statusErr *StatusError
	if err := svc.Complete(ctx, 1); !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError completing a pending referral, got %v", err)
	}
	if err := svc.Accept(ctx, 1, nil); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := svc.Complete(ctx, 1); err != nil {
		t.Fatalf("complete after accept: %v", err)
	}
	if got := repo.referrals[1].Status; got != StatusCompleted {
		t.Errorf("status = %s, want completed", got)
	}
}
