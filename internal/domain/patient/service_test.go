package patient

import (
	"context"
	"testing"
	"time"
)

// -- Mock Repository --

type mockRepo struct {
	patients map[int64]*Patient
	nextID   int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[int64]*Patient), nextID: 1}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	p.ID = m.nextID
	m.nextID++
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockRepo) GetByTrackingCode(_ context.Context, code string) (*Patient, error) {
	for _, p := range m.patients {
		if p.TrackingCode == code {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) GetByDocID(_ context.Context, docID string) (*Patient, error) {
	for _, p := range m.patients {
		if p.DocID != nil && *p.DocID == docID {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) GetByDocIDForUpdate(ctx context.Context, docID string) (*Patient, error) {
	return m.GetByDocID(ctx, docID)
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) UpsertByDocID(ctx context.Context, p *Patient) error {
	if p.DocID != nil {
		if existing, err := m.GetByDocID(ctx, *p.DocID); err == nil {
			p.ID = existing.ID
			p.TrackingCode = existing.TrackingCode
			p.VisitCount = existing.VisitCount
			m.patients[p.ID] = p
			return nil
		}
	}
	return m.Create(ctx, p)
}

func (m *mockRepo) RecordVisit(_ context.Context, id int64, seenAt time.Time) error {
	p, ok := m.patients[id]
	if !ok {
		return ErrNotFound
	}
	p.VisitCount++
	p.LastSeenAt = &seenAt
	return nil
}

func (m *mockRepo) Deactivate(_ context.Context, id int64) error {
	p, ok := m.patients[id]
	if !ok {
		return ErrNotFound
	}
	p.Active = false
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.patients {
		result = append(result, p)
	}
	return result, len(result), nil
}

// -- Tests --

func TestRegister(t *testing.T) {
	svc := NewService(newMockRepo())

	p := &Patient{TrackingCode: "KH-0001", FullName: "Sokha Chan"}
	if err := svc.Register(context.Background(), p); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if p.ID == 0 {
		t.Error("expected assigned id")
	}
	if !p.Active {
		t.Error("expected new patient to be active")
	}
}

func TestRegister_RequiresTrackingCode(t *testing.T) {
	svc := NewService(newMockRepo())

	if err := svc.Register(context.Background(), &Patient{FullName: "Sokha Chan"}); err == nil {
		t.Fatal("expected error for missing tracking code")
	}
	if err := svc.Register(context.Background(), &Patient{TrackingCode: "  ", FullName: "Sokha Chan"}); err == nil {
		t.Fatal("expected error for blank tracking code")
	}
}

func TestRegister_DuplicateTrackingCode(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	if err := svc.Register(ctx, &Patient{TrackingCode: "KH-0001", FullName: "Sokha Chan"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svc.Register(ctx, &Patient{TrackingCode: "KH-0001", FullName: "Dara Sok"}); err == nil {
		t.Fatal("expected error for duplicate tracking code")
	}
}

func TestRecordVisit_Accumulates(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	p := &Patient{TrackingCode: "KH-0002", FullName: "Dara Sok"}
	if err := svc.Register(ctx, p); err != nil {
		t.Fatalf("Register: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := svc.RecordVisit(ctx, p.ID); err != nil {
			t.Fatalf("RecordVisit: %v", err)
		}
	}

	got, err := svc.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.VisitCount != 3 {
		t.Errorf("expected 3 visits, got %d", got.VisitCount)
	}
	if got.LastSeenAt == nil {
		t.Error("expected last_seen_at to be stamped")
	}
}

func TestDeactivate(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	p := &Patient{TrackingCode: "KH-0003", FullName: "Maly Kim"}
	if err := svc.Register(ctx, p); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svc.Deactivate(ctx, p.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	got, _ := svc.Get(ctx, p.ID)
	if got.Active {
		t.Error("expected deactivated patient")
	}
	if err := svc.Deactivate(ctx, 999); err == nil {
		t.Error("expected error for unknown patient")
	}
}
