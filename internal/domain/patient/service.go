package patient

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Register creates a patient from direct registration input. The tracking
// code is issued by the caller and is immutable after this point.
func (s *Service) Register(ctx context.Context, p *Patient) error {
	p.TrackingCode = strings.TrimSpace(p.TrackingCode)
	if p.TrackingCode == "" {
		return fmt.Errorf("tracking_code is required")
	}
	if strings.TrimSpace(p.FullName) == "" {
		return fmt.Errorf("full_name is required")
	}
	p.Active = true

	if existing, err := s.repo.GetByTrackingCode(ctx, p.TrackingCode); err == nil && existing != nil {
		return fmt.Errorf("tracking code %s already issued", p.TrackingCode)
	}

	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id int64) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByTrackingCode(ctx context.Context, code string) (*Patient, error) {
	return s.repo.GetByTrackingCode(ctx, code)
}

// RecordVisit bumps the visit counter. Counters accumulate and are never part
// of the table-level sync upsert.
func (s *Service) RecordVisit(ctx context.Context, id int64) error {
	return s.repo.RecordVisit(ctx, id, s.now())
}

// Deactivate retires a patient record. Patients are never hard-deleted.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return fmt.Errorf("patient not found: %w", err)
	}
	return s.repo.Deactivate(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}
