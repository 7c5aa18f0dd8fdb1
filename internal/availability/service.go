package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-availability/internal/validate"
)

var ErrEmptyPatch = errors.New("patch contains no fields")

type Service struct {
	repo   Repository
	cache  *cache.Cache
	logger *zap.Logger
}

// NewService builds the profile service. A positive cacheTTL enables a
// short-lived read cache behind LookupProfile; writes always invalidate it.
func NewService(repo Repository, cacheTTL time.Duration, logger *zap.Logger) *Service {
	s := &Service{repo: repo, logger: logger}
	if cacheTTL > 0 {
		s.cache = cache.New(cacheTTL, 2*cacheTTL)
	}
	return s
}

// Upsert creates or replaces the doctor's profile.
func (s *Service) Upsert(ctx context.Context, doctorID uuid.UUID, in ProfileInput) (*Profile, error) {
	p := in.toProfile(doctorID)
	if err := p.Validate(); err != nil {
		return nil, err
	}

	saved, err := s.repo.UpsertProfile(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	s.invalidate(doctorID)

	s.logger.Info("availability profile saved",
		zap.String("doctor_id", doctorID.String()),
		zap.Int("weekly_rules", len(saved.Weekly)),
		zap.Int("date_windows", len(saved.DateWindows)),
		zap.Int("blackouts", len(saved.BlackoutWindows)),
	)
	return saved, nil
}

// Patch updates only the fields present in the patch.
func (s *Service) Patch(ctx context.Context, doctorID uuid.UUID, patch ProfilePatch) (*Profile, error) {
	if patch.Empty() {
		return nil, ErrEmptyPatch
	}

	updated, err := s.repo.UpdateProfile(ctx, doctorID, func(p *Profile) error {
		patch.Apply(p)
		return p.Validate()
	})
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return nil, err
		}
		var verr *validate.Error
		if errors.As(err, &verr) {
			return nil, err
		}
		return nil, fmt.Errorf("patch profile: %w", err)
	}
	s.invalidate(doctorID)

	return updated, nil
}

// GetProfile reads the profile straight from the repository.
func (s *Service) GetProfile(ctx context.Context, doctorID uuid.UUID) (*Profile, error) {
	p, err := s.repo.GetProfile(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// LookupProfile is GetProfile behind the read cache. Only slot listings use
// it; booking decisions go through GetProfile.
func (s *Service) LookupProfile(ctx context.Context, doctorID uuid.UUID) (*Profile, error) {
	if s.cache == nil {
		return s.GetProfile(ctx, doctorID)
	}

	key := doctorID.String()
	if v, ok := s.cache.Get(key); ok {
		p := v.(Profile)
		return &p, nil
	}

	p, err := s.GetProfile(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, *p)
	return p, nil
}

// Delete removes the profile. Deleting a missing profile is not an error.
func (s *Service) Delete(ctx context.Context, doctorID uuid.UUID) (bool, error) {
	deleted, err := s.repo.DeleteProfile(ctx, doctorID)
	if err != nil {
		return false, fmt.Errorf("delete profile: %w", err)
	}
	s.invalidate(doctorID)

	if deleted {
		s.logger.Info("availability profile deleted", zap.String("doctor_id", doctorID.String()))
	}
	return deleted, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Profile, int, ListFilter, error) {
	f = f.normalize()
	items, total, err := s.repo.ListProfiles(ctx, f)
	if err != nil {
		return nil, 0, f, fmt.Errorf("list profiles: %w", err)
	}
	return items, total, f, nil
}

func (s *Service) invalidate(doctorID uuid.UUID) {
	if s.cache != nil {
		s.cache.Delete(doctorID.String())
	}
}
