package availability

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores one availability profile per doctor.
type Repository interface {
	GetProfile(ctx context.Context, doctorID uuid.UUID) (*Profile, error)

	// UpsertProfile creates or wholly replaces the doctor's profile.
	UpsertProfile(ctx context.Context, p Profile) (*Profile, error)

	// UpdateProfile loads the profile under a row lock, lets fn mutate it and
	// writes it back. Returns ErrProfileNotFound when there is none.
	UpdateProfile(ctx context.Context, doctorID uuid.UUID, fn func(p *Profile) error) (*Profile, error)

	DeleteProfile(ctx context.Context, doctorID uuid.UUID) (bool, error)
	ListProfiles(ctx context.Context, f ListFilter) ([]Profile, int, error)
}
