package main

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-availability/internal/availability"
)

func TestRandomProfileIsValid(t *testing.T) {
	f := gofakeit.New(42)
	now := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 200; i++ {
		in := randomProfile(f, now)
		p := availability.Profile{
			DoctorID:        uuid.New(),
			Weekly:          in.Weekly,
			DateWindows:     in.DateWindows,
			BlackoutWindows: in.BlackoutWindows,
			SlotSizeMinutes: *in.SlotSizeMinutes,
			BufferMinutes:   *in.BufferMinutes,
		}
		require.NoError(t, p.Validate(), "profile %d: %+v", i, in)
	}
}
