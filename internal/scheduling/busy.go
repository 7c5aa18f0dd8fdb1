package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/interval"
)

// AssembleBusy returns the busy set for [from, to): blackout windows clamped
// to the range as-is, followed by every active appointment expanded by the
// profile buffer. The appointment lookup is widened by the buffer so that a
// booking just outside the range still contributes its margin.
func AssembleBusy(ctx context.Context, src BookingSource, p *availability.Profile, from, to time.Time, exclude uuid.UUID) ([]interval.Interval, error) {
	busy := availability.BlackoutIntervals(*p, from, to)

	buffer := p.Buffer()
	booked, err := src.ActiveIntervals(ctx, p.DoctorID, from.Add(-buffer), to.Add(buffer), exclude)
	if err != nil {
		return nil, fmt.Errorf("load active appointments: %w", err)
	}

	for _, b := range booked {
		busy = append(busy, interval.ExpandByBuffer(b, buffer))
	}
	return busy, nil
}
