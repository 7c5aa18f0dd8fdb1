package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/validate"
)

func TestEvaluateBooking(t *testing.T) {
	tests := []struct {
		name   string
		buffer int
		start  time.Time
		end    time.Time
		want   Decision
	}{
		{"free slot, no buffer", 0, at(10, 30), at(11, 0), Accept()},
		{"start of day window", 0, at(9, 0), at(9, 30), Accept()},
		{"end of day window", 0, at(16, 30), at(17, 0), Accept()},
		{"buffer reaches into proposal", 15, at(10, 30), at(11, 0), Reject(RejectOutsideWindow)},
		{"buffered proposal clear of booking", 15, at(11, 0), at(11, 30), Accept()},
		{"overlap wins regardless of buffer", 0, at(10, 0), at(10, 15), Reject(RejectOverlap)},
		{"overlap with buffer", 60, at(10, 0), at(10, 15), Reject(RejectOverlap)},
		{"partial overlap", 0, at(10, 15), at(10, 45), Reject(RejectOverlap)},
		{"before working hours", 0, at(8, 0), at(8, 30), Reject(RejectOutsideWindow)},
		{"runs past working hours", 0, at(16, 45), at(17, 15), Reject(RejectOutsideWindow)},
		{"buffer pushes past working hours", 15, at(16, 30), at(17, 0), Reject(RejectOutsideWindow)},
		{"other weekday", 0, at(9, 0).AddDate(0, 0, 1), at(9, 30).AddDate(0, 0, 1), Reject(RejectOutsideWindow)},
		{"crosses midnight", 0, at(23, 30), at(24, 30), Reject(RejectOutsideWindow)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _, _ := newScenario(tt.buffer)
			got, err := engine.EvaluateBooking(context.Background(), doctorID, tt.start, tt.end)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateBooking_NoProfile(t *testing.T) {
	engine, _, _ := newScenario(0)

	got, err := engine.EvaluateBooking(context.Background(), uuid.New(), at(9, 0), at(9, 30))
	require.NoError(t, err)
	assert.Equal(t, Reject(RejectNoAvailability), got)
	assert.Equal(t, "no availability configured", got.Message)
}

func TestEvaluateBooking_ReadsProfileFromStore(t *testing.T) {
	engine, profiles, _ := newScenario(0)

	_, err := engine.EvaluateBooking(context.Background(), doctorID, at(9, 0), at(9, 30))
	require.NoError(t, err)
	assert.Equal(t, 1, profiles.gets)
	assert.Equal(t, 0, profiles.lookups)
}

func TestEvaluateBooking_BlackoutAndDateWindow(t *testing.T) {
	engine, profiles, _ := newScenario(0)
	p := profiles.profiles[doctorID]
	p.BlackoutWindows = []availability.Window{{Start: at(14, 0), End: at(15, 0)}}
	p.DateWindows = []availability.Window{{Start: at(18, 0), End: at(20, 0)}}
	profiles.profiles[doctorID] = p

	got, err := engine.EvaluateBooking(context.Background(), doctorID, at(14, 30), at(15, 0))
	require.NoError(t, err)
	assert.Equal(t, Reject(RejectOutsideWindow), got)

	got, err = engine.EvaluateBooking(context.Background(), doctorID, at(18, 30), at(19, 0))
	require.NoError(t, err)
	assert.True(t, got.Accepted)
}

func TestEvaluateBooking_AcceptsEveryComputedSlot(t *testing.T) {
	engine, _, _ := newScenario(0)
	ctx := context.Background()

	res, err := engine.ComputeSlots(ctx, SlotQuery{DoctorID: doctorID, From: monday, To: monday.AddDate(0, 0, 1)})
	require.NoError(t, err)
	require.Len(t, res.Slots, 15)

	for _, s := range res.Slots {
		got, err := engine.EvaluateBooking(ctx, doctorID, s.Start, s.End)
		require.NoError(t, err)
		assert.True(t, got.Accepted, "slot %v", s)
	}
}

func TestEvaluateBooking_BufferIsMonotonic(t *testing.T) {
	ctx := context.Background()
	var proposals [][2]time.Time
	for m := 8 * 60; m < 18*60; m += 15 {
		start := monday.Add(time.Duration(m) * time.Minute)
		proposals = append(proposals, [2]time.Time{start, start.Add(30 * time.Minute)})
	}

	accepted := func(buffer int) map[time.Time]bool {
		engine, _, _ := newScenario(buffer)
		out := make(map[time.Time]bool)
		for _, pr := range proposals {
			d, err := engine.EvaluateBooking(ctx, doctorID, pr[0], pr[1])
			require.NoError(t, err)
			if d.Accepted {
				out[pr[0]] = true
			}
		}
		return out
	}

	prev := accepted(0)
	require.NotEmpty(t, prev)
	for _, buffer := range []int{5, 15, 30, 60, 120} {
		cur := accepted(buffer)
		for start := range cur {
			assert.True(t, prev[start], "buffer %d accepted %v which a smaller buffer rejected", buffer, start)
		}
		prev = cur
	}
}

func TestEvaluateReschedule_IgnoresItself(t *testing.T) {
	engine, _, _ := newScenario(15)
	ctx := context.Background()

	got, err := engine.EvaluateBooking(ctx, doctorID, at(10, 15), at(10, 45))
	require.NoError(t, err)
	assert.Equal(t, Reject(RejectOverlap), got)

	got, err = engine.EvaluateReschedule(ctx, doctorID, existingID, at(10, 15), at(10, 45))
	require.NoError(t, err)
	assert.True(t, got.Accepted)
}

func TestEvaluateBooking_Validation(t *testing.T) {
	engine, _, _ := newScenario(0)

	_, err := engine.EvaluateBooking(context.Background(), doctorID, at(10, 0), at(10, 0))
	var verr *validate.Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "endTime", verr.Field)

	_, err = engine.EvaluateBooking(context.Background(), doctorID, time.Time{}, at(10, 0))
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "startTime", verr.Field)
}

func TestDecisionErr(t *testing.T) {
	assert.NoError(t, Accept().Err())

	err := Reject(RejectOutsideWindow).Err()
	require.Error(t, err)
	assert.True(t, IsRejected(err, RejectOutsideWindow))
	assert.False(t, IsRejected(err, RejectOverlap))
	assert.Equal(t, "booking rejected: outside available windows", err.Error())
}
