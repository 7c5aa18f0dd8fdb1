package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/interval"
	"github.com/hackgods/clinic-availability/internal/metrics"
	"github.com/hackgods/clinic-availability/internal/validate"
)

// -- Fakes --

type fakeProfiles struct {
	profiles map[uuid.UUID]availability.Profile
	err      error
	lookups  int
	gets     int
}

func (f *fakeProfiles) GetProfile(_ context.Context, id uuid.UUID) (*availability.Profile, error) {
	f.gets++
	return f.find(id)
}

func (f *fakeProfiles) LookupProfile(_ context.Context, id uuid.UUID) (*availability.Profile, error) {
	f.lookups++
	return f.find(id)
}

func (f *fakeProfiles) find(id uuid.UUID) (*availability.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, availability.ErrProfileNotFound
	}
	return &p, nil
}

type booking struct {
	id     uuid.UUID
	doctor uuid.UUID
	iv     interval.Interval
}

type fakeBookings struct {
	items []booking
	err   error
}

func (f *fakeBookings) ActiveIntervals(_ context.Context, doctorID uuid.UUID, from, to time.Time, exclude uuid.UUID) ([]interval.Interval, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []interval.Interval
	for _, b := range f.items {
		if b.doctor != doctorID || b.id == exclude {
			continue
		}
		if b.iv.Start.Before(to) && b.iv.End.After(from) {
			out = append(out, b.iv)
		}
	}
	return out, nil
}

// Monday 3 March 2025.
var monday = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return monday.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func slot(h1, m1, h2, m2 int) interval.Interval {
	return interval.Interval{Start: at(h1, m1), End: at(h2, m2)}
}

var (
	doctorID   = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	existingID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

// newScenario builds a doctor working Mondays 09:00-17:00 with one booking
// 10:00-10:30.
func newScenario(bufferMinutes int) (*Engine, *fakeProfiles, *fakeBookings) {
	profiles := &fakeProfiles{profiles: map[uuid.UUID]availability.Profile{
		doctorID: {
			DoctorID:        doctorID,
			Weekly:          []availability.RecurringRule{{DayOfWeek: int(time.Monday), StartMinute: 540, EndMinute: 1020}},
			SlotSizeMinutes: 30,
			BufferMinutes:   bufferMinutes,
		},
	}}
	bookings := &fakeBookings{items: []booking{{id: existingID, doctor: doctorID, iv: slot(10, 0, 10, 30)}}}
	return NewEngine(profiles, bookings, metrics.NewNop(), zap.NewNop()), profiles, bookings
}

func TestComputeSlots_ExcludesBookedSlot(t *testing.T) {
	engine, _, _ := newScenario(0)

	res, err := engine.ComputeSlots(context.Background(), SlotQuery{DoctorID: doctorID, From: at(9, 0), To: at(11, 0)})
	require.NoError(t, err)
	require.NotNil(t, res.SlotSizeMinutes)
	assert.Equal(t, 30, *res.SlotSizeMinutes)
	assert.Equal(t, []interval.Interval{slot(9, 0, 9, 30), slot(9, 30, 10, 0), slot(10, 30, 11, 0)}, res.Slots)
}

func TestComputeSlots_BufferAndOverride(t *testing.T) {
	engine, _, _ := newScenario(15)
	size := 15

	res, err := engine.ComputeSlots(context.Background(), SlotQuery{
		DoctorID: doctorID, From: at(9, 0), To: at(11, 0), SlotSizeMinutes: &size,
	})
	require.NoError(t, err)
	assert.Equal(t, 15, *res.SlotSizeMinutes)
	assert.Equal(t, []interval.Interval{
		slot(9, 0, 9, 15), slot(9, 15, 9, 30), slot(9, 30, 9, 45),
		slot(10, 45, 11, 0),
	}, res.Slots)
}

func TestComputeSlots_BufferedNeighbourOutsideRange(t *testing.T) {
	engine, _, _ := newScenario(30)

	// The 10:00 booking is outside [10:45, 12:00) but its margin reaches 11:00.
	res, err := engine.ComputeSlots(context.Background(), SlotQuery{DoctorID: doctorID, From: at(10, 45), To: at(12, 0)})
	require.NoError(t, err)
	assert.Equal(t, []interval.Interval{slot(11, 0, 11, 30), slot(11, 30, 12, 0)}, res.Slots)
}

func TestComputeSlots_BlackoutRemovesTime(t *testing.T) {
	engine, profiles, _ := newScenario(0)
	p := profiles.profiles[doctorID]
	p.BlackoutWindows = []availability.Window{{Start: at(8, 0), End: at(9, 30)}}
	profiles.profiles[doctorID] = p

	res, err := engine.ComputeSlots(context.Background(), SlotQuery{DoctorID: doctorID, From: at(9, 0), To: at(11, 0)})
	require.NoError(t, err)
	assert.Equal(t, []interval.Interval{slot(9, 30, 10, 0), slot(10, 30, 11, 0)}, res.Slots)
}

func TestComputeSlots_NoProfile(t *testing.T) {
	engine, _, _ := newScenario(0)

	res, err := engine.ComputeSlots(context.Background(), SlotQuery{DoctorID: uuid.New(), From: at(9, 0), To: at(11, 0)})
	require.NoError(t, err)
	assert.Nil(t, res.SlotSizeMinutes)
	assert.NotNil(t, res.Slots)
	assert.Empty(t, res.Slots)
}

func TestComputeSlots_UsesLookup(t *testing.T) {
	engine, profiles, _ := newScenario(0)

	_, err := engine.ComputeSlots(context.Background(), SlotQuery{DoctorID: doctorID, From: at(9, 0), To: at(11, 0)})
	require.NoError(t, err)
	assert.Equal(t, 1, profiles.lookups)
	assert.Equal(t, 0, profiles.gets)
}

func TestComputeSlots_Validation(t *testing.T) {
	engine, profiles, _ := newScenario(0)
	tooSmall, tooLarge := 4, 241

	tests := []struct {
		name  string
		q     SlotQuery
		field string
	}{
		{"missing from", SlotQuery{DoctorID: doctorID, To: at(11, 0)}, "from"},
		{"inverted", SlotQuery{DoctorID: doctorID, From: at(11, 0), To: at(9, 0)}, "to"},
		{"empty", SlotQuery{DoctorID: doctorID, From: at(9, 0), To: at(9, 0)}, "to"},
		{"too long", SlotQuery{DoctorID: doctorID, From: at(9, 0), To: at(9, 0).AddDate(0, 6, 0)}, "to"},
		{"slot too small", SlotQuery{DoctorID: doctorID, From: at(9, 0), To: at(11, 0), SlotSizeMinutes: &tooSmall}, "slotSizeMinutes"},
		{"slot too large", SlotQuery{DoctorID: doctorID, From: at(9, 0), To: at(11, 0), SlotSizeMinutes: &tooLarge}, "slotSizeMinutes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.ComputeSlots(context.Background(), tt.q)
			var verr *validate.Error
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
	assert.Equal(t, 0, profiles.lookups, "validation happens before any read")
}

func TestComputeSlots_StoreFailure(t *testing.T) {
	engine, _, bookings := newScenario(0)
	bookings.err = errors.New("connection refused")

	_, err := engine.ComputeSlots(context.Background(), SlotQuery{DoctorID: doctorID, From: at(9, 0), To: at(11, 0)})
	require.Error(t, err)
	assert.ErrorIs(t, err, bookings.err)
}
