package availability

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-availability/internal/validate"
)

func validProfile() Profile {
	return Profile{
		Weekly:          []RecurringRule{{DayOfWeek: 1, StartMinute: 540, EndMinute: 1020}},
		DateWindows:     []Window{{Start: hm(monday, 18, 0), End: hm(monday, 20, 0)}},
		BlackoutWindows: []Window{},
		SlotSizeMinutes: 30,
		BufferMinutes:   15,
	}
}

func TestProfileValidate(t *testing.T) {
	p := validProfile()
	require.NoError(t, p.Validate())

	tests := []struct {
		name   string
		mutate func(p *Profile)
		field  string
	}{
		{"day of week", func(p *Profile) { p.Weekly[0].DayOfWeek = 7 }, "weekly[0].dayOfWeek"},
		{"negative day", func(p *Profile) { p.Weekly[0].DayOfWeek = -1 }, "weekly[0].dayOfWeek"},
		{"end minute past midnight", func(p *Profile) { p.Weekly[0].EndMinute = 1441 }, "weekly[0].endMinute"},
		{"end before start", func(p *Profile) { p.Weekly[0].EndMinute = 540 }, "weekly[0].endMinute"},
		{"slot too small", func(p *Profile) { p.SlotSizeMinutes = 4 }, "slotSizeMinutes"},
		{"slot too large", func(p *Profile) { p.SlotSizeMinutes = 241 }, "slotSizeMinutes"},
		{"buffer too large", func(p *Profile) { p.BufferMinutes = 121 }, "bufferMinutes"},
		{"negative buffer", func(p *Profile) { p.BufferMinutes = -1 }, "bufferMinutes"},
		{"inverted date window", func(p *Profile) { p.DateWindows[0].End = p.DateWindows[0].Start }, "dateWindows[0].end"},
		{"blackout without start", func(p *Profile) {
			p.BlackoutWindows = []Window{{End: hm(monday, 10, 0)}}
		}, "blackoutWindows[0].start"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProfile()
			tt.mutate(&p)

			err := p.Validate()
			var verr *validate.Error
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestProfileBufferAndSlotSize(t *testing.T) {
	p := Profile{BufferMinutes: 500}
	assert.Equal(t, 120*time.Minute, p.Buffer())
	p.BufferMinutes = -10
	assert.Equal(t, time.Duration(0), p.Buffer())

	assert.Equal(t, 30*time.Minute, p.SlotSize())
	p.SlotSizeMinutes = 1
	assert.Equal(t, 5*time.Minute, p.SlotSize())
}

func TestProfileInputDefaults(t *testing.T) {
	p := ProfileInput{}.toProfile(uuidFor(1))
	assert.Equal(t, DefaultSlotSizeMinutes, p.SlotSizeMinutes)
	assert.Equal(t, 0, p.BufferMinutes)
	assert.NotNil(t, p.Weekly)
	assert.NotNil(t, p.BlackoutWindows)
}

func TestProfilePatchApply(t *testing.T) {
	p := validProfile()
	size := 45
	rules := []RecurringRule{{DayOfWeek: 2, StartMinute: 0, EndMinute: 60}}

	patch := ProfilePatch{SlotSizeMinutes: &size, Weekly: &rules}
	require.False(t, patch.Empty())
	patch.Apply(&p)

	assert.Equal(t, 45, p.SlotSizeMinutes)
	assert.Equal(t, rules, p.Weekly)
	assert.Equal(t, 15, p.BufferMinutes, "untouched field keeps its value")
	assert.Len(t, p.DateWindows, 1)

	assert.True(t, ProfilePatch{}.Empty())
}

func TestListFilterNormalize(t *testing.T) {
	f := ListFilter{}.normalize()
	assert.Equal(t, ListFilter{Page: 1, Limit: 25}, f)

	f = ListFilter{Page: 3, Limit: 1000}.normalize()
	assert.Equal(t, 100, f.Limit)
	assert.Equal(t, 200, f.Offset())
}
