package availability

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-availability/internal/interval"
	"github.com/hackgods/clinic-availability/internal/validate"
)

const (
	DefaultSlotSizeMinutes = 30
	MinSlotSizeMinutes     = 5
	MaxSlotSizeMinutes     = 240
	MaxBufferMinutes       = 120
	MinutesPerDay          = 24 * 60
)

var ErrProfileNotFound = errors.New("availability profile not found")

// RecurringRule is a weekly window anchored at UTC midnight of every day
// whose weekday equals DayOfWeek (0 = Sunday).
type RecurringRule struct {
	DayOfWeek   int `json:"dayOfWeek" validate:"min=0,max=6"`
	StartMinute int `json:"startMinute" validate:"min=0,max=1440"`
	EndMinute   int `json:"endMinute" validate:"min=0,max=1440,gtfield=StartMinute"`
}

// Window is a one-off UTC range. It is used both for extra date windows and
// for blackout windows.
type Window struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required,gtfield=Start"`
}

func (w Window) Interval() interval.Interval {
	return interval.Interval{Start: w.Start.UTC(), End: w.End.UTC()}
}

// Profile is a doctor's availability. There is at most one per doctor.
type Profile struct {
	DoctorID        uuid.UUID       `json:"doctorId"`
	Weekly          []RecurringRule `json:"weekly" validate:"dive"`
	DateWindows     []Window        `json:"dateWindows" validate:"dive"`
	BlackoutWindows []Window        `json:"blackoutWindows" validate:"dive"`
	SlotSizeMinutes int             `json:"slotSizeMinutes" validate:"min=5,max=240"`
	BufferMinutes   int             `json:"bufferMinutes" validate:"min=0,max=120"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Validate checks every field range and window ordering.
func (p *Profile) Validate() error {
	return validate.Struct(p)
}

// Buffer returns the buffer margin, bounded to [0, 120] minutes.
func (p *Profile) Buffer() time.Duration {
	return time.Duration(ClampBuffer(p.BufferMinutes)) * time.Minute
}

// SlotSize returns the configured slot length, falling back to the default
// when unset and bounded to [5, 240] minutes.
func (p *Profile) SlotSize() time.Duration {
	return time.Duration(p.SlotSizeMinutesOrDefault()) * time.Minute
}

func (p *Profile) SlotSizeMinutesOrDefault() int {
	m := p.SlotSizeMinutes
	if m == 0 {
		m = DefaultSlotSizeMinutes
	}
	return min(max(m, MinSlotSizeMinutes), MaxSlotSizeMinutes)
}

func ClampBuffer(minutes int) int {
	return min(max(minutes, 0), MaxBufferMinutes)
}

// ProfileInput is the body of a create-or-replace request. Omitted slot size
// and buffer take their defaults.
type ProfileInput struct {
	Weekly          []RecurringRule `json:"weekly"`
	DateWindows     []Window        `json:"dateWindows"`
	BlackoutWindows []Window        `json:"blackoutWindows"`
	SlotSizeMinutes *int            `json:"slotSizeMinutes"`
	BufferMinutes   *int            `json:"bufferMinutes"`
}

func (in ProfileInput) toProfile(doctorID uuid.UUID) Profile {
	p := Profile{
		DoctorID:        doctorID,
		Weekly:          nonNilRules(in.Weekly),
		DateWindows:     nonNilWindows(in.DateWindows),
		BlackoutWindows: nonNilWindows(in.BlackoutWindows),
		SlotSizeMinutes: DefaultSlotSizeMinutes,
	}
	if in.SlotSizeMinutes != nil {
		p.SlotSizeMinutes = *in.SlotSizeMinutes
	}
	if in.BufferMinutes != nil {
		p.BufferMinutes = *in.BufferMinutes
	}
	return p
}

// ProfilePatch carries only the fields a doctor wants to change.
type ProfilePatch struct {
	Weekly          *[]RecurringRule `json:"weekly"`
	DateWindows     *[]Window        `json:"dateWindows"`
	BlackoutWindows *[]Window        `json:"blackoutWindows"`
	SlotSizeMinutes *int             `json:"slotSizeMinutes"`
	BufferMinutes   *int             `json:"bufferMinutes"`
}

// Empty reports whether the patch changes nothing.
func (pp ProfilePatch) Empty() bool {
	return pp.Weekly == nil && pp.DateWindows == nil && pp.BlackoutWindows == nil &&
		pp.SlotSizeMinutes == nil && pp.BufferMinutes == nil
}

// Apply copies the present fields onto p.
func (pp ProfilePatch) Apply(p *Profile) {
	if pp.Weekly != nil {
		p.Weekly = nonNilRules(*pp.Weekly)
	}
	if pp.DateWindows != nil {
		p.DateWindows = nonNilWindows(*pp.DateWindows)
	}
	if pp.BlackoutWindows != nil {
		p.BlackoutWindows = nonNilWindows(*pp.BlackoutWindows)
	}
	if pp.SlotSizeMinutes != nil {
		p.SlotSizeMinutes = *pp.SlotSizeMinutes
	}
	if pp.BufferMinutes != nil {
		p.BufferMinutes = *pp.BufferMinutes
	}
}

func nonNilRules(r []RecurringRule) []RecurringRule {
	if r == nil {
		return []RecurringRule{}
	}
	return r
}

func nonNilWindows(w []Window) []Window {
	if w == nil {
		return []Window{}
	}
	return w
}

type ListFilter struct {
	Page  int
	Limit int
}

func (f ListFilter) normalize() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 25
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	return f
}

func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}
