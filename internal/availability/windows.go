package availability

import (
	"time"

	"github.com/hackgods/clinic-availability/internal/interval"
)

const day = 24 * time.Hour

// DayStart returns UTC midnight of the UTC calendar day containing t.
func DayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DayBounds returns [midnight, midnight+24h) for the UTC day containing t.
func DayBounds(t time.Time) interval.Interval {
	start := DayStart(t)
	return interval.Interval{Start: start, End: start.Add(day)}
}

// BuildCandidateWindows expands the weekly rules over every UTC day touching
// [from, to) and appends the one-off date windows, all clamped to the range.
// Overlapping windows are kept as-is.
func BuildCandidateWindows(p Profile, from, to time.Time) []interval.Interval {
	from, to = from.UTC(), to.UTC()

	var out []interval.Interval
	for d := DayStart(from); d.Before(to); d = d.AddDate(0, 0, 1) {
		out = appendWeekly(out, p.Weekly, d, from, to)
	}
	for _, w := range p.DateWindows {
		if c, ok := interval.Clamp(w.Interval(), from, to); ok {
			out = append(out, c)
		}
	}
	return out
}

// BuildDayWindows is BuildCandidateWindows restricted to the single UTC day
// starting at dayStart.
func BuildDayWindows(p Profile, dayStart time.Time) []interval.Interval {
	dayStart = DayStart(dayStart)
	return BuildCandidateWindows(p, dayStart, dayStart.Add(day))
}

func appendWeekly(out []interval.Interval, rules []RecurringRule, midnight, from, to time.Time) []interval.Interval {
	dow := int(midnight.Weekday())
	for _, r := range rules {
		if r.DayOfWeek != dow {
			continue
		}
		w := interval.Interval{
			Start: midnight.Add(time.Duration(r.StartMinute) * time.Minute),
			End:   midnight.Add(time.Duration(r.EndMinute) * time.Minute),
		}
		if c, ok := interval.Clamp(w, from, to); ok {
			out = append(out, c)
		}
	}
	return out
}

// BlackoutIntervals returns the blackout windows clamped to [from, to).
func BlackoutIntervals(p Profile, from, to time.Time) []interval.Interval {
	var out []interval.Interval
	for _, w := range p.BlackoutWindows {
		if c, ok := interval.Clamp(w.Interval(), from, to); ok {
			out = append(out, c)
		}
	}
	return out
}

// GenerateSlots cuts each free window into consecutive slots of slotSize
// starting at the window start. A trailing remainder shorter than slotSize is
// dropped. Windows are processed in the order given.
func GenerateSlots(free []interval.Interval, slotSize time.Duration) []interval.Interval {
	if slotSize <= 0 {
		return nil
	}
	var slots []interval.Interval
	for _, w := range free {
		for t := w.Start; !t.Add(slotSize).After(w.End); t = t.Add(slotSize) {
			slots = append(slots, interval.Interval{Start: t, End: t.Add(slotSize)})
		}
	}
	return slots
}
