// Package interval implements arithmetic over half-open time intervals [Start, End).
package interval

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether the interval has positive length.
func (i Interval) Valid() bool {
	return i.End.After(i.Start)
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether a and b share any instant.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// Contains reports whether inner lies entirely inside outer.
func Contains(outer, inner Interval) bool {
	return !outer.Start.After(inner.Start) && !outer.End.Before(inner.End)
}

// Clamp intersects w with [from, to). The second result is false when the
// intersection is empty or zero-length.
func Clamp(w Interval, from, to time.Time) (Interval, bool) {
	start := w.Start
	if from.After(start) {
		start = from
	}
	end := w.End
	if to.Before(end) {
		end = to
	}
	if !end.After(start) {
		return Interval{}, false
	}
	return Interval{Start: start, End: end}, true
}

// ExpandByBuffer widens w by buffer on both sides.
func ExpandByBuffer(w Interval, buffer time.Duration) Interval {
	return Interval{
		Start: w.Start.Add(-buffer),
		End:   w.End.Add(buffer),
	}
}

// Subtract removes every busy window from every free window.
//
// Busy windows are applied in input order against the current set of pieces
// carved from a free window, so later windows cut pieces produced by earlier
// ones. Output keeps free-window order, then piece order; nothing is sorted.
func Subtract(free, busy []Interval) []Interval {
	var out []Interval
	for _, fw := range free {
		segs := []Interval{fw}
		for _, bw := range busy {
			next := make([]Interval, 0, len(segs)+1)
			for _, s := range segs {
				if !bw.End.After(s.Start) || !bw.Start.Before(s.End) {
					next = append(next, s)
					continue
				}
				if bw.Start.After(s.Start) {
					next = append(next, Interval{Start: s.Start, End: bw.Start})
				}
				if bw.End.Before(s.End) {
					next = append(next, Interval{Start: bw.End, End: s.End})
				}
			}
			segs = next
			if len(segs) == 0 {
				break
			}
		}
		out = append(out, segs...)
	}
	return out
}
