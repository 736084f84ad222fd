package models

import "time"

// Span is a half-open or permanent time interval shared by assignments and
// block-out zones. Start is always set; End is nil for open-ended spans.
type Span struct {
	Start       time.Time
	End         *time.Time
	IsPermanent bool
}

// ActiveAt reports whether the span covers the reference time.
// The end instant is inclusive: a span ending exactly at t is still active.
func (s Span) ActiveAt(t time.Time) bool {
	if s.Start.After(t) {
		return false
	}
	if s.IsPermanent {
		return true
	}
	if s.End == nil {
		return true
	}
	return !s.End.Before(t)
}

// Close ends the span at the given instant, clearing the permanent flag.
func (s *Span) Close(at time.Time) {
	end := at
	s.End = &end
	s.IsPermanent = false
}

// DurationDisplay returns a human readable description of the span's length.
func (s Span) DurationDisplay() string {
	if s.IsPermanent {
		return "Permanent"
	}
	if s.End != nil {
		return "Until " + s.End.Format("Jan 02, 2006 03:04 PM")
	}
	return "Open ended"
}
