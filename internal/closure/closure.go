package closure

import (
	"time"

	"github.com/middleworldfarms/soilsync/internal/config"
)

// Window is a seasonal closure during which billing is suspended.
// Candidate billing dates inside [Start, End] defer to ResumeBilling.
type Window struct {
	Start         time.Time
	End           time.Time
	ResumeBilling time.Time
}

// Decision is the outcome of resolving a candidate billing date.
type Decision struct {
	Defer         bool
	ResumeBilling time.Time
}

// Calendar answers whether a candidate billing date falls inside the
// configured closure window. It is a pure lookup; it never mutates state.
type Calendar struct {
	window *Window
}

func NewCalendar(w *Window) *Calendar {
	return &Calendar{window: w}
}

// FromConfig parses the configured closure window. All three dates must be
// present; otherwise no window applies.
func FromConfig(cfg config.ClosureConfig) (*Calendar, error) {
	if cfg.Start == "" || cfg.End == "" || cfg.ResumeBilling == "" {
		return NewCalendar(nil), nil
	}

	start, err := time.Parse("2006-01-02", cfg.Start)
	if err != nil {
		return nil, err
	}
	end, err := time.Parse("2006-01-02", cfg.End)
	if err != nil {
		return nil, err
	}
	resume, err := time.Parse("2006-01-02", cfg.ResumeBilling)
	if err != nil {
		return nil, err
	}

	return NewCalendar(&Window{Start: start, End: end, ResumeBilling: resume}), nil
}

// Resolve returns Defer with the resume billing date when the candidate
// falls inside the closure window, and Proceed otherwise. The bounds are
// inclusive: billing on the closing day itself is already deferred.
func (c *Calendar) Resolve(candidate time.Time) Decision {
	if c == nil || c.window == nil {
		return Decision{}
	}
	w := c.window
	if candidate.Before(w.Start) || candidate.After(w.End) {
		return Decision{}
	}
	return Decision{Defer: true, ResumeBilling: w.ResumeBilling}
}
