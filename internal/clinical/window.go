package clinical

import (
	"time"

	"github.com/hackgods/rehab-care-coordination/internal/apperr"
)

// Window is a closed time interval [Start, End]. A zero bound is open on that
// side, so the zero Window covers all time.
type Window struct {
	Start time.Time
	End   time.Time
}

// AllTime is the window used when the caller supplies no bounds.
var AllTime = Window{}

func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// Validate rejects a window whose start is after its end.
func (w Window) Validate() error {
	if !w.Start.IsZero() && !w.End.IsZero() && w.Start.After(w.End) {
		return apperr.Validation("window start %s is after end %s",
			w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}
	return nil
}

// Trailing returns the window [now-d, now].
func Trailing(now time.Time, d time.Duration) Window {
	return Window{Start: now.Add(-d), End: now}
}

func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && t.After(w.End) {
		return false
	}
	return true
}

func (w Window) IsAllTime() bool {
	return w.Start.IsZero() && w.End.IsZero()
}
