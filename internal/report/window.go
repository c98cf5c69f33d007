package report

import (
	"fmt"
	"time"
)

const (
	DefaultWindowDays = 30
	// MaxWindowDays bounds the look-back so Start stays a sane timestamp.
	MaxWindowDays = 3660
	// ActiveUserWindowDays is the window the source uses for "active users".
	ActiveUserWindowDays = 30
)

// Window is the [Start, End) interval a report covers. End is the time of the
// request.
type Window struct {
	TenantID string
	Start    time.Time
	End      time.Time
	Days     int
}

func NewWindow(tenantID string, days int, now time.Time) (Window, error) {
	if days < 0 || days > MaxWindowDays {
		return Window{}, fmt.Errorf("%w: days must be between 0 and %d, got %d", ErrInvalidWindow, MaxWindowDays, days)
	}
	return Window{
		TenantID: tenantID,
		Start:    now.AddDate(0, 0, -days),
		End:      now,
		Days:     days,
	}, nil
}

// MonthStart is midnight on the first day of End's calendar month, in End's
// location.
func (w Window) MonthStart() time.Time {
	return time.Date(w.End.Year(), w.End.Month(), 1, 0, 0, 0, 0, w.End.Location())
}
