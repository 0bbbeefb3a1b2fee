package adjudication

import (
	"fmt"
	"time"
)

// BenefitYearMode selects how the annual-limit window is drawn
type BenefitYearMode string

const (
	// CalendarYear runs Jan 1 through Dec 31 (UTC) of the claim date
	CalendarYear BenefitYearMode = "calendar"
	// RollingYear covers the twelve months ending at the claim date
	RollingYear BenefitYearMode = "rolling"
)

// BenefitYear computes benefit windows for one mode
type BenefitYear struct {
	Mode BenefitYearMode
}

// NewBenefitYear validates mode; an empty mode means calendar
func NewBenefitYear(mode string) (BenefitYear, error) {
	switch BenefitYearMode(mode) {
	case "", CalendarYear:
		return BenefitYear{Mode: CalendarYear}, nil
	case RollingYear:
		return BenefitYear{Mode: RollingYear}, nil
	}
	return BenefitYear{}, fmt.Errorf("unknown benefit year mode %q", mode)
}

// Window is an inclusive time range
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window, bounds included
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Window returns the benefit year that contains at
func (b BenefitYear) Window(at time.Time) Window {
	at = at.UTC()
	if b.Mode == RollingYear {
		return Window{Start: at.AddDate(-1, 0, 0), End: at}
	}
	start := time.Date(at.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.AddDate(1, 0, 0).Add(-time.Nanosecond)}
}
