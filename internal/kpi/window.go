package kpi

import (
	"fmt"
	"time"
)

const (
	minYear = 1900
	maxYear = 2200
)

// Week identifies a reporting week by its ISO-8601 week number and week-numbering year.
type Week struct {
	Number int `json:"week_number"`
	Year   int `json:"year"`
}

func (w Week) String() string {
	return fmt.Sprintf("%d-W%02d", w.Year, w.Number)
}

// Before reports whether w is strictly earlier than other.
func (w Week) Before(other Week) bool {
	if w.Year != other.Year {
		return w.Year < other.Year
	}
	return w.Number < other.Number
}

// Day is one calendar day of a reporting window.
type Day struct {
	Date    time.Time `json:"date"`
	Weekday string    `json:"weekday"`
	Workday bool      `json:"workday"`
}

// Window is the Saturday to Friday date range covering one ISO week.
type Window struct {
	Week  Week      `json:"week"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Days  [7]Day    `json:"days"`
}

// ResolveWeek returns the reporting window for an ISO week. The window opens on the
// Saturday before the ISO Monday and closes on that week's Friday.
func ResolveWeek(number, year int) (Window, error) {
	if year < minYear || year > maxYear {
		return Window{}, fmt.Errorf("year %d out of range [%d, %d]", year, minYear, maxYear)
	}

	// January 4th always falls in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	monday := jan4.AddDate(0, 0, -offset+(number-1)*7)
	start := monday.AddDate(0, 0, -2)

	w := Window{
		Week:  Week{Number: number, Year: year},
		Start: start,
		End:   start.AddDate(0, 0, 6),
	}
	for i := range w.Days {
		d := start.AddDate(0, 0, i)
		w.Days[i] = Day{Date: d, Weekday: d.Weekday().String(), Workday: true}
	}
	return w, nil
}

// WeekOf returns the reporting week a calendar date belongs to. Saturday and Sunday
// belong to the ISO week that follows them.
func WeekOf(date time.Time) Week {
	d := DateOnly(date).AddDate(0, 0, 2)
	year, number := d.ISOWeek()
	return Week{Number: number, Year: year}
}

// CurrentWeek returns the reporting week containing now.
func CurrentWeek(now time.Time) Week {
	return WeekOf(now)
}

// Contains reports whether date falls inside the window.
func (w Window) Contains(date time.Time) bool {
	d := DateOnly(date)
	return !d.Before(w.Start) && !d.After(w.End)
}

// Dates returns the seven dates of the window in order.
func (w Window) Dates() []time.Time {
	out := make([]time.Time, len(w.Days))
	for i, d := range w.Days {
		out[i] = d.Date
	}
	return out
}

// WorkingDays counts the days flagged as workdays.
func (w Window) WorkingDays() int {
	n := 0
	for _, d := range w.Days {
		if d.Workday {
			n++
		}
	}
	return n
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
