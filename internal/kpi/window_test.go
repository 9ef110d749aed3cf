package kpi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolveWeek(t *testing.T) {
	tests := []struct {
		name  string
		week  int
		year  int
		start time.Time
		end   time.Time
	}{
		{"mid year", 5, 2025, date(2025, time.January, 25), date(2025, time.January, 31)},
		{"week one starts in prior year", 1, 2026, date(2025, time.December, 27), date(2026, time.January, 2)},
		{"week one of 2025", 1, 2025, date(2024, time.December, 28), date(2025, time.January, 3)},
		{"week 53", 53, 2020, date(2020, time.December, 26), date(2021, time.January, 1)},
		{"last week of 2024", 52, 2024, date(2024, time.December, 21), date(2024, time.December, 27)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := ResolveWeek(tt.week, tt.year)
			require.NoError(t, err)
			assert.Equal(t, tt.start, w.Start)
			assert.Equal(t, tt.end, w.End)
			assert.Equal(t, time.Saturday, w.Start.Weekday())
			assert.Equal(t, time.Friday, w.End.Weekday())
			assert.Equal(t, Week{Number: tt.week, Year: tt.year}, w.Week)
		})
	}
}

func TestResolveWeek_Days(t *testing.T) {
	w, err := ResolveWeek(5, 2025)
	require.NoError(t, err)

	names := []string{"Saturday", "Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	for i, d := range w.Days {
		assert.Equal(t, names[i], d.Weekday)
		assert.Equal(t, w.Start.AddDate(0, 0, i), d.Date)
		assert.True(t, d.Workday)
	}
	assert.Equal(t, 7, w.WorkingDays())
	assert.Len(t, w.Dates(), 7)
}

func TestResolveWeek_YearOutOfRange(t *testing.T) {
	_, err := ResolveWeek(10, 1800)
	assert.Error(t, err)

	_, err = ResolveWeek(10, 2500)
	assert.Error(t, err)
}

func TestWeekOf(t *testing.T) {
	tests := []struct {
		name string
		day  time.Time
		want Week
	}{
		{"saturday opens next iso week", date(2025, time.January, 25), Week{5, 2025}},
		{"sunday", date(2025, time.January, 26), Week{5, 2025}},
		{"monday", date(2025, time.January, 27), Week{5, 2025}},
		{"friday closes week", date(2025, time.January, 31), Week{5, 2025}},
		{"saturday after", date(2025, time.February, 1), Week{6, 2025}},
		{"year boundary", date(2025, time.December, 27), Week{1, 2026}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WeekOf(tt.day))
		})
	}
}

func TestWeekOf_RoundTrip(t *testing.T) {
	day := date(2024, time.January, 1)
	for i := 0; i < 800; i++ {
		wk := WeekOf(day)
		w, err := ResolveWeek(wk.Number, wk.Year)
		require.NoError(t, err)
		assert.True(t, w.Contains(day), "window %s should contain %s", wk, day.Format("2006-01-02"))
		day = day.AddDate(0, 0, 1)
	}
}

func TestCurrentWeek_UsesInjectedClock(t *testing.T) {
	now := time.Date(2025, time.January, 29, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, Week{Number: 5, Year: 2025}, CurrentWeek(now))
}

func TestWeek_Before(t *testing.T) {
	assert.True(t, Week{52, 2024}.Before(Week{1, 2025}))
	assert.True(t, Week{3, 2025}.Before(Week{4, 2025}))
	assert.False(t, Week{4, 2025}.Before(Week{4, 2025}))
	assert.Equal(t, "2025-W05", Week{5, 2025}.String())
}
