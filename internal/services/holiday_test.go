package services

import (
	"testing"
	"time"

	"github.com/sitesafe/hsekpi/internal/kpi"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestHolidayService_IsWorkday(t *testing.T) {
	s := NewHolidayService("NONE")

	tests := []struct {
		name    string
		day     time.Time
		country string
		want    bool
	}{
		{"weekday without calendar", date(2025, time.January, 29), "NONE", true},
		{"saturday without calendar", date(2025, time.January, 25), "NONE", false},
		{"french labour day", date(2025, time.May, 1), "FR", false},
		{"chinese national day", date(2025, time.October, 1), "CN", false},
		{"unknown country falls back to weekdays", date(2025, time.January, 27), "XX", true},
		{"empty country uses fallback", date(2025, time.January, 26), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.IsWorkday(tt.day, tt.country); got != tt.want {
				t.Errorf("IsWorkday(%s, %q) = %v, want %v", tt.day.Format("2006-01-02"), tt.country, got, tt.want)
			}
		})
	}
}

func TestHolidayService_Annotate(t *testing.T) {
	s := NewHolidayService("NONE")
	w, err := kpi.ResolveWeek(18, 2025)
	if err != nil {
		t.Fatal(err)
	}

	if got := s.Annotate(w, "NONE").WorkingDays(); got != 5 {
		t.Errorf("expected 5 working days, got %d", got)
	}
	if got := s.Annotate(w, "FR").WorkingDays(); got != 4 {
		t.Errorf("expected 4 working days around 1 May in France, got %d", got)
	}
}
