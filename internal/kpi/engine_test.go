package kpi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_SafetyRateScenario(t *testing.T) {
	w := mustWeek(t, 5, 2025)
	days := weekDays(w, HoursWorked, f(80), f(80), f(0), f(80), f(80), f(80), f(0))
	days[3].Values[Accidents] = f(1)

	res := Compute(w, days, CollaboratorCounts{}, History{})

	assert.Equal(t, 400.0, res.Week[HoursWorked])
	assert.Equal(t, 1.0, res.Week[Accidents])
	assert.InDelta(t, 250.0, res.WeekRates.TF, 1e-9)
	assert.InDelta(t, 250.0, res.Week[FrequencyRate], 1e-9)
	assert.Zero(t, res.WeekRates.TG)
	assert.Equal(t, res.WeekRates, res.CumulativeRates)
	assert.Equal(t, 7, res.DaysReported)
}

func TestCompute_ZeroHoursGivesZeroRates(t *testing.T) {
	w := mustWeek(t, 5, 2025)
	days := weekDays(w, Accidents, f(3), f(1))
	days[0].Values[LostWorkdays] = f(20)

	res := Compute(w, days, CollaboratorCounts{}, History{})
	assert.Zero(t, res.WeekRates.TF)
	assert.Zero(t, res.WeekRates.TG)
}

func TestCompute_CumulativeRatesUseCumulativeCounts(t *testing.T) {
	w := mustWeek(t, 5, 2025)
	days := weekDays(w, HoursWorked, f(400))
	history := History{Sums: Figures{HoursWorked: 600, Accidents: 1}}

	res := Compute(w, days, CollaboratorCounts{}, history)
	assert.Equal(t, 1000.0, res.Cumulative[HoursWorked])
	assert.InDelta(t, 100.0, res.CumulativeRates.TF, 1e-9)
	assert.Equal(t, 600.0, res.PriorCumulative[HoursWorked])
}

func TestCompute_Idempotent(t *testing.T) {
	w := mustWeek(t, 5, 2025)
	days := weekDays(w, HoursWorked, f(80), f(80), f(0), f(80))
	days[1].Values[NoiseLevel] = f(70)
	counts := CollaboratorCounts{Deviations: 2, DeviationsByCategory: map[string]int64{"ppe": 1, "fire": 1}}
	history := History{Sums: Figures{HoursWorked: 100}, Samples: map[string][]float64{NoiseLevel: {65, 70}}}

	a, err := json.Marshal(Compute(w, days, counts, history))
	require.NoError(t, err)
	b, err := json.Marshal(Compute(w, days, counts, history))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
