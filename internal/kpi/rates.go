package kpi

// ExposureScale converts recorded work-hours into the exposure basis of the
// regulatory formulas.
const ExposureScale = 10

const (
	frequencyBasis = 1_000_000
	severityBasis  = 1_000
)

// Rates holds the frequency (TF) and severity (TG) rates for one scope.
type Rates struct {
	TF float64 `json:"tf"`
	TG float64 `json:"tg"`
}

// EffectiveHours returns the exposure hours for a recorded hours total.
func EffectiveHours(hoursWorked float64) float64 {
	return hoursWorked * ExposureScale
}

// FrequencyRateOf returns accidents per million exposure-hours, 0 without exposure.
func FrequencyRateOf(accidents, hoursWorked float64) float64 {
	eff := EffectiveHours(hoursWorked)
	if eff == 0 {
		return 0
	}
	return accidents * frequencyBasis / eff
}

// SeverityRateOf returns lost workdays per thousand exposure-hours, 0 without exposure.
func SeverityRateOf(lostWorkdays, hoursWorked float64) float64 {
	eff := EffectiveHours(hoursWorked)
	if eff == 0 {
		return 0
	}
	return lostWorkdays * severityBasis / eff
}

// ComputeRates derives TF and TG from the counts.
func ComputeRates(accidents, lostWorkdays, hoursWorked float64) Rates {
	return Rates{
		TF: FrequencyRateOf(accidents, hoursWorked),
		TG: SeverityRateOf(lostWorkdays, hoursWorked),
	}
}

// RatesOf derives rates from a figures map.
func RatesOf(f Figures) Rates {
	return ComputeRates(f.Get(Accidents), f.Get(LostWorkdays), f.Get(HoursWorked))
}

// WithRates returns a copy of f carrying the tf and tg keys.
func WithRates(f Figures) Figures {
	out := f.Clone()
	r := RatesOf(f)
	out[FrequencyRate] = r.TF
	out[SeverityRate] = r.TG
	return out
}
