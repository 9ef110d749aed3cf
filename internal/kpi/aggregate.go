package kpi

import (
	"sort"
	"time"
)

// DailyValues is one day of entered metrics. A missing key or nil value means
// "not entered", which is distinct from an entered zero.
type DailyValues struct {
	Date      time.Time
	Submitted bool
	Values    map[string]*float64
	// RecordedZeros marks averaged metrics whose literal 0 was measured.
	RecordedZeros map[string]bool
}

// Figures maps metric names to values.
type Figures map[string]float64

// Get returns the value of a metric, 0 when absent.
func (f Figures) Get(name string) float64 {
	return f[name]
}

// Add increments a metric.
func (f Figures) Add(name string, v float64) {
	f[name] += v
}

// Clone returns an independent copy.
func (f Figures) Clone() Figures {
	out := make(Figures, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Keys returns the metric names in table order, followed by any extra keys sorted.
func (f Figures) Keys() []string {
	keys := make([]string, 0, len(f))
	seen := make(map[string]bool, len(f))
	for _, def := range Metrics {
		if _, ok := f[def.Name]; ok {
			keys = append(keys, def.Name)
			seen[def.Name] = true
		}
	}
	var extra []string
	for k := range f {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

// Aggregate reduces up to seven daily rows into one weekly figure per metric.
// Rows that are not submitted or fall outside the window are skipped.
func Aggregate(w Window, days []DailyValues) (Figures, int) {
	included := make([]DailyValues, 0, len(days))
	for _, d := range days {
		if !d.Submitted || !w.Contains(d.Date) {
			continue
		}
		included = append(included, d)
	}

	out := make(Figures, len(Metrics))
	for _, def := range Metrics {
		out[def.Name] = reduce(def, included)
	}
	return out, len(included)
}

func reduce(def MetricDef, days []DailyValues) float64 {
	switch def.Strategy {
	case StrategyMax:
		var best float64
		found := false
		for _, d := range days {
			v := d.Values[def.Name]
			if v == nil {
				continue
			}
			if !found || *v > best {
				best = *v
				found = true
			}
		}
		return best
	case StrategyAvg:
		return Mean(Samples(def.Name, days))
	default:
		var sum float64
		for _, d := range days {
			if v := d.Values[def.Name]; v != nil {
				sum += *v
			}
		}
		return sum
	}
}

// Samples returns the values of an averaged metric that qualify for the mean:
// non-null, and either non-zero or explicitly recorded as zero.
func Samples(metric string, days []DailyValues) []float64 {
	var out []float64
	for _, d := range days {
		v := d.Values[metric]
		if v == nil {
			continue
		}
		if *v == 0 && !d.RecordedZeros[metric] {
			continue
		}
		out = append(out, *v)
	}
	return out
}

// Mean returns the arithmetic mean, 0 for an empty set.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Missing lists the mandatory metrics with no entered value on any submitted day
// of the window.
func Missing(w Window, days []DailyValues) []string {
	var out []string
	for _, def := range Metrics {
		if !def.Mandatory || !def.Daily {
			continue
		}
		entered := false
		for _, d := range days {
			if d.Submitted && w.Contains(d.Date) && d.Values[def.Name] != nil {
				entered = true
				break
			}
		}
		if !entered {
			out = append(out, def.Name)
		}
	}
	return out
}
