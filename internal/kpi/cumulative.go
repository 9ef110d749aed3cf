package kpi

// History is everything the projector needs about a project before and up to
// the current week.
type History struct {
	// Sums holds summed metrics strictly before the week start.
	Sums Figures
	// Samples holds every qualifying raw value of averaged metrics from the
	// project start through the week end.
	Samples map[string][]float64
}

// Empty reports whether there is no prior data at all.
func (h History) Empty() bool {
	for _, v := range h.Sums {
		if v != 0 {
			return false
		}
	}
	for _, s := range h.Samples {
		if len(s) > 0 {
			return false
		}
	}
	return true
}

// HistoryFrom builds a History from every daily row up to the window end and the
// collaborator totals before the window start. Rows after the window end and rows
// that are not submitted are ignored.
func HistoryFrom(w Window, days []DailyValues, before CollaboratorCounts) History {
	h := History{Sums: Figures{}, Samples: map[string][]float64{}}

	var prior, upToEnd []DailyValues
	for _, d := range days {
		if !d.Submitted {
			continue
		}
		date := DateOnly(d.Date)
		if date.After(w.End) {
			continue
		}
		upToEnd = append(upToEnd, d)
		if date.Before(w.Start) {
			prior = append(prior, d)
		}
	}

	for _, def := range Metrics {
		switch def.Strategy {
		case StrategySum:
			var sum float64
			for _, d := range prior {
				if v := d.Values[def.Name]; v != nil {
					sum += *v
				}
			}
			h.Sums[def.Name] = sum
		case StrategyAvg:
			if s := Samples(def.Name, upToEnd); len(s) > 0 {
				h.Samples[def.Name] = s
			}
		}
	}
	Fold(h.Sums, before)
	return h
}

// Projection is the project-to-date view of one week.
type Projection struct {
	// Prior is the summed cumulative strictly before the week.
	Prior      Figures `json:"prior"`
	Cumulative Figures `json:"cumulative"`
}

// Project combines prior history with the current week:
// summed metrics add, averaged metrics take the mean of all raw samples,
// and the max metric (workforce) reports the current week's value.
func Project(prior History, current Figures) Projection {
	p := Projection{Prior: Figures{}, Cumulative: Figures{}}
	for _, def := range Metrics {
		switch def.Strategy {
		case StrategySum:
			before := prior.Sums.Get(def.Name)
			p.Prior[def.Name] = before
			p.Cumulative[def.Name] = before + current.Get(def.Name)
		case StrategyAvg:
			if s := prior.Samples[def.Name]; len(s) > 0 {
				p.Cumulative[def.Name] = Mean(s)
			} else {
				p.Cumulative[def.Name] = current.Get(def.Name)
			}
		case StrategyMax:
			p.Cumulative[def.Name] = current.Get(def.Name)
		}
	}
	return p
}
