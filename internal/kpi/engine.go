package kpi

// Result is one computed week: aggregated figures, collaborator input, rates and
// the cumulative projection.
type Result struct {
	Window          Window             `json:"window"`
	DaysReported    int                `json:"days_reported"`
	Week            Figures            `json:"week"`
	Cumulative      Figures            `json:"cumulative"`
	PriorCumulative Figures            `json:"prior_cumulative"`
	WeekRates       Rates              `json:"week_rates"`
	CumulativeRates Rates              `json:"cumulative_rates"`
	Collaborators   CollaboratorCounts `json:"collaborators"`
	// Missing lists mandatory metrics never entered during the week.
	Missing []string `json:"missing,omitempty"`
}

// Compute runs the aggregation pipeline for one week: daily reduction, collaborator
// fold, safety rates and cumulative projection.
func Compute(w Window, days []DailyValues, counts CollaboratorCounts, history History) Result {
	week, n := Aggregate(w, days)
	Fold(week, counts)

	proj := Project(history, week)

	return Result{
		Window:          w,
		DaysReported:    n,
		Week:            WithRates(week),
		Cumulative:      WithRates(proj.Cumulative),
		PriorCumulative: proj.Prior,
		WeekRates:       RatesOf(week),
		CumulativeRates: RatesOf(proj.Cumulative),
		Collaborators:   counts,
		Missing:         Missing(w, days),
	}
}
