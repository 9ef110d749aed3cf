package kpi

import (
	"context"
	"fmt"
	"time"
)

// DeviationCount is the deviation total for a range with its category breakdown.
type DeviationCount struct {
	Total      int64            `json:"total"`
	ByCategory map[string]int64 `json:"by_category"`
}

// SessionTotals summarises training-like sessions in a range.
type SessionTotals struct {
	Sessions     int64   `json:"sessions"`
	Participants int64   `json:"participants"`
	PersonHours  float64 `json:"person_hours"`
}

// DeviationCounter counts deviation reports observed in [from, to].
type DeviationCounter interface {
	CountInRange(ctx context.Context, projectID uint, from, to time.Time) (DeviationCount, error)
}

// TrainingSummer sums sessions held in [from, to]. Training and awareness
// collaborators both satisfy it.
type TrainingSummer interface {
	SumInRange(ctx context.Context, projectID uint, from, to time.Time) (SessionTotals, error)
}

// PermitCounter counts work permits tagged with a reporting week.
type PermitCounter interface {
	CountForWeek(ctx context.Context, projectID uint, week Week) (int64, error)
}

// PermitHistory is implemented by permit sources that can count the permits
// tagged with a week in [since, week). A zero since has no lower bound.
type PermitHistory interface {
	CountBeforeWeek(ctx context.Context, projectID uint, since, week Week) (int64, error)
}

// InspectionCounter counts inspections carried out in [from, to].
type InspectionCounter interface {
	CountInRange(ctx context.Context, projectID uint, from, to time.Time) (int64, error)
}

// CollectError records a collaborator that failed; its contribution is zero.
type CollectError struct {
	Source string `json:"source"`
	Err    string `json:"error"`
}

func (e CollectError) Error() string {
	return fmt.Sprintf("%s: %s", e.Source, e.Err)
}

// DayCounts holds collaborator figures for a single day.
type DayCounts struct {
	Date                 time.Time `json:"date"`
	Deviations           int64     `json:"deviations"`
	TrainingPersonHours  float64   `json:"training_person_hours"`
	AwarenessPersonHours float64   `json:"awareness_person_hours"`
	Inspections          int64     `json:"inspections"`
}

// CollaboratorCounts is a read-only snapshot of collaborator figures for a scope.
type CollaboratorCounts struct {
	Deviations            int64            `json:"deviations"`
	DeviationsByCategory  map[string]int64 `json:"deviations_by_category"`
	TrainingSessions      int64            `json:"training_sessions"`
	TrainingParticipants  int64            `json:"training_participants"`
	TrainingPersonHours   float64          `json:"training_person_hours"`
	AwarenessSessions     int64            `json:"awareness_sessions"`
	AwarenessParticipants int64            `json:"awareness_participants"`
	AwarenessPersonHours  float64          `json:"awareness_person_hours"`
	WorkPermits           int64            `json:"work_permits"`
	Inspections           int64            `json:"inspections"`
	PerDay                []DayCounts      `json:"per_day,omitempty"`
	Errors                []CollectError   `json:"errors,omitempty"`
}

// Collector gathers figures from the collaborators. Any source may be nil, in
// which case it contributes zero.
type Collector struct {
	Deviations  DeviationCounter
	Trainings   TrainingSummer
	Awareness   TrainingSummer
	Permits     PermitCounter
	Inspections InspectionCounter
}

// CollectWeek queries every collaborator day by day over the window and totals
// the week. A failing collaborator is recorded in Errors and counted as zero.
func (c *Collector) CollectWeek(ctx context.Context, projectID uint, w Window) CollaboratorCounts {
	out := CollaboratorCounts{DeviationsByCategory: map[string]int64{}}
	failed := map[string]bool{}

	for _, day := range w.Days {
		dc := DayCounts{Date: day.Date}
		from, to := day.Date, endOfDay(day.Date)

		if c.Deviations != nil && !failed["deviations"] {
			n, err := c.Deviations.CountInRange(ctx, projectID, from, to)
			if err != nil {
				out.fail(failed, "deviations", err)
			} else {
				dc.Deviations = n.Total
				out.Deviations += n.Total
				for cat, v := range n.ByCategory {
					out.DeviationsByCategory[cat] += v
				}
			}
		}
		if c.Trainings != nil && !failed["trainings"] {
			t, err := c.Trainings.SumInRange(ctx, projectID, from, to)
			if err != nil {
				out.fail(failed, "trainings", err)
			} else {
				dc.TrainingPersonHours = t.PersonHours
				out.TrainingSessions += t.Sessions
				out.TrainingParticipants += t.Participants
				out.TrainingPersonHours += t.PersonHours
			}
		}
		if c.Awareness != nil && !failed["awareness"] {
			t, err := c.Awareness.SumInRange(ctx, projectID, from, to)
			if err != nil {
				out.fail(failed, "awareness", err)
			} else {
				dc.AwarenessPersonHours = t.PersonHours
				out.AwarenessSessions += t.Sessions
				out.AwarenessParticipants += t.Participants
				out.AwarenessPersonHours += t.PersonHours
			}
		}
		if c.Inspections != nil && !failed["inspections"] {
			n, err := c.Inspections.CountInRange(ctx, projectID, from, to)
			if err != nil {
				out.fail(failed, "inspections", err)
			} else {
				dc.Inspections = n
				out.Inspections += n
			}
		}
		out.PerDay = append(out.PerDay, dc)
	}

	// Days collected before a source failed are discarded with it.
	if failed["deviations"] {
		out.Deviations = 0
		out.DeviationsByCategory = map[string]int64{}
	}
	if failed["trainings"] {
		out.TrainingSessions, out.TrainingParticipants, out.TrainingPersonHours = 0, 0, 0
	}
	if failed["awareness"] {
		out.AwarenessSessions, out.AwarenessParticipants, out.AwarenessPersonHours = 0, 0, 0
	}
	if failed["inspections"] {
		out.Inspections = 0
	}
	if len(failed) > 0 {
		for i := range out.PerDay {
			d := &out.PerDay[i]
			if failed["deviations"] {
				d.Deviations = 0
			}
			if failed["trainings"] {
				d.TrainingPersonHours = 0
			}
			if failed["awareness"] {
				d.AwarenessPersonHours = 0
			}
			if failed["inspections"] {
				d.Inspections = 0
			}
		}
	}

	if c.Permits != nil {
		n, err := c.Permits.CountForWeek(ctx, projectID, w.Week)
		if err != nil {
			out.fail(failed, "work_permits", err)
		} else {
			out.WorkPermits = n
		}
	}
	return out
}

// CollectBefore totals collaborator figures from since (the project start, zero
// for none) up to the window start, exclusive.
func (c *Collector) CollectBefore(ctx context.Context, projectID uint, since time.Time, w Window) CollaboratorCounts {
	out := CollaboratorCounts{DeviationsByCategory: map[string]int64{}}
	failed := map[string]bool{}
	from := time.Date(minYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	var sinceWeek Week
	if !since.IsZero() {
		from = DateOnly(since)
		sinceWeek = WeekOf(from)
	}
	to := w.Start.Add(-time.Nanosecond)
	if !from.Before(w.Start) {
		return out
	}

	if c.Deviations != nil {
		if n, err := c.Deviations.CountInRange(ctx, projectID, from, to); err != nil {
			out.fail(failed, "deviations", err)
		} else {
			out.Deviations = n.Total
			for cat, v := range n.ByCategory {
				out.DeviationsByCategory[cat] += v
			}
		}
	}
	if c.Trainings != nil {
		if t, err := c.Trainings.SumInRange(ctx, projectID, from, to); err != nil {
			out.fail(failed, "trainings", err)
		} else {
			out.TrainingSessions, out.TrainingParticipants, out.TrainingPersonHours = t.Sessions, t.Participants, t.PersonHours
		}
	}
	if c.Awareness != nil {
		if t, err := c.Awareness.SumInRange(ctx, projectID, from, to); err != nil {
			out.fail(failed, "awareness", err)
		} else {
			out.AwarenessSessions, out.AwarenessParticipants, out.AwarenessPersonHours = t.Sessions, t.Participants, t.PersonHours
		}
	}
	if c.Inspections != nil {
		if n, err := c.Inspections.CountInRange(ctx, projectID, from, to); err != nil {
			out.fail(failed, "inspections", err)
		} else {
			out.Inspections = n
		}
	}
	if h, ok := c.Permits.(PermitHistory); ok {
		if n, err := h.CountBeforeWeek(ctx, projectID, sinceWeek, w.Week); err != nil {
			out.fail(failed, "work_permits", err)
		} else {
			out.WorkPermits = n
		}
	}
	return out
}

func (cc *CollaboratorCounts) fail(failed map[string]bool, source string, err error) {
	failed[source] = true
	cc.Errors = append(cc.Errors, CollectError{Source: source, Err: err.Error()})
}

// Fold adds collaborator figures into the matching summed metrics.
func Fold(f Figures, cc CollaboratorCounts) {
	f.Add(Deviations, float64(cc.Deviations))
	f.Add(TrainingHours, cc.TrainingPersonHours+cc.AwarenessPersonHours)
	f.Add(WorkPermits, float64(cc.WorkPermits))
	f.Add(Inspections, float64(cc.Inspections))
}

func endOfDay(d time.Time) time.Time {
	return DateOnly(d).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// CollectDay returns the read-only collaborator figures of a single day.
func (c *Collector) CollectDay(ctx context.Context, projectID uint, date time.Time) (DayCounts, []CollectError) {
	day := DateOnly(date)
	from, to := day, endOfDay(day)
	dc := DayCounts{Date: day}
	var errs []CollectError

	if c.Deviations != nil {
		if n, err := c.Deviations.CountInRange(ctx, projectID, from, to); err != nil {
			errs = append(errs, CollectError{Source: "deviations", Err: err.Error()})
		} else {
			dc.Deviations = n.Total
		}
	}
	if c.Trainings != nil {
		if t, err := c.Trainings.SumInRange(ctx, projectID, from, to); err != nil {
			errs = append(errs, CollectError{Source: "trainings", Err: err.Error()})
		} else {
			dc.TrainingPersonHours = t.PersonHours
		}
	}
	if c.Awareness != nil {
		if t, err := c.Awareness.SumInRange(ctx, projectID, from, to); err != nil {
			errs = append(errs, CollectError{Source: "awareness", Err: err.Error()})
		} else {
			dc.AwarenessPersonHours = t.PersonHours
		}
	}
	if c.Inspections != nil {
		if n, err := c.Inspections.CountInRange(ctx, projectID, from, to); err != nil {
			errs = append(errs, CollectError{Source: "inspections", Err: err.Error()})
		} else {
			dc.Inspections = n
		}
	}
	return dc, errs
}
