package lifecycle

import (
	"strings"
	"time"
)

// DeviationStatus is the state of a reported safety deviation.
type DeviationStatus string

const (
	DeviationOpen       DeviationStatus = "open"
	DeviationInProgress DeviationStatus = "in_progress"
	DeviationClosed     DeviationStatus = "closed"
)

var deviationTransitions = map[DeviationStatus][]DeviationStatus{
	DeviationOpen:       {DeviationInProgress, DeviationClosed},
	DeviationInProgress: {DeviationClosed},
	DeviationClosed:     nil,
}

// Valid reports whether s is a known status.
func (s DeviationStatus) Valid() bool {
	_, ok := deviationTransitions[s]
	return ok
}

// CanTransition reports whether the table allows s -> to.
func (s DeviationStatus) CanTransition(to DeviationStatus) bool {
	for _, next := range deviationTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// CorrectiveAction is the remedy recorded when a deviation is closed.
type CorrectiveAction struct {
	Description string
	Date        *time.Time
	PhotoRef    string
}

// DeviationState holds the lifecycle columns of a deviation report.
// closed implies a corrective action and closed_at; pinned implies not closed.
type DeviationState struct {
	Status                DeviationStatus `gorm:"size:20;default:open;index" json:"status"`
	Pinned                bool            `gorm:"default:false;index" json:"pinned"`
	CorrectiveAction      string          `gorm:"type:text" json:"corrective_action"`
	CorrectiveActionDate  *time.Time      `json:"corrective_action_date"`
	CorrectiveActionPhoto string          `gorm:"size:500" json:"corrective_action_photo"`
	ClosedBy              *uint           `json:"closed_by"`
	ClosedAt              *time.Time      `json:"closed_at"`
}

// NewDeviation returns the initial state of a newly reported deviation. With a
// corrective action it is closed at once; otherwise it is pinned for later action.
func NewDeviation(action *CorrectiveAction, by uint, now time.Time) (DeviationState, error) {
	if action == nil || strings.TrimSpace(action.Description) == "" {
		return DeviationState{Status: DeviationOpen, Pinned: true}, nil
	}
	return DeviationState{Status: DeviationOpen}.Close(*action, by, now)
}

// Start marks an open deviation as being worked on.
func (s DeviationState) Start() (DeviationState, error) {
	if !s.Status.CanTransition(DeviationInProgress) {
		return s, Invalid("status", ErrInvalidTransition, "cannot start a deviation in status %s", s.Status)
	}
	next := s
	next.Status = DeviationInProgress
	return next, nil
}

// Close records the corrective action and closes the deviation. It serves both
// pinned deviations and direct closure of any non-closed deviation.
func (s DeviationState) Close(action CorrectiveAction, by uint, now time.Time) (DeviationState, error) {
	if !s.Status.CanTransition(DeviationClosed) {
		return s, Invalid("status", ErrInvalidTransition, "cannot close a deviation in status %s", s.Status)
	}
	desc := strings.TrimSpace(action.Description)
	if desc == "" {
		return s, Invalid("corrective_action", ErrCorrectiveActionRequired, "corrective action is required")
	}

	actionDate := now
	if action.Date != nil {
		actionDate = *action.Date
	}

	next := s
	next.Status = DeviationClosed
	next.Pinned = false
	next.CorrectiveAction = desc
	next.CorrectiveActionDate = &actionDate
	next.CorrectiveActionPhoto = action.PhotoRef
	next.ClosedAt = &now
	if by != 0 {
		next.ClosedBy = &by
	}
	return next, nil
}

// Check verifies the state invariants.
func (s DeviationState) Check() error {
	if !s.Status.Valid() {
		return Invalid("status", ErrInvalidTransition, "unknown status %q", s.Status)
	}
	if s.Status == DeviationClosed {
		if strings.TrimSpace(s.CorrectiveAction) == "" {
			return Invalid("corrective_action", ErrCorrectiveActionRequired, "closed deviation has no corrective action")
		}
		if s.ClosedAt == nil {
			return Invalid("closed_at", ErrMissingMandatory, "closed deviation has no closure time")
		}
		if s.Pinned {
			return Invalid("pinned", ErrInvalidTransition, "closed deviation cannot stay pinned")
		}
	}
	return nil
}
