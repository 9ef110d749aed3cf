package lifecycle

import (
	"strings"
	"time"
)

// ReportStatus is the approval state of a weekly KPI report.
type ReportStatus string

const (
	ReportDraft     ReportStatus = "draft"
	ReportSubmitted ReportStatus = "submitted"
	ReportApproved  ReportStatus = "approved"
	ReportRejected  ReportStatus = "rejected"
)

var reportTransitions = map[ReportStatus][]ReportStatus{
	ReportDraft:     {ReportSubmitted},
	ReportSubmitted: {ReportApproved, ReportRejected},
	ReportRejected:  {ReportSubmitted},
	ReportApproved:  nil,
}

// Valid reports whether s is a known status.
func (s ReportStatus) Valid() bool {
	_, ok := reportTransitions[s]
	return ok
}

// CanTransition reports whether the table allows from -> to.
func (s ReportStatus) CanTransition(to ReportStatus) bool {
	for _, next := range reportTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Editable reports whether aggregate values may still be recomputed.
func (s ReportStatus) Editable() bool {
	return s != ReportApproved
}

// ReportState holds the workflow columns of a weekly report.
type ReportState struct {
	Status          ReportStatus `gorm:"size:20;default:draft;index" json:"status"`
	SubmissionCount int          `gorm:"default:0" json:"submission_count"`
	SubmittedBy     *uint        `json:"submitted_by"`
	SubmittedAt     *time.Time   `json:"submitted_at"`
	ApprovedBy      *uint        `json:"approved_by"`
	ApprovedAt      *time.Time   `json:"approved_at"`
	RejectedBy      *uint        `json:"rejected_by"`
	RejectedAt      *time.Time   `json:"rejected_at"`
	RejectionReason string       `gorm:"type:text" json:"rejection_reason"`
}

// NewReportState returns the state of a freshly created report.
func NewReportState() ReportState {
	return ReportState{Status: ReportDraft}
}

func (s ReportState) current() ReportStatus {
	if s.Status == "" {
		return ReportDraft
	}
	return s.Status
}

// Submit moves a draft or rejected report to submitted. missing lists the
// mandatory fields that are not populated; any entry blocks the transition.
func (s ReportState) Submit(by uint, now time.Time, missing []string) (ReportState, error) {
	from := s.current()
	if !from.CanTransition(ReportSubmitted) {
		return s, Invalid("status", ErrInvalidTransition, "cannot submit a report in status %s", from)
	}
	if len(missing) > 0 {
		return s, Invalid("metrics", ErrMissingMandatory, "missing mandatory fields: %s", strings.Join(missing, ", "))
	}
	if by == 0 {
		return s, Invalid("submitted_by", ErrActorRequired, "submitter is required")
	}

	next := s
	next.Status = ReportSubmitted
	next.SubmissionCount++
	next.SubmittedBy = &by
	next.SubmittedAt = &now
	next.RejectionReason = ""
	next.RejectedBy = nil
	next.RejectedAt = nil
	return next, nil
}

// Approve finalises a submitted report.
func (s ReportState) Approve(approver uint, now time.Time) (ReportState, error) {
	from := s.current()
	if !from.CanTransition(ReportApproved) {
		return s, Invalid("status", ErrInvalidTransition, "cannot approve a report in status %s", from)
	}
	if approver == 0 {
		return s, Invalid("approved_by", ErrActorRequired, "approver is required")
	}

	next := s
	next.Status = ReportApproved
	next.ApprovedBy = &approver
	next.ApprovedAt = &now
	return next, nil
}

// Reject sends a submitted report back with a reason.
func (s ReportState) Reject(by uint, reason string, now time.Time) (ReportState, error) {
	from := s.current()
	if !from.CanTransition(ReportRejected) {
		return s, Invalid("status", ErrInvalidTransition, "cannot reject a report in status %s", from)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return s, Invalid("rejection_reason", ErrReasonRequired, "rejection reason is required")
	}
	if by == 0 {
		return s, Invalid("rejected_by", ErrActorRequired, "rejecting user is required")
	}

	next := s
	next.Status = ReportRejected
	next.RejectionReason = reason
	next.RejectedBy = &by
	next.RejectedAt = &now
	return next, nil
}

// EnsureEditable fails when the report can no longer be recomputed.
func (s ReportState) EnsureEditable() error {
	if !s.current().Editable() {
		return Invalid("status", ErrFrozen, "report is %s and can no longer change", s.current())
	}
	return nil
}
