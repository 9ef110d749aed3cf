package services

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/sitesafe/hsekpi/internal/kpi"
	"github.com/sitesafe/hsekpi/internal/lifecycle"
	"github.com/sitesafe/hsekpi/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSnapshotService(t *testing.T) (*DailySnapshotService, *recordingQueue, *models.Project) {
	t.Helper()
	db := newTestDB(t)
	q := &recordingQueue{}
	return NewDailySnapshotService(db, NewCollector(db), q), q, createTestProject(t, db, "ALPHA")
}

func TestDailySnapshot_UpsertReplacesDraft(t *testing.T) {
	s, _, p := newSnapshotService(t)
	ctx := context.Background()

	first, err := s.Upsert(ctx, p.ID, &SnapshotRequest{
		EntryDate: "2025-01-27",
		Values:    map[string]*float64{kpi.Workforce: ptr(12), kpi.HoursWorked: ptr(96)},
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.SnapshotDraft, first.Status)
	require.NotNil(t, first.Workforce)
	assert.Equal(t, 12.0, *first.Workforce)

	second, err := s.Upsert(ctx, p.ID, &SnapshotRequest{
		EntryDate: "27/01/2025",
		Values:    map[string]*float64{kpi.Workforce: ptr(14)},
		Notes:     "crane crew arrived",
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 14.0, *second.Workforce)
	assert.Nil(t, second.HoursWorked, "upsert replaces the whole row")
	assert.Equal(t, "crane crew arrived", second.Notes)
}

func TestDailySnapshot_UpsertValidation(t *testing.T) {
	s, _, p := newSnapshotService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  SnapshotRequest
	}{
		{"bad date", SnapshotRequest{EntryDate: "2025-13-40"}},
		{"negative", SnapshotRequest{EntryDate: "2025-01-27", Values: map[string]*float64{kpi.Accidents: ptr(-1)}}},
		{"unknown metric", SnapshotRequest{EntryDate: "2025-01-27", Values: map[string]*float64{"cranes": ptr(1)}}},
		{"collaborator metric", SnapshotRequest{EntryDate: "2025-01-27", Values: map[string]*float64{kpi.Deviations: ptr(1)}}},
		{"not a number", SnapshotRequest{EntryDate: "2025-01-27", Values: map[string]*float64{kpi.HoursWorked: ptr(math.NaN())}}},
		{"infinite", SnapshotRequest{EntryDate: "2025-01-27", Values: map[string]*float64{kpi.NoiseLevel: ptr(math.Inf(1))}}},
		{"rate above 100", SnapshotRequest{EntryDate: "2025-01-27", Values: map[string]*float64{kpi.HSEComplianceRate: ptr(120)}}},
		{"zero marker on sum metric", SnapshotRequest{EntryDate: "2025-01-27",
			Values: map[string]*float64{kpi.Accidents: ptr(0)}, RecordedZeros: []string{kpi.Accidents}}},
		{"zero marker on non-zero value", SnapshotRequest{EntryDate: "2025-01-27",
			Values: map[string]*float64{kpi.NoiseLevel: ptr(70)}, RecordedZeros: []string{kpi.NoiseLevel}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := s.Upsert(ctx, p.ID, &req, 1)
			require.Error(t, err)
			assert.True(t, lifecycle.IsValidation(err), "got %v", err)
		})
	}
}

func TestDailySnapshot_SubmitFreezesUntilReopened(t *testing.T) {
	s, q, p := newSnapshotService(t)
	ctx := context.Background()
	day := ts(2025, time.January, 27, 0)

	_, err := s.Upsert(ctx, p.ID, &SnapshotRequest{EntryDate: "2025-01-27",
		Values: map[string]*float64{kpi.NoiseLevel: ptr(0)}, RecordedZeros: []string{kpi.NoiseLevel}}, 1)
	require.NoError(t, err)

	snap, err := s.Submit(ctx, p.ID, day, 5)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.SnapshotSubmitted, snap.Status)
	require.NotNil(t, snap.SubmittedBy)
	assert.Equal(t, uint(5), *snap.SubmittedBy)
	assert.Equal(t, []string{kpi.NoiseLevel}, []string(snap.RecordedZeros))

	_, err = s.Submit(ctx, p.ID, day, 5)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	_, err = s.Upsert(ctx, p.ID, &SnapshotRequest{EntryDate: "2025-01-27"}, 1)
	assert.ErrorIs(t, err, lifecycle.ErrFrozen)

	snap, err = s.Reopen(ctx, p.ID, day, 5)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.SnapshotDraft, snap.Status)
	assert.Nil(t, snap.SubmittedAt)

	_, err = s.Upsert(ctx, p.ID, &SnapshotRequest{EntryDate: "2025-01-27"}, 1)
	assert.NoError(t, err)

	require.Len(t, q.tasks, 2)
	assert.Equal(t, kpi.Week{Number: 5, Year: 2025}, q.tasks[0].Week())
	assert.Equal(t, "snapshot_reopened", q.tasks[1].Reason)
}

func TestDailySnapshot_ReadOnlyCollaboratorFigures(t *testing.T) {
	s, _, p := newSnapshotService(t)
	ctx := context.Background()

	require.NoError(t, s.db.Create(&models.DeviationReport{
		ProjectID: p.ID, ObservedAt: ts(2025, time.January, 28, 10), Category: models.CategoryPPE,
		NonConformity: "no helmet", DeviationState: lifecycle.DeviationState{Status: lifecycle.DeviationOpen, Pinned: true},
	}).Error)
	require.NoError(t, s.db.Create(&models.TrainingSession{
		ProjectID: p.ID, SessionDate: ts(2025, time.January, 28, 8), Topic: "rigging", Participants: 6, DurationHours: 1.5,
	}).Error)

	_, err := s.Upsert(ctx, p.ID, &SnapshotRequest{EntryDate: "2025-01-28"}, 1)
	require.NoError(t, err)
	_, err = s.Upsert(ctx, p.ID, &SnapshotRequest{EntryDate: "2025-01-29"}, 1)
	require.NoError(t, err)

	snap, err := s.Get(ctx, p.ID, ts(2025, time.January, 28, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.DeviationCount)
	assert.Equal(t, 9.0, snap.TrainingPersonHours)

	week, err := s.ListWeek(ctx, p.ID, 5, 2025)
	require.NoError(t, err)
	require.Len(t, week.Snapshots, 2)
	assert.Equal(t, int64(1), week.Snapshots[0].DeviationCount)
	assert.Zero(t, week.Snapshots[1].DeviationCount)
	assert.Empty(t, week.Errors)
}

func TestDailySnapshot_UnknownProject(t *testing.T) {
	s, _, _ := newSnapshotService(t)
	_, err := s.Upsert(context.Background(), 999, &SnapshotRequest{EntryDate: "2025-01-27"}, 1)
	assert.Error(t, err)
	assert.False(t, lifecycle.IsValidation(err))
}

func TestDailySnapshot_List(t *testing.T) {
	s, _, p := newSnapshotService(t)
	ctx := context.Background()
	for _, d := range []string{"2025-01-25", "2025-01-26", "2025-02-03"} {
		_, err := s.Upsert(ctx, p.ID, &SnapshotRequest{EntryDate: d}, 1)
		require.NoError(t, err)
	}

	resp, err := s.List(p.ID, &SnapshotListRequest{StartDate: "2025-01-26"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Total)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "2025-02-03", resp.Items[0].EntryDate.Format("2006-01-02"))
}
