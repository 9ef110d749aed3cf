package services

import (
	"context"
	"testing"
	"time"

	"github.com/sitesafe/hsekpi/internal/lifecycle"
	"github.com/sitesafe/hsekpi/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDeviationService(t *testing.T) (*DeviationService, *recordingQueue, *models.Project) {
	t.Helper()
	db := newTestDB(t)
	q := &recordingQueue{}
	s := NewDeviationService(db, q)
	s.now = func() time.Time { return ts(2025, time.January, 28, 12) }
	return s, q, createTestProject(t, db, "CHARLIE")
}

func TestDeviation_CreateWithActionIsClosed(t *testing.T) {
	s, q, p := newDeviationService(t)

	dev, err := s.Create(context.Background(), p.ID, &CreateDeviationRequest{
		ObservedAt:       ts(2025, time.January, 27, 9),
		Zone:             " Block B ",
		Category:         "PPE",
		NonConformity:    "worker without harness",
		CorrectiveAction: "harness issued, toolbox talk held",
	}, 4)
	require.NoError(t, err)

	assert.Equal(t, lifecycle.DeviationClosed, dev.Status)
	assert.False(t, dev.Pinned)
	assert.Equal(t, models.CategoryPPE, dev.Category)
	assert.Equal(t, "Block B", dev.Zone)
	require.NotNil(t, dev.ClosedBy)
	assert.Equal(t, uint(4), *dev.ClosedBy)
	require.NotNil(t, dev.CorrectiveActionDate)
	assert.True(t, dev.CorrectiveActionDate.Equal(ts(2025, time.January, 28, 12)), "defaults to now")

	require.Len(t, q.tasks, 1)
	assert.Equal(t, 5, q.tasks[0].WeekNumber)
}

func TestDeviation_SubmitLaterIsPinned(t *testing.T) {
	s, _, p := newDeviationService(t)
	ctx := context.Background()

	dev, err := s.Create(ctx, p.ID, &CreateDeviationRequest{
		ObservedAt:       ts(2025, time.January, 27, 9),
		Category:         "housekeeping",
		NonConformity:    "cables across walkway",
		SubmitLater:      true,
		CorrectiveAction: "ignored while deferred",
	}, 4)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.DeviationOpen, dev.Status)
	assert.True(t, dev.Pinned)
	assert.Empty(t, dev.CorrectiveAction)

	blank, err := s.Create(ctx, p.ID, &CreateDeviationRequest{
		ObservedAt:    ts(2025, time.January, 26, 9),
		Category:      "fire",
		NonConformity: "extinguisher missing",
	}, 4)
	require.NoError(t, err)
	assert.True(t, blank.Pinned)

	pinned, err := s.Pinned(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, pinned, 2)
	assert.Equal(t, blank.ID, pinned[0].ID, "oldest observation first")
}

func TestDeviation_CorrectiveActionRequired(t *testing.T) {
	s, _, p := newDeviationService(t)
	ctx := context.Background()

	dev, err := s.Create(ctx, p.ID, &CreateDeviationRequest{
		ObservedAt: ts(2025, time.January, 27, 9), Category: "electrical",
		NonConformity: "open junction box", SubmitLater: true,
	}, 4)
	require.NoError(t, err)

	_, err = s.AddCorrectiveAction(ctx, dev.ID, &CorrectiveActionRequest{Description: "  "}, 4)
	assert.ErrorIs(t, err, lifecycle.ErrCorrectiveActionRequired)

	stored, err := s.GetByID(ctx, dev.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.DeviationOpen, stored.Status)
	assert.True(t, stored.Pinned)
	assert.Nil(t, stored.ClosedAt)

	actionDate := ts(2025, time.January, 27, 16)
	closed, err := s.AddCorrectiveAction(ctx, dev.ID, &CorrectiveActionRequest{
		Description: "box closed and tagged", Date: &actionDate, PhotoRef: "photos/jb-17.jpg",
	}, 6)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.DeviationClosed, closed.Status)
	assert.False(t, closed.Pinned)

	stored, err = s.GetByID(ctx, dev.ID)
	require.NoError(t, err)
	assert.Equal(t, "box closed and tagged", stored.CorrectiveAction)
	assert.Equal(t, "photos/jb-17.jpg", stored.CorrectiveActionPhoto)
	assert.NoError(t, stored.Check())

	_, err = s.AddCorrectiveAction(ctx, dev.ID, &CorrectiveActionRequest{Description: "again"}, 6)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	pinned, err := s.Pinned(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, pinned)
}

func TestDeviation_StartThenClose(t *testing.T) {
	s, _, p := newDeviationService(t)
	ctx := context.Background()

	dev, err := s.Create(ctx, p.ID, &CreateDeviationRequest{
		ObservedAt: ts(2025, time.January, 27, 9), Category: "lifting",
		NonConformity: "sling worn", SubmitLater: true,
	}, 4)
	require.NoError(t, err)

	dev, err = s.Start(ctx, dev.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.DeviationInProgress, dev.Status)
	assert.True(t, dev.Pinned)

	_, err = s.Start(ctx, dev.ID, 4)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	dev, err = s.AddCorrectiveAction(ctx, dev.ID, &CorrectiveActionRequest{Description: "sling replaced"}, 4)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.DeviationClosed, dev.Status)
}

func TestDeviation_CreateValidation(t *testing.T) {
	s, _, p := newDeviationService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  CreateDeviationRequest
	}{
		{"unknown category", CreateDeviationRequest{ObservedAt: ts(2025, 1, 27, 9), Category: "weather", NonConformity: "x"}},
		{"blank non conformity", CreateDeviationRequest{ObservedAt: ts(2025, 1, 27, 9), Category: "ppe", NonConformity: " "}},
		{"no observation time", CreateDeviationRequest{Category: "ppe", NonConformity: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := s.Create(ctx, p.ID, &req, 4)
			require.Error(t, err)
			assert.True(t, lifecycle.IsValidation(err))
		})
	}

	var n int64
	s.db.Model(&models.DeviationReport{}).Count(&n)
	assert.Zero(t, n)
}

func TestDeviation_ListAndBreakdown(t *testing.T) {
	s, _, p := newDeviationService(t)
	ctx := context.Background()

	for i, c := range []string{"ppe", "ppe", "fire", "traffic"} {
		_, err := s.Create(ctx, p.ID, &CreateDeviationRequest{
			ObservedAt: ts(2025, time.January, 25+i, 10), Category: c, NonConformity: "observation",
		}, 4)
		require.NoError(t, err)
	}

	counts, total, err := s.Breakdown(ctx, p.ID, ts(2025, time.January, 25, 0), ts(2025, time.January, 27, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, counts, len(models.DeviationCategories))
	byCat := map[string]int64{}
	for _, c := range counts {
		byCat[c.Category] = c.Count
	}
	assert.Equal(t, int64(2), byCat["ppe"])
	assert.Equal(t, int64(1), byCat["fire"])
	assert.Zero(t, byCat["traffic"])

	pinned := true
	resp, err := s.List(p.ID, &DeviationListRequest{Category: "ppe", Pinned: &pinned})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Total)

	resp, err = s.List(p.ID, &DeviationListRequest{EndDate: "2025-01-26"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Total)
	assert.Equal(t, 26, resp.Items[0].ObservedAt.Day())
}
