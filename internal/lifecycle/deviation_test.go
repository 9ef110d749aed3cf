package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDeviation_SubmitLaterIsPinned(t *testing.T) {
	s, err := NewDeviation(nil, 3, now)
	require.NoError(t, err)

	assert.Equal(t, DeviationOpen, s.Status)
	assert.True(t, s.Pinned)
	assert.Nil(t, s.ClosedAt)
	assert.NoError(t, s.Check())
}

func TestNewDeviation_WithCorrectiveActionCloses(t *testing.T) {
	s, err := NewDeviation(&CorrectiveAction{Description: "Barrier installed"}, 3, now)
	require.NoError(t, err)

	assert.Equal(t, DeviationClosed, s.Status)
	assert.False(t, s.Pinned)
	require.NotNil(t, s.ClosedAt)
	assert.Equal(t, now, *s.ClosedAt)
	require.NotNil(t, s.ClosedBy)
	assert.Equal(t, uint(3), *s.ClosedBy)
	assert.Equal(t, now, *s.CorrectiveActionDate)
	assert.NoError(t, s.Check())
}

func TestNewDeviation_BlankActionIsDeferred(t *testing.T) {
	s, err := NewDeviation(&CorrectiveAction{Description: "  "}, 3, now)
	require.NoError(t, err)
	assert.Equal(t, DeviationOpen, s.Status)
	assert.True(t, s.Pinned)
}

func TestDeviation_PinnedThenCorrected(t *testing.T) {
	s, err := NewDeviation(nil, 3, now)
	require.NoError(t, err)

	actionDate := now.AddDate(0, 0, -1)
	s, err = s.Close(CorrectiveAction{Description: "Guard rail fixed", Date: &actionDate, PhotoRef: "photos/1.jpg"}, 4, now)
	require.NoError(t, err)

	assert.Equal(t, DeviationClosed, s.Status)
	assert.False(t, s.Pinned)
	require.NotNil(t, s.ClosedAt)
	assert.Equal(t, actionDate, *s.CorrectiveActionDate)
	assert.Equal(t, "photos/1.jpg", s.CorrectiveActionPhoto)
}

func TestDeviation_CloseWithoutActionIsRejected(t *testing.T) {
	s, err := NewDeviation(nil, 3, now)
	require.NoError(t, err)

	next, err := s.Close(CorrectiveAction{Description: ""}, 4, now)
	assert.ErrorIs(t, err, ErrCorrectiveActionRequired)
	assert.True(t, IsValidation(err))
	assert.Equal(t, s, next)
}

func TestDeviation_StartThenClose(t *testing.T) {
	s, err := NewDeviation(nil, 3, now)
	require.NoError(t, err)

	s, err = s.Start()
	require.NoError(t, err)
	assert.Equal(t, DeviationInProgress, s.Status)
	assert.True(t, s.Pinned)

	_, err = s.Start()
	assert.ErrorIs(t, err, ErrInvalidTransition)

	s, err = s.Close(CorrectiveAction{Description: "Retrained crew"}, 4, now)
	require.NoError(t, err)
	assert.False(t, s.Pinned)
}

func TestDeviation_ClosedIsTerminal(t *testing.T) {
	s, err := NewDeviation(&CorrectiveAction{Description: "done"}, 3, now)
	require.NoError(t, err)

	_, err = s.Close(CorrectiveAction{Description: "again"}, 3, now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.Start()
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDeviationState_Check(t *testing.T) {
	assert.ErrorIs(t, DeviationState{Status: DeviationClosed, ClosedAt: &now}.Check(), ErrCorrectiveActionRequired)
	assert.ErrorIs(t, DeviationState{Status: DeviationClosed, CorrectiveAction: "x"}.Check(), ErrMissingMandatory)
	assert.ErrorIs(t, DeviationState{Status: DeviationClosed, CorrectiveAction: "x", ClosedAt: &now, Pinned: true}.Check(), ErrInvalidTransition)
	assert.Error(t, DeviationState{Status: "lost"}.Check())
}
