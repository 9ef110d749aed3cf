package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotTransitions(t *testing.T) {
	s, err := SubmitSnapshot("")
	require.NoError(t, err)
	assert.Equal(t, SnapshotSubmitted, s)
	assert.False(t, s.Editable())

	_, err = SubmitSnapshot(SnapshotSubmitted)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	s, err = ReopenSnapshot(SnapshotSubmitted)
	require.NoError(t, err)
	assert.Equal(t, SnapshotDraft, s)
	assert.True(t, s.Editable())

	_, err = ReopenSnapshot(SnapshotDraft)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.False(t, SnapshotStatus("archived").Valid())
}
