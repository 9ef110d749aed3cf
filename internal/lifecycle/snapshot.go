package lifecycle

// SnapshotStatus is the state of a daily snapshot.
type SnapshotStatus string

const (
	SnapshotDraft     SnapshotStatus = "draft"
	SnapshotSubmitted SnapshotStatus = "submitted"
)

var snapshotTransitions = map[SnapshotStatus][]SnapshotStatus{
	SnapshotDraft:     {SnapshotSubmitted},
	SnapshotSubmitted: {SnapshotDraft},
}

// Valid reports whether s is a known status.
func (s SnapshotStatus) Valid() bool {
	_, ok := snapshotTransitions[s]
	return ok
}

// CanTransition reports whether the table allows s -> to.
func (s SnapshotStatus) CanTransition(to SnapshotStatus) bool {
	for _, next := range snapshotTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Editable reports whether field values may change.
func (s SnapshotStatus) Editable() bool {
	return s == "" || s == SnapshotDraft
}

// SubmitSnapshot returns the status after submitting.
func SubmitSnapshot(from SnapshotStatus) (SnapshotStatus, error) {
	if from == "" {
		from = SnapshotDraft
	}
	if !from.CanTransition(SnapshotSubmitted) {
		return from, Invalid("status", ErrInvalidTransition, "snapshot is already %s", from)
	}
	return SnapshotSubmitted, nil
}

// ReopenSnapshot returns a submitted snapshot to draft for editing.
func ReopenSnapshot(from SnapshotStatus) (SnapshotStatus, error) {
	if !from.CanTransition(SnapshotDraft) {
		return from, Invalid("status", ErrInvalidTransition, "only submitted snapshots can be reopened")
	}
	return SnapshotDraft, nil
}
