package diff

import "untiscal/internal/model"

// Diff compares two snapshot maps over the intersection of their UID sets.
// A change record is emitted only when the status or the type of an event
// that persisted across both snapshots differs; additions, removals, and
// time- or location-only edits are not changes under this policy. Records
// follow the insertion order of the new map.
func Diff(oldMap, newMap *SnapshotMap) model.ChangeSet {
	var changes model.ChangeSet
	if oldMap == nil || newMap == nil {
		return changes
	}

	for _, uid := range newMap.UIDs() {
		newSnap, _ := newMap.Get(uid)
		oldSnap, ok := oldMap.Get(uid)
		if !ok {
			continue
		}
		if oldSnap.Status == newSnap.Status && oldSnap.Type == newSnap.Type {
			continue
		}
		changes = append(changes, model.ChangeRecord{
			UID: uid,
			Old: oldSnap,
			New: newSnap,
		})
	}

	return changes
}
