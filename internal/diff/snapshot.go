// Package diff extracts per-UID snapshots from materialized calendars and
// computes the change-set between two sync runs.
package diff

import "untiscal/internal/model"

// SnapshotMap is a UID-keyed snapshot collection that preserves insertion
// order, so change records come out in a deterministic order instead of Go
// map iteration order.
type SnapshotMap struct {
	uids      []string
	snapshots map[string]model.Snapshot
}

// NewSnapshotMap returns an empty map.
func NewSnapshotMap() *SnapshotMap {
	return &SnapshotMap{snapshots: make(map[string]model.Snapshot)}
}

// Put inserts or replaces the snapshot for uid. Replacement keeps the
// original position. It reports whether the uid was already present.
func (m *SnapshotMap) Put(uid string, s model.Snapshot) bool {
	_, exists := m.snapshots[uid]
	if !exists {
		m.uids = append(m.uids, uid)
	}
	m.snapshots[uid] = s
	return exists
}

// Get returns the snapshot for uid.
func (m *SnapshotMap) Get(uid string) (model.Snapshot, bool) {
	s, ok := m.snapshots[uid]
	return s, ok
}

// UIDs returns the uids in insertion order.
func (m *SnapshotMap) UIDs() []string {
	return m.uids
}

// Len returns the number of snapshots.
func (m *SnapshotMap) Len() int {
	return len(m.uids)
}

// Merge combines maps into one, in argument order. The main and exam
// calendars partition the UID space, so collisions only occur on
// degenerate UIDs; later maps win there.
func Merge(maps ...*SnapshotMap) *SnapshotMap {
	out := NewSnapshotMap()
	for _, m := range maps {
		if m == nil {
			continue
		}
		for _, uid := range m.UIDs() {
			s, _ := m.Get(uid)
			out.Put(uid, s)
		}
	}
	return out
}
