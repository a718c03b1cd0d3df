package untis

// Raw timetable document as returned by the REST API in grid format
// (format=4). The core treats it as read-only input.

// Timetable is the top-level response of the timetable entries endpoint.
type Timetable struct {
	Days []Day `json:"days"`
}

// Day groups the grid entries of a single date.
type Day struct {
	Date        string     `json:"date"`
	GridEntries []RawEntry `json:"gridEntries"`
}

// RawEntry is one scheduled timetable slot. position1..3 carry role-tagged
// resource references: teachers, subjects and rooms respectively.
type RawEntry struct {
	Duration  Duration   `json:"duration"`
	Position1 []Resource `json:"position1"`
	Position2 []Resource `json:"position2"`
	Position3 []Resource `json:"position3"`
	Status    string     `json:"status"`
	Type      string     `json:"type"`
	NotesAll  string     `json:"notesAll"`
	IDs       []int64    `json:"ids"`
}

// Duration holds naive local timestamps, e.g. "2025-10-23T07:35".
type Duration struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Resource is a role-tagged reference whose Current snapshot may be absent
// on malformed or partially-substituted entries.
type Resource struct {
	Current *ResourceRef `json:"current"`
}

// ResourceRef is the display snapshot of a referenced resource.
type ResourceRef struct {
	ShortName string `json:"shortName"`
	LongName  string `json:"longName"`
}

// SchoolYear is one entry of the school years endpoint.
type SchoolYear struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	IsCurrent bool   `json:"isCurrent"`
}

// EntryCount returns the total number of grid entries across all days.
func (t *Timetable) EntryCount() int {
	n := 0
	for _, d := range t.Days {
		n += len(d.GridEntries)
	}
	return n
}
