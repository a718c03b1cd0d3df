package diff

import (
	"strings"

	ics "github.com/arran4/golang-ical"

	"untiscal/internal/ical"
	appLog "untiscal/internal/log"
	"untiscal/internal/model"
)

// ExtractSnapshots walks every event of a materialized calendar and keys
// its snapshot by UID. Events without a UID are skipped with a warning, as
// are duplicates (last write wins); both indicate a degenerate UID upstream.
//
// The entry type is read from the X-UNTIS-TYPE property. Artifacts written
// before that property existed fall back to classification by the exam
// marker prefix in the summary.
func ExtractSnapshots(cal *ics.Calendar) *SnapshotMap {
	out := NewSnapshotMap()
	if cal == nil {
		return out
	}

	for _, ve := range cal.Events() {
		uidProp := ve.GetProperty(ics.ComponentPropertyUniqueId)
		if uidProp == nil || uidProp.Value == "" {
			appLog.Warn("extract: event without UID skipped")
			continue
		}
		uid := uidProp.Value

		var snap model.Snapshot

		if p := ve.GetProperty(ics.ComponentPropertySummary); p != nil {
			snap.Summary = p.Value
		}
		if p := ve.GetProperty(ics.ComponentPropertyStatus); p != nil {
			snap.Status = p.Value
		}
		if p := ve.GetProperty(ics.ComponentPropertyLocation); p != nil {
			snap.Location = p.Value
		}
		if start, err := ve.GetStartAt(); err == nil {
			snap.Start = start
		}

		snap.Type = entryType(ve, snap.Summary)

		if out.Put(uid, snap) {
			appLog.Warn("extract: duplicate UID, keeping last occurrence", "uid", uid)
		}
	}

	return out
}

func entryType(ve *ics.VEvent, summary string) string {
	if p := ve.GetProperty(ics.ComponentProperty(ical.PropEntryType)); p != nil && p.Value != "" {
		return p.Value
	}
	if strings.HasPrefix(summary, ical.ExamMarker) {
		return model.TypeExam
	}
	return model.TypeNormalTeaching
}
