// Package timetable normalizes raw grid entries into canonical events.
package timetable

import (
	"slices"
	"strconv"
	"strings"
	"time"

	appLog "untiscal/internal/log"
	"untiscal/internal/model"
	"untiscal/internal/untis"
)

const unknownSubject = "Unknown"

// Naive local timestamp layouts used by the timetable API.
var durationLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
}

// Normalize maps one raw grid entry into an Event localized into loc.
//
// ok is false when the entry lacks a start or end time; that is a filtering
// rule, not an error. Malformed nested structures never abort normalization:
// missing resource snapshots fall back to defaults and are reported in the
// warnings slice so callers (and tests) can observe the degradation.
func Normalize(raw untis.RawEntry, serverHost string, loc *time.Location) (model.Event, []string, bool) {
	var warnings []string

	if raw.Duration.Start == "" || raw.Duration.End == "" {
		return model.Event{}, nil, false
	}

	start, err := parseLocal(raw.Duration.Start, loc)
	if err != nil {
		warnings = append(warnings, "unparseable start '"+raw.Duration.Start+"'")
		return model.Event{}, warnings, false
	}
	end, err := parseLocal(raw.Duration.End, loc)
	if err != nil {
		warnings = append(warnings, "unparseable end '"+raw.Duration.End+"'")
		return model.Event{}, warnings, false
	}

	ev := model.Event{
		Start:  start,
		End:    end,
		Status: raw.Status,
		Type:   raw.Type,
		Notes:  raw.NotesAll,
	}
	if ev.Status == "" {
		ev.Status = model.StatusRegular
	}
	if ev.Type == "" {
		ev.Type = model.TypeNormalTeaching
	}

	// Subject from position2; both names default to "Unknown" when the
	// resource or its current snapshot is absent.
	if ref := firstRef(raw.Position2); ref != nil {
		ev.SubjectShort = ref.ShortName
		ev.SubjectLong = ref.LongName
		if ev.SubjectShort == "" {
			ev.SubjectShort = unknownSubject
			warnings = append(warnings, "subject snapshot without short name")
		}
		if ev.SubjectLong == "" {
			ev.SubjectLong = ev.SubjectShort
		}
	} else {
		ev.SubjectShort = unknownSubject
		ev.SubjectLong = unknownSubject
		warnings = append(warnings, "missing subject")
	}

	// Teachers: every position1 element with a usable snapshot.
	var teachers []string
	for _, res := range raw.Position1 {
		if res.Current != nil && res.Current.ShortName != "" {
			teachers = append(teachers, res.Current.ShortName)
		}
	}
	ev.Teachers = strings.Join(teachers, ", ")

	if ref := firstRef(raw.Position3); ref != nil {
		ev.Room = ref.ShortName
	}

	ev.UID = UID(raw.IDs, serverHost)
	if len(raw.IDs) == 0 {
		// A degenerate UID collides with every other id-less entry and
		// corrupts later diffing.
		warnings = append(warnings, "entry has no ids, uid degenerates to '"+ev.UID+"'")
	}

	return ev, warnings, true
}

// NormalizeAll walks the document in source order and returns the events
// that survive filtering, preserving day and entry order.
func NormalizeAll(doc *untis.Timetable, serverHost string, loc *time.Location) []model.Event {
	if doc == nil {
		return nil
	}

	events := make([]model.Event, 0, doc.EntryCount())
	skipped := 0
	for _, day := range doc.Days {
		for _, raw := range day.GridEntries {
			ev, warnings, ok := Normalize(raw, serverHost, loc)
			for _, w := range warnings {
				appLog.Warn("normalize: "+w, "date", day.Date)
			}
			if !ok {
				skipped++
				continue
			}
			events = append(events, ev)
		}
	}
	if skipped > 0 {
		appLog.Info("normalize: entries without time span skipped", "skipped", skipped)
	}
	return events
}

// UID derives the stable identity key: ids sorted and joined with "-",
// suffixed with "@" and the server host. Sorting makes the UID a function
// of the id set, independent of the order the server happens to emit.
func UID(ids []int64, serverHost string) string {
	sorted := append([]int64(nil), ids...)
	slices.Sort(sorted)
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, "-") + "@" + serverHost
}

func firstRef(resources []untis.Resource) *untis.ResourceRef {
	if len(resources) == 0 || resources[0].Current == nil {
		return nil
	}
	return resources[0].Current
}

func parseLocal(s string, loc *time.Location) (time.Time, error) {
	var lastErr error
	for _, layout := range durationLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
