package diff

import (
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/require"

	"untiscal/internal/ical"
	"untiscal/internal/model"
)

func snap(status, typ string) model.Snapshot {
	return model.Snapshot{
		Status:  status,
		Type:    typ,
		Summary: "MA",
		Start:   time.Date(2025, 10, 23, 7, 35, 0, 0, time.UTC),
	}
}

func singleton(uid string, s model.Snapshot) *SnapshotMap {
	m := NewSnapshotMap()
	m.Put(uid, s)
	return m
}

func TestDiff_NoOpOnIdenticalMaps(t *testing.T) {
	m := NewSnapshotMap()
	m.Put("u1", snap(model.StatusRegular, model.TypeNormalTeaching))
	m.Put("u2", snap(model.StatusRegular, model.TypeExam))
	require.Empty(t, Diff(m, m))
}

func TestDiff_StatusChange(t *testing.T) {
	oldMap := singleton("u1", snap(model.StatusRegular, model.TypeNormalTeaching))
	newMap := singleton("u1", snap(model.StatusCancelled, model.TypeNormalTeaching))

	changes := Diff(oldMap, newMap)
	require.Len(t, changes, 1)
	require.Equal(t, "u1", changes[0].UID)
	require.Equal(t, model.StatusRegular, changes[0].Old.Status)
	require.Equal(t, model.StatusCancelled, changes[0].New.Status)
}

func TestDiff_TypeChange(t *testing.T) {
	oldMap := singleton("u1", snap(model.StatusRegular, model.TypeNormalTeaching))
	newMap := singleton("u1", snap(model.StatusRegular, model.TypeExam))

	changes := Diff(oldMap, newMap)
	require.Len(t, changes, 1)
	require.Equal(t, model.TypeExam, changes[0].New.Type)
}

func TestDiff_TimeOnlyChangeIsIgnored(t *testing.T) {
	s := snap(model.StatusRegular, model.TypeNormalTeaching)
	moved := s
	moved.Start = s.Start.Add(45 * time.Minute)
	moved.Location = "R301"

	changes := Diff(singleton("u1", s), singleton("u1", moved))
	require.Empty(t, changes)
}

func TestDiff_AddedAndRemovedAreIgnored(t *testing.T) {
	oldMap := NewSnapshotMap()
	oldMap.Put("gone", snap(model.StatusRegular, model.TypeNormalTeaching))
	oldMap.Put("kept", snap(model.StatusRegular, model.TypeNormalTeaching))

	newMap := NewSnapshotMap()
	newMap.Put("kept", snap(model.StatusRegular, model.TypeNormalTeaching))
	newMap.Put("fresh", snap(model.StatusCancelled, model.TypeExam))

	require.Empty(t, Diff(oldMap, newMap))
}

func TestDiff_PreservesNewMapOrder(t *testing.T) {
	oldMap := NewSnapshotMap()
	newMap := NewSnapshotMap()
	for _, uid := range []string{"a", "b", "c", "d"} {
		oldMap.Put(uid, snap(model.StatusRegular, model.TypeNormalTeaching))
	}
	for _, uid := range []string{"d", "b", "a", "c"} {
		newMap.Put(uid, snap(model.StatusCancelled, model.TypeNormalTeaching))
	}

	changes := Diff(oldMap, newMap)
	require.Len(t, changes, 4)
	got := make([]string, 0, 4)
	for _, c := range changes {
		got = append(got, c.UID)
	}
	require.Equal(t, []string{"d", "b", "a", "c"}, got)
}

func TestSnapshotMap_PutReportsDuplicates(t *testing.T) {
	m := NewSnapshotMap()
	require.False(t, m.Put("u1", snap(model.StatusRegular, model.TypeNormalTeaching)))
	require.True(t, m.Put("u1", snap(model.StatusCancelled, model.TypeNormalTeaching)))
	require.Equal(t, 1, m.Len())

	s, ok := m.Get("u1")
	require.True(t, ok)
	require.Equal(t, model.StatusCancelled, s.Status)
}

func TestMerge(t *testing.T) {
	a := singleton("u1", snap(model.StatusRegular, model.TypeNormalTeaching))
	b := singleton("u2", snap(model.StatusRegular, model.TypeExam))

	merged := Merge(a, nil, b)
	require.Equal(t, []string{"u1", "u2"}, merged.UIDs())
}

func TestExtractSnapshots_DiffNoOp(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	events := []model.Event{
		{
			UID:          "101@school.example",
			SubjectShort: "MA",
			SubjectLong:  "Mathematik",
			Type:         model.TypeExam,
			Status:       model.StatusRegular,
			Start:        time.Date(2025, 10, 23, 7, 35, 0, 0, loc),
			End:          time.Date(2025, 10, 23, 8, 20, 0, 0, loc),
		},
		{
			UID:          "102@school.example",
			SubjectShort: "DE",
			Room:         "R204",
			Type:         model.TypeNormalTeaching,
			Status:       model.StatusCancelled,
			Start:        time.Date(2025, 10, 23, 8, 30, 0, 0, loc),
			End:          time.Date(2025, 10, 23, 9, 15, 0, 0, loc),
		},
	}
	opts := ical.BuildOptions{Name: "WebUntis", Timezone: "Europe/Berlin", Now: time.Now().UTC()}
	cal := ical.Build(events, nil, "", opts)

	m := ExtractSnapshots(cal)
	require.Equal(t, 2, m.Len())
	require.Empty(t, Diff(m, m))

	s, ok := m.Get("101@school.example")
	require.True(t, ok)
	require.Equal(t, model.TypeExam, s.Type)
	require.Equal(t, "KA: MA", s.Summary)
	require.Equal(t, string(ics.ObjectStatusConfirmed), s.Status)

	s, ok = m.Get("102@school.example")
	require.True(t, ok)
	require.Equal(t, string(ics.ObjectStatusCancelled), s.Status)
	require.Equal(t, "R204", s.Location)
	require.True(t, s.Start.Equal(events[1].Start))
}

// Artifacts written before X-UNTIS-TYPE existed are classified by the exam
// marker prefix in the summary.
func TestExtractSnapshots_SummaryPrefixFallback(t *testing.T) {
	raw := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//legacy//",
		"BEGIN:VEVENT",
		"UID:legacy-exam@school.example",
		"SUMMARY:KA: MA",
		"DTSTART:20251023T053500Z",
		"DTEND:20251023T062000Z",
		"STATUS:CONFIRMED",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:legacy-lesson@school.example",
		"SUMMARY:DE",
		"DTSTART:20251023T063000Z",
		"DTEND:20251023T071500Z",
		"STATUS:CONFIRMED",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")

	cal, err := ics.ParseCalendar(strings.NewReader(raw))
	require.NoError(t, err)

	m := ExtractSnapshots(cal)
	require.Equal(t, 2, m.Len())

	s, _ := m.Get("legacy-exam@school.example")
	require.Equal(t, model.TypeExam, s.Type)
	s, _ = m.Get("legacy-lesson@school.example")
	require.Equal(t, model.TypeNormalTeaching, s.Type)
}
