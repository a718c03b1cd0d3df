package timetable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"untiscal/internal/model"
	"untiscal/internal/untis"
)

const testServer = "school.example"

func berlin(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	return loc
}

func examEntry() untis.RawEntry {
	return untis.RawEntry{
		Duration: untis.Duration{Start: "2025-10-23T07:35", End: "2025-10-23T08:20"},
		Position2: []untis.Resource{
			{Current: &untis.ResourceRef{ShortName: "MA", LongName: "Mathematik"}},
		},
		Type: model.TypeExam,
		IDs:  []int64{101},
	}
}

func TestNormalize_ExamScenario(t *testing.T) {
	loc := berlin(t)

	ev, warnings, ok := Normalize(examEntry(), testServer, loc)
	require.True(t, ok)
	require.Empty(t, warnings)

	require.Equal(t, "101@school.example", ev.UID)
	require.Equal(t, "MA", ev.SubjectShort)
	require.Equal(t, "Mathematik", ev.SubjectLong)
	require.Equal(t, model.TypeExam, ev.Type)
	require.Equal(t, model.StatusRegular, ev.Status)
	require.Empty(t, ev.Teachers)
	require.Empty(t, ev.Room)
	require.True(t, ev.IsExam())

	want := time.Date(2025, 10, 23, 7, 35, 0, 0, loc)
	require.True(t, ev.Start.Equal(want))
	require.True(t, ev.End.Equal(time.Date(2025, 10, 23, 8, 20, 0, 0, loc)))
}

func TestNormalize_MissingDurationIsSkipped(t *testing.T) {
	loc := berlin(t)

	cases := map[string]untis.Duration{
		"no duration": {},
		"no start":    {End: "2025-10-23T08:20"},
		"no end":      {Start: "2025-10-23T07:35"},
	}
	for name, dur := range cases {
		t.Run(name, func(t *testing.T) {
			raw := examEntry()
			raw.Duration = dur
			_, _, ok := Normalize(raw, testServer, loc)
			require.False(t, ok)
		})
	}
}

func TestNormalize_DefaultsOnMissingSnapshots(t *testing.T) {
	loc := berlin(t)

	raw := untis.RawEntry{
		Duration: untis.Duration{Start: "2025-10-23T07:35", End: "2025-10-23T08:20"},
		// position1 present but without current snapshots must not crash.
		Position1: []untis.Resource{{Current: nil}, {Current: &untis.ResourceRef{}}},
		Position3: []untis.Resource{{Current: nil}},
		IDs:       []int64{7, 8},
	}

	ev, warnings, ok := Normalize(raw, testServer, loc)
	require.True(t, ok)
	require.Contains(t, warnings, "missing subject")

	require.Equal(t, "Unknown", ev.SubjectShort)
	require.Equal(t, "Unknown", ev.SubjectLong)
	require.Empty(t, ev.Teachers)
	require.Empty(t, ev.Room)
	require.Equal(t, model.StatusRegular, ev.Status)
	require.Equal(t, model.TypeNormalTeaching, ev.Type)
	require.Equal(t, "7-8@school.example", ev.UID)
}

func TestNormalize_TeachersAndRoom(t *testing.T) {
	loc := berlin(t)

	raw := examEntry()
	raw.Position1 = []untis.Resource{
		{Current: &untis.ResourceRef{ShortName: "MU"}},
		{Current: nil}, // broken snapshot is skipped
		{Current: &untis.ResourceRef{ShortName: "SCH"}},
	}
	raw.Position3 = []untis.Resource{{Current: &untis.ResourceRef{ShortName: "R204"}}}
	raw.Status = model.StatusCancelled
	raw.NotesAll = "bring calculators"

	ev, _, ok := Normalize(raw, testServer, loc)
	require.True(t, ok)
	require.Equal(t, "MU, SCH", ev.Teachers)
	require.Equal(t, "R204", ev.Room)
	require.Equal(t, model.StatusCancelled, ev.Status)
	require.Equal(t, "bring calculators", ev.Notes)
}

func TestNormalize_EmptyIDsWarns(t *testing.T) {
	loc := berlin(t)

	raw := examEntry()
	raw.IDs = nil

	ev, warnings, ok := Normalize(raw, testServer, loc)
	require.True(t, ok)
	require.Equal(t, "@school.example", ev.UID)
	require.NotEmpty(t, warnings)
}

func TestUID_Stability(t *testing.T) {
	require.Equal(t, UID([]int64{101}, testServer), UID([]int64{101}, testServer))
	require.NotEqual(t, UID([]int64{101}, testServer), UID([]int64{102}, testServer))
	require.NotEqual(t, UID([]int64{101}, "a.example"), UID([]int64{101}, "b.example"))

	// Same id set in different order is the same identity.
	require.Equal(t, "3-12-101@school.example", UID([]int64{101, 3, 12}, testServer))
	require.Equal(t, UID([]int64{101, 3, 12}, testServer), UID([]int64{12, 101, 3}, testServer))
}

func TestNormalizeAll_OrderAndFiltering(t *testing.T) {
	loc := berlin(t)

	first := examEntry()
	second := examEntry()
	second.IDs = []int64{102}
	second.Type = ""
	skipped := examEntry()
	skipped.Duration = untis.Duration{}

	doc := &untis.Timetable{
		Days: []untis.Day{
			{Date: "2025-10-23", GridEntries: []untis.RawEntry{first, skipped}},
			{Date: "2025-10-24", GridEntries: []untis.RawEntry{second}},
		},
	}

	events := NormalizeAll(doc, testServer, loc)
	require.Len(t, events, 2)
	require.Equal(t, "101@school.example", events[0].UID)
	require.Equal(t, "102@school.example", events[1].UID)
	require.Equal(t, model.TypeNormalTeaching, events[1].Type)
}

func TestNormalizeAll_NilDocument(t *testing.T) {
	require.Empty(t, NormalizeAll(nil, testServer, berlin(t)))
}
