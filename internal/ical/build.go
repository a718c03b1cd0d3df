// Package ical materializes normalized events as iCalendar artifacts and
// reads them back for diffing.
package ical

import (
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"untiscal/internal/model"
)

// ExamMarker is the fixed summary prefix that distinguishes exam events.
const ExamMarker = "KA: "

// PropEntryType is the custom property carrying the source entry type in
// the artifact, so change detection does not have to infer it from the
// summary text.
const PropEntryType = "X-UNTIS-TYPE"

const prodID = "-//untiscal//golang//"

// BuildOptions carries the inputs that are fixed per sync run.
type BuildOptions struct {
	// Name is the base calendar name, e.g. "WebUntis - <username>".
	Name string
	// Timezone is the IANA zone advertised via X-WR-TIMEZONE.
	Timezone string
	// Now is the build time stamped into DTSTAMP/CREATED/LAST-MODIFIED.
	// It is injected so two builds from the same inputs and the same
	// build time serialize to identical bytes.
	Now time.Time
}

// IsExam selects events for the exam calendar.
func IsExam(ev model.Event) bool { return ev.IsExam() }

// NotExam selects events for the main calendar.
func NotExam(ev model.Event) bool { return !ev.IsExam() }

// Build assembles a calendar from the events matching pred, in input order.
// Every field except the bookkeeping timestamps is a pure function of the
// event list, so regeneration is idempotent.
func Build(events []model.Event, pred func(model.Event) bool, nameSuffix string, opts BuildOptions) *ics.Calendar {
	cal := ics.NewCalendar()
	cal.SetProductId(prodID)
	cal.SetVersion("2.0")
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ics.MethodPublish)

	name := opts.Name
	if nameSuffix != "" {
		name += " - " + nameSuffix
	}
	cal.SetXWRCalName(name)
	if opts.Timezone != "" {
		cal.SetXWRTimezone(opts.Timezone)
	}

	for _, ev := range events {
		if pred != nil && !pred(ev) {
			continue
		}
		addEvent(cal, ev, opts.Now)
	}

	return cal
}

func addEvent(cal *ics.Calendar, ev model.Event, now time.Time) {
	ve := cal.AddEvent(ev.UID)

	summary := ev.SubjectShort
	if ev.IsExam() {
		summary = ExamMarker + summary
	}
	ve.SetSummary(summary)

	if desc := describe(ev); desc != "" {
		ve.SetDescription(desc)
	}

	ve.SetStartAt(ev.Start)
	ve.SetEndAt(ev.End)

	if ev.Room != "" {
		ve.SetLocation(ev.Room)
	}

	if ev.Status == model.StatusCancelled {
		ve.SetStatus(ics.ObjectStatusCancelled)
	} else {
		ve.SetStatus(ics.ObjectStatusConfirmed)
	}

	ve.AddProperty(ics.ComponentPropertyCategories, ev.SubjectShort+",WebUntis")
	ve.AddProperty(ics.ComponentProperty(PropEntryType), ev.Type)

	ve.SetDtStampTime(now)
	ve.SetCreatedTime(now)
	ve.SetModifiedAt(now)
}

// describe assembles the description body in fixed field order: subject,
// teacher, room, status, notes. Absent fields are omitted; the long subject
// only appears when it adds information over the short name.
func describe(ev model.Event) string {
	var lines []string
	if ev.SubjectLong != "" && ev.SubjectLong != ev.SubjectShort {
		lines = append(lines, "Subject: "+ev.SubjectLong)
	}
	if ev.Teachers != "" {
		lines = append(lines, "Teacher: "+ev.Teachers)
	}
	if ev.Room != "" {
		lines = append(lines, "Room: "+ev.Room)
	}
	lines = append(lines, "Status: "+ev.Status)
	if ev.Notes != "" {
		lines = append(lines, "Notes: "+ev.Notes)
	}
	// RFC 5545 TEXT values carry newlines in escaped form; the library
	// serializes property values verbatim.
	return strings.Join(lines, "\\n")
}
