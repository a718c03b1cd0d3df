// Package sync orchestrates one timetable sync run: fetch, normalize,
// build, diff, notify, persist.
package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"untiscal/internal/config"
	"untiscal/internal/diff"
	"untiscal/internal/ical"
	appLog "untiscal/internal/log"
	"untiscal/internal/model"
	"untiscal/internal/timetable"
	"untiscal/internal/untis"
)

// Fetcher is the timetable data source. *untis.Client implements it.
type Fetcher interface {
	CurrentSchoolYear(ctx context.Context, cred model.Credential) (string, error)
	Timetable(ctx context.Context, cred model.Credential, start, end time.Time) (*untis.Timetable, error)
}

// Notifier delivers a change-set. *notify.Webhook implements it.
type Notifier interface {
	Notify(ctx context.Context, changes model.ChangeSet) error
}

// Result summarizes one completed sync run.
type Result struct {
	RanAt      time.Time
	Events     int
	MainEvents int
	ExamEvents int
	Changes    int
	Notified   bool
}

// Runner executes sync runs. Runs must not overlap on the same artifact
// paths; the scheduler in cmd enforces that.
type Runner struct {
	cfg      *config.Config
	fetcher  Fetcher
	notifier Notifier // nil when no webhook is configured
	loc      *time.Location
	now      func() time.Time

	mu   sync.Mutex
	last *Result
}

// NewRunner wires a Runner from configuration. notifier may be nil.
func NewRunner(cfg *config.Config, fetcher Fetcher, notifier Notifier) (*Runner, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	return &Runner{
		cfg:      cfg,
		fetcher:  fetcher,
		notifier: notifier,
		loc:      loc,
		now:      time.Now,
	}, nil
}

// Run performs one sync cycle. It either completes (artifacts written,
// optional notification attempted) or fails with the cause; a failed
// notification degrades to a warning, not a failure.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	cred, err := untis.LoadSession(r.cfg.SessionPath, r.cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if syID, err := r.fetcher.CurrentSchoolYear(ctx, cred); err != nil {
		// The timetable endpoint may still work without the header.
		appLog.Warn("school year lookup failed", "err", err)
	} else {
		cred = cred.WithSchoolYear(syID)
	}

	start := r.now().In(r.loc)
	end := start.AddDate(0, 0, 7*r.cfg.WeeksAhead)

	doc, err := r.fetcher.Timetable(ctx, cred, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch timetable: %w", err)
	}

	events := timetable.NormalizeAll(doc, r.cfg.Server, r.loc)

	name := "WebUntis"
	if cred.Username != "" {
		name += " - " + cred.Username
	}
	opts := ical.BuildOptions{
		Name:     name,
		Timezone: r.cfg.Timezone,
		Now:      start,
	}

	mainCal := ical.Build(events, ical.NotExam, "", opts)
	examCal := ical.Build(events, ical.IsExam, "Exams", opts)

	// Prior state: missing or corrupt artifacts degrade to empty maps.
	oldMain, _ := ical.Load(r.cfg.CalendarPath)
	oldExam, _ := ical.Load(r.cfg.ExamCalendarPath)
	oldMap := diff.Merge(diff.ExtractSnapshots(oldMain), diff.ExtractSnapshots(oldExam))
	newMap := diff.Merge(diff.ExtractSnapshots(mainCal), diff.ExtractSnapshots(examCal))

	changes := diff.Diff(oldMap, newMap)

	if err := ical.Save(r.cfg.CalendarPath, mainCal); err != nil {
		return nil, fmt.Errorf("persist calendar: %w", err)
	}
	if err := ical.Save(r.cfg.ExamCalendarPath, examCal); err != nil {
		return nil, fmt.Errorf("persist exam calendar: %w", err)
	}

	res := &Result{
		RanAt:      start,
		Events:     len(events),
		MainEvents: len(mainCal.Events()),
		ExamEvents: len(examCal.Events()),
		Changes:    len(changes),
	}

	if r.notifier != nil && len(changes) > 0 {
		if err := r.notifier.Notify(ctx, changes); err != nil {
			// Artifacts are already persisted; a lost notification does
			// not fail the run.
			appLog.Warn("change notification failed", "err", err, "changes", len(changes))
		} else {
			res.Notified = true
		}
	}

	appLog.Info("sync completed",
		"events", res.Events,
		"main", res.MainEvents,
		"exams", res.ExamEvents,
		"changes", res.Changes,
		"notified", res.Notified,
	)

	r.mu.Lock()
	r.last = res
	r.mu.Unlock()

	return res, nil
}

// LastResult returns the most recent completed run, if any.
func (r *Runner) LastResult() (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return Result{}, false
	}
	return *r.last, true
}
