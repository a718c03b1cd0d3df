package model

import "time"

// Status values as reported by the timetable API. The set is open-ended;
// anything the server sends is carried through verbatim.
const (
	StatusRegular   = "REGULAR"
	StatusCancelled = "CANCELLED"
)

// Entry type values. EXAM entries are routed into the exam calendar.
const (
	TypeNormalTeaching = "NORMAL_TEACHING_PERIOD"
	TypeExam           = "EXAM"
)

// Event is the canonical representation of one timetable slot. Events are
// constructed fresh on every sync run and never mutated afterwards.
type Event struct {
	// UID is the sole identity key across sync runs, derived from the
	// source entry ids and the server host.
	UID string

	SubjectShort string
	SubjectLong  string
	Teachers     string // short names joined with ", ", empty when none
	Room         string

	Status string // StatusRegular unless the source says otherwise
	Type   string // TypeNormalTeaching unless the source says otherwise

	// Start / End are localized into the configured timezone.
	Start time.Time
	End   time.Time

	Notes string
}

// IsExam reports whether the event belongs in the exam calendar.
func (e Event) IsExam() bool {
	return e.Type == TypeExam
}

// Snapshot is the per-UID state captured from a materialized calendar and
// compared between consecutive sync runs.
type Snapshot struct {
	Status   string
	Type     string
	Summary  string
	Start    time.Time
	Location string
}

// ChangeRecord reports a status or type transition for one UID that exists
// in both the previous and the current snapshot.
type ChangeRecord struct {
	UID string
	Old Snapshot
	New Snapshot
}

// ChangeSet is the ordered list of changes found in one sync cycle. It is
// ephemeral: computed, handed to the notifier, then discarded.
type ChangeSet []ChangeRecord

// Credential is the immutable session bundle required by the timetable API.
// It is produced by the external SSO login flow and passed explicitly into
// every fetch call.
type Credential struct {
	Server       string // API hostname, e.g. "peleus.webuntis.com"
	BearerToken  string
	TenantID     string
	PersonID     string
	SchoolYearID string
	Username     string

	// Cookies holds the browser session cookies needed for token refresh.
	Cookies []Cookie
}

// Cookie is one browser cookie from the session bundle.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path"`
	Secure bool   `json:"secure"`
}

// WithSchoolYear returns a copy of the credential with the school year set.
// The original value is left untouched.
func (c Credential) WithSchoolYear(id string) Credential {
	c.SchoolYearID = id
	return c
}

// WithBearerToken returns a copy of the credential with a fresh token.
func (c Credential) WithBearerToken(tok string) Credential {
	c.BearerToken = tok
	return c
}
