package ical

// Classification is the CLASS property (RFC 5545 §3.8.1.3).
type Classification string

const (
	ClassPublic       Classification = "PUBLIC"
	ClassPrivate      Classification = "PRIVATE"
	ClassConfidential Classification = "CONFIDENTIAL"
)

// Transparency is the TRANSP property (§3.8.2.7).
type Transparency string

const (
	TransparencyOpaque      Transparency = "OPAQUE"
	TransparencyTransparent Transparency = "TRANSPARENT"
)

// Status is the STATUS property. The legal value set differs between VEVENT,
// VTODO and VJOURNAL; callers are expected to only set values valid for the
// component they're attached to.
type Status string

const (
	StatusTentative  Status = "TENTATIVE"
	StatusConfirmed  Status = "CONFIRMED"
	StatusCancelled  Status = "CANCELLED"
	StatusNeedsAct   Status = "NEEDS-ACTION"
	StatusInProgress Status = "IN-PROCESS"
	StatusCompleted  Status = "COMPLETED"
	StatusDraft      Status = "DRAFT"
	StatusFinal      Status = "FINAL"
)

// PartStat is the PARTSTAT attendee parameter (§3.2.12).
type PartStat string

const (
	PartStatNeedsAction PartStat = "NEEDS-ACTION"
	PartStatAccepted    PartStat = "ACCEPTED"
	PartStatDeclined    PartStat = "DECLINED"
	PartStatTentative   PartStat = "TENTATIVE"
	PartStatDelegated   PartStat = "DELEGATED"
	PartStatCompleted   PartStat = "COMPLETED"
	PartStatInProcess   PartStat = "IN-PROCESS"
)

// Role is the ROLE attendee parameter (§3.2.16).
type Role string

const (
	RoleChair          Role = "CHAIR"
	RoleReqParticipant Role = "REQ-PARTICIPANT"
	RoleOptParticipant Role = "OPT-PARTICIPANT"
	RoleNonParticipant Role = "NON-PARTICIPANT"
)

// CUType is the CUTYPE attendee/organizer parameter (§3.2.3).
type CUType string

const (
	CUTypeIndividual CUType = "INDIVIDUAL"
	CUTypeGroup      CUType = "GROUP"
	CUTypeResource   CUType = "RESOURCE"
	CUTypeRoom       CUType = "ROOM"
	CUTypeUnknown    CUType = "UNKNOWN"
)

// Organizer is the ORGANIZER property: a calendar-user address plus the
// common presentation/delegation parameters.
type Organizer struct {
	CalAddress string // "mailto:..." or other scheme, verbatim
	CN         string
	SentBy     string
	Language   string
}

// Attendee is one ATTENDEE property entry.
type Attendee struct {
	CalAddress   string
	CN           string
	Role         Role
	PartStat     PartStat
	CUType       CUType
	RSVP         bool
	DelegatedTo  []string
	DelegatedFrom []string
	Member       []string
	SentBy       string
}

// AlarmAction is the ACTION property of a VALARM.
type AlarmAction string

const (
	AlarmActionAudio   AlarmAction = "AUDIO"
	AlarmActionDisplay AlarmAction = "DISPLAY"
	AlarmActionEmail   AlarmAction = "EMAIL"
)

// Alarm is a VALARM subcomponent attached to an event or to-do.
type Alarm struct {
	Action      AlarmAction
	Trigger     AlarmTrigger
	Description string
	Summary     string
	Attendees   []Attendee
	RepeatCount int
	Duration    *SignedDuration // required if RepeatCount > 0
}

// AlarmTrigger is either a signed offset from the parent's start/end (the
// common case) or an absolute point in time (RFC 5545 §3.8.6.3, VALUE=DATE-TIME).
type AlarmTrigger struct {
	Offset       *SignedDuration
	RelatedEnd   bool // RELATED=END instead of the default RELATED=START
	Absolute     *DateTime
}

// Event is the decoded, domain-level form of a VEVENT (and, transitively,
// one RECURRENCE-ID exception standing in for an occurrence override).
type Event struct {
	UID            string
	RecurrenceID   *DateTime
	Sequence       int
	DTStamp        *DateTime
	Created        *DateTime
	LastModified   *DateTime

	Summary     string
	Description string
	Location    string
	URL         string
	Categories  []string
	Class       Classification
	Status      Status
	Transparency Transparency
	Priority    int

	Start    DateTime
	End      *DateTime
	Duration *SignedDuration // mutually exclusive with End; parser never sets both

	RRule   *RecurrenceRule
	RDates  []DateTime
	ExDates []DateTime

	Organizer *Organizer
	Attendees []Attendee

	Alarms []Alarm

	// RawProperties holds any component-level property this codec does not
	// model explicitly (X- extensions, IMAGE, CONFERENCE, etc.), keyed by
	// property name, preserved verbatim for round-trip fidelity.
	RawProperties map[string][]RawProp
}

// Todo is the decoded form of a VTODO.
type Todo struct {
	UID          string
	RecurrenceID *DateTime
	Sequence     int
	DTStamp      *DateTime
	Created      *DateTime
	LastModified *DateTime

	Summary     string
	Description string
	Location    string
	Class       Classification
	Status      Status
	Priority    int
	PercentComplete int

	Start    *DateTime
	Due      *DateTime
	Duration *SignedDuration
	Completed *DateTime

	RRule   *RecurrenceRule
	RDates  []DateTime
	ExDates []DateTime

	Organizer *Organizer
	Attendees []Attendee

	Alarms []Alarm

	RawProperties map[string][]RawProp
}

// Journal is the decoded form of a VJOURNAL.
type Journal struct {
	UID          string
	RecurrenceID *DateTime
	Sequence     int
	DTStamp      *DateTime
	Created      *DateTime
	LastModified *DateTime

	Summary     string
	Description string
	Class       Classification
	Status      Status

	Start DateTime

	RRule   *RecurrenceRule
	RDates  []DateTime
	ExDates []DateTime

	Organizer *Organizer
	Attendees []Attendee

	RawProperties map[string][]RawProp
}

// FreeBusy is the decoded form of a VFREEBUSY.
type FreeBusy struct {
	UID       string
	DTStamp   *DateTime
	Start     DateTime
	End       DateTime
	Organizer *Organizer
	Busy      []BusyInterval
}

// BusyInterval is one FREEBUSY property value.
type BusyInterval struct {
	Start, End DateTime
	Type       string // BUSY, BUSY-TENTATIVE, BUSY-UNAVAILABLE, FREE
}

// RawProp is a verbatim, unmodeled property: the raw (still wire-escaped)
// value plus its parameters, preserved so a parse→generate round trip doesn't silently
// drop data the codec doesn't understand.
type RawProp struct {
	Value  string
	Params map[string][]string
}
