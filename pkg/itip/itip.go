// Package itip builds iTIP (RFC 5546) scheduling messages from a source
// event: a VCALENDAR string carrying a top-level METHOD and a single
// VEVENT, per the seven scheduling methods clients issue against a
// schedule-outbox collection.
//
// Grounded in the teacher's scheduling message builder (same per-method
// dispatch, same "start from the source event, mutate a copy" shape), but
// expanded to all seven RFC 5546 methods and corrected so REPLY/COUNTER/
// DECLINECOUNTER/REFRESH mirror the request's SEQUENCE instead of bumping
// it.
package itip

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kestrelcal/caldavsync/internal/config"
	"github.com/kestrelcal/caldavsync/pkg/ical"
)

// Method is an iTIP method name (RFC 5546 §1.4).
type Method string

const (
	MethodRequest        Method = "REQUEST"
	MethodReply          Method = "REPLY"
	MethodCancel         Method = "CANCEL"
	MethodAdd            Method = "ADD"
	MethodCounter        Method = "COUNTER"
	MethodDeclineCounter Method = "DECLINECOUNTER"
	MethodRefresh        Method = "REFRESH"
)

// PreconditionError reports that the builder was asked to produce a
// message that would violate an RFC 5546 precondition (e.g. ADD without a
// RECURRENCE-ID).
type PreconditionError struct {
	Method  Method
	Message string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("itip: %s: %s", e.Method, e.Message)
}

// Builder produces iTIP messages. ProdID is used for the generated
// VCALENDAR's PRODID (see internal/config.ICSConfig.BuildProdID).
type Builder struct {
	ProdID string
}

func New(cfg *config.ICSConfig) *Builder {
	prodID := "-//caldavsync//iTIP//EN"
	if cfg != nil {
		prodID = cfg.BuildProdID()
	}
	return &Builder{ProdID: prodID}
}

func (b *Builder) message(method Method, ev *ical.Event) *ical.Document {
	cp := *ev
	return &ical.Document{ProdID: b.ProdID, Method: string(method), Events: []*ical.Event{&cp}}
}

// Request builds a REQUEST: SEQUENCE is bumped by the caller before calling
// this (the builder doesn't know "first send" vs "update" — that's tracked
// by the caller's local store), all attendees are included reset to
// NEEDS-ACTION/RSVP=TRUE, and STATUS is forced to CONFIRMED.
func (b *Builder) Request(ev *ical.Event) ([]byte, error) {
	cp := *ev
	cp.Status = ical.StatusConfirmed
	attendees := make([]ical.Attendee, len(ev.Attendees))
	for i, a := range ev.Attendees {
		a.PartStat = ical.PartStatNeedsAction
		a.RSVP = true
		attendees[i] = a
	}
	cp.Attendees = attendees
	return ical.Generate(b.message(MethodRequest, &cp))
}

// Reply builds a REPLY from a single responder's perspective: SEQUENCE is
// left unchanged (it mirrors the request being replied to, per §4.6), and
// the attendee list is narrowed to just that responder with the partstat
// they supplied.
func (b *Builder) Reply(ev *ical.Event, responder ical.Attendee) ([]byte, error) {
	cp := *ev
	cp.Attendees = []ical.Attendee{responder}
	return ical.Generate(b.message(MethodReply, &cp))
}

// Cancel builds a CANCEL. attendees, when non-nil, narrows the message to
// the subset being removed (a partial cancel); nil means cancel for
// everyone, and STATUS is set to CANCELLED.
func (b *Builder) Cancel(ev *ical.Event, attendees []ical.Attendee) ([]byte, error) {
	cp := *ev
	cp.Status = ical.StatusCancelled
	if attendees != nil {
		cp.Attendees = attendees
	}
	return ical.Generate(b.message(MethodCancel, &cp))
}

// Add builds an ADD for a new instance of a recurring master: ev MUST carry
// a RECURRENCE-ID (RFC 5546 §3.2.3). masterSequence is written onto the
// message in place of ev.Sequence, since ADD preserves the master's
// SEQUENCE rather than the instance's own. RRULE is stripped — an ADD never
// carries one.
func (b *Builder) Add(ev *ical.Event, masterSequence int) ([]byte, error) {
	if ev.RecurrenceID == nil {
		return nil, &PreconditionError{Method: MethodAdd, Message: "RECURRENCE-ID is required"}
	}
	cp := *ev
	cp.Sequence = masterSequence
	cp.RRule = nil
	attendees := make([]ical.Attendee, len(ev.Attendees))
	for i, a := range ev.Attendees {
		a.PartStat = ical.PartStatNeedsAction
		a.RSVP = true
		attendees[i] = a
	}
	cp.Attendees = attendees
	return ical.Generate(b.message(MethodAdd, &cp))
}

// Counter builds a COUNTER: unchanged SEQUENCE, the proposer alone in the
// attendee list with their proposed PARTSTAT (typically TENTATIVE).
func (b *Builder) Counter(ev *ical.Event, proposer ical.Attendee) ([]byte, error) {
	cp := *ev
	cp.Attendees = []ical.Attendee{proposer}
	return ical.Generate(b.message(MethodCounter, &cp))
}

// DeclineCounter builds a DECLINECOUNTER: unchanged SEQUENCE, with the
// decliner (the organizer) as the single ATTENDEE, as a notice back to the
// original proposer.
func (b *Builder) DeclineCounter(ev *ical.Event, decliner ical.Attendee) ([]byte, error) {
	cp := *ev
	cp.Attendees = []ical.Attendee{decliner}
	return ical.Generate(b.message(MethodDeclineCounter, &cp))
}

// Refresh builds a REFRESH: unchanged SEQUENCE, only the requesting
// attendee included, asking the organizer to resend the current event.
func (b *Builder) Refresh(ev *ical.Event, requester ical.Attendee) ([]byte, error) {
	cp := *ev
	cp.Attendees = []ical.Attendee{requester}
	return ical.Generate(b.message(MethodRefresh, &cp))
}

// NewCorrelationID produces a stable id for tracking a round of scheduling
// traffic (e.g. matching a REQUEST to the REPLYs it provokes) — not part of
// the wire format, a host-side convenience.
func NewCorrelationID() string {
	return uuid.NewString()
}

// Parse decodes an iTIP message, returning its method and the single event
// it carries. A message with no METHOD, or with zero or more than one
// VEVENT, is rejected with an error:
// iTIP messages are defined to carry exactly one scheduling object.
func Parse(data []byte) (Method, *ical.Event, error) {
	doc, err := ical.Parse(data, ical.ParseOptions{})
	if err != nil {
		return "", nil, err
	}
	if doc.Method == "" {
		return "", nil, fmt.Errorf("itip: missing METHOD")
	}
	if len(doc.Events) != 1 {
		return "", nil, fmt.Errorf("itip: expected exactly one VEVENT, got %d", len(doc.Events))
	}
	return Method(doc.Method), doc.Events[0], nil
}

// IsSchedulingObject reports whether an event carries both an organizer and
// at least one attendee — the precondition for any of this package's
// methods being meaningful.
func IsSchedulingObject(ev *ical.Event) bool {
	return ev.Organizer != nil && len(ev.Attendees) > 0
}
