package itip

import (
	"strings"
	"testing"
	"time"

	"github.com/kestrelcal/caldavsync/pkg/ical"
)

func sampleEvent() *ical.Event {
	return &ical.Event{
		UID:      "evt-42@example.com",
		Sequence: 42,
		Start:    ical.NewUTC(time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)),
		Summary:  "Budget review",
		Status:   ical.StatusConfirmed,
		Organizer: &ical.Organizer{
			CalAddress: "mailto:organizer@example.com",
		},
		Attendees: []ical.Attendee{
			{CalAddress: "mailto:alice@example.com", PartStat: ical.PartStatNeedsAction, RSVP: true},
			{CalAddress: "mailto:bob@example.com", PartStat: ical.PartStatNeedsAction, RSVP: true},
		},
	}
}

func mustGenerate(t *testing.T, body []byte, err error) string {
	t.Helper()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return string(body)
}

func countAttendeeLines(ics string) int {
	n := 0
	for _, line := range strings.Split(ics, "\r\n") {
		if strings.HasPrefix(line, "ATTENDEE") {
			n++
		}
	}
	return n
}

// S6: ITipBuilder.Reply preserves SEQUENCE, includes exactly one ATTENDEE
// line (the responder), and no other attendees (spec.md §8.5 S6, §4.6).
func TestReplyPreservesSequenceAndNarrowsToResponder(t *testing.T) {
	b := New(nil)
	ev := sampleEvent()
	responder := ical.Attendee{CalAddress: "mailto:alice@example.com", PartStat: ical.PartStatAccepted}

	out := mustGenerate(t, b.Reply(ev, responder))

	if !strings.Contains(out, "METHOD:REPLY") {
		t.Errorf("missing METHOD:REPLY: %s", out)
	}
	if !strings.Contains(out, "SEQUENCE:42") {
		t.Errorf("SEQUENCE not preserved at 42: %s", out)
	}
	if n := countAttendeeLines(out); n != 1 {
		t.Fatalf("expected exactly one ATTENDEE line, got %d:\n%s", n, out)
	}
	if !strings.Contains(out, "mailto:alice@example.com") {
		t.Errorf("missing responder: %s", out)
	}
	if strings.Contains(out, "mailto:bob@example.com") {
		t.Errorf("unexpected second attendee leaked into REPLY: %s", out)
	}
}

// REQUEST bumps SEQUENCE at the caller's discretion (the builder only
// reflects whatever ev.Sequence already is), resets every attendee to
// NEEDS-ACTION/RSVP=TRUE, and forces STATUS:CONFIRMED.
func TestRequestResetsAttendeesAndForcesConfirmed(t *testing.T) {
	b := New(nil)
	ev := sampleEvent()
	ev.Attendees[0].PartStat = ical.PartStatAccepted
	ev.Attendees[0].RSVP = false
	ev.Status = ical.StatusTentative

	out := mustGenerate(t, b.Request(ev))

	if !strings.Contains(out, "METHOD:REQUEST") {
		t.Errorf("missing METHOD:REQUEST: %s", out)
	}
	if !strings.Contains(out, "STATUS:CONFIRMED") {
		t.Errorf("STATUS not forced to CONFIRMED: %s", out)
	}
	if n := countAttendeeLines(out); n != 2 {
		t.Fatalf("expected both attendees in REQUEST, got %d:\n%s", n, out)
	}
	if strings.Contains(out, "PARTSTAT=ACCEPTED") {
		t.Errorf("attendee PARTSTAT not reset to NEEDS-ACTION: %s", out)
	}
	if !strings.Contains(out, "RSVP=TRUE") {
		t.Errorf("RSVP not forced to TRUE: %s", out)
	}
}

// CANCEL sets STATUS:CANCELLED and, when given no explicit subset, keeps
// every attendee (a full cancellation).
func TestCancelFullSetsCancelledStatus(t *testing.T) {
	b := New(nil)
	ev := sampleEvent()

	out := mustGenerate(t, b.Cancel(ev, nil))

	if !strings.Contains(out, "METHOD:CANCEL") {
		t.Errorf("missing METHOD:CANCEL: %s", out)
	}
	if !strings.Contains(out, "STATUS:CANCELLED") {
		t.Errorf("missing STATUS:CANCELLED: %s", out)
	}
	if n := countAttendeeLines(out); n != 2 {
		t.Errorf("full cancel should keep both attendees, got %d", n)
	}
}

// CANCEL with an explicit subset narrows the attendee list to that subset
// (a partial cancel) while still marking STATUS:CANCELLED.
func TestCancelPartialNarrowsAttendees(t *testing.T) {
	b := New(nil)
	ev := sampleEvent()
	subset := []ical.Attendee{{CalAddress: "mailto:bob@example.com"}}

	out := mustGenerate(t, b.Cancel(ev, subset))

	if n := countAttendeeLines(out); n != 1 {
		t.Fatalf("expected exactly one attendee for partial cancel, got %d:\n%s", n, out)
	}
	if !strings.Contains(out, "mailto:bob@example.com") {
		t.Errorf("missing the retained attendee: %s", out)
	}
}

// ADD without a RECURRENCE-ID is rejected as a precondition failure (§4.6).
func TestAddRejectsMissingRecurrenceID(t *testing.T) {
	b := New(nil)
	ev := sampleEvent()
	ev.RecurrenceID = nil

	_, err := b.Add(ev, 3)
	if err == nil {
		t.Fatal("expected PreconditionError for ADD without RECURRENCE-ID")
	}
	var preErr *PreconditionError
	if !asPreconditionError(err, &preErr) {
		t.Fatalf("expected *PreconditionError, got %T: %v", err, err)
	}
	if preErr.Method != MethodAdd {
		t.Errorf("PreconditionError.Method = %v, want ADD", preErr.Method)
	}
}

func asPreconditionError(err error, target **PreconditionError) bool {
	pe, ok := err.(*PreconditionError)
	if ok {
		*target = pe
	}
	return ok
}

// ADD preserves the master's SEQUENCE (not the instance's own), strips
// RRULE, and resets every attendee to NEEDS-ACTION/RSVP=TRUE (§4.6).
func TestAddPreservesMasterSequenceAndStripsRRule(t *testing.T) {
	b := New(nil)
	ev := sampleEvent()
	recid := ical.NewUTC(time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC))
	ev.RecurrenceID = &recid
	ev.Sequence = 7
	ev.RRule = &ical.RecurrenceRule{Freq: ical.Weekly}

	out := mustGenerate(t, b.Add(ev, 3))

	if !strings.Contains(out, "METHOD:ADD") {
		t.Errorf("missing METHOD:ADD: %s", out)
	}
	if !strings.Contains(out, "SEQUENCE:3") {
		t.Errorf("expected master SEQUENCE:3, got:\n%s", out)
	}
	if strings.Contains(out, "RRULE") {
		t.Errorf("RRULE must be stripped from ADD: %s", out)
	}
	if n := countAttendeeLines(out); n != 2 {
		t.Errorf("expected both attendees reset, got %d", n)
	}
}

// COUNTER leaves SEQUENCE unchanged and narrows to the proposer alone with
// their proposed PARTSTAT.
func TestCounterNarrowsToProposer(t *testing.T) {
	b := New(nil)
	ev := sampleEvent()
	proposer := ical.Attendee{CalAddress: "mailto:bob@example.com", PartStat: ical.PartStatTentative}

	out := mustGenerate(t, b.Counter(ev, proposer))

	if !strings.Contains(out, "METHOD:COUNTER") {
		t.Errorf("missing METHOD:COUNTER: %s", out)
	}
	if !strings.Contains(out, "SEQUENCE:42") {
		t.Errorf("SEQUENCE not preserved: %s", out)
	}
	if n := countAttendeeLines(out); n != 1 {
		t.Fatalf("expected exactly one attendee, got %d:\n%s", n, out)
	}
	if !strings.Contains(out, "PARTSTAT=TENTATIVE") {
		t.Errorf("missing proposer PARTSTAT: %s", out)
	}
}

// DECLINECOUNTER leaves SEQUENCE unchanged and narrows to the decliner alone.
func TestDeclineCounterNarrowsToDecliner(t *testing.T) {
	b := New(nil)
	ev := sampleEvent()
	decliner := ical.Attendee{CalAddress: "mailto:organizer@example.com"}

	out := mustGenerate(t, b.DeclineCounter(ev, decliner))

	if !strings.Contains(out, "METHOD:DECLINECOUNTER") {
		t.Errorf("missing METHOD:DECLINECOUNTER: %s", out)
	}
	if !strings.Contains(out, "SEQUENCE:42") {
		t.Errorf("SEQUENCE not preserved: %s", out)
	}
	if n := countAttendeeLines(out); n != 1 {
		t.Errorf("expected exactly one attendee, got %d", n)
	}
}

// REFRESH leaves SEQUENCE unchanged and narrows to the requesting attendee.
func TestRefreshNarrowsToRequester(t *testing.T) {
	b := New(nil)
	ev := sampleEvent()
	requester := ical.Attendee{CalAddress: "mailto:alice@example.com"}

	out := mustGenerate(t, b.Refresh(ev, requester))

	if !strings.Contains(out, "METHOD:REFRESH") {
		t.Errorf("missing METHOD:REFRESH: %s", out)
	}
	if !strings.Contains(out, "SEQUENCE:42") {
		t.Errorf("SEQUENCE not preserved: %s", out)
	}
	if n := countAttendeeLines(out); n != 1 {
		t.Errorf("expected exactly one attendee, got %d", n)
	}
}

func TestParseRoundTripsMethodAndEvent(t *testing.T) {
	b := New(nil)
	ev := sampleEvent()
	responder := ical.Attendee{CalAddress: "mailto:alice@example.com", PartStat: ical.PartStatAccepted}
	body := mustGenerate(t, b.Reply(ev, responder))

	method, parsed, err := Parse([]byte(body))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if method != MethodReply {
		t.Errorf("method = %v, want REPLY", method)
	}
	if parsed.UID != ev.UID {
		t.Errorf("UID = %q, want %q", parsed.UID, ev.UID)
	}
	if parsed.Sequence != 42 {
		t.Errorf("Sequence = %d, want 42", parsed.Sequence)
	}
	if len(parsed.Attendees) != 1 {
		t.Errorf("expected exactly one attendee after round trip, got %d", len(parsed.Attendees))
	}
}

func TestParseRejectsMissingMethod(t *testing.T) {
	bare := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n" +
		"BEGIN:VEVENT\r\nUID:x\r\nDTSTAMP:20260101T000000Z\r\nDTSTART:20260101T100000Z\r\nEND:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	if _, _, err := Parse([]byte(bare)); err == nil {
		t.Fatal("expected error for a VCALENDAR with no METHOD")
	}
}

func TestIsSchedulingObject(t *testing.T) {
	ev := sampleEvent()
	if !IsSchedulingObject(ev) {
		t.Error("expected sampleEvent to be a scheduling object")
	}
	ev.Attendees = nil
	if IsSchedulingObject(ev) {
		t.Error("expected no-attendee event to not be a scheduling object")
	}
}
