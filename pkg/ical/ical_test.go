package ical

import (
	"strings"
	"testing"
	"time"
)

func TestFoldUnfold(t *testing.T) {
	// S1: a folded SUMMARY line (CRLF + single leading space continuation)
	// must parse back to the unfolded text.
	raw := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//test//EN\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:fold-1\r\n" +
		"DTSTART:20231215T140000Z\r\n" +
		"SUMMARY:This is a very long event title that spans multiple lines bec\r\n" +
		" ause it is longer than 75 characters\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	doc, err := Parse([]byte(raw), ParseOptions{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(doc.Events))
	}
	want := "This is a very long event title that spans multiple lines because it is longer than 75 characters"
	if got := doc.Events[0].Summary; got != want {
		t.Errorf("Summary = %q, want %q", got, want)
	}
}

func TestUTCAndAllDay(t *testing.T) {
	raw := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n" +
		"BEGIN:VEVENT\r\nUID:utc-1\r\nDTSTART:20231215T140000Z\r\nEND:VEVENT\r\n" +
		"BEGIN:VEVENT\r\nUID:date-1\r\nDTSTART;VALUE=DATE:20260123\r\nEND:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	doc, err := Parse([]byte(raw), ParseOptions{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(doc.Events))
	}

	utcEv := doc.Events[0]
	if !utcEv.Start.IsUTC || utcEv.Start.IsDate {
		t.Errorf("utc event: IsUTC=%v IsDate=%v, want true/false", utcEv.Start.IsUTC, utcEv.Start.IsDate)
	}
	wantMillis := time.Date(2023, 12, 15, 14, 0, 0, 0, time.UTC).UnixMilli()
	if got := utcEv.Start.TimestampUTCMillis(); got != wantMillis {
		t.Errorf("timestamp = %d, want %d", got, wantMillis)
	}

	dateEv := doc.Events[1]
	if !dateEv.Start.IsDate {
		t.Fatalf("date event: IsDate = false, want true")
	}
	y, m, d := dateEv.Start.ToLocalDate()
	if y != 2026 || m != time.January || d != 23 {
		t.Errorf("ToLocalDate = %d-%d-%d, want 2026-01-23", y, m, d)
	}
}

func TestRecurrenceIDException(t *testing.T) {
	raw := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n" +
		"BEGIN:VEVENT\r\nUID:m1\r\nDTSTART:20231201T100000Z\r\nRRULE:FREQ=WEEKLY\r\nEND:VEVENT\r\n" +
		"BEGIN:VEVENT\r\nUID:m1\r\nDTSTART:20231208T110000Z\r\nRECURRENCE-ID:20231208T100000Z\r\nEND:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	doc, err := Parse([]byte(raw), ParseOptions{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(doc.Events))
	}

	master, exception := doc.Events[0], doc.Events[1]
	if master.RRule == nil {
		t.Errorf("master should have an RRULE")
	}
	if exception.RRule != nil {
		t.Errorf("exception must not carry an RRULE, got %+v", exception.RRule)
	}

	if got, want := ImportID(master.UID, master.RecurrenceID), "m1"; got != want {
		t.Errorf("master import_id = %q, want %q", got, want)
	}
	if got, want := ImportID(exception.UID, exception.RecurrenceID), "m1:RECID:20231208T100000Z"; got != want {
		t.Errorf("exception import_id = %q, want %q", got, want)
	}
}

func TestTextEscapeRoundTrip(t *testing.T) {
	cases := []string{
		`plain text`,
		`comma, semicolon; backslash\and newline` + "\n" + `end`,
		``,
	}
	for _, s := range cases {
		if got := UnescapeText(EscapeText(s)); got != s {
			t.Errorf("UnescapeText(EscapeText(%q)) = %q, want %q", s, got, s)
		}
	}
}

func TestGenerateDateValueHasNoTOrZ(t *testing.T) {
	doc := &Document{
		ProdID: "-//test//EN",
		Events: []*Event{{
			UID:   "date-only",
			Start: NewDate(2026, time.March, 1),
		}},
	}
	out, err := Generate(doc)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	reparsed, err := Parse(out, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse(Generate(doc)): %v", err)
	}
	ics := reparsed.Events[0].Start.ToICalString()
	if strings.ContainsAny(ics, "TZ") {
		t.Errorf("DATE value %q must not contain T or Z", ics)
	}
}

func TestGenerateUTCValueEndsWithZ(t *testing.T) {
	ev := &Event{UID: "utc-rt", Start: NewUTC(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))}
	doc := &Document{ProdID: "-//test//EN", Events: []*Event{ev}}
	out, err := Generate(doc)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	reparsed, err := Parse(out, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := reparsed.Events[0].Start.ToICalString(); !strings.HasSuffix(got, "Z") {
		t.Errorf("UTC value %q must end with Z", got)
	}
}

func TestVTimezoneNeverLeaksIntoEvent(t *testing.T) {
	raw := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n" +
		"BEGIN:VTIMEZONE\r\nTZID:America/New_York\r\n" +
		"BEGIN:STANDARD\r\nDTSTART:19701101T020000\r\nRRULE:FREQ=YEARLY;BYMONTH=11;BYDAY=1SU\r\nTZOFFSETFROM:-0400\r\nTZOFFSETTO:-0500\r\nEND:STANDARD\r\n" +
		"END:VTIMEZONE\r\n" +
		"BEGIN:VEVENT\r\nUID:tz-1\r\nDTSTART;TZID=America/New_York:20231215T090000\r\nEND:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	doc, err := Parse([]byte(raw), ParseOptions{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(doc.Events))
	}
	if doc.Events[0].RRule != nil {
		t.Errorf("VTIMEZONE's RRULE leaked into the event: %+v", doc.Events[0].RRule)
	}
}

func TestDurationRoundTrip(t *testing.T) {
	cases := []string{"P1D", "PT15M", "-PT15M", "PT1H30M", "P1DT12H", "P2W"}
	for _, s := range cases {
		d, err := ParseDuration(s)
		if err != nil {
			t.Fatalf("ParseDuration(%q): %v", s, err)
		}
		if got := FormatDuration(d); got != s {
			t.Errorf("FormatDuration(ParseDuration(%q)) = %q, want %q", s, got, s)
		}
	}
}

func TestRRuleStructuralValidation(t *testing.T) {
	if _, err := ParseRRule("FREQ=WEEKLY;BYMONTHDAY=15"); err == nil {
		t.Errorf("expected error for BYMONTHDAY with FREQ=WEEKLY")
	}
	rr, err := ParseRRule("FREQ=WEEKLY;BYDAY=MO,WE,FR")
	if err != nil {
		t.Fatalf("ParseRRule: %v", err)
	}
	if rr.Freq != Weekly {
		t.Errorf("Freq = %v, want WEEKLY", rr.Freq)
	}
}
