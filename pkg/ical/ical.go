// Package ical implements the iCalendar (RFC 5545) codec: parsing VCALENDAR
// text into a tree of typed events, to-dos, journals and free/busy records,
// and generating conformant text back out of them.
//
// Wire-level concerns RFC 5545 shares with every text/calendar producer —
// CRLF folding/unfolding, parameter tokenizing, TEXT escaping, component
// nesting — are handled by github.com/emersion/go-ical, which this package
// wraps. What lives here is the domain layer the wire codec doesn't know
// about: DATE/DATE-TIME/DURATION typing and provenance, RECURRENCE-ID
// exception resolution, import-id derivation, and the VTIMEZONE scoping
// invariant.
package ical

import (
	"bytes"
	"fmt"

	goical "github.com/emersion/go-ical"
)

const (
	compCalendar = "VCALENDAR"
	compEvent    = "VEVENT"
	compTodo     = "VTODO"
	compJournal  = "VJOURNAL"
	compFreeBusy = "VFREEBUSY"
	compTimezone = "VTIMEZONE"
	compAlarm    = "VALARM"
)

// Document is the parsed form of a VCALENDAR document.
type Document struct {
	ProdID  string
	Version string
	Method  string

	Events    []*Event
	Todos     []*Todo
	Journals  []*Journal
	FreeBusys []*FreeBusy
}

// ParseOptions controls lenience during Parse.
type ParseOptions struct {
	// DefaultTimezone resolves "floating" DATE-TIME values (no Z, no TZID).
	// Defaults to UTC when nil.
	DefaultTimezone *TimeZoneRef
	// Strict makes Parse fail with the first component decoding error (an
	// unparseable date-time or RRULE value, a missing UID or VEVENT
	// DTSTART). Without it, an unparseable property value is dropped and
	// the component kept; a component that still cannot be decoded (no
	// UID, or a VEVENT with no usable DTSTART) is skipped.
	Strict bool
}

// Parse decodes VCALENDAR text into a Document. Per §4.1.4 the parser is
// lenient: a ParseError is only raised when the input contains no
// recognizable VCALENDAR framing at all; mismatched or missing END lines
// are tolerated because go-ical closes open components at EOF on its own.
func Parse(data []byte, opts ParseOptions) (*Document, error) {
	cal, err := goical.NewDecoder(bytes.NewReader(data)).Decode()
	if err != nil {
		return nil, parseErrorf(data, "no recognizable VCALENDAR framing: %v", err)
	}

	doc := &Document{}
	doc.ProdID, _ = cal.Props.Text(goical.PropProductID)
	doc.Version, _ = cal.Props.Text(goical.PropVersion)
	doc.Method, _ = cal.Props.Text(goical.PropMethod)

	tz := opts.DefaultTimezone
	if tz == nil {
		tz = UTCRef()
	}

	for _, child := range cal.Children {
		switch child.Name {
		case compEvent:
			ev, err := decodeEvent(child, tz, opts.Strict)
			if err != nil {
				if opts.Strict {
					return nil, err
				}
				continue
			}
			doc.Events = append(doc.Events, ev)
		case compTodo:
			td, err := decodeTodo(child, tz, opts.Strict)
			if err != nil {
				if opts.Strict {
					return nil, err
				}
				continue
			}
			doc.Todos = append(doc.Todos, td)
		case compJournal:
			jr, err := decodeJournal(child, tz, opts.Strict)
			if err != nil {
				if opts.Strict {
					return nil, err
				}
				continue
			}
			doc.Journals = append(doc.Journals, jr)
		case compFreeBusy:
			fb, err := decodeFreeBusy(child, tz)
			if err != nil {
				if opts.Strict {
					return nil, err
				}
				continue
			}
			doc.FreeBusys = append(doc.FreeBusys, fb)
		case compTimezone:
			// Deliberately unread: properties inside VTIMEZONE (including
			// any RRULE on a STANDARD/DAYLIGHT sub-rule) must never reach
			// the enclosing calendar's events. Never hoist anything from
			// this branch into doc.* and the invariant holds by
			// construction rather than by a denylist.
		}
	}

	return doc, nil
}

// Generate encodes a Document back into VCALENDAR text. CRLF termination,
// 75-octet folding and TEXT re-escaping are handled by go-ical's Encoder;
// this function only builds the component tree.
func Generate(doc *Document) ([]byte, error) {
	cal := &goical.Calendar{Component: &goical.Component{Name: compCalendar, Props: goical.Props{}}}

	version := doc.Version
	if version == "" {
		version = "2.0"
	}
	cal.Props.SetText(goical.PropVersion, version)
	cal.Props.SetText(goical.PropProductID, doc.ProdID)
	if doc.Method != "" {
		cal.Props.SetText(goical.PropMethod, doc.Method)
	}

	for _, ev := range doc.Events {
		cal.Children = append(cal.Children, encodeEvent(ev))
	}
	for _, td := range doc.Todos {
		cal.Children = append(cal.Children, encodeTodo(td))
	}
	for _, jr := range doc.Journals {
		cal.Children = append(cal.Children, encodeJournal(jr))
	}
	for _, fb := range doc.FreeBusys {
		cal.Children = append(cal.Children, encodeFreeBusy(fb))
	}

	var buf bytes.Buffer
	if err := goical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("ical: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// DetectComponent reports the first top-level VEVENT/VTODO/VJOURNAL name
// found in data, the way a caller deciding how to route an incoming
// calendar-data blob needs to.
func DetectComponent(data []byte) (string, error) {
	cal, err := goical.NewDecoder(bytes.NewReader(data)).Decode()
	if err != nil {
		return "", parseErrorf(data, "no recognizable VCALENDAR framing: %v", err)
	}
	for _, child := range cal.Children {
		switch child.Name {
		case compEvent, compTodo, compJournal:
			return child.Name, nil
		}
	}
	return "", parseErrorf(data, "no VEVENT/VTODO/VJOURNAL component found")
}
