package ical

import (
	"bytes"
	"fmt"
	"time"

	goical "github.com/emersion/go-ical"
)

// EnsureDTStamp stamps a missing DTSTAMP on every VEVENT/VTODO/VJOURNAL
// component in data, using now as the value. RFC 5545 §3.8.7.2 requires
// DTSTAMP on every one of these; a locally authored event that never
// round-tripped through a server is the one place it is plausible for the
// property to be absent, so the sync engine's push path calls this before
// PUT rather than rejecting an otherwise-valid event outright.
func EnsureDTStamp(data []byte, now time.Time) ([]byte, error) {
	cal, err := goical.NewDecoder(bytes.NewReader(data)).Decode()
	if err != nil {
		return nil, parseErrorf(data, "no recognizable VCALENDAR framing: %v", err)
	}

	stamped := false
	for _, child := range cal.Children {
		switch child.Name {
		case compEvent, compTodo, compJournal:
			if child.Props.Get(goical.PropDateTimeStamp) == nil {
				setDateTimeProp(child, goical.PropDateTimeStamp, NewUTC(now))
				stamped = true
			}
		}
	}
	if !stamped {
		return data, nil
	}

	var buf bytes.Buffer
	if err := goical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("ical: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// NormalizeICS runs the small set of fixups a locally authored event may
// need before it can round-trip through a conformant server: ensuring
// DTSTAMP is present, and adding VERSION:2.0 when the enclosing VCALENDAR
// has no VERSION (an existing VERSION is left as it is).
func NormalizeICS(data []byte, now time.Time) ([]byte, error) {
	data, err := EnsureDTStamp(data, now)
	if err != nil {
		return nil, err
	}

	cal, err := goical.NewDecoder(bytes.NewReader(data)).Decode()
	if err != nil {
		return nil, parseErrorf(data, "no recognizable VCALENDAR framing: %v", err)
	}
	if v, _ := cal.Props.Text(goical.PropVersion); v != "" {
		return data, nil
	}
	cal.Props.SetText(goical.PropVersion, "2.0")

	var buf bytes.Buffer
	if err := goical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("ical: encode: %w", err)
	}
	return buf.Bytes(), nil
}
