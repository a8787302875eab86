package syncengine

import (
	"fmt"
	"regexp"
	"time"

	"github.com/kestrelcal/caldavsync/pkg/ical"
)

// parseObjectMeta extracts the UID, import_id, SEQUENCE and LAST-MODIFIED
// of the single scheduling object a calendar resource carries — a VEVENT,
// VTODO or VJOURNAL, in that preference order, mirroring a master event
// plus its RECURRENCE-ID overrides sharing one resource in some server
// implementations (this engine reconciles at the resource/href level; the
// master is what identifies it for conflict comparison).
func parseObjectMeta(data []byte) (uid, importID string, sequence int, modified *time.Time, err error) {
	doc, err := ical.Parse(data, ical.ParseOptions{})
	if err != nil {
		return "", "", 0, nil, err
	}
	switch {
	case len(doc.Events) > 0:
		ev := doc.Events[0]
		for _, e := range doc.Events {
			if e.RecurrenceID == nil {
				ev = e
				break
			}
		}
		return ev.UID, ical.ImportID(ev.UID, ev.RecurrenceID), ev.Sequence, lastModifiedOf(ev.LastModified), nil
	case len(doc.Todos) > 0:
		td := doc.Todos[0]
		return td.UID, ical.ImportID(td.UID, td.RecurrenceID), td.Sequence, lastModifiedOf(td.LastModified), nil
	case len(doc.Journals) > 0:
		jr := doc.Journals[0]
		return jr.UID, ical.ImportID(jr.UID, jr.RecurrenceID), jr.Sequence, lastModifiedOf(jr.LastModified), nil
	default:
		return "", "", 0, nil, fmt.Errorf("syncengine: no VEVENT/VTODO/VJOURNAL in resource")
	}
}

func lastModifiedOf(dt *ical.DateTime) *time.Time {
	if dt == nil {
		return nil
	}
	t := dt.UTC()
	return &t
}

// uidSanitizePattern is what survives a UID on its way to becoming the
// final path segment of a new object's href (§4.5.3).
var uidSanitizePattern = regexp.MustCompile(`[^A-Za-z0-9@._-]`)

// SanitizeUID turns an event UID into a safe ".ics" filename: characters
// outside [A-Za-z0-9@._-] become "_", and UIDs that could traverse paths
// (any "/" or "\", or a leading "..") are rejected outright rather than
// silently stripped, since silently stripping them could still produce a
// different valid traversal.
func SanitizeUID(uid string) (string, error) {
	if uid == "" {
		return "", fmt.Errorf("syncengine: empty UID")
	}
	if containsTraversal(uid) {
		return "", fmt.Errorf("syncengine: UID %q contains a path-traversal segment", uid)
	}
	sanitized := uidSanitizePattern.ReplaceAllString(uid, "_")
	if sanitized == "" || sanitized == "." || sanitized == ".." {
		return "", fmt.Errorf("syncengine: UID %q sanitizes to an empty or reserved name", uid)
	}
	return sanitized, nil
}

func containsTraversal(uid string) bool {
	for i := 0; i < len(uid); i++ {
		if uid[i] == '/' || uid[i] == '\\' {
			return true
		}
	}
	return uid == ".." || len(uid) >= 2 && uid[:2] == ".."
}
