package ical

import "strings"

const recidMarker = ":RECID:"

// ImportID derives the flat-store key for an event: the bare UID for a
// master, or uid+":RECID:"+recurrence_id for a modified occurrence. See
// §4.1.5 — this is what lets a host store masters and overridden instances
// side by side in one key-value space.
func ImportID(uid string, recurrenceID *DateTime) string {
	if recurrenceID == nil {
		return uid
	}
	return uid + recidMarker + recurrenceID.ToICalString()
}

// ParseImportID reconstructs the (uid, recurrence_id) pair ImportID was
// built from. recurrenceID is nil for a master event's import_id.
// defaultZone resolves a floating RECURRENCE-ID value the same way the
// codec resolved it on the way in.
func ParseImportID(id string, defaultZone *TimeZoneRef) (uid string, recurrenceID *DateTime, err error) {
	idx := strings.Index(id, recidMarker)
	if idx < 0 {
		return id, nil, nil
	}
	uid = id[:idx]
	raw := id[idx+len(recidMarker):]
	dt, perr := ParseDateTime(raw, nil, defaultZone)
	if perr != nil {
		return "", nil, perr
	}
	return uid, &dt, nil
}
