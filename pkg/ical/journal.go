package ical

import (
	goical "github.com/emersion/go-ical"
)

func decodeJournal(comp *goical.Component, defaultZone *TimeZoneRef, strict bool) (*Journal, error) {
	jr := &Journal{RawProperties: map[string][]RawProp{}}

	jr.UID, _ = comp.Props.Text(goical.PropUID)
	if jr.UID == "" {
		return nil, parseErrorf(nil, "VJOURNAL missing UID")
	}
	jr.Summary, _ = comp.Props.Text(goical.PropSummary)
	jr.Description, _ = comp.Props.Text(goical.PropDescription)
	jr.Class = Classification(rawValue(comp, "CLASS"))
	jr.Status = Status(rawValue(comp, goical.PropStatus))
	jr.Sequence = intValue(comp, goical.PropSequence)

	if dt, ok, err := decodeDateTimeProp(comp, goical.PropDateTimeStart, defaultZone, strict); err != nil {
		return nil, err
	} else if ok {
		jr.Start = dt
	} else {
		return nil, parseErrorf(nil, "VJOURNAL %s missing DTSTART", jr.UID)
	}
	if dt, ok, err := decodeDateTimeProp(comp, goical.PropRecurrenceID, defaultZone, strict); err != nil {
		return nil, err
	} else if ok {
		jr.RecurrenceID = &dt
	}
	if dt, ok, err := decodeDateTimeProp(comp, goical.PropDateTimeStamp, defaultZone, strict); err != nil {
		return nil, err
	} else if ok {
		jr.DTStamp = &dt
	}
	if dt, ok, err := decodeDateTimeProp(comp, goical.PropCreated, defaultZone, strict); err != nil {
		return nil, err
	} else if ok {
		jr.Created = &dt
	}
	if dt, ok, err := decodeDateTimeProp(comp, goical.PropLastModified, defaultZone, strict); err != nil {
		return nil, err
	} else if ok {
		jr.LastModified = &dt
	}

	if jr.RecurrenceID == nil {
		if rr := comp.Props.Get(goical.PropRecurrenceRule); rr != nil {
			if rule, err := ParseRRule(rr.Value); err == nil {
				jr.RRule = rule
			} else if strict {
				return nil, parseErrorf(nil, "%s: %v", jr.UID, err)
			}
		}
	}
	jr.RDates = decodeDateList(comp, goical.PropRecurrenceDates, defaultZone)
	jr.ExDates = decodeDateList(comp, goical.PropExceptionDates, defaultZone)

	jr.Organizer = decodeOrganizer(comp)
	jr.Attendees = decodeAttendees(comp)

	collectRaw(comp, jr.RawProperties, knownJournalProps)
	return jr, nil
}

func encodeJournal(jr *Journal) *goical.Component {
	comp := &goical.Component{Name: compJournal, Props: goical.Props{}}
	comp.Props.SetText(goical.PropUID, jr.UID)
	comp.Props.SetText(goical.PropSummary, jr.Summary)
	comp.Props.SetText(goical.PropDescription, jr.Description)
	if jr.Class != "" {
		comp.Props.SetText("CLASS", string(jr.Class))
	}
	if jr.Status != "" {
		comp.Props.SetText(goical.PropStatus, string(jr.Status))
	}
	comp.Props.SetText(goical.PropSequence, itoa(jr.Sequence))
	setDateTimeProp(comp, goical.PropDateTimeStart, jr.Start)
	if jr.RecurrenceID != nil {
		setDateTimeProp(comp, goical.PropRecurrenceID, *jr.RecurrenceID)
	}
	if jr.DTStamp != nil {
		setDateTimeProp(comp, goical.PropDateTimeStamp, *jr.DTStamp)
	}
	if jr.Created != nil {
		setDateTimeProp(comp, goical.PropCreated, *jr.Created)
	}
	if jr.LastModified != nil {
		setDateTimeProp(comp, goical.PropLastModified, *jr.LastModified)
	}
	if jr.RRule != nil && jr.RecurrenceID == nil {
		comp.Props.Set(&goical.Prop{Name: goical.PropRecurrenceRule, Value: jr.RRule.ToICalString()})
	}
	encodeDateList(comp, goical.PropRecurrenceDates, jr.RDates)
	encodeDateList(comp, goical.PropExceptionDates, jr.ExDates)
	if jr.Organizer != nil {
		comp.Props.Set(encodeOrganizer(jr.Organizer))
	}
	for _, att := range jr.Attendees {
		comp.Props.Add(encodeAttendee(att))
	}
	restoreRaw(comp, jr.RawProperties)
	return comp
}

var knownJournalProps = map[string]bool{
	goical.PropUID: true, goical.PropSummary: true, goical.PropDescription: true,
	"CLASS": true, goical.PropStatus: true, goical.PropSequence: true,
	goical.PropDateTimeStart: true, goical.PropRecurrenceID: true, goical.PropDateTimeStamp: true,
	goical.PropCreated: true, goical.PropLastModified: true, goical.PropRecurrenceRule: true,
	goical.PropRecurrenceDates: true, goical.PropExceptionDates: true,
	goical.PropOrganizer: true, goical.PropAttendee: true,
}
