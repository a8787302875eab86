package ical

import (
	goical "github.com/emersion/go-ical"
)

// decodeEvent maps a VEVENT component onto the Event model. Properties it
// doesn't recognize are preserved verbatim in RawProperties so a
// parse→generate round trip never silently drops data.
func decodeEvent(comp *goical.Component, defaultZone *TimeZoneRef, strict bool) (*Event, error) {
	ev := &Event{RawProperties: map[string][]RawProp{}}

	ev.UID, _ = comp.Props.Text(goical.PropUID)
	if ev.UID == "" {
		return nil, parseErrorf(nil, "VEVENT missing UID")
	}
	ev.Summary, _ = comp.Props.Text(goical.PropSummary)
	ev.Description, _ = comp.Props.Text(goical.PropDescription)
	ev.Location, _ = comp.Props.Text(goical.PropLocation)
	ev.URL, _ = comp.Props.Text(goical.PropURL)
	ev.Class = Classification(rawValue(comp, "CLASS"))
	ev.Status = Status(rawValue(comp, goical.PropStatus))
	ev.Transparency = Transparency(rawValue(comp, "TRANSP"))
	ev.Priority = intValue(comp, "PRIORITY")
	ev.Categories = splitCategories(rawValue(comp, "CATEGORIES"))
	ev.Sequence = intValue(comp, goical.PropSequence)

	if dt, ok, err := decodeDateTimeProp(comp, goical.PropDateTimeStart, defaultZone, strict); err != nil {
		return nil, err
	} else if ok {
		ev.Start = dt
	} else {
		return nil, parseErrorf(nil, "VEVENT %s missing DTSTART", ev.UID)
	}

	if dt, ok, err := decodeDateTimeProp(comp, goical.PropDateTimeEnd, defaultZone, strict); err != nil {
		return nil, err
	} else if ok {
		ev.End = &dt
	} else if durProp := comp.Props.Get(goical.PropDuration); durProp != nil {
		if sd, err := ParseDuration(durProp.Value); err == nil {
			ev.Duration = &sd
		}
	}

	if dt, ok, err := decodeDateTimeProp(comp, goical.PropRecurrenceID, defaultZone, strict); err != nil {
		return nil, err
	} else if ok {
		ev.RecurrenceID = &dt
	}
	if dt, ok, err := decodeDateTimeProp(comp, goical.PropDateTimeStamp, defaultZone, strict); err != nil {
		return nil, err
	} else if ok {
		ev.DTStamp = &dt
	}
	if dt, ok, err := decodeDateTimeProp(comp, goical.PropCreated, defaultZone, strict); err != nil {
		return nil, err
	} else if ok {
		ev.Created = &dt
	}
	if dt, ok, err := decodeDateTimeProp(comp, goical.PropLastModified, defaultZone, strict); err != nil {
		return nil, err
	} else if ok {
		ev.LastModified = &dt
	}

	// RRULE is only meaningful on the master (no RECURRENCE-ID); per §3.1 the
	// modified-occurrence record never carries one even if the server sent
	// both. Critically, this only ever reads comp.Props — VTIMEZONE's own
	// children are a disjoint branch of the tree the parser never visits
	// from here, so a RRULE inside STANDARD/DAYLIGHT can never leak in.
	if ev.RecurrenceID == nil {
		if rr := comp.Props.Get(goical.PropRecurrenceRule); rr != nil {
			rule, err := ParseRRule(rr.Value)
			if err != nil {
				if strict {
					return nil, parseErrorf(nil, "%s: %v", ev.UID, err)
				}
			} else {
				ev.RRule = rule
			}
		}
	}

	ev.RDates = decodeDateList(comp, goical.PropRecurrenceDates, defaultZone)
	ev.ExDates = decodeDateList(comp, goical.PropExceptionDates, defaultZone)

	ev.Organizer = decodeOrganizer(comp)
	ev.Attendees = decodeAttendees(comp)

	for _, child := range comp.Children {
		if child.Name == compAlarm {
			if alarm, err := decodeAlarm(child, defaultZone); err == nil {
				ev.Alarms = append(ev.Alarms, *alarm)
			}
		}
	}

	collectRaw(comp, ev.RawProperties, knownEventProps)

	return ev, nil
}

func encodeEvent(ev *Event) *goical.Component {
	comp := &goical.Component{Name: compEvent, Props: goical.Props{}}

	comp.Props.SetText(goical.PropUID, ev.UID)
	setDateTimeProp(comp, goical.PropDateTimeStart, ev.Start)
	if ev.End != nil {
		setDateTimeProp(comp, goical.PropDateTimeEnd, *ev.End)
	} else if ev.Duration != nil {
		comp.Props.SetText(goical.PropDuration, FormatDuration(*ev.Duration))
	}
	if ev.RecurrenceID != nil {
		setDateTimeProp(comp, goical.PropRecurrenceID, *ev.RecurrenceID)
	}
	if ev.DTStamp != nil {
		setDateTimeProp(comp, goical.PropDateTimeStamp, *ev.DTStamp)
	}
	if ev.Created != nil {
		setDateTimeProp(comp, goical.PropCreated, *ev.Created)
	}
	if ev.LastModified != nil {
		setDateTimeProp(comp, goical.PropLastModified, *ev.LastModified)
	}
	comp.Props.SetText(goical.PropSummary, ev.Summary)
	comp.Props.SetText(goical.PropDescription, ev.Description)
	comp.Props.SetText(goical.PropLocation, ev.Location)
	comp.Props.SetText(goical.PropURL, ev.URL)
	if ev.Class != "" {
		comp.Props.SetText("CLASS", string(ev.Class))
	}
	if ev.Status != "" {
		comp.Props.SetText(goical.PropStatus, string(ev.Status))
	}
	if ev.Transparency != "" {
		comp.Props.SetText("TRANSP", string(ev.Transparency))
	}
	if ev.Priority != 0 {
		comp.Props.SetText("PRIORITY", itoa(ev.Priority))
	}
	if len(ev.Categories) > 0 {
		comp.Props.SetText("CATEGORIES", joinCategories(ev.Categories))
	}
	comp.Props.SetText(goical.PropSequence, itoa(ev.Sequence))

	if ev.RRule != nil && ev.RecurrenceID == nil {
		comp.Props.Set(&goical.Prop{Name: goical.PropRecurrenceRule, Value: ev.RRule.ToICalString()})
	}
	encodeDateList(comp, goical.PropRecurrenceDates, ev.RDates)
	encodeDateList(comp, goical.PropExceptionDates, ev.ExDates)

	if ev.Organizer != nil {
		comp.Props.Set(encodeOrganizer(ev.Organizer))
	}
	for _, att := range ev.Attendees {
		comp.Props.Add(encodeAttendee(att))
	}

	for _, alarm := range ev.Alarms {
		comp.Children = append(comp.Children, encodeAlarm(alarm))
	}

	restoreRaw(comp, ev.RawProperties)

	return comp
}

var knownEventProps = map[string]bool{
	goical.PropUID: true, goical.PropDateTimeStart: true, goical.PropDateTimeEnd: true,
	goical.PropDuration: true, goical.PropRecurrenceID: true, goical.PropDateTimeStamp: true,
	goical.PropCreated: true, goical.PropLastModified: true, goical.PropSummary: true,
	goical.PropDescription: true, goical.PropLocation: true, goical.PropURL: true,
	"CLASS": true, goical.PropStatus: true, "TRANSP": true, "PRIORITY": true,
	"CATEGORIES": true, goical.PropSequence: true, goical.PropRecurrenceRule: true,
	goical.PropRecurrenceDates: true, goical.PropExceptionDates: true,
	goical.PropOrganizer: true, goical.PropAttendee: true,
}
