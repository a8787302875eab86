package ical

import (
	goical "github.com/emersion/go-ical"
)

func decodeTodo(comp *goical.Component, defaultZone *TimeZoneRef, strict bool) (*Todo, error) {
	td := &Todo{RawProperties: map[string][]RawProp{}}

	td.UID, _ = comp.Props.Text(goical.PropUID)
	if td.UID == "" {
		return nil, parseErrorf(nil, "VTODO missing UID")
	}
	td.Summary, _ = comp.Props.Text(goical.PropSummary)
	td.Description, _ = comp.Props.Text(goical.PropDescription)
	td.Location, _ = comp.Props.Text(goical.PropLocation)
	td.Class = Classification(rawValue(comp, "CLASS"))
	td.Status = Status(rawValue(comp, goical.PropStatus))
	td.Priority = intValue(comp, "PRIORITY")
	td.PercentComplete = intValue(comp, "PERCENT-COMPLETE")
	td.Sequence = intValue(comp, goical.PropSequence)

	if dt, ok, err := decodeDateTimeProp(comp, goical.PropDateTimeStart, defaultZone, strict); err != nil {
		return nil, err
	} else if ok {
		td.Start = &dt
	}
	if dt, ok, err := decodeDateTimeProp(comp, goical.PropDue, defaultZone, strict); err != nil {
		return nil, err
	} else if ok {
		td.Due = &dt
	} else if durProp := comp.Props.Get(goical.PropDuration); durProp != nil {
		if sd, err := ParseDuration(durProp.Value); err == nil {
			td.Duration = &sd
		}
	}
	if dt, ok, err := decodeDateTimeProp(comp, "COMPLETED", defaultZone, strict); err != nil {
		return nil, err
	} else if ok {
		td.Completed = &dt
	}
	if dt, ok, err := decodeDateTimeProp(comp, goical.PropRecurrenceID, defaultZone, strict); err != nil {
		return nil, err
	} else if ok {
		td.RecurrenceID = &dt
	}
	if dt, ok, err := decodeDateTimeProp(comp, goical.PropDateTimeStamp, defaultZone, strict); err != nil {
		return nil, err
	} else if ok {
		td.DTStamp = &dt
	}
	if dt, ok, err := decodeDateTimeProp(comp, goical.PropCreated, defaultZone, strict); err != nil {
		return nil, err
	} else if ok {
		td.Created = &dt
	}
	if dt, ok, err := decodeDateTimeProp(comp, goical.PropLastModified, defaultZone, strict); err != nil {
		return nil, err
	} else if ok {
		td.LastModified = &dt
	}

	if td.RecurrenceID == nil {
		if rr := comp.Props.Get(goical.PropRecurrenceRule); rr != nil {
			if rule, err := ParseRRule(rr.Value); err == nil {
				td.RRule = rule
			} else if strict {
				return nil, parseErrorf(nil, "%s: %v", td.UID, err)
			}
		}
	}
	td.RDates = decodeDateList(comp, goical.PropRecurrenceDates, defaultZone)
	td.ExDates = decodeDateList(comp, goical.PropExceptionDates, defaultZone)

	td.Organizer = decodeOrganizer(comp)
	td.Attendees = decodeAttendees(comp)

	for _, child := range comp.Children {
		if child.Name == compAlarm {
			if alarm, err := decodeAlarm(child, defaultZone); err == nil {
				td.Alarms = append(td.Alarms, *alarm)
			}
		}
	}

	collectRaw(comp, td.RawProperties, knownTodoProps)
	return td, nil
}

func encodeTodo(td *Todo) *goical.Component {
	comp := &goical.Component{Name: compTodo, Props: goical.Props{}}
	comp.Props.SetText(goical.PropUID, td.UID)
	comp.Props.SetText(goical.PropSummary, td.Summary)
	comp.Props.SetText(goical.PropDescription, td.Description)
	comp.Props.SetText(goical.PropLocation, td.Location)
	if td.Class != "" {
		comp.Props.SetText("CLASS", string(td.Class))
	}
	if td.Status != "" {
		comp.Props.SetText(goical.PropStatus, string(td.Status))
	}
	if td.Priority != 0 {
		comp.Props.SetText("PRIORITY", itoa(td.Priority))
	}
	if td.PercentComplete != 0 {
		comp.Props.SetText("PERCENT-COMPLETE", itoa(td.PercentComplete))
	}
	comp.Props.SetText(goical.PropSequence, itoa(td.Sequence))

	if td.Start != nil {
		setDateTimeProp(comp, goical.PropDateTimeStart, *td.Start)
	}
	if td.Due != nil {
		setDateTimeProp(comp, goical.PropDue, *td.Due)
	} else if td.Duration != nil {
		comp.Props.SetText(goical.PropDuration, FormatDuration(*td.Duration))
	}
	if td.Completed != nil {
		setDateTimeProp(comp, "COMPLETED", *td.Completed)
	}
	if td.RecurrenceID != nil {
		setDateTimeProp(comp, goical.PropRecurrenceID, *td.RecurrenceID)
	}
	if td.DTStamp != nil {
		setDateTimeProp(comp, goical.PropDateTimeStamp, *td.DTStamp)
	}
	if td.Created != nil {
		setDateTimeProp(comp, goical.PropCreated, *td.Created)
	}
	if td.LastModified != nil {
		setDateTimeProp(comp, goical.PropLastModified, *td.LastModified)
	}
	if td.RRule != nil && td.RecurrenceID == nil {
		comp.Props.Set(&goical.Prop{Name: goical.PropRecurrenceRule, Value: td.RRule.ToICalString()})
	}
	encodeDateList(comp, goical.PropRecurrenceDates, td.RDates)
	encodeDateList(comp, goical.PropExceptionDates, td.ExDates)

	if td.Organizer != nil {
		comp.Props.Set(encodeOrganizer(td.Organizer))
	}
	for _, att := range td.Attendees {
		comp.Props.Add(encodeAttendee(att))
	}
	for _, alarm := range td.Alarms {
		comp.Children = append(comp.Children, encodeAlarm(alarm))
	}

	restoreRaw(comp, td.RawProperties)
	return comp
}

var knownTodoProps = map[string]bool{
	goical.PropUID: true, goical.PropSummary: true, goical.PropDescription: true,
	goical.PropLocation: true, "CLASS": true, goical.PropStatus: true, "PRIORITY": true,
	"PERCENT-COMPLETE": true, goical.PropSequence: true, goical.PropDateTimeStart: true,
	goical.PropDue: true, goical.PropDuration: true, "COMPLETED": true,
	goical.PropRecurrenceID: true, goical.PropDateTimeStamp: true, goical.PropCreated: true,
	goical.PropLastModified: true, goical.PropRecurrenceRule: true,
	goical.PropRecurrenceDates: true, goical.PropExceptionDates: true,
	goical.PropOrganizer: true, goical.PropAttendee: true,
}
