package ical

import (
	goical "github.com/emersion/go-ical"
)

func decodeAlarm(comp *goical.Component, defaultZone *TimeZoneRef) (*Alarm, error) {
	a := &Alarm{Action: AlarmAction(rawValue(comp, "ACTION"))}

	trig := comp.Props.Get("TRIGGER")
	if trig == nil {
		return nil, parseErrorf(nil, "VALARM missing TRIGGER")
	}
	if firstOf(trig.Params, goical.ParamValue) == "DATE-TIME" {
		dt, err := ParseDateTime(trig.Value, trig.Params, defaultZone)
		if err != nil {
			return nil, err
		}
		a.Trigger = AlarmTrigger{Absolute: &dt}
	} else {
		sd, err := ParseDuration(trig.Value)
		if err != nil {
			return nil, err
		}
		a.Trigger = AlarmTrigger{
			Offset:     &sd,
			RelatedEnd: firstOf(trig.Params, "RELATED") == "END",
		}
	}

	a.Description, _ = comp.Props.Text("DESCRIPTION")
	a.Summary, _ = comp.Props.Text(goical.PropSummary)
	a.Attendees = decodeAttendees(comp)
	a.RepeatCount = intValue(comp, "REPEAT")
	if dp := comp.Props.Get(goical.PropDuration); dp != nil {
		if sd, err := ParseDuration(dp.Value); err == nil {
			a.Duration = &sd
		}
	}
	return a, nil
}

func encodeAlarm(a Alarm) *goical.Component {
	comp := &goical.Component{Name: compAlarm, Props: goical.Props{}}
	comp.Props.SetText("ACTION", string(a.Action))

	trig := goical.NewProp("TRIGGER")
	switch {
	case a.Trigger.Absolute != nil:
		trig.Value = a.Trigger.Absolute.ToICalString()
		trig.Params.Set(goical.ParamValue, "DATE-TIME")
	case a.Trigger.Offset != nil:
		trig.Value = FormatDuration(*a.Trigger.Offset)
		if a.Trigger.RelatedEnd {
			trig.Params.Set("RELATED", "END")
		}
	}
	comp.Props.Set(trig)

	if a.Description != "" {
		comp.Props.SetText("DESCRIPTION", a.Description)
	}
	if a.Summary != "" {
		comp.Props.SetText(goical.PropSummary, a.Summary)
	}
	for _, att := range a.Attendees {
		comp.Props.Add(encodeAttendee(att))
	}
	if a.RepeatCount > 0 {
		comp.Props.SetText("REPEAT", itoa(a.RepeatCount))
	}
	if a.Duration != nil {
		comp.Props.SetText(goical.PropDuration, FormatDuration(*a.Duration))
	}
	return comp
}
