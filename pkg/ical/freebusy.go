package ical

import (
	"fmt"
	"strings"
	"time"

	goical "github.com/emersion/go-ical"
)

func decodeFreeBusy(comp *goical.Component, defaultZone *TimeZoneRef) (*FreeBusy, error) {
	fb := &FreeBusy{}
	fb.UID, _ = comp.Props.Text(goical.PropUID)

	if dt, ok, err := decodeDateTimeProp(comp, goical.PropDateTimeStamp, defaultZone, false); err == nil && ok {
		fb.DTStamp = &dt
	}
	if dt, ok, _ := decodeDateTimeProp(comp, goical.PropDateTimeStart, defaultZone, false); ok {
		fb.Start = dt
	}
	if dt, ok, _ := decodeDateTimeProp(comp, goical.PropDateTimeEnd, defaultZone, false); ok {
		fb.End = dt
	}
	fb.Organizer = decodeOrganizer(comp)

	for _, p := range comp.Props.Values(goical.PropFreeBusy) {
		fbtype := firstOfOr(p.Params, "FBTYPE", "BUSY")
		for _, period := range strings.Split(p.Value, ",") {
			parts := strings.SplitN(period, "/", 2)
			if len(parts) != 2 {
				continue
			}
			start, err := ParseDateTime(parts[0], nil, defaultZone)
			if err != nil {
				continue
			}
			var end DateTime
			if strings.HasPrefix(parts[1], "P") || strings.HasPrefix(parts[1], "-P") {
				dur, derr := ParseDuration(parts[1])
				if derr != nil {
					continue
				}
				end = NewUTC(start.UTC().Add(dur.AsTimeDuration()))
			} else {
				end, err = ParseDateTime(parts[1], nil, defaultZone)
				if err != nil {
					continue
				}
			}
			fb.Busy = append(fb.Busy, BusyInterval{Start: start, End: end, Type: fbtype})
		}
	}
	return fb, nil
}

func encodeFreeBusy(fb *FreeBusy) *goical.Component {
	comp := &goical.Component{Name: compFreeBusy, Props: goical.Props{}}
	if fb.UID != "" {
		comp.Props.SetText(goical.PropUID, fb.UID)
	}
	if fb.DTStamp != nil {
		setDateTimeProp(comp, goical.PropDateTimeStamp, *fb.DTStamp)
	}
	setDateTimeProp(comp, goical.PropDateTimeStart, fb.Start)
	setDateTimeProp(comp, goical.PropDateTimeEnd, fb.End)
	if fb.Organizer != nil {
		comp.Props.Set(encodeOrganizer(fb.Organizer))
	}
	for _, b := range fb.Busy {
		prop := goical.NewProp(goical.PropFreeBusy)
		prop.Params.Set("FBTYPE", orDefault(b.Type, "BUSY"))
		prop.Value = fmt.Sprintf("%s/%s", b.Start.ToICalString(), b.End.ToICalString())
		comp.Props.Add(prop)
	}
	return comp
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// BuildFreeBusy produces a standalone VCALENDAR/VFREEBUSY document from a
// window and a set of busy intervals — used by a scheduling responder
// replying to a FREEBUSY-REQUEST without round-tripping through the full
// Document/Event model.
func BuildFreeBusy(start, end time.Time, busy []BusyInterval, prodID string) []byte {
	doc := &Document{
		ProdID: prodID,
		FreeBusys: []*FreeBusy{
			{Start: NewUTC(start), End: NewUTC(end), Busy: busy},
		},
	}
	out, err := Generate(doc)
	if err != nil {
		return nil
	}
	return out
}
