package ical

import (
	goical "github.com/emersion/go-ical"
)

func decodeOrganizer(comp *goical.Component) *Organizer {
	p := comp.Props.Get(goical.PropOrganizer)
	if p == nil {
		return nil
	}
	return &Organizer{
		CalAddress: p.Value,
		CN:         firstOf(p.Params, "CN"),
		SentBy:     firstOf(p.Params, "SENT-BY"),
		Language:   firstOf(p.Params, "LANGUAGE"),
	}
}

func encodeOrganizer(o *Organizer) *goical.Prop {
	prop := goical.NewProp(goical.PropOrganizer)
	prop.Value = o.CalAddress
	if o.CN != "" {
		prop.Params.Set("CN", o.CN)
	}
	if o.SentBy != "" {
		prop.Params.Set("SENT-BY", o.SentBy)
	}
	if o.Language != "" {
		prop.Params.Set("LANGUAGE", o.Language)
	}
	return prop
}

func decodeAttendees(comp *goical.Component) []Attendee {
	var out []Attendee
	for _, p := range comp.Props.Values(goical.PropAttendee) {
		a := Attendee{
			CalAddress: p.Value,
			CN:         firstOf(p.Params, "CN"),
			Role:       Role(firstOfOr(p.Params, "ROLE", string(RoleReqParticipant))),
			PartStat:   PartStat(firstOfOr(p.Params, "PARTSTAT", string(PartStatNeedsAction))),
			CUType:     CUType(firstOfOr(p.Params, "CUTYPE", string(CUTypeIndividual))),
			RSVP:       firstOf(p.Params, "RSVP") == "TRUE",
			SentBy:     firstOf(p.Params, "SENT-BY"),
		}
		a.DelegatedTo = p.Params["DELEGATED-TO"]
		a.DelegatedFrom = p.Params["DELEGATED-FROM"]
		a.Member = p.Params["MEMBER"]
		out = append(out, a)
	}
	return out
}

func encodeAttendee(a Attendee) *goical.Prop {
	prop := goical.NewProp(goical.PropAttendee)
	prop.Value = a.CalAddress
	if a.CN != "" {
		prop.Params.Set("CN", a.CN)
	}
	if a.Role != "" {
		prop.Params.Set("ROLE", string(a.Role))
	}
	if a.PartStat != "" {
		prop.Params.Set(goical.ParamParticipationStatus, string(a.PartStat))
	}
	if a.CUType != "" {
		prop.Params.Set("CUTYPE", string(a.CUType))
	}
	if a.RSVP {
		prop.Params.Set("RSVP", "TRUE")
	}
	if a.SentBy != "" {
		prop.Params.Set("SENT-BY", a.SentBy)
	}
	if len(a.DelegatedTo) > 0 {
		prop.Params["DELEGATED-TO"] = a.DelegatedTo
	}
	if len(a.DelegatedFrom) > 0 {
		prop.Params["DELEGATED-FROM"] = a.DelegatedFrom
	}
	if len(a.Member) > 0 {
		prop.Params["MEMBER"] = a.Member
	}
	return prop
}

func firstOf(params goical.Params, name string) string {
	if vs, ok := params[name]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func firstOfOr(params goical.Params, name, def string) string {
	if v := firstOf(params, name); v != "" {
		return v
	}
	return def
}
