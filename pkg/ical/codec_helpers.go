package ical

import (
	"strconv"

	goical "github.com/emersion/go-ical"
)

// rawValue returns a property's raw (still wire-escaped) VALUE, or "" if
// absent. Used where we need to perform our own escaping logic (CATEGORIES)
// rather than go-ical's Props.Text convenience unescaping.
func rawValue(comp *goical.Component, name string) string {
	p := comp.Props.Get(name)
	if p == nil {
		return ""
	}
	return p.Value
}

func intValue(comp *goical.Component, name string) int {
	p := comp.Props.Get(name)
	if p == nil {
		return 0
	}
	n, _ := strconv.Atoi(p.Value)
	return n
}

func itoa(n int) string { return strconv.Itoa(n) }

func decodeDateTimeProp(comp *goical.Component, name string, defaultZone *TimeZoneRef, strict bool) (DateTime, bool, error) {
	p := comp.Props.Get(name)
	if p == nil {
		return DateTime{}, false, nil
	}
	dt, err := ParseDateTime(p.Value, p.Params, defaultZone)
	if err != nil {
		if strict {
			return DateTime{}, false, parseErrorf(nil, "%s: %v", name, err)
		}
		return DateTime{}, false, nil
	}
	return dt, true, nil
}

func setDateTimeProp(comp *goical.Component, name string, dt DateTime) {
	prop := goical.NewProp(name)
	prop.Value = dt.ToICalString()
	if dt.IsDate {
		prop.Params.Set(goical.ParamValue, "DATE")
	} else if !dt.IsUTC && dt.Timezone != "" {
		prop.Params.Set("TZID", dt.Timezone)
	}
	comp.Props.Set(prop)
}

func decodeDateList(comp *goical.Component, name string, defaultZone *TimeZoneRef) []DateTime {
	var out []DateTime
	for _, p := range comp.Props.Values(name) {
		for _, raw := range splitUnescapedCommas(p.Value) {
			dt, err := ParseDateTime(raw, p.Params, defaultZone)
			if err == nil {
				out = append(out, dt)
			}
		}
	}
	return out
}

func encodeDateList(comp *goical.Component, name string, dts []DateTime) {
	if len(dts) == 0 {
		return
	}
	prop := goical.NewProp(name)
	values := make([]string, len(dts))
	for i, dt := range dts {
		values[i] = dt.ToICalString()
	}
	prop.Value = joinWithCommas(values)
	if dts[0].IsDate {
		prop.Params.Set(goical.ParamValue, "DATE")
	} else if !dts[0].IsUTC && dts[0].Timezone != "" {
		prop.Params.Set("TZID", dts[0].Timezone)
	}
	comp.Props.Set(prop)
}

func splitUnescapedCommas(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func joinWithCommas(vs []string) string {
	out := vs[0]
	for _, v := range vs[1:] {
		out += "," + v
	}
	return out
}

// collectRaw preserves every property on comp not present in known, so a
// parse→generate round trip never silently drops unmodeled data (X-
// extensions, IMAGE, CONFERENCE, etc.).
func collectRaw(comp *goical.Component, dest map[string][]RawProp, known map[string]bool) {
	for name, props := range comp.Props {
		if known[name] {
			continue
		}
		for _, p := range props {
			params := make(map[string][]string, len(p.Params))
			for k, v := range p.Params {
				params[k] = append([]string(nil), v...)
			}
			dest[name] = append(dest[name], RawProp{Value: p.Value, Params: params})
		}
	}
}

func restoreRaw(comp *goical.Component, raw map[string][]RawProp) {
	for name, props := range raw {
		for _, rp := range props {
			prop := &goical.Prop{Name: name, Value: rp.Value, Params: goical.Params{}}
			for k, v := range rp.Params {
				prop.Params[k] = append([]string(nil), v...)
			}
			comp.Props.Add(prop)
		}
	}
}
