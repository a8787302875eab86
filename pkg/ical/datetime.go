package ical

import (
	"fmt"
	"strings"
	"time"
)

// DateTime carries enough provenance about an RFC 5545 DATE or DATE-TIME
// value to regenerate the identical textual form it was parsed from.
//
// Invariants (enforced by the constructors below, never by the zero value):
//  1. if IsDate, the instant is midnight UTC of the calendar date and
//     Timezone is "".
//  2. if IsUTC, Timezone is "".
//  3. otherwise Timezone names the IANA zone the value is anchored to.
//
// A floating value (no Z, no TZID) is normalized on read: to a UTC value
// when the caller-supplied default zone is nil or UTC, otherwise to a value
// zoned in the default zone. The floating form itself is not kept, so such
// a value is regenerated with a "Z" suffix or a TZID parameter.
type DateTime struct {
	instant  time.Time // always stored normalized to UTC
	Timezone string
	IsUTC    bool
	IsDate   bool
}

// TimestampUTCMillis is the instant expressed as Unix milliseconds.
func (d DateTime) TimestampUTCMillis() int64 {
	return d.instant.UnixMilli()
}

// UTC returns the instant as a time.Time in UTC.
func (d DateTime) UTC() time.Time { return d.instant.UTC() }

// NewDate builds a DATE-valued DateTime from a calendar date, anchored to
// midnight UTC per invariant 1.
func NewDate(year int, month time.Month, day int) DateTime {
	return DateTime{
		instant: time.Date(year, month, day, 0, 0, 0, 0, time.UTC),
		IsDate:  true,
	}
}

// NewUTC builds a DATE-TIME valued DateTime with the "Z" suffix provenance.
func NewUTC(t time.Time) DateTime {
	return DateTime{instant: t.UTC(), IsUTC: true}
}

// NewZoned builds a DATE-TIME valued DateTime anchored to an IANA zone.
func NewZoned(t time.Time, zone string) DateTime {
	return DateTime{instant: t.UTC(), Timezone: zone}
}

// ToICalString renders the value the way the generator would place it on
// the wire (without the property name or TZID parameter, which is a
// parameter, not part of the value).
func (d DateTime) ToICalString() string {
	if d.IsDate {
		return d.instant.Format("20060102")
	}
	if d.IsUTC {
		return d.instant.Format("20060102T150405Z")
	}
	loc := d.location()
	return d.instant.In(loc).Format("20060102T150405")
}

func (d DateTime) location() *time.Location {
	if d.Timezone == "" {
		return time.UTC
	}
	if loc, err := time.LoadLocation(d.Timezone); err == nil {
		return loc
	}
	return time.UTC
}

// ToLocalDate returns the calendar date this value represents, independent
// of the process's local timezone (relevant for DATE values, which must
// read back the same date everywhere).
func (d DateTime) ToLocalDate() (year int, month time.Month, day int) {
	if d.IsDate {
		return d.instant.Date()
	}
	return d.instant.In(d.location()).Date()
}

// TimeZoneRef is a small wrapper so callers can pass either "use UTC" or
// a named default zone into Parse without importing time.Location directly
// at every call site.
type TimeZoneRef struct {
	loc *time.Location
}

func UTCRef() *TimeZoneRef                { return &TimeZoneRef{loc: time.UTC} }
func ZoneRef(loc *time.Location) *TimeZoneRef { return &TimeZoneRef{loc: loc} }

// ParseDateTime decodes a DTSTART/DTEND/etc. value string plus its VALUE and
// TZID parameters into a DateTime. params may be nil.
func ParseDateTime(value string, params map[string][]string, defaultZone *TimeZoneRef) (DateTime, error) {
	valueType := firstParam(params, "VALUE")
	tzid := firstParam(params, "TZID")

	if valueType == "DATE" || (valueType == "" && len(value) == 8 && !strings.Contains(value, "T")) {
		t, err := time.Parse("20060102", value)
		if err != nil {
			return DateTime{}, fmt.Errorf("ical: invalid DATE value %q: %w", value, err)
		}
		return NewDate(t.Year(), t.Month(), t.Day()), nil
	}

	switch {
	case strings.HasSuffix(value, "Z"):
		t, err := time.Parse("20060102T150405Z", value)
		if err != nil {
			return DateTime{}, fmt.Errorf("ical: invalid UTC DATE-TIME %q: %w", value, err)
		}
		return NewUTC(t), nil
	case tzid != "":
		zone := aliasTZID(tzid)
		loc, err := time.LoadLocation(zone)
		if err != nil {
			// Unknown zone: fall back to UTC with the value's wall-clock
			// fields reinterpreted as UTC, per §4.1.6.
			t, perr := time.Parse("20060102T150405", value)
			if perr != nil {
				return DateTime{}, fmt.Errorf("ical: invalid DATE-TIME %q: %w", value, perr)
			}
			return NewUTC(t), nil
		}
		t, err := time.ParseInLocation("20060102T150405", value, loc)
		if err != nil {
			return DateTime{}, fmt.Errorf("ical: invalid DATE-TIME %q: %w", value, err)
		}
		return NewZoned(t, zone), nil
	default:
		// Floating value: normalize to the caller-supplied default zone.
		loc := time.UTC
		zoneName := ""
		if defaultZone != nil && defaultZone.loc != nil {
			loc = defaultZone.loc
			zoneName = loc.String()
		}
		t, err := time.ParseInLocation("20060102T150405", value, loc)
		if err != nil {
			return DateTime{}, fmt.Errorf("ical: invalid floating DATE-TIME %q: %w", value, err)
		}
		if zoneName == "UTC" || zoneName == "" {
			return NewUTC(t), nil
		}
		return NewZoned(t, zoneName), nil
	}
}

func firstParam(params map[string][]string, name string) string {
	if params == nil {
		return ""
	}
	if vs, ok := params[name]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// tzidAliases maps the handful of common non-IANA zone spellings seen in
// the wild (Windows zone names, legacy POSIX zone names) to their IANA
// equivalent. Unknown zones fall back to UTC (see ParseDateTime); no
// diagnostic is reported for the fallback.
var tzidAliases = map[string]string{
	"US/Eastern":              "America/New_York",
	"US/Central":              "America/Chicago",
	"US/Mountain":             "America/Denver",
	"US/Pacific":               "America/Los_Angeles",
	"Pacific Standard Time":   "America/Los_Angeles",
	"Mountain Standard Time":  "America/Denver",
	"Central Standard Time":   "America/Chicago",
	"Eastern Standard Time":   "America/New_York",
	"GMT Standard Time":       "Europe/London",
	"W. Europe Standard Time": "Europe/Berlin",
	"Romance Standard Time":   "Europe/Paris",
	"Tokyo Standard Time":     "Asia/Tokyo",
	"UTC":                     "UTC",
}

func aliasTZID(tzid string) string {
	if canon, ok := tzidAliases[tzid]; ok {
		return canon
	}
	return tzid
}
