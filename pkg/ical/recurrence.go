package ical

import (
	"fmt"
	"strings"

	"github.com/teambition/rrule-go"
)

// Frequency mirrors RFC 5545 §3.3.10's FREQ values.
type Frequency string

const (
	Secondly Frequency = "SECONDLY"
	Minutely Frequency = "MINUTELY"
	Hourly   Frequency = "HOURLY"
	Daily    Frequency = "DAILY"
	Weekly   Frequency = "WEEKLY"
	Monthly  Frequency = "MONTHLY"
	Yearly   Frequency = "YEARLY"
)

// RecurrenceRule is the parsed, validated structure of an RRULE value. It
// never expands to concrete occurrences — that's explicitly out of scope
// for this codec — it only parses and structurally validates.
type RecurrenceRule struct {
	Freq       Frequency
	Interval   int
	Count      int // 0 means unset
	Until      *DateTime
	BySetPos   []int
	ByMonth    []int
	ByMonthDay []int
	ByYearDay  []int
	ByWeekNo   []int
	ByWeekday  []Weekday
	ByHour     []int
	ByMinute   []int
	BySecond   []int
	WeekStart  string

	raw string // original RRULE value, preserved for exact round-trip
}

// Weekday is a BYDAY element: an optional ordinal ("2" in "2MO", "-1" in
// "-1FR") plus the two-letter day code.
type Weekday struct {
	Ordinal int // 0 means "every occurrence of this weekday"
	Day     string
}

var optionToFreq = map[rrule.Frequency]Frequency{
	rrule.SECONDLY: Secondly,
	rrule.MINUTELY: Minutely,
	rrule.HOURLY:   Hourly,
	rrule.DAILY:    Daily,
	rrule.WEEKLY:   Weekly,
	rrule.MONTHLY:  Monthly,
	rrule.YEARLY:   Yearly,
}

// ParseRRule structurally parses and validates an RRULE value (everything
// after "RRULE:"). It relies on rrule-go purely for grammar parsing — no
// DTSTART is ever supplied and occurrences are never expanded.
func ParseRRule(value string) (*RecurrenceRule, error) {
	opt, err := rrule.StrToROption("RRULE:" + value)
	if err != nil {
		return nil, fmt.Errorf("ical: invalid RRULE %q: %w", value, err)
	}

	freq, ok := optionToFreq[opt.Freq]
	if !ok {
		return nil, fmt.Errorf("ical: invalid RRULE %q: unrecognized FREQ", value)
	}

	if opt.Count > 0 && !opt.Until.IsZero() {
		return nil, fmt.Errorf("ical: invalid RRULE %q: COUNT and UNTIL are mutually exclusive", value)
	}

	rr := &RecurrenceRule{
		Freq:       freq,
		Interval:   opt.Interval,
		Count:      opt.Count,
		BySetPos:   opt.Bysetpos,
		ByMonth:    opt.Bymonth,
		ByMonthDay: opt.Bymonthday,
		ByYearDay:  opt.Byyearday,
		ByWeekNo:   opt.Byweekno,
		ByHour:     opt.Byhour,
		ByMinute:   opt.Byminute,
		BySecond:   opt.Bysecond,
		raw:        value,
	}
	if rr.Interval == 0 {
		rr.Interval = 1
	}
	for _, wd := range opt.Byweekday {
		rr.ByWeekday = append(rr.ByWeekday, Weekday{Ordinal: wd.N(), Day: weekdayCode(wd)})
	}
	if !opt.Until.IsZero() {
		until := NewUTC(opt.Until)
		rr.Until = &until
	}

	if err := rr.validateStructure(); err != nil {
		return nil, err
	}
	return rr, nil
}

// validateStructure applies the handful of "this BYxxx only makes sense for
// that FREQ" rules RFC 5545 §3.3.10 documents (e.g. BYMONTHDAY is undefined
// together with WEEKLY).
func (rr *RecurrenceRule) validateStructure() error {
	if rr.Interval < 1 {
		return fmt.Errorf("ical: invalid RRULE: INTERVAL must be >= 1")
	}
	if len(rr.ByMonthDay) > 0 && rr.Freq == Weekly {
		return fmt.Errorf("ical: invalid RRULE: BYMONTHDAY is not defined for FREQ=WEEKLY")
	}
	if len(rr.ByYearDay) > 0 && (rr.Freq == Daily || rr.Freq == Weekly || rr.Freq == Monthly) {
		return fmt.Errorf("ical: invalid RRULE: BYYEARDAY is only valid for FREQ=YEARLY/HOURLY/MINUTELY/SECONDLY")
	}
	if len(rr.ByWeekNo) > 0 && rr.Freq != Yearly {
		return fmt.Errorf("ical: invalid RRULE: BYWEEKNO is only valid for FREQ=YEARLY")
	}
	if len(rr.BySetPos) > 0 && len(rr.ByMonth) == 0 && len(rr.ByMonthDay) == 0 &&
		len(rr.ByYearDay) == 0 && len(rr.ByWeekNo) == 0 && len(rr.ByWeekday) == 0 &&
		len(rr.ByHour) == 0 && len(rr.ByMinute) == 0 && len(rr.BySecond) == 0 {
		return fmt.Errorf("ical: invalid RRULE: BYSETPOS requires another BYxxx rule")
	}
	return nil
}

// ToICalString renders the RRULE value text. When the rule was parsed
// rather than constructed, the original text is returned verbatim so an
// unmodeled extension parameter is never lost.
func (rr *RecurrenceRule) ToICalString() string {
	if rr.raw != "" {
		return rr.raw
	}
	var parts []string
	parts = append(parts, "FREQ="+string(rr.Freq))
	if rr.Interval > 1 {
		parts = append(parts, fmt.Sprintf("INTERVAL=%d", rr.Interval))
	}
	if rr.Count > 0 {
		parts = append(parts, fmt.Sprintf("COUNT=%d", rr.Count))
	}
	if rr.Until != nil {
		parts = append(parts, "UNTIL="+rr.Until.ToICalString())
	}
	parts = append(parts, intListParam("BYMONTH", rr.ByMonth)...)
	parts = append(parts, intListParam("BYMONTHDAY", rr.ByMonthDay)...)
	parts = append(parts, intListParam("BYYEARDAY", rr.ByYearDay)...)
	parts = append(parts, intListParam("BYWEEKNO", rr.ByWeekNo)...)
	parts = append(parts, intListParam("BYHOUR", rr.ByHour)...)
	parts = append(parts, intListParam("BYMINUTE", rr.ByMinute)...)
	parts = append(parts, intListParam("BYSECOND", rr.BySecond)...)
	parts = append(parts, intListParam("BYSETPOS", rr.BySetPos)...)
	if len(rr.ByWeekday) > 0 {
		days := make([]string, len(rr.ByWeekday))
		for i, wd := range rr.ByWeekday {
			if wd.Ordinal != 0 {
				days[i] = fmt.Sprintf("%d%s", wd.Ordinal, wd.Day)
			} else {
				days[i] = wd.Day
			}
		}
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	}
	return strings.Join(parts, ";")
}

func intListParam(name string, vals []int) []string {
	if len(vals) == 0 {
		return nil
	}
	strs := make([]string, len(vals))
	for i, v := range vals {
		strs[i] = fmt.Sprintf("%d", v)
	}
	return []string{name + "=" + strings.Join(strs, ",")}
}

func weekdayCode(wd rrule.Weekday) string {
	names := []string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}
	return names[wd.Weekday()]
}
