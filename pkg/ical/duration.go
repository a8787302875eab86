package ical

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignedDuration is an RFC 5545 §3.3.6 duration value, restricted to the
// grammar this codec accepts: [+-]P[nW | nD][T nH nM nS]. Negative durations
// are legal and used for alarm TRIGGER offsets ("15 minutes before start").
type SignedDuration struct {
	Negative bool
	Weeks    int
	Days     int
	Hours    int
	Minutes  int
	Seconds  int
}

// AsTimeDuration converts to a time.Duration, losing nothing: weeks and
// days are both exact multiples of 24h in this grammar (RFC 5545 durations
// are not calendar-aware).
func (d SignedDuration) AsTimeDuration() time.Duration {
	total := time.Duration(d.Weeks)*7*24*time.Hour +
		time.Duration(d.Days)*24*time.Hour +
		time.Duration(d.Hours)*time.Hour +
		time.Duration(d.Minutes)*time.Minute +
		time.Duration(d.Seconds)*time.Second
	if d.Negative {
		total = -total
	}
	return total
}

// NewSignedDuration builds a SignedDuration from a time.Duration, always
// expressed in days/hours/minutes/seconds (never weeks, to keep formatting
// unambiguous on the round trip).
func NewSignedDuration(td time.Duration) SignedDuration {
	neg := td < 0
	if neg {
		td = -td
	}
	days := int(td / (24 * time.Hour))
	td -= time.Duration(days) * 24 * time.Hour
	hours := int(td / time.Hour)
	td -= time.Duration(hours) * time.Hour
	minutes := int(td / time.Minute)
	td -= time.Duration(minutes) * time.Minute
	seconds := int(td / time.Second)
	return SignedDuration{Negative: neg, Days: days, Hours: hours, Minutes: minutes, Seconds: seconds}
}

// ParseDuration accepts the ISO 8601 duration grammar RFC 5545 restricts
// DURATION/TRIGGER values to: an optional leading sign, "P", then an
// optional week count or day count, then an optional "T" time part.
func ParseDuration(s string) (SignedDuration, error) {
	orig := s
	var d SignedDuration
	if s == "" {
		return d, fmt.Errorf("ical: empty duration")
	}
	if s[0] == '+' || s[0] == '-' {
		d.Negative = s[0] == '-'
		s = s[1:]
	}
	if len(s) == 0 || s[0] != 'P' {
		return d, fmt.Errorf("ical: invalid duration %q: missing P", orig)
	}
	s = s[1:]

	// Week form: nW, nothing else may follow.
	if i := strings.IndexByte(s, 'W'); i >= 0 {
		n, err := strconv.Atoi(s[:i])
		if err != nil {
			return d, fmt.Errorf("ical: invalid duration %q: %w", orig, err)
		}
		if s[i+1:] != "" {
			return d, fmt.Errorf("ical: invalid duration %q: trailing data after week part", orig)
		}
		d.Weeks = n
		return d, nil
	}

	rest := s
	if i := strings.IndexByte(rest, 'D'); i >= 0 {
		n, err := strconv.Atoi(rest[:i])
		if err != nil {
			return d, fmt.Errorf("ical: invalid duration %q: %w", orig, err)
		}
		d.Days = n
		rest = rest[i+1:]
	}

	if rest == "" {
		return d, nil
	}
	if rest[0] != 'T' {
		return d, fmt.Errorf("ical: invalid duration %q: expected T before time part", orig)
	}
	rest = rest[1:]

	if i := strings.IndexByte(rest, 'H'); i >= 0 {
		n, err := strconv.Atoi(rest[:i])
		if err != nil {
			return d, fmt.Errorf("ical: invalid duration %q: %w", orig, err)
		}
		d.Hours = n
		rest = rest[i+1:]
	}
	if i := strings.IndexByte(rest, 'M'); i >= 0 {
		n, err := strconv.Atoi(rest[:i])
		if err != nil {
			return d, fmt.Errorf("ical: invalid duration %q: %w", orig, err)
		}
		d.Minutes = n
		rest = rest[i+1:]
	}
	if i := strings.IndexByte(rest, 'S'); i >= 0 {
		n, err := strconv.Atoi(rest[:i])
		if err != nil {
			return d, fmt.Errorf("ical: invalid duration %q: %w", orig, err)
		}
		d.Seconds = n
		rest = rest[i+1:]
	}
	if rest != "" {
		return d, fmt.Errorf("ical: invalid duration %q: trailing data %q", orig, rest)
	}
	return d, nil
}

// FormatDuration is the inverse of ParseDuration.
func FormatDuration(d SignedDuration) string {
	var sb strings.Builder
	if d.Negative {
		sb.WriteByte('-')
	}
	sb.WriteByte('P')
	if d.Weeks > 0 {
		fmt.Fprintf(&sb, "%dW", d.Weeks)
		return sb.String()
	}
	if d.Days > 0 {
		fmt.Fprintf(&sb, "%dD", d.Days)
	}
	if d.Hours > 0 || d.Minutes > 0 || d.Seconds > 0 {
		sb.WriteByte('T')
		if d.Hours > 0 {
			fmt.Fprintf(&sb, "%dH", d.Hours)
		}
		if d.Minutes > 0 {
			fmt.Fprintf(&sb, "%dM", d.Minutes)
		}
		if d.Seconds > 0 {
			fmt.Fprintf(&sb, "%dS", d.Seconds)
		}
	} else if d.Days == 0 {
		// Zero duration: RFC 5545 examples render this as PT0S.
		sb.WriteString("T0S")
	}
	return sb.String()
}
