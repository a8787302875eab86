// Package davxml builds the WebDAV/CalDAV request bodies this module's
// transport issues, and parses the <multistatus> responses that come back.
//
// Grounded in the teacher's server-side XML handling (internal/dav/common),
// which favors hand-written templates and tag structs over a general
// DAV library — we keep that shape but invert it: the teacher decodes
// request bodies a server receives, we build them as a client would, and
// we parse responses instead of encoding them.
package davxml

import (
	"fmt"
	"strings"
)

const (
	nsDAV    = "DAV:"
	nsCalDAV = "urn:ietf:params:xml:ns:caldav"
)

// EscapeText XML-escapes the five characters the spec requires escaped in
// any user-supplied text dropped into a request body.
func EscapeText(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}

const xmlHeader = `<?xml version="1.0" encoding="utf-8" ?>` + "\n"

// PropfindPrincipal asks a URL for its current-user-principal.
func PropfindPrincipal() []byte {
	return []byte(xmlHeader + `<D:propfind xmlns:D="DAV:">` +
		`<D:prop><D:current-user-principal/></D:prop>` +
		`</D:propfind>`)
}

// PropfindCalendarHome asks a principal URL for its calendar-home-set.
func PropfindCalendarHome() []byte {
	return []byte(xmlHeader + `<D:propfind xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">` +
		`<D:prop><C:calendar-home-set/></D:prop>` +
		`</D:propfind>`)
}

// PropfindCalendars asks a calendar-home URL (Depth: 1) for the properties
// needed to enumerate and classify its children as calendars.
func PropfindCalendars() []byte {
	return []byte(xmlHeader + `<D:propfind xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav" xmlns:CS="http://calendarserver.org/ns/">` +
		`<D:prop>` +
		`<D:resourcetype/><D:displayname/><D:owner/>` +
		`<C:supported-calendar-component-set/>` +
		`<CS:getctag/>` +
		`</D:prop>` +
		`</D:propfind>`)
}

// PropfindCTagAndSyncToken requests the change-tracking properties for a
// single calendar collection.
func PropfindCTagAndSyncToken() []byte {
	return []byte(xmlHeader + `<D:propfind xmlns:D="DAV:" xmlns:CS="http://calendarserver.org/ns/">` +
		`<D:prop><CS:getctag/><D:sync-token/></D:prop>` +
		`</D:propfind>`)
}

// PropfindScheduleBoxes requests the schedule-inbox/outbox URLs for a
// principal, used by optional scheduling discovery.
func PropfindScheduleBoxes() []byte {
	return []byte(xmlHeader + `<D:propfind xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">` +
		`<D:prop><C:schedule-inbox-URL/><C:schedule-outbox-URL/></D:prop>` +
		`</D:propfind>`)
}

// TimeRange is the inclusive-exclusive UTC window an event query is
// restricted to, both ends formatted as DATE-TIME basic-format UTC.
type TimeRange struct {
	StartUTC string // e.g. "20260101T000000Z"
	EndUTC   string
}

func (tr *TimeRange) xml() string {
	if tr == nil {
		return ""
	}
	return fmt.Sprintf(`<C:time-range start="%s" end="%s"/>`, EscapeText(tr.StartUTC), EscapeText(tr.EndUTC))
}

// CalendarQuery builds a calendar-query REPORT body for VEVENT objects, optionally restricted to a time range, returning full
// calendar-data.
func CalendarQuery(tr *TimeRange) []byte {
	return []byte(xmlHeader + `<C:calendar-query xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">` +
		`<D:prop><D:getetag/><C:calendar-data/></D:prop>` +
		`<C:filter><C:comp-filter name="VCALENDAR"><C:comp-filter name="VEVENT">` + tr.xml() + `</C:comp-filter></C:comp-filter></C:filter>` +
		`</C:calendar-query>`)
}

// CalendarQueryETagOnly builds a calendar-query REPORT body that returns
// only etags (no calendar-data), used to cheaply detect which members
// changed before fetching the changed bodies (e.g. with CalendarMultiget).
func CalendarQueryETagOnly(tr *TimeRange) []byte {
	return []byte(xmlHeader + `<C:calendar-query xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">` +
		`<D:prop><D:getetag/></D:prop>` +
		`<C:filter><C:comp-filter name="VCALENDAR"><C:comp-filter name="VEVENT">` + tr.xml() + `</C:comp-filter></C:comp-filter></C:filter>` +
		`</C:calendar-query>`)
}

// CalendarMultiget builds a calendar-multiget REPORT body fetching
// calendar-data for an explicit set of hrefs.
func CalendarMultiget(hrefs []string) []byte {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<C:calendar-multiget xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">`)
	b.WriteString(`<D:prop><D:getetag/><C:calendar-data/></D:prop>`)
	for _, href := range hrefs {
		b.WriteString(`<D:href>`)
		b.WriteString(EscapeText(href))
		b.WriteString(`</D:href>`)
	}
	b.WriteString(`</C:calendar-multiget>`)
	return []byte(b.String())
}

// SyncCollection builds a sync-collection REPORT body (RFC 6578). An empty
// token requests an initial sync.
func SyncCollection(token string) []byte {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<D:sync-collection xmlns:D="DAV:">`)
	if token == "" {
		b.WriteString(`<D:sync-token/>`)
	} else {
		b.WriteString(`<D:sync-token>`)
		b.WriteString(EscapeText(token))
		b.WriteString(`</D:sync-token>`)
	}
	b.WriteString(`<D:sync-level>1</D:sync-level>`)
	b.WriteString(`<D:prop><D:getetag/><C:calendar-data xmlns:C="urn:ietf:params:xml:ns:caldav"/></D:prop>`)
	b.WriteString(`</D:sync-collection>`)
	return []byte(b.String())
}

// MkcalendarProp holds the WebDAV properties to set when creating a
// calendar collection; empty fields are omitted from the request.
type MkcalendarProp struct {
	DisplayName string
	Description string
	Color       string
	Components  []string // e.g. []string{"VEVENT", "VTODO"}
}

// Mkcalendar builds a MKCALENDAR request body.
func Mkcalendar(props MkcalendarProp) []byte {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<C:mkcalendar xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav" xmlns:IC="http://apple.com/ns/ical/">`)
	b.WriteString(`<D:set><D:prop>`)
	if props.DisplayName != "" {
		fmt.Fprintf(&b, `<D:displayname>%s</D:displayname>`, EscapeText(props.DisplayName))
	}
	if props.Description != "" {
		fmt.Fprintf(&b, `<C:calendar-description>%s</C:calendar-description>`, EscapeText(props.Description))
	}
	if props.Color != "" {
		fmt.Fprintf(&b, `<IC:calendar-color>%s</IC:calendar-color>`, EscapeText(props.Color))
	}
	if len(props.Components) > 0 {
		b.WriteString(`<C:supported-calendar-component-set>`)
		for _, c := range props.Components {
			fmt.Fprintf(&b, `<C:comp name="%s"/>`, EscapeText(c))
		}
		b.WriteString(`</C:supported-calendar-component-set>`)
	}
	b.WriteString(`</D:prop></D:set>`)
	b.WriteString(`</C:mkcalendar>`)
	return []byte(b.String())
}

// Ace is one access control entry to grant or deny in an ACL request.
type Ace struct {
	PrincipalHref string
	Grant         []string
	Deny          []string
}

func privXML(name string) string {
	return fmt.Sprintf(`<D:privilege><D:%s/></D:privilege>`, name)
}

// ACL builds an ACL request body setting the given access control entries.
func ACL(aces []Ace) []byte {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<D:acl xmlns:D="DAV:">`)
	for _, ace := range aces {
		b.WriteString(`<D:ace>`)
		fmt.Fprintf(&b, `<D:principal><D:href>%s</D:href></D:principal>`, EscapeText(ace.PrincipalHref))
		if len(ace.Grant) > 0 {
			b.WriteString(`<D:grant>`)
			for _, p := range ace.Grant {
				b.WriteString(privXML(p))
			}
			b.WriteString(`</D:grant>`)
		}
		if len(ace.Deny) > 0 {
			b.WriteString(`<D:deny>`)
			for _, p := range ace.Deny {
				b.WriteString(privXML(p))
			}
			b.WriteString(`</D:deny>`)
		}
		b.WriteString(`</D:ace>`)
	}
	b.WriteString(`</D:acl>`)
	return []byte(b.String())
}
