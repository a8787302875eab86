package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kestrelcal/caldavsync/internal/config"
	"github.com/kestrelcal/caldavsync/internal/transport"
)

func testConfig() *config.Config {
	return &config.Config{
		Retry:        config.RetryConfig{Max: 0},
		Response:     config.ResponseConfig{MaxBytes: 10 * 1024 * 1024},
		Redirect:     config.RedirectConfig{Max: 5},
		Capabilities: config.CapabilitiesConfig{TTL: time.Hour},
		WellKnown:    config.WellKnownConfig{Enabled: true},
	}
}

func TestDiscoverWalksPrincipalHomeAndCalendars(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(207)
		switch r.URL.Path {
		case "/":
			w.Write([]byte(`<?xml version="1.0"?><D:multistatus xmlns:D="DAV:">` +
				`<D:response><D:href>/</D:href><D:propstat><D:prop>` +
				`<D:current-user-principal><D:href>/principals/alice/</D:href></D:current-user-principal>` +
				`</D:prop><D:status>HTTP/1.1 200 OK</D:status></D:propstat></D:response>` +
				`</D:multistatus>`))
		case "/principals/alice/":
			w.Write([]byte(`<?xml version="1.0"?><D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">` +
				`<D:response><D:href>/principals/alice/</D:href><D:propstat><D:prop>` +
				`<C:calendar-home-set><D:href>/calendars/alice/</D:href></C:calendar-home-set>` +
				`</D:prop><D:status>HTTP/1.1 200 OK</D:status></D:propstat></D:response>` +
				`</D:multistatus>`))
		case "/calendars/alice/":
			w.Write([]byte(`<?xml version="1.0"?><D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">` +
				`<D:response><D:href>/calendars/alice/</D:href><D:propstat><D:prop>` +
				`<D:resourcetype><D:collection/></D:resourcetype>` +
				`</D:prop><D:status>HTTP/1.1 200 OK</D:status></D:propstat></D:response>` +
				`<D:response><D:href>/calendars/alice/personal/</D:href><D:propstat><D:prop>` +
				`<D:resourcetype><D:collection/><C:calendar/></D:resourcetype>` +
				`<D:displayname>Personal</D:displayname>` +
				`</D:prop><D:status>HTTP/1.1 200 OK</D:status></D:propstat></D:response>` +
				`<D:response><D:href>/calendars/alice/inbox/</D:href><D:propstat><D:prop>` +
				`<D:resourcetype><D:collection/><C:calendar/></D:resourcetype>` +
				`<D:displayname>Inbox</D:displayname>` +
				`</D:prop><D:status>HTTP/1.1 200 OK</D:status></D:propstat></D:response>` +
				`</D:multistatus>`))
		default:
			w.WriteHeader(404)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tr := transport.New(nil, nil, testConfig(), zerolog.Nop())
	disc := New(tr, nil, testConfig(), zerolog.Nop())

	acc, err := disc.Discover(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if !strings.Contains(acc.PrincipalURL, "/principals/alice/") {
		t.Errorf("PrincipalURL = %q", acc.PrincipalURL)
	}
	if !strings.Contains(acc.CalendarHomeURL, "/calendars/alice/") {
		t.Errorf("CalendarHomeURL = %q", acc.CalendarHomeURL)
	}
	if len(acc.Calendars) != 1 {
		t.Fatalf("expected exactly 1 calendar (inbox and home itself skipped), got %d: %+v", len(acc.Calendars), acc.Calendars)
	}
	if acc.Calendars[0].DisplayName != "Personal" {
		t.Errorf("Calendars[0].DisplayName = %q", acc.Calendars[0].DisplayName)
	}
}

func TestShouldSkipCalendar(t *testing.T) {
	cases := []struct {
		href, name string
		skip       bool
	}{
		{"/calendars/alice/personal/", "Personal", false},
		{"/calendars/alice/inbox/", "Inbox", true},
		{"/calendars/alice/outbox/", "Outbox", true},
		{"/calendars/alice/notification/", "", true},
		{"/calendars/alice/tasks/", "My Tasks", true},
		{"/calendars/alice/work/", "Reminders List", true},
	}
	for _, c := range cases {
		if got := shouldSkipCalendar(c.href, c.name); got != c.skip {
			t.Errorf("shouldSkipCalendar(%q, %q) = %v, want %v", c.href, c.name, got, c.skip)
		}
	}
}
