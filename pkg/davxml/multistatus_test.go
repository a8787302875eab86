package davxml

import "testing"

func TestParseMultistatusNamespaceAgnostic(t *testing.T) {
	cases := []string{
		`<?xml version="1.0"?><D:multistatus xmlns:D="DAV:"><D:response><D:href>/cal/1.ics</D:href>` +
			`<D:propstat><D:prop><D:getetag>"abc"</D:getetag></D:prop><D:status>HTTP/1.1 200 OK</D:status></D:propstat>` +
			`</D:response></D:multistatus>`,
		`<?xml version="1.0"?><multistatus xmlns="DAV:"><response><href>/cal/1.ics</href>` +
			`<propstat><prop><getetag>"abc"</getetag></prop><status>HTTP/1.1 200 OK</status></propstat>` +
			`</response></multistatus>`,
		`<?xml version="1.0"?><d:multistatus xmlns:d="DAV:"><d:response><d:href>/cal/1.ics</d:href>` +
			`<d:propstat><d:prop><d:getetag>"abc"</d:getetag></d:prop><d:status>HTTP/1.1 200 OK</d:status></d:propstat>` +
			`</d:response></d:multistatus>`,
	}
	for _, raw := range cases {
		ms, err := ParseMultistatus([]byte(raw))
		if err != nil {
			t.Fatalf("ParseMultistatus: %v", err)
		}
		if len(ms.Responses) != 1 {
			t.Fatalf("expected 1 response, got %d", len(ms.Responses))
		}
		r := ms.Responses[0]
		if r.Href != "/cal/1.ics" {
			t.Errorf("Href = %q", r.Href)
		}
		if r.ETag() != "abc" {
			t.Errorf("ETag = %q, want abc (quotes stripped)", r.ETag())
		}
	}
}

func TestMultistatusPropstatPresenceVsValue(t *testing.T) {
	raw := `<?xml version="1.0"?><D:multistatus xmlns:D="DAV:">` +
		`<D:response><D:href>/cal/1.ics</D:href>` +
		`<D:propstat><D:prop><D:getetag>"v1"</D:getetag></D:prop><D:status>HTTP/1.1 200 OK</D:status></D:propstat>` +
		`<D:propstat><D:prop><D:displayname/></D:prop><D:status>HTTP/1.1 404 Not Found</D:status></D:propstat>` +
		`</D:response></D:multistatus>`

	ms, err := ParseMultistatus([]byte(raw))
	if err != nil {
		t.Fatalf("ParseMultistatus: %v", err)
	}
	r := ms.Responses[0]
	if !r.Has("displayname") {
		t.Errorf("displayname should be present even though its propstat 404ed")
	}
	if r.Text("displayname") != "" {
		t.Errorf("displayname value should be empty since its propstat was not 2xx")
	}
	if r.Text("getetag") != `"v1"` {
		t.Errorf("getetag text = %q", r.Text("getetag"))
	}
}

func TestMultistatusResourceTypeCalendar(t *testing.T) {
	raw := `<?xml version="1.0"?><D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">` +
		`<D:response><D:href>/cal/home/personal/</D:href>` +
		`<D:propstat><D:prop><D:resourcetype><D:collection/><C:calendar/></D:resourcetype></D:prop>` +
		`<D:status>HTTP/1.1 200 OK</D:status></D:propstat>` +
		`</D:response></D:multistatus>`

	ms, err := ParseMultistatus([]byte(raw))
	if err != nil {
		t.Fatalf("ParseMultistatus: %v", err)
	}
	r := ms.Responses[0]
	if !r.HasChild("resourcetype", "calendar") {
		t.Errorf("expected resourcetype to contain a calendar child")
	}
}

func TestMultistatusSyncToken(t *testing.T) {
	raw := `<?xml version="1.0"?><D:multistatus xmlns:D="DAV:">` +
		`<D:sync-token>https://example.com/sync/123</D:sync-token>` +
		`</D:multistatus>`
	ms, err := ParseMultistatus([]byte(raw))
	if err != nil {
		t.Fatalf("ParseMultistatus: %v", err)
	}
	if ms.SyncToken != "https://example.com/sync/123" {
		t.Errorf("SyncToken = %q", ms.SyncToken)
	}
}

func TestEscapeText(t *testing.T) {
	got := EscapeText(`<tag attr="v">&'`)
	want := "&lt;tag attr=&quot;v&quot;&gt;&amp;&apos;"
	if got != want {
		t.Errorf("EscapeText = %q, want %q", got, want)
	}
}
