package syncengine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kestrelcal/caldavsync/internal/config"
	"github.com/kestrelcal/caldavsync/internal/transport"
)

// fakeStore is an in-memory LocalStore + StateStore used to exercise the
// engine without a real database, in the spirit of the teacher's
// in-process fakes for its own storage interfaces in test/integration.
type fakeStore struct {
	mu        sync.Mutex
	dirty     map[string][]DirtyEvent
	byImport  map[string]RemoteObject // calendarURL+"\x00"+importID -> object
	hrefIndex map[string]string       // calendarURL+"\x00"+href -> importID
	conflicts []Conflict
	state     map[string]*SyncState
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		dirty:     map[string][]DirtyEvent{},
		byImport:  map[string]RemoteObject{},
		hrefIndex: map[string]string{},
		state:     map[string]*SyncState{},
	}
}

func key(calendarURL, id string) string { return calendarURL + "\x00" + id }

func (s *fakeStore) DirtyEvents(ctx context.Context, calendarURL string) ([]DirtyEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DirtyEvent, len(s.dirty[calendarURL]))
	copy(out, s.dirty[calendarURL])
	return out, nil
}

func (s *fakeStore) Upsert(ctx context.Context, calendarURL string, obj RemoteObject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byImport[key(calendarURL, obj.ImportID)] = obj
	s.hrefIndex[key(calendarURL, obj.Href)] = obj.ImportID
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, calendarURL string, importID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byImport, key(calendarURL, importID))
	var remaining []DirtyEvent
	for _, d := range s.dirty[calendarURL] {
		if d.ImportID != importID {
			remaining = append(remaining, d)
		}
	}
	s.dirty[calendarURL] = remaining
	return nil
}

func (s *fakeStore) MarkSynced(ctx context.Context, calendarURL string, importID string, href string, etag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var remaining []DirtyEvent
	for _, d := range s.dirty[calendarURL] {
		if d.ImportID != importID {
			remaining = append(remaining, d)
		}
	}
	s.dirty[calendarURL] = remaining
	s.hrefIndex[key(calendarURL, href)] = importID
	return nil
}

func (s *fakeStore) MarkConflicted(ctx context.Context, calendarURL string, conflict Conflict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts = append(s.conflicts, conflict)
	return nil
}

func (s *fakeStore) ImportIDForHref(ctx context.Context, calendarURL string, href string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.hrefIndex[key(calendarURL, href)]
	return id, ok, nil
}

func (s *fakeStore) Load(ctx context.Context, calendarURL string) (*SyncState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state[calendarURL], nil
}

func (s *fakeStore) Save(ctx context.Context, state *SyncState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *state
	s.state[state.CalendarURL] = &cp
	return nil
}

func (s *fakeStore) addDirty(calendarURL string, d DirtyEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty[calendarURL] = append(s.dirty[calendarURL], d)
}

func testEngineConfig() *config.Config {
	return &config.Config{
		Retry:        config.RetryConfig{Max: 0},
		Response:     config.ResponseConfig{MaxBytes: 10 * 1024 * 1024},
		Redirect:     config.RedirectConfig{Max: 5},
		Capabilities: config.CapabilitiesConfig{TTL: time.Hour},
		SyncRange:    config.SyncRangeConfig{BackDays: 365, ForwardDays: 365},
	}
}

const sampleEvent = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\nBEGIN:VEVENT\r\n" +
	"UID:evt-1\r\nDTSTAMP:20260101T000000Z\r\nDTSTART:20260115T100000Z\r\nSEQUENCE:0\r\n" +
	"SUMMARY:Standup\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

func TestPushCreateSuccess(t *testing.T) {
	var putCalled bool
	mux := http.NewServeMux()
	mux.HandleFunc("/cal/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "OPTIONS":
			w.Header().Set("DAV", "1, 2, calendar-access, sync-collection")
			w.WriteHeader(200)
		case "PUT":
			putCalled = true
			if r.Header.Get("If-None-Match") != "*" {
				t.Errorf("expected If-None-Match: *, got %q", r.Header.Get("If-None-Match"))
			}
			w.Header().Set("ETag", `"v1"`)
			w.WriteHeader(201)
		case "REPORT":
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(207)
			w.Write([]byte(`<?xml version="1.0"?><D:multistatus xmlns:D="DAV:"><D:sync-token>tok-1</D:sync-token></D:multistatus>`))
		default:
			w.WriteHeader(404)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tr := transport.New(nil, nil, testEngineConfig(), zerolog.Nop())
	store := newFakeStore()
	store.addDirty(srv.URL+"/cal/", DirtyEvent{ImportID: "evt-1", ICS: []byte(sampleEvent)})

	eng := New(tr, store, store, testEngineConfig(), zerolog.Nop())
	res, err := eng.Sync(context.Background(), srv.URL+"/cal/")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !putCalled {
		t.Fatal("expected PUT to be issued")
	}
	if res.Pushed != 1 {
		t.Errorf("Pushed = %d, want 1", res.Pushed)
	}
	if len(store.dirty[srv.URL+"/cal/"]) != 0 {
		t.Errorf("expected dirty queue to be drained")
	}
}

func TestPushUpdateConflictRecordsBothVersions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/cal/evt-1.ics", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "PUT":
			if r.Header.Get("If-Match") != `"abc"` {
				t.Errorf("If-Match = %q", r.Header.Get("If-Match"))
			}
			w.WriteHeader(412)
		case "GET":
			w.Write([]byte(sampleEvent))
		}
	})
	mux.HandleFunc("/cal/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "OPTIONS":
			w.Header().Set("DAV", "1, 2, calendar-access")
			w.WriteHeader(200)
		case "PROPFIND":
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(207)
			w.Write([]byte(`<?xml version="1.0"?><D:multistatus xmlns:D="DAV:" xmlns:CS="http://calendarserver.org/ns/">` +
				`<D:response><D:href>/cal/</D:href><D:propstat><D:prop><CS:getctag>ctag-1</CS:getctag></D:prop>` +
				`<D:status>HTTP/1.1 200 OK</D:status></D:propstat></D:response></D:multistatus>`))
		case "REPORT":
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(207)
			w.Write([]byte(`<?xml version="1.0"?><D:multistatus xmlns:D="DAV:"></D:multistatus>`))
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tr := transport.New(nil, nil, testEngineConfig(), zerolog.Nop())
	store := newFakeStore()
	calURL := srv.URL + "/cal/"
	store.addDirty(calURL, DirtyEvent{ImportID: "evt-1", Href: calURL + "evt-1.ics", ETag: "abc", ICS: []byte(sampleEvent)})

	eng := New(tr, store, store, testEngineConfig(), zerolog.Nop())
	res, err := eng.Sync(context.Background(), calURL)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(res.Conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(res.Conflicts))
	}
	if len(store.conflicts) != 1 {
		t.Fatalf("expected conflict recorded in store, got %d", len(store.conflicts))
	}
	c := store.conflicts[0]
	if c.ImportID != "evt-1" || c.Local.ICS == nil || c.Remote.ICS == nil {
		t.Errorf("conflict missing local/remote payloads: %+v", c)
	}
}

func TestSyncTokenInvalidFallsBackToCTag(t *testing.T) {
	reportCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/cal/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "OPTIONS":
			w.Header().Set("DAV", "1, 2, calendar-access, sync-collection")
			w.WriteHeader(200)
		case r.Method == "PROPFIND":
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(207)
			w.Write([]byte(`<?xml version="1.0"?><D:multistatus xmlns:D="DAV:" xmlns:CS="http://calendarserver.org/ns/">` +
				`<D:response><D:href>/cal/</D:href><D:propstat><D:prop><CS:getctag>ctag-2</CS:getctag></D:prop>` +
				`<D:status>HTTP/1.1 200 OK</D:status></D:propstat></D:response></D:multistatus>`))
		case r.Method == "REPORT":
			reportCalls++
			if reportCalls == 1 {
				w.WriteHeader(403)
				fmt.Fprint(w, "<error><valid-sync-token/></error>")
				return
			}
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(207)
			w.Write([]byte(`<?xml version="1.0"?><D:multistatus xmlns:D="DAV:"></D:multistatus>`))
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tr := transport.New(nil, nil, testEngineConfig(), zerolog.Nop())
	store := newFakeStore()
	calURL := srv.URL + "/cal/"

	eng := New(tr, store, store, testEngineConfig(), zerolog.Nop())
	res, err := eng.Sync(context.Background(), calURL)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !res.UsedFallback {
		t.Errorf("expected engine to report fallback usage")
	}
	if reportCalls != 2 {
		t.Errorf("expected sync-collection attempt then calendar-query-etag-only, got %d REPORT calls", reportCalls)
	}
}

func TestSanitizeUIDRejectsTraversal(t *testing.T) {
	if _, err := SanitizeUID("../../etc/passwd"); err == nil {
		t.Fatal("expected traversal UID to be rejected")
	}
	got, err := SanitizeUID("weird uid:with/slash")
	if err == nil {
		t.Fatalf("expected slash-containing UID to be rejected, got %q", got)
	}
	got, err = SanitizeUID("normal.uid+tag@host")
	if err != nil {
		t.Fatalf("SanitizeUID: %v", err)
	}
	if got != "normal.uid_tag@host" {
		t.Errorf("SanitizeUID = %q", got)
	}
}
