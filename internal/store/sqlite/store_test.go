package sqlite

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kestrelcal/caldavsync/internal/syncengine"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New("", zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestEnqueueAndDrainDirtyQueueFIFO(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cal := "https://example.com/cal/"

	for _, id := range []string{"a", "b", "c"} {
		if err := s.EnqueueDirty(ctx, cal, syncengine.DirtyEvent{ImportID: id, ICS: []byte("ics-" + id)}); err != nil {
			t.Fatalf("EnqueueDirty(%s): %v", id, err)
		}
	}

	events, err := s.DirtyEvents(ctx, cal)
	if err != nil {
		t.Fatalf("DirtyEvents: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for i, want := range []string{"a", "b", "c"} {
		if events[i].ImportID != want {
			t.Errorf("events[%d].ImportID = %q, want %q", i, events[i].ImportID, want)
		}
	}

	if err := s.MarkSynced(ctx, cal, "b", cal+"b.ics", `"etag-b"`); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}
	events, err = s.DirtyEvents(ctx, cal)
	if err != nil {
		t.Fatalf("DirtyEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events after MarkSynced, want 2", len(events))
	}
}

func TestUpsertHigherSequenceWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cal := "https://example.com/cal/"

	old := syncengine.RemoteObject{ImportID: "evt-1", Href: cal + "evt-1.ics", ETag: `"v1"`, UID: "evt-1", Sequence: 1, ICS: []byte("seq1")}
	if err := s.Upsert(ctx, cal, old); err != nil {
		t.Fatalf("Upsert(old): %v", err)
	}

	stale := syncengine.RemoteObject{ImportID: "evt-1", Href: cal + "evt-1.ics", ETag: `"stale"`, UID: "evt-1", Sequence: 0, ICS: []byte("seq0")}
	if err := s.Upsert(ctx, cal, stale); err != nil {
		t.Fatalf("Upsert(stale): %v", err)
	}

	id, ok, err := s.ImportIDForHref(ctx, cal, cal+"evt-1.ics")
	if err != nil || !ok || id != "evt-1" {
		t.Fatalf("ImportIDForHref = %q, %v, %v", id, ok, err)
	}

	var etag string
	var seq int
	if err := s.db.QueryRowContext(ctx, `SELECT etag, sequence FROM calendar_objects WHERE calendar_url = ? AND import_id = ?`, cal, "evt-1").Scan(&etag, &seq); err != nil {
		t.Fatalf("select: %v", err)
	}
	if etag != `"v1"` || seq != 1 {
		t.Errorf("stored etag=%q sequence=%d, want the SEQUENCE 1 version to survive", etag, seq)
	}
}

func TestSaveAndLoadSyncState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cal := "https://example.com/cal/"

	state := &syncengine.SyncState{
		CalendarURL:   cal,
		SyncToken:     "tok-1",
		CTag:          "ctag-1",
		PrincipalHref: "/principals/users/alice/",
		PerEventETags: map[string]string{cal + "a.ics": `"etag-a"`},
	}
	if err := s.Save(ctx, state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := s.Load(ctx, cal)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil {
		t.Fatal("Load returned nil state")
	}
	if loaded.SyncToken != "tok-1" || loaded.CTag != "ctag-1" {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.PerEventETags[cal+"a.ics"] != `"etag-a"` {
		t.Errorf("PerEventETags = %v", loaded.PerEventETags)
	}
}

func TestLoadUnknownCalendarReturnsNil(t *testing.T) {
	s := newTestStore(t)
	state, err := s.Load(context.Background(), "https://example.com/unknown/")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state != nil {
		t.Errorf("expected nil state for unknown calendar, got %+v", state)
	}
}

func TestMarkConflictedRecordsBothVersions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cal := "https://example.com/cal/"

	conflict := syncengine.Conflict{
		ImportID: "evt-1",
		Local:    syncengine.DirtyEvent{ImportID: "evt-1", Href: cal + "evt-1.ics", ETag: `"local"`, ICS: []byte("local-ics")},
		Remote:   syncengine.RemoteObject{ImportID: "evt-1", Href: cal + "evt-1.ics", ETag: `"remote"`, ICS: []byte("remote-ics")},
	}
	if err := s.MarkConflicted(ctx, cal, conflict); err != nil {
		t.Fatalf("MarkConflicted: %v", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conflicts WHERE calendar_url = ?`, cal).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("conflicts rows = %d, want 1", count)
	}

	var localICS, remoteICS []byte
	if err := s.db.QueryRowContext(ctx, `SELECT local_ics, remote_ics FROM conflicts WHERE calendar_url = ?`, cal).Scan(&localICS, &remoteICS); err != nil {
		t.Fatalf("select: %v", err)
	}
	if string(localICS) != "local-ics" || string(remoteICS) != "remote-ics" {
		t.Errorf("local_ics=%q remote_ics=%q, want both versions stored", localICS, remoteICS)
	}
}
