package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kestrelcal/caldavsync/internal/syncengine"
)

// Requires a live Postgres reachable at CALDAVSYNC_POSTGRES_TEST_DSN, in
// the same spirit as the teacher's env-driven integration suite
// (test/integration) which only runs against a server it can dial.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("CALDAVSYNC_POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("CALDAVSYNC_POSTGRES_TEST_DSN not set, skipping postgres store tests")
	}
	s, err := New(context.Background(), dsn, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestSaveAndLoadSyncState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cal := "https://example.com/cal-pg-test/"

	state := &syncengine.SyncState{
		CalendarURL:   cal,
		SyncToken:     "tok-1",
		CTag:          "ctag-1",
		PerEventETags: map[string]string{cal + "a.ics": `"etag-a"`},
	}
	if err := s.Save(ctx, state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := s.Load(ctx, cal)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil || loaded.SyncToken != "tok-1" {
		t.Fatalf("loaded = %+v", loaded)
	}
}

func TestUpsertHigherSequenceWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cal := "https://example.com/cal-pg-test-2/"

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
	if err := s.pool.QueryRow(ctx, `select etag, sequence from calendar_objects where calendar_url = $1 and import_id = $2`, cal, "evt-1").Scan(&etag, &seq); err != nil {
		t.Fatalf("select: %v", err)
	}
	if etag != `"v1"` || seq != 1 {
		t.Errorf("stored etag=%q sequence=%d, want the SEQUENCE 1 version to survive", etag, seq)
	}
}
