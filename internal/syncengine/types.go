// Package syncengine implements §4.5: the sync-token (RFC 6578) and
// ctag+etag-diff reconciliation paths, the push of locally dirty events,
// SEQUENCE-based conflict resolution, and the per-calendar state machine.
//
// Grounded in the teacher's reportSyncCollection handler
// (internal/dav/reports.go), run in the opposite direction: the teacher
// serves a sync-collection REPORT from its own change log, this package
// consumes one from someone else's server and reconciles it against a
// LocalStore the host supplies.
package syncengine

import (
	"context"
	"time"
)

// SyncState is the per-calendar persisted cursor described in §3.6 and
// §6.4. The host is responsible for storing and retrieving it via
// StateStore; this package only reads and writes the struct.
type SyncState struct {
	CalendarURL    string
	SyncToken      string
	CTag           string
	PerEventETags  map[string]string // href -> etag, used only by the ctag fallback path
	PrincipalHref  string
	ScheduleInbox  string
	ScheduleOutbox string
}

// RemoteObject is one calendar object fetched from the server: its href,
// ETag, raw bytes, and the import_id (§4.1.5) derived from parsing it.
type RemoteObject struct {
	Href     string
	ETag     string
	ICS      []byte
	ImportID string
	UID      string
	Sequence int
	Modified *time.Time
}

// DirtyEvent is one locally-modified event the push phase drains from the
// LocalStore's dirty queue.
type DirtyEvent struct {
	ImportID string
	Href     string // "" for a brand-new, never-pushed event
	ETag     string // "" for a new event or one with no known server ETag
	Deleted  bool
	ICS      []byte // nil when Deleted is true
}

// Conflict is surfaced to the caller when a local dirty event collides with
// a concurrent server-side change, per §7's "User-visible behaviour" and
// §8.4's third invariant: the server state is never silently overwritten.
type Conflict struct {
	ImportID string
	Local    DirtyEvent
	Remote   RemoteObject
}

// LocalStore is the injected collaborator §1 keeps external: a host's
// calendar database. The engine never assumes anything about its storage
// format beyond these operations, and assumes (§5) that its methods are
// internally synchronized.
type LocalStore interface {
	// DirtyEvents returns the events queued for push, oldest first (push
	// ordering is FIFO per §5).
	DirtyEvents(ctx context.Context, calendarURL string) ([]DirtyEvent, error)
	// Upsert records a remote object the pull phase fetched, keyed by its
	// import_id.
	Upsert(ctx context.Context, calendarURL string, obj RemoteObject) error
	// Delete removes the local event with the given import_id (a remote
	// delete observed during pull).
	Delete(ctx context.Context, calendarURL string, importID string) error
	// MarkSynced clears a dirty event's flag and records its new href/etag
	// after a successful push.
	MarkSynced(ctx context.Context, calendarURL string, importID string, href string, etag string) error
	// MarkConflicted records that a dirty event collided with a concurrent
	// server change; the local copy is preserved as a conflict record
	// rather than discarded (§4.5.3).
	MarkConflicted(ctx context.Context, calendarURL string, conflict Conflict) error
	// ImportIDForHref resolves a server-reported href back to the local
	// import_id it corresponds to, the "_SYNC_ID/UID mapping" lookup the
	// sync-token delete path needs (§4.5.1 step 2). ok is false when the
	// href was never seen locally.
	ImportIDForHref(ctx context.Context, calendarURL string, href string) (importID string, ok bool, err error)
}

// StateStore is the injected collaborator persisting SyncState across
// process restarts (§1, §6.4). The engine calls Save only after a
// successful pull; on unrecoverable failure the prior state is left
// untouched so the next run can retry (§7).
type StateStore interface {
	Load(ctx context.Context, calendarURL string) (*SyncState, error)
	Save(ctx context.Context, state *SyncState) error
}

// State is the per-calendar sync state machine of §4.5.5. The engine does
// not own timers or a scheduler (§4.5.5's closing line); a caller drives
// transitions by calling Sync.
type State int

const (
	StateUnsynced State = iota
	StateReady
	StateChecking
	StateSyncing
	StateResyncing
	StateError
)

func (s State) String() string {
	switch s {
	case StateUnsynced:
		return "UNSYNCED"
	case StateReady:
		return "READY"
	case StateChecking:
		return "CHECKING"
	case StateSyncing:
		return "SYNCING"
	case StateResyncing:
		return "RESYNCING"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Result summarizes one Sync call: what changed, what was pushed, and any
// conflicts that need caller attention.
type Result struct {
	FinalState   State
	UsedFallback bool // true if the pull used ctag+etag-diff (sync-collection unsupported, or its token rejected)
	Pulled       int
	Deleted      int
	Pushed       int
	Conflicts    []Conflict
}
