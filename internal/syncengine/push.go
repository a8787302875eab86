package syncengine

import (
	"context"
	"strings"
	"time"

	"github.com/kestrelcal/caldavsync/internal/transport"
	"github.com/kestrelcal/caldavsync/pkg/ical"
)

// push drains the LocalStore's dirty queue in FIFO order (§5 "Ordering"):
// a failed item becomes head again on the next call rather than being
// reordered behind later items, since DirtyEvents always returns the
// current oldest-first queue. Within one call a failed item is not retried;
// the pass moves on to the next item and the failed one is attempted again
// on the next Sync call.
func (e *Engine) push(ctx context.Context, calendarURL string) (pushed int, conflicts []Conflict, err error) {
	dirty, err := e.store.DirtyEvents(ctx, calendarURL)
	if err != nil {
		return 0, nil, err
	}

	for _, d := range dirty {
		conflict, perr := e.pushOne(ctx, calendarURL, d)
		if perr != nil {
			// A persistent failure on one item does not block the rest of
			// the FIFO queue; it stays dirty and is retried on the next
			// Sync call.
			e.logger.Error().Err(perr).Str("import_id", d.ImportID).Msg("push failed, leaving event dirty")
			continue
		}
		if conflict != nil {
			conflicts = append(conflicts, *conflict)
			continue
		}
		pushed++
	}
	return pushed, conflicts, nil
}

func (e *Engine) pushOne(ctx context.Context, calendarURL string, d DirtyEvent) (*Conflict, error) {
	switch {
	case d.Deleted:
		return e.pushDelete(ctx, calendarURL, d)
	case d.Href == "":
		return e.pushCreate(ctx, calendarURL, d)
	default:
		return e.pushUpdate(ctx, calendarURL, d)
	}
}

func (e *Engine) pushCreate(ctx context.Context, calendarURL string, d DirtyEvent) (*Conflict, error) {
	ics, err := ical.NormalizeICS(d.ICS, e.clock())
	if err != nil {
		return nil, err
	}
	uid, _, _, _, err := parseObjectMeta(ics)
	if err != nil {
		return nil, err
	}
	filename, err := SanitizeUID(uid)
	if err != nil {
		return nil, err
	}
	href := strings.TrimRight(calendarURL, "/") + "/" + filename + ".ics"

	res := e.transport.Put(ctx, href, ics, transport.PutPolicy{Kind: transport.IfNoneMatchAny})
	if res.Ok() {
		return nil, e.store.MarkSynced(ctx, calendarURL, d.ImportID, href, res.Value)
	}
	if httpErr, ok := res.Err().(*transport.HTTPError); ok && httpErr.Code == 412 {
		// Someone else already created a resource at this UID; the caller's
		// next pull will learn the server's version (§4.5.3).
		remote, rerr := e.fetchRemote(ctx, href)
		if rerr != nil {
			return nil, rerr
		}
		conflict := &Conflict{ImportID: d.ImportID, Local: d, Remote: *remote}
		return conflict, e.store.MarkConflicted(ctx, calendarURL, *conflict)
	}
	return nil, res.Err()
}

func (e *Engine) pushUpdate(ctx context.Context, calendarURL string, d DirtyEvent) (*Conflict, error) {
	ics, err := ical.NormalizeICS(d.ICS, e.clock())
	if err != nil {
		return nil, err
	}
	res := e.transport.Put(ctx, d.Href, ics, transport.PutPolicy{Kind: transport.IfMatch, ETag: d.ETag})
	if res.Ok() {
		return nil, e.store.MarkSynced(ctx, calendarURL, d.ImportID, d.Href, res.Value)
	}
	if httpErr, ok := res.Err().(*transport.HTTPError); ok && httpErr.Code == 412 {
		remote, rerr := e.fetchRemote(ctx, d.Href)
		if rerr != nil {
			return nil, rerr
		}
		conflict := &Conflict{ImportID: d.ImportID, Local: d, Remote: *remote}
		// Default resolution policy (§4.5.3): server wins, local copy is
		// preserved only as the conflict record.
		if err := e.store.Upsert(ctx, calendarURL, *remote); err != nil {
			return nil, err
		}
		return conflict, e.store.MarkConflicted(ctx, calendarURL, *conflict)
	}
	return nil, res.Err()
}

func (e *Engine) pushDelete(ctx context.Context, calendarURL string, d DirtyEvent) (*Conflict, error) {
	res := e.transport.Delete(ctx, d.Href, d.ETag)
	if !res.Ok() {
		return nil, res.Err()
	}
	return nil, e.store.Delete(ctx, calendarURL, d.ImportID)
}

func (e *Engine) fetchRemote(ctx context.Context, href string) (*RemoteObject, error) {
	res := e.transport.Get(ctx, href)
	if !res.Ok() {
		return nil, res.Err()
	}
	uid, importID, sequence, modified, err := parseObjectMeta(res.Value)
	if err != nil {
		return nil, err
	}
	return &RemoteObject{
		Href:     href,
		ICS:      res.Value,
		ImportID: importID,
		UID:      uid,
		Sequence: sequence,
		Modified: modified,
	}, nil
}

// ResolveBySequence implements §4.5.4: independent of ETag checks, a
// server-fetched event wins over a local one when its SEQUENCE is higher,
// or when SEQUENCE ties and its LAST-MODIFIED is later. Reference LocalStore
// implementations (internal/store/sqlite, internal/store/postgres) call
// this from their Upsert to decide whether an incoming remote object should
// replace what is already stored.
func ResolveBySequence(localSeq int, localModified *time.Time, remote RemoteObject) bool {
	if remote.Sequence != localSeq {
		return remote.Sequence > localSeq
	}
	if localModified == nil || remote.Modified == nil {
		return false
	}
	return remote.Modified.After(*localModified)
}
