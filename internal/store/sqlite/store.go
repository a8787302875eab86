package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kestrelcal/caldavsync/internal/syncengine"
)

const timeLayout = time.RFC3339Nano

// DirtyEvents returns the calendar's push queue oldest-first (§5 Ordering:
// FIFO, by ascending dirty_queue.id).
func (s *Store) DirtyEvents(ctx context.Context, calendarURL string) ([]syncengine.DirtyEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT import_id, href, etag, deleted, ics
		FROM dirty_queue
		WHERE calendar_url = ?
		ORDER BY id ASC`, calendarURL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []syncengine.DirtyEvent
	for rows.Next() {
		var d syncengine.DirtyEvent
		var deleted int
		var ics []byte
		if err := rows.Scan(&d.ImportID, &d.Href, &d.ETag, &deleted, &ics); err != nil {
			return nil, err
		}
		d.Deleted = deleted != 0
		if !d.Deleted {
			d.ICS = ics
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// EnqueueDirty records a local mutation to be pushed on the next Sync
// call. Hosts that author events locally (rather than only mirroring the
// server) call this directly; it is not part of the LocalStore interface
// itself since the engine only ever reads the queue.
func (s *Store) EnqueueDirty(ctx context.Context, calendarURL string, d syncengine.DirtyEvent) error {
	deleted := 0
	if d.Deleted {
		deleted = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dirty_queue (calendar_url, import_id, href, etag, deleted, ics)
		VALUES (?, ?, ?, ?, ?, ?)`,
		calendarURL, d.ImportID, d.Href, d.ETag, deleted, d.ICS)
	return err
}

// Upsert records a remote object the pull phase fetched. When a row
// already exists for the import_id, syncengine.ResolveBySequence decides
// whether the incoming remote version actually supersedes it (§4.5.4):
// a stale REPORT response (e.g. from a racing concurrent pull) must not
// regress the stored sequence.
func (s *Store) Upsert(ctx context.Context, calendarURL string, obj syncengine.RemoteObject) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var existingSeq int
		var existingModified sql.NullString
		err := tx.QueryRow(`
			SELECT sequence, modified FROM calendar_objects
			WHERE calendar_url = ? AND import_id = ?`, calendarURL, obj.ImportID).
			Scan(&existingSeq, &existingModified)
		if err != nil && err != sql.ErrNoRows {
			return err
		}
		if err == nil {
			var localModified *time.Time
			if existingModified.Valid {
				if t, perr := time.Parse(timeLayout, existingModified.String); perr == nil {
					localModified = &t
				}
			}
			if !syncengine.ResolveBySequence(existingSeq, localModified, obj) {
				return nil
			}
		}

		var modified interface{}
		if obj.Modified != nil {
			modified = obj.Modified.Format(timeLayout)
		}
		_, err = tx.Exec(`
			INSERT INTO calendar_objects (calendar_url, import_id, href, etag, uid, sequence, modified, ics, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
			ON CONFLICT(calendar_url, import_id) DO UPDATE SET
				href = excluded.href,
				etag = excluded.etag,
				uid = excluded.uid,
				sequence = excluded.sequence,
				modified = excluded.modified,
				ics = excluded.ics,
				updated_at = datetime('now')`,
			calendarURL, obj.ImportID, obj.Href, obj.ETag, obj.UID, obj.Sequence, modified, obj.ICS)
		return err
	})
}

func (s *Store) Delete(ctx context.Context, calendarURL string, importID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			DELETE FROM calendar_objects WHERE calendar_url = ? AND import_id = ?`,
			calendarURL, importID); err != nil {
			return err
		}
		_, err := tx.Exec(`
			DELETE FROM dirty_queue WHERE calendar_url = ? AND import_id = ?`,
			calendarURL, importID)
		return err
	})
}

func (s *Store) MarkSynced(ctx context.Context, calendarURL string, importID string, href string, etag string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			DELETE FROM dirty_queue WHERE calendar_url = ? AND import_id = ?`,
			calendarURL, importID); err != nil {
			return err
		}
		_, err := tx.Exec(`
			UPDATE calendar_objects SET href = ?, etag = ?, updated_at = datetime('now')
			WHERE calendar_url = ? AND import_id = ?`,
			href, etag, calendarURL, importID)
		return err
	})
}

func (s *Store) MarkConflicted(ctx context.Context, calendarURL string, conflict syncengine.Conflict) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conflicts (calendar_url, import_id, local_ics, local_href, local_etag, remote_ics, remote_href, remote_etag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		calendarURL, conflict.ImportID,
		conflict.Local.ICS, conflict.Local.Href, conflict.Local.ETag,
		conflict.Remote.ICS, conflict.Remote.Href, conflict.Remote.ETag)
	return err
}

func (s *Store) ImportIDForHref(ctx context.Context, calendarURL string, href string) (string, bool, error) {
	var importID string
	err := s.db.QueryRowContext(ctx, `
		SELECT import_id FROM calendar_objects WHERE calendar_url = ? AND href = ?`,
		calendarURL, href).Scan(&importID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return importID, true, nil
}

func (s *Store) Load(ctx context.Context, calendarURL string) (*syncengine.SyncState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT sync_token, ctag, principal_href, schedule_inbox, schedule_outbox
		FROM sync_state WHERE calendar_url = ?`, calendarURL)
	state := &syncengine.SyncState{CalendarURL: calendarURL, PerEventETags: map[string]string{}}
	err := row.Scan(&state.SyncToken, &state.CTag, &state.PrincipalHref, &state.ScheduleInbox, &state.ScheduleOutbox)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT href, etag FROM per_event_etags WHERE calendar_url = ?`, calendarURL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var href, etag string
		if err := rows.Scan(&href, &etag); err != nil {
			return nil, err
		}
		state.PerEventETags[href] = etag
	}
	return state, rows.Err()
}

func (s *Store) Save(ctx context.Context, state *syncengine.SyncState) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO sync_state (calendar_url, sync_token, ctag, principal_href, schedule_inbox, schedule_outbox, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, datetime('now'))
			ON CONFLICT(calendar_url) DO UPDATE SET
				sync_token = excluded.sync_token,
				ctag = excluded.ctag,
				principal_href = excluded.principal_href,
				schedule_inbox = excluded.schedule_inbox,
				schedule_outbox = excluded.schedule_outbox,
				updated_at = datetime('now')`,
			state.CalendarURL, state.SyncToken, state.CTag, state.PrincipalHref, state.ScheduleInbox, state.ScheduleOutbox)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(`DELETE FROM per_event_etags WHERE calendar_url = ?`, state.CalendarURL); err != nil {
			return err
		}
		for href, etag := range state.PerEventETags {
			if _, err := tx.Exec(`
				INSERT INTO per_event_etags (calendar_url, href, etag) VALUES (?, ?, ?)`,
				state.CalendarURL, href, etag); err != nil {
				return err
			}
		}
		return nil
	})
}
