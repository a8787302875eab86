package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kestrelcal/caldavsync/internal/syncengine"
)

func (s *Store) DirtyEvents(ctx context.Context, calendarURL string) ([]syncengine.DirtyEvent, error) {
	rows, err := s.pool.Query(ctx, `
		select import_id, href, etag, deleted, ics
		from dirty_queue
		where calendar_url = $1
		order by id asc`, calendarURL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []syncengine.DirtyEvent
	for rows.Next() {
		var d syncengine.DirtyEvent
		var ics []byte
		if err := rows.Scan(&d.ImportID, &d.Href, &d.ETag, &d.Deleted, &ics); err != nil {
			return nil, err
		}
		if !d.Deleted {
			d.ICS = ics
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// EnqueueDirty records a local mutation to be pushed on the next Sync
// call, mirroring internal/store/sqlite's method of the same name.
func (s *Store) EnqueueDirty(ctx context.Context, calendarURL string, d syncengine.DirtyEvent) error {
	_, err := s.pool.Exec(ctx, `
		insert into dirty_queue (calendar_url, import_id, href, etag, deleted, ics)
		values ($1, $2, $3, $4, $5, $6)`,
		calendarURL, d.ImportID, d.Href, d.ETag, d.Deleted, d.ICS)
	return err
}

func (s *Store) Upsert(ctx context.Context, calendarURL string, obj syncengine.RemoteObject) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var existingSeq int
	var existingModified *time.Time
	err = tx.QueryRow(ctx, `
		select sequence, modified from calendar_objects
		where calendar_url = $1 and import_id = $2`, calendarURL, obj.ImportID).
		Scan(&existingSeq, &existingModified)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if err == nil {
		if !syncengine.ResolveBySequence(existingSeq, existingModified, obj) {
			return tx.Commit(ctx)
		}
	}

	_, err = tx.Exec(ctx, `
		insert into calendar_objects (calendar_url, import_id, href, etag, uid, sequence, modified, ics, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, now())
		on conflict (calendar_url, import_id) do update set
			href = excluded.href,
			etag = excluded.etag,
			uid = excluded.uid,
			sequence = excluded.sequence,
			modified = excluded.modified,
			ics = excluded.ics,
			updated_at = now()`,
		calendarURL, obj.ImportID, obj.Href, obj.ETag, obj.UID, obj.Sequence, obj.Modified, obj.ICS)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Delete(ctx context.Context, calendarURL string, importID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `delete from calendar_objects where calendar_url = $1 and import_id = $2`, calendarURL, importID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `delete from dirty_queue where calendar_url = $1 and import_id = $2`, calendarURL, importID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) MarkSynced(ctx context.Context, calendarURL string, importID string, href string, etag string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `delete from dirty_queue where calendar_url = $1 and import_id = $2`, calendarURL, importID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		update calendar_objects set href = $1, etag = $2, updated_at = now()
		where calendar_url = $3 and import_id = $4`, href, etag, calendarURL, importID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) MarkConflicted(ctx context.Context, calendarURL string, conflict syncengine.Conflict) error {
	_, err := s.pool.Exec(ctx, `
		insert into conflicts (calendar_url, import_id, local_ics, local_href, local_etag, remote_ics, remote_href, remote_etag)
		values ($1, $2, $3, $4, $5, $6, $7, $8)`,
		calendarURL, conflict.ImportID,
		conflict.Local.ICS, conflict.Local.Href, conflict.Local.ETag,
		conflict.Remote.ICS, conflict.Remote.Href, conflict.Remote.ETag)
	return err
}

func (s *Store) ImportIDForHref(ctx context.Context, calendarURL string, href string) (string, bool, error) {
	var importID string
	err := s.pool.QueryRow(ctx, `
		select import_id from calendar_objects where calendar_url = $1 and href = $2`,
		calendarURL, href).Scan(&importID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return importID, true, nil
}

func (s *Store) Load(ctx context.Context, calendarURL string) (*syncengine.SyncState, error) {
	row := s.pool.QueryRow(ctx, `
		select sync_token, ctag, principal_href, schedule_inbox, schedule_outbox
		from sync_state where calendar_url = $1`, calendarURL)
	state := &syncengine.SyncState{CalendarURL: calendarURL, PerEventETags: map[string]string{}}
	err := row.Scan(&state.SyncToken, &state.CTag, &state.PrincipalHref, &state.ScheduleInbox, &state.ScheduleOutbox)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `select href, etag from per_event_etags where calendar_url = $1`, calendarURL)
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
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		insert into sync_state (calendar_url, sync_token, ctag, principal_href, schedule_inbox, schedule_outbox, updated_at)
		values ($1, $2, $3, $4, $5, $6, now())
		on conflict (calendar_url) do update set
			sync_token = excluded.sync_token,
			ctag = excluded.ctag,
			principal_href = excluded.principal_href,
			schedule_inbox = excluded.schedule_inbox,
			schedule_outbox = excluded.schedule_outbox,
			updated_at = now()`,
		state.CalendarURL, state.SyncToken, state.CTag, state.PrincipalHref, state.ScheduleInbox, state.ScheduleOutbox)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `delete from per_event_etags where calendar_url = $1`, state.CalendarURL); err != nil {
		return err
	}
	for href, etag := range state.PerEventETags {
		if _, err := tx.Exec(ctx, `insert into per_event_etags (calendar_url, href, etag) values ($1, $2, $3)`,
			state.CalendarURL, href, etag); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
