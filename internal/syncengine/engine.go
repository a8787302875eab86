package syncengine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kestrelcal/caldavsync/internal/config"
	"github.com/kestrelcal/caldavsync/internal/transport"
)

// Engine drives the §4.5.5 state machine for one calendar collection. One
// Engine instance is single-threaded over its calendar (§5): callers
// wanting to sync N calendars concurrently run N Engines, each bound to a
// different calendarURL, never share one across goroutines for the same
// calendar.
type Engine struct {
	transport *transport.WebDavTransport
	store     LocalStore
	states    StateStore
	cfg       *config.Config
	logger    zerolog.Logger
	clock     func() time.Time
}

func New(t *transport.WebDavTransport, store LocalStore, states StateStore, cfg *config.Config, logger zerolog.Logger) *Engine {
	return &Engine{
		transport: t,
		store:     store,
		states:    states,
		cfg:       cfg,
		logger:    logger.With().Str("component", "syncengine").Logger(),
		clock:     time.Now,
	}
}

// Sync drives one full state-machine pass for calendarURL: push the dirty
// queue, then pull server changes via sync-collection, falling back to the
// ctag+etag-diff path when sync-collection is unsupported or its token was
// rejected as invalid. On any unrecoverable error the prior SyncState is
// left untouched (§7) so the next call can retry.
func (e *Engine) Sync(ctx context.Context, calendarURL string) (*Result, error) {
	state, err := e.states.Load(ctx, calendarURL)
	if err != nil {
		return nil, fmt.Errorf("syncengine: loading state: %w", err)
	}
	if state == nil {
		state = &SyncState{CalendarURL: calendarURL, PerEventETags: map[string]string{}}
	}
	if state.PerEventETags == nil {
		state.PerEventETags = map[string]string{}
	}

	result := &Result{FinalState: StateSyncing}

	pushed, conflicts, err := e.push(ctx, calendarURL)
	if err != nil {
		result.FinalState = StateError
		return result, fmt.Errorf("syncengine: push: %w", err)
	}
	result.Pushed = pushed
	result.Conflicts = append(result.Conflicts, conflicts...)

	caps := e.capabilities(ctx, calendarURL)

	var outcome *pullOutcome
	if caps == nil || caps.SyncCollection {
		outcome, err = e.pullSyncToken(ctx, calendarURL, state)
		if err != nil && isSyncTokenInvalid(err) {
			e.logger.Debug().Str("calendar", calendarURL).Msg("sync token invalid, falling back to ctag+etag-diff")
			result.FinalState = StateResyncing
			result.UsedFallback = true
			outcome, err = e.pullCTagFallback(ctx, calendarURL, state)
		}
	} else {
		result.UsedFallback = true
		outcome, err = e.pullCTagFallback(ctx, calendarURL, state)
	}
	if err != nil {
		result.FinalState = StateError
		return result, fmt.Errorf("syncengine: pull: %w", err)
	}

	result.Pulled = outcome.Upserted
	result.Deleted = outcome.Deleted

	if outcome.NewSyncToken != "" {
		state.SyncToken = outcome.NewSyncToken
	}
	if outcome.NewCTag != "" {
		state.CTag = outcome.NewCTag
	}
	if outcome.PerEventETags != nil {
		state.PerEventETags = outcome.PerEventETags
	}
	if err := e.states.Save(ctx, state); err != nil {
		result.FinalState = StateError
		return result, fmt.Errorf("syncengine: saving state: %w", err)
	}

	result.FinalState = StateReady
	return result, nil
}

// capabilities best-effort queries OPTIONS on the calendar URL itself;
// a failure is treated the same as "capabilities unknown", which the
// Sync caller handles by preferring the sync-token path (it is cheaper to
// attempt and fall back than to skip it outright).
func (e *Engine) capabilities(ctx context.Context, calendarURL string) *transport.Capabilities {
	res := e.transport.Options(ctx, calendarURL)
	if !res.Ok() {
		return nil
	}
	return res.Value
}
