package transport

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
)

// etagEntry is a cached GET response, grounded in the ETagEntry shape from
// the pack's icloud-caldav client: the bytes plus the ETag that fetched
// them, so a later conditional GET can come back 304 and this package
// reuses the body instead of re-downloading it.
type etagEntry struct {
	etag     string
	body     []byte
	cachedAt time.Time
}

// GetCache is an optional conditional-GET cache for single-object fetches
// outside the REPORT/calendar-multiget batch path (e.g. a plain GET on one
// event href). It is not wired into Get by default — a caller that wants
// it constructs one explicitly and calls GetCached, since unconditionally
// caching every GET would grow unbounded for a host fetching many
// different calendars through one transport.
type GetCache struct {
	mu      sync.Mutex
	entries map[string]etagEntry
	ttl     time.Duration
}

func NewGetCache(ttl time.Duration) *GetCache {
	return &GetCache{entries: map[string]etagEntry{}, ttl: ttl}
}

func (c *GetCache) get(url string) (etagEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[url]
	if !ok {
		return etagEntry{}, false
	}
	if c.ttl > 0 && time.Since(e.cachedAt) > c.ttl {
		delete(c.entries, url)
		return etagEntry{}, false
	}
	return e, true
}

func (c *GetCache) set(url string, e etagEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = e
}

// Invalidate drops a cached entry, used after a PUT/DELETE changes the
// resource at url.
func (c *GetCache) Invalidate(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, url)
}

// GetCached performs a conditional GET against rawURL, sending If-None-Match
// when a cached ETag is available and returning the cached body on a 304
// without re-downloading it.
func (t *WebDavTransport) GetCached(ctx context.Context, rawURL string, cache *GetCache) DavResult[[]byte] {
	headers := map[string]string{}
	cached, hasCached := cache.get(rawURL)
	if hasCached && cached.etag != "" {
		headers["If-None-Match"] = `"` + cached.etag + `"`
	}

	res := t.do(ctx, "GET", rawURL, nil, headers)
	if res.Kind == KindNetworkError {
		return DavResult[[]byte]{Kind: KindNetworkError, NetErr: res.NetErr}
	}
	raw := res.Value
	if raw.StatusCode == http.StatusNotModified && hasCached {
		return Success(cached.body)
	}
	if raw.StatusCode >= 300 {
		return HTTPErrorResult[[]byte](raw.StatusCode, httpStatusMessage(raw))
	}

	etag := strings.Trim(raw.Header.Get("ETag"), `"`)
	cache.set(rawURL, etagEntry{etag: etag, body: raw.Body, cachedAt: time.Now()})
	return Success(raw.Body)
}
