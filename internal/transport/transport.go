package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kestrelcal/caldavsync/internal/config"
	"github.com/kestrelcal/caldavsync/pkg/davxml"
)

const userAgent = "caldavsync/1.0"

// PutPolicyKind selects the conditional-update header a PUT carries (§4.3.2).
type PutPolicyKind int

const (
	Unconditional PutPolicyKind = iota
	IfNoneMatchAny
	IfMatch
)

type PutPolicy struct {
	Kind PutPolicyKind
	ETag string // only meaningful for IfMatch
}

// WebDavTransport implements the operation surface of §4.3: one function
// per verb, each returning a DavResult, wrapping a single retry/backoff
// policy, manual redirect-preserving authentication, and a response size
// ceiling. Grounded in the teacher's internal/dav request handling,
// mirrored into the client direction it was never written for.
type WebDavTransport struct {
	httpClient *http.Client
	cred       Credential
	cfg        *config.Config
	caps       *capabilityCache
	logger     zerolog.Logger
}

func New(httpClient *http.Client, cred Credential, cfg *config.Config, logger zerolog.Logger) *WebDavTransport {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	// Redirects are handled manually (§4.3.4); the stdlib client must not
	// follow them on its own or it will silently drop Authorization across
	// hosts.
	httpClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &WebDavTransport{
		httpClient: httpClient,
		cred:       cred,
		cfg:        cfg,
		caps:       newCapabilityCache(cfg.Capabilities.TTL),
		logger:     logging_component(logger),
	}
}

func logging_component(base zerolog.Logger) zerolog.Logger {
	return base.With().Str("component", "transport").Logger()
}

type rawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func isRetryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

func isTransientErr(err error) bool {
	var tlsErr tls.RecordHeaderError
	if errors.As(err, &tlsErr) {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Err != nil && strings.Contains(strings.ToLower(urlErr.Err.Error()), "tls") {
			return false
		}
		return true
	}
	return true
}

func backoffDelay(attempt int, retryAfter string) time.Duration {
	if retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil {
			return time.Duration(secs) * time.Second
		}
		return 30 * time.Second
	}
	d := 500 * time.Millisecond * time.Duration(1<<uint(attempt))
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	return d
}

// do issues one logical request, applying retry/backoff and manual
// redirect handling. It never returns a raw Go error: every failure is
// already folded into DavResult by the time it reaches a caller.
func (t *WebDavTransport) do(ctx context.Context, method, rawURL string, body []byte, headers map[string]string) DavResult[*rawResponse] {
	maxRetries := t.cfg.Retry.Max
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := t.doOnce(ctx, method, rawURL, body, headers)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return NetworkErrorResult[*rawResponse](fmt.Errorf("cancelled: %w", ctx.Err()))
			}
			if !isTransientErr(err) || attempt == maxRetries {
				return NetworkErrorResult[*rawResponse](err)
			}
			select {
			case <-ctx.Done():
				return NetworkErrorResult[*rawResponse](fmt.Errorf("cancelled: %w", ctx.Err()))
			case <-time.After(backoffDelay(attempt, "")):
			}
			continue
		}

		if isRetryableStatus(resp.StatusCode) && attempt < maxRetries {
			select {
			case <-ctx.Done():
				return NetworkErrorResult[*rawResponse](fmt.Errorf("cancelled: %w", ctx.Err()))
			case <-time.After(backoffDelay(attempt, resp.Header.Get("Retry-After"))):
			}
			continue
		}
		return Success(resp)
	}
	return NetworkErrorResult[*rawResponse](lastErr)
}

// doOnce performs a single request attempt including manual redirect
// following, up to cfg.Redirect.Max hops, re-applying Authorization on
// every hop even across hosts (§4.3.4).
func (t *WebDavTransport) doOnce(ctx context.Context, method, rawURL string, body []byte, headers map[string]string) (*rawResponse, error) {
	currentURL := rawURL
	var currentBody []byte = body

	for redirects := 0; ; redirects++ {
		req, err := http.NewRequestWithContext(ctx, method, currentURL, bytes.NewReader(currentBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		if t.cred != nil {
			t.cred.Apply(req)
		}

		resp, err := t.httpClient.Do(req)
		if err != nil {
			return nil, err
		}

		if loc := resp.Header.Get("Location"); isRedirectStatus(resp.StatusCode) && loc != "" {
			resp.Body.Close()
			if redirects >= t.cfg.Redirect.Max {
				return nil, fmt.Errorf("transport: exceeded max redirects (%d)", t.cfg.Redirect.Max)
			}
			next, err := resolveRedirect(currentURL, loc)
			if err != nil {
				return nil, err
			}
			currentURL = next
			continue
		}

		raw, err := t.readBody(resp)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		return &rawResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: raw}, nil
	}
}

func isRedirectStatus(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

func resolveRedirect(base, location string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	target, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(target).String(), nil
}

// readBody enforces the response size ceiling (§4.3.5): a Content-Length
// above the limit short-circuits without reading, otherwise the body is
// read through a limited reader and an extra byte is checked for to catch
// servers that omit or lie about Content-Length.
func (t *WebDavTransport) readBody(resp *http.Response) ([]byte, error) {
	maxBytes := t.cfg.Response.MaxBytes
	if resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("response too large: content-length %d exceeds %d", resp.ContentLength, maxBytes)
	}
	limited := io.LimitReader(resp.Body, maxBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("response too large: exceeded %d bytes", maxBytes)
	}
	return data, nil
}

func davHeaders(depth string, preferMinimal bool) map[string]string {
	h := map[string]string{
		"Content-Type": "application/xml; charset=utf-8",
	}
	if depth != "" {
		h["Depth"] = depth
	}
	if preferMinimal {
		h["Prefer"] = "return=minimal"
	}
	return h
}

func (t *WebDavTransport) Propfind(ctx context.Context, rawURL string, body []byte, depth string, preferMinimal bool) DavResult[*davxml.Multistatus] {
	return t.multistatusVerb(ctx, "PROPFIND", rawURL, body, depth, preferMinimal)
}

func (t *WebDavTransport) Report(ctx context.Context, rawURL string, body []byte, depth string, preferMinimal bool) DavResult[*davxml.Multistatus] {
	return t.multistatusVerb(ctx, "REPORT", rawURL, body, depth, preferMinimal)
}

func (t *WebDavTransport) multistatusVerb(ctx context.Context, method, rawURL string, body []byte, depth string, preferMinimal bool) DavResult[*davxml.Multistatus] {
	res := t.do(ctx, method, rawURL, body, davHeaders(depth, preferMinimal))
	switch res.Kind {
	case KindNetworkError:
		return DavResult[*davxml.Multistatus]{Kind: KindNetworkError, NetErr: res.NetErr}
	case KindSuccess:
		raw := res.Value
		if raw.StatusCode >= 300 {
			return HTTPErrorResult[*davxml.Multistatus](raw.StatusCode, httpStatusMessage(raw))
		}
		ms, err := davxml.ParseMultistatus(raw.Body)
		if err != nil {
			return ParseErrorResult[*davxml.Multistatus](err.Error(), raw.Body)
		}
		return Success(ms)
	default:
		panic("transport: unreachable")
	}
}

func httpStatusMessage(raw *rawResponse) string {
	if len(raw.Body) > 0 && len(raw.Body) < 2048 {
		return fmt.Sprintf("%d: %s", raw.StatusCode, string(raw.Body))
	}
	return fmt.Sprintf("http status %d", raw.StatusCode)
}

// Options issues an OPTIONS request and parses server capabilities,
// serving a cached result when available. A 405 response is mapped to
// UNKNOWN capabilities rather than an error — some reverse proxies in
// front of CalDAV servers reject OPTIONS outright.
func (t *WebDavTransport) Options(ctx context.Context, rawURL string) DavResult[*Capabilities] {
	if cached, ok := t.caps.Get(rawURL); ok {
		return Success(cached)
	}

	res := t.do(ctx, "OPTIONS", rawURL, nil, nil)
	if res.Kind == KindNetworkError {
		return DavResult[*Capabilities]{Kind: KindNetworkError, NetErr: res.NetErr}
	}
	raw := res.Value
	if raw.StatusCode == http.StatusMethodNotAllowed {
		caps := &Capabilities{Provider: ProviderUnknown}
		t.caps.Set(rawURL, caps)
		return Success(caps)
	}
	if raw.StatusCode >= 300 {
		return HTTPErrorResult[*Capabilities](raw.StatusCode, httpStatusMessage(raw))
	}
	caps := parseCapabilitiesFromHeader(raw.Header, rawURL)
	t.caps.Set(rawURL, caps)
	return Success(caps)
}

func (t *WebDavTransport) Get(ctx context.Context, rawURL string) DavResult[[]byte] {
	res := t.do(ctx, "GET", rawURL, nil, nil)
	if res.Kind == KindNetworkError {
		return DavResult[[]byte]{Kind: KindNetworkError, NetErr: res.NetErr}
	}
	raw := res.Value
	if raw.StatusCode >= 300 {
		return HTTPErrorResult[[]byte](raw.StatusCode, httpStatusMessage(raw))
	}
	return Success(raw.Body)
}

// Put uploads an iCalendar resource under the given conditional-update
// policy and returns the new ETag (stripped of quotes) on success.
func (t *WebDavTransport) Put(ctx context.Context, rawURL string, body []byte, policy PutPolicy) DavResult[string] {
	headers := map[string]string{"Content-Type": "text/calendar; charset=utf-8"}
	switch policy.Kind {
	case IfNoneMatchAny:
		headers["If-None-Match"] = "*"
	case IfMatch:
		headers["If-Match"] = `"` + policy.ETag + `"`
	}

	res := t.do(ctx, "PUT", rawURL, body, headers)
	if res.Kind == KindNetworkError {
		return DavResult[string]{Kind: KindNetworkError, NetErr: res.NetErr}
	}
	raw := res.Value
	switch raw.StatusCode {
	case http.StatusPreconditionFailed:
		if policy.Kind == IfNoneMatchAny {
			return HTTPErrorResult[string](412, "resource already exists")
		}
		return HTTPErrorResult[string](412, "etag conflict")
	}
	if raw.StatusCode >= 300 {
		return HTTPErrorResult[string](raw.StatusCode, httpStatusMessage(raw))
	}
	return Success(strings.Trim(raw.Header.Get("ETag"), `"`))
}

// Delete removes a resource. A 404 is mapped to success: the caller's
// desired end state (resource gone) already holds.
func (t *WebDavTransport) Delete(ctx context.Context, rawURL string, etag string) DavResult[struct{}] {
	headers := map[string]string{}
	if etag != "" {
		headers["If-Match"] = `"` + etag + `"`
	}
	res := t.do(ctx, "DELETE", rawURL, nil, headers)
	if res.Kind == KindNetworkError {
		return DavResult[struct{}]{Kind: KindNetworkError, NetErr: res.NetErr}
	}
	raw := res.Value
	if raw.StatusCode == http.StatusNotFound {
		return Success(struct{}{})
	}
	if raw.StatusCode >= 300 {
		return HTTPErrorResult[struct{}](raw.StatusCode, httpStatusMessage(raw))
	}
	return Success(struct{}{})
}

func (t *WebDavTransport) Mkcalendar(ctx context.Context, rawURL string, body []byte) DavResult[struct{}] {
	res := t.do(ctx, "MKCALENDAR", rawURL, body, map[string]string{"Content-Type": "application/xml; charset=utf-8"})
	if res.Kind == KindNetworkError {
		return DavResult[struct{}]{Kind: KindNetworkError, NetErr: res.NetErr}
	}
	raw := res.Value
	if raw.StatusCode >= 300 {
		return HTTPErrorResult[struct{}](raw.StatusCode, httpStatusMessage(raw))
	}
	return Success(struct{}{})
}

func (t *WebDavTransport) Acl(ctx context.Context, rawURL string, body []byte) DavResult[struct{}] {
	res := t.do(ctx, "ACL", rawURL, body, map[string]string{"Content-Type": "application/xml; charset=utf-8"})
	if res.Kind == KindNetworkError {
		return DavResult[struct{}]{Kind: KindNetworkError, NetErr: res.NetErr}
	}
	raw := res.Value
	if raw.StatusCode >= 300 {
		return HTTPErrorResult[struct{}](raw.StatusCode, httpStatusMessage(raw))
	}
	return Success(struct{}{})
}

// Post delivers an iTIP scheduling message to a schedule-outbox, one
// Recipient header per recipient, and returns the raw schedule-response
// body for the caller to interpret (its shape is a multistatus-like
// document defined by RFC 6638, outside this package's parsing scope).
func (t *WebDavTransport) Post(ctx context.Context, rawURL string, body []byte, originator string, recipients []string) DavResult[[]byte] {
	headers := map[string]string{
		"Content-Type": "text/calendar; charset=utf-8",
		"Originator":   "mailto:" + originator,
	}
	// net/http only keeps the last value set via map-based headers, so
	// repeated Recipient headers are added directly on the request.
	res := t.doMultiHeader(ctx, "POST", rawURL, body, headers, "Recipient", recipientAddrs(recipients))
	if res.Kind == KindNetworkError {
		return DavResult[[]byte]{Kind: KindNetworkError, NetErr: res.NetErr}
	}
	raw := res.Value
	if raw.StatusCode >= 300 {
		return HTTPErrorResult[[]byte](raw.StatusCode, httpStatusMessage(raw))
	}
	return Success(raw.Body)
}

func recipientAddrs(recipients []string) []string {
	out := make([]string, len(recipients))
	for i, r := range recipients {
		out[i] = "mailto:" + r
	}
	return out
}

// doMultiHeader repeats do()'s retry/backoff loop with support for a
// repeated header, needed only by Post's Recipient list. It does not follow
// redirects (a 3xx reply is returned as is), and its backoff sleeps do not
// observe ctx cancellation.
func (t *WebDavTransport) doMultiHeader(ctx context.Context, method, rawURL string, body []byte, headers map[string]string, repeatKey string, repeatValues []string) DavResult[*rawResponse] {
	maxRetries := t.cfg.Retry.Max
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
		if err != nil {
			return NetworkErrorResult[*rawResponse](err)
		}
		req.Header.Set("User-Agent", userAgent)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		for _, v := range repeatValues {
			req.Header.Add(repeatKey, v)
		}
		if t.cred != nil {
			t.cred.Apply(req)
		}

		resp, err := t.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return NetworkErrorResult[*rawResponse](fmt.Errorf("cancelled: %w", ctx.Err()))
			}
			if !isTransientErr(err) || attempt == maxRetries {
				return NetworkErrorResult[*rawResponse](err)
			}
			time.Sleep(backoffDelay(attempt, ""))
			continue
		}

		raw, err := t.readBody(resp)
		resp.Body.Close()
		if err != nil {
			return NetworkErrorResult[*rawResponse](err)
		}
		if isRetryableStatus(resp.StatusCode) && attempt < maxRetries {
			time.Sleep(backoffDelay(attempt, resp.Header.Get("Retry-After")))
			continue
		}
		return Success(&rawResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: raw})
	}
	return NetworkErrorResult[*rawResponse](lastErr)
}
