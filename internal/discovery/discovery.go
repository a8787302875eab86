package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kestrelcal/caldavsync/internal/config"
	"github.com/kestrelcal/caldavsync/internal/transport"
	"github.com/kestrelcal/caldavsync/pkg/davxml"
)

// Discovery runs the §4.4 walk. It owns no mutable per-call state (§9's
// redesign flag against CalendarContractSyncHandler's cached
// currentCalendarUrl/currentCalendarId fields): every step threads its
// input explicitly instead of stashing it on the struct.
type Discovery struct {
	transport *transport.WebDavTransport
	resolver  DnsResolver
	cfg       *config.Config
	logger    zerolog.Logger
}

func New(t *transport.WebDavTransport, resolver DnsResolver, cfg *config.Config, logger zerolog.Logger) *Discovery {
	if resolver == nil {
		resolver = NewSystemResolver()
	}
	return &Discovery{
		transport: t,
		resolver:  resolver,
		cfg:       cfg,
		logger:    logger.With().Str("component", "discovery").Logger(),
	}
}

// Discover runs the full walk from either a server URL or an email address
// and returns the resulting Account.
func (d *Discovery) Discover(ctx context.Context, input string) (*Account, error) {
	baseURL, err := d.resolveServerURL(ctx, input)
	if err != nil {
		return nil, err
	}

	principalURL, err := d.discoverPrincipal(ctx, baseURL)
	if err != nil {
		return nil, err
	}

	homeURL, err := d.discoverCalendarHome(ctx, principalURL)
	if err != nil {
		return nil, err
	}

	calendars, err := d.listCalendars(ctx, homeURL)
	if err != nil {
		return nil, err
	}

	acc := &Account{
		PrincipalURL:    principalURL,
		CalendarHomeURL: homeURL,
		Calendars:       calendars,
	}
	inbox, outbox, err := d.discoverScheduleBoxes(ctx, principalURL)
	if err == nil {
		acc.ScheduleInbox = inbox
		acc.ScheduleOutbox = outbox
	} else {
		d.logger.Debug().Err(err).Msg("schedule-inbox/outbox discovery failed, continuing without it")
	}

	return acc, nil
}

// resolveServerURL implements §4.4 step 1: when input looks like an email
// address, try DNS-SRV (secure first, then insecure), falling back to
// https://<domain>. Anything else is treated as a direct server URL.
func (d *Discovery) resolveServerURL(ctx context.Context, input string) (string, error) {
	at := strings.LastIndex(input, "@")
	if at < 0 {
		return input, nil
	}
	domain := normalizeDomain(input[at+1:])

	if rec, scheme, ok := d.lookupSRVPreferred(ctx, domain); ok {
		return fmt.Sprintf("%s://%s:%d", scheme, strings.TrimSuffix(rec.Target, "."), rec.Port), nil
	}
	return "https://" + domain, nil
}

func (d *Discovery) lookupSRVPreferred(ctx context.Context, domain string) (SRVRecord, string, bool) {
	for _, candidate := range []struct {
		service string
		scheme  string
	}{
		{"caldavs", "https"},
		{"caldav", "http"},
	} {
		records, err := d.resolver.LookupSRV(ctx, candidate.service, "tcp", domain)
		if err != nil || len(records) == 0 {
			continue
		}
		if rec, ok := bestSRV(records); ok {
			return rec, candidate.scheme, true
		}
	}
	return SRVRecord{}, "", false
}

// discoverPrincipal implements steps 2-3: PROPFIND the given URL for
// current-user-principal, retrying once against /.well-known/caldav if the
// direct attempt fails and well-known fallback is enabled.
func (d *Discovery) discoverPrincipal(ctx context.Context, baseURL string) (string, error) {
	principal, err := d.propfindPrincipal(ctx, baseURL)
	if err == nil {
		return principal, nil
	}
	if d.cfg == nil || !d.cfg.WellKnown.Enabled {
		return "", err
	}

	wellKnown, wkErr := wellKnownURL(baseURL)
	if wkErr != nil || wellKnown == baseURL {
		return "", err
	}
	d.logger.Debug().Str("url", wellKnown).Msg("retrying principal discovery against well-known path")
	return d.propfindPrincipal(ctx, wellKnown)
}

func wellKnownURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	u.Path = "/.well-known/caldav"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

func (d *Discovery) propfindPrincipal(ctx context.Context, rawURL string) (string, error) {
	res := d.transport.Propfind(ctx, rawURL, davxml.PropfindPrincipal(), "0", true)
	if !res.Ok() {
		return "", res.Err()
	}
	for _, resp := range res.Value.Responses {
		if resp.Has("current-user-principal") {
			if href := resp.Text("current-user-principal"); href != "" {
				return resolveHref(rawURL, href)
			}
		}
	}
	return "", fmt.Errorf("discovery: no current-user-principal in response from %s", rawURL)
}

func (d *Discovery) discoverCalendarHome(ctx context.Context, principalURL string) (string, error) {
	res := d.transport.Propfind(ctx, principalURL, davxml.PropfindCalendarHome(), "0", true)
	if !res.Ok() {
		return "", res.Err()
	}
	for _, resp := range res.Value.Responses {
		if href := resp.Text("calendar-home-set"); href != "" {
			return resolveHref(principalURL, href)
		}
	}
	return "", fmt.Errorf("discovery: no calendar-home-set in response from %s", principalURL)
}

// skipDisplayNameSubstrings and skipHrefSubstrings implement §4.4 step 5's
// "skip non-event collections by href/name heuristics".
var skipDisplayNameSubstrings = []string{"tasks", "reminders", "todo"}
var skipHrefSubstrings = []string{"inbox", "outbox", "notification", "freebusy"}

func shouldSkipCalendar(href, displayName string) bool {
	lowerHref := strings.ToLower(href)
	for _, s := range skipHrefSubstrings {
		if strings.Contains(lowerHref, s) {
			return true
		}
	}
	lowerName := strings.ToLower(displayName)
	for _, s := range skipDisplayNameSubstrings {
		if strings.Contains(lowerName, s) {
			return true
		}
	}
	return false
}

func (d *Discovery) listCalendars(ctx context.Context, homeURL string) ([]Calendar, error) {
	res := d.transport.Propfind(ctx, homeURL, davxml.PropfindCalendars(), "1", true)
	if !res.Ok() {
		return nil, res.Err()
	}

	homeAbs, err := resolveHref(homeURL, homeURL)
	if err != nil {
		homeAbs = homeURL
	}

	var calendars []Calendar
	for _, resp := range res.Value.Responses {
		if resp.Href == "" {
			continue
		}
		href, err := resolveHref(homeURL, resp.Href)
		if err != nil {
			continue
		}
		if sameResource(href, homeAbs) {
			continue // the home collection itself, per step 5
		}
		if !resp.HasChild("resourcetype", "calendar") {
			continue
		}
		displayName := resp.Text("displayname")
		if shouldSkipCalendar(href, displayName) {
			continue
		}
		calendars = append(calendars, Calendar{
			Href:        href,
			DisplayName: displayName,
			CTag:        resp.Text("getctag"),
		})
	}
	return calendars, nil
}

func (d *Discovery) discoverScheduleBoxes(ctx context.Context, principalURL string) (inbox, outbox string, err error) {
	res := d.transport.Propfind(ctx, principalURL, davxml.PropfindScheduleBoxes(), "0", true)
	if !res.Ok() {
		return "", "", res.Err()
	}
	for _, resp := range res.Value.Responses {
		if href := resp.Text("schedule-inbox-URL"); href != "" {
			inbox, _ = resolveHref(principalURL, href)
		}
		if href := resp.Text("schedule-outbox-URL"); href != "" {
			outbox, _ = resolveHref(principalURL, href)
		}
	}
	if inbox == "" && outbox == "" {
		return "", "", fmt.Errorf("discovery: no schedule-inbox/outbox-URL advertised")
	}
	return inbox, outbox, nil
}

// resolveHref resolves a (possibly relative) href against the origin
// (scheme + authority) of the URL that produced it, per §4.4's closing
// paragraph.
func resolveHref(producedBy, href string) (string, error) {
	base, err := url.Parse(producedBy)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	origin := &url.URL{Scheme: base.Scheme, User: base.User, Host: base.Host, Path: "/"}
	return origin.ResolveReference(ref).String(), nil
}

func sameResource(a, b string) bool {
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return strings.TrimSuffix(ua.Path, "/") == strings.TrimSuffix(ub.Path, "/")
}
