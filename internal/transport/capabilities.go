package transport

import (
	"net/http"
	"strings"
	"time"

	"github.com/kestrelcal/caldavsync/internal/cache"
)

// Provider identifies a server vendor whose known quirks this transport
// accommodates. Classification is data, not a type hierarchy: one struct
// describes each provider's behavior, the way kevmarchant-go-icloud-caldav's
// icloud_compat.go tags a ServerCompatibility by ServerType and fills in a
// capability map per type, rather than subclassing a client per vendor.
type Provider string

const (
	ProviderGeneric   Provider = "generic"
	ProviderICloud    Provider = "icloud"
	ProviderGoogle    Provider = "google"
	ProviderNextcloud Provider = "nextcloud"
	ProviderZimbra    Provider = "zimbra"
	ProviderUnknown   Provider = "unknown" // 405 on OPTIONS — graceful degradation, not an error
)

// Capabilities is a server's advertised feature set, parsed from the DAV:
// and Allow: response headers of an OPTIONS reply.
type Capabilities struct {
	Provider          Provider
	DAVCompliance     []string // raw tokens from the DAV: header, e.g. "1", "3", "calendar-access"
	AllowedMethods    []string
	CalendarAccess    bool
	CalendarSchedule  bool
	CalendarAutoSched bool
	CalendarProxy     bool
	SyncCollection    bool
	ServerHeader      string
}

func classifyProvider(serverHeader, baseURL string) Provider {
	lower := strings.ToLower(serverHeader)
	switch {
	case strings.Contains(lower, "icloud") || strings.Contains(lower, "apple") || strings.Contains(strings.ToLower(baseURL), "icloud.com"):
		return ProviderICloud
	case strings.Contains(lower, "google"):
		return ProviderGoogle
	case strings.Contains(lower, "nextcloud") || strings.Contains(lower, "owncloud") || strings.Contains(lower, "sabre"):
		return ProviderNextcloud
	case strings.Contains(lower, "zimbra"):
		return ProviderZimbra
	default:
		return ProviderGeneric
	}
}

// quirkTable holds the per-provider overrides applied once the generic
// DAV-header parse runs. iCloud in particular advertises calendar-access
// without enumerating calendar-schedule/calendar-auto-schedule even though
// it effectively supports scheduling through its own outbox — the same
// gap the teacher's populateICloudCapabilities hardcodes.
var quirkTable = map[Provider]func(*Capabilities){
	ProviderICloud: func(c *Capabilities) {
		c.CalendarSchedule = true
		c.CalendarAutoSched = false
		c.CalendarProxy = true
	},
	ProviderGoogle: func(c *Capabilities) {
		c.CalendarSchedule = false
		c.SyncCollection = true
	},
	ProviderNextcloud: func(c *Capabilities) {
		c.CalendarSchedule = true
		c.CalendarAutoSched = true
		c.SyncCollection = true
	},
}

func parseCapabilitiesFromHeader(header http.Header, baseURL string) *Capabilities {
	dav := header.Get("DAV")
	allow := header.Get("Allow")
	server := header.Get("Server")

	c := &Capabilities{
		ServerHeader:   server,
		Provider:       classifyProvider(server, baseURL),
		DAVCompliance:  splitTokenList(dav),
		AllowedMethods: splitTokenList(allow),
	}
	c.CalendarAccess = strings.Contains(dav, "calendar-access")
	c.CalendarSchedule = strings.Contains(dav, "calendar-schedule")
	c.CalendarAutoSched = strings.Contains(dav, "calendar-auto-schedule")
	c.CalendarProxy = strings.Contains(dav, "calendar-proxy")
	c.SyncCollection = strings.Contains(dav, "sync-collection") || contains(c.AllowedMethods, "REPORT")

	if quirk, ok := quirkTable[c.Provider]; ok {
		quirk(c)
	}
	return c
}

func splitTokenList(header string) []string {
	if header == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// capabilityCache is the 1-hour-TTL, 100-entry transport-wide cache from
// §4.3.6, keyed by the server URL an OPTIONS request was issued against.
type capabilityCache = cache.Cache[string, *Capabilities]

func newCapabilityCache(ttl time.Duration) *capabilityCache {
	return cache.NewBounded[string, *Capabilities](ttl, 100)
}
