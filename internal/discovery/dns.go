package discovery

import (
	"context"
	"net"
	"sort"

	"golang.org/x/net/idna"
)

// SRVRecord is the subset of net.SRV this package depends on, so a caller
// can inject a fake resolver in tests without pulling in the real net
// package's DNS machinery.
type SRVRecord struct {
	Target   string
	Port     uint16
	Priority uint16
	Weight   uint16
}

// DnsResolver is the injected collaborator §1 calls out as external: this
// package asks for SRV records only through this interface, so the host can
// supply (or stub) the resolution. When none is injected, New falls back to
// SystemResolver, which queries DNS through net.Resolver.
type DnsResolver interface {
	LookupSRV(ctx context.Context, service, proto, domain string) ([]SRVRecord, error)
}

// SystemResolver is the default DnsResolver, backed by net.Resolver (the
// stdlib's own DNS client — no third-party DNS library in the retrieval
// pack does anything this doesn't).
type SystemResolver struct {
	Resolver *net.Resolver
}

func NewSystemResolver() *SystemResolver {
	return &SystemResolver{Resolver: net.DefaultResolver}
}

func (r *SystemResolver) LookupSRV(ctx context.Context, service, proto, domain string) ([]SRVRecord, error) {
	res := r.Resolver
	if res == nil {
		res = net.DefaultResolver
	}
	_, addrs, err := res.LookupSRV(ctx, service, proto, domain)
	if err != nil {
		return nil, err
	}
	out := make([]SRVRecord, len(addrs))
	for i, a := range addrs {
		out[i] = SRVRecord{Target: a.Target, Port: a.Port, Priority: a.Priority, Weight: a.Weight}
	}
	return out, nil
}

// normalizeDomain converts a possibly non-ASCII domain (an IDN email
// domain, typically) into its ASCII/Punycode form before it is used in a
// DNS-SRV query or a well-known URL — the one point in this package where
// Unicode domains would otherwise silently fail to resolve.
func normalizeDomain(domain string) string {
	ascii, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return domain
	}
	return ascii
}

// bestSRV picks the record RFC 2782 priority/weight ordering favors: lowest
// priority first, then highest weight. Ties are broken by Go's sort being
// stable, so input order is preserved (no extra randomization — this
// package is not implementing full weighted-random selection, just "good
// enough" endpoint choice for a client library).
func bestSRV(records []SRVRecord) (SRVRecord, bool) {
	if len(records) == 0 {
		return SRVRecord{}, false
	}
	sorted := make([]SRVRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].Weight > sorted[j].Weight
	})
	return sorted[0], true
}
