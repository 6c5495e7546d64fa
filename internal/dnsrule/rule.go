package dnsrule

import (
	"context"

	"github.com/google/uuid"
	"github.com/miekg/dns"

	"github.com/veylan/routerd/internal/flowmark"
)

// Filter is the post-resolution answer restriction applied to a rule's
// results.
type Filter int

const (
	Unfilter Filter = iota
	OnlyIPv4
	OnlyIPv6
)

// Rule is one compiled DNS rule (C5 element).
type Rule struct {
	Index    uint32
	ID       uuid.UUID
	Name     string
	Enable   bool
	Match    MatchSpec
	Filter   Filter
	Mark     flowmark.Mark
	FlowID   uint32
	Upstream UpstreamSpec
}

// IsMatch reports whether domain is matched by this rule's match-spec.
func (r *Rule) IsMatch(domain string, geo GeoSiteMembership) bool {
	return r.Enable && r.Match.IsMatch(domain, geo)
}

// Lookup resolves domain/qtype per this rule's upstream strategy.
func (r *Rule) Lookup(ctx context.Context, domain string, qtype uint16) ([]dns.RR, int, error) {
	return r.Upstream.Lookup(ctx, domain, qtype)
}

// FilterRecords applies f to records per §4.9: Unfilter passes everything;
// OnlyIPv4 drops AAAA; OnlyIPv6 drops A. Relative order within type is
// preserved.
func FilterRecords(records []dns.RR, f Filter) []dns.RR {
	if f == Unfilter {
		return records
	}
	out := make([]dns.RR, 0, len(records))
	for _, rr := range records {
		switch rr.(type) {
		case *dns.AAAA:
			if f == OnlyIPv6 {
				out = append(out, rr)
			}
		case *dns.A:
			if f == OnlyIPv4 {
				out = append(out, rr)
			}
		default:
			out = append(out, rr)
		}
	}
	return out
}
