package dnsrule

import (
	"context"
	"time"

	"github.com/miekg/dns"
)

// UpstreamKind discriminates the upstream-spec tagged union.
type UpstreamKind int

const (
	UpstreamSystem UpstreamKind = iota
	UpstreamExplicit
	UpstreamFixedAnswer
	UpstreamReject
)

// Protocol names an explicit upstream's transport.
type Protocol string

const (
	ProtoUDP Protocol = "udp"
	ProtoTCP Protocol = "tcp"
	ProtoDoT Protocol = "dot"
	ProtoDoH Protocol = "doh"
)

// UpstreamSpec is a compiled upstream-spec.
type UpstreamSpec struct {
	Kind UpstreamKind

	// Explicit
	Address  string
	Protocol Protocol

	// FixedAnswer
	Records []dns.RR

	// Reject
	Rcode int

	client *dns.Client
}

// NewSystemUpstream resolves via a default/system-configured resolver.
func NewSystemUpstream(address string) UpstreamSpec {
	return UpstreamSpec{
		Kind:     UpstreamSystem,
		Address:  address,
		Protocol: ProtoUDP,
		client:   &dns.Client{Net: "udp", Timeout: 4 * time.Second},
	}
}

// NewExplicitUpstream targets a specific address/protocol pair.
func NewExplicitUpstream(address string, proto Protocol) UpstreamSpec {
	net := "udp"
	if proto == ProtoTCP {
		net = "tcp"
	} else if proto == ProtoDoT {
		net = "tcp-tls"
	}
	return UpstreamSpec{
		Kind:     UpstreamExplicit,
		Address:  address,
		Protocol: proto,
		client:   &dns.Client{Net: net, Timeout: 4 * time.Second},
	}
}

// NewFixedAnswerUpstream always returns records, with no network I/O.
func NewFixedAnswerUpstream(records []dns.RR) UpstreamSpec {
	return UpstreamSpec{Kind: UpstreamFixedAnswer, Records: records}
}

// NewRejectUpstream always returns rcode, with no network I/O.
func NewRejectUpstream(rcode int) UpstreamSpec {
	return UpstreamSpec{Kind: UpstreamReject, Rcode: rcode}
}

// Lookup implements the rule's upstream strategy.
func (u UpstreamSpec) Lookup(ctx context.Context, domain string, qtype uint16) ([]dns.RR, int, error) {
	switch u.Kind {
	case UpstreamFixedAnswer:
		return u.Records, dns.RcodeSuccess, nil
	case UpstreamReject:
		return nil, u.Rcode, nil
	case UpstreamSystem, UpstreamExplicit:
		req := new(dns.Msg)
		req.SetQuestion(dns.Fqdn(domain), qtype)
		req.RecursionDesired = true

		resp, _, err := u.client.ExchangeContext(ctx, req, u.Address)
		if err != nil {
			return nil, dns.RcodeServerFailure, err
		}
		if resp.Rcode != dns.RcodeSuccess {
			return nil, resp.Rcode, nil
		}
		return resp.Answer, dns.RcodeSuccess, nil
	default:
		return nil, dns.RcodeServerFailure, nil
	}
}
