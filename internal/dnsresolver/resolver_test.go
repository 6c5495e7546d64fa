package dnsresolver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"

	"github.com/veylan/routerd/internal/dnsrule"
	"github.com/veylan/routerd/internal/flowdns"
	"github.com/veylan/routerd/internal/flowmark"
)

func fixedRule(index uint32, domain string, filter dnsrule.Filter, mark uint32, flowID uint32, records []dns.RR) *dnsrule.Rule {
	return &dnsrule.Rule{
		Index:    index,
		Name:     domain,
		Enable:   true,
		Match:    dnsrule.NewSuffixMatch(domain),
		Filter:   filter,
		Mark:     flowmark.Mark(mark),
		FlowID:   flowID,
		Upstream: dnsrule.NewFixedAnswerUpstream(records),
	}
}

func aRR(name, ip string, ttl uint32) *dns.A {
	return &dns.A{Hdr: dns.RR_Header{Name: dns.Fqdn(name), Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: ttl}, A: net.ParseIP(ip)}
}

func aaaaRR(name, ip string, ttl uint32) *dns.AAAA {
	return &dns.AAAA{Hdr: dns.RR_Header{Name: dns.Fqdn(name), Rrtype: dns.TypeAAAA, Class: dns.ClassINET, Ttl: ttl}, AAAA: net.ParseIP(ip)}
}

func query(name string, qtype uint16) *dns.Msg {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	return m
}

func TestHandleRequest_RuleTieBreak(t *testing.T) {
	r1 := fixedRule(10, "example.com", dnsrule.Unfilter, 1, 1, []dns.RR{aRR("a.example.com", "1.2.3.4", 60)})
	r2 := fixedRule(20, "com", dnsrule.Unfilter, 2, 2, []dns.RR{aRR("a.example.com", "5.6.7.8", 60)})
	rs := dnsrule.NewRuleSet([]*dnsrule.Rule{r1, r2}, nil)

	programmer := flowdns.NewMemoryProgrammer()
	resolver := New("127.0.0.1:0", rs, 16, programmer)

	resp := resolver.HandleRequest(context.Background(), query("a.example.com", dns.TypeA))
	if resp.Rcode != dns.RcodeSuccess || len(resp.Answer) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	a := resp.Answer[0].(*dns.A)
	if a.A.String() != "1.2.3.4" {
		t.Fatalf("expected the lower-index rule's answer, got %s", a.A)
	}

	entries := programmer.Snapshot(1)
	if len(entries) != 1 || entries[0].IP.String() != "1.2.3.4" {
		t.Fatalf("expected kernel map to carry the winning rule's mark, got %+v", entries)
	}
	if len(programmer.Snapshot(2)) != 0 {
		t.Fatal("losing rule's flow_id must not be published")
	}
}

func TestHandleRequest_FilterOnlyIPv4(t *testing.T) {
	rule := fixedRule(1, "example.com", dnsrule.OnlyIPv4, 0, 0, []dns.RR{
		aRR("a.example.com", "1.2.3.4", 60),
		aaaaRR("a.example.com", "::1", 60),
	})
	rs := dnsrule.NewRuleSet([]*dnsrule.Rule{rule}, nil)
	resolver := New("127.0.0.1:0", rs, 16, flowdns.NewMemoryProgrammer())

	resp := resolver.HandleRequest(context.Background(), query("a.example.com", dns.TypeA))
	if len(resp.Answer) != 1 {
		t.Fatalf("expected exactly 1 A record, got %d", len(resp.Answer))
	}
	if _, ok := resp.Answer[0].(*dns.A); !ok {
		t.Fatal("expected an A record")
	}
}

func TestHandleRequest_LookupAfterTTLExpiry(t *testing.T) {
	rule := fixedRule(1, "example.com", dnsrule.Unfilter, 0, 0, []dns.RR{aRR("a.example.com", "1.2.3.4", 1)})
	rs := dnsrule.NewRuleSet([]*dnsrule.Rule{rule}, nil)
	resolver := New("127.0.0.1:0", rs, 16, flowdns.NewMemoryProgrammer())

	first := resolver.HandleRequest(context.Background(), query("a.example.com", dns.TypeA))
	if first.Rcode != dns.RcodeSuccess || len(first.Answer) != 1 {
		t.Fatalf("unexpected first response: %+v", first)
	}

	time.Sleep(1100 * time.Millisecond)
	second := resolver.HandleRequest(context.Background(), query("a.example.com", dns.TypeA))
	if second.Rcode != dns.RcodeSuccess || len(second.Answer) != 1 {
		t.Fatalf("expected a fresh lookup after TTL expiry, got %+v", second)
	}
}

func TestHandleRequest_NoMatchingRule(t *testing.T) {
	rs := dnsrule.NewRuleSet(nil, nil)
	resolver := New("127.0.0.1:0", rs, 16, flowdns.NewMemoryProgrammer())

	resp := resolver.HandleRequest(context.Background(), query("nowhere.test", dns.TypeA))
	if resp.Rcode != dns.RcodeSuccess || len(resp.Answer) != 0 {
		t.Fatalf("expected empty NoError response, got %+v", resp)
	}
}
