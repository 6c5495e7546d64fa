package dnsrule

import (
	"net"
	"testing"

	"github.com/miekg/dns"
)

func TestRuleSet_MatchReturnsLowestIndex(t *testing.T) {
	r1 := &Rule{Index: 10, Enable: true, Match: NewSuffixMatch("example.com"), Mark: 1}
	r2 := &Rule{Index: 20, Enable: true, Match: NewSuffixMatch(".com"), Mark: 2}

	rs := NewRuleSet([]*Rule{r2, r1}, nil)

	got, ok := rs.Match("a.example.com")
	if !ok {
		t.Fatal("expected a match")
	}
	if got.Index != 10 {
		t.Fatalf("Match() index = %d, want 10 (P4: lowest index wins)", got.Index)
	}
}

func TestRuleSet_MatchNoHit(t *testing.T) {
	rs := NewRuleSet([]*Rule{{Index: 1, Enable: true, Match: NewPlainMatch("example.com")}}, nil)
	if _, ok := rs.Match("other.net"); ok {
		t.Fatal("expected no match")
	}
}

func TestFilterRecords(t *testing.T) {
	a := &dns.A{A: net.ParseIP("1.2.3.4")}
	aaaa := &dns.AAAA{AAAA: net.ParseIP("::1")}
	records := []dns.RR{a, aaaa}

	onlyV4 := FilterRecords(records, OnlyIPv4)
	if len(onlyV4) != 1 {
		t.Fatalf("OnlyIPv4: got %d records, want 1", len(onlyV4))
	}
	if _, ok := onlyV4[0].(*dns.A); !ok {
		t.Fatalf("OnlyIPv4: kept record is not A")
	}

	onlyV6 := FilterRecords(records, OnlyIPv6)
	if len(onlyV6) != 1 {
		t.Fatalf("OnlyIPv6: got %d records, want 1", len(onlyV6))
	}
	if _, ok := onlyV6[0].(*dns.AAAA); !ok {
		t.Fatalf("OnlyIPv6: kept record is not AAAA")
	}

	unfiltered := FilterRecords(records, Unfilter)
	if len(unfiltered) != 2 {
		t.Fatalf("Unfilter: got %d records, want 2", len(unfiltered))
	}
}
