package dnscache

import (
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
)

func aRecord(ip string, ttl uint32) *dns.A {
	return &dns.A{
		Hdr: dns.RR_Header{Ttl: ttl},
		A:   net.ParseIP(ip),
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := New(16)
	now := time.Now()
	key := Key{Domain: "foo.net", Qtype: dns.TypeA}
	c.Put(key, Item{Records: []dns.RR{aRecord("10.0.0.1", 1)}, InsertedAt: now})

	if _, ok := c.Get(key, now); !ok {
		t.Fatal("expected hit immediately after insert")
	}
	if _, ok := c.Get(key, now.Add(1100*time.Millisecond)); ok {
		t.Fatal("expected miss after TTL expiry (P3)")
	}
}

func TestCache_LRUEviction(t *testing.T) {
	c := New(2)
	now := time.Now()
	k1 := Key{Domain: "a.com", Qtype: dns.TypeA}
	k2 := Key{Domain: "b.com", Qtype: dns.TypeA}
	k3 := Key{Domain: "c.com", Qtype: dns.TypeA}

	c.Put(k1, Item{Records: []dns.RR{aRecord("1.1.1.1", 60)}, InsertedAt: now})
	c.Put(k2, Item{Records: []dns.RR{aRecord("2.2.2.2", 60)}, InsertedAt: now})
	c.Put(k3, Item{Records: []dns.RR{aRecord("3.3.3.3", 60)}, InsertedAt: now})

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	if _, ok := c.Get(k1, now); ok {
		t.Fatal("expected k1 to be evicted as least recently used")
	}
}
