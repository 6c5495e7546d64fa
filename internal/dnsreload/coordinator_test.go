package dnsreload

import (
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/miekg/dns"

	"github.com/veylan/routerd/internal/dnscache"
	"github.com/veylan/routerd/internal/dnsresolver"
	"github.com/veylan/routerd/internal/dnsrule"
	"github.com/veylan/routerd/internal/flowdns"
)

type staticRepo struct {
	configs []dnsrule.Config
}

func (r staticRepo) ListAll() ([]dnsrule.Config, error) { return r.configs, nil }

func ruleConfig(index uint32, suffix string, mark, flowID uint32) dnsrule.Config {
	return dnsrule.Config{
		Index:        index,
		ID:           uuid.NewString(),
		Name:         suffix,
		Enable:       true,
		MatchKind:    "suffix",
		MatchDomain:  suffix,
		Filter:       "unfilter",
		Mark:         mark,
		FlowID:       flowID,
		UpstreamKind: "fixed",
		FixedRecords: []string{"foo.net. 60 IN A 10.0.0.1"},
	}
}

func TestCoordinator_Reload_MigratesCacheToNewRule(t *testing.T) {
	oldRuleCfg := ruleConfig(20, "net", 1, 100)
	oldRule, err := oldRuleCfg.Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	oldRules := dnsrule.NewRuleSet([]*dnsrule.Rule{oldRule}, nil)

	oldCache := dnscache.New(2048)
	a := &dns.A{A: net.ParseIP("10.0.0.1").To4()}
	a.Hdr = dns.RR_Header{Name: "foo.net.", Rrtype: dns.TypeA, Ttl: 60}
	oldCache.Put(dnscache.Key{Domain: "foo.net.", Qtype: dns.TypeA}, dnscache.Item{
		Records:    []dns.RR{a},
		InsertedAt: time.Now(),
		Mark:       oldRule.Mark,
		Filter:     oldRule.Filter,
	})

	programmer := flowdns.NewMemoryProgrammer()
	if err := programmer.Replace(100, []flowdns.Entry{{IP: net.ParseIP("10.0.0.1"), Mark: oldRule.Mark}}); err != nil {
		t.Fatalf("seed programmer: Replace() error = %v", err)
	}
	resolver := dnsresolver.New("127.0.0.1:0", oldRules, 2048, programmer)
	resolver.Swap(oldRules, oldCache)
	resolver.SetResolvConfPaths(t.TempDir()+"/resolv.conf", t.TempDir()+"/resolv.conf.ld_back")

	// New generation: a single lower-index rule for foo.net replaces the old rule, with a different mark/flow.
	newRuleCfg := ruleConfig(10, "foo.net", 2, 200)
	repo := staticRepo{configs: []dnsrule.Config{newRuleCfg}}

	coord := New(resolver, repo, nil, programmer, 2048)
	if err := coord.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	_, newCache := resolver.Snapshot()
	item, ok := newCache.Get(dnscache.Key{Domain: "foo.net.", Qtype: dns.TypeA}, time.Now())
	if !ok {
		t.Fatal("expected migrated cache entry to survive reload")
	}
	if item.Mark != 2 {
		t.Fatalf("migrated item mark = %v, want 2", item.Mark)
	}

	gotOld := programmer.Snapshot(100)
	if len(gotOld) != 0 {
		t.Errorf("old flow_id 100 = %+v, want cleared (no rule carries it in the new generation)", gotOld)
	}

	gotNew := programmer.Snapshot(200)
	if len(gotNew) != 1 || !gotNew[0].IP.Equal(net.ParseIP("10.0.0.1")) || gotNew[0].Mark != 2 {
		t.Fatalf("flow_id 200 snapshot = %+v, want single entry (10.0.0.1, mark 2)", gotNew)
	}
}

func TestCoordinator_Reload_DropsEntriesWithNoSurvivingRule(t *testing.T) {
	emptyRules := dnsrule.NewRuleSet(nil, nil)
	cache := dnscache.New(2048)
	a := &dns.A{A: net.ParseIP("1.2.3.4").To4()}
	a.Hdr = dns.RR_Header{Name: "gone.example.", Rrtype: dns.TypeA, Ttl: 60}
	cache.Put(dnscache.Key{Domain: "gone.example.", Qtype: dns.TypeA}, dnscache.Item{
		Records:    []dns.RR{a},
		InsertedAt: time.Now(),
		Mark:       1,
	})

	programmer := flowdns.NewMemoryProgrammer()
	resolver := dnsresolver.New("127.0.0.1:0", emptyRules, 2048, programmer)
	resolver.Swap(emptyRules, cache)
	resolver.SetResolvConfPaths(t.TempDir()+"/resolv.conf", t.TempDir()+"/resolv.conf.ld_back")

	coord := New(resolver, staticRepo{}, nil, programmer, 2048)
	if err := coord.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	_, newCache := resolver.Snapshot()
	if _, ok := newCache.Get(dnscache.Key{Domain: "gone.example.", Qtype: dns.TypeA}, time.Now()); ok {
		t.Error("expected entry with no surviving rule to be dropped")
	}
}
