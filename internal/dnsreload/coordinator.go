// Package dnsreload implements the rule reload coordinator (C10): it
// atomically swaps the resolver's rule set, migrates the existing cache
// into the new rule generation, and reconciles the kernel flow-DNS map,
// per §4.11.
package dnsreload

import (
	"context"
	"sync"

	"github.com/miekg/dns"

	"github.com/veylan/routerd/internal/dnscache"
	"github.com/veylan/routerd/internal/dnsresolver"
	"github.com/veylan/routerd/internal/dnsrule"
	apperrors "github.com/veylan/routerd/internal/errors"
	"github.com/veylan/routerd/internal/flowdns"
	"github.com/veylan/routerd/internal/geosite"
	"github.com/veylan/routerd/internal/log"
)

// RuleRepository is the persistence contract DNS rule configs are read
// from, keyed by rule ID.
type RuleRepository interface {
	ListAll() ([]dnsrule.Config, error)
}

// Coordinator is C10. Reload is idempotent and may be called concurrently;
// calls are serialized internally, matching §4.11's "may be serialized"
// note.
type Coordinator struct {
	mu sync.Mutex

	resolver   *dnsresolver.Resolver
	rules      RuleRepository
	geo        dnsrule.GeoSiteMembership
	programmer flowdns.Programmer
	cacheCap   int
}

// New builds a coordinator wired to the live resolver, the rule config
// store, the GeoSite membership source, and the kernel map programmer.
func New(resolver *dnsresolver.Resolver, rules RuleRepository, geo dnsrule.GeoSiteMembership, programmer flowdns.Programmer, cacheCap int) *Coordinator {
	return &Coordinator{
		resolver:   resolver,
		rules:      rules,
		geo:        geo,
		programmer: programmer,
		cacheCap:   cacheCap,
	}
}

// Run subscribes to GeoSite update events and reloads on each one. It
// deliberately does nothing but call Reload, so a slow or blocked kernel
// path never back-pressures the GeoSite fetch loop (§9).
func (c *Coordinator) Run(ctx context.Context, events <-chan geosite.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			log.Infof("dnsreload: geosite source %q updated, reloading DNS rules", ev.Source)
			if err := c.Reload(); err != nil {
				log.Errorf("dnsreload: reload after geosite update failed: %v", err)
			}
		}
	}
}

// Reload implements §4.11's seven-step procedure: build the new rule set,
// migrate survivable cache entries into it, reconcile the kernel map, then
// publish the new (rules, cache) pair with a single atomic swap.
func (c *Coordinator) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	configs, err := c.rules.ListAll()
	if err != nil {
		return apperrors.NewDNSError("failed to list DNS rule configs", err)
	}

	compiled := make([]*dnsrule.Rule, 0, len(configs))
	for _, cfg := range configs {
		r, err := cfg.Compile()
		if err != nil {
			log.Errorf("dnsreload: skipping rule %q: %v", cfg.Name, err)
			continue
		}
		compiled = append(compiled, r)
	}
	newRules := dnsrule.NewRuleSet(compiled, c.geo) // step 1
	newCache := dnscache.New(c.cacheCap)            // step 2

	oldRules, oldCache := c.resolver.Snapshot()
	oldEntries := oldCache.Snapshot() // step 3: held long enough to drain, not best-effort (§9 open question)

	publish := make(map[uint32]map[string]flowdns.Entry)

	for key, item := range oldEntries { // step 4
		rule, ok := newRules.Match(key.Domain)
		if !ok {
			continue
		}
		migrated := dnscache.Item{
			Records:    item.Records,
			InsertedAt: item.InsertedAt,
			Mark:       rule.Mark,
			Filter:     rule.Filter,
		}
		newCache.Put(key, migrated)

		if rule.Mark.NeedsKernelPublish() { // step 5
			bucket := publish[rule.FlowID]
			if bucket == nil {
				bucket = make(map[string]flowdns.Entry)
				publish[rule.FlowID] = bucket
			}
			for _, e := range entriesFromItem(migrated) {
				bucket[e.IP.String()] = e
			}
		}
	}

	// Every actionable flow_id in the new rule set gets a Replace call,
	// even an empty one, so a flow whose cache didn't survive migration
	// has its stale kernel entries cleared too (P7).
	for _, r := range newRules.Rules() {
		if r.Mark.NeedsKernelPublish() {
			if _, ok := publish[r.FlowID]; !ok {
				publish[r.FlowID] = map[string]flowdns.Entry{}
			}
		}
	}

	// A flow_id that was kernel-published under the old rule set but carries
	// no rule at all in the new one would otherwise never be zeroed, leaving
	// its stale (ip, mark) pairs in the kernel map forever (P7).
	if oldRules != nil {
		for _, r := range oldRules.Rules() {
			if r.Mark.NeedsKernelPublish() {
				if _, ok := publish[r.FlowID]; !ok {
					publish[r.FlowID] = map[string]flowdns.Entry{}
				}
			}
		}
	}

	for flowID, entries := range publish { // step 6
		list := make([]flowdns.Entry, 0, len(entries))
		for _, e := range entries {
			list = append(list, e)
		}
		if err := c.programmer.Replace(flowID, list); err != nil {
			log.Errorf("dnsreload: kernel replace for flow_id=%d failed: %v", flowID, err)
		}
	}

	c.resolver.Swap(newRules, newCache) // step 7

	// §6: resolv.conf takeover happens on construction and on every rule
	// reload, not just once at startup.
	if err := c.resolver.TakeoverResolvConf(); err != nil {
		log.Errorf("dnsreload: resolv.conf takeover failed: %v", err)
	}

	return nil
}

func entriesFromItem(item dnscache.Item) []flowdns.Entry {
	out := make([]flowdns.Entry, 0, len(item.Records))
	for _, rr := range item.Records {
		switch v := rr.(type) {
		case *dns.A:
			out = append(out, flowdns.Entry{IP: v.A, Mark: item.Mark})
		case *dns.AAAA:
			out = append(out, flowdns.Entry{IP: v.AAAA, Mark: item.Mark})
		}
	}
	return out
}
