// Package daemon wires the control-plane engines (C1-C10) to the six C11
// interface-service starters and the persisted configuration (C14) into one
// running process. It is the composition root cmd/routerd's subcommands
// build against; nothing outside this package knows how the pieces fit
// together.
package daemon

import (
	"context"
	"net"
	"path/filepath"
	"strconv"

	"github.com/veylan/routerd/internal/config"
	"github.com/veylan/routerd/internal/configctl"
	"github.com/veylan/routerd/internal/dnsreload"
	"github.com/veylan/routerd/internal/dnsresolver"
	"github.com/veylan/routerd/internal/dnsrule"
	apperrors "github.com/veylan/routerd/internal/errors"
	"github.com/veylan/routerd/internal/flowdns"
	"github.com/veylan/routerd/internal/geosite"
	"github.com/veylan/routerd/internal/ifservice"
	"github.com/veylan/routerd/internal/log"
	"github.com/veylan/routerd/internal/supervisor"
)

// Daemon holds every long-lived component the service, apply, and rules
// commands share: one configctl.Controller per C11 starter kind, the DNS
// resolver/reload/geosite pipeline, and the stores the admin HTTP surface
// (C13) reads and writes.
type Daemon struct {
	Config *config.Config

	Resolver *dnsresolver.Resolver
	Reload   *dnsreload.Coordinator
	GeoSite  *geosite.Service

	DHCPClients *configctl.Controller[*config.DHCPClientConfig, ifservice.Status]
	PPPoEs      *configctl.Controller[*config.PPPoEConfig, ifservice.Status]
	IPv6RAs     *configctl.Controller[*config.IPv6RAConfig, ifservice.Status]
	Firewalls   *configctl.Controller[*config.FirewallConfig, ifservice.Status]
	MSSClamps   *configctl.Controller[*config.MSSClampConfig, ifservice.Status]
	Routing     *configctl.Controller[*config.RoutingConfig, ifservice.Status]

	Rules    *configctl.FileRepository[dnsrule.Config]
	GeoSites *configctl.FileRepository[geosite.SourceConfig]
}

// Stores is every C11 kind's persisted config repository plus the DNS
// rule/geosite repositories, loaded (and first-run seeded from the main
// config file) but not yet wired to any supervisor.
type Stores struct {
	DHCPClients *configctl.FileRepository[*config.DHCPClientConfig]
	PPPoEs      *configctl.FileRepository[*config.PPPoEConfig]
	IPv6RAs     *configctl.FileRepository[*config.IPv6RAConfig]
	Firewalls   *configctl.FileRepository[*config.FirewallConfig]
	MSSClamps   *configctl.FileRepository[*config.MSSClampConfig]
	Routing     *configctl.FileRepository[*config.RoutingConfig]

	Rules    *configctl.FileRepository[dnsrule.Config]
	GeoSites *configctl.FileRepository[geosite.SourceConfig]
}

// LoadStores opens (and first-run seeds) every per-kind config store under
// cfg's state directory. Both ServiceCommand and ApplyCommand start here.
func LoadStores(cfg *config.Config) (*Stores, error) {
	storeDir := filepath.Join(cfg.GetAbsStateDir(), "config")

	var s Stores
	var err error
	if s.Rules, err = seedFileRepository(filepath.Join(storeDir, "dns_rules.toml"), cfg.DNS.Rules); err != nil {
		return nil, err
	}
	if s.GeoSites, err = seedFileRepository(filepath.Join(storeDir, "geosite_sources.toml"), cfg.DNS.GeoSiteSources); err != nil {
		return nil, err
	}
	if s.DHCPClients, err = seedFileRepository(filepath.Join(storeDir, "dhcp_client.toml"), cfg.DHCPClients); err != nil {
		return nil, err
	}
	if s.PPPoEs, err = seedFileRepository(filepath.Join(storeDir, "pppoe.toml"), cfg.PPPoEs); err != nil {
		return nil, err
	}
	if s.IPv6RAs, err = seedFileRepository(filepath.Join(storeDir, "ipv6_ra.toml"), cfg.IPv6RAs); err != nil {
		return nil, err
	}
	if s.Firewalls, err = seedFileRepository(filepath.Join(storeDir, "firewall.toml"), cfg.Firewalls); err != nil {
		return nil, err
	}
	if s.MSSClamps, err = seedFileRepository(filepath.Join(storeDir, "mss_clamp.toml"), cfg.MSSClamps); err != nil {
		return nil, err
	}
	if s.Routing, err = seedFileRepository(filepath.Join(storeDir, "routing.toml"), cfg.RoutingRules); err != nil {
		return nil, err
	}
	return &s, nil
}

// Build constructs every engine from cfg but starts nothing beyond loading
// the initial persisted configs into each C11 Manager: callers decide
// whether to run the full service loop (ServiceCommand) or tear the
// returned Daemon back down (ApplyCommand uses ApplyOnce instead).
func Build(ctx context.Context, cfg *config.Config) (*Daemon, error) {
	stores, err := LoadStores(cfg)
	if err != nil {
		return nil, err
	}

	geoStore, err := geosite.NewStore(cfg.DNS.GeoSiteCacheDir)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to open geosite cache", err)
	}
	geoSvc := geosite.NewService(geoStore, stores.GeoSites, geosite.NewHTTPFetcher())

	programmer := flowdns.WithErrorLogging(flowdns.NewMemoryProgrammer())

	resolver := dnsresolver.New(
		resolveListenAddr(cfg.DNS),
		dnsrule.NewRuleSet(nil, geoStore),
		cfg.DNS.CacheMaxDomains,
		programmer,
	)

	reload := dnsreload.New(resolver, stores.Rules, geoStore, programmer, cfg.DNS.CacheMaxDomains)
	if err := reload.Reload(); err != nil {
		log.Warnf("daemon: initial rule load failed: %v", err)
	}

	d := &Daemon{
		Config:   cfg,
		Resolver: resolver,
		Reload:   reload,
		GeoSite:  geoSvc,
		Rules:    stores.Rules,
		GeoSites: stores.GeoSites,

		DHCPClients: buildController(ctx, stores.DHCPClients, ifservice.NewDHCPClientStarter()),
		PPPoEs:      buildController(ctx, stores.PPPoEs, ifservice.NewPPPoEStarter()),
		IPv6RAs:     buildController(ctx, stores.IPv6RAs, ifservice.NewIPv6RAStarter()),
		Firewalls:   buildController(ctx, stores.Firewalls, ifservice.NewFirewallStarter()),
		MSSClamps:   buildController(ctx, stores.MSSClamps, ifservice.NewMSSClampStarter()),
		Routing:     buildController(ctx, stores.Routing, ifservice.NewRoutingStarter()),
	}
	return d, nil
}

// ReapplyConfigs re-lists every C11 kind's store and pushes each entry back
// through its controller, so each supervisor is handed its stored config
// again. The stores list the copies they hold in memory; their files are
// read only at startup, so a hand edit to a store file is not picked up
// here. Used by ServiceCommand's SIGHUP handler, per §4.13.
func (d *Daemon) ReapplyConfigs() {
	reapplyAll[*config.DHCPClientConfig](d.DHCPClients)
	reapplyAll[*config.PPPoEConfig](d.PPPoEs)
	reapplyAll[*config.IPv6RAConfig](d.IPv6RAs)
	reapplyAll[*config.FirewallConfig](d.Firewalls)
	reapplyAll[*config.MSSClampConfig](d.MSSClamps)
	reapplyAll[*config.RoutingConfig](d.Routing)
}

func reapplyAll[C supervisor.Keyed](ctrl *configctl.Controller[C, ifservice.Status]) {
	configs, err := ctrl.ListConfigs()
	if err != nil {
		log.Errorf("daemon: reapply: listing configs failed: %v", err)
		return
	}
	for _, cfg := range configs {
		if err := ctrl.HandleServiceConfig(cfg); err != nil {
			log.Errorf("daemon: reapply: %s: %v", cfg.Key(), err)
		}
	}
}

// ApplyOnce starts every persisted C11 config directly against
// context.Background(), outside any supervisor actor: each starter's own
// teardown goroutine waits on StopRequested/ctx.Done, neither of which ever
// fires, so the applied kernel state (routes, iptables rules, leases)
// survives after this process exits. This is what makes "apply" a true
// one-shot distinct from "service".
func ApplyOnce(cfg *config.Config) (map[string]ifservice.Status, error) {
	stores, err := LoadStores(cfg)
	if err != nil {
		return nil, err
	}

	results := make(map[string]ifservice.Status)
	bg := context.Background()

	applyAll(bg, stores.DHCPClients, ifservice.NewDHCPClientStarter(), results)
	applyAll(bg, stores.PPPoEs, ifservice.NewPPPoEStarter(), results)
	applyAll(bg, stores.IPv6RAs, ifservice.NewIPv6RAStarter(), results)
	applyAll(bg, stores.Firewalls, ifservice.NewFirewallStarter(), results)
	applyAll(bg, stores.MSSClamps, ifservice.NewMSSClampStarter(), results)
	applyAll(bg, stores.Routing, ifservice.NewRoutingStarter(), results)

	return results, nil
}

func applyAll[C supervisor.Keyed](ctx context.Context, repo *configctl.FileRepository[C], starter supervisor.Starter[C, ifservice.Status], results map[string]ifservice.Status) {
	configs, err := repo.ListAll()
	if err != nil {
		log.Errorf("daemon: apply: listing configs failed: %v", err)
		return
	}
	for _, cfg := range configs {
		handle, err := starter.Start(ctx, cfg)
		if err != nil {
			log.Errorf("daemon: apply: %s: %v", cfg.Key(), err)
			continue
		}
		_, status := handle.Snapshot()
		results[cfg.Key()] = status
	}
}

// buildController starts one supervisor.Manager per already-loaded set of
// configs and wraps it with the persisted repository, per C4.
func buildController[C supervisor.Keyed](ctx context.Context, repo *configctl.FileRepository[C], starter supervisor.Starter[C, ifservice.Status]) *configctl.Controller[C, ifservice.Status] {
	initial, err := repo.ListAll()
	if err != nil {
		log.Errorf("daemon: listing persisted configs failed: %v", err)
	}
	manager := supervisor.NewManager(ctx, starter, initial)
	return configctl.New[C, ifservice.Status](repo, manager)
}

// seedFileRepository loads path and, on first run (no store file yet but
// inline configs present in the main config file), seeds it from seed so
// the independently-editable store and the declarative config file agree
// until the admin API diverges them.
func seedFileRepository[C supervisor.Keyed](path string, seed []C) (*configctl.FileRepository[C], error) {
	repo, err := configctl.NewFileRepository[C](path)
	if err != nil {
		return nil, err
	}
	existing, err := repo.ListAll()
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 || len(seed) == 0 {
		return repo, nil
	}
	for _, cfg := range seed {
		if err := repo.Upsert(cfg); err != nil {
			return nil, err
		}
	}
	return repo, nil
}

func resolveListenAddr(dns *config.DNSConfig) string {
	return net.JoinHostPort(dns.ListenAddr, strconv.Itoa(int(dns.ListenPort)))
}
