package commands

import (
	"flag"
	"fmt"
	"os/exec"

	"github.com/veylan/routerd/internal/config"
	"github.com/veylan/routerd/internal/log"
)

func CreateSelfCheckCommand() *SelfCheckCommand {
	return &SelfCheckCommand{fs: flag.NewFlagSet("self-check", flag.ExitOnError)}
}

// SelfCheckCommand validates the persisted config and the host environment
// every configured C11 starter needs, without starting anything.
type SelfCheckCommand struct {
	fs  *flag.FlagSet
	ctx *AppContext
	cfg *config.Config
}

func (c *SelfCheckCommand) Name() string { return c.fs.Name() }

func (c *SelfCheckCommand) Init(args []string, ctx *AppContext) error {
	c.ctx = ctx
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadAndValidateConfigOrFail(ctx.ConfigPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

func (c *SelfCheckCommand) Run() error {
	log.Infof("self-check: configuration loaded and validated")

	hasFailures := false
	check := func(ok bool, format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		if ok {
			log.Infof("[PASS] %s", msg)
		} else {
			log.Errorf("[FAIL] %s", msg)
			hasFailures = true
		}
	}

	known := make(map[string]bool, len(c.ctx.Interfaces))
	for _, iface := range c.ctx.Interfaces {
		known[iface.Attrs().Name] = true
	}
	checkIface := func(name string) {
		check(known[name], "interface %q is present on this host", name)
	}
	for _, d := range c.cfg.DHCPClients {
		checkIface(d.IfaceName)
	}
	for _, p := range c.cfg.PPPoEs {
		checkIface(p.IfaceName)
	}
	for _, r := range c.cfg.IPv6RAs {
		checkIface(r.IfaceName)
	}
	for _, f := range c.cfg.Firewalls {
		checkIface(f.IfaceName)
	}
	for _, m := range c.cfg.MSSClamps {
		checkIface(m.IfaceName)
	}
	for _, rt := range c.cfg.RoutingRules {
		checkIface(rt.IfaceName)
	}

	if len(c.cfg.PPPoEs) > 0 {
		_, err := exec.LookPath("pppd")
		check(err == nil, "pppd is installed (%v)", err)
	}
	needsIptables := len(c.cfg.Firewalls) > 0 || len(c.cfg.MSSClamps) > 0 || hasMasquerade(c.cfg.RoutingRules)
	if needsIptables {
		_, err := exec.LookPath("iptables")
		check(err == nil, "iptables is installed (%v)", err)
	}

	if hasFailures {
		return fmt.Errorf("self-check failed")
	}
	log.Infof("self-check completed successfully")
	return nil
}

func hasMasquerade(routes []*config.RoutingConfig) bool {
	for _, r := range routes {
		if r.Masquerade {
			return true
		}
	}
	return false
}
