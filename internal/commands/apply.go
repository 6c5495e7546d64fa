package commands

import (
	"flag"
	"fmt"

	"github.com/veylan/routerd/internal/config"
	"github.com/veylan/routerd/internal/daemon"
	"github.com/veylan/routerd/internal/log"
	"github.com/veylan/routerd/internal/networking"
)

func CreateApplyCommand() *ApplyCommand {
	return &ApplyCommand{fs: flag.NewFlagSet("apply", flag.ExitOnError)}
}

// ApplyCommand is the one-shot path: it starts every persisted C11 config
// directly, outside any supervisor, and exits leaving the kernel state
// (routes, iptables rules, leases) in place.
type ApplyCommand struct {
	fs  *flag.FlagSet
	ctx *AppContext
	cfg *config.Config
}

func (c *ApplyCommand) Name() string { return c.fs.Name() }

func (c *ApplyCommand) Init(args []string, ctx *AppContext) error {
	c.ctx = ctx
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadAndValidateConfigOrFail(ctx.ConfigPath)
	if err != nil {
		return err
	}
	if err := networking.ValidateInterfacesArePresent(cfg, ctx.Interfaces); err != nil {
		return fmt.Errorf("failed to validate interfaces: %v", err)
	}
	c.cfg = cfg
	return nil
}

func (c *ApplyCommand) Run() error {
	results, err := daemon.ApplyOnce(c.cfg)
	if err != nil {
		return fmt.Errorf("apply failed: %w", err)
	}
	if len(results) == 0 {
		log.Warnf("apply: nothing to apply")
		return nil
	}
	for key, status := range results {
		log.Infof("apply: %s: %+v", key, status)
	}
	return nil
}
