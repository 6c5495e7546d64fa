package commands

import (
	"flag"
	"fmt"
	"sort"

	"github.com/veylan/routerd/internal/config"
	"github.com/veylan/routerd/internal/daemon"
	"github.com/veylan/routerd/internal/log"
)

func CreateRulesCommand() *RulesCommand {
	return &RulesCommand{fs: flag.NewFlagSet("rules", flag.ExitOnError)}
}

// RulesCommand prints the active DNS rule set (C5) in ascending index order.
type RulesCommand struct {
	fs  *flag.FlagSet
	cfg *config.Config
}

func (c *RulesCommand) Name() string { return c.fs.Name() }

func (c *RulesCommand) Init(args []string, ctx *AppContext) error {
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

func (c *RulesCommand) Run() error {
	stores, err := daemon.LoadStores(c.cfg)
	if err != nil {
		return fmt.Errorf("failed to load config stores: %w", err)
	}
	rules, err := stores.Rules.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list DNS rules: %w", err)
	}
	if len(rules) == 0 {
		log.Infof("no DNS rules configured")
		return nil
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Index < rules[j].Index })
	for _, r := range rules {
		log.Infof("[%d] %s (id=%s enable=%v mark=%d flow_id=%d)", r.Index, r.Name, r.ID, r.Enable, r.Mark, r.FlowID)
	}
	return nil
}
