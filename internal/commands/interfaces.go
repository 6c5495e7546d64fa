package commands

import (
	"flag"
	"fmt"

	"github.com/veylan/routerd/internal/networking"
)

func CreateInterfacesCommand() *InterfacesCommand {
	return &InterfacesCommand{fs: flag.NewFlagSet("interfaces", flag.ExitOnError)}
}

// InterfacesCommand lists the host's network interfaces, the same output
// an operator needs before picking an iface_name for a C11 starter config.
type InterfacesCommand struct {
	fs  *flag.FlagSet
	ctx *AppContext
}

func (c *InterfacesCommand) Name() string { return c.fs.Name() }

func (c *InterfacesCommand) Init(args []string, ctx *AppContext) error {
	c.ctx = ctx
	return c.fs.Parse(args)
}

func (c *InterfacesCommand) Run() error {
	if len(c.ctx.Interfaces) == 0 {
		return fmt.Errorf("no network interfaces found")
	}
	networking.PrintInterfaces(c.ctx.Interfaces, true)
	return nil
}
