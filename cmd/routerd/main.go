package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/veylan/routerd/internal/commands"
	"github.com/veylan/routerd/internal/log"
	"github.com/veylan/routerd/internal/networking"
)

var (
	version = "dev"
	commit  = "n/a"
	date    = "n/a"
)

func main() {
	ctx := &commands.AppContext{}

	flag.StringVar(&ctx.ConfigPath, "config", "/etc/routerd/routerd.conf", "Path to configuration file")
	flag.BoolVar(&ctx.Verbose, "verbose", false, "Enable debug logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "routerd: interface services, policy DNS, and admin HTTP in one daemon\n")
		fmt.Fprintf(os.Stderr, "Version: %s (Commit: %s, Date: %s)\n\n", version, commit, date)
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <command>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  service      Run as a daemon (interface services, DNS, admin API)\n")
		fmt.Fprintf(os.Stderr, "  apply        Apply persisted configs once and exit\n")
		fmt.Fprintf(os.Stderr, "  interfaces   List host network interfaces\n")
		fmt.Fprintf(os.Stderr, "  self-check   Validate configuration and environment\n")
		fmt.Fprintf(os.Stderr, "  rules        Print the active DNS rule set\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if ctx.Verbose {
		log.SetVerbose(true)
	}

	if _, err := os.Stat(ctx.ConfigPath); errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Configuration file not found: %s", ctx.ConfigPath)
	}

	var err error
	if ctx.Interfaces, err = networking.GetInterfaceList(); err != nil {
		log.Fatalf("Failed to get interfaces list: %v", err)
	}

	cmds := []commands.Runner{
		commands.CreateServiceCommand(),
		commands.CreateApplyCommand(),
		commands.CreateInterfacesCommand(),
		commands.CreateSelfCheckCommand(),
		commands.CreateRulesCommand(),
	}

	args := flag.Args()

	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	subcommand := args[0]
	for _, cmd := range cmds {
		if cmd.Name() == subcommand {
			if err := cmd.Init(args[1:], ctx); err != nil {
				log.Fatalf("Failed to initialize command: %v", err)
			}

			if err := cmd.Run(); err != nil {
				log.Fatalf("Failed to run command: %v", err)
			}

			os.Exit(0)
		}
	}

	log.Fatalf("Unknown subcommand: %s", subcommand)
}
