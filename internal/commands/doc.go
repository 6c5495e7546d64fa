// Package commands implements routerd's CLI subcommands.
//
// Each command implements the Runner interface (Init/Run/Name) and
// delegates to the daemon package for anything beyond flag parsing and
// config loading.
//
// # Available Commands
//
//   - service: run as a daemon (interface services, DNS, admin API)
//   - apply: apply persisted configs once and exit
//   - interfaces: list host network interfaces
//   - self-check: validate configuration and environment
//   - rules: print the active DNS rule set
package commands
