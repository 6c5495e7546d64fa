// Package config handles configuration file parsing and validation (C14).
//
// The configuration file defines general daemon settings, the DNS resolver
// front-end's rule set and GeoSite sources, and six kinds of per-interface
// service configs (DHCP client, PPPoE, IPv6 RA, firewall, MSS clamp,
// routing), each validated with go-playground/validator struct tags.
//
// Loading and validating a configuration file:
//
//	cfg, err := config.LoadConfig("/etc/routerd/routerd.conf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.ValidateConfig(); err != nil {
//	    log.Fatal(err)
//	}
package config
