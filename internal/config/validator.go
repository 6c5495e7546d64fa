package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/veylan/routerd/internal/dnsrule"
	"github.com/veylan/routerd/internal/geosite"
)

// ValidateConfig runs struct-tag validation (via go-playground/validator)
// across the whole config, then cross-field checks struct tags can't
// express: duplicate interface names within a starter kind, and duplicate
// routing resources across routing starters.
func (c *Config) ValidateConfig() error {
	if err := validate.Struct(c); err != nil {
		return toValidationErrors(err)
	}

	if err := checkIsDistinct(c.DHCPClients, func(x *DHCPClientConfig) string { return x.IfaceName }); err != nil {
		return fmt.Errorf("duplicate dhcp_client iface_name: %v", err)
	}
	if err := checkIsDistinct(c.PPPoEs, func(x *PPPoEConfig) string { return x.IfaceName }); err != nil {
		return fmt.Errorf("duplicate pppoe iface_name: %v", err)
	}
	if err := checkIsDistinct(c.IPv6RAs, func(x *IPv6RAConfig) string { return x.IfaceName }); err != nil {
		return fmt.Errorf("duplicate ipv6_ra iface_name: %v", err)
	}
	if err := checkIsDistinct(c.Firewalls, func(x *FirewallConfig) string { return x.IfaceName }); err != nil {
		return fmt.Errorf("duplicate firewall iface_name: %v", err)
	}
	if err := checkIsDistinct(c.MSSClamps, func(x *MSSClampConfig) string { return x.IfaceName }); err != nil {
		return fmt.Errorf("duplicate mss_clamp iface_name: %v", err)
	}
	if err := checkIsDistinct(c.RoutingRules, func(x *RoutingConfig) string { return x.IfaceName }); err != nil {
		return fmt.Errorf("duplicate routing iface_name: %v", err)
	}
	if err := checkIsDistinct(c.RoutingRules, func(x *RoutingConfig) int { return x.IPRouteTable }); err != nil {
		return fmt.Errorf("duplicate routing tables: %v", err)
	}
	if err := checkIsDistinct(c.RoutingRules, func(x *RoutingConfig) int { return x.IPRulePriority }); err != nil {
		return fmt.Errorf("duplicate routing rule priorities: %v", err)
	}
	if err := checkIsDistinct(c.RoutingRules, func(x *RoutingConfig) uint32 { return x.FwMark }); err != nil {
		return fmt.Errorf("duplicate fwmarks: %v", err)
	}

	if c.DNS != nil {
		if err := checkIsDistinct(c.DNS.Rules, func(r dnsrule.Config) string { return r.Key() }); err != nil {
			return fmt.Errorf("duplicate dns rule id: %v", err)
		}
		if err := checkIsDistinct(c.DNS.GeoSiteSources, func(s geosite.SourceConfig) string { return s.Key() }); err != nil {
			return fmt.Errorf("duplicate geosite_source name: %v", err)
		}
	}

	return nil
}

func toValidationErrors(err error) ValidationErrors {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationErrors{{FieldPath: "config", Message: err.Error()}}
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			FieldPath: fe.Namespace(),
			Message:   getValidationMessage(fe),
		})
	}
	return out
}

func checkIsDistinct[U, T comparable](list []U, mapper func(U) T) error {
	seen := make(map[T]bool)

	for _, item := range list {
		t := mapper(item)
		if seen[t] {
			return fmt.Errorf("value \"%v\" is used more than once", t)
		}
		seen[t] = true
	}

	return nil
}
