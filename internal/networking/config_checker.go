package networking

import (
	"fmt"

	"github.com/veylan/routerd/internal/config"
)

// ValidateInterfacesArePresent checks that every interface named by a C11
// starter config actually exists on this host, so apply/service fail fast
// with a clear message instead of each starter erroring independently.
func ValidateInterfacesArePresent(c *config.Config, interfaces []Interface) error {
	var missing []string
	check := func(name string) {
		if !validateInterfaceExists(name, interfaces) {
			missing = append(missing, name)
		}
	}

	for _, d := range c.DHCPClients {
		check(d.IfaceName)
	}
	for _, p := range c.PPPoEs {
		check(p.IfaceName)
	}
	for _, r := range c.IPv6RAs {
		check(r.IfaceName)
	}
	for _, f := range c.Firewalls {
		check(f.IfaceName)
	}
	for _, m := range c.MSSClamps {
		check(m.IfaceName)
	}
	for _, rt := range c.RoutingRules {
		check(rt.IfaceName)
	}

	if len(missing) > 0 {
		return fmt.Errorf("interfaces not present on this host: %v", missing)
	}
	return nil
}

func validateInterfaceExists(interfaceName string, interfaces []Interface) bool {
	for _, iface := range interfaces {
		if iface.Attrs().Name == interfaceName {
			return true
		}
	}
	return false
}
