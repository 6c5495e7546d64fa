package networking

import (
	"testing"

	"github.com/vishvananda/netlink"

	"github.com/veylan/routerd/internal/config"
)

func fakeInterface(name string) Interface {
	attrs := netlink.NewLinkAttrs()
	attrs.Name = name
	return Interface{&netlink.Dummy{LinkAttrs: attrs}}
}

func TestValidateInterfacesArePresent_AllPresent(t *testing.T) {
	ifaces := []Interface{fakeInterface("eth0"), fakeInterface("eth1")}
	cfg := &config.Config{
		DHCPClients: []*config.DHCPClientConfig{{IfaceName: "eth0"}},
		Firewalls:   []*config.FirewallConfig{{IfaceName: "eth1"}},
	}

	if err := ValidateInterfacesArePresent(cfg, ifaces); err != nil {
		t.Fatalf("ValidateInterfacesArePresent() error = %v, want nil", err)
	}
}

func TestValidateInterfacesArePresent_MissingAcrossKinds(t *testing.T) {
	ifaces := []Interface{fakeInterface("eth0")}
	cfg := &config.Config{
		DHCPClients:  []*config.DHCPClientConfig{{IfaceName: "eth0"}},
		PPPoEs:       []*config.PPPoEConfig{{IfaceName: "ppp0"}},
		RoutingRules: []*config.RoutingConfig{{IfaceName: "wan1"}},
	}

	err := ValidateInterfacesArePresent(cfg, ifaces)
	if err == nil {
		t.Fatal("ValidateInterfacesArePresent() error = nil, want error for missing interfaces")
	}
}

func TestValidateInterfacesArePresent_Empty(t *testing.T) {
	if err := ValidateInterfacesArePresent(&config.Config{}, nil); err != nil {
		t.Fatalf("ValidateInterfacesArePresent() error = %v, want nil for empty config", err)
	}
}
