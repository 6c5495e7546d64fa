package config

import "testing"

func validConfig() *Config {
	return &Config{
		General: &GeneralConfig{StateDir: "state", AdminBindAddr: "127.0.0.1:8080"},
		DNS: &DNSConfig{
			Enable:          true,
			ListenAddr:      "127.0.0.1",
			ListenPort:      53,
			GeoSiteCacheDir: "state/geosite",
		},
		RoutingRules: []*RoutingConfig{
			{IfaceName: "wan0", IPVersion: Ipv4, FwMark: 100, IPRouteTable: 100, IPRulePriority: 100},
		},
	}
}

func TestValidateConfig_Valid(t *testing.T) {
	if err := validConfig().ValidateConfig(); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func TestValidateConfig_MissingRequiredField(t *testing.T) {
	c := validConfig()
	c.General.StateDir = ""

	if err := c.ValidateConfig(); err == nil {
		t.Error("expected validation error for missing state_dir")
	}
}

func TestValidateConfig_BadListenAddr(t *testing.T) {
	c := validConfig()
	c.DNS.ListenAddr = "not-an-ip"

	if err := c.ValidateConfig(); err == nil {
		t.Error("expected validation error for bad listen_addr")
	}
}

func TestValidateConfig_DuplicateIfaceName(t *testing.T) {
	c := validConfig()
	c.DHCPClients = []*DHCPClientConfig{
		{IfaceName: "eth0", RetryIntervalSeconds: 10},
		{IfaceName: "eth0", RetryIntervalSeconds: 10},
	}

	if err := c.ValidateConfig(); err == nil {
		t.Error("expected validation error for duplicate dhcp_client iface_name")
	}
}

func TestValidateConfig_DuplicateFwMark(t *testing.T) {
	c := validConfig()
	c.RoutingRules = append(c.RoutingRules, &RoutingConfig{
		IfaceName: "wan1", IPVersion: Ipv4, FwMark: 100, IPRouteTable: 101, IPRulePriority: 101,
	})

	if err := c.ValidateConfig(); err == nil {
		t.Error("expected validation error for duplicate fwmark")
	}
}
