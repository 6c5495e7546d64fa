package config

import "testing"

func TestConfig_GetAbsStateDir(t *testing.T) {
	tests := []struct {
		name     string
		stateDir string
		expected string
	}{
		{"relative", "state", "/home/user/config/state"},
		{"absolute", "/var/lib/routerd", "/var/lib/routerd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{
				General:            &GeneralConfig{StateDir: tt.stateDir},
				_absConfigFilePath: "/home/user/config/routerd.toml",
			}
			if got := c.GetAbsStateDir(); got != tt.expected {
				t.Errorf("GetAbsStateDir() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestDHCPClientConfig_Key(t *testing.T) {
	c := DHCPClientConfig{IfaceName: "eth0"}
	if c.Key() != "eth0" {
		t.Errorf("Key() = %s, want eth0", c.Key())
	}
}

func TestRoutingConfig_Key(t *testing.T) {
	c := RoutingConfig{IfaceName: "wan0"}
	if c.Key() != "wan0" {
		t.Errorf("Key() = %s, want wan0", c.Key())
	}
}
