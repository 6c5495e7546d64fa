package config

import (
	"os"
	"path/filepath"
	"testing"
)

const minimalConfigTOML = `
[general]
state_dir = "state"

[dns]
enable = true
listen_addr = "127.0.0.1"
listen_port = 53
geosite_cache_dir = "state/geosite"
`

func writeMinimalConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "routerd.toml")
	if err := os.WriteFile(path, []byte(minimalConfigTOML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestConfigHasher_StableAcrossIdenticalLoads(t *testing.T) {
	path := writeMinimalConfig(t, t.TempDir())
	h := NewConfigHasher(path)

	a, err := h.UpdateCurrentConfigHash()
	if err != nil {
		t.Fatalf("UpdateCurrentConfigHash() error = %v", err)
	}
	b, err := h.GetCurrentConfigHash()
	if err != nil {
		t.Fatalf("GetCurrentConfigHash() error = %v", err)
	}
	if a != b {
		t.Errorf("hash changed across identical loads: %s != %s", a, b)
	}
}

func TestConfigHasher_ChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	path := writeMinimalConfig(t, dir)
	h := NewConfigHasher(path)

	before, err := h.UpdateCurrentConfigHash()
	if err != nil {
		t.Fatalf("UpdateCurrentConfigHash() error = %v", err)
	}

	changed := minimalConfigTOML + "\n[[routing]]\niface_name = \"wan0\"\nip_version = 4\nfwmark = 100\ntable = 100\npriority = 100\n"
	if err := os.WriteFile(path, []byte(changed), 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	after, err := h.UpdateCurrentConfigHash()
	if err != nil {
		t.Fatalf("UpdateCurrentConfigHash() error = %v", err)
	}

	if before == after {
		t.Error("expected hash to change after content change")
	}
}

func TestConfigHasher_ActiveHash(t *testing.T) {
	h := NewConfigHasher("/unused")
	if h.GetActiveConfigHash() != "" {
		t.Error("expected empty active hash before SetActiveConfigHash")
	}
	h.SetActiveConfigHash("abc123")
	if h.GetActiveConfigHash() != "abc123" {
		t.Errorf("GetActiveConfigHash() = %s, want abc123", h.GetActiveConfigHash())
	}
}
