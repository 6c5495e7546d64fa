package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_NonExistentFile(t *testing.T) {
	_, err := LoadConfig("/non/existent/file.toml")
	if err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "invalid.toml")

	invalidTOML := `[general
	state_dir = "/tmp"`

	if err := os.WriteFile(configFile, []byte(invalidTOML), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if _, err := LoadConfig(configFile); err == nil {
		t.Error("Expected error for invalid TOML")
	}
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "valid.toml")

	validTOML := `[general]
state_dir = "state"
`

	if err := os.WriteFile(configFile, []byte(validTOML), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	cfg, err := LoadConfig(configFile)
	if err != nil {
		t.Fatalf("Expected no error for valid config: %v", err)
	}

	if cfg.DNS == nil {
		t.Fatal("expected DNS defaults to be filled in")
	}
	if cfg.DNS.ListenPort != 53 {
		t.Errorf("expected default listen_port 53, got %d", cfg.DNS.ListenPort)
	}
	if cfg.DNS.CacheMaxDomains != 2048 {
		t.Errorf("expected default cache_max_domains 2048, got %d", cfg.DNS.CacheMaxDomains)
	}
}

func TestLoadConfig_RelativePath(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.toml")

	if err := os.WriteFile(configFile, []byte(`[general]
state_dir = "state"
`), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd)
	os.Chdir(tmpDir)

	if _, err := LoadConfig("config.toml"); err != nil {
		t.Errorf("Expected no error for relative path: %v", err)
	}
}

func TestSerializeAndWriteConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "test.toml")

	cfg := &Config{
		General:            &GeneralConfig{StateDir: "state"},
		DNS:                &DNSConfig{Enable: true, ListenAddr: "127.0.0.1", ListenPort: 53},
		_absConfigFilePath: configFile,
	}

	buf, err := cfg.SerializeConfig()
	if err != nil {
		t.Fatalf("SerializeConfig() error = %v", err)
	}
	if buf.Len() == 0 {
		t.Error("expected non-empty serialized content")
	}

	if err := cfg.WriteConfig(); err != nil {
		t.Fatalf("WriteConfig() error = %v", err)
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		t.Error("Expected config file to exist after writing")
	}
}
