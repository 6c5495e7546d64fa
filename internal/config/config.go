package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/veylan/routerd/internal/log"
)

func LoadConfig(configPath string) (*Config, error) {
	configFile := filepath.Clean(configPath)

	if !filepath.IsAbs(configFile) {
		if path, err := filepath.Abs(configFile); err != nil {
			return nil, fmt.Errorf("failed to get absolute path: %v", err)
		} else {
			configFile = path
		}
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		parentDir := filepath.Dir(configFile)
		if err := os.MkdirAll(parentDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create parent directory: %v", err)
		}
		log.Errorf("Configuration file not found: %s", configFile)
		return nil, fmt.Errorf("configuration file not found: %s", configFile)
	}

	content, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	var config Config
	if err := toml.Unmarshal(content, &config); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			log.Errorf(derr.String())
			row, col := derr.Position()
			log.Errorf("Error at line %d, column %d", row, col)
			return nil, fmt.Errorf("failed to parse config file")
		}
		return nil, fmt.Errorf("failed to parse config file: %v", err)
	}

	config._absConfigFilePath = configFile
	applyDefaults(&config)

	log.Debugf("Configuration file path: %s", configFile)
	log.Debugf("State directory: %s", config.GetAbsStateDir())

	return &config, nil
}

// applyDefaults fills in the zero-value defaults the TOML format allows
// callers to omit.
func applyDefaults(c *Config) {
	if c.General == nil {
		c.General = &GeneralConfig{StateDir: "state", EnableAdminAPI: true}
	}
	if c.General.StateDir == "" {
		c.General.StateDir = "state"
	}
	if c.General.AdminBindAddr == "" {
		c.General.AdminBindAddr = "127.0.0.1:8080"
	}
	if c.DNS == nil {
		c.DNS = &DNSConfig{Enable: true}
	}
	if c.DNS.ListenAddr == "" {
		c.DNS.ListenAddr = "127.0.0.1"
	}
	if c.DNS.ListenPort == 0 {
		c.DNS.ListenPort = 53
	}
	if c.DNS.CacheMaxDomains == 0 {
		c.DNS.CacheMaxDomains = 2048
	}
	if c.DNS.GeoSiteCacheDir == "" {
		c.DNS.GeoSiteCacheDir = filepath.Join(c.GetAbsStateDir(), "geosite")
	}
	for _, m := range c.MSSClamps {
		if m.ClampSize == 0 {
			m.ClampSize = 1492
		}
	}
	for _, d := range c.DHCPClients {
		if d.RetryIntervalSeconds == 0 {
			d.RetryIntervalSeconds = 10
		}
	}
}

func (c *Config) SerializeConfig() (*bytes.Buffer, error) {
	buf := bytes.Buffer{}
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return &buf, nil
}

func (c *Config) WriteConfig() error {
	config, err := c.SerializeConfig()
	if err != nil {
		return err
	}
	if err := os.WriteFile(c._absConfigFilePath, config.Bytes(), 0644); err != nil {
		return err
	}
	return nil
}
