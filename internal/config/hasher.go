package config

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

const hashCacheTTL = 5 * time.Minute

// ConfigHasher computes a content digest of the configuration file so the
// daemon can detect a no-op SIGHUP and skip redundant C3 updates (C14).
type ConfigHasher struct {
	configPath string

	mu              sync.RWMutex
	currentHash     string
	currentHashTime time.Time
	activeHash      string
}

// NewConfigHasher creates a new config hasher.
func NewConfigHasher(configPath string) *ConfigHasher {
	return &ConfigHasher{configPath: configPath}
}

// GetCurrentConfigHash returns the cached hash of the on-disk config,
// recomputing it on a cache miss.
func (h *ConfigHasher) GetCurrentConfigHash() (string, error) {
	h.mu.RLock()
	if time.Since(h.currentHashTime) < hashCacheTTL && h.currentHash != "" {
		hash := h.currentHash
		h.mu.RUnlock()
		return hash, nil
	}
	h.mu.RUnlock()

	return h.UpdateCurrentConfigHash()
}

// UpdateCurrentConfigHash reloads the config file and recomputes its hash
// unconditionally, resetting the cache.
func (h *ConfigHasher) UpdateCurrentConfigHash() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cfg, err := LoadConfig(h.configPath)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}

	hash, err := hashConfig(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to calculate hash: %w", err)
	}

	h.currentHash = hash
	h.currentHashTime = time.Now()
	return hash, nil
}

// GetActiveConfigHash returns the hash of the config that was active when
// the daemon last applied it.
func (h *ConfigHasher) GetActiveConfigHash() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.activeHash
}

// SetActiveConfigHash records the hash of the config just applied.
func (h *ConfigHasher) SetActiveConfigHash(hash string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.activeHash = hash
}

// hashConfig serializes the config deterministically (JSON field order
// follows struct declaration order, which is fixed) and returns its MD5.
func hashConfig(cfg *Config) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}
