// Package config loads and hot-reloads the fabric's YAML configuration
// tree: logging, the local MQTT broker connection, queue naming, the
// region-of-interest depth table, the neighbour authority, filter
// chains, telemetry export, the info beacon, and the bootstrap
// handshake.
package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/orange-opensource/its-fabric/internal/jsonpath"
)

// Manager owns the live configuration tree, guarded by a
// sync.RWMutex so the admin web surface can read it concurrently with
// an update.
type Manager struct {
	mu          sync.RWMutex
	configPath  string
	config      map[string]interface{}
	restartFunc func() error
}

// NewManager loads configPath and returns a Manager over it.
func NewManager(configPath string, restartFunc func() error) (*Manager, error) {
	m := &Manager{
		configPath:  configPath,
		restartFunc: restartFunc,
	}
	if err := m.loadConfig(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) loadConfig() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", m.configPath, err)
	}

	var parsed map[string]interface{}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parsing %s: %w", m.configPath, err)
	}

	m.mu.Lock()
	m.config = parsed
	m.mu.Unlock()
	return nil
}

func (m *Manager) saveConfig() error {
	m.mu.RLock()
	data, err := yaml.Marshal(m.config)
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("config: marshalling: %w", err)
	}

	tmp := m.configPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("config: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, m.configPath); err != nil {
		return fmt.Errorf("config: renaming %s to %s: %w", tmp, m.configPath, err)
	}
	return nil
}

// GetConfig returns a deep copy of the entire configuration tree.
func (m *Manager) GetConfig() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return deepCopy(m.config)
}

// UpdateConfig merges updates into the top level of the configuration
// tree and persists the result.
func (m *Manager) UpdateConfig(updates map[string]interface{}) error {
	m.mu.Lock()
	for k, v := range updates {
		m.config[k] = v
	}
	m.mu.Unlock()
	return m.saveConfig()
}

// RestartService invokes the restart callback supplied at construction.
func (m *Manager) RestartService() error {
	if m.restartFunc == nil {
		return fmt.Errorf("config: no restart function configured")
	}
	return m.restartFunc()
}

// GetSection returns a deep copy of one top-level section (e.g. "mqtt",
// "roi", "telemetry") of the configuration tree.
func (m *Manager) GetSection(name string) (map[string]interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	section, ok := m.config[name].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("config: section %q not found", name)
	}
	return deepCopy(section), nil
}

// UpdateSection replaces one top-level section and persists the result.
func (m *Manager) UpdateSection(name string, section map[string]interface{}) error {
	m.mu.Lock()
	if m.config == nil {
		m.config = map[string]interface{}{}
	}
	m.config[name] = section
	m.mu.Unlock()
	return m.saveConfig()
}

// GetValue returns the configuration value at a dotted path (e.g.
// "mqtt.host" or "filters.0.name"), sharing its walk with the filter
// engine's json_path retain-rewrite rule.
func (m *Manager) GetValue(path string) (interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := jsonpath.Get(m.config, path)
	if !ok {
		return nil, fmt.Errorf("config: path %q not found", path)
	}
	return v, nil
}

// SetValue sets the configuration value at a dotted path, creating
// intermediate sections as needed, and persists the result.
func (m *Manager) SetValue(path string, value interface{}) error {
	m.mu.Lock()
	if m.config == nil {
		m.config = map[string]interface{}{}
	}
	if err := jsonpath.Set(m.config, path, value); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("config: %w", err)
	}
	m.mu.Unlock()
	return m.saveConfig()
}

// Reload re-reads the configuration file from disk, discarding any
// in-memory changes not yet saved.
func (m *Manager) Reload() error {
	return m.loadConfig()
}

func deepCopy(src map[string]interface{}) map[string]interface{} {
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}
	return dst
}

func deepCopyValue(v interface{}) interface{} {
	switch v := v.(type) {
	case map[string]interface{}:
		return deepCopy(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}
