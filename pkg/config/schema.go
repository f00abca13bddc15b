package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/orange-opensource/its-fabric/pkg/filter"
)

// Root is the strongly-typed shape of the fabric's YAML configuration
// tree, used by the cmd binaries to wire up their components at
// startup. Manager's generic map view of the same file backs the
// admin HTTP surface; Root exists alongside it so startup code gets compile-time checked
// field access instead of repeated type assertions.
type Root struct {
	Logging   LoggingConfig   `yaml:"logging"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Topics    TopicsConfig    `yaml:"topics"`
	ROI       ROIConfig       `yaml:"roi"`
	Authority AuthorityConfig `yaml:"authority"`
	Filters   []filter.Config `yaml:"filters"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Info      InfoConfig      `yaml:"info"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
	Web       WebConfig       `yaml:"web"`
	GNSS      GNSSConfig      `yaml:"gnss"`
}

type LoggingConfig struct {
	Path       string `yaml:"path"`
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type MQTTConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Transport string `yaml:"transport"` // "tcp" or "websocket"
	TLS       bool   `yaml:"tls"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	ClientID  string `yaml:"client_id"`
}

type TopicsConfig struct {
	Prefix string `yaml:"prefix"`
	Suffix string `yaml:"suffix"`
	// DefaultDepths holds a quadkey depth per message type. It is
	// parsed from the file but no binary reads it; cmd/vehicle takes
	// its subscription depths from ROIConfig.Depths.
	DefaultDepths map[string]int `yaml:"default_depths"`
}

type ROIConfig struct {
	Depths map[string]int `yaml:"depths"`
	Speeds []float64      `yaml:"speeds"`
}

type AuthorityConfig struct {
	Type          string `yaml:"type"` // "file", "http", "mqtt"
	Path          string `yaml:"path"`
	ReloadSeconds int    `yaml:"reload_seconds"`
	URI           string `yaml:"uri"`
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	Topic         string `yaml:"topic"`
	ClientID      string `yaml:"client_id"`
}

type TelemetryConfig struct {
	Endpoint           string `yaml:"endpoint"`
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	BatchTimeoutMS     int    `yaml:"batch_timeout_ms"`
	MaxExportBatchSize int    `yaml:"max_export_batch_size"`
	Compression        string `yaml:"compression"` // "none" or "gzip"
}

type InfoConfig struct {
	Topic        string   `yaml:"topic"`
	PeriodSecs   int      `yaml:"period_seconds"`
	ServiceArea  []string `yaml:"service_area"`
	InstanceType string   `yaml:"instance_type"`
}

type BootstrapConfig struct {
	Endpoint           string `yaml:"endpoint"`
	PSKLogin           string `yaml:"psk_login"`
	PSKPassword        string `yaml:"psk_password"`
	Role               string `yaml:"role"`
	MaxElapsedSeconds  int    `yaml:"max_elapsed_seconds"`
}

type WebConfig struct {
	Port       int    `yaml:"port"`
	AdminToken string `yaml:"admin_token"`
}

type GNSSConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoadRoot reads and parses configPath into a Root. Unlike Manager, it
// performs no locking or hot-reload — it is meant to be called once at
// process startup.
func LoadRoot(configPath string) (*Root, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
	}
	var root Root
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", configPath, err)
	}
	return &root, nil
}
