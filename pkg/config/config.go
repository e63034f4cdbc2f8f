// Package config loads a NOVA instance's YAML configuration file, per
// spec.md §6's Configuration table.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// UIConfig controls the UI-state manager's checkpoint and cold-seek
// bounds.
type UIConfig struct {
	CheckpointIntervalSeconds int `yaml:"checkpointIntervalSeconds"`
	HistoryTimeoutSeconds     int `yaml:"historyTimeoutSeconds"`
}

// TransportConfig describes the upstream bus connection.
type TransportConfig struct {
	URI string `yaml:"uri"`
}

// LogConfig is the ambient logging knob set, consumed by pkg/logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// MetricsConfig is the ambient Prometheus exposition knob set.
type MetricsConfig struct {
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// FacadeConfig is the listen address for pkg/facade.Channel
// connections, NOVA's own request/response surface — distinct from
// Transport, which names the upstream producer bus (out of scope per
// spec.md §1, not something NOVA itself listens on).
type FacadeConfig struct {
	Address string `yaml:"address"`
}

// Config is a NOVA instance's full configuration surface.
type Config struct {
	ScopeID   string          `yaml:"scopeId"`
	DBPath    string          `yaml:"dbPath"`
	DataDir   string          `yaml:"dataDir"`
	ExportDir string          `yaml:"exportDir"`
	UI        UIConfig        `yaml:"ui"`
	Transport TransportConfig `yaml:"transport"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Facade    FacadeConfig    `yaml:"facade"`
}

// defaults mirrors spec.md §6's stated defaults (checkpoint 500s,
// history timeout 120s) plus ambient defaults not named by the spec.
func defaults() Config {
	return Config{
		UI: UIConfig{
			CheckpointIntervalSeconds: 500,
			HistoryTimeoutSeconds:     120,
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Address: ":9090",
			Enabled: true,
		},
		Facade: FacadeConfig{
			Address: ":7777",
		},
	}
}

// Load reads and parses a YAML config file at path, applying defaults
// for any field the file leaves zero-valued.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the required fields are present and sane.
func (c Config) Validate() error {
	if c.ScopeID == "" {
		return fmt.Errorf("config: scopeId is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("config: dbPath is required")
	}
	if c.UI.CheckpointIntervalSeconds <= 0 {
		return fmt.Errorf("config: ui.checkpointIntervalSeconds must be positive")
	}
	if c.UI.HistoryTimeoutSeconds <= 0 {
		return fmt.Errorf("config: ui.historyTimeoutSeconds must be positive")
	}
	return nil
}

// CheckpointInterval returns ui.checkpointIntervalSeconds as a
// time.Duration.
func (c Config) CheckpointInterval() time.Duration {
	return time.Duration(c.UI.CheckpointIntervalSeconds) * time.Second
}

// HistoryTimeout returns ui.historyTimeoutSeconds as a time.Duration.
func (c Config) HistoryTimeout() time.Duration {
	return time.Duration(c.UI.HistoryTimeoutSeconds) * time.Second
}
