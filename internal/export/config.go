// Package export syncs workspace provenance through plain JSONL files so it
// can ride along in version control and merge across machines.
package export

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/openqed/openqed/internal/utils"
)

// KindConfig selects which record kinds sync. Events are off by default:
// they are bulky and the nuggets already carry the distilled value.
type KindConfig struct {
	Nuggets   bool `yaml:"nuggets"`
	Sessions  bool `yaml:"sessions"`
	Decisions bool `yaml:"decisions"`
	Artifacts bool `yaml:"artifacts"`
	Events    bool `yaml:"events"`
}

// Config is the per-workspace .openqed.yaml.
type Config struct {
	Version int        `yaml:"version"`
	Export  KindConfig `yaml:"export"`
}

// DefaultConfig is used when a workspace has no config file.
func DefaultConfig() Config {
	return Config{
		Version: 1,
		Export: KindConfig{
			Nuggets:   true,
			Sessions:  true,
			Decisions: true,
			Artifacts: true,
			Events:    false,
		},
	}
}

// LoadConfig reads the workspace config, falling back to defaults when the
// file is absent.
func LoadConfig(fs afero.Fs, workspacePath string) (Config, error) {
	configPath := filepath.Join(workspacePath, utils.ConfigFile)
	exists, err := afero.Exists(fs, configPath)
	if err != nil {
		return Config{}, fmt.Errorf("check config: %w", err)
	}
	if !exists {
		return DefaultConfig(), nil
	}

	raw, err := afero.ReadFile(fs, configPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", utils.ConfigFile, err)
	}
	if cfg.Version != 1 {
		return Config{}, fmt.Errorf("unsupported config version %d in %s", cfg.Version, utils.ConfigFile)
	}
	return cfg, nil
}

// WriteDefaultConfig writes the default .openqed.yaml into a workspace.
func WriteDefaultConfig(fs afero.Fs, workspacePath string) error {
	raw, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}
	configPath := filepath.Join(workspacePath, utils.ConfigFile)
	if err := afero.WriteFile(fs, configPath, raw, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
