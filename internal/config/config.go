// Package config handles project discovery and the .specd/config.yaml
// file. Startup settings (repository coordinates, status mapping) live
// in the YAML file; per-project integration keys live in the store's
// config table.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sddlab/specd/internal/status"
	"github.com/sddlab/specd/internal/types"
)

const (
	// DirName is the project metadata directory.
	DirName = ".specd"

	// ConfigFileName is the YAML config inside the project directory.
	ConfigFileName = "config.yaml"

	// DatabaseFileName is the SQLite database inside the project directory.
	DatabaseFileName = "specd.db"

	// SpecsDirName holds the per-record Markdown files, as a sibling of
	// the project directory.
	SpecsDirName = "specs"

	// EnvDir overrides project discovery.
	EnvDir = "SPECD_DIR"

	// EnvToken supplies the GitHub token. Tokens are never written to
	// config files.
	EnvToken = "GITHUB_TOKEN"
)

// GitHubConfig names the repository and optional project board.
type GitHubConfig struct {
	Owner   string `yaml:"owner"`
	Repo    string `yaml:"repo"`
	Project int    `yaml:"project,omitempty"` // Projects v2 number; 0 = none
}

// StatusConfig configures the phase-to-status mapping.
type StatusConfig struct {
	Field    string            `yaml:"field,omitempty"`    // default "Status"
	Stages   int               `yaml:"stages,omitempty"`   // 3 or 4; default 3
	Fallback string            `yaml:"fallback,omitempty"` // default per stage set
	Mapping  map[string]string `yaml:"mapping,omitempty"`  // phase → status overrides
}

// Config is the project configuration.
type Config struct {
	GitHub GitHubConfig `yaml:"github"`
	Status StatusConfig `yaml:"status,omitempty"`
}

// DefaultConfig returns a config with the default status setup and no
// repository configured.
func DefaultConfig() *Config {
	return &Config{Status: StatusConfig{Stages: 3}}
}

// FindSpecdDir locates the project's .specd directory: the SPECD_DIR
// environment variable wins, then the current directory and its
// ancestors are searched. Empty when no project is found.
func FindSpecdDir() string {
	if dir := os.Getenv(EnvDir); dir != "" {
		if abs, err := filepath.Abs(dir); err == nil {
			if info, err := os.Stat(abs); err == nil && info.IsDir() {
				return abs
			}
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for dir := cwd; dir != "/" && dir != "."; dir = filepath.Dir(dir) {
		specdDir := filepath.Join(dir, DirName)
		if info, err := os.Stat(specdDir); err == nil && info.IsDir() {
			return specdDir
		}
	}
	return ""
}

// ConfigPath returns the config file path inside a project directory.
func ConfigPath(specdDir string) string {
	return filepath.Join(specdDir, ConfigFileName)
}

// DatabasePath returns the database path inside a project directory.
func DatabasePath(specdDir string) string {
	return filepath.Join(specdDir, DatabaseFileName)
}

// SpecsDir returns the Markdown file directory for a project: a specs/
// directory next to .specd/, so the documents stay visible in the
// working tree.
func SpecsDir(specdDir string) string {
	return filepath.Join(filepath.Dir(specdDir), SpecsDirName)
}

// Load reads the project config. A missing file yields the defaults.
func Load(specdDir string) (*Config, error) {
	data, err := os.ReadFile(ConfigPath(specdDir))
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to the project directory.
func (c *Config) Save(specdDir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(ConfigPath(specdDir), data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Token returns the GitHub token from the environment.
func (c *Config) Token() string {
	return os.Getenv(EnvToken)
}

// StatusConfig resolves the YAML status section into a concrete phase
// mapping: the stage count picks the base mapping, then per-phase
// overrides and the fallback are applied on top.
func (c *Config) StatusConfig() (status.Config, error) {
	var base status.Config
	switch c.Status.Stages {
	case 0, 3:
		base = status.ThreeStageConfig()
	case 4:
		base = status.FourStageConfig()
	default:
		return status.Config{}, fmt.Errorf("invalid status stages %d (want 3 or 4)", c.Status.Stages)
	}

	if c.Status.Field != "" {
		base.FieldName = c.Status.Field
	}
	if c.Status.Fallback != "" {
		base.Fallback = c.Status.Fallback
	}
	for phaseStr, statusName := range c.Status.Mapping {
		phase, err := types.ParsePhase(phaseStr)
		if err != nil {
			return status.Config{}, fmt.Errorf("status mapping: %w", err)
		}
		base.Mapping[phase] = statusName
	}
	return base, nil
}

// Init creates the project layout under root: .specd/ with a default
// config and the specs/ directory. Fails if a project already exists.
func Init(root string) (string, error) {
	specdDir := filepath.Join(root, DirName)
	if _, err := os.Stat(specdDir); err == nil {
		return "", fmt.Errorf("project already initialized at %s", specdDir)
	}
	if err := os.MkdirAll(specdDir, 0o750); err != nil {
		return "", fmt.Errorf("create %s: %w", specdDir, err)
	}
	if err := os.MkdirAll(SpecsDir(specdDir), 0o750); err != nil {
		return "", fmt.Errorf("create specs dir: %w", err)
	}
	if err := DefaultConfig().Save(specdDir); err != nil {
		return "", err
	}
	return specdDir, nil
}
