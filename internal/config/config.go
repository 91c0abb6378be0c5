// Package config loads the pipeline configuration file and the run context
// supplied by the CI environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pinsync/internal/baseline"
	"github.com/roach88/pinsync/internal/gitrepo"
	"github.com/roach88/pinsync/internal/ir"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "pinsync.yaml"

// Config is the pipeline configuration.
type Config struct {
	// Repository is the only repository allowed to publish ("owner/name").
	Repository string `yaml:"repository"`

	Matrix    MatrixConfig    `yaml:"matrix"`
	BuildInfo BuildInfoConfig `yaml:"build_info"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Baseline  BaselineConfig  `yaml:"baseline"`
	Store     StoreConfig     `yaml:"store"`
	Gate      GateConfig      `yaml:"gate"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// MatrixConfig declares the cells and the per-cell commands.
type MatrixConfig struct {
	Cells       []string `yaml:"cells"`        // Cell ids, "min"/"max" allowed
	ForceCanary bool     `yaml:"force_canary"` // Expand to every supported version, no pins
	Concurrency int      `yaml:"concurrency"`  // 0 = all cells at once
	Job         string   `yaml:"job"`          // Shell command run per cell
	Freeze      string   `yaml:"freeze"`       // Shell command printing the installed set
	WorkDir     string   `yaml:"work_dir"`
}

// BuildInfoConfig locates the supported version list.
type BuildInfoConfig struct {
	File     string   `yaml:"file"`     // CUE file with python_versions
	Versions []string `yaml:"versions"` // Used when File is empty
}

// SnapshotConfig controls where snapshot files are written.
type SnapshotConfig struct {
	Dir string `yaml:"dir"`
}

// BaselineConfig controls baseline retrieval.
type BaselineConfig struct {
	URLTemplate string `yaml:"url_template"`
	Branch      string `yaml:"branch"`
	Timeout     string `yaml:"timeout"`
}

// StoreConfig locates the artifact database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// GateConfig is the publication policy.
type GateConfig struct {
	Branches     []string `yaml:"branches"`
	DeniedActors []string `yaml:"denied_actors"`
}

// TrackingConfig describes the remote holding tracking branches.
type TrackingConfig struct {
	Remote string           `yaml:"remote"`
	Author gitrepo.Identity `yaml:"author"`
	Dir    string           `yaml:"dir"` // Parent of temporary working copies
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Matrix: MatrixConfig{
			Cells:  []string{"min", "max"},
			Freeze: "python -m pip freeze",
		},
		BuildInfo: BuildInfoConfig{
			File: "build-info.cue",
		},
		Snapshot: SnapshotConfig{
			Dir: ".pinsync/snapshots",
		},
		Baseline: BaselineConfig{
			URLTemplate: baseline.DefaultURLTemplate,
			Branch:      ir.DefaultConstraintsBranch,
			Timeout:     baseline.DefaultTimeout.String(),
		},
		Store: StoreConfig{
			Path: ".pinsync/artifacts.db",
		},
		Gate: GateConfig{
			Branches: []string{"main", ir.DefaultConstraintsBranch},
		},
		Tracking: TrackingConfig{
			Author: gitrepo.DefaultIdentity,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the config file at path over the defaults and applies
// environment overrides. A missing file at DefaultPath yields the defaults;
// a missing file at any other path is an error.
func Load(path string, getenv func(string) string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := decode(bytes.NewReader(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if getenv != nil {
		cfg.applyEnvOverrides(getenv)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a config document over the defaults without reading the
// environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := decode(bytes.NewReader(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Environment variables overriding config values.
const (
	EnvStorePath   = "PINSYNC_STORE"
	EnvRemote      = "PINSYNC_REMOTE"
	EnvForceCanary = "PINSYNC_FORCE_CANARY"
	EnvLogLevel    = "PINSYNC_LOG_LEVEL"
)

func (c *Config) applyEnvOverrides(getenv func(string) string) {
	if v := getenv(EnvStorePath); v != "" {
		c.Store.Path = v
	}
	if v := getenv(EnvRemote); v != "" {
		c.Tracking.Remote = v
	}
	if v := getenv(EnvForceCanary); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Matrix.ForceCanary = b
		}
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks value ranges and formats.
func (c *Config) Validate() error {
	if c.Matrix.Concurrency < 0 {
		return fmt.Errorf("invalid config: matrix.concurrency must be >= 0, got %d", c.Matrix.Concurrency)
	}
	if _, err := c.BaselineTimeout(); err != nil {
		return fmt.Errorf("invalid config: baseline.timeout: %w", err)
	}
	if c.Tracking.Author.Name == "" || c.Tracking.Author.Email == "" {
		return fmt.Errorf("invalid config: tracking.author needs both name and email")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("invalid config: logging.format %q (valid: json, console)", c.Logging.Format)
	}
	return nil
}

// BaselineTimeout returns the baseline fetch timeout.
func (c *Config) BaselineTimeout() (time.Duration, error) {
	if c.Baseline.Timeout == "" {
		return baseline.DefaultTimeout, nil
	}
	d, err := time.ParseDuration(c.Baseline.Timeout)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}
