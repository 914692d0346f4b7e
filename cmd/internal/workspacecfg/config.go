package workspacecfg

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lexcodex/xmodel/framework/index"
	"github.com/lexcodex/xmodel/framework/model"
	"github.com/lexcodex/xmodel/framework/workspace"
)

// ConfigFileName is the workspace configuration file at the root.
const ConfigFileName = ".xmodel.yaml"

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Environment variables overriding the YAML settings.
const (
	EnvDetailLevel    = "XMODEL_DETAIL_LEVEL"
	EnvMaxDiagnostics = "XMODEL_MAX_DIAGNOSTICS"
	EnvStore          = "XMODEL_STORE"
	EnvStoreDSN       = "XMODEL_STORE_DSN"
	EnvLogFile        = "XMODEL_LOG_FILE"
)

// StoreConfig selects the index store.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn,omitempty"`
}

// WorkspaceConfig models the persisted workspace settings.
type WorkspaceConfig struct {
	Workspace         string            `yaml:"-"`
	Extensions        []string          `yaml:"extensions,omitempty"`
	Ignore            []string          `yaml:"ignore,omitempty"`
	DetailLevel       string            `yaml:"detail_level,omitempty"`
	MaxDiagnostics    int               `yaml:"max_diagnostics,omitempty"`
	DisabledChecks    []string          `yaml:"disabled_checks,omitempty"`
	SeverityOverrides map[string]string `yaml:"severity_overrides,omitempty"`
	Store             StoreConfig       `yaml:"store,omitempty"`
	LogFile           string            `yaml:"log_file,omitempty"`
}

// Default returns the settings used when no configuration file exists.
func Default(workspace string) *WorkspaceConfig {
	return &WorkspaceConfig{
		Workspace:   workspace,
		Extensions:  []string{".xml"},
		DetailLevel: model.DetailAll.String(),
		Store:       StoreConfig{Driver: DriverMemory},
	}
}

// ConfigFile returns the configuration path of workspace.
func ConfigFile(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ConfigFileName)
}

// Load reads the workspace .env and configuration file, then applies
// environment overrides. A missing file yields the defaults.
func Load(workspace string) (*WorkspaceConfig, error) {
	if err := godotenv.Load(filepath.Join(workspace, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := Default(workspace)
	data, err := os.ReadFile(ConfigFile(workspace))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", ConfigFileName, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}
	cfg.Workspace = workspace
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *WorkspaceConfig) applyEnv() error {
	if v := os.Getenv(EnvDetailLevel); v != "" {
		c.DetailLevel = v
	}
	if v := os.Getenv(EnvMaxDiagnostics); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxDiagnostics, err)
		}
		c.MaxDiagnostics = n
	}
	if v := os.Getenv(EnvStore); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv(EnvStoreDSN); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		c.LogFile = v
	}
	return nil
}

// Save writes the configuration back to disk.
func Save(cfg *WorkspaceConfig) error {
	if cfg == nil {
		return errors.New("workspace config missing")
	}
	if cfg.Workspace == "" {
		return errors.New("workspace path missing")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(ConfigFile(cfg.Workspace), data, 0o644)
}

// SessionConfig converts the settings into a workspace configuration.
func (c *WorkspaceConfig) SessionConfig() (workspace.Config, error) {
	out := workspace.DefaultConfig()
	if len(c.Extensions) > 0 {
		out.Extensions = c.Extensions
	}
	out.Ignore = c.Ignore
	if c.DetailLevel != "" {
		level, ok := model.ParseDetailLevel(c.DetailLevel)
		if !ok {
			return out, fmt.Errorf("unknown detail level %q", c.DetailLevel)
		}
		out.Level = level
	}
	if c.MaxDiagnostics < 0 {
		return out, fmt.Errorf("max_diagnostics must not be negative")
	}
	out.MaxDiagnostics = c.MaxDiagnostics
	out.Disabled = c.DisabledChecks
	if len(c.SeverityOverrides) > 0 {
		out.SeverityOverrides = make(map[string]model.Severity, len(c.SeverityOverrides))
		for code, name := range c.SeverityOverrides {
			sev, ok := model.ParseSeverity(name)
			if !ok {
				return out, fmt.Errorf("unknown severity %q for %s", name, code)
			}
			out.SeverityOverrides[code] = sev
		}
	}
	return out, nil
}

// OpenStore opens the configured index store. Relative SQLite paths are
// resolved against the workspace.
func (c *WorkspaceConfig) OpenStore() (index.Store, error) {
	switch c.Store.Driver {
	case "", DriverMemory:
		return index.NewMemoryStore(), nil
	case DriverSQLite:
		dsn := c.Store.DSN
		if dsn != "" && dsn != index.MemoryDSN && !filepath.IsAbs(dsn) {
			dsn = filepath.Join(c.Workspace, dsn)
		}
		store, err := index.NewSQLiteStore(dsn)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
}

// Logger returns the logger to use: the configured log file, or fallback.
// The returned closer releases the file.
func (c *WorkspaceConfig) Logger(fallback io.Writer) (*log.Logger, io.Closer, error) {
	if c.LogFile == "" {
		return log.New(fallback, "xmodel ", log.LstdFlags), nopCloser{}, nil
	}
	f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return log.New(f, "xmodel ", log.LstdFlags), f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
