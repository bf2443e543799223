package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const fileName = "genline.yml"

// Plan id strategies.
const (
	IDStrategyRandom  = "random"
	IDStrategyKeyword = "keyword"
)

// Update identity policies.
const (
	UpdateInPlace = "in_place"
	UpdateNewID   = "new_id"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config models genline.yml.
type Config struct {
	Server struct {
		Addr      string `yaml:"addr"`
		BasePath  string `yaml:"base_path"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"server"`
	Plans struct {
		TTL          time.Duration `yaml:"ttl"`
		MaxCached    int           `yaml:"max_cached"`
		IDStrategy   string        `yaml:"id_strategy"`
		UpdatePolicy string        `yaml:"update_policy"`
	} `yaml:"plans"`
	Store struct {
		Backend   string `yaml:"backend"`
		Workspace string `yaml:"workspace"`
	} `yaml:"store"`
	Generation struct {
		Parallelism      int    `yaml:"parallelism"`
		GeneratorVersion string `yaml:"generator_version"`
		StandardsVersion string `yaml:"standards_version"`
		// TemplatesDir holds *.tmpl files that shadow the built-in templates.
		TemplatesDir     string `yaml:"templates_dir"`
		TemplateCache    int    `yaml:"template_cache"`
	} `yaml:"generation"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Server.Addr = "127.0.0.1:8080"
	cfg.Server.BasePath = "/v0"
	cfg.Plans.TTL = 120 * time.Minute
	cfg.Plans.MaxCached = 100
	cfg.Plans.IDStrategy = IDStrategyKeyword
	cfg.Plans.UpdatePolicy = UpdateInPlace
	cfg.Store.Backend = BackendMemory
	cfg.Store.Workspace = "."
	cfg.Generation.Parallelism = 1
	cfg.Generation.GeneratorVersion = "1.0.0"
	cfg.Generation.StandardsVersion = "1.0.0"
	cfg.Generation.TemplateCache = 64
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return &cfg
}

// Validate ensures the config is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Plans.TTL <= 0 {
		return fmt.Errorf("config.plans.ttl must be positive")
	}
	if c.Plans.MaxCached <= 0 {
		return fmt.Errorf("config.plans.max_cached must be positive")
	}
	switch c.Plans.IDStrategy {
	case IDStrategyRandom, IDStrategyKeyword:
	default:
		return fmt.Errorf("config.plans.id_strategy must be %q or %q", IDStrategyRandom, IDStrategyKeyword)
	}
	switch c.Plans.UpdatePolicy {
	case UpdateInPlace, UpdateNewID:
	default:
		return fmt.Errorf("config.plans.update_policy must be %q or %q", UpdateInPlace, UpdateNewID)
	}
	switch c.Store.Backend {
	case BackendMemory, BackendSQLite:
	default:
		return fmt.Errorf("config.store.backend must be %q or %q", BackendMemory, BackendSQLite)
	}
	if c.Generation.Parallelism < 0 {
		return fmt.Errorf("config.generation.parallelism must not be negative")
	}
	if c.Generation.TemplateCache <= 0 {
		return fmt.Errorf("config.generation.template_cache must be positive")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config.log.format must be json or text")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, fileName)
}

// Load reads genline.yml from the workspace, falling back to Default when
// the file does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			cfg.Store.Workspace = workspaceOrDot(workspace)
			return cfg, nil
		}
		return nil, err
	}
	cfg, err := FromYAML(data)
	if err != nil {
		return nil, err
	}
	if cfg.Store.Workspace == "." {
		cfg.Store.Workspace = workspaceOrDot(workspace)
	}
	return cfg, nil
}

// FromYAML parses raw YAML over the defaults and validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// YAML renders the config, used by `genline config show`.
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func workspaceOrDot(workspace string) string {
	if workspace == "" {
		return "."
	}
	return workspace
}
