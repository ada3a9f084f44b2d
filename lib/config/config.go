// Package config loads the named data sources a report can be built from,
// plus the process settings taken from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/icco/specimens/lib/validation"
	"gopkg.in/yaml.v3"
)

// Source types.
const (
	TypeCSV    = "csv"
	TypeXLSX   = "xlsx"
	TypeSQLite = "sqlite"
	TypeDuckDB = "duckdb"
)

// DefaultPath is used when neither --config nor SPECIMENS_CONFIG is set.
const DefaultPath = "specimens.yaml"

// Source describes one named tabular data provider.
type Source struct {
	Type      string `yaml:"type"`
	Path      string `yaml:"path,omitempty"`
	Sheet     string `yaml:"sheet,omitempty"`
	Table     string `yaml:"table,omitempty"`
	Query     string `yaml:"query,omitempty"`
	Delimiter string `yaml:"delimiter,omitempty"`
}

// Config is the parsed configuration file.
type Config struct {
	DefaultSource string            `yaml:"default_source"`
	CacheTTL      time.Duration     `yaml:"cache_ttl"`
	Data          map[string]Source `yaml:"data"`
}

// Load reads, schema-checks and resolves the configuration file at path.
// Relative source paths are resolved against the file's directory.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for name, src := range cfg.Data {
		if src.Path != "" && !filepath.IsAbs(src.Path) {
			src.Path = filepath.Join(dir, src.Path)
			cfg.Data[name] = src
		}
	}
	return cfg, nil
}

// Parse decodes and validates a YAML configuration document.
func Parse(raw []byte) (*Config, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	if err := validation.ValidateConfigDocument(doc); err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the per-type requirements the schema does not express
// and fills in the default source.
func (c *Config) Validate() error {
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must not be negative")
	}

	for _, name := range c.Names() {
		src := c.Data[name]
		switch src.Type {
		case TypeCSV, TypeXLSX:
			if src.Path == "" {
				return fmt.Errorf("source %q: %s sources require a path", name, src.Type)
			}
		case TypeSQLite:
			if src.Path == "" {
				return fmt.Errorf("source %q: sqlite sources require a path", name)
			}
			if (src.Table == "") == (src.Query == "") {
				return fmt.Errorf("source %q: sqlite sources require exactly one of table or query", name)
			}
		case TypeDuckDB:
			if src.Query == "" {
				return fmt.Errorf("source %q: duckdb sources require a query", name)
			}
		default:
			return fmt.Errorf("source %q: unsupported type %q", name, src.Type)
		}
	}

	if c.DefaultSource == "" {
		names := c.Names()
		if len(names) == 1 {
			c.DefaultSource = names[0]
		} else {
			return fmt.Errorf("default_source is required when more than one source is configured")
		}
	}
	if _, ok := c.Data[c.DefaultSource]; !ok {
		return fmt.Errorf("default_source %q is not a configured source", c.DefaultSource)
	}
	return nil
}

// Names returns the configured source names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Data))
	for name := range c.Data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Env holds settings taken from the process environment.
type Env struct {
	Port        string
	DBPath      string
	ConfigPath  string
	CORSOrigins []string
}

// LoadEnv reads the environment, applying defaults.
func LoadEnv() Env {
	env := Env{
		Port:       os.Getenv("PORT"),
		DBPath:     os.Getenv("DB_PATH"),
		ConfigPath: os.Getenv("SPECIMENS_CONFIG"),
	}
	if env.Port == "" {
		env.Port = "8080"
	}
	if env.DBPath == "" {
		env.DBPath = "specimens.db"
	}
	if env.ConfigPath == "" {
		env.ConfigPath = DefaultPath
	}
	for _, o := range strings.Split(os.Getenv("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			env.CORSOrigins = append(env.CORSOrigins, o)
		}
	}
	return env
}
