package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zhaobenny/ccsessions/internal/filter"
	"github.com/zhaobenny/ccsessions/internal/model"
	"github.com/zhaobenny/ccsessions/internal/pricing"
)

// Defaults
const (
	DefaultTopProjects     = 3
	DefaultTopProjectsDays = 56
	fileName               = ".ccsessions.yaml"
)

// Config holds the shared configuration
type Config struct {
	ProjectsPath    string   `yaml:"projects_path"`
	Timezone        string   `yaml:"timezone"`
	Workers         int      `yaml:"workers"`
	TopProjects     int      `yaml:"top_projects"`
	TopProjectsDays int      `yaml:"top_projects_days"`
	HomePrefix      string   `yaml:"home_prefix"`
	BlockedDomains  []string `yaml:"blocked_domains,omitempty"`
	Pricing         Pricing  `yaml:"pricing,omitempty"`
	Debug           bool     `yaml:"debug"`
}

// Pricing overrides the embedded price table. Family keys are opus, sonnet
// and haiku; model keys are exact model ids.
type Pricing struct {
	Families map[string]model.PriceVector `yaml:"families,omitempty"`
	Models   map[string]model.PriceVector `yaml:"models,omitempty"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		ProjectsPath:    defaultProjectsPath(),
		Workers:         runtime.NumCPU(),
		TopProjects:     DefaultTopProjects,
		TopProjectsDays: DefaultTopProjectsDays,
		HomePrefix:      defaultHomePrefix(),
	}
}

func defaultProjectsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".claude", "projects")
	}
	return filepath.Join(home, ".claude", "projects")
}

// defaultHomePrefix encodes the home directory the way project ids are encoded.
func defaultHomePrefix() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return strings.ReplaceAll(filepath.ToSlash(home), "/", "-")
}

// Path returns the path to the config file
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fileName), nil
}

// Load loads the configuration from the default path
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile loads the configuration from path. A missing file yields the
// defaults; keys absent from the file keep their default values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save saves the configuration to path
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Validate checks values that would otherwise fail deep inside a query.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	for family := range c.Pricing.Families {
		switch pricing.Family(family) {
		case pricing.FamilyOpus, pricing.FamilySonnet, pricing.FamilyHaiku:
		default:
			return fmt.Errorf("unknown pricing family %q", family)
		}
	}
	return nil
}

// ApplyEnv overrides file values from the environment.
func (c *Config) ApplyEnv() {
	c.ProjectsPath = getEnv("PROJECTS_PATH", c.ProjectsPath)
	c.Timezone = getEnv("TIMEZONE", c.Timezone)
	c.HomePrefix = getEnv("HOME_PREFIX", c.HomePrefix)
	if v := os.Getenv("BLOCKED_DOMAINS"); v != "" {
		c.BlockedDomains = splitList(v)
	}
	if v, err := strconv.Atoi(os.Getenv("WORKERS")); err == nil && v > 0 {
		c.Workers = v
	}
	if v, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil {
		c.Debug = v
	}
}

// Location returns the target timezone. Empty means the local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// PriceTable merges the configured prices over the embedded defaults.
func (c *Config) PriceTable() *pricing.Table {
	families := pricing.DefaultTable().Families()
	for name, p := range c.Pricing.Families {
		families[pricing.Family(name)] = p
	}
	return pricing.NewTable(families, c.Pricing.Models)
}

// Filter builds a query filter carrying the configured domain exclusions.
func (c *Config) Filter(days int, project string) filter.Filter {
	return filter.Filter{
		Days:           days,
		Project:        project,
		HomePrefix:     c.HomePrefix,
		BlockedDomains: c.BlockedDomains,
	}
}

// GetEnv returns the environment value for key or defaultValue when unset.
func GetEnv(key, defaultValue string) string {
	return getEnv(key, defaultValue)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
