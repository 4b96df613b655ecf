// Package config loads the project configuration from mxc.yaml
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/recera/mxc/internal/cache"
	"github.com/recera/mxc/internal/codegen"
	"github.com/recera/mxc/internal/component"
	"github.com/recera/mxc/internal/markup"
)

// FileName is the configuration file looked up in the project directory
const FileName = "mxc.yaml"

// Config represents mxc.yaml
type Config struct {
	// SrcDir is searched recursively for documents
	SrcDir string `yaml:"srcDir"`
	// OutDir receives the generated modules
	OutDir string `yaml:"outDir"`
	// Extension of source documents
	Extension string `yaml:"extension"`
	// Workers bounds parallel compilation; 0 means one per CPU
	Workers int `yaml:"workers"`

	Compiler *CompilerConfig `yaml:"compiler"`
	Cache    *CacheConfig    `yaml:"cache"`
	Dev      *DevConfig      `yaml:"dev"`
}

// CompilerConfig tunes the compiler stages
type CompilerConfig struct {
	Events     *EventsConfig     `yaml:"events"`
	Namespaces *NamespacesConfig `yaml:"namespaces"`
	// Globals are extra names scripts may reference without declaring them
	Globals []string `yaml:"globals,omitempty"`
	// QualifyMethods also rewrites bare calls of script functions to this.name()
	QualifyMethods bool `yaml:"qualifyMethods,omitempty"`
}

// EventsConfig controls which attributes become event handlers
type EventsConfig struct {
	// Extra names added to the built-in vocabulary
	Extra []string `yaml:"extra,omitempty"`
	// Replace, when non-empty, is used instead of the built-in vocabulary
	Replace []string `yaml:"replace,omitempty"`
}

// NamespacesConfig lists the language namespaces searched for the script block
type NamespacesConfig struct {
	Primary string   `yaml:"primary"`
	Legacy  []string `yaml:"legacy"`
}

// CacheConfig configures the compiled-output cache
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	// Dir defaults to the user cache directory
	Dir      string `yaml:"dir,omitempty"`
	MaxSize  string `yaml:"maxSize"`
	MaxAge   string `yaml:"maxAge"`
	Strategy string `yaml:"strategy"`
}

// DevConfig configures `mxc serve`
type DevConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Debounce is how long the watcher waits for writes to settle
	Debounce string `yaml:"debounce"`
}

// Load reads mxc.yaml from projectPath. A missing file yields DefaultConfig.
func Load(projectPath string) (*Config, error) {
	return LoadFile(filepath.Join(projectPath, FileName))
}

// LoadFile reads the configuration at path. A missing file yields DefaultConfig.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyDefaults(&config)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &config, nil
}

// Save writes the configuration to mxc.yaml in projectPath
func Save(config *Config, projectPath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(projectPath, FileName), data, 0644)
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	ns := markup.DefaultOptions()
	return &Config{
		SrcDir:    "src",
		OutDir:    "dist",
		Extension: ".mxml",
		Compiler: &CompilerConfig{
			Events: &EventsConfig{},
			Namespaces: &NamespacesConfig{
				Primary: ns.PrimaryNamespace,
				Legacy:  ns.LegacyNamespaces,
			},
		},
		Cache: &CacheConfig{
			Enabled:  true,
			MaxSize:  "256MB",
			MaxAge:   "168h",
			Strategy: "lru",
		},
		Dev: &DevConfig{
			Host:     "localhost",
			Port:     8080,
			Debounce: "100ms",
		},
	}
}

// applyDefaults fills the values the file left out
func applyDefaults(config *Config) {
	defaults := DefaultConfig()

	if config.SrcDir == "" {
		config.SrcDir = defaults.SrcDir
	}
	if config.OutDir == "" {
		config.OutDir = defaults.OutDir
	}
	if config.Extension == "" {
		config.Extension = defaults.Extension
	} else if !strings.HasPrefix(config.Extension, ".") {
		config.Extension = "." + config.Extension
	}

	if config.Compiler == nil {
		config.Compiler = defaults.Compiler
	} else {
		if config.Compiler.Events == nil {
			config.Compiler.Events = defaults.Compiler.Events
		}
		if config.Compiler.Namespaces == nil {
			config.Compiler.Namespaces = defaults.Compiler.Namespaces
		} else if config.Compiler.Namespaces.Primary == "" {
			config.Compiler.Namespaces.Primary = defaults.Compiler.Namespaces.Primary
		}
	}

	if config.Cache == nil {
		config.Cache = defaults.Cache
	} else {
		if config.Cache.MaxSize == "" {
			config.Cache.MaxSize = defaults.Cache.MaxSize
		}
		if config.Cache.MaxAge == "" {
			config.Cache.MaxAge = defaults.Cache.MaxAge
		}
		if config.Cache.Strategy == "" {
			config.Cache.Strategy = defaults.Cache.Strategy
		}
	}

	if config.Dev == nil {
		config.Dev = defaults.Dev
	} else {
		if config.Dev.Host == "" {
			config.Dev.Host = defaults.Dev.Host
		}
		if config.Dev.Port == 0 {
			config.Dev.Port = defaults.Dev.Port
		}
		if config.Dev.Debounce == "" {
			config.Dev.Debounce = defaults.Dev.Debounce
		}
	}
}

// Validate reports every invalid setting
func (c *Config) Validate() error {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.Dev.Port < 0 || c.Dev.Port > 65535 {
		errs = append(errs, fmt.Errorf("dev.port %d is out of range", c.Dev.Port))
	}
	if _, err := time.ParseDuration(c.Dev.Debounce); err != nil {
		errs = append(errs, fmt.Errorf("dev.debounce: %w", err))
	}
	if _, err := ParseSize(c.Cache.MaxSize); err != nil {
		errs = append(errs, fmt.Errorf("cache.maxSize: %w", err))
	}
	if _, err := time.ParseDuration(c.Cache.MaxAge); err != nil {
		errs = append(errs, fmt.Errorf("cache.maxAge: %w", err))
	}
	if _, err := cache.ParseStrategy(c.Cache.Strategy); err != nil {
		errs = append(errs, fmt.Errorf("cache.strategy: %w", err))
	}
	if ev := c.Compiler.Events; ev != nil && len(ev.Replace) > 0 && len(ev.Extra) > 0 {
		errs = append(errs, errors.New("compiler.events: extra and replace are mutually exclusive"))
	}
	return errors.Join(errs...)
}

// EventSet returns the configured event vocabulary
func (c *Config) EventSet() component.EventSet {
	ev := c.Compiler.Events
	if ev == nil {
		return component.DefaultEvents()
	}
	if len(ev.Replace) > 0 {
		return component.NewEventSet(ev.Replace...)
	}
	return component.DefaultEvents().With(ev.Extra...)
}

// MarkupOptions returns the markup parser options
func (c *Config) MarkupOptions() markup.Options {
	ns := c.Compiler.Namespaces
	return markup.Options{PrimaryNamespace: ns.Primary, LegacyNamespaces: ns.Legacy}
}

// ComponentOptions returns the component tree builder options
func (c *Config) ComponentOptions() component.Options {
	return component.Options{Events: c.EventSet(), Namespaces: c.MarkupOptions().Namespaces()}
}

// CodegenOptions returns the code generator options. ClassName is left empty so the
// compiler derives it per document.
func (c *Config) CodegenOptions() codegen.Options {
	globals := codegen.DefaultGlobals
	if len(c.Compiler.Globals) > 0 {
		globals = append(append([]string(nil), codegen.DefaultGlobals...), c.Compiler.Globals...)
	}
	return codegen.Options{Globals: globals, QualifyMethods: c.Compiler.QualifyMethods}
}

// CacheOptions converts the cache section. The second result is false when caching
// is disabled.
func (c *Config) CacheOptions() (cache.Config, bool) {
	size, _ := ParseSize(c.Cache.MaxSize)
	age, _ := time.ParseDuration(c.Cache.MaxAge)
	strategy, _ := cache.ParseStrategy(c.Cache.Strategy)
	return cache.Config{Dir: c.Cache.Dir, MaxSize: size, MaxAge: age, Strategy: strategy}, c.Cache.Enabled
}

// DebounceDuration returns dev.debounce as a duration
func (c *Config) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(c.Dev.Debounce)
	if err != nil {
		return 100 * time.Millisecond
	}
	return d
}

// Fingerprint hashes the settings that change compiler output. It is part of every
// cache key so editing mxc.yaml never serves stale modules.
func (c *Config) Fingerprint() string {
	relevant := struct {
		Events     []string
		Namespaces []string
		Globals    []string
		Qualify    bool
	}{
		Events:     c.EventSet().Names(),
		Namespaces: c.MarkupOptions().Namespaces(),
		Globals:    c.CodegenOptions().Globals,
		Qualify:    c.Compiler.QualifyMethods,
	}
	data, _ := yaml.Marshal(relevant)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// ParseSize parses sizes such as 512KB, 256MB or 1GB. A bare number is bytes.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	mult := int64(1)
	for _, unit := range []struct {
		suffix string
		mult   int64
	}{{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10}, {"B", 1}} {
		if strings.HasSuffix(s, unit.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, unit.suffix))
			mult = unit.mult
			break
		}
	}
	var n int64
	if _, err := fmt.Sscan(s, &n); err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * mult, nil
}
