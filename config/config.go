// Package config loads host configuration for xmldoc tools from YAML with
// environment overrides.
package config

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jacoelho/xmldoc"
	"github.com/jacoelho/xmldoc/namespace"
	"github.com/jacoelho/xmldoc/store"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverObject   = "object"
)

const (
	defaultStoreDir = ".xmldoc"
	defaultLogLevel = "info"
)

// Config is the host configuration.
type Config struct {
	Namespaces *namespace.Registry `yaml:"namespaces,omitempty"`
	Schema     string              `yaml:"schema,omitempty"`
	Indent     string              `yaml:"indent,omitempty"`
	Limits     Limits              `yaml:"limits,omitempty"`
	Store      Store               `yaml:"store,omitempty"`
	LogLevel   string              `yaml:"log_level,omitempty"`
}

// Limits overrides the XML parse limits. Zero keeps the library default.
type Limits struct {
	MaxDepth     int   `yaml:"max_depth,omitempty"`
	MaxAttrs     int   `yaml:"max_attrs,omitempty"`
	MaxInputSize int64 `yaml:"max_input_size,omitempty"`
}

// Store selects where sleeping documents are kept.
type Store struct {
	Driver string             `yaml:"driver,omitempty"`
	Dir    string             `yaml:"dir,omitempty"`
	DSN    string             `yaml:"dsn,omitempty"`
	Object store.ObjectConfig `yaml:"object,omitempty"`
}

// Load reads the YAML file at path, applies environment overrides and
// defaults, and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	c.applyEnv()
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("XMLDOC_SCHEMA"); v != "" {
		c.Schema = v
	}
	if v := os.Getenv("XMLDOC_STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("XMLDOC_STORE_DIR"); v != "" {
		c.Store.Dir = v
	}
	if v := cmp.Or(os.Getenv("XMLDOC_STORE_DSN"), os.Getenv("DATABASE_URL")); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("XMLDOC_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) applyDefaults() {
	c.Store.Driver = cmp.Or(c.Store.Driver, DriverFile)
	c.Store.Dir = cmp.Or(c.Store.Dir, defaultStoreDir)
	c.LogLevel = cmp.Or(c.LogLevel, defaultLogLevel)
	if c.Namespaces == nil {
		c.Namespaces = &namespace.Registry{}
	}
}

// Validate checks field values.
func (c *Config) Validate() error {
	switch {
	case c.Limits.MaxDepth < 0, c.Limits.MaxAttrs < 0, c.Limits.MaxInputSize < 0:
		return fmt.Errorf("config limits must be >= 0")
	}
	switch c.Store.Driver {
	case DriverMemory, DriverFile, DriverObject:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("config store: postgres driver requires a dsn")
		}
	default:
		return fmt.Errorf("config store: unknown driver %q", c.Store.Driver)
	}
	if _, err := c.level(); err != nil {
		return err
	}
	return nil
}

func (c *Config) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("config log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Logger returns a text logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.level()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Options returns document options for the configured schema, indent and
// limits. Zero limits are left to the library defaults.
func (c *Config) Options() xmldoc.Options {
	opts := xmldoc.NewOptions().WithSchema(c.Schema).WithIndent(c.Indent)
	if c.Limits.MaxDepth > 0 {
		opts = opts.WithMaxDepth(c.Limits.MaxDepth)
	}
	if c.Limits.MaxAttrs > 0 {
		opts = opts.WithMaxAttrs(c.Limits.MaxAttrs)
	}
	if c.Limits.MaxInputSize > 0 {
		opts = opts.WithMaxInputSize(c.Limits.MaxInputSize)
	}
	return opts
}

// OpenStore opens the configured snapshot store.
func (c *Config) OpenStore(ctx context.Context) (store.Store, error) {
	switch c.Store.Driver {
	case DriverMemory:
		return store.NewMemoryStore(), nil
	case DriverFile:
		return store.NewFileStore(c.Store.Dir)
	case DriverPostgres:
		return store.OpenPostgres(ctx, c.Store.DSN)
	case DriverObject:
		return store.OpenObjectStore(ctx, c.Store.Object)
	default:
		return nil, fmt.Errorf("open store: unknown driver %q", c.Store.Driver)
	}
}
