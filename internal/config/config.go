package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/ligustah/objtar/pkg/tarstream"
)

// Config defines configuration for the objtar CLI.
type Config struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Output       string `yaml:"output"`
	OutputBucket string `yaml:"output_bucket"`
	KeepPrefix   bool   `yaml:"keep_prefix"`
	Compression  string `yaml:"compression"`
	Chunked      bool   `yaml:"chunked"`
	MaxSize      int64  `yaml:"max_size"`
	PageSize     int    `yaml:"page_size"`
	BufferSize   int64  `yaml:"buffer_size"`
	Manifest     string `yaml:"manifest"`
	Progress     bool   `yaml:"progress"`
	Debug        bool   `yaml:"debug"`
}

// MaxBufferSize bounds buffer_size; the buffer is allocated up front.
const MaxBufferSize = 256 * 1024 * 1024

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Compression: string(tarstream.None),
		MaxSize:     tarstream.DefaultSizeCeiling,
		PageSize:    tarstream.DefaultPageSize,
		BufferSize:  tarstream.DefaultBufferSize,
	}
}

// yamlConfig is used for YAML unmarshaling with string byte sizes.
type yamlConfig struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Output       string `yaml:"output"`
	OutputBucket string `yaml:"output_bucket"`
	KeepPrefix   bool   `yaml:"keep_prefix"`
	Compression  string `yaml:"compression"`
	Chunked      bool   `yaml:"chunked"`
	MaxSize      string `yaml:"max_size"`
	PageSize     int    `yaml:"page_size"`
	BufferSize   string `yaml:"buffer_size"`
	Manifest     string `yaml:"manifest"`
	Progress     bool   `yaml:"progress"`
	Debug        bool   `yaml:"debug"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()
	cfg.Bucket = yc.Bucket
	cfg.Prefix = yc.Prefix
	cfg.Output = yc.Output
	cfg.OutputBucket = yc.OutputBucket
	cfg.Manifest = yc.Manifest
	cfg.KeepPrefix = yc.KeepPrefix
	cfg.Chunked = yc.Chunked
	cfg.Progress = yc.Progress
	cfg.Debug = yc.Debug

	if yc.Compression != "" {
		cfg.Compression = yc.Compression
	}
	if yc.MaxSize != "" {
		size, err := ParseSize(yc.MaxSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse max_size: %w", err)
		}
		cfg.MaxSize = size
	}
	if yc.PageSize != 0 {
		cfg.PageSize = yc.PageSize
	}
	if yc.BufferSize != "" {
		size, err := ParseSize(yc.BufferSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse buffer_size: %w", err)
		}
		cfg.BufferSize = size
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the OBJTAR_ prefix.
func (c *Config) LoadFromEnv() error {
	strs := map[string]*string{
		"OBJTAR_BUCKET":        &c.Bucket,
		"OBJTAR_PREFIX":        &c.Prefix,
		"OBJTAR_OUTPUT":        &c.Output,
		"OBJTAR_OUTPUT_BUCKET": &c.OutputBucket,
		"OBJTAR_COMPRESSION":   &c.Compression,
		"OBJTAR_MANIFEST":      &c.Manifest,
	}
	for name, dst := range strs {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"OBJTAR_KEEP_PREFIX": &c.KeepPrefix,
		"OBJTAR_CHUNKED":     &c.Chunked,
		"OBJTAR_PROGRESS":    &c.Progress,
		"OBJTAR_DEBUG":       &c.Debug,
	}
	for name, dst := range bools {
		if v := os.Getenv(name); v != "" {
			*dst = v == "true" || v == "1"
		}
	}

	if v := os.Getenv("OBJTAR_MAX_SIZE"); v != "" {
		size, err := ParseSize(v)
		if err != nil {
			return fmt.Errorf("parse OBJTAR_MAX_SIZE: %w", err)
		}
		c.MaxSize = size
	}
	if v := os.Getenv("OBJTAR_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse OBJTAR_PAGE_SIZE: %w", err)
		}
		c.PageSize = n
	}
	if v := os.Getenv("OBJTAR_BUFFER_SIZE"); v != "" {
		size, err := ParseSize(v)
		if err != nil {
			return fmt.Errorf("parse OBJTAR_BUFFER_SIZE: %w", err)
		}
		c.BufferSize = size
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("config: bucket is required")
	}
	if c.Output == "" {
		return errors.New("config: output is required")
	}
	if _, err := tarstream.ParseCompression(c.Compression); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.MaxSize <= 0 {
		return errors.New("config: max_size must be positive")
	}
	if c.PageSize <= 0 {
		return errors.New("config: page_size must be positive")
	}
	if c.BufferSize <= 0 {
		return errors.New("config: buffer_size must be positive")
	}
	if c.BufferSize > MaxBufferSize {
		return fmt.Errorf("config: buffer_size must not exceed %s", humanize.IBytes(MaxBufferSize))
	}
	if c.Chunked {
		if c.Output == "-" {
			return errors.New("config: chunked output cannot be written to stdout")
		}
		if !strings.Contains(c.Output, tarstream.IndexPlaceholder) {
			return fmt.Errorf("config: chunked output %q must contain %s", c.Output, tarstream.IndexPlaceholder)
		}
	}
	if c.OutputBucket != "" && c.Output == "-" {
		return errors.New("config: output_bucket needs an object key pattern as output")
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.Bucket != "" {
		c.Bucket = override.Bucket
	}
	if override.Prefix != "" {
		c.Prefix = override.Prefix
	}
	if override.Output != "" {
		c.Output = override.Output
	}
	if override.OutputBucket != "" {
		c.OutputBucket = override.OutputBucket
	}
	if override.KeepPrefix {
		c.KeepPrefix = true
	}
	if override.Compression != "" {
		c.Compression = override.Compression
	}
	if override.Chunked {
		c.Chunked = true
	}
	if override.MaxSize != 0 {
		c.MaxSize = override.MaxSize
	}
	if override.PageSize != 0 {
		c.PageSize = override.PageSize
	}
	if override.BufferSize != 0 {
		c.BufferSize = override.BufferSize
	}
	if override.Manifest != "" {
		c.Manifest = override.Manifest
	}
	if override.Progress {
		c.Progress = true
	}
	if override.Debug {
		c.Debug = true
	}
	return c
}

// ParseSize parses a human-readable byte size such as "20GiB" or "512MB".
// A bare number is taken as bytes.
func ParseSize(s string) (int64, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n > uint64(tarstream.Unlimited) {
		return 0, fmt.Errorf("size %q too large", s)
	}
	return int64(n), nil
}
