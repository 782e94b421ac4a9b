// Package config loads artipart settings from a YAML file.
//
// Values from the file are layered over Default(); command-line flags that
// were set explicitly are applied on top by the caller.
package config

import (
	"math"
	"os"
	"strconv"
	"strings"

	units "github.com/docker/go-units"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config describes one partitioning run.
type Config struct {
	// Source is the directory scanned for artifacts.
	Source string `yaml:"source"`

	// Destination receives <i>/binaries for every partition.
	Destination string `yaml:"destination"`

	// MaxSize is the partition size bound. A bare number is megabytes,
	// anything else is a human size such as "150MB" or "2GB".
	MaxSize string `yaml:"max_size"`

	// Workers bounds concurrent partition copies.
	// Default: 1
	Workers int `yaml:"workers"`

	// Manifest enables writing manifest.json into Destination.
	Manifest bool `yaml:"manifest"`

	ExcludeDirs  []string `yaml:"exclude_dirs"`
	ExcludeFiles []string `yaml:"exclude_files"`

	// Extensions overrides the artifact extensions collected by the scanner.
	Extensions []string `yaml:"extensions"`

	// LogLevel is one of debug, info, warn, error.
	// Default: info
	LogLevel string `yaml:"log_level"`
}

func Default() *Config {
	return &Config{
		Workers:  1,
		LogLevel: "info",
	}
}

// LoadFile reads path over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Source, validation.Required),
		validation.Field(&c.Destination, validation.Required),
		validation.Field(&c.MaxSize, validation.Required, validation.By(validSize)),
		validation.Field(&c.Workers, validation.Min(1)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
	)
}

// MaxSizeBytes parses MaxSize.
func (c *Config) MaxSizeBytes() (int64, error) {
	return ParseSize(c.MaxSize)
}

/*
ParseSize converts a partition size to bytes.
A bare integer is a count of megabytes (1000 * 1000 bytes);
other values must carry a decimal unit: "512KB", "1.5MB", "2GB".
*/
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("size is empty")
	}

	var size int64
	if mb, err := strconv.ParseInt(s, 10, 64); err == nil {
		if mb > math.MaxInt64/bytesPerMB {
			return 0, errors.Errorf("size %q is too large", s)
		}
		size = mb * bytesPerMB
	} else {
		if !hasUnit(s) {
			return 0, errors.Errorf("invalid size %q: a number without a unit must be a whole count of megabytes", s)
		}
		parsed, err := units.FromHumanSize(s)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid size %q", s)
		}
		size = parsed
	}

	if size <= 0 {
		return 0, errors.Errorf("size %q must be positive", s)
	}
	return size, nil
}

const bytesPerMB = 1000 * 1000

func hasUnit(s string) bool {
	last := s[len(s)-1]
	return (last >= 'a' && last <= 'z') || (last >= 'A' && last <= 'Z')
}

func validSize(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	_, err := ParseSize(s)
	return err
}
