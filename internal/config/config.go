package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alnah/go-cbconv/internal/fileutil"
	"github.com/alnah/go-cbconv/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrFieldRange      = errors.New("field out of range")
	ErrInvalidValue    = errors.New("invalid field value")
)

// appDir is the directory under the user config dir searched for configs.
const appDir = "go-cbconv"

// Field limits.
const (
	MaxPathLength   = 4096
	MaxFormatLength = 10
	MaxDPI          = 2400
	MaxWorkers      = 64
	MaxPagesPerJob  = 1000
)

// Config holds all settings for a conversion. Zero values mean "use the
// library default".
type Config struct {
	Workers int          `yaml:"workers"` // 0 = derived from GOMAXPROCS
	Render  RenderConfig `yaml:"render"`
	Tools   ToolsConfig  `yaml:"tools"`
	Output  OutputConfig `yaml:"output"`
}

// RenderConfig defines rasterization options.
type RenderConfig struct {
	MinimumDPI  int    `yaml:"minimumDpi"`
	MaximumDPI  int    `yaml:"maximumDpi"`
	Format      string `yaml:"format"`      // "png" or "jpeg"
	JPEGQuality int    `yaml:"jpegQuality"` // 1-100
	PagesPerJob int    `yaml:"pagesPerJob"` // pages per renderer invocation
}

// ToolsConfig locates external binaries.
type ToolsConfig struct {
	Ghostscript string `yaml:"ghostscript"` // empty = gs on PATH
	SevenZip    string `yaml:"sevenZip"`    // empty = 7z on PATH
}

// OutputConfig defines output destination options.
type OutputConfig struct {
	DefaultDir string `yaml:"defaultDir"` // empty = next to the source
	Archive    bool   `yaml:"archive"`    // pack pages into a .cbz
	KeepPages  bool   `yaml:"keepPages"`  // keep page files after packing
}

// Validate checks lengths and ranges. Called automatically by LoadConfig.
func (c *Config) Validate() error {
	if err := validateRange("workers", c.Workers, 0, MaxWorkers); err != nil {
		return err
	}

	r := c.Render
	if err := validateRange("render.minimumDpi", r.MinimumDPI, 0, MaxDPI); err != nil {
		return err
	}
	if err := validateRange("render.maximumDpi", r.MaximumDPI, 0, MaxDPI); err != nil {
		return err
	}
	if r.MinimumDPI > 0 && r.MaximumDPI > 0 && r.MaximumDPI < r.MinimumDPI {
		return fmt.Errorf("%w: render.maximumDpi %d below render.minimumDpi %d", ErrFieldRange, r.MaximumDPI, r.MinimumDPI)
	}
	if err := validateRange("render.jpegQuality", r.JPEGQuality, 0, 100); err != nil {
		return err
	}
	if err := validateRange("render.pagesPerJob", r.PagesPerJob, 0, MaxPagesPerJob); err != nil {
		return err
	}
	if err := validateFieldLength("render.format", r.Format, MaxFormatLength); err != nil {
		return err
	}
	if r.Format != "" {
		switch strings.ToLower(r.Format) {
		case "png", "jpeg", "jpg":
			// valid
		default:
			return fmt.Errorf("%w: render.format %q (must be png or jpeg)", ErrInvalidValue, r.Format)
		}
	}

	if err := validateFieldLength("tools.ghostscript", c.Tools.Ghostscript, MaxPathLength); err != nil {
		return err
	}
	if err := validateFieldLength("tools.sevenZip", c.Tools.SevenZip, MaxPathLength); err != nil {
		return err
	}
	if err := validateFieldLength("output.defaultDir", c.Output.DefaultDir, MaxPathLength); err != nil {
		return err
	}
	return nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

func validateRange(fieldName string, value, lo, hi int) error {
	if value < lo || value > hi {
		return fmt.Errorf("%w: %s = %d (must be between %d and %d)", ErrFieldRange, fieldName, value, lo, hi)
	}
	return nil
}

// DefaultConfig returns a configuration where every value defers to the
// library defaults.
func DefaultConfig() *Config {
	return &Config{}
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yamlutil.Marshal(c)
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	configPath := nameOrPath
	if !fileutil.IsFilePath(nameOrPath) {
		var err error
		if configPath, err = resolveConfigPath(nameOrPath); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := yamlutil.ReadFileStrict(configPath, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigParse, configPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries extensions in order: .yaml, .yml
// Tries locations in order: current directory, ~/.config/go-cbconv/
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	tried := make([]string, 0, len(extensions)*2)

	for _, ext := range extensions {
		local := name + ext
		if fileutil.FileExists(local) {
			return local, nil
		}
		tried = append(tried, local)
	}

	if userConfigDir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			userPath := filepath.Join(userConfigDir, appDir, name+ext)
			if fileutil.FileExists(userPath) {
				return userPath, nil
			}
			tried = append(tried, userPath)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(tried, ", "))
}
