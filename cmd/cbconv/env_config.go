package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/alnah/go-cbconv/internal/config"
)

// envConfig holds configuration from environment variables.
// Provides CI/CD-friendly overrides without requiring YAML files.
type envConfig struct {
	ConfigPath  string // CBCONV_CONFIG: config file path
	Workers     int    // CBCONV_WORKERS: parallel workers
	MinimumDPI  int    // CBCONV_MIN_DPI: lowest resolution tried
	Ghostscript string // CBCONV_GHOSTSCRIPT: Ghostscript binary
	SevenZip    string // CBCONV_7Z: 7-Zip binary
	OutputDir   string // CBCONV_OUTPUT_DIR: default output directory
}

// knownEnvVars lists valid CBCONV_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"CBCONV_CONFIG":      true,
	"CBCONV_WORKERS":     true,
	"CBCONV_MIN_DPI":     true,
	"CBCONV_GHOSTSCRIPT": true,
	"CBCONV_7Z":          true,
	"CBCONV_OUTPUT_DIR":  true,
}

// loadEnvConfig reads configuration from environment variables.
// Unparsable or non-positive numbers are ignored.
func loadEnvConfig() *envConfig {
	cfg := &envConfig{
		ConfigPath:  os.Getenv("CBCONV_CONFIG"),
		Ghostscript: os.Getenv("CBCONV_GHOSTSCRIPT"),
		SevenZip:    os.Getenv("CBCONV_7Z"),
		OutputDir:   os.Getenv("CBCONV_OUTPUT_DIR"),
	}

	cfg.Workers = positiveEnv("CBCONV_WORKERS")
	cfg.MinimumDPI = positiveEnv("CBCONV_MIN_DPI")

	return cfg
}

func positiveEnv(name string) int {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// warnUnknownEnvVars logs warnings for unrecognized CBCONV_* variables.
// Helps catch typos like CBCONV_WORKER instead of CBCONV_WORKERS.
func warnUnknownEnvVars(w io.Writer) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "CBCONV_") {
			name := strings.SplitN(env, "=", 2)[0]
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig applies environment variable values to config.
// Only sets values if the env var is set AND the config value is empty/zero.
// This ensures: CLI flags > env vars > config file > defaults
// (CLI flags are applied later via mergeFlags)
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.Workers > 0 && cfg.Workers == 0 {
		cfg.Workers = env.Workers
	}
	if env.MinimumDPI > 0 && cfg.Render.MinimumDPI == 0 {
		cfg.Render.MinimumDPI = env.MinimumDPI
	}
	if env.Ghostscript != "" && cfg.Tools.Ghostscript == "" {
		cfg.Tools.Ghostscript = env.Ghostscript
	}
	if env.SevenZip != "" && cfg.Tools.SevenZip == "" {
		cfg.Tools.SevenZip = env.SevenZip
	}
	if env.OutputDir != "" && cfg.Output.DefaultDir == "" {
		cfg.Output.DefaultDir = env.OutputDir
	}
}
