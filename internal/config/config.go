// Package config loads gqlscope settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds settings shared by every command. Flags override these.
type Config struct {
	Env             string
	LogLevel        string
	Width           int
	HighlightWindow time.Duration
	AnchorRatio     float64
	Pager           string
}

// Load reads GQLSCOPE_* variables. When GQLSCOPE_ENV_FILE names a file (or a
// .env file exists in the working directory) it is loaded first; variables
// already set in the environment win.
func Load() (Config, error) {
	envFile := getenv("GQLSCOPE_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := Config{
		Env:      getenv("GQLSCOPE_ENV", "dev"),
		LogLevel: getenv("GQLSCOPE_LOG_LEVEL", "warn"),
		Pager:    os.Getenv("PAGER"),
	}

	var err error
	if cfg.Width, err = getInt("GQLSCOPE_WIDTH", 0); err != nil {
		return Config{}, err
	}
	if cfg.HighlightWindow, err = getDuration("GQLSCOPE_HIGHLIGHT_WINDOW", time.Second); err != nil {
		return Config{}, err
	}
	if cfg.AnchorRatio, err = getFloat("GQLSCOPE_ANCHOR", 0); err != nil {
		return Config{}, err
	}
	if cfg.AnchorRatio < 0 || cfg.AnchorRatio > 1 {
		return Config{}, fmt.Errorf("GQLSCOPE_ANCHOR must be within [0,1], got %v", cfg.AnchorRatio)
	}
	return cfg, nil
}

func getenv(key, defaultValue string) string {
	v := os.Getenv(key)
	if v != "" {
		return v
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
