// Package config loads runtime settings from the environment and an optional
// .env file in the working directory.
//
// Every key has a default, so a bare `biblioteca` with no environment at all
// opens biblioteca.db next to the executable and serves on loopback.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sakif/biblioteca/internal/repository/sqlite"
)

// Environment keys.
const (
	KeyAddr            = "BIBLIOTECA_ADDR"
	KeyDBPath          = "BIBLIOTECA_DB_PATH"
	KeyLogLevel        = "BIBLIOTECA_LOG_LEVEL"
	KeyLogFormat       = "BIBLIOTECA_LOG_FORMAT"
	KeyShutdownTimeout = "BIBLIOTECA_SHUTDOWN_TIMEOUT"
)

type Config struct {
	// Addr is the listen address of the web UI. Loopback by default: the
	// catalog is a single-user tool.
	Addr            string
	DBPath          string
	ShutdownTimeout time.Duration
	Log             LogConfig
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads the configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// An explicit config file that is absent surfaces as fs.ErrNotExist.
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: reading .env: %w", err)
		}
	}

	cfg := &Config{
		Addr:            strings.TrimSpace(v.GetString(KeyAddr)),
		DBPath:          strings.TrimSpace(v.GetString(KeyDBPath)),
		ShutdownTimeout: parseDuration(v.GetString(KeyShutdownTimeout), 10*time.Second),
		Log: LogConfig{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
		},
	}

	if cfg.DBPath == "" {
		path, err := sqlite.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("config: resolving database path: %w", err)
		}
		cfg.DBPath = path
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyAddr, "127.0.0.1:8080")
	v.SetDefault(KeyDBPath, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyShutdownTimeout, "10s")
}

// NewLogger builds the process logger. Unknown levels fall back to info,
// unknown formats to text.
func NewLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}

	return d
}
