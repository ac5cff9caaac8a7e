// Package config loads runtime settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds every runtime setting.
type Config struct {
	Addr           string
	DataDir        string
	CameraID       int
	SampleInterval time.Duration
	WindowSize     int
	DefaultPose    string
	RulesPoll      time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Tray      bool
	LogLevel  logrus.Level
	LogFormat string
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		Addr:           ":8080",
		DataDir:        filepath.Join(home, ".asana"),
		CameraID:       0,
		SampleInterval: 33 * time.Millisecond,
		WindowSize:     8,
		DefaultPose:    "bridge",
		RulesPoll:      2 * time.Second,
		LogLevel:       logrus.InfoLevel,
		LogFormat:      "text",
	}
}

// DBPath returns the sqlite database location inside the data directory.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "asana.db")
}

// RedisEnabled reports whether a redis rule source is configured.
func (c Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// Load reads envFiles (default ".env") if present and then the environment.
// A missing file is not an error; a malformed value is.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("error loading %s: %w", f, err)
		}
	}

	cfg := Default()
	var errs []error

	cfg.Addr = envString("ASANA_ADDR", cfg.Addr)
	cfg.DataDir = envString("ASANA_DATA_DIR", cfg.DataDir)
	cfg.DefaultPose = envString("ASANA_DEFAULT_POSE", cfg.DefaultPose)
	cfg.RedisAddr = envString("ASANA_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = envString("ASANA_REDIS_PASSWORD", cfg.RedisPassword)

	cfg.CameraID = envInt("ASANA_CAMERA_ID", cfg.CameraID, &errs)
	cfg.WindowSize = envInt("ASANA_WINDOW_SIZE", cfg.WindowSize, &errs)
	cfg.RedisDB = envInt("ASANA_REDIS_DB", cfg.RedisDB, &errs)
	cfg.SampleInterval = envMillis("ASANA_SAMPLE_INTERVAL_MS", cfg.SampleInterval, &errs)
	cfg.RulesPoll = envMillis("ASANA_RULES_POLL_MS", cfg.RulesPoll, &errs)

	if v, ok := os.LookupEnv("ASANA_TRAY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ASANA_TRAY: %w", err))
		}
		cfg.Tray = b
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := logrus.ParseLevel(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
		} else {
			cfg.LogLevel = level
		}
	}

	if v := strings.ToLower(os.Getenv("LOG_FORMAT")); v != "" {
		if v != "json" && v != "text" {
			errs = append(errs, fmt.Errorf("LOG_FORMAT: want json or text, got %q", v))
		} else {
			cfg.LogFormat = v
		}
	}

	if cfg.WindowSize < 1 {
		errs = append(errs, fmt.Errorf("ASANA_WINDOW_SIZE: must be at least 1, got %d", cfg.WindowSize))
	}
	if cfg.SampleInterval < 0 {
		errs = append(errs, fmt.Errorf("ASANA_SAMPLE_INTERVAL_MS: must not be negative"))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NewLogger builds a logger with the configured level and format.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func envMillis(key string, def time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return time.Duration(n) * time.Millisecond
}
