package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	defaultListenAddr     = ":8080"
	defaultDBPath         = "cynetics.db"
	defaultContainerImage = "alpine:latest"
	defaultTimeoutS       = 30
	defaultMaxOutputBytes = 64 * 1024

	envListenAddr      = "CYNETICS_LISTEN_ADDR"
	envDBPath          = "CYNETICS_DB_PATH"
	envLogLevel        = "CYNETICS_LOG_LEVEL"
	envSandboxDir      = "CYNETICS_SANDBOX_DIR"
	envContainerImage  = "CYNETICS_CONTAINER_IMAGE"
	envAllowedPaths    = "CYNETICS_ALLOWED_PATHS"
	envDefaultTimeoutS = "CYNETICS_DEFAULT_TIMEOUT_S"
	envMaxOutputBytes  = "CYNETICS_MAX_OUTPUT_BYTES"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level

	// SandboxDir is the base directory for ephemeral sandbox directories.
	SandboxDir string

	// ContainerImage is the image used for container executions.
	ContainerImage string

	// AllowedPaths are extra allowed roots for the path policy,
	// colon-separated in the environment.
	AllowedPaths []string

	// DefaultTimeoutS applies to tasks created without a timeout.
	DefaultTimeoutS int

	// MaxOutputBytes caps each captured output stream.
	MaxOutputBytes int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr:      defaultListenAddr,
		DBPath:          defaultDBPath,
		LogLevel:        slog.LevelInfo,
		SandboxDir:      filepath.Join(os.TempDir(), "cynetics", "sandboxes"),
		ContainerImage:  defaultContainerImage,
		DefaultTimeoutS: defaultTimeoutS,
		MaxOutputBytes:  defaultMaxOutputBytes,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envSandboxDir); v != "" {
		cfg.SandboxDir = v
	}
	if v := os.Getenv(envContainerImage); v != "" {
		cfg.ContainerImage = v
	}
	if v := os.Getenv(envAllowedPaths); v != "" {
		for _, p := range strings.Split(v, ":") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.AllowedPaths = append(cfg.AllowedPaths, p)
			}
		}
	}
	if v := parsePositiveInt(os.Getenv(envDefaultTimeoutS)); v > 0 {
		cfg.DefaultTimeoutS = v
	}
	if v := parsePositiveInt(os.Getenv(envMaxOutputBytes)); v > 0 {
		cfg.MaxOutputBytes = v
	}

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parsePositiveInt returns 0 for empty, malformed, or non-positive input.
func parsePositiveInt(s string) int {
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0
	}
	return v
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
