package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Output    OutputConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Queue     QueueConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls how browser sessions are launched.
type BrowserConfig struct {
	// Driver selects the automation library: "rod" or "chromedp".
	Driver string // default: "rod"

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// DefaultProxy is the proxy URL for every page.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// OutputConfig controls where API-submitted jobs may write.
type OutputConfig struct {
	// Root is the directory every API job destination is resolved under.
	Root string // default: "prerendered"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// QueueConfig controls the API render queue.
type QueueConfig struct {
	// Size is the number of jobs that may wait behind the running one.
	Size int // default: 16

	// Retention is how long finished job records stay queryable.
	Retention time.Duration // default: 1h
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("PRERENDER_HOST", "0.0.0.0"),
			Port: envIntOr("PRERENDER_PORT", 8080),
			Mode: envOr("PRERENDER_MODE", "release"),
		},
		Browser: BrowserConfig{
			Driver:       envOr("PRERENDER_BROWSER_DRIVER", "rod"),
			Headless:     envBoolOr("PRERENDER_HEADLESS", true),
			DefaultProxy: os.Getenv("PRERENDER_PROXY"),
			NoSandbox:    envBoolOr("PRERENDER_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("PRERENDER_BROWSER_BIN"),
		},
		Output: OutputConfig{
			Root: envOr("PRERENDER_OUTPUT_ROOT", "prerendered"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PRERENDER_AUTH_ENABLED", true),
			APIKeys: envSliceOr("PRERENDER_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PRERENDER_RATE_RPS", 1.0),
			Burst:             envIntOr("PRERENDER_RATE_BURST", 5),
		},
		Queue: QueueConfig{
			Size:      envIntOr("PRERENDER_QUEUE_SIZE", 16),
			Retention: envDurationOr("PRERENDER_QUEUE_RETENTION", time.Hour),
		},
		Log: LogConfig{
			Level:  envOr("PRERENDER_LOG_LEVEL", "info"),
			Format: envOr("PRERENDER_LOG_FORMAT", "text"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
