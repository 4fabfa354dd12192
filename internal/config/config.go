package config

import (
	"os"
	"strings"
	"time"
)

// Config holds runtime configuration for the signaling relay.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// AllowedOrigins restricts websocket upgrades by Origin header.
	// The default single entry "*" accepts every origin.
	AllowedOrigins []string

	// ReapInterval is how often the hub sweeps empty rooms.
	ReapInterval time.Duration

	// LogLevel feeds the slog setup (dev/info/warn/error).
	LogLevel string
}

// Load reads environment variables and returns a populated Config.
func Load() Config {
	addr := os.Getenv("LECTURE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	allowedOrigins := []string{"*"}
	if origins := os.Getenv("LECTURE_ALLOWED_ORIGINS"); origins != "" {
		allowedOrigins = splitAndTrim(origins)
	}

	reap := time.Hour
	if raw := os.Getenv("LECTURE_REAP_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			reap = d
		}
	}

	return Config{
		Addr:           addr,
		AllowedOrigins: allowedOrigins,
		ReapInterval:   reap,
		LogLevel:       os.Getenv("LOG_LEVEL"),
	}
}

// OriginAllowed reports whether the given Origin header value may upgrade.
// An empty origin (non-browser client) is always allowed.
func (c Config) OriginAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func splitAndTrim(input string) []string {
	raw := strings.Split(input, ",")
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
