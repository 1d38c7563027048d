package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	Port           int
	AllowedOrigins []string
	Version        string

	SweepInterval     time.Duration
	IdleTimeout       time.Duration
	RoomIDMaxAttempts int
	SendQueueSize     int
	ShutdownTimeout   time.Duration

	RedisURL    string
	DatabaseURL string

	MessagesDir string
}

// Addr is the listen address for the HTTP server.
func (c *AppConfig) Addr() string { return fmt.Sprintf(":%d", c.Port) }

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Port:              3001,
		AllowedOrigins:    []string{"http://localhost:3000"},
		Version:           "1.0.0",
		SweepInterval:     5 * time.Minute,
		IdleTimeout:       30 * time.Minute,
		RoomIDMaxAttempts: 10,
		SendQueueSize:     64,
		ShutdownTimeout:   10 * time.Second,
	}

	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 65535 {
			return nil, fmt.Errorf("invalid PORT %q", v)
		}
		cfg.Port = n
	}
	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		cfg.Version = v
	}

	var err error
	if cfg.SweepInterval, err = durationEnv("ROOM_SWEEP_INTERVAL", cfg.SweepInterval); err != nil {
		return nil, err
	}
	if cfg.IdleTimeout, err = durationEnv("ROOM_IDLE_TIMEOUT", cfg.IdleTimeout); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return nil, err
	}
	if v := strings.TrimSpace(os.Getenv("ROOM_ID_MAX_ATTEMPTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RoomIDMaxAttempts = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SEND_QUEUE_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SendQueueSize = n
		}
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	if len(cfg.AllowedOrigins) == 0 {
		return nil, errors.New("ALLOWED_ORIGINS must list at least one origin")
	}
	if cfg.SweepInterval <= 0 || cfg.IdleTimeout <= 0 {
		return nil, errors.New("room sweep interval and idle timeout must be positive")
	}
	return cfg, nil
}

// durationEnv accepts "90s"/"5m" style values or a bare number of seconds.
func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
