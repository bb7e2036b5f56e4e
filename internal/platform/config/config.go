package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr            string
	DatabaseURL     string
	Redis           RedisConfig
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// RedisConfig drives the optional workflow-resolution cache. An empty URL
// disables Redis entirely; the service runs store-only.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	DefaultTTL   time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:            envString("CLAIMDESK_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("CLAIMDESK_DATABASE_URL"),
		RequestTimeout:  envDuration("CLAIMDESK_REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: envDuration("CLAIMDESK_SHUTDOWN_TIMEOUT", 10*time.Second),
		Redis: RedisConfig{
			URL:          os.Getenv("CLAIMDESK_REDIS_URL"),
			PoolSize:     envInt("CLAIMDESK_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("CLAIMDESK_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("CLAIMDESK_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("CLAIMDESK_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("CLAIMDESK_REDIS_WRITE_TIMEOUT", 3*time.Second),
			DefaultTTL:   envDuration("CLAIMDESK_REDIS_CACHE_TTL", 5*time.Minute),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
