// Package config enumerates the options from spec §6 plus the ambient
// connection settings cmd/syncd needs to wire up the engine, following the
// teacher's env(k, def string) string convention in cmd/server/main.go.
package config

import (
	"os"
	"strconv"
	"time"
)

// ConflictStrategy selects a ConflictResolver variant (spec §4.4).
type ConflictStrategy string

const (
	StrategyLastWriteWins ConflictStrategy = "last-write-wins"
	StrategyServerWins    ConflictStrategy = "server-wins"
	StrategyClientWins    ConflictStrategy = "client-wins"
	StrategyCustom        ConflictStrategy = "custom"
)

// Config holds every tunable named in spec §6.
type Config struct {
	ConflictStrategy  ConflictStrategy
	SyncInterval      time.Duration
	MaxRetries        int
	RetryDelayBase    time.Duration
	EnableBackground  bool
	SyncOnReconnect   bool
	PushBatchSize     int
	Debug             bool

	// Ambient, not named in spec §6 but required to wire the engine up.
	DatabaseURL   string
	TransportURL  string
	BearerToken   string
	DebugAddr     string
}

// Default returns the defaults from spec §6's configuration table.
func Default() Config {
	return Config{
		ConflictStrategy: StrategyLastWriteWins,
		SyncInterval:     5 * time.Minute,
		MaxRetries:       3,
		RetryDelayBase:   time.Second,
		EnableBackground: true,
		SyncOnReconnect:  true,
		PushBatchSize:    50,
		Debug:            false,
		DebugAddr:        ":8089",
	}
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDurationMs(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// FromEnv builds a Config from process environment variables, layered over
// Default(), mirroring the teacher's env(k, def) pattern.
func FromEnv() Config {
	c := Default()

	c.ConflictStrategy = ConflictStrategy(env("SYNC_CONFLICT_STRATEGY", string(c.ConflictStrategy)))
	c.SyncInterval = envDurationMs("SYNC_INTERVAL_MS", c.SyncInterval)
	c.MaxRetries = envInt("SYNC_MAX_RETRIES", c.MaxRetries)
	c.RetryDelayBase = envDurationMs("SYNC_RETRY_DELAY_BASE_MS", c.RetryDelayBase)
	c.EnableBackground = envBool("SYNC_ENABLE_BACKGROUND", c.EnableBackground)
	c.SyncOnReconnect = envBool("SYNC_ON_RECONNECT", c.SyncOnReconnect)
	c.PushBatchSize = envInt("SYNC_PUSH_BATCH_SIZE", c.PushBatchSize)
	c.Debug = envBool("SYNC_DEBUG", c.Debug)

	c.DatabaseURL = env("DATABASE_URL", "")
	c.TransportURL = env("SYNC_TRANSPORT_URL", "")
	c.BearerToken = env("SYNC_BEARER_TOKEN", "")
	c.DebugAddr = env("SYNC_DEBUG_ADDR", c.DebugAddr)

	return c
}
