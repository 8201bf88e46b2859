// Package config provides configuration management for the memcached
// client core and its reference test server.
//
// The package supports configuration through multiple sources with the
// following precedence:
//  1. Command-line flags (highest priority)
//  2. Environment variables
//  3. Default values (lowest priority)
//
// Server Configuration:
//   - Host binding and port
//   - Connection limits
//   - Logging configuration
//
// Client Configuration:
//   - Server discovery and hash function selection
//   - Pool sizing
//   - Retry and timeout policies
//   - Value codec parameters (compression, chunking)
//
// Example server usage:
//
//	cfg := config.LoadServerConfig()
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
// Example client usage:
//
//	cfg := config.LoadClientConfig()
//	cfg.Servers = []string{"cache1:11211", "cache2:11211"}
//
// Environment variables are prefixed with "MC_" and use uppercase names.
// For example, the server port can be set with MC_PORT=11311.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default server configuration constants
const (
	DefaultServerPort      = 11311
	DefaultMaxConnections  = 1000
	DefaultReadTimeoutSecs = 30
)

// Default client configuration constants
const (
	DefaultTimeoutMillis      = 750
	DefaultRetryTimeoutMillis = 5000
	DefaultCompThreshold      = 0 // disabled by default
	DefaultChunkSize          = 1_000_000
	DefaultPoolInitial        = 1
	DefaultPoolMax            = 8
	DefaultPoolGrowth         = 2
)

// ServerConfig holds listen and limit settings for a reference ASCII test
// server. cmd/mc-server does not read it: internal/testserver.New always
// listens on a random loopback port.
//
// Configuration sources (in order of precedence):
//  1. Command-line flags: -port, -host, -log-level
//  2. Environment variables: MC_PORT, MC_HOST, MC_MAX_CONNS
//  3. Default values
type ServerConfig struct {
	Host        string
	LogLevel    string
	Port        int
	MaxConns    int
	ReadTimeout int // seconds
}

// ClientConfig holds the configuration for a pkg/client.Client or
// pkg/clientpool.Pool, loaded from environment variables by
// LoadClientConfig. cmd/mc-cli does not use it; library callers can also
// build client.Config directly.
type ClientConfig struct {
	Servers      []string // "host[:port][ alias]" entries
	Prefix       string
	HashFn       string // "md5", "fnv1", "fnv1a", "crc32"
	Failover     bool
	NoReply      bool
	CompThresh   int
	ChunkSize    int
	TimeoutMS    int
	RetryTimeMS  int
	PoolInitial  int
	PoolMax      int
	PoolGrowth   int
}

// LoadServerConfig builds a ServerConfig from flags, then environment
// variables, then defaults.
func LoadServerConfig() *ServerConfig {
	cfg := &ServerConfig{
		Port:        DefaultServerPort,
		Host:        "0.0.0.0",
		MaxConns:    DefaultMaxConnections,
		ReadTimeout: DefaultReadTimeoutSecs,
		LogLevel:    "info",
	}

	flag.IntVar(&cfg.Port, "port", cfg.Port, "server port")
	flag.StringVar(&cfg.Host, "host", cfg.Host, "server host")
	flag.IntVar(&cfg.MaxConns, "max-conns", cfg.MaxConns, "maximum concurrent connections")
	flag.IntVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "read timeout in seconds")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if port := os.Getenv("MC_PORT"); port != "" && !set["port"] {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if host := os.Getenv("MC_HOST"); host != "" && !set["host"] {
		cfg.Host = host
	}
	if maxConns := os.Getenv("MC_MAX_CONNS"); maxConns != "" && !set["max-conns"] {
		if mc, err := strconv.Atoi(maxConns); err == nil {
			cfg.MaxConns = mc
		}
	}

	return cfg
}

// LoadClientConfig builds a ClientConfig from environment variables and
// defaults. cmd/mc-cli does not call it (it binds its own flags and
// environment through cobra/viper); this loader exists for library callers who just want
// env-var configuration without pulling in a CLI framework.
//
// Environment variables:
//
//	MC_SERVERS: comma-separated "host[:port][ alias]" entries
//	MC_PREFIX: key prefix
//	MC_HASH_FN: md5, fnv1, fnv1a, or crc32
//	MC_FAILOVER: "1" to enable failover
//	MC_COMP_THRESHOLD: compression threshold in bytes
//	MC_CHUNK_SIZE: chunk size in bytes
//	MC_TIMEOUT_MS: per-batch timeout in milliseconds
//	MC_RETRY_TIMEOUT_MS: hard-fail cooldown in milliseconds
func LoadClientConfig() *ClientConfig {
	cfg := &ClientConfig{
		Servers:     []string{"localhost:11211"},
		HashFn:      "md5",
		CompThresh:  DefaultCompThreshold,
		ChunkSize:   DefaultChunkSize,
		TimeoutMS:   DefaultTimeoutMillis,
		RetryTimeMS: DefaultRetryTimeoutMillis,
		PoolInitial: DefaultPoolInitial,
		PoolMax:     DefaultPoolMax,
		PoolGrowth:  DefaultPoolGrowth,
	}

	if servers := os.Getenv("MC_SERVERS"); servers != "" {
		cfg.Servers = splitTrim(servers)
	}
	if prefix := os.Getenv("MC_PREFIX"); prefix != "" {
		cfg.Prefix = prefix
	}
	if hashFn := os.Getenv("MC_HASH_FN"); hashFn != "" {
		cfg.HashFn = hashFn
	}
	if failover := os.Getenv("MC_FAILOVER"); failover == "1" {
		cfg.Failover = true
	}
	if v := os.Getenv("MC_COMP_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CompThresh = n
		}
	}
	if v := os.Getenv("MC_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ChunkSize = n
		}
	}
	if v := os.Getenv("MC_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TimeoutMS = n
		}
	}
	if v := os.Getenv("MC_RETRY_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RetryTimeMS = n
		}
	}

	return cfg
}

func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// Address returns "host:port" for the server to bind to.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks a ServerConfig's values are in range.
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MaxConns < 1 {
		return fmt.Errorf("max connections must be positive: %d", c.MaxConns)
	}
	if c.ReadTimeout < 1 {
		return fmt.Errorf("read timeout must be positive: %d", c.ReadTimeout)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	return nil
}

// Validate checks a ClientConfig's values are in range.
func (c *ClientConfig) Validate() error {
	if len(c.Servers) == 0 {
		return fmt.Errorf("at least one server must be specified")
	}
	for _, s := range c.Servers {
		if s == "" {
			return fmt.Errorf("empty server address")
		}
	}

	validHashFns := map[string]bool{"md5": true, "fnv1": true, "fnv1a": true, "crc32": true, "": true}
	if !validHashFns[c.HashFn] {
		return fmt.Errorf("invalid hash function: %s", c.HashFn)
	}

	if c.CompThresh < 0 {
		return fmt.Errorf("compression threshold must be non-negative: %d", c.CompThresh)
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("chunk size must be non-negative: %d", c.ChunkSize)
	}
	if c.TimeoutMS < 1 {
		return fmt.Errorf("timeout must be positive: %d", c.TimeoutMS)
	}
	if c.RetryTimeMS < 1 {
		return fmt.Errorf("retry timeout must be positive: %d", c.RetryTimeMS)
	}
	if c.PoolInitial < 1 {
		return fmt.Errorf("pool initial size must be positive: %d", c.PoolInitial)
	}
	if c.PoolMax < c.PoolInitial {
		return fmt.Errorf("pool max (%d) must be >= pool initial (%d)", c.PoolMax, c.PoolInitial)
	}
	if c.PoolGrowth < 1 {
		return fmt.Errorf("pool growth must be positive: %d", c.PoolGrowth)
	}
	return nil
}

// Timeout returns the client batch timeout as a time.Duration.
func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// RetryTimeout returns the hard-fail cooldown as a time.Duration.
func (c *ClientConfig) RetryTimeout() time.Duration {
	return time.Duration(c.RetryTimeMS) * time.Millisecond
}
