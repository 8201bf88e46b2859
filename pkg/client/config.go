package client

import (
	"time"

	"github.com/cachemir/mc/pkg/codec"
	"github.com/cachemir/mc/pkg/hashfn"
	"github.com/sirupsen/logrus"
)

// Config configures a Client. Servers is the only required field.
type Config struct {
	// Servers lists "host[:port][ alias]" entries, one per backend,
	// matching the servers list format in spec.md section 6.
	Servers []string

	// Prefix is prepended to every key this client sends and stripped
	// from every key it returns, so that clients sharing a cluster with
	// different prefixes never see each other's keys.
	Prefix string

	// HashFn selects the function that hashes keys onto the continuum;
	// empty means MD5. The continuum's own points are always MD5-derived.
	HashFn hashfn.Name

	// Failover enables clockwise probing to the next live server on the
	// continuum when a key's first-choice server is soft- or hard-failed
	// and still within its retry cooldown.
	Failover bool

	// NoReply appends "noreply" to storage commands, skipping the
	// server's acknowledgement.
	NoReply bool

	// FlushAllEnabled must be set (or ToggleFlushAll(true) called) before
	// FlushAll will run; off by default to prevent an accidental mass
	// eviction (spec.md section 4.7).
	FlushAllEnabled bool

	// CompThreshold is the minimum encoded size, in bytes, before the
	// codec attempts zlib compression. 0 disables compression.
	CompThreshold int
	NoCompress    bool
	ChunkSize     int // 0 means codec.DefaultChunkSize
	ObjectCodec   codec.ObjectCodec

	// Timeout bounds one engine batch's full send+poll+recv cycle per
	// connection.
	Timeout time.Duration

	// RetryTimeout is how long a hard-failed server is skipped before
	// being retried.
	RetryTimeout time.Duration

	Logger *logrus.Logger
}

func (cfg *Config) setDefaults() {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 750 * time.Millisecond
	}
	if cfg.RetryTimeout <= 0 {
		cfg.RetryTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
}
