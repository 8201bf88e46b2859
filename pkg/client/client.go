// Package client implements the Client facade from spec.md section 4.9:
// a single, bound-to-one-goroutine memcached client multiplexing
// requests across a continuum of servers. For concurrent access from
// many goroutines, lease a Client from pkg/clientpool instead of sharing
// one directly.
package client

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cachemir/mc/pkg/codec"
	"github.com/cachemir/mc/pkg/conn"
	"github.com/cachemir/mc/pkg/continuum"
	"github.com/cachemir/mc/pkg/engine"
	"github.com/cachemir/mc/pkg/hashfn"
	"github.com/cachemir/mc/pkg/keys"
	"github.com/cachemir/mc/pkg/mcerr"
	"github.com/cachemir/mc/pkg/wire"
	"github.com/sirupsen/logrus"
)

// Client is not safe for concurrent use by more than one goroutine at a
// time; a second concurrent call returns mcerr.ThreadUnsafeErr rather
// than racing (spec.md section 5).
type Client struct {
	cfg    Config
	ring   *continuum.Ring
	hashFn hashfn.Func
	codec  *codec.Codec
	conns  []*conn.Connection
	log    *logrus.Logger

	busy    int32
	lastErr *mcerr.Error
}

// New builds a Client from cfg, parsing its server list and constructing
// the continuum and one (not-yet-dialed) Connection per server.
func New(cfg Config) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, fmt.Errorf("client: at least one server is required")
	}
	cfg.setDefaults()

	servers := make([]continuum.Server, 0, len(cfg.Servers))
	for _, spec := range cfg.Servers {
		srv, err := continuum.ParseServer(spec)
		if err != nil {
			return nil, err
		}
		servers = append(servers, srv)
	}

	ring, err := continuum.Build(servers)
	if err != nil {
		return nil, err
	}

	conns := make([]*conn.Connection, len(ring.Servers()))
	for i, srv := range ring.Servers() {
		conns[i] = conn.New(srv, cfg.RetryTimeout, cfg.Logger)
	}

	c := &Client{
		cfg:    cfg,
		ring:   ring,
		hashFn: hashfn.Resolve(cfg.HashFn),
		codec: codec.New(codec.Options{
			CompThreshold: cfg.CompThreshold,
			ChunkSize:     cfg.ChunkSize,
			NoCompress:    cfg.NoCompress,
			Object:        cfg.ObjectCodec,
		}),
		conns: conns,
		log:   cfg.Logger,
	}
	return c, nil
}

// LastError returns the most recent operation's error, or nil.
func (c *Client) LastError() *mcerr.Error { return c.lastErr }

func (c *Client) lock() error {
	if !atomic.CompareAndSwapInt32(&c.busy, 0, 1) {
		return mcerr.New(mcerr.ThreadUnsafeErr, "", nil)
	}
	return nil
}

func (c *Client) unlock() { atomic.StoreInt32(&c.busy, 0) }

func (c *Client) fail(code mcerr.Code, key string, cause error) error {
	e := mcerr.New(code, key, cause)
	c.lastErr = e
	return e
}

// serverIndexFor maps a fully-prefixed key to a connection index, using
// failover (skipping soft- or hard-failed servers still in their
// cooldown) when enabled.
func (c *Client) serverIndexFor(key string) (int, bool) {
	if !c.cfg.Failover {
		return c.ring.Lookup([]byte(key), c.hashFn), true
	}
	now := time.Now()
	return c.ring.LookupFailover([]byte(key), c.hashFn, func(idx int) bool {
		return c.conns[idx].Health.Dead(now)
	})
}

// groupByServer partitions prefixed keys by the connection they route
// to. unreachable holds keys for which every server on the continuum is
// currently dead.
func (c *Client) groupByServer(prefixed []string) (groups map[int][]string, unreachable []string) {
	groups = make(map[int][]string)
	for _, k := range prefixed {
		idx, ok := c.serverIndexFor(k)
		if !ok {
			unreachable = append(unreachable, k)
			continue
		}
		groups[idx] = append(groups[idx], k)
	}
	return groups, unreachable
}

func (c *Client) prefixed(key string) string { return keys.WithPrefix(c.cfg.Prefix, key) }

// splitValidKeys partitions raw into keys that pass validation and a
// count of keys that don't. An invalid key is excluded from the batch
// and recorded via fail rather than aborting the whole call, so a
// single bad key never affects the others in the same batch (spec.md
// sections 4.1 and 7).
func (c *Client) splitValidKeys(raw []string) (valid []string, invalidCount int) {
	valid = make([]string, 0, len(raw))
	for _, k := range raw {
		if err := keys.Validate(k); err != nil {
			c.fail(mcerr.InvalidKeyErr, k, err)
			invalidCount++
			continue
		}
		valid = append(valid, k)
	}
	return valid, invalidCount
}

// fetch is the shared implementation behind Get and GetMulti: it routes
// prefixed keys to their servers, issues get/gets on each connection
// concurrently, and returns the raw wire.Record for every key that came
// back, without decoding.
func (c *Client) fetch(ctx context.Context, prefixedKeys []string, withCas bool) (map[string]wire.Record, error) {
	groups, _ := c.groupByServer(prefixedKeys)

	jobs := make([]*engine.Job, 0, len(groups))
	jobByServer := make(map[*engine.Job]int, len(groups))
	for idx, ks := range groups {
		j := &engine.Job{
			Conn:    c.conns[idx],
			Payload: wire.GetCommand(ks, withCas),
			Done:    engine.UntilEnd,
		}
		jobs = append(jobs, j)
		jobByServer[j] = idx
	}

	outcomes := engine.Run(ctx, jobs, c.cfg.Timeout)

	out := make(map[string]wire.Record)
	for _, j := range jobs {
		o := outcomes[j]
		for _, rec := range o.Records {
			if rec.Kind == wire.KindValue {
				out[rec.Key] = rec
			}
		}
		if o.Err != nil {
			c.log.WithError(o.Err).WithField("server", c.conns[jobByServer[j]].Server.Addr()).Debug("fetch: connection error")
		}
	}
	return out, nil
}

// childGetter returns a codec.ChildGetter that fetches a chunk child by
// issuing a fresh single-key fetch, so chunk children that hash to a
// different server than their parent are still resolved correctly.
func (c *Client) childGetter(ctx context.Context) codec.ChildGetter {
	return func(key string) ([]byte, codec.Flags, bool, error) {
		pk := c.prefixed(key)
		recs, err := c.fetch(ctx, []string{pk}, false)
		if err != nil {
			return nil, 0, false, err
		}
		rec, ok := recs[pk]
		if !ok {
			return nil, 0, false, nil
		}
		return rec.Data, codec.Flags(rec.Flags), true, nil
	}
}

// Get fetches one value. ok is false on a cache miss.
func (c *Client) Get(ctx context.Context, key string) (value any, ok bool, err error) {
	if err := c.lock(); err != nil {
		return nil, false, err
	}
	defer c.unlock()

	if err := keys.Validate(key); err != nil {
		return nil, false, c.fail(mcerr.InvalidKeyErr, key, err)
	}

	pk := c.prefixed(key)
	recs, err := c.fetch(ctx, []string{pk}, false)
	if err != nil {
		return nil, false, err
	}
	rec, found := recs[pk]
	if !found {
		return nil, false, nil
	}
	return c.decodeRecord(ctx, key, rec)
}

// GetMulti fetches many values in one multiplexed round. Missing,
// unreachable, or invalid keys are simply absent from the result map; an
// invalid key is excluded from the batch rather than aborting it, and a
// partial batch failure never aborts the keys that did succeed.
func (c *Client) GetMulti(ctx context.Context, keysIn []string) (map[string]any, error) {
	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.unlock()

	valid, _ := c.splitValidKeys(keysIn)

	prefixedToOrig := make(map[string]string, len(valid))
	prefixedKeys := make([]string, 0, len(valid))
	for _, k := range valid {
		pk := c.prefixed(k)
		prefixedToOrig[pk] = k
		prefixedKeys = append(prefixedKeys, pk)
	}

	recs, err := c.fetch(ctx, prefixedKeys, false)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(recs))
	for pk, rec := range recs {
		orig := prefixedToOrig[pk]
		v, ok, derr := c.decodeRecord(ctx, orig, rec)
		if derr != nil || !ok {
			continue
		}
		out[orig] = v
	}
	return out, nil
}

// GetsCas fetches one value along with its CAS token, for a subsequent
// Cas call.
func (c *Client) GetsCas(ctx context.Context, key string) (value any, cas uint64, ok bool, err error) {
	if err := c.lock(); err != nil {
		return nil, 0, false, err
	}
	defer c.unlock()

	if err := keys.Validate(key); err != nil {
		return nil, 0, false, c.fail(mcerr.InvalidKeyErr, key, err)
	}

	pk := c.prefixed(key)
	recs, err := c.fetch(ctx, []string{pk}, true)
	if err != nil {
		return nil, 0, false, err
	}
	rec, found := recs[pk]
	if !found {
		return nil, 0, false, nil
	}
	v, ok, derr := c.decodeRecord(ctx, key, rec)
	if derr != nil || !ok {
		return nil, 0, false, derr
	}
	return v, rec.Cas, true, nil
}

func (c *Client) decodeRecord(ctx context.Context, key string, rec wire.Record) (any, bool, error) {
	return c.codec.Decode(key, rec.Data, rec.Flags, c.childGetter(ctx))
}
