package client

import (
	"context"
	"fmt"

	"github.com/cachemir/mc/pkg/engine"
	"github.com/cachemir/mc/pkg/keys"
	"github.com/cachemir/mc/pkg/mcerr"
	"github.com/cachemir/mc/pkg/wire"
)

// Delete removes key, reporting whether it existed.
func (c *Client) Delete(ctx context.Context, key string) (bool, error) {
	if err := c.lock(); err != nil {
		return false, err
	}
	defer c.unlock()

	if err := keys.Validate(key); err != nil {
		return false, c.fail(mcerr.InvalidKeyErr, key, err)
	}
	pk := c.prefixed(key)
	idx, ok := c.serverIndexFor(pk)
	if !ok {
		return false, c.fail(mcerr.ConnPollErr, key, nil)
	}

	n := 1
	if c.cfg.NoReply {
		n = 0
	}
	j := &engine.Job{Conn: c.conns[idx], Payload: wire.DeleteCommand(pk, c.cfg.NoReply), Done: engine.UntilCount(n)}
	outcomes := engine.Run(ctx, []*engine.Job{j}, c.cfg.Timeout)
	o := outcomes[j]
	if o.Err != nil {
		return false, o.Err
	}
	if c.cfg.NoReply {
		return true, nil
	}
	for _, rec := range o.Records {
		if rec.Kind == wire.KindStatus && rec.Status == wire.StatusDeleted {
			return true, nil
		}
	}
	return false, nil
}

// DeleteMulti deletes every key, returning true only if every key was
// valid, found, and deleted (the same aggregate AND semantics as
// SetMulti). An invalid key is excluded from the batch and counts
// against the aggregate result, but never prevents the other keys from
// being deleted.
func (c *Client) DeleteMulti(ctx context.Context, keysIn []string) (bool, error) {
	if err := c.lock(); err != nil {
		return false, err
	}
	defer c.unlock()

	valid, invalidCount := c.splitValidKeys(keysIn)

	byServer := make(map[int][]string)
	for _, k := range valid {
		pk := c.prefixed(k)
		idx, ok := c.serverIndexFor(pk)
		if !ok {
			return false, c.fail(mcerr.ConnPollErr, k, nil)
		}
		byServer[idx] = append(byServer[idx], pk)
	}

	jobs := make([]*engine.Job, 0, len(byServer))
	for idx, ks := range byServer {
		var payload []byte
		for _, k := range ks {
			payload = append(payload, wire.DeleteCommand(k, c.cfg.NoReply)...)
		}
		n := len(ks)
		if c.cfg.NoReply {
			n = 0
		}
		jobs = append(jobs, &engine.Job{Conn: c.conns[idx], Payload: payload, Done: engine.UntilCount(n)})
	}

	outcomes := engine.Run(ctx, jobs, c.cfg.Timeout)
	if c.cfg.NoReply {
		for _, j := range jobs {
			if outcomes[j].Err != nil {
				return false, outcomes[j].Err
			}
		}
		return invalidCount == 0, nil
	}

	ok := invalidCount == 0
	for _, j := range jobs {
		o := outcomes[j]
		if o.Err != nil {
			return false, o.Err
		}
		for _, rec := range o.Records {
			if rec.Kind == wire.KindStatus && rec.Status == wire.StatusDeleted {
				continue
			}
			ok = false
		}
	}
	return ok, nil
}

func (c *Client) delta(ctx context.Context, incr bool, key string, delta uint64) (uint64, bool, error) {
	if err := c.lock(); err != nil {
		return 0, false, err
	}
	defer c.unlock()

	if err := keys.Validate(key); err != nil {
		return 0, false, c.fail(mcerr.InvalidKeyErr, key, err)
	}
	pk := c.prefixed(key)
	idx, ok := c.serverIndexFor(pk)
	if !ok {
		return 0, false, c.fail(mcerr.ConnPollErr, key, nil)
	}

	n := 1
	if c.cfg.NoReply {
		n = 0
	}
	j := &engine.Job{Conn: c.conns[idx], Payload: wire.DeltaCommand(incr, pk, delta, c.cfg.NoReply), Done: engine.UntilCount(n)}
	outcomes := engine.Run(ctx, []*engine.Job{j}, c.cfg.Timeout)
	o := outcomes[j]
	if o.Err != nil {
		return 0, false, o.Err
	}
	if c.cfg.NoReply {
		return 0, true, nil
	}
	for _, rec := range o.Records {
		if rec.Kind == wire.KindNumeric {
			return rec.Numeric, true, nil
		}
	}
	return 0, false, nil
}

// Incr increments key's numeric value by delta, returning its new value.
// ok is false if key does not exist.
func (c *Client) Incr(ctx context.Context, key string, delta uint64) (uint64, bool, error) {
	return c.delta(ctx, true, key, delta)
}

// Decr decrements key's numeric value by delta, floored at zero.
func (c *Client) Decr(ctx context.Context, key string, delta uint64) (uint64, bool, error) {
	return c.delta(ctx, false, key, delta)
}

// Touch updates key's expiration without fetching its value.
func (c *Client) Touch(ctx context.Context, key string, exptime int64) (bool, error) {
	if err := c.lock(); err != nil {
		return false, err
	}
	defer c.unlock()

	if err := keys.Validate(key); err != nil {
		return false, c.fail(mcerr.InvalidKeyErr, key, err)
	}
	pk := c.prefixed(key)
	idx, ok := c.serverIndexFor(pk)
	if !ok {
		return false, c.fail(mcerr.ConnPollErr, key, nil)
	}

	n := 1
	if c.cfg.NoReply {
		n = 0
	}
	j := &engine.Job{Conn: c.conns[idx], Payload: wire.TouchCommand(pk, exptime, c.cfg.NoReply), Done: engine.UntilCount(n)}
	outcomes := engine.Run(ctx, []*engine.Job{j}, c.cfg.Timeout)
	o := outcomes[j]
	if o.Err != nil {
		return false, o.Err
	}
	if c.cfg.NoReply {
		return true, nil
	}
	for _, rec := range o.Records {
		if rec.Kind == wire.KindStatus && rec.Status == wire.StatusTouched {
			return true, nil
		}
	}
	return false, nil
}

// ToggleFlushAll enables or disables FlushAll at runtime. It is off by
// default; FlushAll fails locally until a caller opts in, guarding
// against accidental mass eviction (spec.md section 4.7).
func (c *Client) ToggleFlushAll(enabled bool) {
	c.cfg.FlushAllEnabled = enabled
}

// FlushAll invalidates every item on every server in the continuum.
// It fails locally with a programming error unless FlushAllEnabled was
// set in Config, or ToggleFlushAll(true) was called first.
func (c *Client) FlushAll(ctx context.Context) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.unlock()

	if !c.cfg.FlushAllEnabled {
		return c.fail(mcerr.ProgrammingErr, "", fmt.Errorf("client: flush_all is disabled; call ToggleFlushAll(true) or set Config.FlushAllEnabled first"))
	}

	jobs := make([]*engine.Job, len(c.conns))
	for i, cn := range c.conns {
		n := 1
		if c.cfg.NoReply {
			n = 0
		}
		jobs[i] = &engine.Job{Conn: cn, Payload: wire.FlushAllCommand(c.cfg.NoReply), Done: engine.UntilCount(n)}
	}
	outcomes := engine.Run(ctx, jobs, c.cfg.Timeout)
	for _, j := range jobs {
		if outcomes[j].Err != nil {
			return outcomes[j].Err
		}
	}
	return nil
}

// Version returns the version string reported by each server, keyed by
// server address.
func (c *Client) Version(ctx context.Context) (map[string]string, error) {
	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.unlock()

	jobs := make([]*engine.Job, len(c.conns))
	for i, cn := range c.conns {
		jobs[i] = &engine.Job{Conn: cn, Payload: wire.VersionCommand(), Done: engine.UntilCount(1)}
	}
	outcomes := engine.Run(ctx, jobs, c.cfg.Timeout)

	out := make(map[string]string, len(jobs))
	for i, j := range jobs {
		o := outcomes[j]
		if o.Err != nil {
			continue
		}
		for _, rec := range o.Records {
			if rec.Kind == wire.KindVersion {
				out[c.conns[i].Server.Addr()] = rec.Version
			}
		}
	}
	return out, nil
}

// Stats returns the stats reported by each server, keyed by server
// address, then by stat name.
func (c *Client) Stats(ctx context.Context) (map[string]map[string]string, error) {
	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.unlock()

	jobs := make([]*engine.Job, len(c.conns))
	for i, cn := range c.conns {
		jobs[i] = &engine.Job{Conn: cn, Payload: wire.StatsCommand(), Done: engine.UntilEnd}
	}
	outcomes := engine.Run(ctx, jobs, c.cfg.Timeout)

	out := make(map[string]map[string]string, len(jobs))
	for i, j := range jobs {
		o := outcomes[j]
		if o.Err != nil {
			continue
		}
		stats := make(map[string]string)
		for _, rec := range o.Records {
			if rec.Kind == wire.KindStat {
				stats[rec.StatKey] = rec.StatValue
			}
		}
		out[c.conns[i].Server.Addr()] = stats
	}
	return out, nil
}

// Quit closes every connection, sending "quit" on whichever are open.
func (c *Client) Quit() error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.unlock()

	var firstErr error
	for _, cn := range c.conns {
		if err := cn.Quit(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
