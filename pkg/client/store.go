package client

import (
	"context"

	"github.com/cachemir/mc/pkg/codec"
	"github.com/cachemir/mc/pkg/engine"
	"github.com/cachemir/mc/pkg/keys"
	"github.com/cachemir/mc/pkg/mcerr"
	"github.com/cachemir/mc/pkg/wire"
)

// storeItem is one codec.StoredItem bound to the verb it must be sent
// with: the top-level item (the caller's own key) carries the caller's
// requested verb, while chunk children are always written with a plain
// set, since only the top-level item's existence should gate
// add/replace/cas semantics.
type storeItem struct {
	codec.StoredItem
	verb wire.StoreVerb
}

func (c *Client) buildStoreItems(pk string, verb wire.StoreVerb, value any, userFlags uint16) ([]storeItem, error) {
	items, err := c.codec.Encode(pk, value, userFlags)
	if err != nil {
		return nil, err
	}
	out := make([]storeItem, len(items))
	for i, it := range items {
		v := wire.VerbSet
		if it.Key == pk {
			v = verb
		}
		out[i] = storeItem{StoredItem: it, verb: v}
	}
	return out, nil
}

// storeBatch writes items (possibly spanning several servers and, for a
// chunked value, several physical keys) and reports whether every item
// was stored successfully.
func (c *Client) storeBatch(ctx context.Context, items []storeItem, exptime int64, casToken uint64) (bool, error) {
	type placed struct {
		idx  int
		item storeItem
	}
	byServer := make(map[int][]placed)
	for _, it := range items {
		idx, ok := c.serverIndexFor(it.Key)
		if !ok {
			return false, c.fail(mcerr.ConnPollErr, it.Key, nil)
		}
		byServer[idx] = append(byServer[idx], placed{idx: idx, item: it})
	}

	jobs := make([]*engine.Job, 0, len(byServer))
	counts := make(map[*engine.Job]int, len(byServer))
	for idx, placements := range byServer {
		var payload []byte
		for _, p := range placements {
			payload = append(payload, wire.StoreCommand(p.item.verb, p.item.Key, uint16(p.item.Flags), exptime, p.item.Data, casToken, c.cfg.NoReply)...)
		}
		n := len(placements)
		if c.cfg.NoReply {
			n = 0
		}
		j := &engine.Job{Conn: c.conns[idx], Payload: payload, Done: engine.UntilCount(n)}
		jobs = append(jobs, j)
		counts[j] = n
	}

	outcomes := engine.Run(ctx, jobs, c.cfg.Timeout)

	if c.cfg.NoReply {
		for _, j := range jobs {
			if outcomes[j].Err != nil {
				return false, outcomes[j].Err
			}
		}
		return true, nil
	}

	ok := true
	for _, j := range jobs {
		o := outcomes[j]
		if o.Err != nil {
			return false, o.Err
		}
		for _, rec := range o.Records {
			if rec.Kind == wire.KindStatus && rec.Status == wire.StatusStored {
				continue
			}
			ok = false
		}
	}
	return ok, nil
}

func (c *Client) store(ctx context.Context, verb wire.StoreVerb, key string, value any, exptime int64, userFlags uint16) (bool, error) {
	if err := c.lock(); err != nil {
		return false, err
	}
	defer c.unlock()

	if err := keys.Validate(key); err != nil {
		return false, c.fail(mcerr.InvalidKeyErr, key, err)
	}

	pk := c.prefixed(key)
	items, err := c.buildStoreItems(pk, verb, value, userFlags)
	if err != nil {
		return false, c.fail(mcerr.ProgrammingErr, key, err)
	}
	return c.storeBatch(ctx, items, exptime, 0)
}

// Set unconditionally stores value under key.
func (c *Client) Set(ctx context.Context, key string, value any, exptime int64) (bool, error) {
	return c.store(ctx, wire.VerbSet, key, value, exptime, 0)
}

// Add stores value under key only if key does not already exist.
func (c *Client) Add(ctx context.Context, key string, value any, exptime int64) (bool, error) {
	return c.store(ctx, wire.VerbAdd, key, value, exptime, 0)
}

// Replace stores value under key only if key already exists.
func (c *Client) Replace(ctx context.Context, key string, value any, exptime int64) (bool, error) {
	return c.store(ctx, wire.VerbReplace, key, value, exptime, 0)
}

// Append appends data to the end of the existing value.
// Append and prepend bypass the codec's type encoding: the caller
// supplies the raw bytes to splice in.
func (c *Client) Append(ctx context.Context, key string, data []byte) (bool, error) {
	return c.rawStore(ctx, wire.VerbAppend, key, data)
}

// Prepend prepends data to the beginning of the existing value.
func (c *Client) Prepend(ctx context.Context, key string, data []byte) (bool, error) {
	return c.rawStore(ctx, wire.VerbPrepend, key, data)
}

func (c *Client) rawStore(ctx context.Context, verb wire.StoreVerb, key string, data []byte) (bool, error) {
	if err := c.lock(); err != nil {
		return false, err
	}
	defer c.unlock()

	if err := keys.Validate(key); err != nil {
		return false, c.fail(mcerr.InvalidKeyErr, key, err)
	}

	pk := c.prefixed(key)
	item := storeItem{StoredItem: codec.StoredItem{Key: pk, Flags: codec.FlagRaw, Data: data}, verb: verb}
	return c.storeBatch(ctx, []storeItem{item}, 0, 0)
}

// Cas stores value under key only if the server's current CAS token for
// key still matches casToken (obtained from a prior GetsCas).
func (c *Client) Cas(ctx context.Context, key string, value any, exptime int64, casToken uint64) (bool, error) {
	if err := c.lock(); err != nil {
		return false, err
	}
	defer c.unlock()

	if err := keys.Validate(key); err != nil {
		return false, c.fail(mcerr.InvalidKeyErr, key, err)
	}

	pk := c.prefixed(key)
	items, err := c.buildStoreItems(pk, wire.VerbCas, value, 0)
	if err != nil {
		return false, c.fail(mcerr.ProgrammingErr, key, err)
	}
	return c.storeBatch(ctx, items, exptime, casToken)
}

// SetMulti stores every key/value pair, returning true only if every
// key was valid and every individual store succeeded (spec.md's
// aggregate boolean-AND semantics for multi-key storage operations). An
// invalid key, or one whose value fails to encode, is excluded from the
// batch and counts against the aggregate result, but never prevents the
// other pairs from being stored.
func (c *Client) SetMulti(ctx context.Context, values map[string]any, exptime int64) (bool, error) {
	if err := c.lock(); err != nil {
		return false, err
	}
	defer c.unlock()

	var items []storeItem
	failed := false
	for key, value := range values {
		if err := keys.Validate(key); err != nil {
			c.fail(mcerr.InvalidKeyErr, key, err)
			failed = true
			continue
		}
		pk := c.prefixed(key)
		its, err := c.buildStoreItems(pk, wire.VerbSet, value, 0)
		if err != nil {
			c.fail(mcerr.ProgrammingErr, key, err)
			failed = true
			continue
		}
		items = append(items, its...)
	}

	ok, err := c.storeBatch(ctx, items, exptime, 0)
	if err != nil {
		return false, err
	}
	return ok && !failed, nil
}
