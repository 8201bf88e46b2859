// Package clientpool provides a bounded, growable pool of pkg/client
// Clients so that many goroutines can share one server list without
// violating Client's single-goroutine-at-a-time contract (spec.md
// section 5's thread-affinity requirement).
package clientpool

import (
	"context"
	"fmt"
	"sync"

	"github.com/cachemir/mc/pkg/client"
)

// Config configures a Pool. Initial clients are created eagerly; the
// pool grows by Growth at a time, up to Max, as leases are contended.
type Config struct {
	ClientConfig client.Config

	Initial int // default 1
	Max     int // default 8
	Growth  int // default 2
}

func (cfg *Config) setDefaults() {
	if cfg.Initial <= 0 {
		cfg.Initial = 1
	}
	if cfg.Max <= 0 {
		cfg.Max = 8
	}
	if cfg.Growth <= 0 {
		cfg.Growth = 2
	}
	if cfg.Initial > cfg.Max {
		cfg.Initial = cfg.Max
	}
}

// Pool hands out leased Clients, growing its backing set on demand up to
// Max and blocking a Lease call when the pool is exhausted and already
// at Max, until a Client is released or ctx is done.
type Pool struct {
	cfg Config

	mu      sync.Mutex
	idle    chan *client.Client
	created int
}

// New constructs a Pool and eagerly dials cfg.Initial Clients.
func New(cfg Config) (*Pool, error) {
	cfg.setDefaults()

	p := &Pool{
		cfg:  cfg,
		idle: make(chan *client.Client, cfg.Max),
	}

	for i := 0; i < cfg.Initial; i++ {
		c, err := client.New(cfg.ClientConfig)
		if err != nil {
			return nil, fmt.Errorf("clientpool: %w", err)
		}
		p.idle <- c
		p.created++
	}

	return p, nil
}

// Leased is a Client on loan from the pool. Release MUST be called
// exactly once to return it; failing to do so starves the pool.
type Leased struct {
	*client.Client
	pool *Pool
}

// Release returns the leased Client to the pool for reuse.
func (l *Leased) Release() {
	l.pool.release(l.Client)
}

// Lease returns a Client for the caller's exclusive use until Release is
// called. It grows the pool (up to Max) before blocking, and blocks only
// once the pool is fully grown and every Client is on loan.
func (p *Pool) Lease(ctx context.Context) (*Leased, error) {
	select {
	case c := <-p.idle:
		return &Leased{Client: c, pool: p}, nil
	default:
	}

	if c, grew, err := p.tryGrow(); grew {
		if err != nil {
			return nil, err
		}
		return &Leased{Client: c, pool: p}, nil
	}

	select {
	case c := <-p.idle:
		return &Leased{Client: c, pool: p}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// tryGrow creates up to Growth additional Clients (capped at Max) if the
// pool has not yet reached Max: one is returned to the caller and the
// rest go to the idle set. It reports grew=true whether or not creation
// of the returned Client succeeded so the caller knows not to fall
// through to a second growth attempt.
func (p *Pool) tryGrow() (c *client.Client, grew bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.created >= p.cfg.Max {
		return nil, false, nil
	}

	batch := p.cfg.Growth
	if p.created+batch > p.cfg.Max {
		batch = p.cfg.Max - p.created
	}

	newClient, err := client.New(p.cfg.ClientConfig)
	if err != nil {
		return nil, true, fmt.Errorf("clientpool: %w", err)
	}
	p.created++

	// Growth beyond the one returned to the caller goes straight to idle.
	for i := 1; i < batch; i++ {
		extra, err := client.New(p.cfg.ClientConfig)
		if err != nil {
			break
		}
		p.created++
		p.idle <- extra
	}

	return newClient, true, nil
}

func (p *Pool) release(c *client.Client) {
	select {
	case p.idle <- c:
	default:
		// Pool shrank (should not normally happen with a fixed Max
		// channel capacity); drop rather than leak a goroutine blocking
		// on a full channel send.
	}
}

// Size reports how many Clients the pool has created so far.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}

// UpdateServers atomically replaces every Client's server list with
// servers, quiescing (leasing and releasing) each one in turn so that no
// in-flight request observes a half-updated continuum.
func (p *Pool) UpdateServers(ctx context.Context, servers []string) error {
	p.mu.Lock()
	n := p.created
	p.mu.Unlock()

	for i := 0; i < n; i++ {
		leased, err := p.Lease(ctx)
		if err != nil {
			return err
		}
		cfg := p.cfg.ClientConfig
		cfg.Servers = servers
		fresh, err := client.New(cfg)
		if err != nil {
			leased.Release()
			return err
		}
		*leased.Client = *fresh
		leased.Release()
	}
	return nil
}
