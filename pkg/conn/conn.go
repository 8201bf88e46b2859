// Package conn owns one TCP connection to a server: its lifecycle
// (INIT/CONNECTING/OPEN/CLOSED), its outbound/inbound byte buffers, its
// incremental response parser, and its health/retry bookkeeping
// (spec.md sections 4.2 and 4.8).
package conn

import (
	"context"
	"net"
	"time"

	"github.com/cachemir/mc/pkg/continuum"
	"github.com/cachemir/mc/pkg/mcerr"
	"github.com/cachemir/mc/pkg/wire"
	"github.com/sirupsen/logrus"
)

// LifecycleState is the connection's own socket-level state, distinct
// from Health (which tracks whether the server should be routed to).
type LifecycleState int

const (
	StateInit LifecycleState = iota
	StateConnecting
	StateOpen
	StateClosed
)

// Connection is one socket to one server, plus everything needed to
// pipeline requests and incrementally parse responses on it.
type Connection struct {
	Server Server

	DialTimeout time.Duration

	state LifecycleState
	nc    net.Conn
	seq   uint64 // incremented on every (re)connect

	sendBuf []byte
	parser  *wire.Parser

	Health *Health
	log    *logrus.Entry
}

// Server is the dial target a Connection is bound to; kept separate from
// continuum.Server so pkg/conn has no import-time dependency surprises.
type Server = continuum.Server

// New returns a not-yet-dialed (INIT) connection bound to srv. Open must be called
// before any I/O is attempted.
func New(srv Server, retryTimeout time.Duration, log *logrus.Logger) *Connection {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Connection{
		Server:      srv,
		DialTimeout: 2 * time.Second,
		state:       StateInit,
		parser:      wire.NewParser(),
		Health:      NewHealth(retryTimeout),
		log:         log.WithField("server", srv.Addr()),
	}
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() LifecycleState { return c.state }

// Seq returns the number of times this Connection has (re)connected.
// Callers use it to detect a reconnect happening underneath in-flight work.
func (c *Connection) Seq() uint64 { return c.seq }

// Open dials the server if not already OPEN. Safe to call repeatedly.
func (c *Connection) Open(ctx context.Context) error {
	if c.state == StateOpen {
		return nil
	}
	c.state = StateConnecting

	d := net.Dialer{Timeout: c.DialTimeout}
	nc, err := d.DialContext(ctx, "tcp", c.Server.Addr())
	if err != nil {
		c.state = StateInit
		c.log.WithError(err).Debug("connect failed")
		return mcerr.New(mcerr.ConnPollErr, "", err)
	}

	c.nc = nc
	c.seq++
	c.state = StateOpen
	c.parser = wire.NewParser()
	c.log.WithField("seq", c.seq).Debug("connected")
	return nil
}

// RawConn exposes the underlying net.Conn for use by the readiness
// multiplexer (pkg/engine), which needs the raw file descriptor for
// unix.Poll. Returns nil unless the connection is OPEN.
func (c *Connection) RawConn() net.Conn {
	if c.state != StateOpen {
		return nil
	}
	return c.nc
}

// QueueWrite appends data to the outbound buffer. The engine drains this
// buffer opportunistically as the socket becomes writable.
func (c *Connection) QueueWrite(data []byte) {
	c.sendBuf = append(c.sendBuf, data...)
}

// PendingWrite reports whether there are queued bytes not yet sent.
func (c *Connection) PendingWrite() bool { return len(c.sendBuf) > 0 }

// DrainSend writes the queued outbound buffer with one Write call on the
// net.Conn, which returns once every byte is written or the write fails.
// It returns the number of bytes written.
func (c *Connection) DrainSend() (int, error) {
	if len(c.sendBuf) == 0 {
		return 0, nil
	}
	n, err := c.nc.Write(c.sendBuf)
	c.sendBuf = c.sendBuf[n:]
	if err != nil {
		return n, mcerr.New(mcerr.SendErr, "", err)
	}
	return n, nil
}

// DrainRecv reads whatever bytes are currently available and feeds them
// to the parser, returning any newly completed records.
func (c *Connection) DrainRecv(buf []byte) ([]wire.Record, error) {
	n, err := c.nc.Read(buf)
	if n > 0 {
		c.parser.Feed(buf[:n])
	}
	if err != nil {
		return nil, mcerr.New(mcerr.RecvErr, "", err)
	}
	recs, perr := c.parser.Step()
	if perr != nil {
		return recs, mcerr.New(mcerr.RecvErr, "", perr)
	}
	return recs, nil
}

// MarkSoftFail transitions the connection's health to SOFT_FAILED
// without closing the socket, starting the same retry-timeout cooldown
// as a hard fail; the socket itself is left open.
func (c *Connection) MarkSoftFail(code mcerr.Code) {
	c.Health.SoftFail(code, time.Now())
	c.log.WithField("code", code).Warn("soft fail")
}

// MarkHardFail closes the socket and transitions health to HARD_FAILED
// with a cooldown, per spec.md section 4.8.
func (c *Connection) MarkHardFail(code mcerr.Code) {
	c.Health.HardFail(code, time.Now())
	c.log.WithField("code", code).Warn("hard fail")
	c.Close()
}

// Close closes the socket, if open, and transitions to CLOSED.
func (c *Connection) Close() error {
	if c.nc != nil {
		err := c.nc.Close()
		c.nc = nil
		c.state = StateClosed
		return err
	}
	c.state = StateClosed
	return nil
}

// Quit sends the quit command and closes the connection, per spec.md's
// client-initiated disconnect semantics. The server never replies to quit.
func (c *Connection) Quit() error {
	if c.state != StateOpen {
		return nil
	}
	_, _ = c.nc.Write(wire.QuitCommand())
	return c.Close()
}
