// Package mc is a client library for the memcached ASCII protocol:
// multi-server routing over a Ketama-style consistent-hashing
// continuum, a non-blocking multiplexed request engine, per-server
// health tracking with retry backoff, and a pluggable value codec with
// compression and chunking for large values.
//
// # Architecture Overview
//
// The module is organized as:
//
//   - pkg/client: the Client facade — Get/Set/Add/Replace/Cas/Incr/Decr/
//     Touch/Delete/FlushAll/Stats/Version/Quit and their multi-key forms
//   - pkg/clientpool: a bounded, growable pool of Clients for concurrent
//     callers, since a bare Client is bound to one goroutine at a time
//   - pkg/continuum: the Ketama consistent-hashing ring and failover walk
//   - pkg/hashfn: the four selectable digest functions (md5, fnv1, fnv1a, crc32)
//   - pkg/engine: the non-blocking request engine driving send/poll/recv
//     across every connection in a batch concurrently
//   - pkg/conn: one connection's socket, buffers, parser, and health state
//   - pkg/wire: ASCII command encoding and incremental response parsing
//   - pkg/codec: the value codec (flags, compression, chunking)
//   - pkg/keys: key validation and prefixing
//   - pkg/mcerr: the observable error taxonomy
//   - internal/testserver: an in-memory ASCII server used by this
//     module's own tests and available as a standalone fixture
//
// # Quick Start
//
//	c, err := client.New(client.Config{
//		Servers: []string{"cache1:11211", "cache2:11211"},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ok, err := c.Set(ctx, "user:123", "john_doe", 3600)
//	value, found, err := c.Get(ctx, "user:123")
//	values, err := c.GetMulti(ctx, []string{"user:123", "user:456"})
//
// # Concurrency
//
// A Client is not safe for concurrent use: calling it from two
// goroutines at once returns mcerr.ThreadUnsafeErr instead of racing.
// Use pkg/clientpool to lease one Client per concurrent caller.
//
// # Non-goals
//
// This module does not implement the binary memcached protocol, SASL or
// TLS, server-side cache behavior, or automatic topology discovery —
// the server list is supplied by the caller.
package mc
