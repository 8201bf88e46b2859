package engine

import (
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// pollReady waits for conn's raw file descriptor to become ready for the
// requested direction (POLLOUT if forWrite, else POLLIN), per spec.md
// section 4.7's readiness-multiplexer step. It returns ready=false on
// timeout, not an error — callers treat that as POLL_TIMEOUT_ERR.
func pollReady(nc net.Conn, forWrite bool, timeout time.Duration) (ready bool, err error) {
	sc, ok := nc.(syscallConner)
	if !ok {
		// No raw fd access (e.g. in tests using net.Pipe); degrade to
		// always-ready and let the subsequent read/write's own deadline
		// surface any real blocking.
		return true, nil
	}

	raw, err := sc.SyscallConn()
	if err != nil {
		return false, err
	}

	var fd int
	if cerr := raw.Control(func(fdv uintptr) { fd = int(fdv) }); cerr != nil {
		return false, cerr
	}

	events := int16(unix.POLLIN)
	if forWrite {
		events = unix.POLLOUT
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: events}}

	n, perr := unix.Poll(fds, int(timeout.Milliseconds()))
	if perr != nil {
		return false, perr
	}
	if n == 0 {
		return false, nil
	}
	return fds[0].Revents&events != 0, nil
}

// syscallConner is satisfied by *net.TCPConn and similar, not by
// net.Pipe's in-memory implementation.
type syscallConner interface {
	SyscallConn() (syscall.RawConn, error)
}
