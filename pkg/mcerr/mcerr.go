// Package mcerr defines the observable error taxonomy for the memcached
// client core: the process-wide error codes from spec.md section 6 and a
// typed error that carries one of them plus the underlying cause.
package mcerr

import "fmt"

// Code is one of the observable error codes a caller can compare against.
// Values are process-wide and read-only once the package is loaded.
type Code string

const (
	OK                  Code = "OK"
	SendErr             Code = "SEND_ERR"
	RecvErr             Code = "RECV_ERR"
	ConnPollErr         Code = "CONN_POLL_ERR"
	PollTimeoutErr      Code = "POLL_TIMEOUT_ERR"
	PollErr             Code = "POLL_ERR"
	McServerErr         Code = "MC_SERVER_ERR"
	ProgrammingErr      Code = "PROGRAMMING_ERR"
	InvalidKeyErr       Code = "INVALID_KEY_ERR"
	IncompleteBufferErr Code = "INCOMPLETE_BUFFER_ERR"
	ThreadUnsafeErr     Code = "THREAD_UNSAFE"
)

// Error pairs an observable Code with the underlying cause, if any.
// It satisfies errors.Is/errors.As through Unwrap.
type Error struct {
	Code Code
	Key  string // empty when the error is not key-scoped
	Err  error
}

func New(code Code, key string, cause error) *Error {
	return &Error{Code: code, Key: key, Err: cause}
}

func (e *Error) Error() string {
	if e.Key != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: key %q: %v", e.Code, e.Key, e.Err)
		}
		return fmt.Sprintf("%s: key %q", e.Code, e.Key)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Code, so callers
// can do errors.Is(err, mcerr.New(mcerr.McServerErr, "", nil)).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}
