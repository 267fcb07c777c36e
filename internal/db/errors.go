package db

import "errors"

var (
	// ErrKeyNotFound is returned by Get and HGetAll callers that need a missing key to be an error.
	ErrKeyNotFound = errors.New("db: key not found")
	// ErrIndexNotFound is matched against "Unknown index" and "no such index" replies.
	ErrIndexNotFound = errors.New("db: index not found")
	ErrIndexExists   = errors.New("db: index already exists")
	// ErrTxAborted means EXEC returned nil: the batch was discarded and nothing was written.
	ErrTxAborted = errors.New("db: transaction aborted")
	// ErrUnavailable marks connectivity and timeout failures, as opposed to server-side errors.
	ErrUnavailable = errors.New("db: unavailable")
)

// Command names carried in Error.Op.
const (
	OpPing        = "PING"
	OpCreateIndex = "FT.CREATE"
	OpDropIndex   = "FT.DROPINDEX"
	OpIndexInfo   = "FT.INFO"
	OpSearch      = "FT.SEARCH"
	OpDel         = "DEL"
	OpHGetAll     = "HGETALL"
	OpHSet        = "HSET"
	OpExists      = "EXISTS"
	OpExec        = "EXEC"
	OpScan        = "SCAN"
	OpGet         = "GET"
	OpSet         = "SET"
	OpIncrBy      = "INCRBY"
	OpExpire      = "EXPIRE"
)

// Error attaches the failing command to a driver error.
type Error struct {
	Op  string
	Err error
}

// Wrap returns nil for a nil err.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// IsUnavailable reports whether the store could not be reached at all.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
