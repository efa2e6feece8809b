package common

import (
	"errors"
	"fmt"
)

// The sync pipeline classifies every failure into one of these kinds.
// The orchestrator uses the class, not the concrete error, to decide
// which failure to surface when several stages fail in the same round.

// ErrThreadChannel covers a worker goroutine that panicked or a stage
// that observed an unexpected channel closure.
var ErrThreadChannel = errors.New("worker thread or channel failure")

// ErrCoordinatorClosed means the downstream signaling channel is gone;
// the surrounding process is already shutting down.
var ErrCoordinatorClosed = errors.New("coordinator channel closed")

// DownloadError wraps a failure fetching a block or syncing headers
// from the burnchain.
type DownloadError struct {
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download error: %v", e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ParseError wraps a failure decoding a fetched block.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DBError wraps a failure committing a parsed block's derived state.
type DBError struct {
	Err error
}

func (e *DBError) Error() string {
	return fmt.Sprintf("db error: %v", e.Err)
}

func (e *DBError) Unwrap() error { return e.Err }

func IsDownloadError(err error) bool {
	var de *DownloadError
	return errors.As(err, &de)
}

func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

func IsDBError(err error) bool {
	var de *DBError
	return errors.As(err, &de)
}

func IsThreadChannelError(err error) bool {
	return errors.Is(err, ErrThreadChannel)
}
