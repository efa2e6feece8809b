package sync

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/burnsync/burnsync/internal/common"
)

type workerResult[T any] struct {
	value      T
	err        error
	panicked   bool
	panicValue interface{}
}

// JoinHandle is the handle to a spawned worker goroutine. Exactly one
// result is ever delivered, even when the worker panics.
type JoinHandle[T any] struct {
	label string
	done  chan workerResult[T]
}

// spawnWorker runs fn on its own goroutine. A panic inside fn is
// recovered and reported through the handle instead of crashing the
// process. onFail runs once if fn returns an error or panics; the
// pipeline uses it to abort peer stages so nobody blocks forever.
func spawnWorker[T any](label string, onFail func(), fn func() (T, error)) *JoinHandle[T] {
	handle := &JoinHandle[T]{
		label: label,
		done:  make(chan workerResult[T], 1),
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("thread", label).Msg("Worker thread panicked")
				if onFail != nil {
					onFail()
				}
				var zero T
				handle.done <- workerResult[T]{value: zero, panicked: true, panicValue: r}
			}
		}()
		value, err := fn()
		if err != nil && onFail != nil {
			onFail()
		}
		handle.done <- workerResult[T]{value: value, err: err}
	}()
	return handle
}

// handleThreadJoin blocks until the worker finishes and collapses the
// outcome into a single result. A panicked worker yields a
// thread-channel error; it is never re-raised. No timeout is applied
// here: callers bound the wait through the cancellation flag.
func handleThreadJoin[T any](handle *JoinHandle[T]) (T, error) {
	result := <-handle.done
	if result.panicked {
		var zero T
		return zero, fmt.Errorf("%s thread terminated abnormally: %w", handle.label, common.ErrThreadChannel)
	}
	return result.value, result.err
}
