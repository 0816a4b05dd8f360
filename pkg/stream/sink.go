package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrClosed is returned by a Sink once the client has gone away. Callers
// stop emitting and do not retry.
var ErrClosed = errors.New("stream closed")

// Sink receives events in order. Emit returns only after the event has been
// handed to the transport.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

type flusher interface {
	Flush() error
}

// Writer is a Sink writing one JSON object per line.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	closed bool
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) Emit(ctx context.Context, event Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	if err := ctx.Err(); err != nil {
		w.closed = true
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.Type, err)
	}

	line = append(line, '\n')

	if _, err := w.w.Write(line); err != nil {
		w.closed = true
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	if f, ok := w.w.(flusher); ok {
		if err := f.Flush(); err != nil {
			w.closed = true
			return fmt.Errorf("%w: %w", ErrClosed, err)
		}
	}

	return nil
}

// Recorder is an in-memory Sink, used by non-streaming callers and tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	// FailAfter makes Emit return ErrClosed once this many events were
	// recorded. Zero disables it.
	FailAfter int
}

func (r *Recorder) Emit(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailAfter > 0 && len(r.events) >= r.FailAfter {
		return ErrClosed
	}

	r.events = append(r.events, event)

	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Event(nil), r.events...)
}
