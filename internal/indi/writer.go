package indi

import (
	"fmt"
	"io"
	"sync"

	"github.com/danmuck/indidrv/internal/observability"
)

type flusher interface {
	Flush() error
}

// Writer is the outbound sink (SPEC_FULL.md §4.A): it serializes one
// complete XML element per Emit call, atomically with respect to any
// other goroutine calling Emit on the same Writer. A write or flush
// failure is returned to the caller wrapped in ErrWriteFailed; the
// Writer does not terminate the process itself.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	driver string
}

// NewWriter wraps the given stream (normally the driver's stdout).
func NewWriter(w io.Writer, driverName string) *Writer {
	return &Writer{w: w, driver: driverName}
}

// Emit writes one complete element and flushes it before returning.
func (w *Writer) Emit(el Element) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := el.EncodeTo(w.w); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if f, ok := w.w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("%w: %v", ErrWriteFailed, err)
		}
	}
	observability.RecordElementEmitted(w.driver, el.Tag)
	return nil
}
