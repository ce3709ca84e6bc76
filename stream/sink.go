package stream

import (
	"io"
	"sync"
)

// Factory produces a byte-writable handle on demand. Handles produced by the
// same factory are expected to converge on one underlying destination (one
// file, one socket), so the engine may call it once and keep the handle.
type Factory func() io.Writer

// WriterFactory wraps an already-open writer as a Factory.
func WriterFactory(w io.Writer) Factory {
	return func() io.Writer { return w }
}

// Sink serializes writes from any number of producer goroutines onto one
// handle. Used by the inline engine, where each producer writes its own
// evicted record; the batch engine owns its handle from a single goroutine
// and does not need this.
type Sink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSink materializes one handle from the factory.
func NewSink(factory Factory) *Sink {
	return &Sink{w: factory()}
}

// Write forwards to the underlying handle under the sink lock. A short write
// is reported as an error by the underlying writer contract.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// Flush is a no-op: the inline engine writes through unbuffered, deferring
// any buffering decision to the handle itself.
func (s *Sink) Flush() error {
	return nil
}
