package stream

import (
	"bufio"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"chromestream/event"
	"chromestream/logger"
)

// BatchEngine is the background-writer design. Producers serialize records
// into a shared pending buffer; when it exceeds the batch size the buffer is
// handed to a single background goroutine over a channel. The background
// goroutine owns the sink exclusively, which removes write interleaving
// races and keeps producers off the I/O path entirely.
type BatchEngine struct {
	epoch     time.Time
	batchSize int
	mirror    *Mirror

	mu      sync.Mutex
	pending [][]byte
	closed  bool

	batches chan [][]byte
	done    chan struct{}

	// ioErr is owned by the background goroutine; readers wait on done.
	ioErr error

	w         *bufio.Writer
	written   atomic.Uint64
	dropped   atomic.Uint64
	warnLimit *rate.Limiter
}

func newBatchEngine(factory Factory, epoch time.Time, batchSize int, mirror *Mirror) (*BatchEngine, error) {
	e := &BatchEngine{
		epoch:     epoch,
		batchSize: batchSize,
		mirror:    mirror,
		batches:   make(chan [][]byte, 8),
		done:      make(chan struct{}),
		w:         bufio.NewWriterSize(factory(), 1024*1024),
		warnLimit: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
	// The opening bracket belongs to sink attachment, not to the first
	// batch: an immediately closed or interrupted stream still shows it.
	if _, err := e.w.Write([]byte("[\n")); err != nil {
		return nil, err
	}
	if err := e.w.Flush(); err != nil {
		return nil, err
	}
	go e.run()
	return e, nil
}

// Submit serializes the record and appends it to the pending buffer. The
// hand-off to the background goroutine is non-blocking: if the channel is
// momentarily full the batch simply stays pending and rides along with a
// later hand-off, so no record is lost and no producer waits on I/O.
func (e *BatchEngine) Submit(ev event.Event) error {
	data, err := jsonMarshal(&ev)
	if err != nil {
		return err
	}
	e.mirror.Emit(ev)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.pending = append(e.pending, data)
	if len(e.pending) >= e.batchSize {
		batch := e.pending
		e.pending = nil
		select {
		case e.batches <- batch:
		default:
			e.pending = batch
		}
	}
	e.mu.Unlock()
	return nil
}

// Epoch implements Engine.
func (e *BatchEngine) Epoch() time.Time {
	return e.epoch
}

// WrittenCount implements Engine.
func (e *BatchEngine) WrittenCount() uint64 {
	return e.written.Load()
}

// DroppedCount reports records discarded after a sink failure made the
// stream unrecoverable.
func (e *BatchEngine) DroppedCount() uint64 {
	return e.dropped.Load()
}

// run is the background writer. It writes each record prefixed by ",\n"
// except the first, flushing per batch, and finally the closing bracket once
// the channel is closed. On a sink error it keeps draining so producers and
// shutdown never stall, but writes nothing more: a partially written stream
// is the one unrecoverable state.
func (e *BatchEngine) run() {
	defer close(e.done)

	first := true
	for batch := range e.batches {
		if e.ioErr != nil {
			e.countDropped(len(batch))
			continue
		}
		for i, data := range batch {
			if !first && !e.writeRaw([]byte(",\n")) {
				e.countDropped(len(batch) - i)
				break
			}
			if !e.writeRaw(data) {
				e.countDropped(len(batch) - i)
				break
			}
			first = false
			e.written.Add(1)
		}
		if e.ioErr == nil {
			if err := e.w.Flush(); err != nil {
				e.fail(err)
			}
		}
	}
	if e.ioErr != nil {
		return
	}
	if first {
		e.writeRaw([]byte("]\n"))
	} else {
		e.writeRaw([]byte("\n]\n"))
	}
	if e.ioErr == nil {
		if err := e.w.Flush(); err != nil {
			e.fail(err)
		}
	}
}

func (e *BatchEngine) writeRaw(p []byte) bool {
	if _, err := e.w.Write(p); err != nil {
		e.fail(err)
		return false
	}
	return true
}

func (e *BatchEngine) fail(err error) {
	if e.ioErr == nil {
		e.ioErr = err
	}
	if e.warnLimit.Allow() {
		logger.Errorf("Trace sink write failed, stream is unrecoverable: %v", err)
	}
}

func (e *BatchEngine) countDropped(n int) {
	if n <= 0 {
		return
	}
	e.dropped.Add(uint64(n))
	if e.warnLimit.Allow() {
		logger.Warnf("Dropped %d trace records after sink failure", n)
	}
}

func (e *BatchEngine) drain() {
	for batch := range e.batches {
		e.countDropped(len(batch))
	}
}

// close delivers the terminal batch, closes the channel and blocks until the
// background goroutine has written the closing bracket and flushed.
func (e *BatchEngine) close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.done
		return e.ioErr
	}
	e.closed = true
	final := e.pending
	e.pending = nil
	e.mu.Unlock()

	if len(final) > 0 {
		e.batches <- final
	}
	close(e.batches)
	<-e.done
	return e.ioErr
}
