// Package stream turns fully built trace events into a valid Chrome Trace
// Event Format JSON array on a byte sink, under concurrent submission from
// any number of producer goroutines.
//
// Two engines satisfy the same contract. The inline engine defers exactly
// one record in a capacity-one slot so the comma separator can be decided
// without lookahead; producers write their own evicted record. The batch
// engine accumulates records and hands batches to one background goroutine
// that owns the sink, so producers never touch I/O.
//
// At every point between the opening bracket and the closing bracket the
// sink holds a syntactically valid prefix of a JSON array of objects.
package stream

import (
	"errors"
	"sync"
	"time"

	"github.com/zoobzio/clockz"

	"chromestream/event"
	"chromestream/logger"
)

// DefaultBatchSize is the pending-record threshold that triggers a batch
// hand-off in the batch engine.
const DefaultBatchSize = 10000

// ErrClosed is returned by Submit after the shutdown guard has been
// released. Shutdown is total and irreversible.
var ErrClosed = errors.New("stream: engine is closed")

// Engine accepts fully built records from any goroutine.
type Engine interface {
	// Submit hands one record to the engine. In the inline engine an I/O
	// failure surfaces here, synchronously, on the producer that happened to
	// evict a record; in the batch engine Submit never performs I/O and the
	// failure surfaces on the background goroutine and at Close.
	Submit(ev event.Event) error

	// Epoch is the process-local start instant all timestamps are relative
	// to, fixed at engine construction.
	Epoch() time.Time

	// WrittenCount reports how many records have reached the sink, for
	// progress diagnostics.
	WrittenCount() uint64
}

// Mode selects the emission engine design.
type Mode int

const (
	// ModeInline is the deferred single-slot design: bounded to one pending
	// record, minimal latency to the sink, producers perform the writes.
	ModeInline Mode = iota
	// ModeBatch is the background-writer design: producers never block on
	// I/O, records reach the sink in batches.
	ModeBatch
)

// Options configures engine construction. The zero value is a usable inline
// engine on the real clock.
type Options struct {
	Mode      Mode
	BatchSize int

	// Clock is injectable for deterministic tests.
	Clock clockz.Clock

	// ProcessMetadata emits Chrome metadata records (process_name,
	// thread_name) right after the opening bracket.
	ProcessMetadata bool

	// Mirror optionally copies every submitted record to an OTLP/HTTP log
	// endpoint.
	Mirror *MirrorOptions
}

// engine is the half of the contract shared by both designs that the Guard
// drives at shutdown.
type engine interface {
	Engine
	close() error
}

// New attaches an engine to the sink produced by factory and returns it with
// the scoped shutdown guard. The opening bracket is on the sink before New
// returns in either mode; releasing the guard
// drains all pending records, writes the closing bracket and blocks until
// the sink is complete and parseable.
func New(factory Factory, opts Options) (Engine, *Guard, error) {
	clock := opts.Clock
	if clock == nil {
		clock = clockz.RealClock
	}
	epoch := clock.Now()

	mirror, err := newMirror(opts.Mirror)
	if err != nil {
		logger.Warnf("OTLP mirror disabled: %v", err)
		mirror = nil
	}

	var eng engine
	switch opts.Mode {
	case ModeBatch:
		size := opts.BatchSize
		if size <= 0 {
			size = DefaultBatchSize
		}
		batch, berr := newBatchEngine(factory, epoch, size, mirror)
		if berr != nil {
			mirror.Shutdown()
			return nil, nil, berr
		}
		eng = batch
	default:
		inline, ierr := newInlineEngine(NewSink(factory), epoch, mirror)
		if ierr != nil {
			mirror.Shutdown()
			return nil, nil, ierr
		}
		eng = inline
	}

	if opts.ProcessMetadata {
		emitProcessMetadata(eng, epoch, clock)
	}

	guard := &Guard{closeFn: func() error {
		cerr := eng.close()
		mirror.Shutdown()
		return cerr
	}}
	return eng, guard, nil
}

// Guard is the scoped shutdown handle for an engine. Releasing it is the
// only way to finish the stream.
type Guard struct {
	closeFn func() error
	once    sync.Once
	err     error
}

// Close drains buffered records, writes the closing bracket and blocks until
// the sink is flushed. Safe to call more than once; later calls return the
// first result.
func (g *Guard) Close() error {
	g.once.Do(func() {
		g.err = g.closeFn()
	})
	return g.err
}
