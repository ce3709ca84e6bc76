package stream

import (
	"sync"
	"sync/atomic"
	"time"

	"chromestream/event"
)

// InlineEngine is the deferred single-slot design. Each submission parks the
// freshly serialized record in a capacity-one slot and takes back whatever
// was held before; the evicted record is the one whose comma decision is now
// known (it cannot be last), so the producer writes it followed by ",\n".
// Memory stays bounded to one pending record at any throughput, at the cost
// of one record's extra latency.
//
// The slot, the closed flag and the eviction write share one short-held
// mutex. Swap and write must be a single step with respect to close's drain:
// otherwise a submission racing shutdown could park a record after the slot
// was drained (acknowledged but never written), or land its eviction write
// after the closing bracket.
type InlineEngine struct {
	sink    *Sink
	epoch   time.Time
	written atomic.Uint64
	mirror  *Mirror

	mu     sync.Mutex
	slot   []byte
	closed bool
}

func newInlineEngine(sink *Sink, epoch time.Time, mirror *Mirror) (*InlineEngine, error) {
	if _, err := sink.Write([]byte("[\n")); err != nil {
		return nil, err
	}
	return &InlineEngine{sink: sink, epoch: epoch, mirror: mirror}, nil
}

// Submit serializes the record and parks it in the slot. If a previous
// record was evicted, it is written to the sink on this goroutine; a sink
// failure surfaces here.
func (e *InlineEngine) Submit(ev event.Event) error {
	data, err := jsonMarshal(&ev)
	if err != nil {
		return err
	}
	e.mirror.Emit(ev)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	prev := e.slot
	e.slot = data
	if prev == nil {
		return nil
	}
	return e.writeRecord(prev, true)
}

// Epoch implements Engine.
func (e *InlineEngine) Epoch() time.Time {
	return e.epoch
}

// WrittenCount implements Engine.
func (e *InlineEngine) WrittenCount() uint64 {
	return e.written.Load()
}

func (e *InlineEngine) writeRecord(data []byte, comma bool) error {
	buf := make([]byte, 0, len(data)+2)
	buf = append(buf, data...)
	if comma {
		buf = append(buf, ',')
	}
	buf = append(buf, '\n')
	if _, err := e.sink.Write(buf); err != nil {
		return err
	}
	e.written.Add(1)
	return nil
}

// close drains the slot and writes the closing bracket under the same lock
// Submit holds, so every submission that was acknowledged before the flag
// flipped is on the sink when close returns. Whatever the slot holds is the
// last record and gets no trailing comma.
func (e *InlineEngine) close() error {
	e.mu.Lock()
	e.closed = true
	prev := e.slot
	e.slot = nil
	if prev != nil {
		if err := e.writeRecord(prev, false); err != nil {
			e.mu.Unlock()
			return err
		}
	}
	if _, err := e.sink.Write([]byte("]\n")); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()
	return e.sink.Flush()
}
