// Package capture is the lifecycle surface a host tracing framework drives.
// It tracks live spans across creation, repeated entry/exit and close, and
// turns the boundaries into trace records submitted to a stream engine.
package capture

import (
	"time"

	"github.com/zoobzio/clockz"

	"chromestream/event"
	"chromestream/logger"
	"chromestream/stream"
)

// Layer translates host callbacks into span-table mutations and engine
// submissions. Safe for concurrent use by any number of producer
// goroutines; operations on the same span id are expected to be serialized
// by the host, as its own API already guarantees one owner at a time.
type Layer struct {
	engine stream.Engine
	clock  clockz.Clock
	epoch  time.Time
	table  *spanTable
}

// New wires a layer to an engine. A nil clock means the real clock; tests
// inject a fake one for deterministic timestamps.
func New(engine stream.Engine, clock clockz.Clock) *Layer {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &Layer{
		engine: engine,
		clock:  clock,
		epoch:  engine.Epoch(),
		table:  newSpanTable(),
	}
}

// OnNewSpan records a span's fields once, at creation. A malformed
// well-known field is a call-site bug: it is logged loudly and the affected
// fields are dropped, but the span itself stays tracked so the rest of its
// lifecycle cannot trip the unknown-id invariant.
func (l *Layer) OnNewSpan(id uint64, attrs []event.Attr) {
	b := event.NewBuilder(l.epoch, l.clock)
	directive, err := event.Collect(b, attrs)
	if err != nil {
		logger.Errorf("Invalid field on span %d: %v", id, err)
	}
	l.table.insert(id, &spanState{
		builder: b,
		async:   directive == event.DirectiveAsync,
	})
}

// OnEnter stamps the span's begin boundary the first time only. Re-entry
// before close is a no-op, which is what lets an async span be entered and
// exited across suspensions without duplicating its begin record.
func (l *Layer) OnEnter(id uint64) {
	st := l.table.lookup(id)
	if st.entered {
		return
	}
	st.entered = true

	ph := event.DurationBegin
	if st.async {
		ph = event.AsyncStart
	}
	ev := st.builder.Ph(ph).Build()
	if err := l.engine.Submit(ev); err != nil {
		logger.Errorf("Failed to submit begin record for span %d: %v", id, err)
	}
}

// OnExit is a no-op: a span may exit and re-enter any number of times
// before it closes.
func (l *Layer) OnExit(id uint64) {
	l.table.lookup(id)
}

// OnClose removes the span and emits its end boundary. A span that closes
// without ever being entered has no begin timestamp to pair with, so it
// produces no timing output; that is an instrumentation anomaly worth a
// diagnostic, not a crash.
func (l *Layer) OnClose(id uint64) {
	st := l.table.remove(id)
	if !st.entered {
		logger.Warnf("Span %d closed without ever being entered, no timing recorded", id)
		return
	}

	ph := event.DurationEnd
	if st.async {
		ph = event.AsyncEnd
	}
	ev := st.builder.Ph(ph).Build()
	if err := l.engine.Submit(ev); err != nil {
		logger.Errorf("Failed to submit end record for span %d: %v", id, err)
	}
}

// OnEvent records a free event. The phase defaults to Instant unless the
// call site set an explicit ph field. An invalid field aborts this one
// record and nothing else.
func (l *Layer) OnEvent(attrs []event.Attr) {
	b := event.NewBuilder(l.epoch, l.clock)
	if _, err := event.Collect(b, attrs); err != nil {
		logger.Errorf("Invalid field on event: %v", err)
		return
	}
	if err := l.engine.Submit(b.Build()); err != nil {
		logger.Errorf("Failed to submit event record: %v", err)
	}
}

// OpenSpans reports how many spans are currently tracked, for diagnostics.
func (l *Layer) OpenSpans() int {
	return l.table.len()
}
