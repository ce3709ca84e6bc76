package capture

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/clockz"

	"chromestream/event"
	"chromestream/logger"
)

// recordingEngine captures submitted records in memory for assertions.
type recordingEngine struct {
	epoch time.Time

	mu     sync.Mutex
	events []event.Event
}

func newRecordingEngine(epoch time.Time) *recordingEngine {
	return &recordingEngine{epoch: epoch}
}

func (e *recordingEngine) Submit(ev event.Event) error {
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
	return nil
}

func (e *recordingEngine) Epoch() time.Time { return e.epoch }

func (e *recordingEngine) WrittenCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return uint64(len(e.events))
}

func (e *recordingEngine) snapshot() []event.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]event.Event, len(e.events))
	copy(out, e.events)
	return out
}

func TestSyncSpanLifecycle(t *testing.T) {
	logger.Init("error")
	clock := clockz.NewFakeClock()
	eng := newRecordingEngine(clock.Now())
	layer := New(eng, clock)

	layer.OnNewSpan(1, []event.Attr{
		{Key: "name", Value: "query"},
		{Key: "cat", Value: "db"},
	})
	clock.Advance(100 * time.Microsecond)
	layer.OnEnter(1)
	clock.Advance(250 * time.Microsecond)
	layer.OnClose(1)

	events := eng.snapshot()
	if len(events) != 2 {
		t.Fatalf("expected begin and end records, got %d", len(events))
	}
	begin, end := events[0], events[1]
	if begin.Ph != event.DurationBegin || end.Ph != event.DurationEnd {
		t.Fatalf("unexpected phases: %v, %v", begin.Ph, end.Ph)
	}
	if begin.Name != "query" || end.Name != "query" || begin.Cat != "db" || end.Cat != "db" {
		t.Fatalf("expected both boundaries to carry span fields: %+v, %+v", begin, end)
	}
	if begin.Ts != 100 || end.Ts != 350 {
		t.Fatalf("unexpected timestamps: %v, %v", begin.Ts, end.Ts)
	}
	if layer.OpenSpans() != 0 {
		t.Fatalf("expected span removed on close, %d open", layer.OpenSpans())
	}
}

func TestAsyncSpanLifecycle(t *testing.T) {
	logger.Init("error")
	clock := clockz.NewFakeClock()
	eng := newRecordingEngine(clock.Now())
	layer := New(eng, clock)

	id := event.DeriveID("async-op")
	layer.OnNewSpan(7, []event.Attr{
		{Key: "name", Value: "async-op"},
		{Key: "event", Value: event.DirectiveAsync},
		{Key: "id", Value: id},
	})
	layer.OnEnter(7)
	layer.OnExit(7)
	layer.OnEnter(7)
	layer.OnClose(7)

	events := eng.snapshot()
	if len(events) != 2 {
		t.Fatalf("expected one begin and one end despite re-entry, got %d", len(events))
	}
	if events[0].Ph != event.AsyncStart || events[1].Ph != event.AsyncEnd {
		t.Fatalf("unexpected phases: %v, %v", events[0].Ph, events[1].Ph)
	}
	if events[0].ID != id || events[1].ID != id {
		t.Fatalf("expected shared correlation id on both boundaries: %+v, %+v", events[0], events[1])
	}
}

func TestCloseWithoutEnterProducesNothing(t *testing.T) {
	logger.Init("error")
	clock := clockz.NewFakeClock()
	eng := newRecordingEngine(clock.Now())
	layer := New(eng, clock)

	layer.OnNewSpan(3, []event.Attr{{Key: "name", Value: "never-entered"}})
	layer.OnClose(3)

	if n := len(eng.snapshot()); n != 0 {
		t.Fatalf("expected no records for a span closed without entry, got %d", n)
	}
	if layer.OpenSpans() != 0 {
		t.Fatal("expected span removed even without entry")
	}
}

func TestUnknownSpanIDPanics(t *testing.T) {
	logger.Init("error")
	clock := clockz.NewFakeClock()
	layer := New(newRecordingEngine(clock.Now()), clock)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unknown span id")
		}
	}()
	layer.OnEnter(999)
}

func TestInvalidFieldOnNewSpanKeepsSpanTracked(t *testing.T) {
	logger.Init("error")
	clock := clockz.NewFakeClock()
	eng := newRecordingEngine(clock.Now())
	layer := New(eng, clock)

	layer.OnNewSpan(5, []event.Attr{
		{Key: "name", Value: "bad-ts"},
		{Key: "ts", Value: "not-a-number"},
	})
	if layer.OpenSpans() != 1 {
		t.Fatal("expected span tracked despite invalid field")
	}

	layer.OnEnter(5)
	layer.OnClose(5)
	if n := len(eng.snapshot()); n != 2 {
		t.Fatalf("expected lifecycle to proceed, got %d records", n)
	}
}

func TestOnEventDefaultsToInstant(t *testing.T) {
	logger.Init("error")
	clock := clockz.NewFakeClock()
	eng := newRecordingEngine(clock.Now())
	layer := New(eng, clock)

	layer.OnEvent([]event.Attr{{Key: "name", Value: "tick"}})
	layer.OnEvent([]event.Attr{
		{Key: "name", Value: "mark"},
		{Key: "ph", Value: "Mark"},
	})

	events := eng.snapshot()
	if len(events) != 2 {
		t.Fatalf("expected 2 records, got %d", len(events))
	}
	if events[0].Ph != event.Instant {
		t.Fatalf("expected Instant default, got %v", events[0].Ph)
	}
	if events[1].Ph != event.Mark {
		t.Fatalf("expected explicit Mark phase, got %v", events[1].Ph)
	}
}

func TestOnEventInvalidFieldDropsRecord(t *testing.T) {
	logger.Init("error")
	clock := clockz.NewFakeClock()
	eng := newRecordingEngine(clock.Now())
	layer := New(eng, clock)

	layer.OnEvent([]event.Attr{{Key: "ph", Value: "Bogus"}})
	if n := len(eng.snapshot()); n != 0 {
		t.Fatalf("expected invalid record dropped, got %d", n)
	}

	layer.OnEvent([]event.Attr{{Key: "name", Value: "ok"}})
	if n := len(eng.snapshot()); n != 1 {
		t.Fatalf("expected later records unaffected, got %d", n)
	}
}

func TestConcurrentSpanFanIn(t *testing.T) {
	logger.Init("error")
	clock := clockz.NewFakeClock()
	eng := newRecordingEngine(clock.Now())
	layer := New(eng, clock)

	const workers = 8
	const spansPerWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for s := 0; s < spansPerWorker; s++ {
				id := uint64(worker)<<32 | uint64(s)
				layer.OnNewSpan(id, []event.Attr{
					{Key: "name", Value: fmt.Sprintf("w%d-s%d", worker, s)},
				})
				layer.OnEnter(id)
				layer.OnExit(id)
				layer.OnClose(id)
			}
		}(w)
	}
	wg.Wait()

	if n := len(eng.snapshot()); n != workers*spansPerWorker*2 {
		t.Fatalf("expected %d records, got %d", workers*spansPerWorker*2, n)
	}
	if layer.OpenSpans() != 0 {
		t.Fatalf("expected no open spans, got %d", layer.OpenSpans())
	}
}
