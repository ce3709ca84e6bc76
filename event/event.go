// Package event holds the data model for one Chrome Trace Event Format
// record and the collector that builds records from host-supplied
// attributes.
package event

import (
	"os"
	"time"

	"github.com/zoobzio/clockz"
)

const (
	// DefaultName labels records whose call site set no name field.
	DefaultName = "DefaultEventName"
	// DefaultCategory labels records whose call site set no cat field.
	DefaultCategory = "DefaultCategory"
)

// processID is process-wide state with a trivial lifecycle: computed once,
// read-only afterwards.
var processID = uint64(os.Getpid())

// Event is a single trace record. Immutable once built; the zero value is
// not meaningful, use a Builder.
//
// Field order matches the serialized key order consumed by trace viewers.
type Event struct {
	Name string            `json:"name"`
	Cat  string            `json:"cat"`
	Ph   Phase             `json:"ph"`
	Ts   float64           `json:"ts"`
	Dur  *float64          `json:"dur,omitempty"`
	Tts  *float64          `json:"tts,omitempty"`
	ID   string            `json:"id,omitempty"`
	Pid  uint64            `json:"pid"`
	Tid  uint64            `json:"tid"`
	Args map[string]string `json:"args,omitempty"`
}

// Builder accumulates fields for one Event. A Builder may be built more than
// once; each Build stamps a fresh timestamp unless one was set explicitly,
// which is what lets a span's stored fields produce both its begin and end
// records.
//
// Builders are not safe for concurrent use.
type Builder struct {
	start time.Time
	clock clockz.Clock

	name    string
	cat     string
	ph      Phase
	ts      float64
	dur     *float64
	tts     *float64
	id      string
	pid     uint64
	tid     uint64
	args    map[string]string
	tsSet   bool
	pidSet  bool
	tidSet  bool
	nameSet bool
	catSet  bool
}

// NewBuilder returns a builder whose automatic timestamps are microseconds
// since start, read from clock.
func NewBuilder(start time.Time, clock clockz.Clock) *Builder {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &Builder{start: start, clock: clock, ph: Instant}
}

func (b *Builder) Name(name string) *Builder {
	b.name = name
	b.nameSet = true
	return b
}

func (b *Builder) Cat(cat string) *Builder {
	b.cat = cat
	b.catSet = true
	return b
}

func (b *Builder) Ph(ph Phase) *Builder {
	b.ph = ph
	return b
}

// Ts overrides the automatic timestamp, in microseconds since start.
func (b *Builder) Ts(ts float64) *Builder {
	b.ts = ts
	b.tsSet = true
	return b
}

func (b *Builder) Dur(dur float64) *Builder {
	b.dur = &dur
	return b
}

func (b *Builder) Tts(tts float64) *Builder {
	b.tts = &tts
	return b
}

func (b *Builder) ID(id string) *Builder {
	b.id = id
	return b
}

func (b *Builder) Pid(pid uint64) *Builder {
	b.pid = pid
	b.pidSet = true
	return b
}

func (b *Builder) Tid(tid uint64) *Builder {
	b.tid = tid
	b.tidSet = true
	return b
}

// Arg records one free-form key/value argument.
func (b *Builder) Arg(key, value string) *Builder {
	if b.args == nil {
		b.args = make(map[string]string)
	}
	b.args[key] = value
	return b
}

// Build assembles the record, filling defaults for anything unset: name,
// category, Instant phase, a timestamp read now, the OS process id and the
// calling thread's id.
func (b *Builder) Build() Event {
	ev := Event{
		Name: b.name,
		Cat:  b.cat,
		Ph:   b.ph,
		Ts:   b.ts,
		Dur:  b.dur,
		Tts:  b.tts,
		ID:   b.id,
		Pid:  b.pid,
		Tid:  b.tid,
	}
	if !b.nameSet {
		ev.Name = DefaultName
	}
	if !b.catSet {
		ev.Cat = DefaultCategory
	}
	if !b.tsSet {
		ev.Ts = float64(b.clock.Now().Sub(b.start).Nanoseconds()) / 1000.0
	}
	if !b.pidSet {
		ev.Pid = processID
	}
	if !b.tidSet {
		ev.Tid = currentTID()
	}
	if len(b.args) > 0 {
		args := make(map[string]string, len(b.args))
		for k, v := range b.args {
			args[k] = v
		}
		ev.Args = args
	}
	return ev
}
