package event

import "fmt"

// Phase is the Chrome Trace Event Format tag identifying what kind of record
// an event is. It serializes to the format's single- or two-character code.
type Phase int

const (
	DurationBegin Phase = iota
	DurationEnd
	Complete
	Instant
	Counter
	AsyncStart
	AsyncInstant
	AsyncEnd
	FlowStart
	FlowStep
	FlowEnd
	Sample
	ObjectCreated
	ObjectSnapshot
	ObjectDestroyed
	Metadata
	MemoryDumpGlobal
	MemoryDumpProcess
	Mark
	ClockSync
	ContextBegin
	ContextEnd
)

var phaseNames = [...]string{
	DurationBegin:     "DurationBegin",
	DurationEnd:       "DurationEnd",
	Complete:          "Complete",
	Instant:           "Instant",
	Counter:           "Counter",
	AsyncStart:        "AsyncStart",
	AsyncInstant:      "AsyncInstant",
	AsyncEnd:          "AsyncEnd",
	FlowStart:         "FlowStart",
	FlowStep:          "FlowStep",
	FlowEnd:           "FlowEnd",
	Sample:            "Sample",
	ObjectCreated:     "ObjectCreated",
	ObjectSnapshot:    "ObjectSnapshot",
	ObjectDestroyed:   "ObjectDestroyed",
	Metadata:          "Metadata",
	MemoryDumpGlobal:  "MemoryDumpGlobal",
	MemoryDumpProcess: "MemoryDumpProcess",
	Mark:              "Mark",
	ClockSync:         "ClockSync",
	ContextBegin:      "ContextBegin",
	ContextEnd:        "ContextEnd",
}

// Sample is "P" per the Trace Event Format document, not the lowercase "p"
// some emitters use.
var phaseCodes = [...]string{
	DurationBegin:     "B",
	DurationEnd:       "E",
	Complete:          "X",
	Instant:           "i",
	Counter:           "C",
	AsyncStart:        "b",
	AsyncInstant:      "n",
	AsyncEnd:          "e",
	FlowStart:         "s",
	FlowStep:          "t",
	FlowEnd:           "f",
	Sample:            "P",
	ObjectCreated:     "N",
	ObjectSnapshot:    "O",
	ObjectDestroyed:   "D",
	Metadata:          "M",
	MemoryDumpGlobal:  "V",
	MemoryDumpProcess: "v",
	Mark:              "R",
	ClockSync:         "c",
	ContextBegin:      "(",
	ContextEnd:        ")",
}

// String returns the phase name, e.g. "DurationBegin".
func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Code returns the wire code, e.g. "B".
func (p Phase) Code() string {
	if p < 0 || int(p) >= len(phaseCodes) {
		return ""
	}
	return phaseCodes[p]
}

// ParsePhase resolves a phase by its name, e.g. "AsyncStart".
func ParsePhase(name string) (Phase, bool) {
	for p, n := range phaseNames {
		if n == name {
			return Phase(p), true
		}
	}
	return 0, false
}

// ParsePhaseCode resolves a phase by its wire code, e.g. "b". The mapping is
// bijective with Code.
func ParsePhaseCode(code string) (Phase, bool) {
	for p, c := range phaseCodes {
		if c == code {
			return Phase(p), true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler so phases serialize as their
// wire code inside JSON records.
func (p Phase) MarshalText() ([]byte, error) {
	code := p.Code()
	if code == "" {
		return nil, fmt.Errorf("event: unknown phase %d", int(p))
	}
	return []byte(code), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	parsed, ok := ParsePhaseCode(string(text))
	if !ok {
		return fmt.Errorf("event: unknown phase code %q", string(text))
	}
	*p = parsed
	return nil
}
