package event

import (
	"fmt"
	"strconv"
	"strings"
)

// Attr is one (key, value) pair recorded by the host framework, value
// already string-rendered.
type Attr struct {
	Key   string
	Value string
}

// InvalidFieldValueError reports a well-known field whose raw text failed to
// parse as its expected type. It marks a bad call site, not a runtime fault:
// building that one record is aborted and the rest of the stream is
// unaffected.
type InvalidFieldValueError struct {
	Field string
	Raw   string
}

func (e *InvalidFieldValueError) Error() string {
	return fmt.Sprintf("event: invalid value %q for field %q", e.Raw, e.Field)
}

// Collect applies host-recorded attributes to a builder. Recognized keys
// (name, cat, id, ph, ts, dur, tts, pid, tid) populate their typed field;
// the key "event" is a side-channel directive returned to the caller and not
// stored; everything else lands in args verbatim.
func Collect(b *Builder, attrs []Attr) (directive string, err error) {
	for _, attr := range attrs {
		value := strings.Trim(attr.Value, `"`)
		switch attr.Key {
		case "name":
			b.Name(value)
		case "cat":
			b.Cat(value)
		case "id":
			b.ID(value)
		case "ph":
			ph, ok := ParsePhase(value)
			if !ok {
				return "", &InvalidFieldValueError{Field: "ph", Raw: value}
			}
			b.Ph(ph)
		case "ts":
			ts, perr := strconv.ParseFloat(value, 64)
			if perr != nil {
				return "", &InvalidFieldValueError{Field: "ts", Raw: value}
			}
			b.Ts(ts)
		case "dur":
			dur, perr := strconv.ParseFloat(value, 64)
			if perr != nil {
				return "", &InvalidFieldValueError{Field: "dur", Raw: value}
			}
			b.Dur(dur)
		case "tts":
			tts, perr := strconv.ParseFloat(value, 64)
			if perr != nil {
				return "", &InvalidFieldValueError{Field: "tts", Raw: value}
			}
			b.Tts(tts)
		case "pid":
			pid, perr := strconv.ParseUint(value, 10, 64)
			if perr != nil {
				return "", &InvalidFieldValueError{Field: "pid", Raw: value}
			}
			b.Pid(pid)
		case "tid":
			tid, perr := strconv.ParseUint(value, 10, 64)
			if perr != nil {
				return "", &InvalidFieldValueError{Field: "tid", Raw: value}
			}
			b.Tid(tid)
		case "event":
			directive = value
		default:
			b.Arg(attr.Key, value)
		}
	}
	return directive, nil
}

// DirectiveAsync marks the enclosing span as asynchronous when supplied as
// the value of the "event" attribute.
const DirectiveAsync = "async"
