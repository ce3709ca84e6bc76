package stream

import (
	"os"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/zoobzio/clockz"

	"chromestream/event"
	"chromestream/logger"
)

// emitProcessMetadata writes the Chrome metadata records viewers use to
// label the process and main thread rows. They ride the normal submission
// path so the separator bookkeeping stays in one place.
func emitProcessMetadata(eng Engine, epoch time.Time, clock clockz.Clock) {
	name := processName()

	ev := event.NewBuilder(epoch, clock).
		Name("process_name").
		Cat("__metadata").
		Ph(event.Metadata).
		Ts(0).
		Arg("name", name).
		Build()
	if err := eng.Submit(ev); err != nil {
		logger.Warnf("Failed to emit process metadata: %v", err)
		return
	}

	ev = event.NewBuilder(epoch, clock).
		Name("thread_name").
		Cat("__metadata").
		Ph(event.Metadata).
		Ts(0).
		Arg("name", "main").
		Build()
	if err := eng.Submit(ev); err != nil {
		logger.Warnf("Failed to emit thread metadata: %v", err)
	}
}

func processName() string {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err == nil {
		if name, nerr := proc.Name(); nerr == nil && name != "" {
			return name
		}
	}
	return filepath.Base(os.Args[0])
}
