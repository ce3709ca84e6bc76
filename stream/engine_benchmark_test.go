package stream

import (
	"io"
	"testing"

	"chromestream/event"
	"chromestream/logger"
)

func benchmarkSubmit(b *testing.B, mode Mode) {
	logger.Init("error")
	eng, guard, err := New(WriterFactory(io.Discard), Options{Mode: mode})
	if err != nil {
		b.Fatal(err)
	}
	ev := event.NewBuilder(eng.Epoch(), nil).
		Name("benchmark").
		Cat("bench").
		Arg("key", "value").
		Build()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := eng.Submit(ev); err != nil {
			b.Fatal(err)
		}
	}
	b.StopTimer()
	if err := guard.Close(); err != nil {
		b.Fatal(err)
	}
}

func BenchmarkInlineSubmit(b *testing.B) {
	benchmarkSubmit(b, ModeInline)
}

func BenchmarkBatchSubmit(b *testing.B) {
	benchmarkSubmit(b, ModeBatch)
}

func BenchmarkBuildAndSubmit(b *testing.B) {
	logger.Init("error")
	eng, guard, err := New(WriterFactory(io.Discard), Options{Mode: ModeBatch})
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ev := event.NewBuilder(eng.Epoch(), nil).
			Name("benchmark").
			Cat("bench").
			Build()
		if err := eng.Submit(ev); err != nil {
			b.Fatal(err)
		}
	}
	b.StopTimer()
	if err := guard.Close(); err != nil {
		b.Fatal(err)
	}
}
