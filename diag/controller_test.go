package diag

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fakeProfileWriter struct {
	content string
}

func (f fakeProfileWriter) WriteTo(w io.Writer, debug int) error {
	_, err := io.WriteString(w, f.content)
	return err
}

func TestRunProbeEmitsStallArtifacts(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	written := uint64(42)
	dir := t.TempDir()

	controller := NewController(Options{
		StallThreshold: 2 * time.Second,
		Dir:            dir,
		WrittenCountFn: func() uint64 { return written },
		NowFn:          func() time.Time { return now },
		ProfileLookupFn: func(name string) profileWriter {
			return fakeProfileWriter{content: "stall-profile"}
		},
	})
	controller.lastWritten = written
	controller.lastProgressAt = now

	controller.runProbe(now.Add(3 * time.Second))

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	var foundStall, foundProfile bool
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "tracegen-stalled-writer-") && strings.HasSuffix(name, ".json") {
			foundStall = true
		}
		if strings.HasPrefix(name, "tracegen-goroutine-profile-") && strings.HasSuffix(name, ".pprof") {
			foundProfile = true
		}
	}
	if !foundStall {
		t.Fatal("expected stalled-writer artifact")
	}
	if !foundProfile {
		t.Fatal("expected goroutine profile artifact")
	}
}

func TestRunProbeResetsOnProgress(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	written := uint64(1)
	dir := t.TempDir()

	controller := NewController(Options{
		StallThreshold: 2 * time.Second,
		Dir:            dir,
		WrittenCountFn: func() uint64 { return written },
		NowFn:          func() time.Time { return now },
	})
	controller.lastWritten = 0
	controller.lastProgressAt = now.Add(-10 * time.Second)

	// The counter moved, so no artifacts should be written no matter how
	// long ago the last progress was recorded.
	controller.runProbe(now)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no artifacts after progress, got %d entries", len(entries))
	}
	if controller.lastWritten != written {
		t.Fatalf("expected lastWritten updated to %d, got %d", written, controller.lastWritten)
	}
}

func TestWriteProfileAvailableAndUnavailable(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	controller := NewController(Options{
		Dir: dir,
		NowFn: func() time.Time {
			return now
		},
		ProfileLookupFn: func(name string) profileWriter {
			if name == "goroutine" {
				return fakeProfileWriter{content: "goroutine-profile"}
			}
			return nil
		},
	})

	path, err := controller.writeProfile("goroutine", 0)
	if err != nil {
		t.Fatalf("write available profile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read written profile: %v", err)
	}
	if string(data) != "goroutine-profile" {
		t.Fatalf("unexpected profile content: %q", string(data))
	}

	if _, err := controller.writeProfile("heap-missing", 0); err == nil {
		t.Fatal("expected unavailable profile to return error")
	}
}

func TestCloseWritesGoroutineLeakProfileWhenEnabled(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	controller := NewController(Options{
		Dir:           dir,
		GoroutineLeak: true,
		NowFn: func() time.Time {
			return now
		},
		ProfileLookupFn: func(name string) profileWriter {
			if name == "goroutine" {
				return fakeProfileWriter{content: "leak-profile"}
			}
			return nil
		},
	})

	controller.Close()

	matches, err := filepath.Glob(filepath.Join(dir, "tracegen-goroutine-profile-*.pprof"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 goroutine profile file, got %d", len(matches))
	}
}
