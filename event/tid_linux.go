//go:build linux

package event

import "golang.org/x/sys/unix"

// currentTID returns the OS thread id of the calling goroutine's current
// thread. Goroutines migrate between threads, so two records from the same
// goroutine may carry different tids; viewers group by tid regardless.
func currentTID() uint64 {
	return uint64(unix.Gettid())
}
