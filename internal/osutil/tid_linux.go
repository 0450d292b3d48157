//go:build linux

package osutil

import "golang.org/x/sys/unix"

// ThreadID returns the kernel id of the calling OS thread. The goroutine
// must be locked to its thread for the value to stay meaningful.
func ThreadID() uint64 {
	return uint64(unix.Gettid())
}
