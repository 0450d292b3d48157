//go:build !linux

package osutil

import "os"

// ThreadID falls back to the process id where per-thread ids are not
// exposed.
func ThreadID() uint64 {
	return uint64(os.Getpid())
}
