package osutil

import (
	"runtime"
	"testing"
)

func TestThreadIDStableWhileLocked(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	a, b := ThreadID(), ThreadID()
	if a == 0 {
		t.Fatal("Expected non-zero thread id")
	}
	if a != b {
		t.Errorf("Expected stable thread id, got %d then %d", a, b)
	}
}
