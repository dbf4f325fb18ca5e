//go:build linux

package cpu

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Pin locks the calling goroutine to its OS thread and restricts that thread
// to one core chosen from workerID. The returned release func must be called
// from the same goroutine; it is non-nil even when err is not.
//
// release puts the thread's previous affinity mask back before unlocking it.
// If the mask cannot be restored the thread stays locked and exits with the
// goroutine, so no other goroutine ever runs on a pinned thread.
func Pin(workerID int) (release func(), err error) {
	runtime.LockOSThread()

	var prev unix.CPUSet
	if err := unix.SchedGetaffinity(0, &prev); err != nil { // 0 = calling thread
		return func() {}, fmt.Errorf("pin worker %d: read affinity: %w", workerID, err)
	}
	release = func() {
		if unix.SchedSetaffinity(0, &prev) == nil {
			runtime.UnlockOSThread()
		}
	}

	core := coreFor(workerID)

	var mask unix.CPUSet
	mask.Zero()
	mask.Set(core)

	if err := unix.SchedSetaffinity(0, &mask); err != nil {
		return release, fmt.Errorf("pin worker %d to core %d: %w", workerID, core, err)
	}
	return release, nil
}
