//go:build windows

package cpu

import (
	"fmt"
	"runtime"
	"syscall"
)

var (
	kernel32              = syscall.NewLazyDLL("kernel32.dll")
	setThreadAffinityMask = kernel32.NewProc("SetThreadAffinityMask")
	getCurrentThread      = kernel32.NewProc("GetCurrentThread")
)

// Pin locks the calling goroutine to its OS thread and sets that thread's
// affinity mask to a single core chosen from workerID. release restores the
// previous mask before unlocking the thread.
func Pin(workerID int) (release func(), err error) {
	runtime.LockOSThread()

	core := coreFor(workerID)
	handle, _, _ := getCurrentThread.Call()

	prev, _, callErr := setThreadAffinityMask.Call(handle, uintptr(1)<<core)
	if prev == 0 {
		// Nothing changed, so the thread can go back as it is.
		return runtime.UnlockOSThread, fmt.Errorf("pin worker %d to core %d: %w", workerID, core, callErr)
	}
	release = func() {
		if restored, _, _ := setThreadAffinityMask.Call(handle, prev); restored != 0 {
			runtime.UnlockOSThread()
		}
	}
	return release, nil
}
