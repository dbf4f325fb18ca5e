//go:build darwin

package cpu

import "runtime"

// Pin locks the calling goroutine to its OS thread. macOS offers no API to
// bind a thread to a core, so no core is chosen.
func Pin(workerID int) (release func(), err error) {
	runtime.LockOSThread()
	return runtime.UnlockOSThread, nil
}
