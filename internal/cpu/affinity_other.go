//go:build !linux && !darwin && !windows

package cpu

import "runtime"

// Pin only locks the goroutine to its OS thread on this platform.
func Pin(workerID int) (release func(), err error) {
	runtime.LockOSThread()
	return runtime.UnlockOSThread, nil
}
