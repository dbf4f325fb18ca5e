// Package cpu pins worker goroutines to OS threads and, where the platform
// allows it, to individual CPU cores.
package cpu

import "runtime"

// Count returns the number of logical CPUs usable by the process.
func Count() int {
	return runtime.NumCPU()
}

// coreFor maps any worker index onto a valid core index.
func coreFor(workerID int) int {
	n := Count()
	if workerID < 0 {
		workerID = -workerID
	}
	return workerID % n
}
