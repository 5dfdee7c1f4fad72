package config

import "runtime"

// defaultWorkerProcesses is the default worker fan-out: CPU count, minus
// one when there are at least 4, leaving a core free for the OS and I/O.
func defaultWorkerProcesses() int {
	n := runtime.NumCPU()
	if n >= 4 {
		return n - 1
	}
	return n
}
