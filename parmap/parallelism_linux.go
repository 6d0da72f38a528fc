//go:build linux

package parmap

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// availableParallelism prefers the scheduling affinity mask over the
// raw CPU count: in cgroup-pinned containers the two differ, and the
// mask is what the process can actually use.
func availableParallelism() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err == nil {
		if n := set.Count(); n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}
