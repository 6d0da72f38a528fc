//go:build !linux

package parmap

import "runtime"

func availableParallelism() int {
	return runtime.NumCPU()
}
