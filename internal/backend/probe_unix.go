//go:build unix

package backend

// forkSupported reports whether the platform can duplicate the calling
// process's address space for fork workers.
func forkSupported() bool {
	return true
}
