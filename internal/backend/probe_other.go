//go:build !unix

package backend

// forkSupported reports whether the platform can duplicate the calling
// process's address space for fork workers. Windows and the wasm ports
// have no fork equivalent; callers must fall back explicitly.
func forkSupported() bool {
	return false
}
