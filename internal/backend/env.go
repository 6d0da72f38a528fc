package backend

// Env is the set of named bindings visible to one worker.
//
// Reads fall through a worker-private overlay to the base bindings. For
// fork pools the base is the caller's state, shared by reference with
// every sibling. For isolated pools the base is a private snapshot built
// from explicit exports. Writes always land in the overlay, so a
// mutation made by one worker is never observed by its siblings or by
// the caller.
type Env struct {
	base    map[string]any
	overlay map[string]any
}

func newEnv(base map[string]any) *Env {
	if base == nil {
		base = make(map[string]any)
	}
	return &Env{base: base}
}

// Lookup returns the binding for name and whether it exists.
func (e *Env) Lookup(name string) (any, bool) {
	if e.overlay != nil {
		if v, ok := e.overlay[name]; ok {
			return v, true
		}
	}
	v, ok := e.base[name]
	return v, ok
}

// Require returns the binding for name, or a *MissingBindingError if the
// name was never made visible to this worker.
func (e *Env) Require(name string) (any, error) {
	if v, ok := e.Lookup(name); ok {
		return v, nil
	}
	return nil, &MissingBindingError{Name: name}
}

// Set writes a worker-private binding. The write shadows the base value
// for this worker only.
func (e *Env) Set(name string, value any) {
	if e.overlay == nil {
		e.overlay = make(map[string]any)
	}
	e.overlay[name] = value
}

// bind installs an exported binding into the worker's base set.
// Only called by the pool between runs, never while the worker is busy.
func (e *Env) bind(name string, value any) {
	e.base[name] = value
}

func copyBindings(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for name, v := range src {
		dst[name] = v
	}
	return dst
}
