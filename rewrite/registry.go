package rewrite

import "github.com/chazu/exprcache/expr"

// Registry maps a parameter key to the placeholder created for it during one
// duplication pass, together with the Path at which the key was first met.
//
// Keys are parameter names, CaptureKey for promoted capture classes, or
// ReferenceKey for promoted by-reference constants.
// A key resolves to exactly one placeholder per pass, so repeated references
// to the same parameter share one node in the rewritten tree.
type Registry struct {
	entries map[string]*Entry
	order   []string
}

// Entry is one registered placeholder.
type Entry struct {
	Key     string
	Param   *expr.Parameter
	Path    expr.Path
	Capture bool // promoted from a constant
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Lookup returns the entry registered under key.
func (r *Registry) Lookup(key string) (*Entry, bool) {
	e, ok := r.entries[key]
	return e, ok
}

// Path returns the Path recorded for key.
func (r *Registry) Path(key string) (expr.Path, bool) {
	if e, ok := r.entries[key]; ok {
		return e.Path, true
	}
	return expr.Path{}, false
}

// Len returns the number of registered keys.
func (r *Registry) Len() int { return len(r.order) }

// Entries returns all entries in discovery order.
func (r *Registry) Entries() []*Entry {
	out := make([]*Entry, len(r.order))
	for i, k := range r.order {
		out[i] = r.entries[k]
	}
	return out
}

// Captures returns the promoted capture entries in discovery order.
func (r *Registry) Captures() []*Entry {
	var out []*Entry
	for _, k := range r.order {
		if e := r.entries[k]; e.Capture {
			out = append(out, e)
		}
	}
	return out
}

// resolve returns the placeholder for key, creating and registering it at
// path on first sight.
func (r *Registry) resolve(key string, path expr.Path, capture bool, newParam func() *expr.Parameter) *expr.Parameter {
	if e, ok := r.entries[key]; ok {
		return e.Param
	}
	e := &Entry{Key: key, Param: newParam(), Path: path, Capture: capture}
	r.entries[key] = e
	r.order = append(r.order, key)
	return e.Param
}
