// Package soundfile implements the soundfile type registry (spec §4.C),
// the per-format Handler interface (§4.D), and the built-in WAVE/AIFF/CAF/
// AU/RAW handlers. Grounded on d_soundfile.c's sf_types/soundfile_addtype/
// soundfile_firsttype/soundfile_nexttype and the corresponding
// soundfile_<fmt>_setup() registration calls.
package soundfile

import (
	"strings"
	"sync"

	"github.com/drgolem/go-soundfile/sferr"
)

// TypeEntry is an immutable registry slot: the handler plus the derived
// display metadata d_soundfile.c accumulates at registration time.
type TypeEntry struct {
	Handler Handler
}

// Name returns the handler's registered name.
func (t *TypeEntry) Name() string { return t.Handler.Name() }

// Registry is the bounded, insertion-ordered, append-only set of
// TypeEntry described in spec §4.C. It is built once at process init and
// never mutated afterward (spec §9, Global registry) — there is no
// exported mutation API beyond Add and SetRaw, which Default calls
// while building the registry.
type Registry struct {
	mu    sync.RWMutex
	types []*TypeEntry
	raw   *TypeEntry

	minHeaderSize int
	typeArgs      string // "-wave -aiff -caf -au", built incrementally
}

// NewRegistry returns an empty registry. Call Add to register built-in or
// custom handlers in order; the first one added becomes the default.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers a handler, appending it to the ordered set. Returns
// ErrTooManyTypes once MaxTypes entries are registered, matching
// soundfile_addtype()'s SFMAXTYPES ceiling.
func (r *Registry) Add(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.types) >= MaxTypes {
		return sferr.ErrTooManyTypes
	}
	r.types = append(r.types, &TypeEntry{Handler: h})
	if h.MinHeaderBytes() > r.minHeaderSize {
		r.minHeaderSize = h.MinHeaderBytes()
	}
	if r.typeArgs != "" {
		r.typeArgs += " "
	}
	r.typeArgs += "-" + h.Name()
	return nil
}

// SetRaw installs the singleton RAW handler kept outside the ordered set,
// matching sf_rawtype.
func (r *Registry) SetRaw(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raw = &TypeEntry{Handler: h}
}

// Raw returns the RAW type entry.
func (r *Registry) Raw() *TypeEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.raw
}

// MinHeaderSize returns the largest MinHeaderBytes among registered
// types — the number of bytes Open must read before probing.
func (r *Registry) MinHeaderSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.minHeaderSize
}

// TypeArgs returns the dash-prefixed, space-separated type name list used
// in usage messages, e.g. "-wave -aiff -caf -au".
func (r *Registry) TypeArgs() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.typeArgs
}

// First returns the first registered type (the default), or nil if none
// are registered.
func (r *Registry) First() *TypeEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.types) == 0 {
		return nil
	}
	return r.types[0]
}

// All returns the registered types in registration order. The returned
// slice must not be mutated by the caller.
func (r *Registry) All() []*TypeEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*TypeEntry, len(r.types))
	copy(out, r.types)
	return out
}

// ByName looks up a registered type by its exact name (without the
// leading dash), or the RAW type if name == "raw".
func (r *Registry) ByName(name string) *TypeEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.raw != nil && name == r.raw.Name() {
		return r.raw
	}
	for _, t := range r.types {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

// ByExtension returns the first registered type whose handler claims the
// given filename's extension.
func (r *Registry) ByExtension(filename string) *TypeEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.types {
		if t.Handler.HasExtension(filename) {
			return t
		}
	}
	return nil
}

// Probe runs each registered handler's Probe against prefix in
// registration order and returns the first match, matching
// open_soundfile_via_fd()'s "first successful probe wins" rule.
func (r *Registry) Probe(prefix []byte) *TypeEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.types {
		if t.Handler.Probe(prefix) {
			return t
		}
	}
	return nil
}

// Default returns the process-wide registry populated with the built-in
// WAVE, AIFF, CAF, and AU handlers (WAVE first, so it is the default) plus
// the RAW singleton, matching soundfile_type_setup()'s registration order.
// It is built once and is safe for concurrent read-only use thereafter.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		_ = defaultRegistry.Add(NewWaveHandler())
		_ = defaultRegistry.Add(NewAIFFHandler())
		_ = defaultRegistry.Add(NewCAFHandler())
		_ = defaultRegistry.Add(NewAUHandler())
		defaultRegistry.SetRaw(NewRawHandler())
	})
	return defaultRegistry
}

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// normalizeExt is a small shared helper format handlers use for
// case-insensitive suffix matching.
func normalizeExt(filename string) string {
	return strings.ToLower(filename)
}
