package indi

import "sync"

type regKey struct {
	Device string
	Name   string
}

// Entry is the sanity-cache record the dispatcher consults before
// honoring a peer-originated update: the permission it was defined
// with, its kind, and a typed back-reference to the driver-owned
// vector. Grounded on internal/plugins/registry.go's map+RWMutex
// registry and internal/seeds/registry.go's stable-key, insert-once
// discipline (SPEC_FULL.md §4.B).
//
// Entries are heap-allocated individually and the registry never
// replaces or moves an existing *Entry in place; a lookup may safely
// be read after the registry's mutex is released (spec.md §5, §9).
type Entry struct {
	Device string
	Name   string
	Perm   Permission
	Kind   Kind

	Number *NumberVector
	Switch *SwitchVector
	Text   *TextVector
	Blob   *BlobVector
}

// Registry is the process-wide sanity cache: every property this
// driver has defined so far, keyed by (device, name).
type Registry struct {
	mu    sync.RWMutex
	items map[regKey]*Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[regKey]*Entry)}
}

// Lookup returns the registered entry for (device, name), if any. The
// returned pointer remains valid for the registry's lifetime.
func (r *Registry) Lookup(device, name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.items[regKey{device, name}]
	return e, ok
}

// registerOnce inserts a new entry unless (device, name) is already
// present, in which case the existing entry is left untouched and
// returned (idempotent registration, spec.md §4.B/§8 invariant 7).
func (r *Registry) registerOnce(e *Entry) *Entry {
	key := regKey{e.Device, e.Name}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.items[key]; ok {
		return existing
	}
	r.items[key] = e
	return e
}

func (r *Registry) registerNumber(vp *NumberVector) *Entry {
	return r.registerOnce(&Entry{Device: vp.Device, Name: vp.Name, Perm: vp.Perm, Kind: KindNumber, Number: vp})
}

func (r *Registry) registerSwitch(vp *SwitchVector) *Entry {
	return r.registerOnce(&Entry{Device: vp.Device, Name: vp.Name, Perm: vp.Perm, Kind: KindSwitch, Switch: vp})
}

func (r *Registry) registerText(vp *TextVector) *Entry {
	return r.registerOnce(&Entry{Device: vp.Device, Name: vp.Name, Perm: vp.Perm, Kind: KindText, Text: vp})
}

func (r *Registry) registerBlob(vp *BlobVector) *Entry {
	return r.registerOnce(&Entry{Device: vp.Device, Name: vp.Name, Perm: vp.Perm, Kind: KindBlob, Blob: vp})
}

// Note: there is deliberately no registerLight. def_light never writes
// into the sanity cache (spec.md §9 Open Question, preserved as
// documented behavior): a peer update targeting a light name is
// rejected as "not defined", which is the correct outcome since lights
// are always driver-output-only.
