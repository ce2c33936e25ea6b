// Package snoop is a tiny in-memory publish/subscribe relay used by a
// driver binary to fan inbound snooped elements (spec.md §4.F
// priority 2) out to per-device handlers. The wire runtime in
// internal/indi does not know which devices a driver cares about; it
// forwards every snoop-shaped element unchanged via on_snoop. This
// package gives that callback a concrete, useful thing to do,
// grounded on internal/plugins/registry.go's map+RWMutex registry
// shape generalized from "one entry per plugin" to "one subscriber
// list per device".
package snoop

import (
	"sync"

	"github.com/danmuck/indidrv/internal/indi"
)

// Handler receives one forwarded snoop element for the device it
// subscribed to.
type Handler func(el indi.Element)

// Relay fans snooped elements out to per-device subscribers.
type Relay struct {
	mu   sync.RWMutex
	subs map[string][]Handler
}

// NewRelay returns an empty relay.
func NewRelay() *Relay {
	return &Relay{subs: make(map[string][]Handler)}
}

// Subscribe registers handler to be called for every snooped element
// whose device attribute matches device.
func (r *Relay) Subscribe(device string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[device] = append(r.subs[device], handler)
}

// Dispatch is an indi.Callbacks.OnSnoop implementation: it reads the
// element's device attribute and invokes every handler subscribed to
// that device. Elements with no device attribute (e.g. a bare
// <message>) reach no one, matching the runtime's "we don't know
// which devices this driver snoops" stance (spec.md §4.F).
func (r *Relay) Dispatch(el indi.Element) {
	device, ok := el.Attr("device")
	if !ok {
		return
	}
	r.mu.RLock()
	handlers := append([]Handler(nil), r.subs[device]...)
	r.mu.RUnlock()
	for _, h := range handlers {
		h(el)
	}
}

// Subscribers reports how many handlers are registered for device,
// used by the admin surface's plugin status.
func (r *Relay) Subscribers(device string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[device])
}
