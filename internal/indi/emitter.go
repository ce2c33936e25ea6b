package indi

import (
	"fmt"
	"time"
)

// Emitter is the outbound half of the runtime (SPEC_FULL.md §4.C): one
// method per protocol operation, each building exactly one Element and
// handing it to the Writer. def_* operations also register the vector
// into the Registry so later peer-originated updates can be sanity
// checked; def_light deliberately does not (spec.md §9).
type Emitter struct {
	w    *Writer
	reg  *Registry
	blob *blobGate
}

// NewEmitter builds an Emitter bound to a Writer and Registry. The
// blobGate starts with no ping outstanding.
func NewEmitter(w *Writer, reg *Registry) *Emitter {
	return &Emitter{w: w, reg: reg, blob: newBlobGate()}
}

// SetPingTimeout bounds how long SetBlob blocks on the prior
// pingReply. Zero (the default) preserves the original's
// hang-forever behaviour; see SPEC_FULL.md Open Question 2.
func (e *Emitter) SetPingTimeout(d time.Duration) {
	e.blob.setTimeout(d)
}

func formatMessage(fmtStr string, args []any) (string, bool) {
	if fmtStr == "" {
		return "", false
	}
	return fmt.Sprintf(fmtStr, args...), true
}

func withMessage(el Element, device string, fmtStr string, args []any) Element {
	if msg, ok := formatMessage(fmtStr, args); ok {
		el = el.WithAttr("message", msg)
	}
	return el
}

// DefNumber emits <defNumberVector> and registers vp into the registry.
func (e *Emitter) DefNumber(vp *NumberVector, fmtStr string, args ...any) error {
	el := numberVectorElement("defNumberVector", vp)
	el = withMessage(el, vp.Device, fmtStr, args)
	if err := e.w.Emit(el); err != nil {
		return err
	}
	e.reg.registerNumber(vp)
	return nil
}

// DefSwitch emits <defSwitchVector> and registers vp into the registry.
func (e *Emitter) DefSwitch(vp *SwitchVector, fmtStr string, args ...any) error {
	el := switchVectorElement("defSwitchVector", vp)
	el = withMessage(el, vp.Device, fmtStr, args)
	if err := e.w.Emit(el); err != nil {
		return err
	}
	e.reg.registerSwitch(vp)
	return nil
}

// DefText emits <defTextVector> and registers vp into the registry.
func (e *Emitter) DefText(vp *TextVector, fmtStr string, args ...any) error {
	el := textVectorElement("defTextVector", vp)
	el = withMessage(el, vp.Device, fmtStr, args)
	if err := e.w.Emit(el); err != nil {
		return err
	}
	e.reg.registerText(vp)
	return nil
}

// DefBlob emits <defBLOBVector> and registers vp into the registry. Per
// spec.md §4.C the def element carries metadata only, never the BLOB
// bytes themselves.
func (e *Emitter) DefBlob(vp *BlobVector, fmtStr string, args ...any) error {
	el := blobVectorDefElement(vp)
	el = withMessage(el, vp.Device, fmtStr, args)
	if err := e.w.Emit(el); err != nil {
		return err
	}
	e.reg.registerBlob(vp)
	return nil
}

// DefLight emits <defLightVector>. Lights are output-only and are
// deliberately never registered into the sanity cache (spec.md §9).
func (e *Emitter) DefLight(vp *LightVector, fmtStr string, args ...any) error {
	el := lightVectorElement("defLightVector", vp)
	el = withMessage(el, vp.Device, fmtStr, args)
	return e.w.Emit(el)
}

// SetNumber emits <setNumberVector> with the vector's current values.
func (e *Emitter) SetNumber(vp *NumberVector, fmtStr string, args ...any) error {
	el := numberVectorElement("setNumberVector", vp)
	el = withMessage(el, vp.Device, fmtStr, args)
	return e.w.Emit(el)
}

// SetSwitch emits <setSwitchVector> with the vector's current states.
func (e *Emitter) SetSwitch(vp *SwitchVector, fmtStr string, args ...any) error {
	el := switchVectorElement("setSwitchVector", vp)
	el = withMessage(el, vp.Device, fmtStr, args)
	return e.w.Emit(el)
}

// SetText emits <setTextVector> with the vector's current values.
func (e *Emitter) SetText(vp *TextVector, fmtStr string, args ...any) error {
	el := textVectorElement("setTextVector", vp)
	el = withMessage(el, vp.Device, fmtStr, args)
	return e.w.Emit(el)
}

// SetLight emits <setLightVector> with the vector's current states.
func (e *Emitter) SetLight(vp *LightVector, fmtStr string, args ...any) error {
	el := lightVectorElement("setLightVector", vp)
	el = withMessage(el, vp.Device, fmtStr, args)
	return e.w.Emit(el)
}

// SetBlob wraps <setBLOBVector> emission in the ping/pingReply
// backpressure scheme of spec.md §4.D: it blocks until any previously
// outstanding ping is acknowledged, emits the vector, then emits a
// fresh <pingRequest> and records it as pending.
func (e *Emitter) SetBlob(vp *BlobVector, fmtStr string, args ...any) error {
	return e.blob.send(e.w, vp, fmtStr, args)
}

// observePingReply is invoked by the Dispatcher when it sees an
// inbound <pingReply uid="..."/> element; it resolves the matching
// waiter if any.
func (e *Emitter) observePingReply(uid string) {
	e.blob.resolve(uid)
}

// UpdateMinMax emits <setNumberVector> echoing min/max/step for every
// member, used when a driver changes a number's bounds without
// changing its value (spec.md §4.C).
func (e *Emitter) UpdateMinMax(vp *NumberVector) error {
	vp.mu.RLock()
	defer vp.mu.RUnlock()

	el := NewElement("setNumberVector").
		WithAttr("device", vp.Device).
		WithAttr("name", vp.Name).
		WithAttr("state", vp.State.String())
	for _, m := range vp.Elements {
		one := NewElement("oneNumber").
			WithAttr("name", m.Name).
			WithAttr("min", FormatFloat(m.Min)).
			WithAttr("max", FormatFloat(m.Max)).
			WithAttr("step", FormatFloat(m.Step))
		one.Text = FormatFloat(m.Value)
		el = el.WithChild(one)
	}
	return e.w.Emit(el)
}

// Message emits a standalone <message> element, optionally scoped to a
// device.
func (e *Emitter) Message(device string, fmtStr string, args ...any) error {
	el := NewElement("message")
	if device != "" {
		el = el.WithAttr("device", device)
	}
	if msg, ok := formatMessage(fmtStr, args); ok {
		el = el.WithAttr("message", msg)
	}
	return e.w.Emit(el)
}

// DeleteProperty emits <delProperty>. An empty name deletes the whole
// device from the peer's view.
func (e *Emitter) DeleteProperty(device, name, fmtStr string, args ...any) error {
	el := NewElement("delProperty").WithAttr("device", device)
	if name != "" {
		el = el.WithAttr("name", name)
	}
	el = withMessage(el, device, fmtStr, args)
	return e.w.Emit(el)
}

// SnoopRequest emits <getProperties> scoped to the given device/property
// so the peer starts forwarding that device's traffic to us.
func (e *Emitter) SnoopRequest(device, property string) error {
	if device == "" {
		return nil
	}
	el := NewElement("getProperties").
		WithAttr("version", ProtocolVersion).
		WithAttr("device", device)
	if property != "" {
		el = el.WithAttr("name", property)
	}
	return e.w.Emit(el)
}

// BlobHandling is the policy argument to SnoopBlobPolicy.
type BlobHandling int

const (
	BlobNever BlobHandling = iota
	BlobAlso
	BlobOnly
)

func (b BlobHandling) String() string {
	switch b {
	case BlobNever:
		return "Never"
	case BlobAlso:
		return "Also"
	case BlobOnly:
		return "Only"
	default:
		return "Never"
	}
}

// SnoopBlobPolicy emits <enableBLOB> telling the peer whether to
// forward BLOBs for a snooped device/property. Silently ignored (by
// the peer) if that device is not already being snooped.
func (e *Emitter) SnoopBlobPolicy(device, property string, policy BlobHandling) error {
	if device == "" {
		return nil
	}
	el := NewElement("enableBLOB").WithAttr("device", device)
	if property != "" {
		el = el.WithAttr("name", property)
	}
	el.Text = policy.String()
	return e.w.Emit(el)
}

func numberVectorElement(tag string, vp *NumberVector) Element {
	vp.mu.RLock()
	defer vp.mu.RUnlock()

	el := NewElement(tag).
		WithAttr("device", vp.Device).
		WithAttr("name", vp.Name).
		WithAttr("state", vp.State.String())
	if tag == "defNumberVector" {
		el = el.WithAttr("label", vp.Label).WithAttr("perm", vp.Perm.String())
	}
	for _, m := range vp.Elements {
		one := NewElement("oneNumber").WithAttr("name", m.Name)
		if tag == "defNumberVector" {
			one = one.
				WithAttr("label", m.Label).
				WithAttr("format", m.Format).
				WithAttr("min", FormatFloat(m.Min)).
				WithAttr("max", FormatFloat(m.Max)).
				WithAttr("step", FormatFloat(m.Step))
		}
		one.Text = FormatFloat(m.Value)
		el = el.WithChild(one)
	}
	return el
}

func switchVectorElement(tag string, vp *SwitchVector) Element {
	vp.mu.RLock()
	defer vp.mu.RUnlock()

	el := NewElement(tag).
		WithAttr("device", vp.Device).
		WithAttr("name", vp.Name).
		WithAttr("state", vp.State.String())
	if tag == "defSwitchVector" {
		el = el.WithAttr("label", vp.Label).
			WithAttr("perm", vp.Perm.String()).
			WithAttr("rule", vp.Rule.String())
	}
	for _, m := range vp.Elements {
		one := NewElement("oneSwitch").WithAttr("name", m.Name)
		if tag == "defSwitchVector" {
			one = one.WithAttr("label", m.Label)
		}
		one.Text = m.State.String()
		el = el.WithChild(one)
	}
	return el
}

func textVectorElement(tag string, vp *TextVector) Element {
	vp.mu.RLock()
	defer vp.mu.RUnlock()

	el := NewElement(tag).
		WithAttr("device", vp.Device).
		WithAttr("name", vp.Name).
		WithAttr("state", vp.State.String())
	if tag == "defTextVector" {
		el = el.WithAttr("label", vp.Label).WithAttr("perm", vp.Perm.String())
	}
	for _, m := range vp.Elements {
		one := NewElement("oneText").WithAttr("name", m.Name)
		if tag == "defTextVector" {
			one = one.WithAttr("label", m.Label)
		}
		one.Text = m.Value
		el = el.WithChild(one)
	}
	return el
}

func lightVectorElement(tag string, vp *LightVector) Element {
	vp.mu.RLock()
	defer vp.mu.RUnlock()

	el := NewElement(tag).
		WithAttr("device", vp.Device).
		WithAttr("name", vp.Name).
		WithAttr("state", vp.State.String())
	if tag == "defLightVector" {
		el = el.WithAttr("label", vp.Label)
	}
	for _, m := range vp.Elements {
		one := NewElement("oneLight").WithAttr("name", m.Name)
		if tag == "defLightVector" {
			one = one.WithAttr("label", m.Label)
		}
		one.Text = m.State.String()
		el = el.WithChild(one)
	}
	return el
}

// blobVectorDefElement and blobVectorSetElement are split because def
// carries only each member's name and label while set carries each
// member's size, format and base64 payload (spec.md §4.C/§6).
func blobVectorDefElement(vp *BlobVector) Element {
	vp.mu.RLock()
	defer vp.mu.RUnlock()

	el := NewElement("defBLOBVector").
		WithAttr("device", vp.Device).
		WithAttr("name", vp.Name).
		WithAttr("label", vp.Label).
		WithAttr("perm", vp.Perm.String()).
		WithAttr("state", vp.State.String())
	for _, m := range vp.Elements {
		one := NewElement("defBLOB").
			WithAttr("name", m.Name).
			WithAttr("label", m.Label)
		el = el.WithChild(one)
	}
	return el
}

func blobVectorSetElement(vp *BlobVector) Element {
	vp.mu.RLock()
	defer vp.mu.RUnlock()

	el := NewElement("setBLOBVector").
		WithAttr("device", vp.Device).
		WithAttr("name", vp.Name).
		WithAttr("state", vp.State.String())
	for _, m := range vp.Elements {
		one := NewElement("oneBLOB").
			WithAttr("name", m.Name).
			WithAttr("size", fmt.Sprintf("%d", m.Size)).
			WithAttr("format", m.Format)
		one.Text = encodeBase64(m.Data)
		el = el.WithChild(one)
	}
	return el
}
