package indi

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/danmuck/indidrv/internal/observability"
)

// ProtocolVersion is the wire protocol version this runtime implements
// (spec.md §8 scenario 1: "client version 9.9 > 1.7").
const ProtocolVersion = "1.7"

// Callbacks are the host-provided driver entry points the dispatcher
// invokes once a peer-originated element has been classified, sanity
// checked, and decoded. These are out-of-scope external collaborators
// per spec.md §1; the runtime only defines their call shape.
type Callbacks interface {
	OnGetProperties(device string)
	OnNewNumber(device, name string, values []NamedValue)
	OnNewSwitch(device, name string, states []NamedState)
	OnNewText(device, name string, texts []NamedText)
	OnNewBlob(device, name string, blobs []NamedBlob)
	OnSnoop(el Element)
}

// Dispatcher is the inbound half of the runtime (spec.md §4.F): it
// classifies one parsed top-level element by tag, enforces the
// RO/undefined sanity checks against the Registry, decodes typed
// children, and invokes the matching Callbacks method. Grounded on
// internal/ghost/service.go's explicit-ordered-branch, structured-log
// control flow and directly transcribing dispatch() from
// original_source/libs/indibase/indidriver.c for exact semantics.
type Dispatcher struct {
	Registry *Registry
	Emitter  *Emitter
	Apply    *Applicators
	CB       Callbacks

	// Driver is the diagnostics name used in metrics labels and the
	// verbose wire echo (spec.md §4.H "me").
	Driver string
	// Verbose, if set, causes every inbound element to be echoed to
	// the diagnostic stream before dispatch (spec.md §4.H).
	Verbose bool
	// Diagnostics receives the verbose echo; defaults to os.Stderr.
	Diagnostics io.Writer

	// Fatal is invoked for spec.md §7 Fatal conditions (incompatible
	// getProperties version). It defaults to printing to stderr and
	// exiting the process with code 1, matching the original's
	// fprintf+exit(1); tests override it to avoid killing the test
	// binary.
	Fatal func(format string, args ...any)
}

// NewDispatcher wires a Dispatcher from its collaborators with the
// default (process-exiting) Fatal handler.
func NewDispatcher(reg *Registry, emit *Emitter, cb Callbacks, driver string) *Dispatcher {
	return &Dispatcher{
		Registry: reg,
		Emitter:  emit,
		Apply:    NewApplicators(emit),
		CB:       cb,
		Driver:   driver,
		Fatal:    defaultFatal,
	}
}

func defaultFatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// Dispatch classifies el and drives it through to completion. A nil
// error means the element was handled. A rejected, empty or unknown
// element yields a *DispatchError carrying the severity ladder of
// spec.md §7 (an unknown tag is the soft SeverityUnknownCommand case);
// a write error from echoing a definition for a scoped getProperties
// is returned as the Writer produced it.
func (d *Dispatcher) Dispatch(el Element) error {
	if d.Verbose {
		out := d.Diagnostics
		if out == nil {
			out = os.Stderr
		}
		fmt.Fprintln(out, el.String())
	}

	switch el.Tag {
	case "getProperties":
		return d.dispatchGetProperties(el)
	case "pingReply":
		d.dispatchPingReply(el)
		return nil
	case "setNumberVector", "setTextVector", "setLightVector", "setSwitchVector", "setBLOBVector",
		"defNumberVector", "defTextVector", "defLightVector", "defSwitchVector", "defBLOBVector",
		"message", "delProperty":
		d.CB.OnSnoop(el)
		observability.RecordDispatchResult(d.Driver, el.Tag, "ok")
		return nil
	case "newNumberVector", "newSwitchVector", "newTextVector", "newBLOBVector":
		return d.dispatchNew(el)
	default:
		observability.RecordDispatchResult(d.Driver, el.Tag, "unknown")
		return newDispatchError(SeverityUnknownCommand, "Unknown command: %s", el.Tag)
	}
}

func (d *Dispatcher) dispatchGetProperties(el Element) error {
	rawVersion, err := mustAttr(el, "version")
	if err != nil {
		observability.RecordDispatchResult(d.Driver, el.Tag, "fatal")
		d.Fatal("%s: getProperties missing version", d.Driver)
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rawVersion), 64)
	if err != nil {
		observability.RecordDispatchResult(d.Driver, el.Tag, "fatal")
		d.Fatal("%s: getProperties malformed version %q", d.Driver, rawVersion)
		return nil
	}
	ours, _ := strconv.ParseFloat(ProtocolVersion, 64)
	if v > ours {
		observability.RecordDispatchResult(d.Driver, el.Tag, "fatal")
		d.Fatal("%s: client version %s > %s", d.Driver, rawVersion, ProtocolVersion)
		return nil
	}

	device, hasDevice := el.Attr("device")
	name, hasName := el.Attr("name")

	if hasDevice && hasName {
		if entry, ok := d.Registry.Lookup(device, name); ok {
			observability.RecordDispatchResult(d.Driver, el.Tag, "ok")
			return d.echoDefinition(entry)
		}
		observability.RecordDispatchResult(d.Driver, el.Tag, "ok")
		return nil
	}

	var devicePtr string
	if hasDevice {
		devicePtr = device
	}
	d.CB.OnGetProperties(devicePtr)
	observability.RecordDispatchResult(d.Driver, el.Tag, "ok")
	return nil
}

// echoDefinition re-emits the def_<kind> for a single already-defined
// property so a late-joining peer can learn it (spec.md §4.F
// priority 1, scenario 2).
func (d *Dispatcher) echoDefinition(entry *Entry) error {
	switch entry.Kind {
	case KindNumber:
		return d.Emitter.DefNumber(entry.Number, "")
	case KindSwitch:
		return d.Emitter.DefSwitch(entry.Switch, "")
	case KindText:
		return d.Emitter.DefText(entry.Text, "")
	case KindBlob:
		return d.Emitter.DefBlob(entry.Blob, "")
	default:
		return nil
	}
}

func (d *Dispatcher) dispatchPingReply(el Element) {
	uid, ok := el.Attr("uid")
	if !ok {
		return
	}
	d.Emitter.observePingReply(uid)
}

func (d *Dispatcher) dispatchNew(el Element) error {
	device, err := mustAttr(el, "device")
	if err != nil {
		observability.RecordDispatchResult(d.Driver, el.Tag, "rejected")
		return newDispatchError(SeverityReject, "%v", err)
	}
	name, err := mustAttr(el, "name")
	if err != nil {
		observability.RecordDispatchResult(d.Driver, el.Tag, "rejected")
		return newDispatchError(SeverityReject, "%v", err)
	}

	entry, ok := d.Registry.Lookup(device, name)
	if !ok {
		observability.RecordDispatchResult(d.Driver, el.Tag, "rejected")
		return newDispatchError(SeverityReject, "Property %s is not defined in %s.", name, device)
	}
	if entry.Perm == PermReadOnly {
		observability.RecordDispatchResult(d.Driver, el.Tag, "rejected")
		return newDispatchError(SeverityReject, "Cannot set read-only property %s", name)
	}

	switch el.Tag {
	case "newNumberVector":
		return d.dispatchNewNumber(el, device, name)
	case "newSwitchVector":
		return d.dispatchNewSwitch(el, device, name)
	case "newTextVector":
		return d.dispatchNewText(el, device, name)
	case "newBLOBVector":
		return d.dispatchNewBlob(el, device, name)
	}
	return nil
}

func (d *Dispatcher) dispatchNewNumber(el Element, device, name string) error {
	var values []NamedValue
	for _, child := range el.Children {
		if child.Tag != "oneNumber" {
			continue
		}
		na, ok := child.Attr("name")
		if !ok {
			continue
		}
		v, err := ParseSexagesimal(child.Text)
		if err != nil {
			_ = d.Emitter.Message(device, "[ERROR] %s: Bad format %s", name, child.Text)
			continue
		}
		values = append(values, NamedValue{Name: na, Value: v})
	}
	if len(values) == 0 {
		observability.RecordDispatchResult(d.Driver, el.Tag, "empty_batch")
		_ = d.Emitter.Message(device, "[ERROR] %s: newNumberVector with no valid members", name)
		return newDispatchError(SeverityEmptyBatch, "newNumberVector with no valid members")
	}
	d.CB.OnNewNumber(device, name, values)
	observability.RecordDispatchResult(d.Driver, el.Tag, "ok")
	return nil
}

func (d *Dispatcher) dispatchNewSwitch(el Element, device, name string) error {
	var states []NamedState
	for _, child := range el.Children {
		if child.Tag != "oneSwitch" {
			continue
		}
		na, ok := child.Attr("name")
		if !ok {
			continue
		}
		body := strings.TrimSpace(child.Text)
		switch {
		case strings.HasPrefix(body, "On"):
			states = append(states, NamedState{Name: na, State: On})
		case body == "Off":
			states = append(states, NamedState{Name: na, State: Off})
		default:
			_ = d.Emitter.Message(device, "[ERROR] %s: must be On or Off: %s", name, body)
		}
	}
	if len(states) == 0 {
		observability.RecordDispatchResult(d.Driver, el.Tag, "empty_batch")
		_ = d.Emitter.Message(device, "[ERROR] %s: newSwitchVector with no valid members", name)
		return newDispatchError(SeverityEmptyBatch, "newSwitchVector with no valid members")
	}
	d.CB.OnNewSwitch(device, name, states)
	observability.RecordDispatchResult(d.Driver, el.Tag, "ok")
	return nil
}

func (d *Dispatcher) dispatchNewText(el Element, device, name string) error {
	var texts []NamedText
	for _, child := range el.Children {
		if child.Tag != "oneText" {
			continue
		}
		na, ok := child.Attr("name")
		if !ok {
			continue
		}
		texts = append(texts, NamedText{Name: na, Text: child.Text})
	}
	if len(texts) == 0 {
		observability.RecordDispatchResult(d.Driver, el.Tag, "empty_batch")
		_ = d.Emitter.Message(device, "[ERROR] %s: set with no valid members", name)
		return newDispatchError(SeverityEmptyBatch, "newTextVector with no valid members")
	}
	d.CB.OnNewText(device, name, texts)
	observability.RecordDispatchResult(d.Driver, el.Tag, "ok")
	return nil
}

func (d *Dispatcher) dispatchNewBlob(el Element, device, name string) error {
	var blobs []NamedBlob
	for _, child := range el.Children {
		if child.Tag != "oneBLOB" {
			continue
		}
		na, ok := child.Attr("name")
		if !ok {
			continue
		}
		format, ok := child.Attr("format")
		if !ok {
			continue
		}
		sizeRaw, ok := child.Attr("size")
		if !ok {
			continue
		}
		size, err := strconv.ParseInt(sizeRaw, 10, 64)
		if err != nil {
			_ = d.Emitter.Message(device, "[ERROR] %s: bad size for %s", name, na)
			continue
		}

		enclen := 0
		if raw, ok := child.Attr("enclen"); ok {
			if v, err := strconv.Atoi(raw); err == nil {
				enclen = v
			}
		}
		data, err := decodeBase64(child.Text, enclen)
		if err != nil {
			_ = d.Emitter.Message(device, "[ERROR] %s: bad BLOB encoding for %s", name, na)
			continue
		}
		blobs = append(blobs, NamedBlob{Name: na, Size: size, BlobLen: int64(len(data)), Data: data, Format: format})
	}
	if len(blobs) == 0 {
		observability.RecordDispatchResult(d.Driver, el.Tag, "empty_batch")
		_ = d.Emitter.Message(device, "[ERROR] %s: newBLOBVector with no valid members", name)
		return newDispatchError(SeverityEmptyBatch, "newBLOBVector with no valid members")
	}
	d.CB.OnNewBlob(device, name, blobs)
	observability.RecordDispatchResult(d.Driver, el.Tag, "ok")
	return nil
}
