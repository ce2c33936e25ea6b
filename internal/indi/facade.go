package indi

import (
	"encoding/xml"
	"errors"
	"io"

	"github.com/danmuck/indidrv/internal/logx"
)

// Driver is the protocol façade of spec.md §4.H: it owns the Writer,
// Registry, Emitter, Applicators and Dispatcher for one driver
// process and exposes every ID*/IU*-equivalent operation as a plain
// method, the way internal/ghost/service.go's Service wires Server,
// seeds, and Mirage session state behind NewService()/Run().
//
// Me and Verbose are the process-scoped fields spec.md §4.H
// describes: Me names the executable for diagnostics, Verbose echoes
// every inbound element before dispatch.
type Driver struct {
	Me      string
	Verbose bool

	Writer   *Writer
	Registry *Registry
	Emitter  *Emitter
	Apply    *Applicators
	Dispatch *Dispatcher
	Config   *Config
}

// NewDriver wires a Driver's collaborators around out, the driver's
// stdout, with cb as the callback set the Dispatcher invokes for
// peer-originated writes.
func NewDriver(me string, out io.Writer, cb Callbacks) *Driver {
	reg := NewRegistry()
	w := NewWriter(out, me)
	emit := NewEmitter(w, reg)
	emit.blob.driver = me
	disp := NewDispatcher(reg, emit, cb, me)

	d := &Driver{
		Me:       me,
		Writer:   w,
		Registry: reg,
		Emitter:  emit,
		Apply:    disp.Apply,
		Dispatch: disp,
	}
	d.Config = NewConfig(disp)
	return d
}

// Serve reads one top-level XML element at a time from in and drives
// it through Dispatch until in is exhausted or returns an error other
// than io.EOF. This is the driver's main read loop: in practice
// os.Stdin, the peer's half of the byte stream (spec.md §1/§6).
func (d *Driver) Serve(in io.Reader) error {
	if d.Verbose {
		d.Dispatch.Verbose = true
	}
	dec := xml.NewDecoder(in)
	for {
		el, err := ReadElement(dec)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := d.Dispatch.Dispatch(el); err != nil {
			var de *DispatchError
			if errors.As(err, &de) {
				logx.Debugf("%s: dispatch %s -> %s (%s)", d.Me, el.Tag, de.Severity, de.Error())
				continue
			}
			logx.Warnf("%s: dispatch %s -> %v", d.Me, el.Tag, err)
		}
	}
}

// --- def_* -----------------------------------------------------------------

func (d *Driver) DefNumber(vp *NumberVector, fmtStr string, args ...any) error {
	return d.Emitter.DefNumber(vp, fmtStr, args...)
}

func (d *Driver) DefSwitch(vp *SwitchVector, fmtStr string, args ...any) error {
	return d.Emitter.DefSwitch(vp, fmtStr, args...)
}

func (d *Driver) DefText(vp *TextVector, fmtStr string, args ...any) error {
	return d.Emitter.DefText(vp, fmtStr, args...)
}

func (d *Driver) DefBlob(vp *BlobVector, fmtStr string, args ...any) error {
	return d.Emitter.DefBlob(vp, fmtStr, args...)
}

func (d *Driver) DefLight(vp *LightVector, fmtStr string, args ...any) error {
	return d.Emitter.DefLight(vp, fmtStr, args...)
}

// --- set_* -----------------------------------------------------------------

func (d *Driver) SetNumber(vp *NumberVector, fmtStr string, args ...any) error {
	return d.Emitter.SetNumber(vp, fmtStr, args...)
}

func (d *Driver) SetSwitch(vp *SwitchVector, fmtStr string, args ...any) error {
	return d.Emitter.SetSwitch(vp, fmtStr, args...)
}

func (d *Driver) SetText(vp *TextVector, fmtStr string, args ...any) error {
	return d.Emitter.SetText(vp, fmtStr, args...)
}

func (d *Driver) SetLight(vp *LightVector, fmtStr string, args ...any) error {
	return d.Emitter.SetLight(vp, fmtStr, args...)
}

func (d *Driver) SetBlob(vp *BlobVector, fmtStr string, args ...any) error {
	return d.Emitter.SetBlob(vp, fmtStr, args...)
}

// --- misc outbound -----------------------------------------------------------

func (d *Driver) UpdateMinMax(vp *NumberVector) error {
	return d.Emitter.UpdateMinMax(vp)
}

func (d *Driver) Message(device, fmtStr string, args ...any) error {
	return d.Emitter.Message(device, fmtStr, args...)
}

func (d *Driver) DeleteProperty(device, name, fmtStr string, args ...any) error {
	return d.Emitter.DeleteProperty(device, name, fmtStr, args...)
}

func (d *Driver) SnoopDevice(device, property string) error {
	return d.Emitter.SnoopRequest(device, property)
}

func (d *Driver) SnoopBLOBs(device, property string, policy BlobHandling) error {
	return d.Emitter.SnoopBlobPolicy(device, property, policy)
}

// --- applicators -------------------------------------------------------------

func (d *Driver) UpdateNumber(vp *NumberVector, pairs []NamedValue) error {
	return d.Apply.ApplyNumbers(vp, pairs)
}

func (d *Driver) UpdateSwitch(vp *SwitchVector, pairs []NamedState) error {
	return d.Apply.ApplySwitches(vp, pairs)
}

func (d *Driver) UpdateText(vp *TextVector, pairs []NamedText) error {
	return d.Apply.ApplyTexts(vp, pairs)
}

func (d *Driver) UpdateBLOB(vp *BlobVector, pairs []NamedBlob) error {
	return d.Apply.ApplyBlobs(vp, pairs)
}
