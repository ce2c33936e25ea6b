package indi

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func newTestEmitter(buf *bytes.Buffer) *Emitter {
	reg := NewRegistry()
	w := NewWriter(buf, "test-driver")
	return NewEmitter(w, reg)
}

func TestDefNumberRegistersAndEmits(t *testing.T) {
	var buf bytes.Buffer
	emit := newTestEmitter(&buf)
	vp := &NumberVector{
		Device: "Weather Simulator", Name: "WEATHER_PARAMETERS", Perm: PermReadOnly,
		Elements: []NumberMember{{Name: "WEATHER_TEMPERATURE", Value: 12.5, Min: -40, Max: 60}},
	}

	if err := emit.DefNumber(vp, ""); err != nil {
		t.Fatalf("DefNumber: %v", err)
	}
	if !strings.Contains(buf.String(), "<defNumberVector") {
		t.Fatalf("expected defNumberVector in output, got %q", buf.String())
	}
	if _, ok := emit.reg.Lookup("Weather Simulator", "WEATHER_PARAMETERS"); !ok {
		t.Fatalf("expected DefNumber to register the vector")
	}
}

func TestDefLightDoesNotRegister(t *testing.T) {
	var buf bytes.Buffer
	emit := newTestEmitter(&buf)
	vp := &LightVector{Device: "Weather Simulator", Name: "SAFETY", Elements: []LightMember{{Name: "CLEAR", State: StateOk}}}

	if err := emit.DefLight(vp, ""); err != nil {
		t.Fatalf("DefLight: %v", err)
	}
	if !strings.Contains(buf.String(), "<defLightVector") {
		t.Fatalf("expected defLightVector in output, got %q", buf.String())
	}
	if _, ok := emit.reg.Lookup("Weather Simulator", "SAFETY"); ok {
		t.Fatalf("expected DefLight to never register into the sanity cache")
	}
}

func TestSetNumberCarriesMessage(t *testing.T) {
	var buf bytes.Buffer
	emit := newTestEmitter(&buf)
	vp := &NumberVector{Device: "Weather Simulator", Name: "WEATHER_PARAMETERS", Elements: []NumberMember{{Name: "X", Value: 1}}}

	if err := emit.SetNumber(vp, "value is %d", 42); err != nil {
		t.Fatalf("SetNumber: %v", err)
	}
	if !strings.Contains(buf.String(), `message="value is 42"`) {
		t.Fatalf("expected formatted message attribute, got %q", buf.String())
	}
}

func TestMessageWithoutDeviceOmitsAttr(t *testing.T) {
	var buf bytes.Buffer
	emit := newTestEmitter(&buf)
	if err := emit.Message("", "hello"); err != nil {
		t.Fatalf("Message: %v", err)
	}
	if strings.Contains(buf.String(), "device=") {
		t.Fatalf("expected no device attribute, got %q", buf.String())
	}
}

func TestDeleteProperty(t *testing.T) {
	var buf bytes.Buffer
	emit := newTestEmitter(&buf)
	if err := emit.DeleteProperty("Weather Simulator", "WEATHER_PARAMETERS", ""); err != nil {
		t.Fatalf("DeleteProperty: %v", err)
	}
	if !strings.Contains(buf.String(), `<delProperty device="Weather Simulator" name="WEATHER_PARAMETERS"/>`) {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestSnoopRequestEmptyDeviceIsNoop(t *testing.T) {
	var buf bytes.Buffer
	emit := newTestEmitter(&buf)
	if err := emit.SnoopRequest("", "ANY"); err != nil {
		t.Fatalf("SnoopRequest: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output for empty device, got %q", buf.String())
	}
}

func TestBlobHandlingString(t *testing.T) {
	cases := map[BlobHandling]string{BlobNever: "Never", BlobAlso: "Also", BlobOnly: "Only"}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("BlobHandling(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestUpdateMinMaxEmitsBounds(t *testing.T) {
	var buf bytes.Buffer
	emit := newTestEmitter(&buf)
	vp := &NumberVector{Device: "Weather Simulator", Name: "WEATHER_PARAMETERS",
		Elements: []NumberMember{{Name: "WEATHER_TEMPERATURE", Value: 10, Min: -40, Max: 60, Step: 0.5}}}

	if err := emit.UpdateMinMax(vp); err != nil {
		t.Fatalf("UpdateMinMax: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `min="-40"`) || !strings.Contains(out, `max="60"`) {
		t.Fatalf("expected min/max attributes, got %q", out)
	}
}

func TestSetPingTimeoutAppliesToGate(t *testing.T) {
	var buf bytes.Buffer
	emit := newTestEmitter(&buf)
	emit.SetPingTimeout(50 * time.Millisecond)
	if emit.blob.timeout != 50*time.Millisecond {
		t.Fatalf("expected gate timeout to be set, got %v", emit.blob.timeout)
	}
}
