package indi

import (
	"bytes"
	"errors"
	"testing"
)

func newTestApplicators(buf *bytes.Buffer) *Applicators {
	return NewApplicators(newTestEmitter(buf))
}

func TestApplyNumbersCommitsWithinRange(t *testing.T) {
	var buf bytes.Buffer
	a := newTestApplicators(&buf)
	vp := &NumberVector{Device: "d", Name: "WEATHER_PARAMETERS",
		Elements: []NumberMember{{Name: "TEMP", Value: 0, Min: -10, Max: 10}}}

	err := a.ApplyNumbers(vp, []NamedValue{{Name: "TEMP", Value: 5}})
	if err != nil {
		t.Fatalf("ApplyNumbers: %v", err)
	}
	m, _ := vp.Find("TEMP")
	if m.Value != 5 {
		t.Fatalf("expected committed value 5, got %v", m.Value)
	}
}

func TestApplyNumbersRejectsOutOfRangeWithoutPartialCommit(t *testing.T) {
	var buf bytes.Buffer
	a := newTestApplicators(&buf)
	vp := &NumberVector{Device: "d", Name: "WEATHER_PARAMETERS",
		Elements: []NumberMember{
			{Name: "A", Value: 1, Min: 0, Max: 10},
			{Name: "B", Value: 2, Min: 0, Max: 10},
		}}

	err := a.ApplyNumbers(vp, []NamedValue{{Name: "A", Value: 5}, {Name: "B", Value: 999}})
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	a2, _ := vp.Find("A")
	if a2.Value != 1 {
		t.Fatalf("expected all-or-nothing: A should be unchanged, got %v", a2.Value)
	}
}

func TestApplyNumbersUnknownMember(t *testing.T) {
	var buf bytes.Buffer
	a := newTestApplicators(&buf)
	vp := &NumberVector{Device: "d", Name: "P", Elements: []NumberMember{{Name: "A", Min: 0, Max: 10}}}

	err := a.ApplyNumbers(vp, []NamedValue{{Name: "MISSING", Value: 1}})
	if !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("expected ErrMemberNotFound, got %v", err)
	}
}

func TestApplySwitchesOneOfManyEnforced(t *testing.T) {
	var buf bytes.Buffer
	a := newTestApplicators(&buf)
	vp := &SwitchVector{Device: "d", Name: "CONNECTION", Rule: RuleOneOfMany,
		Elements: []SwitchMember{{Name: "CONNECT", State: Off}, {Name: "DISCONNECT", State: On}}}

	err := a.ApplySwitches(vp, []NamedState{{Name: "CONNECT", State: On}})
	if err != nil {
		t.Fatalf("ApplySwitches: %v", err)
	}
	connect, _ := vp.Find("CONNECT")
	disconnect, _ := vp.Find("DISCONNECT")
	if connect.State != On || disconnect.State != Off {
		t.Fatalf("expected exactly CONNECT on, got CONNECT=%v DISCONNECT=%v", connect.State, disconnect.State)
	}
}

func TestApplySwitchesOneOfManyRejectsTwoOn(t *testing.T) {
	var buf bytes.Buffer
	a := newTestApplicators(&buf)
	vp := &SwitchVector{Device: "d", Name: "CONNECTION", Rule: RuleOneOfMany,
		Elements: []SwitchMember{{Name: "CONNECT", State: Off}, {Name: "DISCONNECT", State: On}}}

	err := a.ApplySwitches(vp, []NamedState{{Name: "CONNECT", State: On}, {Name: "DISCONNECT", State: On}})
	if !errors.Is(err, ErrSwitchRuleViolation) {
		t.Fatalf("expected ErrSwitchRuleViolation, got %v", err)
	}
	disconnect, _ := vp.Find("DISCONNECT")
	if disconnect.State != On {
		t.Fatalf("expected rollback to the prior On element, got %v", disconnect.State)
	}
}

func TestApplySwitchesAnyOfManyAllowsIndependentToggles(t *testing.T) {
	var buf bytes.Buffer
	a := newTestApplicators(&buf)
	vp := &SwitchVector{Device: "d", Name: "FILTERS", Rule: RuleAnyOfMany,
		Elements: []SwitchMember{{Name: "A", State: Off}, {Name: "B", State: Off}}}

	if err := a.ApplySwitches(vp, []NamedState{{Name: "A", State: On}, {Name: "B", State: On}}); err != nil {
		t.Fatalf("ApplySwitches: %v", err)
	}
	a1, _ := vp.Find("A")
	b1, _ := vp.Find("B")
	if a1.State != On || b1.State != On {
		t.Fatalf("expected both on under AnyOfMany, got A=%v B=%v", a1.State, b1.State)
	}
}

func TestApplyTextsCommits(t *testing.T) {
	var buf bytes.Buffer
	a := newTestApplicators(&buf)
	vp := &TextVector{Device: "d", Name: "DEVICE_PORT", Elements: []TextMember{{Name: "PORT", Value: "/dev/ttyUSB0"}}}

	if err := a.ApplyTexts(vp, []NamedText{{Name: "PORT", Text: "/dev/ttyUSB1"}}); err != nil {
		t.Fatalf("ApplyTexts: %v", err)
	}
	m, _ := vp.Find("PORT")
	if m.Value != "/dev/ttyUSB1" {
		t.Fatalf("expected updated port, got %q", m.Value)
	}
}

func TestApplyBlobsCommits(t *testing.T) {
	var buf bytes.Buffer
	a := newTestApplicators(&buf)
	vp := &BlobVector{Device: "d", Name: "SKY_IMAGE", Elements: []BlobMember{{Name: "IMAGE", Format: ".fits"}}}

	err := a.ApplyBlobs(vp, []NamedBlob{{Name: "IMAGE", Size: 4, BlobLen: 4, Data: []byte("data"), Format: ".jpg"}})
	if err != nil {
		t.Fatalf("ApplyBlobs: %v", err)
	}
	m, _ := vp.Find("IMAGE")
	if string(m.Data) != "data" || m.Format != ".jpg" {
		t.Fatalf("unexpected blob member after apply: %+v", m)
	}
}
