package indi

import "fmt"

// NamedValue pairs a member name with the value the peer supplied.
// Used by ApplyNumbers.
type NamedValue struct {
	Name  string
	Value float64
}

// NamedState pairs a member name with the switch state the peer
// supplied. Used by ApplySwitches.
type NamedState struct {
	Name  string
	State SwitchState
}

// NamedText pairs a member name with the text the peer supplied. Used
// by ApplyTexts.
type NamedText struct {
	Name string
	Text string
}

// NamedBlob pairs a member name with the decoded BLOB payload the peer
// supplied. Used by ApplyBlobs.
type NamedBlob struct {
	Name    string
	Size    int64
	BlobLen int64
	Data    []byte
	Format  string
}

// Applicators are the validate-then-commit functions of spec.md §4.E,
// transcribed from IUUpdateSwitch/IUUpdateNumber/IUUpdateText/
// IUUpdateBLOB in original_source/libs/indibase/indidriver.c. Every
// applicator is bound to an Emitter so it can report its own failures
// the way the original calls back into IDSet<Kind> from inside
// IUUpdate<Kind>.
//
// Each applicator releases the vector's lock before emitting: Emitter
// methods take their own read lock on the same vector to render its
// current values, so emitting while still holding the write lock
// would deadlock.
type Applicators struct {
	emit *Emitter
}

// NewApplicators binds the value applicators to the Emitter used to
// report validation failures back to the peer.
func NewApplicators(emit *Emitter) *Applicators {
	return &Applicators{emit: emit}
}

// ApplyNumbers validates every (name, value) pair against the
// member's [min, max] bound before committing any of them
// (spec.md §8 invariant 4: all-or-nothing).
func (a *Applicators) ApplyNumbers(vp *NumberVector, pairs []NamedValue) error {
	vp.mu.Lock()

	resolved := make([]*NumberMember, len(pairs))
	for i, p := range pairs {
		m, ok := vp.Find(p.Name)
		if !ok {
			vp.State = StateIdle
			label, name := vp.Label, vp.Name
			vp.mu.Unlock()
			_ = a.emit.SetNumber(vp, "Error: %s is not a member of %s (%s) property.", p.Name, label, name)
			return fmt.Errorf("%w: %s", ErrMemberNotFound, p.Name)
		}
		if p.Value < m.Min || p.Value > m.Max {
			vp.State = StateAlert
			mLabel, mName, mMin, mMax := m.Label, m.Name, m.Min, m.Max
			vp.mu.Unlock()
			_ = a.emit.SetNumber(vp,
				"Error: Invalid range for %s (%s). Valid range is from %s to %s. Requested value is %s",
				mLabel, mName, FormatFloat(mMin), FormatFloat(mMax), FormatFloat(p.Value))
			return fmt.Errorf("%w: %s", ErrOutOfRange, p.Name)
		}
		resolved[i] = m
	}

	for i, p := range pairs {
		resolved[i].Value = p.Value
	}
	vp.mu.Unlock()
	return nil
}

// ApplySwitches validates every named switch before committing. For
// rule = OneOfMany, the prior On element is snapshotted; if the batch
// does not leave exactly one element On, the snapshot is restored and
// the update is rejected atomically (spec.md §8 invariant 3).
func (a *Applicators) ApplySwitches(vp *SwitchVector, pairs []NamedState) error {
	vp.mu.Lock()

	resolved := make([]*SwitchMember, len(pairs))
	for i, p := range pairs {
		m, ok := vp.Find(p.Name)
		if !ok {
			vp.State = StateIdle
			label, name := vp.Label, vp.Name
			vp.mu.Unlock()
			_ = a.emit.SetSwitch(vp, "Error: %s is not a member of %s (%s) property.", p.Name, label, name)
			return fmt.Errorf("%w: %s", ErrMemberNotFound, p.Name)
		}
		resolved[i] = m
	}

	var priorOn *SwitchMember
	if vp.Rule == RuleOneOfMany {
		for i := range vp.Elements {
			if vp.Elements[i].State == On {
				priorOn = &vp.Elements[i]
				break
			}
		}
		for i := range vp.Elements {
			vp.Elements[i].State = Off
		}
	}

	for i, p := range pairs {
		resolved[i].State = p.State
	}

	if vp.Rule == RuleOneOfMany {
		count := 0
		for i := range vp.Elements {
			if vp.Elements[i].State == On {
				count++
			}
		}
		if count != 1 {
			for i := range vp.Elements {
				vp.Elements[i].State = Off
			}
			if priorOn != nil {
				priorOn.State = On
			}
			vp.State = StateIdle
			reason := "Too many switches are on"
			if count == 0 {
				reason = "No switch is on"
			}
			label, name := vp.Label, vp.Name
			vp.mu.Unlock()
			_ = a.emit.SetSwitch(vp, "Error: invalid state switch for property %s (%s). %s.", label, name, reason)
			return fmt.Errorf("%w: %s", ErrSwitchRuleViolation, reason)
		}
	}

	vp.mu.Unlock()
	return nil
}

// ApplyTexts validates every named member before committing, copying
// each new value the way save_text frees the old value and duplicates
// the new one.
func (a *Applicators) ApplyTexts(vp *TextVector, pairs []NamedText) error {
	vp.mu.Lock()

	resolved := make([]*TextMember, len(pairs))
	for i, p := range pairs {
		m, ok := vp.Find(p.Name)
		if !ok {
			vp.State = StateIdle
			label, name := vp.Label, vp.Name
			vp.mu.Unlock()
			_ = a.emit.SetText(vp, "Error: %s is not a member of %s (%s) property.", p.Name, label, name)
			return fmt.Errorf("%w: %s", ErrMemberNotFound, p.Name)
		}
		resolved[i] = m
	}

	for i, p := range pairs {
		resolved[i].Value = p.Text
	}
	vp.mu.Unlock()
	return nil
}

// ApplyBlobs validates every named member before committing, replacing
// each member's buffer the way save_blob frees the old buffer and
// takes ownership of the new bytes.
func (a *Applicators) ApplyBlobs(vp *BlobVector, pairs []NamedBlob) error {
	vp.mu.Lock()

	resolved := make([]*BlobMember, len(pairs))
	for i, p := range pairs {
		m, ok := vp.Find(p.Name)
		if !ok {
			vp.State = StateIdle
			label, name := vp.Label, vp.Name
			vp.mu.Unlock()
			_ = a.emit.SetBlob(vp, "Error: %s is not a member of %s (%s) property.", p.Name, label, name)
			return fmt.Errorf("%w: %s", ErrMemberNotFound, p.Name)
		}
		resolved[i] = m
	}

	for i, p := range pairs {
		resolved[i].Size = p.Size
		resolved[i].BlobLen = p.BlobLen
		resolved[i].Data = p.Data
		resolved[i].Format = p.Format
	}
	vp.mu.Unlock()
	return nil
}
