// Package catalog loads a driver's initial vector properties from a
// directory of YAML files, the way vitus133-ptp-hw-api's PluginManager
// walks a plugins directory and parses each file into a typed config
// (SPEC_FULL.md "Device catalog loader"). spec.md assumes a driver's
// vectors already exist in memory; this package fills the gap of how
// a driver built with indidrv constructs them in the first place.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danmuck/indidrv/internal/indi"
)

// NumberMember is the YAML shape of one Number vector element.
type NumberMember struct {
	Name   string  `yaml:"name"`
	Label  string  `yaml:"label"`
	Value  float64 `yaml:"value"`
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
	Step   float64 `yaml:"step"`
	Format string  `yaml:"format"`
}

// SwitchMember is the YAML shape of one Switch vector element.
type SwitchMember struct {
	Name  string `yaml:"name"`
	Label string `yaml:"label"`
	On    bool   `yaml:"on"`
}

// TextMember is the YAML shape of one Text vector element.
type TextMember struct {
	Name  string `yaml:"name"`
	Label string `yaml:"label"`
	Value string `yaml:"value"`
}

// BlobMember is the YAML shape of one BLOB vector element. Catalog
// files never carry the BLOB payload itself, only its declared shape.
type BlobMember struct {
	Name   string `yaml:"name"`
	Label  string `yaml:"label"`
	Format string `yaml:"format"`
}

// NumberVector is the YAML shape of a driver's Number property.
type NumberVector struct {
	Name     string         `yaml:"name"`
	Label    string         `yaml:"label"`
	Perm     string         `yaml:"perm"`
	Elements []NumberMember `yaml:"elements"`
}

// SwitchVector is the YAML shape of a driver's Switch property.
type SwitchVector struct {
	Name     string         `yaml:"name"`
	Label    string         `yaml:"label"`
	Perm     string         `yaml:"perm"`
	Rule     string         `yaml:"rule"`
	Elements []SwitchMember `yaml:"elements"`
}

// TextVector is the YAML shape of a driver's Text property.
type TextVector struct {
	Name     string       `yaml:"name"`
	Label    string       `yaml:"label"`
	Perm     string       `yaml:"perm"`
	Elements []TextMember `yaml:"elements"`
}

// BlobVector is the YAML shape of a driver's BLOB property.
type BlobVector struct {
	Name     string       `yaml:"name"`
	Label    string       `yaml:"label"`
	Perm     string       `yaml:"perm"`
	Elements []BlobMember `yaml:"elements"`
}

// Device is one YAML catalog file: the initial vectors a device is
// constructed with before the driver registers them.
type Device struct {
	Device  string         `yaml:"device"`
	Numbers []NumberVector `yaml:"numbers"`
	Switches []SwitchVector `yaml:"switches"`
	Texts   []TextVector   `yaml:"texts"`
	Blobs   []BlobVector   `yaml:"blobs"`
}

// Catalog is the set of devices loaded from a directory.
type Catalog struct {
	devices map[string]Device
}

// Load walks dir the way PluginManager.LoadPlugins does, parsing every
// *.yaml/*.yml file as one Device. A missing directory is not an
// error: it just means no catalog-declared devices exist.
func Load(dir string) (*Catalog, error) {
	c := &Catalog{devices: make(map[string]Device)}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return c, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog: read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := c.loadFile(path); err != nil {
			return nil, fmt.Errorf("catalog: load %s: %w", path, err)
		}
	}
	return c, nil
}

func (c *Catalog) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	var dev Device
	if err := yaml.Unmarshal(data, &dev); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if strings.TrimSpace(dev.Device) == "" {
		return fmt.Errorf("device catalog entry must have a device name")
	}
	c.devices[dev.Device] = dev
	return nil
}

// Devices returns the catalog's device names in sorted order.
func (c *Catalog) Devices() []string {
	names := make([]string, 0, len(c.devices))
	for name := range c.devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Device returns the raw catalog entry for name, if any.
func (c *Catalog) Device(name string) (Device, bool) {
	dev, ok := c.devices[name]
	return dev, ok
}

// BuildNumberVectors converts every catalog NumberVector for dev into
// an indi.NumberVector ready to hand to Driver.DefNumber.
func (c *Catalog) BuildNumberVectors(dev string) []*indi.NumberVector {
	d, ok := c.devices[dev]
	if !ok {
		return nil
	}
	out := make([]*indi.NumberVector, 0, len(d.Numbers))
	for _, nv := range d.Numbers {
		elements := make([]indi.NumberMember, 0, len(nv.Elements))
		for _, m := range nv.Elements {
			elements = append(elements, indi.NumberMember{
				Name: m.Name, Label: m.Label, Value: m.Value,
				Min: m.Min, Max: m.Max, Step: m.Step, Format: m.Format,
			})
		}
		out = append(out, &indi.NumberVector{
			Device: dev, Name: nv.Name, Label: nv.Label,
			Perm: parsePerm(nv.Perm), State: indi.StateIdle, Elements: elements,
		})
	}
	return out
}

// BuildSwitchVectors converts every catalog SwitchVector for dev into
// an indi.SwitchVector ready to hand to Driver.DefSwitch.
func (c *Catalog) BuildSwitchVectors(dev string) []*indi.SwitchVector {
	d, ok := c.devices[dev]
	if !ok {
		return nil
	}
	out := make([]*indi.SwitchVector, 0, len(d.Switches))
	for _, sv := range d.Switches {
		elements := make([]indi.SwitchMember, 0, len(sv.Elements))
		for _, m := range sv.Elements {
			state := indi.Off
			if m.On {
				state = indi.On
			}
			elements = append(elements, indi.SwitchMember{Name: m.Name, Label: m.Label, State: state})
		}
		out = append(out, &indi.SwitchVector{
			Device: dev, Name: sv.Name, Label: sv.Label,
			Perm: parsePerm(sv.Perm), Rule: parseRule(sv.Rule), State: indi.StateIdle, Elements: elements,
		})
	}
	return out
}

// BuildTextVectors converts every catalog TextVector for dev into an
// indi.TextVector ready to hand to Driver.DefText.
func (c *Catalog) BuildTextVectors(dev string) []*indi.TextVector {
	d, ok := c.devices[dev]
	if !ok {
		return nil
	}
	out := make([]*indi.TextVector, 0, len(d.Texts))
	for _, tv := range d.Texts {
		elements := make([]indi.TextMember, 0, len(tv.Elements))
		for _, m := range tv.Elements {
			elements = append(elements, indi.TextMember{Name: m.Name, Label: m.Label, Value: m.Value})
		}
		out = append(out, &indi.TextVector{
			Device: dev, Name: tv.Name, Label: tv.Label,
			Perm: parsePerm(tv.Perm), State: indi.StateIdle, Elements: elements,
		})
	}
	return out
}

// BuildBlobVectors converts every catalog BlobVector for dev into an
// indi.BlobVector ready to hand to Driver.DefBlob.
func (c *Catalog) BuildBlobVectors(dev string) []*indi.BlobVector {
	d, ok := c.devices[dev]
	if !ok {
		return nil
	}
	out := make([]*indi.BlobVector, 0, len(d.Blobs))
	for _, bv := range d.Blobs {
		elements := make([]indi.BlobMember, 0, len(bv.Elements))
		for _, m := range bv.Elements {
			elements = append(elements, indi.BlobMember{Name: m.Name, Label: m.Label, Format: m.Format})
		}
		out = append(out, &indi.BlobVector{
			Device: dev, Name: bv.Name, Label: bv.Label,
			Perm: parsePerm(bv.Perm), State: indi.StateIdle, Elements: elements,
		})
	}
	return out
}

func parsePerm(raw string) indi.Permission {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "wo", "writeonly", "write_only":
		return indi.PermWriteOnly
	case "rw", "readwrite", "read_write":
		return indi.PermReadWrite
	default:
		return indi.PermReadOnly
	}
}

func parseRule(raw string) indi.SwitchRule {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "atmostone", "at_most_one":
		return indi.RuleAtMostOne
	case "anyofmany", "any_of_many":
		return indi.RuleAnyOfMany
	default:
		return indi.RuleOneOfMany
	}
}
