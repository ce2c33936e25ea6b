package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/indidrv/internal/indi"
	"github.com/danmuck/indidrv/internal/testutil/testlog"
)

func writeCatalogFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write catalog file: %v", err)
	}
}

func TestLoadMissingDirectoryIsNotAnError(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Devices()) != 0 {
		t.Fatalf("expected no devices, got %v", c.Devices())
	}
}

func TestLoadParsesDeviceAndBuildsVectors(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	writeCatalogFile(t, dir, "weather.yaml", `
device: Weather Simulator
numbers:
  - name: WEATHER_PARAMETERS
    label: Weather Parameters
    perm: ro
    elements:
      - name: WEATHER_TEMPERATURE
        value: 15
        min: -40
        max: 60
switches:
  - name: CONNECTION
    perm: rw
    rule: oneofmany
    elements:
      - name: CONNECT
        on: false
      - name: DISCONNECT
        on: true
texts:
  - name: DEVICE_PORT
    perm: rw
    elements:
      - name: PORT
        value: /dev/ttyUSB0
blobs:
  - name: SKY_IMAGE
    perm: ro
    elements:
      - name: IMAGE
        format: .fits
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := c.Devices(); len(got) != 1 || got[0] != "Weather Simulator" {
		t.Fatalf("unexpected devices: %v", got)
	}

	numbers := c.BuildNumberVectors("Weather Simulator")
	if len(numbers) != 1 || numbers[0].Name != "WEATHER_PARAMETERS" {
		t.Fatalf("unexpected number vectors: %+v", numbers)
	}
	if numbers[0].Perm != indi.PermReadOnly {
		t.Fatalf("expected ro perm, got %v", numbers[0].Perm)
	}
	temp, ok := numbers[0].Find("WEATHER_TEMPERATURE")
	if !ok || temp.Value != 15 {
		t.Fatalf("unexpected temperature member: %+v, ok=%v", temp, ok)
	}

	switches := c.BuildSwitchVectors("Weather Simulator")
	if len(switches) != 1 || switches[0].Rule != indi.RuleOneOfMany {
		t.Fatalf("unexpected switch vectors: %+v", switches)
	}
	disconnect, ok := switches[0].Find("DISCONNECT")
	if !ok || disconnect.State != indi.On {
		t.Fatalf("expected DISCONNECT to be On by catalog default, got %+v, ok=%v", disconnect, ok)
	}

	texts := c.BuildTextVectors("Weather Simulator")
	if len(texts) != 1 {
		t.Fatalf("unexpected text vectors: %+v", texts)
	}

	blobs := c.BuildBlobVectors("Weather Simulator")
	if len(blobs) != 1 || blobs[0].Elements[0].Format != ".fits" {
		t.Fatalf("unexpected blob vectors: %+v", blobs)
	}
}

func TestLoadRejectsEntryWithoutDeviceName(t *testing.T) {
	dir := t.TempDir()
	writeCatalogFile(t, dir, "bad.yaml", "numbers: []\n")

	if _, err := Load(dir); err == nil {
		t.Fatalf("expected an error for a catalog entry with no device name")
	}
}

func TestBuildVectorsForUnknownDeviceIsNil(t *testing.T) {
	c, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := c.BuildNumberVectors("Nonexistent"); got != nil {
		t.Fatalf("expected nil for unknown device, got %+v", got)
	}
}

func TestLoadIgnoresNonYAMLFiles(t *testing.T) {
	dir := t.TempDir()
	writeCatalogFile(t, dir, "notes.txt", "this is not yaml catalog data")
	writeCatalogFile(t, dir, "weather.yml", "device: Weather Simulator\n")

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := c.Devices(); len(got) != 1 {
		t.Fatalf("expected exactly one device, got %v", got)
	}
}
