package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/indidrv/internal/indi"
	"github.com/danmuck/indidrv/internal/snoop"
)

func newTestStation(t *testing.T, buf *bytes.Buffer) *Station {
	t.Helper()
	driver := indi.NewDriver("Weather Simulator", buf, nil)
	relay := snoop.NewRelay()

	params := &indi.NumberVector{Device: "Weather Simulator", Name: "WEATHER_PARAMETERS", Perm: indi.PermReadOnly,
		Elements: []indi.NumberMember{
			{Name: "WEATHER_TEMPERATURE", Value: 15, Min: -40, Max: 60},
			{Name: "WEATHER_WIND_SPEED", Value: 0, Min: 0, Max: 200},
			{Name: "WEATHER_HUMIDITY", Value: 40, Min: 0, Max: 100},
		}}
	conn := &indi.SwitchVector{Device: "Weather Simulator", Name: "CONNECTION", Perm: indi.PermReadWrite, Rule: indi.RuleOneOfMany,
		Elements: []indi.SwitchMember{{Name: "CONNECT"}, {Name: "DISCONNECT", State: indi.On}}}
	port := &indi.TextVector{Device: "Weather Simulator", Name: "DEVICE_PORT", Perm: indi.PermReadWrite,
		Elements: []indi.TextMember{{Name: "PORT", Value: "/dev/ttyUSB0"}}}
	sky := &indi.BlobVector{Device: "Weather Simulator", Name: "SKY_IMAGE", Perm: indi.PermReadOnly,
		Elements: []indi.BlobMember{{Name: "IMAGE", Format: ".fits"}}}

	station := NewStation("Weather Simulator", driver, relay, params, conn, port, sky)
	driver.Dispatch.CB = station
	return station
}

func TestOnGetPropertiesEmitsAllFourDefs(t *testing.T) {
	var buf bytes.Buffer
	station := newTestStation(t, &buf)

	station.OnGetProperties("")

	out := buf.String()
	for _, tag := range []string{"<defSwitchVector", "<defTextVector", "<defNumberVector", "<defBLOBVector"} {
		if !strings.Contains(out, tag) {
			t.Fatalf("expected %s in output, got %q", tag, out)
		}
	}
}

func TestOnNewSwitchConnectStartsSimulation(t *testing.T) {
	var buf bytes.Buffer
	station := newTestStation(t, &buf)

	station.OnNewSwitch("Weather Simulator", "CONNECTION", []indi.NamedState{{Name: "CONNECT", State: indi.On}})

	station.mu.Lock()
	connected := station.connected
	station.mu.Unlock()
	if !connected {
		t.Fatalf("expected station to be connected after a CONNECT toggle")
	}

	station.stopSimulation()
}

func TestOnNewSwitchDisconnectStopsSimulation(t *testing.T) {
	var buf bytes.Buffer
	station := newTestStation(t, &buf)
	station.startSimulation()

	station.OnNewSwitch("Weather Simulator", "CONNECTION", []indi.NamedState{{Name: "DISCONNECT", State: indi.On}})

	station.mu.Lock()
	connected := station.connected
	station.mu.Unlock()
	if connected {
		t.Fatalf("expected station to be disconnected after a DISCONNECT toggle")
	}
}

func TestOnNewTextUpdatesPort(t *testing.T) {
	var buf bytes.Buffer
	station := newTestStation(t, &buf)

	station.OnNewText("Weather Simulator", "DEVICE_PORT", []indi.NamedText{{Name: "PORT", Text: "/dev/ttyUSB9"}})

	m, ok := station.port.Find("PORT")
	if !ok || m.Value != "/dev/ttyUSB9" {
		t.Fatalf("expected port to be updated, got %+v, ok=%v", m, ok)
	}
}

func TestSimulateStopsCleanlyBeforeFirstTick(t *testing.T) {
	var buf bytes.Buffer
	station := newTestStation(t, &buf)

	stop := make(chan struct{})
	station.wg.Add(1)
	go station.simulate(stop)

	time.Sleep(10 * time.Millisecond)
	close(stop)
	station.wg.Wait()
}

func TestClamp(t *testing.T) {
	if got := clamp(250, 0, 200); got != 200 {
		t.Fatalf("clamp high: got %v", got)
	}
	if got := clamp(-5, 0, 200); got != 0 {
		t.Fatalf("clamp low: got %v", got)
	}
	if got := clamp(50, 0, 200); got != 50 {
		t.Fatalf("clamp within range: got %v", got)
	}
}
