// The indi-weatherd binary is the example driver SPEC_FULL.md calls
// for: a simulated weather station exercising every vector kind the
// runtime supports, wired through internal/indi the way
// internal/ghost/service.go wires Server and seeds behind one
// process. This file holds the station's Callbacks implementation and
// its simulated sensor loop.
package main

import (
	"math/rand"
	"sync"
	"time"

	"github.com/danmuck/indidrv/internal/indi"
	"github.com/danmuck/indidrv/internal/logx"
	"github.com/danmuck/indidrv/internal/snoop"
)

// Station is a single simulated weather device: three live vectors
// (WEATHER_PARAMETERS, CONNECTION, DEVICE_PORT) and one BLOB vector
// (SKY_IMAGE) that is defined but never sent with image data.
type Station struct {
	name string

	driver *indi.Driver
	relay  *snoop.Relay

	params *indi.NumberVector
	conn   *indi.SwitchVector
	port   *indi.TextVector
	sky    *indi.BlobVector

	mu        sync.Mutex
	connected bool
	stop      chan struct{}
	wg        sync.WaitGroup

	// last* track the simulation's own view of the sensor values. The
	// vectors themselves are driver-owned and mutex-guarded inside
	// package indi; a driver that wants to change a member's value
	// safely does so through UpdateNumber, never by reaching into the
	// vector's fields directly, so the simulation keeps its own copy
	// to compute the next tick from.
	lastTemp     float64
	lastWind     float64
	lastHumidity float64
}

// NewStation builds a Station bound to driver around the given
// vectors. It does not define them: OnGetProperties sends the
// DefNumber/DefSwitch/DefText/DefBlob for all four, which also
// registers them with the driver.
func NewStation(name string, driver *indi.Driver, relay *snoop.Relay,
	params *indi.NumberVector, conn *indi.SwitchVector, port *indi.TextVector, sky *indi.BlobVector) *Station {
	s := &Station{
		name:   name,
		driver: driver,
		relay:  relay,
		params: params,
		conn:   conn,
		port:   port,
		sky:    sky,
	}
	if m, ok := params.Find("WEATHER_TEMPERATURE"); ok {
		s.lastTemp = m.Value
	}
	if m, ok := params.Find("WEATHER_WIND_SPEED"); ok {
		s.lastWind = m.Value
	}
	if m, ok := params.Find("WEATHER_HUMIDITY"); ok {
		s.lastHumidity = m.Value
	}
	return s
}

// OnGetProperties answers a bare <getProperties> by re-sending every
// def for this driver. indi-weatherd only ever hosts the one device it
// was started for, so a request naming any other device is ignored.
func (s *Station) OnGetProperties(device string) {
	if device != "" && device != s.name {
		return
	}
	if err := s.driver.DefSwitch(s.conn, ""); err != nil {
		logx.Warnf("%s: def CONNECTION: %v", s.name, err)
	}
	if err := s.driver.DefText(s.port, ""); err != nil {
		logx.Warnf("%s: def DEVICE_PORT: %v", s.name, err)
	}
	if err := s.driver.DefNumber(s.params, ""); err != nil {
		logx.Warnf("%s: def WEATHER_PARAMETERS: %v", s.name, err)
	}
	if err := s.driver.DefBlob(s.sky, ""); err != nil {
		logx.Warnf("%s: def SKY_IMAGE: %v", s.name, err)
	}
}

// OnNewSwitch handles CONNECTION toggles: connecting starts the
// simulated sensor loop, disconnecting stops it.
func (s *Station) OnNewSwitch(device, name string, states []indi.NamedState) {
	if name != "CONNECTION" {
		return
	}
	if err := s.driver.UpdateSwitch(s.conn, states); err != nil {
		logx.Warnf("%s: update CONNECTION: %v", s.name, err)
		return
	}

	connectOn, _ := s.conn.Find("CONNECT")
	wantConnected := connectOn != nil && connectOn.State == indi.On

	s.mu.Lock()
	already := s.connected == wantConnected
	s.mu.Unlock()
	if already {
		_ = s.driver.SetSwitch(s.conn, "")
		return
	}

	if wantConnected {
		s.startSimulation()
	} else {
		s.stopSimulation()
	}
	_ = s.driver.SetSwitch(s.conn, "")
}

// OnNewText handles DEVICE_PORT updates: just validate-and-commit, no
// side effect beyond acknowledging the new value.
func (s *Station) OnNewText(device, name string, texts []indi.NamedText) {
	if name != "DEVICE_PORT" {
		return
	}
	if err := s.driver.UpdateText(s.port, texts); err != nil {
		logx.Warnf("%s: update DEVICE_PORT: %v", s.name, err)
		return
	}
	_ = s.driver.SetText(s.port, "")
}

// OnNewNumber and OnNewBlob are unreachable in practice: both
// WEATHER_PARAMETERS and SKY_IMAGE are read-only, so the dispatcher
// rejects any newNumberVector/newBLOBVector for them before this
// driver ever sees one. They are implemented for completeness and in
// case a future catalog entry makes either writable.
func (s *Station) OnNewNumber(device, name string, values []indi.NamedValue) {
	logx.Debugf("%s: unexpected newNumberVector for %s", s.name, name)
}

func (s *Station) OnNewBlob(device, name string, blobs []indi.NamedBlob) {
	logx.Debugf("%s: unexpected newBLOBVector for %s", s.name, name)
}

// OnSnoop forwards anything this driver snooped from a peer device out
// to the snoop relay's subscribers.
func (s *Station) OnSnoop(el indi.Element) {
	s.relay.Dispatch(el)
}

func (s *Station) startSimulation() {
	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		return
	}
	s.connected = true
	s.stop = make(chan struct{})
	stop := s.stop
	s.mu.Unlock()

	s.wg.Add(1)
	go s.simulate(stop)
}

func (s *Station) stopSimulation() {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	s.connected = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
}

// simulate periodically perturbs WEATHER_PARAMETERS and emits
// setNumberVector, standing in for a real station's polling loop.
func (s *Station) simulate(stop chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.lastTemp += (rand.Float64() - 0.5) * 0.6
			s.lastWind = clamp(s.lastWind+(rand.Float64()-0.5)*4, 0, 200)
			s.lastHumidity = clamp(s.lastHumidity+(rand.Float64()-0.5)*2, 0, 100)

			pairs := []indi.NamedValue{
				{Name: "WEATHER_TEMPERATURE", Value: s.lastTemp},
				{Name: "WEATHER_WIND_SPEED", Value: s.lastWind},
				{Name: "WEATHER_HUMIDITY", Value: s.lastHumidity},
			}
			if err := s.driver.UpdateNumber(s.params, pairs); err != nil {
				logx.Warnf("%s: update WEATHER_PARAMETERS: %v", s.name, err)
				continue
			}
			if err := s.driver.SetNumber(s.params, ""); err != nil {
				logx.Warnf("%s: set WEATHER_PARAMETERS: %v", s.name, err)
			}
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
