//go:build rp2040

package main

import (
	"machine"

	"softspi/core"
)

// SlavePinPads watches the bus from GPIO for the soft slave engine. Select
// and data lines are sampled; data out is driven. The serial clock is
// delivered by interrupt: Bind attaches the engine's ClockEdge to both
// edges of the clock pin, making the interrupt context the engine's shift
// domain the same way the simulator's bus upcall is.
type SlavePinPads struct {
	sclk machine.Pin
	csn  machine.Pin
	mosi machine.Pin
	miso machine.Pin
}

var _ core.SlavePads = (*SlavePinPads)(nil)

func NewSlavePinPads(sclk, csn, mosi, miso machine.Pin) *SlavePinPads {
	p := &SlavePinPads{sclk: sclk, csn: csn, mosi: mosi, miso: miso}

	// Pull the clock and select lines toward their idle levels so an
	// unwired bus reads as deselected quiet instead of noise.
	pull := machine.PinConfig{Mode: machine.PinInputPullup}
	p.sclk.Configure(pull)
	p.csn.Configure(pull)
	p.mosi.Configure(machine.PinConfig{Mode: machine.PinInput})
	p.miso.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.miso.Low()
	return p
}

func (p *SlavePinPads) CSN() bool          { return p.csn.Get() }
func (p *SlavePinPads) MOSI() bool         { return p.mosi.Get() }
func (p *SlavePinPads) SetMISO(level bool) { p.miso.Set(level) }

// Bind routes clock edges to the engine. The edge direction is read back
// from the pin level, which holds up to bus rates well below the interrupt
// latency ceiling.
func (p *SlavePinPads) Bind(slave *core.Slave) error {
	return p.sclk.SetInterrupt(machine.PinRising|machine.PinFalling, func(pin machine.Pin) {
		slave.ClockEdge(pin.Get())
	})
}
