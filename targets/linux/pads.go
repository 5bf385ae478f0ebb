//go:build linux

package main

import (
	"sync/atomic"

	"github.com/warthog618/go-gpiocdev"

	"softspi/core"
)

// LineMasterPads drives the bus from character-device GPIO lines for the
// bit-banged master engine. Every pad write is a syscall, so the engine's
// clock phases stretch to syscall pace; that keeps the edges wide enough
// for event-driven peers without any explicit delay.
type LineMasterPads struct {
	sclk *gpiocdev.Line
	csn  *gpiocdev.Line
	mosi *gpiocdev.Line
	miso *gpiocdev.Line
	errs uint32
}

var _ core.MasterPads = (*LineMasterPads)(nil)

// NewLineMasterPads requests the four bus lines with their idle levels:
// clock and select high, data out low.
func NewLineMasterPads(chip *gpiocdev.Chip, sclk, csn, mosi, miso int) (*LineMasterPads, error) {
	p := &LineMasterPads{}
	var err error
	defer func() {
		if err != nil {
			p.Close()
		}
	}()

	if p.sclk, err = chip.RequestLine(sclk, gpiocdev.AsOutput(1)); err != nil {
		return nil, err
	}
	if p.csn, err = chip.RequestLine(csn, gpiocdev.AsOutput(1)); err != nil {
		return nil, err
	}
	if p.mosi, err = chip.RequestLine(mosi, gpiocdev.AsOutput(0)); err != nil {
		return nil, err
	}
	if p.miso, err = chip.RequestLine(miso, gpiocdev.AsInput); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *LineMasterPads) set(l *gpiocdev.Line, level bool) {
	v := 0
	if level {
		v = 1
	}
	if err := l.SetValue(v); err != nil {
		atomic.AddUint32(&p.errs, 1)
	}
}

func (p *LineMasterPads) SetSCLK(level bool) { p.set(p.sclk, level) }
func (p *LineMasterPads) SetCSN(level bool)  { p.set(p.csn, level) }
func (p *LineMasterPads) SetMOSI(level bool) { p.set(p.mosi, level) }

func (p *LineMasterPads) MISO() bool {
	v, err := p.miso.Value()
	if err != nil {
		atomic.AddUint32(&p.errs, 1)
		return false
	}
	return v != 0
}

// Errors returns how many line operations have failed. A healthy board
// stays at zero.
func (p *LineMasterPads) Errors() uint32 { return atomic.LoadUint32(&p.errs) }

// Close releases the lines.
func (p *LineMasterPads) Close() {
	for _, l := range []*gpiocdev.Line{p.sclk, p.csn, p.mosi, p.miso} {
		if l != nil {
			l.Close()
		}
	}
}

// LineSlavePads watches the bus for the soft slave engine. Select and data
// in are sampled, data out is driven, and the serial clock arrives as edge
// events: Bind routes them to the engine, making the library's event
// goroutine the engine's shift domain the same way the simulator's bus
// upcall is.
type LineSlavePads struct {
	sclk *gpiocdev.Line
	csn  *gpiocdev.Line
	mosi *gpiocdev.Line
	miso *gpiocdev.Line
	errs uint32
}

var _ core.SlavePads = (*LineSlavePads)(nil)

// NewLineSlavePads requests the select and data lines. The clock line is
// requested by Bind once the engine exists.
func NewLineSlavePads(chip *gpiocdev.Chip, csn, mosi, miso int) (*LineSlavePads, error) {
	p := &LineSlavePads{}
	var err error
	defer func() {
		if err != nil {
			p.Close()
		}
	}()

	// Bias select toward deselected so an unwired bus reads quiet.
	if p.csn, err = chip.RequestLine(csn, gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
		return nil, err
	}
	if p.mosi, err = chip.RequestLine(mosi, gpiocdev.AsInput); err != nil {
		return nil, err
	}
	if p.miso, err = chip.RequestLine(miso, gpiocdev.AsOutput(0)); err != nil {
		return nil, err
	}
	return p, nil
}

// Bind requests the clock line with both edges routed to the engine.
func (p *LineSlavePads) Bind(chip *gpiocdev.Chip, sclk int, slave *core.Slave) error {
	l, err := chip.RequestLine(sclk,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			slave.ClockEdge(evt.Type == gpiocdev.LineEventRisingEdge)
		}))
	if err != nil {
		return err
	}
	p.sclk = l
	return nil
}

func (p *LineSlavePads) CSN() bool {
	v, err := p.csn.Value()
	if err != nil {
		// Read faults count as deselected; a wedged line must not hold
		// the engine in a frame.
		atomic.AddUint32(&p.errs, 1)
		return true
	}
	return v != 0
}

func (p *LineSlavePads) MOSI() bool {
	v, err := p.mosi.Value()
	if err != nil {
		atomic.AddUint32(&p.errs, 1)
		return false
	}
	return v != 0
}

func (p *LineSlavePads) SetMISO(level bool) {
	v := 0
	if level {
		v = 1
	}
	if err := p.miso.SetValue(v); err != nil {
		atomic.AddUint32(&p.errs, 1)
	}
}

// Errors returns how many line operations have failed.
func (p *LineSlavePads) Errors() uint32 { return atomic.LoadUint32(&p.errs) }

// Close releases the lines.
func (p *LineSlavePads) Close() {
	for _, l := range []*gpiocdev.Line{p.sclk, p.csn, p.mosi, p.miso} {
		if l != nil {
			l.Close()
		}
	}
}
