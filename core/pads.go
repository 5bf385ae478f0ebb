package core

import "sync"

// The four bus lines. Names follow the usual SPI convention: SCLK is the
// bus clock, MOSI carries master data out, MISO carries slave data out, and
// CSN is the active-low chip select that frames a transfer.
type Line uint8

const (
	LineSCLK Line = iota
	LineMOSI
	LineMISO
	LineCSN
)

func (l Line) String() string {
	switch l {
	case LineSCLK:
		return "sclk"
	case LineMOSI:
		return "mosi"
	case LineMISO:
		return "miso"
	case LineCSN:
		return "csn"
	}
	return "unknown"
}

// MasterPads is the pad-side contract for the master engine. The engine
// drives clock, select and data out from its own clock domain and samples
// data in. Implementations exist for the in-process bus (Pads), for real
// GPIO lines under targets/, and for test recorders.
type MasterPads interface {
	SetSCLK(level bool)
	SetCSN(level bool)
	SetMOSI(level bool)
	MISO() bool
}

// SlavePads is the pad-side contract for the slave engine: it observes
// select and data in and drives data out. The bus clock does not appear
// here because slave shift logic is clocked by it, not sampling it; clock
// edges reach the engine through Slave.ClockEdge.
type SlavePads interface {
	CSN() bool
	MOSI() bool
	SetMISO(level bool)
}

// EdgeFunc receives bus clock edges in the clock's own domain, that is, in
// the goroutine of whoever toggles the line.
type EdgeFunc func(rising bool)

// EventFunc observes any line change. Used by trace recorders.
type EventFunc func(line Line, level bool)

// Pads is the in-process four-wire bus. The line levels are Level wires, so
// both engines may touch them from their own domains; clock and select
// transitions are additionally delivered to registered listeners
// synchronously, which models logic clocked by the wire itself. A Pads
// value implements both MasterPads and SlavePads.
type Pads struct {
	sclk Level
	mosi Level
	miso Level
	csn  Level

	clockEdge EdgeFunc
	event     EventFunc
}

// NewPads returns a bus with all lines in their idle state: clock and
// select high (select is active low), data lines low.
func NewPads() *Pads {
	p := &Pads{}
	p.sclk.Set(true)
	p.csn.Set(true)
	return p
}

// OnClockEdge registers the listener that is clocked by SCLK. Only one
// listener is supported; the bus has one slave.
func (p *Pads) OnClockEdge(fn EdgeFunc) {
	p.clockEdge = fn
}

// OnEvent registers a trace observer for all line changes.
func (p *Pads) OnEvent(fn EventFunc) {
	p.event = fn
}

// SetSCLK drives the clock line and delivers the edge to the clocked
// listener. Redundant writes (no level change) produce no edge.
func (p *Pads) SetSCLK(level bool) {
	if p.sclk.Get() == level {
		return
	}
	p.sclk.Set(level)
	if p.event != nil {
		p.event(LineSCLK, level)
	}
	if p.clockEdge != nil {
		p.clockEdge(level)
	}
}

// SetCSN drives the chip select line.
func (p *Pads) SetCSN(level bool) {
	if p.csn.Get() == level {
		return
	}
	p.csn.Set(level)
	if p.event != nil {
		p.event(LineCSN, level)
	}
}

// SetMOSI drives master data out.
func (p *Pads) SetMOSI(level bool) {
	if p.mosi.Get() == level {
		return
	}
	p.mosi.Set(level)
	if p.event != nil {
		p.event(LineMOSI, level)
	}
}

// SetMISO drives slave data out.
func (p *Pads) SetMISO(level bool) {
	if p.miso.Get() == level {
		return
	}
	p.miso.Set(level)
	if p.event != nil {
		p.event(LineMISO, level)
	}
}

// PadEvent is one recorded line change.
type PadEvent struct {
	Line  Line
	Level bool
}

// Recorder is an OnEvent listener that keeps every line change in order.
// Tests assert wire ordering on the capture; the simulator's trace mode
// dumps it. Events arrive from whichever domain drives the line, so the
// capture sits behind a mutex.
type Recorder struct {
	mu     sync.Mutex
	events []PadEvent
}

// Record appends one event. Attach with pads.OnEvent(rec.Record).
func (r *Recorder) Record(line Line, level bool) {
	r.mu.Lock()
	r.events = append(r.events, PadEvent{Line: line, Level: level})
	r.mu.Unlock()
}

// Events returns a copy of the capture so far.
func (r *Recorder) Events() []PadEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PadEvent, len(r.events))
	copy(out, r.events)
	return out
}

// RisingEdges counts 0 to 1 transitions captured on one line.
func (r *Recorder) RisingEdges(line Line) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, evt := range r.events {
		if evt.Line == line && evt.Level {
			n++
		}
	}
	return n
}

// Reset discards the capture.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = r.events[:0]
	r.mu.Unlock()
}

// SCLK samples the clock line.
func (p *Pads) SCLK() bool { return p.sclk.Get() }

// CSN samples the chip select line.
func (p *Pads) CSN() bool { return p.csn.Get() }

// MOSI samples master data out.
func (p *Pads) MOSI() bool { return p.mosi.Get() }

// MISO samples slave data out.
func (p *Pads) MISO() bool { return p.miso.Get() }
