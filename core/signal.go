// Package core implements a pair of soft SPI protocol engines, a bus master
// and a bus slave, together with the host-visible register blocks that
// control them. The engines and registers live in independent clock domains
// and are pure state machines: each domain advances by explicit ticks, and
// every bit that crosses a domain boundary travels through the synchronizer
// primitives in this file. There is no locking anywhere in the package;
// correctness across domains comes from the synchronizer discipline alone.
package core

import "sync/atomic"

// Level is a single-bit signal line. The writer and the readers may run in
// different clock domains. Reading a Level directly with Get returns the
// instantaneous wire value; consuming that value as control or status in a
// foreign domain is exactly the metastability hazard a real design has, so
// foreign-domain consumers must go through Sync or Edge instead. Get exists
// for same-domain combinational use (a slave gating its shift on chip
// select) and for the synchronizer input stage.
type Level struct {
	v uint32
}

// Set drives the line high or low.
func (l *Level) Set(level bool) {
	if level {
		atomic.StoreUint32(&l.v, 1)
	} else {
		atomic.StoreUint32(&l.v, 0)
	}
}

// Get samples the instantaneous line value.
func (l *Level) Get() bool {
	return atomic.LoadUint32(&l.v) != 0
}

// Bit is any sampleable single-bit source. Level implements it; pad
// accessors are adapted with BitFunc.
type Bit interface {
	Get() bool
}

// BitFunc adapts a sampling function to Bit.
type BitFunc func() bool

// Get samples the source.
func (f BitFunc) Get() bool { return f() }

// SyncStages is the default synchronizer depth. Two flops back to back is
// the classic arrangement; anything shallower cannot settle a metastable
// first stage before the value is consumed.
const SyncStages = 2

// Sync carries a Level into a consuming clock domain through a multi-stage
// register chain. Tick advances the chain by one destination-domain clock
// and returns the chain output, which is the line value as it stood at
// least depth ticks ago. A 0 to 1 flip on the source side therefore appears
// on the output two ticks later (at the default depth), never as a torn or
// transient value.
type Sync struct {
	src    Bit
	stages []bool
	out    uint32
}

// NewSync builds a synchronizer of the given depth for src. Depth below 2
// defeats the point of the chain, so it panics.
func NewSync(src Bit, depth int) *Sync {
	if depth < 2 {
		panic("core: synchronizer depth must be at least 2")
	}
	return &Sync{src: src, stages: make([]bool, depth)}
}

// Tick advances the chain one destination-domain clock and returns the
// settled output.
func (s *Sync) Tick() bool {
	for i := len(s.stages) - 1; i > 0; i-- {
		s.stages[i] = s.stages[i-1]
	}
	s.stages[0] = s.src.Get()

	tail := s.stages[len(s.stages)-1]
	var v uint32
	if tail {
		v = 1
	}
	atomic.StoreUint32(&s.out, v)
	return tail
}

// Out returns the chain output as of the last Tick. Reading a register is
// combinational on the output flop, so Out does not advance the chain. The
// output is a settled value and may be read from any goroutine; only the
// chain interior belongs to the ticking domain.
func (s *Sync) Out() bool {
	return atomic.LoadUint32(&s.out) != 0
}

// Edge turns a synchronized level into clean one-tick pulses by comparing
// the chain output against its value one destination tick earlier. This is
// how edge-triggered commands cross domains: the source and destination
// clocks may have an arbitrary frequency ratio, and consuming the raw level
// would either retrigger on every tick the level stays high or miss a pulse
// narrower than one destination tick entirely.
type Edge struct {
	sync *Sync
	prev bool
	rose bool
	fell bool
}

// NewEdge builds an edge detector over a fresh synchronizer for src.
func NewEdge(src Bit, depth int) *Edge {
	return &Edge{sync: NewSync(src, depth)}
}

// Tick advances the underlying synchronizer one destination-domain clock
// and latches whether the settled level rose or fell since the previous
// tick.
func (e *Edge) Tick() {
	cur := e.sync.Tick()
	e.rose = cur && !e.prev
	e.fell = e.prev && !cur
	e.prev = cur
}

// Rising reports a 0 to 1 transition seen on the last Tick.
func (e *Edge) Rising() bool { return e.rose }

// Falling reports a 1 to 0 transition seen on the last Tick.
func (e *Edge) Falling() bool { return e.fell }

// High returns the synchronized level as of the last Tick.
func (e *Edge) High() bool { return e.prev }

// PulseSync relays strobe events into a consuming domain. The source posts
// pulses at any rate; the destination takes them once per tick. Pulses
// arriving between two destination ticks collapse into a single Take, the
// same way a hardware pulse synchronizer saturates, so Take answers "did at
// least one strobe arrive" rather than counting them.
type PulseSync struct {
	pending uint32
}

// Post records one strobe from the source domain.
func (p *PulseSync) Post() {
	atomic.AddUint32(&p.pending, 1)
}

// Take consumes all pending strobes and reports whether there were any.
// Call once per destination-domain tick.
func (p *PulseSync) Take() bool {
	return atomic.SwapUint32(&p.pending, 0) != 0
}

// Word is a 16-bit register shared across domains. It deliberately has no
// multi-stage chain: the contract for every Word in this design is that the
// writing side holds it stable whenever the reading side may capture it
// (the host must not rewrite the transmit word once a transaction has
// launched). The atomic access only guarantees the 16 bits are never torn;
// it does not arbitrate the race a misbehaving host can create, and the
// design does not guard against that.
type Word struct {
	v uint32
}

// Store writes the register.
func (w *Word) Store(v uint16) {
	atomic.StoreUint32(&w.v, uint32(v))
}

// Load reads the register.
func (w *Word) Load() uint16 {
	return uint16(atomic.LoadUint32(&w.v))
}
