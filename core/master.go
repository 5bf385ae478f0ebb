package core

// masterState tracks the launch state machine.
type masterState uint8

const (
	masterIdle masterState = iota
	masterRun
)

// FrameBits is the fixed transfer length. Every transaction shifts exactly
// this many bits, most significant first; there is no partial-frame mode.
const FrameBits = 16

// Master is the transmit-side engine. It owns the clock, select and data-out
// lines of a MasterPads and runs entirely inside its own clock domain: every
// call to Tick is one engine clock. The paired MasterRegs block is the only
// way other goroutines talk to it.
//
// The serial clock is gated. It pulses only while a frame is shifting, so a
// completed transaction has produced exactly FrameBits rising edges on the
// wire and an idle bus is electrically quiet.
type Master struct {
	regs *MasterRegs
	pads MasterPads

	goEdge *Edge

	state  masterState
	shadow uint16 // transmit shift register, loaded at launch
	accum  uint16 // receive shift register, mirrored into regs.rx
	count  uint8  // data clocks remaining after the launch edge
}

// NewMaster wires an engine to its register block and pad driver. No pad
// writes happen here; idle line levels (clock high, select released) are
// the pad driver's concern when it configures its pins.
func NewMaster(regs *MasterRegs, pads MasterPads) *Master {
	return &Master{
		regs:   regs,
		pads:   pads,
		goEdge: NewEdge(&regs.goLine, SyncStages),
	}
}

// Tick advances the engine one clock of its own domain. Must be called from
// a single goroutine.
func (m *Master) Tick() {
	m.goEdge.Tick()

	switch m.state {
	case masterIdle:
		if m.goEdge.Rising() {
			m.launch()
			return
		}
		m.pads.SetCSN(true)
		m.regs.tip.Set(false)
		if m.regs.txWritten.Take() {
			m.regs.txfull.Set(true)
		}

	case masterRun:
		if m.count > 0 {
			m.sample()
			m.pads.SetMOSI(m.shadow&0x8000 != 0)
			m.shadow <<= 1
			m.count--
			m.pulse()
			return
		}
		// All bits shifted. Release the bus and go idle; no clock edge
		// and no sample on this tick.
		m.pads.SetCSN(true)
		m.regs.tip.Set(false)
		m.state = masterIdle
		recordFrameEvent(EvtComplete, EngineMaster, m.accum)
	}
}

// launch starts a frame: capture the transmit word, drive its top bit, take
// the first input sample and issue the first clock edge, all on one tick.
// The captured word is consumed; a strobe posted before this point must not
// resurface as a pending-word flag afterwards.
func (m *Master) launch() {
	tx := m.regs.tx.Load()
	m.regs.txWritten.Take()
	m.regs.txfull.Set(false)
	m.regs.tip.Set(true)

	m.pads.SetCSN(false)
	m.pads.SetMOSI(tx&0x8000 != 0)
	m.sample()

	// Pre-shifted copy: bit 15 of the shadow is always the next bit to
	// drive, so the run loop never needs the original word again.
	m.shadow = tx << 1
	m.count = FrameBits - 1
	m.state = masterRun
	m.pulse()
	recordFrameEvent(EvtLaunch, EngineMaster, tx)
}

// sample shifts the current input level into the receive accumulator and
// publishes the partial word. Sampling happens before the clock pulse of
// the same tick, so the peer's output from the previous edge is what lands
// in the accumulator.
func (m *Master) sample() {
	var bit uint16
	if m.pads.MISO() {
		bit = 1
	}
	m.accum = m.accum<<1 | bit
	m.regs.rx.Store(m.accum)
}

// pulse issues one serial clock: falling edge, then rising. The idle level
// is high and every pulse returns to it.
func (m *Master) pulse() {
	m.pads.SetSCLK(false)
	m.pads.SetSCLK(true)
}
