package core

// Slave is the responder engine. It has no go bit; the remote master frames
// every transfer with chip select, and the serial clock arrives as an
// external input. The engine therefore straddles two clock sources:
//
//   - ClockEdge runs in the bus clock domain. The pad driver calls it on
//     every serial clock transition, and it does nothing but shift.
//   - Tick runs in the device's own free-running domain and owns all the
//     host-visible flag logic, driven by a synchronized copy of chip select.
//
// The shift register is touched from both sides. That is the same loose
// coupling the register file has always had, and the races it allows are
// confined to corrupting one frame's data, never the engine state; see the
// notes on the reload path below.
type Slave struct {
	regs *SlaveRegs
	pads SlavePads

	csnEdge *Edge
	txrx    Word // shared shift register: out the top, in the bottom
}

// NewSlave wires the engine to its register block and pad driver.
func NewSlave(regs *SlaveRegs, pads SlavePads) *Slave {
	s := &Slave{regs: regs, pads: pads}
	s.csnEdge = NewEdge(BitFunc(pads.CSN), SyncStages)
	return s
}

// ClockEdge is the bus-domain input, called by the pad driver for every
// serial clock transition. Only rising edges while selected do anything:
// shift the input bit into the bottom of the register and present the new
// top bit on data-out. Select is read raw here; gating a shift on the live
// select line is a same-domain decision, not a crossing.
func (s *Slave) ClockEdge(rising bool) {
	if !rising {
		return
	}
	if s.pads.CSN() {
		return
	}
	v := s.txrx.Load()
	var bit uint16
	if s.pads.MOSI() {
		bit = 1
	}
	v = v<<1 | bit
	s.txrx.Store(v)
	s.pads.SetMISO(v&0x8000 != 0)
}

// Tick advances the flag logic one clock of the device domain. Must be
// called from a single goroutine.
//
// The frame boundary is the synchronized select going high again: that is
// the done pulse. On it the shifted-in word is committed to the receive
// register, unless an unread word is still there, in which case the word is
// dropped and the sticky overrun flag raised instead.
func (s *Slave) Tick() {
	s.csnEdge.Tick()
	tip := !s.csnEdge.High()
	s.regs.tip.Set(tip)
	done := s.csnEdge.Rising()

	// Drain both host strobes every tick. A strobe that loses the
	// priority race below is consumed anyway, like any one-clock pulse.
	rd := s.regs.rxRead.Take()
	clr := s.regs.clrErr.Take()

	if rd {
		// The read wins over everything on this tick, including a
		// coinciding done pulse: that frame's word is dropped and no
		// flag moves. Same priority the register file has always had.
		s.regs.rxfull.Set(false)
	} else {
		if done {
			if !s.regs.rxfull.Get() {
				w := s.txrx.Load()
				s.regs.rx.Store(w)
				s.regs.rxfull.Set(true)
				recordFrameEvent(EvtCommit, EngineSlave, w)
			} else {
				s.regs.rxover.Set(true)
				recordFrameEvent(EvtOverrun, EngineSlave, s.txrx.Load())
			}
		}
		if tip && s.regs.rxfull.Get() {
			// A new frame is underway with the previous word still
			// unread. Sticky until the host clears it.
			s.regs.rxover.Set(true)
		} else if clr {
			s.regs.rxover.Set(false)
			recordFrameEvent(EvtClear, EngineSlave, 0)
		}
	}

	// Between frames, keep the shifter loaded with the current transmit
	// word and its top bit on data-out, ready for the next select. This
	// reads the raw select line: the reload window closes the instant
	// select falls, but a fall landing mid-reload can clobber the first
	// shifted bit of the new frame. Accepted: the corruption is bounded
	// to that frame's data and the host sees it as a bad word, never as
	// stuck engine state.
	if s.pads.CSN() {
		tx := s.regs.tx.Load()
		s.txrx.Store(tx)
		s.pads.SetMISO(tx&0x8000 != 0)
	}
}
