package core

// FrameDriver runs one complete bus frame in hardware: select asserted, all
// FrameBits clocks issued with tx shifted out MSB first, the sampled input
// word returned, select released. The call blocks for the frame duration,
// which is expected to be short against the caller's tick period.
//
// Implementations live under targets/; the simulator has no use for one
// because its frames are ticked bit by bit.
type FrameDriver interface {
	RunFrame(tx uint16) (rx uint16, err error)
}

// HardwareMaster is the transmit-side engine for targets where the clocking
// and shifting run in silicon and only the register contract is left to do.
// It honors the same MasterRegs semantics as Master: a rising go edge
// launches exactly one frame, tip covers it, txfull tracks the pending
// word, the received word is committed at frame end.
//
// Tick must be called from a single goroutine. The frame itself runs inside
// Tick, so tip's high phase is real but brief; hosts observe the busy phase
// through txfull, which spans the write-to-launch window.
type HardwareMaster struct {
	regs   *MasterRegs
	driver FrameDriver

	goEdge *Edge

	frameErrors uint32
}

// NewHardwareMaster wires the engine to its register block and frame
// driver. Idle line levels are the driver's concern when it configures its
// pins.
func NewHardwareMaster(regs *MasterRegs, driver FrameDriver) *HardwareMaster {
	return &HardwareMaster{
		regs:   regs,
		driver: driver,
		goEdge: NewEdge(&regs.goLine, SyncStages),
	}
}

// Tick advances the engine one clock of its own domain.
func (m *HardwareMaster) Tick() {
	m.goEdge.Tick()

	if m.goEdge.Rising() {
		tx := m.regs.tx.Load()
		m.regs.txWritten.Take()
		m.regs.txfull.Set(false)
		m.regs.tip.Set(true)
		recordFrameEvent(EvtLaunch, EngineMaster, tx)

		rx, err := m.driver.RunFrame(tx)
		if err != nil {
			// The frame is lost; the receive register keeps its last
			// committed word.
			m.frameErrors++
			m.regs.tip.Set(false)
			return
		}
		m.regs.rx.Store(rx)
		m.regs.tip.Set(false)
		recordFrameEvent(EvtComplete, EngineMaster, rx)
		return
	}

	if m.regs.txWritten.Take() {
		m.regs.txfull.Set(true)
	}
}

// FrameErrors returns how many frames the driver failed to run.
func (m *HardwareMaster) FrameErrors() uint32 {
	return m.frameErrors
}
