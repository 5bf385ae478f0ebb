package core

// Register bit layouts, host view. Bit 0 is the first field of each
// register. Control registers are write-only, status registers read-only;
// the raw data words have their own accessors.
const (
	// Master control
	MasterCtrlGo     = 1 << 0 // start a transaction; does not self-clear
	MasterCtrlIntEna = 1 << 1 // enable the interrupt trigger

	// Master status
	MasterStatTIP    = 1 << 0 // transaction in progress
	MasterStatTxFull = 1 << 1 // transmit word written but not yet launched

	// Slave control
	SlaveCtrlIntEna = 1 << 0 // enable the interrupt trigger
	SlaveCtrlClrErr = 1 << 1 // write 1 to clear the overrun flag (pulse)

	// Slave status
	SlaveStatTIP    = 1 << 0 // frame in progress (chip select asserted)
	SlaveStatRxFull = 1 << 1 // unread received word present
	SlaveStatRxOver = 1 << 2 // a frame completed while rxfull was still set
)

// MasterRegs is the host-visible register block of the master engine. The
// host writes the transmit word and control bits and reads back the receive
// word and status; the engine sees control through synchronizers in its own
// domain and drives the status source levels that Tick relays back. Tick is
// the host domain's clock and belongs to exactly one goroutine; every other
// method may be called from any goroutine at any time, which is how the
// wire-protocol bridge shares the block with the ticking domain.
type MasterRegs struct {
	tx Word // host -> engine, captured at launch
	rx Word // engine -> host, live accumulator view

	goLine    Level     // control: launch request level
	intEna    Level     // control: interrupt enable
	txWritten PulseSync // strobe: transmit word was rewritten

	// status sources, driven from the engine's domain
	tip    Level
	txfull Level

	// host-domain synchronizers over the status sources
	tipSync    *Sync
	txfullSync *Sync

	irq Trigger
}

// NewMasterRegs builds the register block with default-depth synchronizers.
func NewMasterRegs() *MasterRegs {
	r := &MasterRegs{}
	r.tipSync = NewSync(&r.tip, SyncStages)
	r.txfullSync = NewSync(&r.txfull, SyncStages)
	return r
}

// WriteTx stores a new transmit word and posts the written strobe. Writing
// while a transaction is in progress risks corrupting the in-flight shift
// register; the host is obliged to check Status first. Nothing here
// enforces that.
func (r *MasterRegs) WriteTx(v uint16) {
	r.tx.Store(v)
	r.txWritten.Post()
}

// ReadTx returns the last written transmit word. Control storage reads
// back what the host put there; the engine's shadow copy is unaffected.
func (r *MasterRegs) ReadTx() uint16 {
	return r.tx.Load()
}

// ReadRx returns the receive word. It mirrors the engine's accumulator and
// is only valid while no transaction is in progress.
func (r *MasterRegs) ReadRx() uint16 {
	return r.rx.Load()
}

// SetGo drives the launch request level. The engine starts a transaction on
// the synchronized rising edge only, so after a transfer the host must
// lower and re-raise the bit to start another.
func (r *MasterRegs) SetGo(level bool) {
	r.goLine.Set(level)
}

// SetIntEnable gates the interrupt trigger.
func (r *MasterRegs) SetIntEnable(level bool) {
	r.intEna.Set(level)
}

// WriteControl applies a full control register write.
func (r *MasterRegs) WriteControl(bits uint16) {
	r.SetGo(bits&MasterCtrlGo != 0)
	r.SetIntEnable(bits&MasterCtrlIntEna != 0)
}

// ControlBits returns the control register as last written. Reads happen
// in the writer's own domain, so the raw levels are the truth here.
func (r *MasterRegs) ControlBits() uint16 {
	var bits uint16
	if r.goLine.Get() {
		bits |= MasterCtrlGo
	}
	if r.intEna.Get() {
		bits |= MasterCtrlIntEna
	}
	return bits
}

// Status returns the synchronized transaction-in-progress and txfull flags
// as of the last host tick.
func (r *MasterRegs) Status() (tip, txfull bool) {
	return r.tipSync.Out(), r.txfullSync.Out()
}

// StatusBits returns the status register value.
func (r *MasterRegs) StatusBits() uint16 {
	var bits uint16
	tip, txfull := r.Status()
	if tip {
		bits |= MasterStatTIP
	}
	if txfull {
		bits |= MasterStatTxFull
	}
	return bits
}

// IRQ exposes the interrupt trigger line.
func (r *MasterRegs) IRQ() *Trigger {
	return &r.irq
}

// Tick advances the host-domain synchronizers one host clock and
// re-evaluates the interrupt trigger, which is level-asserted while the
// enable bit and the synchronized busy flag are both set.
func (r *MasterRegs) Tick() {
	tip := r.tipSync.Tick()
	r.txfullSync.Tick()
	r.irq.set(r.intEna.Get() && tip)
}

// SlaveRegs is the host-visible register block of the slave engine. Same
// domain rules as MasterRegs: Tick belongs to one host goroutine, the rest
// may be called from any goroutine at any time.
type SlaveRegs struct {
	tx Word // host -> engine, reloaded into the shifter between frames
	rx Word // engine -> host, committed at frame end only

	intEna Level
	rxRead PulseSync // strobe: host consumed the receive word
	clrErr PulseSync // strobe: host cleared the overrun flag

	// status sources, driven from the engine's domain
	tip    Level
	rxfull Level
	rxover Level

	tipSync    *Sync
	rxfullSync *Sync
	rxoverSync *Sync

	irq Trigger
}

// NewSlaveRegs builds the register block with default-depth synchronizers.
func NewSlaveRegs() *SlaveRegs {
	r := &SlaveRegs{}
	r.tipSync = NewSync(&r.tip, SyncStages)
	r.rxfullSync = NewSync(&r.rxfull, SyncStages)
	r.rxoverSync = NewSync(&r.rxover, SyncStages)
	return r
}

// WriteTx stores the word the engine will shift out on the next frame. The
// engine picks it up while deselected; a write landing mid-frame takes
// effect on the frame after.
func (r *SlaveRegs) WriteTx(v uint16) {
	r.tx.Store(v)
}

// ReadTx returns the last written transmit word.
func (r *SlaveRegs) ReadTx() uint16 {
	return r.tx.Load()
}

// ReadRx returns the last committed receive word and posts the read strobe
// that clears rxfull. The clear is unconditional, even mid-frame; the
// read strobe and in-frame shifting are independent signals and may race,
// which the design accepts rather than hides.
func (r *SlaveRegs) ReadRx() uint16 {
	v := r.rx.Load()
	r.rxRead.Post()
	return v
}

// PeekRx returns the receive word without the consumption side effect.
// Debug use only; real hosts read through ReadRx so rxfull tracks them.
func (r *SlaveRegs) PeekRx() uint16 {
	return r.rx.Load()
}

// SetIntEnable gates the interrupt trigger.
func (r *SlaveRegs) SetIntEnable(level bool) {
	r.intEna.Set(level)
}

// ClearError posts the overrun clear strobe. With no overrun pending the
// strobe is a no-op.
func (r *SlaveRegs) ClearError() {
	r.clrErr.Post()
}

// WriteControl applies a full control register write. The clear bit is a
// pulse: writing 1 posts one strobe, writing 0 does nothing.
func (r *SlaveRegs) WriteControl(bits uint16) {
	r.SetIntEnable(bits&SlaveCtrlIntEna != 0)
	if bits&SlaveCtrlClrErr != 0 {
		r.ClearError()
	}
}

// ControlBits returns the control register as last written. The clear bit
// is a pulse and always reads back zero.
func (r *SlaveRegs) ControlBits() uint16 {
	var bits uint16
	if r.intEna.Get() {
		bits |= SlaveCtrlIntEna
	}
	return bits
}

// Status returns the synchronized flags as of the last host tick.
func (r *SlaveRegs) Status() (tip, rxfull, rxover bool) {
	return r.tipSync.Out(), r.rxfullSync.Out(), r.rxoverSync.Out()
}

// StatusBits returns the status register value.
func (r *SlaveRegs) StatusBits() uint16 {
	var bits uint16
	tip, rxfull, rxover := r.Status()
	if tip {
		bits |= SlaveStatTIP
	}
	if rxfull {
		bits |= SlaveStatRxFull
	}
	if rxover {
		bits |= SlaveStatRxOver
	}
	return bits
}

// IRQ exposes the interrupt trigger line.
func (r *SlaveRegs) IRQ() *Trigger {
	return &r.irq
}

// Tick advances the host-domain synchronizers and the interrupt trigger.
func (r *SlaveRegs) Tick() {
	tip := r.tipSync.Tick()
	r.rxfullSync.Tick()
	r.rxoverSync.Tick()
	r.irq.set(r.intEna.Get() && tip)
}
