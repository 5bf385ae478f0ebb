package core

import (
	"errors"

	"softspi/protocol"
)

// Register IDs on the remote-access wire. One flat space covers both
// blocks; the dictionary's "reg" enumeration advertises the same names in
// the same order.
const (
	RegMasterTx   = 0
	RegMasterRx   = 1
	RegMasterCtrl = 2
	RegMasterStat = 3
	RegSlaveTx    = 4
	RegSlaveRx    = 5
	RegSlaveCtrl  = 6
	RegSlaveStat  = 7
)

var regNames = []string{
	"master_tx", "master_rx", "master_ctrl", "master_stat",
	"slave_tx", "slave_rx", "slave_ctrl", "slave_stat",
}

var (
	ErrUnknownRegister  = errors.New("unknown register")
	ErrRegisterReadOnly = errors.New("register is read-only")
)

// CommandBridge exposes the two register blocks over the wire protocol. A
// decoded reg_write or reg_read lands on MasterRegs/SlaveRegs exactly as
// the in-process calls do, side effects included; interrupt line changes
// go back out as asynchronous irq_state notifications.
//
// The bridge owns its transport. Everything here runs on the goroutine
// that pumps Transport.Receive and FlushIRQ; none of it is safe for
// concurrent use.
type CommandBridge struct {
	registry  *CommandRegistry
	dict      *Dictionary
	master    *MasterRegs
	slave     *SlaveRegs
	transport *protocol.Transport

	idIdentifyResponse uint16
	idRegReadResponse  uint16
	idIrqState         uint16

	lastIrq [2]bool // last notified level, indexed by engine
}

// NewCommandBridge wires a bridge for the given register blocks, writing
// frames to output. Bootstrap registration order matters: a host may
// hardcode identify_response=0 and identify=1 before it has a dictionary.
func NewCommandBridge(master *MasterRegs, slave *SlaveRegs, output protocol.OutputBuffer) *CommandBridge {
	b := &CommandBridge{
		registry: NewCommandRegistry(),
		master:   master,
		slave:    slave,
	}
	b.dict = NewDictionary(b.registry)
	b.transport = protocol.NewTransport(output, b.dispatch)

	b.idIdentifyResponse = b.registry.RegisterResponse("identify_response", "offset=%u data=%*s")
	b.registry.Register("identify", "offset=%u count=%c", b.handleIdentify)
	b.registry.Register("reg_write", "reg=%c value=%u", b.handleRegWrite)
	b.registry.Register("reg_read", "reg=%c", b.handleRegRead)
	b.idRegReadResponse = b.registry.RegisterResponse("reg_read_response", "reg=%c value=%u")
	b.idIrqState = b.registry.RegisterResponse("irq_state", "eng=%c level=%c")

	b.dict.AddEnumeration("reg", regNames)
	b.dict.AddEnumeration("eng", []string{"master", "slave"})
	b.dict.AddConstant("FRAME_BITS", FrameBits)
	b.dict.AddConstant("SYNC_STAGES", SyncStages)

	return b
}

// Transport returns the owned device transport, for the serve loop to
// pump and to hang flush/reset callbacks on.
func (b *CommandBridge) Transport() *protocol.Transport {
	return b.transport
}

// Dict returns the dictionary so rigs and targets can add their own
// constants before the first identify.
func (b *CommandBridge) Dict() *Dictionary {
	return b.dict
}

func (b *CommandBridge) dispatch(cmdID uint16, data *[]byte) error {
	return b.registry.Dispatch(cmdID, data)
}

func (b *CommandBridge) handleIdentify(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	chunk := b.dict.Chunk(offset, uint8(count))

	b.transport.SendCommand(b.idIdentifyResponse, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})
	return nil
}

func (b *CommandBridge) handleRegWrite(data *[]byte) error {
	reg, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	value, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	switch reg {
	case RegMasterTx:
		b.master.WriteTx(uint16(value))
	case RegMasterCtrl:
		b.master.WriteControl(uint16(value))
	case RegSlaveTx:
		b.slave.WriteTx(uint16(value))
	case RegSlaveCtrl:
		b.slave.WriteControl(uint16(value))
	case RegMasterRx, RegMasterStat, RegSlaveRx, RegSlaveStat:
		return ErrRegisterReadOnly
	default:
		return ErrUnknownRegister
	}
	return nil
}

func (b *CommandBridge) handleRegRead(data *[]byte) error {
	reg, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	var value uint16
	switch reg {
	case RegMasterTx:
		value = b.master.ReadTx()
	case RegMasterRx:
		value = b.master.ReadRx()
	case RegMasterCtrl:
		value = b.master.ControlBits()
	case RegMasterStat:
		value = b.master.StatusBits()
	case RegSlaveTx:
		value = b.slave.ReadTx()
	case RegSlaveRx:
		// Carries the read strobe: a remote read clears rxfull
		// exactly like a local one.
		value = b.slave.ReadRx()
	case RegSlaveCtrl:
		value = b.slave.ControlBits()
	case RegSlaveStat:
		value = b.slave.StatusBits()
	default:
		return ErrUnknownRegister
	}

	b.transport.SendCommand(b.idRegReadResponse, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, reg)
		protocol.EncodeVLQUint(output, uint32(value))
	})
	return nil
}

// SyncIRQ forgets the last notified levels so the next FlushIRQ reports
// both lines afresh. Serve loops call it at session start: a level line
// has no edge to replay, so a new observer is simply told where the lines
// stand now.
func (b *CommandBridge) SyncIRQ() {
	b.lastIrq[EngineMaster] = !b.master.IRQ().Asserted()
	b.lastIrq[EngineSlave] = !b.slave.IRQ().Asserted()
}

// FlushIRQ compares both interrupt lines against the last notified state
// and emits irq_state frames for any change. The serve loop calls this
// after each receive pass and on host ticks.
func (b *CommandBridge) FlushIRQ() {
	b.flushIrqLine(EngineMaster, b.master.IRQ())
	b.flushIrqLine(EngineSlave, b.slave.IRQ())
}

func (b *CommandBridge) flushIrqLine(eng uint8, trig *Trigger) {
	level := trig.Asserted()
	if level == b.lastIrq[eng] {
		return
	}
	b.lastIrq[eng] = level

	b.transport.SendCommand(b.idIrqState, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(eng))
		if level {
			protocol.EncodeVLQUint(output, 1)
		} else {
			protocol.EncodeVLQUint(output, 0)
		}
	})
}
