package core

import (
	"encoding/json"
	"testing"

	"softspi/protocol"
)

// wireFrame assembles a complete frame around payload for feeding the
// bridge's transport directly.
func wireFrame(seq uint8, payload []byte) []byte {
	msgLen := protocol.MessageHeaderSize + len(payload) + protocol.MessageTrailerSize
	frame := make([]byte, 0, msgLen)
	frame = append(frame, uint8(msgLen), seq)
	frame = append(frame, payload...)
	crc := protocol.CRC16(frame)
	return append(frame, uint8(crc>>8), uint8(crc&0xFF), protocol.MessageValueSync)
}

// bridgeRig couples a CommandBridge to hand-built frames and collects
// what the device writes back.
type bridgeRig struct {
	mregs *MasterRegs
	sregs *SlaveRegs
	out   *protocol.ScratchOutput
	b     *CommandBridge
	seq   uint8
}

func newBridgeRig() *bridgeRig {
	r := &bridgeRig{
		mregs: NewMasterRegs(),
		sregs: NewSlaveRegs(),
		out:   protocol.NewScratchOutput(),
		seq:   0x10,
	}
	r.b = NewCommandBridge(r.mregs, r.sregs, r.out)
	return r
}

// send delivers one command frame and returns everything the device wrote
// back, output cleared for the next exchange.
func (r *bridgeRig) send(t *testing.T, name string, args ...uint32) []byte {
	t.Helper()

	cmd, ok := r.b.registry.GetCommandByName(name)
	if !ok {
		t.Fatalf("No such command: %s", name)
	}

	payload := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(payload, uint32(cmd.ID))
	for _, a := range args {
		protocol.EncodeVLQUint(payload, a)
	}

	frame := wireFrame(r.seq, payload.Result())
	r.seq = ((r.seq + 1) & protocol.MessageSeqMask) | protocol.MessageDest

	r.b.Transport().Receive(protocol.NewSliceInputBuffer(frame))

	written := append([]byte(nil), r.out.Result()...)
	r.out.Reset()
	return written
}

// responsePayloads strips framing from device output and returns the
// payloads of the non-empty frames, acks dropped.
func responsePayloads(t *testing.T, data []byte) [][]byte {
	t.Helper()

	var payloads [][]byte
	for len(data) > 0 {
		if data[0] == protocol.MessageValueSync {
			data = data[1:]
			continue
		}
		msgLen := int(data[0])
		if msgLen < protocol.MessageLengthMin || msgLen > len(data) {
			t.Fatalf("Malformed device frame: % x", data)
		}
		payload := data[protocol.MessageHeaderSize : msgLen-protocol.MessageTrailerSize]
		data = data[msgLen:]
		if len(payload) > 0 {
			payloads = append(payloads, append([]byte(nil), payload...))
		}
	}
	return payloads
}

func TestBridgeRegWriteMasterTx(t *testing.T) {
	r := newBridgeRig()

	out := r.send(t, "reg_write", RegMasterTx, 0xBEEF)

	if got := r.mregs.ReadTx(); got != 0xBEEF {
		t.Errorf("Expected tx 0xBEEF, got 0x%04x", got)
	}
	if !r.mregs.txWritten.Take() {
		t.Error("Expected the remote write to post the written strobe")
	}
	if resps := responsePayloads(t, out); len(resps) != 0 {
		t.Errorf("Expected no response frames for a write, got %d", len(resps))
	}
}

func TestBridgeControlWriteAndReadBack(t *testing.T) {
	r := newBridgeRig()

	r.send(t, "reg_write", RegMasterCtrl, MasterCtrlGo|MasterCtrlIntEna)

	if bits := r.mregs.ControlBits(); bits != MasterCtrlGo|MasterCtrlIntEna {
		t.Errorf("Expected control bits 0x%x, got 0x%x", MasterCtrlGo|MasterCtrlIntEna, bits)
	}

	out := r.send(t, "reg_read", RegMasterCtrl)
	resps := responsePayloads(t, out)
	if len(resps) != 1 {
		t.Fatalf("Expected one response frame, got %d", len(resps))
	}

	payload := resps[0]
	cmdID, _ := protocol.DecodeVLQUint(&payload)
	reg, _ := protocol.DecodeVLQUint(&payload)
	value, _ := protocol.DecodeVLQUint(&payload)

	if uint16(cmdID) != r.b.idRegReadResponse {
		t.Errorf("Expected reg_read_response ID %d, got %d", r.b.idRegReadResponse, cmdID)
	}
	if reg != RegMasterCtrl || value != uint32(MasterCtrlGo|MasterCtrlIntEna) {
		t.Errorf("Expected reg %d value 0x%x, got reg %d value 0x%x",
			RegMasterCtrl, MasterCtrlGo|MasterCtrlIntEna, reg, value)
	}
}

func TestBridgeStatusReadSeesSyncedFlags(t *testing.T) {
	r := newBridgeRig()

	r.sregs.tip.Set(true)
	r.sregs.Tick()
	r.sregs.Tick()

	out := r.send(t, "reg_read", RegSlaveStat)
	resps := responsePayloads(t, out)
	if len(resps) != 1 {
		t.Fatalf("Expected one response frame, got %d", len(resps))
	}

	payload := resps[0]
	protocol.DecodeVLQUint(&payload) // cmd ID
	protocol.DecodeVLQUint(&payload) // reg
	value, _ := protocol.DecodeVLQUint(&payload)

	if value&SlaveStatTIP == 0 {
		t.Errorf("Expected TIP set in remote status, got 0x%x", value)
	}
}

func TestBridgeSlaveRxReadCarriesStrobe(t *testing.T) {
	r := newBridgeRig()

	r.sregs.rx.Store(0x1234)

	out := r.send(t, "reg_read", RegSlaveRx)
	resps := responsePayloads(t, out)
	if len(resps) != 1 {
		t.Fatalf("Expected one response frame, got %d", len(resps))
	}

	payload := resps[0]
	protocol.DecodeVLQUint(&payload)
	protocol.DecodeVLQUint(&payload)
	value, _ := protocol.DecodeVLQUint(&payload)

	if value != 0x1234 {
		t.Errorf("Expected rx 0x1234, got 0x%04x", value)
	}
	if !r.sregs.rxRead.Take() {
		t.Error("Expected the remote rx read to post the read strobe")
	}
}

func TestBridgeRejectsBadRegisters(t *testing.T) {
	r := newBridgeRig()

	// Writes to read-only registers and unknown IDs are dropped; the
	// frame still acks, so the link keeps moving.
	r.send(t, "reg_write", RegMasterStat, 1)
	r.send(t, "reg_write", 99, 1)

	if bits := r.mregs.ControlBits(); bits != 0 {
		t.Errorf("Expected controls untouched, got 0x%x", bits)
	}

	// The link must still be alive.
	r.send(t, "reg_write", RegMasterTx, 0x5555)
	if got := r.mregs.ReadTx(); got != 0x5555 {
		t.Errorf("Expected follow-up write to land, got 0x%04x", got)
	}
}

func TestBridgeIdentifyChunked(t *testing.T) {
	r := newBridgeRig()
	want := r.b.Dict().Bytes()

	var rebuilt []byte
	for offset := uint32(0); ; {
		out := r.send(t, "identify", offset, 40)
		resps := responsePayloads(t, out)
		if len(resps) != 1 {
			t.Fatalf("Expected one identify_response, got %d", len(resps))
		}

		payload := resps[0]
		cmdID, _ := protocol.DecodeVLQUint(&payload)
		gotOffset, _ := protocol.DecodeVLQUint(&payload)
		data, err := protocol.DecodeVLQBytes(&payload)
		if err != nil {
			t.Fatalf("Bad identify_response payload: %v", err)
		}

		if uint16(cmdID) != r.b.idIdentifyResponse {
			t.Fatalf("Expected identify_response ID %d, got %d", r.b.idIdentifyResponse, cmdID)
		}
		if gotOffset != offset {
			t.Errorf("Expected offset %d echoed, got %d", offset, gotOffset)
		}

		if len(data) == 0 {
			break
		}
		rebuilt = append(rebuilt, data...)
		offset += uint32(len(data))
	}

	if string(rebuilt) != string(want) {
		t.Errorf("Chunked identify differs from dictionary:\n%s\nvs\n%s", rebuilt, want)
	}
}

func TestBridgeIrqNotifications(t *testing.T) {
	r := newBridgeRig()

	r.send(t, "reg_write", RegSlaveCtrl, SlaveCtrlIntEna)

	// Trigger asserts once the synced tip reaches the host domain.
	r.sregs.tip.Set(true)
	r.sregs.Tick()
	r.sregs.Tick()

	r.b.FlushIRQ()
	resps := responsePayloads(t, append([]byte(nil), r.out.Result()...))
	r.out.Reset()
	if len(resps) != 1 {
		t.Fatalf("Expected one irq_state frame, got %d", len(resps))
	}

	payload := resps[0]
	cmdID, _ := protocol.DecodeVLQUint(&payload)
	eng, _ := protocol.DecodeVLQUint(&payload)
	level, _ := protocol.DecodeVLQUint(&payload)
	if uint16(cmdID) != r.b.idIrqState || eng != EngineSlave || level != 1 {
		t.Errorf("Expected irq_state slave 1, got cmd %d eng %d level %d", cmdID, eng, level)
	}

	// No change, no traffic.
	r.b.FlushIRQ()
	if r.out.CurPosition() != 0 {
		t.Errorf("Expected no frames without a change, got % x", r.out.Result())
	}

	// Release and expect the falling notification.
	r.sregs.tip.Set(false)
	r.sregs.Tick()
	r.sregs.Tick()

	r.b.FlushIRQ()
	resps = responsePayloads(t, append([]byte(nil), r.out.Result()...))
	r.out.Reset()
	if len(resps) != 1 {
		t.Fatalf("Expected one falling irq_state frame, got %d", len(resps))
	}
	payload = resps[0]
	protocol.DecodeVLQUint(&payload)
	eng, _ = protocol.DecodeVLQUint(&payload)
	level, _ = protocol.DecodeVLQUint(&payload)
	if eng != EngineSlave || level != 0 {
		t.Errorf("Expected irq_state slave 0, got eng %d level %d", eng, level)
	}
}

func TestBridgeDictionaryDeclares(t *testing.T) {
	r := newBridgeRig()

	var parsed struct {
		Config       map[string]string         `json:"config"`
		Commands     map[string]int            `json:"commands"`
		Responses    map[string]int            `json:"responses"`
		Enumerations map[string]map[string]int `json:"enumerations"`
	}
	if err := json.Unmarshal(r.b.Dict().Bytes(), &parsed); err != nil {
		t.Fatalf("Bridge dictionary is not valid JSON: %v", err)
	}

	// Bootstrap IDs are fixed by registration order.
	if id := parsed.Responses["identify_response offset=%u data=%*s"]; id != 0 {
		t.Errorf("Expected identify_response at ID 0, got %d", id)
	}
	if id := parsed.Commands["identify offset=%u count=%c"]; id != 1 {
		t.Errorf("Expected identify at ID 1, got %d", id)
	}

	if _, ok := parsed.Commands["reg_write reg=%c value=%u"]; !ok {
		t.Errorf("Missing reg_write: %v", parsed.Commands)
	}
	if _, ok := parsed.Commands["reg_read reg=%c"]; !ok {
		t.Errorf("Missing reg_read: %v", parsed.Commands)
	}

	regs := parsed.Enumerations["reg"]
	if regs["master_tx"] != RegMasterTx || regs["slave_stat"] != RegSlaveStat {
		t.Errorf("Register enumeration wrong: %v", regs)
	}
	if parsed.Config["FRAME_BITS"] != "16" {
		t.Errorf("Expected FRAME_BITS 16, got %q", parsed.Config["FRAME_BITS"])
	}
}
