package device

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"softspi/core"
	"softspi/host/serial"
	"softspi/protocol"
)

// Bootstrap command IDs. Registration order on the device pins these so a
// host can fetch the dictionary before it knows any names.
const (
	cmdIdentifyResponse = 0
	cmdIdentify         = 1
)

const responseTimeout = 1 * time.Second

var (
	ErrNotConnected = errors.New("not connected")
	ErrNoDictionary = errors.New("dictionary not loaded")
)

// Engine selects which engine's registers a typed operation touches. The
// values match the wire protocol's "eng" enumeration.
type Engine uint8

const (
	Master Engine = 0
	Slave  Engine = 1
)

// String names the engine as the wire enumeration does.
func (e Engine) String() string {
	if e == Slave {
		return "slave"
	}
	return "master"
}

func (e Engine) reg(field string) string {
	return e.String() + "_" + field
}

// Device is a client for one protocol engine pair reached over a serial
// link. Connect, retrieve the dictionary, then drive the register blocks
// through the typed operations; they behave exactly like the in-process
// register API, read side effects included.
//
// Methods belong to a single caller goroutine. The irq callback is the
// exception: it arrives on the transport's reader goroutine.
type Device struct {
	// Transport layer
	transport *protocol.HostTransport

	// Serial port
	port serial.Port

	// Dictionary data
	dictionary     *Dictionary
	dictionaryData []byte

	// Connection state
	connected bool

	// IDs resolved from the dictionary. The write-side IDs and the
	// register map are read only from the caller goroutine; the
	// response-side IDs are shared with the reader goroutine and sit
	// behind mu.
	idRegWrite uint16
	idRegRead  uint16
	regIDs     map[string]uint32

	mu                sync.Mutex
	haveIDs           bool
	idRegReadResponse uint16
	idIrqState        uint16
	irqHandler        func(eng Engine, level bool)

	// Last written control register values, so single-bit operations
	// do not disturb their neighbors.
	ctrlShadow [2]uint16

	// Serializes the send-then-wait operations.
	opMu sync.Mutex

	identifyCh chan identifyChunk
	regReadCh  chan regValue
}

type identifyChunk struct {
	offset uint32
	data   []byte
}

type regValue struct {
	reg   uint32
	value uint16
}

// Dictionary represents the parsed device dictionary
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`
}

// NewDevice creates a new client instance (not yet connected)
func NewDevice() *Device {
	return &Device{}
}

// Connect opens the named serial device and attaches to it
func (d *Device) Connect(path string) error {
	return d.ConnectWithConfig(serial.DefaultConfig(path))
}

// ConnectWithConfig opens a serial port with a custom config
func (d *Device) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}

	if err := d.ConnectPort(port); err != nil {
		port.Close()
		return err
	}

	// Give the device time to initialize (if it just powered on)
	time.Sleep(100 * time.Millisecond)

	return nil
}

// ConnectPort attaches to an already open port: a TCP connection to a
// simulator, one end of a pipe in tests. Close tears the port down along
// with the transport.
func (d *Device) ConnectPort(port serial.Port) error {
	if d.connected {
		return errors.New("already connected")
	}

	d.port = port
	d.transport = protocol.NewHostTransport(port)
	d.identifyCh = make(chan identifyChunk, 1)
	d.regReadCh = make(chan regValue, 4)
	d.transport.SetResponseHandler(d.handleResponse)
	d.connected = true

	return nil
}

// Close closes the connection
func (d *Device) Close() error {
	if d.transport != nil {
		if err := d.transport.Close(); err != nil {
			return err
		}
	}
	d.connected = false
	return nil
}

// IsConnected returns whether the client is connected
func (d *Device) IsConnected() bool {
	return d.connected
}

// OnIRQ registers a callback for irq_state notifications. One callback
// per device; registering replaces the previous one. The callback runs on
// the transport's reader goroutine and must not block.
func (d *Device) OnIRQ(fn func(eng Engine, level bool)) {
	d.mu.Lock()
	d.irqHandler = fn
	d.mu.Unlock()
}

// RetrieveDictionary retrieves the complete dictionary from the device
// and resolves the command and register IDs the typed operations use.
func (d *Device) RetrieveDictionary() error {
	if !d.connected {
		return ErrNotConnected
	}

	// Dictionary arrives in chunks. Start with offset 0, count 40.
	var dictBuffer bytes.Buffer
	offset := uint32(0)
	chunkSize := uint8(40)
	maxIterations := 1000 // Safety limit

	for i := 0; i < maxIterations; i++ {
		chunk, err := d.sendIdentify(offset, chunkSize)
		if err != nil {
			return fmt.Errorf("failed to retrieve dictionary chunk at offset %d: %w", offset, err)
		}

		if len(chunk) == 0 {
			// No more data
			break
		}

		dictBuffer.Write(chunk)
		offset += uint32(len(chunk))

		// If we got less than requested, we're done
		if len(chunk) < int(chunkSize) {
			break
		}
	}

	d.dictionaryData = dictBuffer.Bytes()

	if err := d.parseDictionary(); err != nil {
		return fmt.Errorf("failed to parse dictionary: %w", err)
	}

	return d.resolveIDs()
}

// sendIdentify sends an identify command and waits for the response chunk
func (d *Device) sendIdentify(offset uint32, count uint8) ([]byte, error) {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	// Drop a chunk left over from a timed-out request.
	select {
	case <-d.identifyCh:
	default:
	}

	err := d.transport.SendCommand(cmdIdentify, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, uint32(count))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send identify command: %w", err)
	}

	// The device queues the response ahead of the acknowledgment, so by
	// the time SendCommand returns the chunk is normally already here.
	select {
	case chunk := <-d.identifyCh:
		if chunk.offset != offset {
			return nil, fmt.Errorf("offset mismatch: expected %d, got %d", offset, chunk.offset)
		}
		return chunk.data, nil

	case <-time.After(responseTimeout):
		return nil, fmt.Errorf("no identify response within %v", responseTimeout)
	}
}

// parseDictionary parses the dictionary JSON
func (d *Device) parseDictionary() error {
	dict := &Dictionary{}
	if err := json.Unmarshal(d.dictionaryData, dict); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	d.dictionary = dict
	return nil
}

// resolveIDs caches the command IDs and register numbers the typed
// operations need.
func (d *Device) resolveIDs() error {
	regWrite, err := lookupName(d.dictionary.Commands, "reg_write")
	if err != nil {
		return err
	}
	regRead, err := lookupName(d.dictionary.Commands, "reg_read")
	if err != nil {
		return err
	}
	readResp, err := lookupName(d.dictionary.Responses, "reg_read_response")
	if err != nil {
		return err
	}
	irqState, err := lookupName(d.dictionary.Responses, "irq_state")
	if err != nil {
		return err
	}

	regs := d.dictionary.Enumerations["reg"]
	if len(regs) == 0 {
		return errors.New("dictionary has no reg enumeration")
	}
	ids := make(map[string]uint32, len(regs))
	for name, id := range regs {
		ids[name] = uint32(id)
	}

	d.idRegWrite = regWrite
	d.idRegRead = regRead
	d.regIDs = ids

	d.mu.Lock()
	d.idRegReadResponse = readResp
	d.idIrqState = irqState
	d.haveIDs = true
	d.mu.Unlock()

	return nil
}

// lookupName finds a dictionary entry by command name. Keys carry the
// full format string ("reg_write reg=%c value=%u"); the name is the
// first token.
func lookupName(table map[string]int, name string) (uint16, error) {
	for key, id := range table {
		head, _, _ := strings.Cut(key, " ")
		if head == name {
			return uint16(id), nil
		}
	}
	return 0, fmt.Errorf("dictionary has no entry for %q", name)
}

// handleResponse dispatches frames from the device (reader goroutine)
func (d *Device) handleResponse(cmdID uint16, data *[]byte) error {
	if cmdID == cmdIdentifyResponse {
		offset, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		chunk, err := protocol.DecodeVLQBytes(data)
		if err != nil {
			return err
		}
		select {
		case d.identifyCh <- identifyChunk{offset: offset, data: chunk}:
		default:
		}
		return nil
	}

	d.mu.Lock()
	have := d.haveIDs
	idRead := d.idRegReadResponse
	idIrq := d.idIrqState
	irq := d.irqHandler
	d.mu.Unlock()

	if !have {
		return nil
	}

	switch cmdID {
	case idRead:
		reg, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		value, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		select {
		case d.regReadCh <- regValue{reg: reg, value: uint16(value)}:
		default:
		}

	case idIrq:
		eng, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		level, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		if eng <= uint32(Slave) && irq != nil {
			irq(Engine(eng), level != 0)
		}
	}
	return nil
}

// WriteReg writes a register by its dictionary name
func (d *Device) WriteReg(name string, value uint16) error {
	if !d.connected {
		return ErrNotConnected
	}
	if d.dictionary == nil {
		return ErrNoDictionary
	}

	id, err := d.regID(name)
	if err != nil {
		return err
	}

	return d.transport.SendCommand(d.idRegWrite, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, id)
		protocol.EncodeVLQUint(output, uint32(value))
	})
}

// ReadReg reads a register by its dictionary name. Reading slave_rx
// consumes the word on the device, clearing rxfull, exactly like an
// in-process read.
func (d *Device) ReadReg(name string) (uint16, error) {
	if !d.connected {
		return 0, ErrNotConnected
	}
	if d.dictionary == nil {
		return 0, ErrNoDictionary
	}

	id, err := d.regID(name)
	if err != nil {
		return 0, err
	}

	d.opMu.Lock()
	defer d.opMu.Unlock()

	// Drop a response left over from a timed-out read.
	select {
	case <-d.regReadCh:
	default:
	}

	err = d.transport.SendCommand(d.idRegRead, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, id)
	})
	if err != nil {
		return 0, fmt.Errorf("reg_read %s: %w", name, err)
	}

	deadline := time.After(responseTimeout)
	for {
		select {
		case rv := <-d.regReadCh:
			if rv.reg != id {
				// Stale response for another register.
				continue
			}
			return rv.value, nil

		case <-deadline:
			return 0, fmt.Errorf("no reg_read_response for %s within %v", name, responseTimeout)
		}
	}
}

func (d *Device) regID(name string) (uint32, error) {
	id, ok := d.regIDs[name]
	if !ok {
		return 0, fmt.Errorf("register %q not in device dictionary", name)
	}
	return id, nil
}

// WriteTx sets the transmit word of the selected engine
func (d *Device) WriteTx(eng Engine, value uint16) error {
	return d.WriteReg(eng.reg("tx"), value)
}

// ReadRx reads the receive word of the selected engine. On the slave this
// consumes the word and clears rxfull.
func (d *Device) ReadRx(eng Engine) (uint16, error) {
	return d.ReadReg(eng.reg("rx"))
}

// SetGo drives the master launch request level. The engine launches on a
// rising edge only, so lower and re-raise the bit for each transaction.
func (d *Device) SetGo(level bool) error {
	return d.updateControl(Master, core.MasterCtrlGo, level)
}

// SetIntEnable gates the selected engine's interrupt trigger.
func (d *Device) SetIntEnable(eng Engine, level bool) error {
	bit := uint16(core.MasterCtrlIntEna)
	if eng == Slave {
		bit = core.SlaveCtrlIntEna
	}
	return d.updateControl(eng, bit, level)
}

// ClearError pulses the slave overrun clear bit. The enable bit rides
// along unchanged.
func (d *Device) ClearError() error {
	return d.WriteReg(Slave.reg("ctrl"), d.ctrlShadow[Slave]|core.SlaveCtrlClrErr)
}

func (d *Device) updateControl(eng Engine, bit uint16, level bool) error {
	shadow := d.ctrlShadow[eng]
	if level {
		shadow |= bit
	} else {
		shadow &^= bit
	}
	if err := d.WriteReg(eng.reg("ctrl"), shadow); err != nil {
		return err
	}
	d.ctrlShadow[eng] = shadow
	return nil
}

// MasterStatus reads and decodes the master status register.
func (d *Device) MasterStatus() (tip, txfull bool, err error) {
	v, err := d.ReadReg("master_stat")
	if err != nil {
		return false, false, err
	}
	return v&core.MasterStatTIP != 0, v&core.MasterStatTxFull != 0, nil
}

// SlaveStatus reads and decodes the slave status register.
func (d *Device) SlaveStatus() (tip, rxfull, rxover bool, err error) {
	v, err := d.ReadReg("slave_stat")
	if err != nil {
		return false, false, false, err
	}
	return v&core.SlaveStatTIP != 0, v&core.SlaveStatRxFull != 0, v&core.SlaveStatRxOver != 0, nil
}

const (
	transferPoll = 2 * time.Millisecond
	goSettle     = 5 * time.Millisecond
)

// Transfer runs one full master transaction: write the word, raise go,
// wait for the engine to go busy and idle again, then read back the
// received word. Assumes the device's host domain ticks at least as fast
// as its engine domains, so the busy phase is observable over the link.
func (d *Device) Transfer(word uint16, timeout time.Duration) (uint16, error) {
	if err := d.WriteTx(Master, word); err != nil {
		return 0, err
	}
	if err := d.SetGo(true); err != nil {
		return 0, err
	}
	defer func() {
		d.SetGo(false)
		// The engine must sample the line low before a fresh edge can
		// launch the next transaction; give slow simulated domains
		// that sample in wall time.
		time.Sleep(goSettle)
	}()

	deadline := time.Now().Add(timeout)
	busySeen := false
	for {
		tip, txfull, err := d.MasterStatus()
		if err != nil {
			return 0, err
		}
		if tip || txfull {
			busySeen = true
		} else if busySeen {
			break
		}
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("transfer of 0x%04x timed out after %v", word, timeout)
		}
		time.Sleep(transferPoll)
	}

	return d.ReadRx(Master)
}

// SendCommand sends a command to the device by name, looked up in the
// dictionary. The transport waits for the acknowledgment.
func (d *Device) SendCommand(name string, args func(output protocol.OutputBuffer)) error {
	if !d.connected {
		return ErrNotConnected
	}
	if d.dictionary == nil {
		return ErrNoDictionary
	}

	cmdID, err := lookupName(d.dictionary.Commands, name)
	if err != nil {
		return err
	}

	return d.transport.SendCommand(cmdID, args)
}

// Dictionary returns the parsed dictionary
func (d *Device) Dictionary() *Dictionary {
	return d.dictionary
}

// DictionaryRaw returns the raw dictionary data
func (d *Device) DictionaryRaw() []byte {
	return d.dictionaryData
}
