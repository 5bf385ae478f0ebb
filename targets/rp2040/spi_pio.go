//go:build rp2040

package main

import (
	"errors"
	"machine"
	"runtime"
	"sync"

	pio "github.com/tinygo-org/pio/rp2-pio"

	"softspi/core"
)

// Mode-3 frame program, side-set driving the serial clock. One bit costs
// four state machine cycles: stall/refill, drive on the falling edge, a
// spacer, sample on the rising edge. The clock parks high while the OSR is
// empty, so the bus is quiet between frames and every frame is exactly 16
// pulses.
var spiFrameInstructions = []uint16{
	0x7021, // 0: out x, 1     side 1     ; stall on empty with the clock parked high
	0xa101, // 1: mov pins, x  side 0 [1] ; drive data out on the falling edge
	0x5001, // 2: in pins, 1   side 1     ; sample data in on the rising edge
	// wraps back to 0
}

// No jumps, so the program loads at any offset.
const spiFrameOrigin int8 = -1

// PIOFrameDriver runs complete master frames on a PIO state machine, with
// the select line framed from the CPU. Callers are serialized: the state
// machine shifts one frame at a time.
type PIOFrameDriver struct {
	mu  sync.Mutex
	sm  pio.StateMachine
	csn machine.Pin
}

var _ core.FrameDriver = (*PIOFrameDriver)(nil)

// NewPIOFrameDriver claims sm, loads the frame program and puts the bus
// pins in their idle state. baud is the serial clock rate in Hz.
func NewPIOFrameDriver(sm pio.StateMachine, sck, mosi, miso, csn machine.Pin, baud uint32) (*PIOFrameDriver, error) {
	sm.Claim()
	if !sm.IsValid() {
		return nil, errors.New("invalid state machine")
	}

	// Four state machine cycles per bit.
	whole, frac, err := pio.ClkDivFromFrequency(baud*4, machine.CPUFrequency())
	if err != nil {
		return nil, err
	}

	Pio := sm.PIO()
	offset, err := Pio.AddProgram(spiFrameInstructions, spiFrameOrigin)
	if err != nil {
		return nil, err
	}

	cfg := pio.DefaultStateMachineConfig()
	cfg.SetWrap(offset, offset+uint8(len(spiFrameInstructions))-1)
	cfg.SetSidesetParams(1, false, false)
	cfg.SetSidesetPins(sck)
	cfg.SetOutPins(mosi, 1)
	cfg.SetInPins(miso)

	// Left shifts keep the frame MSB first on both paths; the thresholds
	// give one autopull and one autopush per frame.
	cfg.SetOutShift(false, true, core.FrameBits)
	cfg.SetInShift(false, true, core.FrameBits)
	cfg.SetClkDivIntFrac(whole, frac)

	// Clock parks high, data out low, data in is an input.
	outMask := uint32((1 << sck) | (1 << mosi))
	sm.SetPinsMasked(1<<sck, outMask)
	sm.SetPindirsMasked(outMask, outMask|(1<<miso))

	pincfg := machine.PinConfig{Mode: Pio.PinMode()}
	sck.Configure(pincfg)
	mosi.Configure(pincfg)
	miso.Configure(pincfg)
	// The bus is synchronous; bypassing the input synchronizer trims the
	// sampling delay.
	Pio.HW().INPUT_SYNC_BYPASS.SetBits(1 << miso)

	csn.Configure(machine.PinConfig{Mode: machine.PinOutput})
	csn.High()

	sm.Init(offset, cfg)
	sm.SetEnabled(true)

	return &PIOFrameDriver{sm: sm, csn: csn}, nil
}

// RunFrame shifts one complete frame and returns the sampled word. Select
// is asserted before the first clock and released after the last.
func (d *PIOFrameDriver) RunFrame(tx uint16) (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.csn.Low()
	// The OSR shifts left, so the word rides in the top half with its MSB
	// leading.
	d.sm.TxPut(uint32(tx) << 16)

	retries := 1000
	for d.sm.IsRxFIFOEmpty() {
		retries--
		if retries <= 0 {
			d.csn.High()
			return 0, errors.New("frame timeout")
		}
		runtime.Gosched()
	}
	rx := uint16(d.sm.RxGet())
	d.csn.High()
	return rx, nil
}
