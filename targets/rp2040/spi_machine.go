//go:build rp2040

package main

import (
	"machine"
	"sync"

	"softspi/core"
)

// MachineFrameDriver runs master frames on one of the chip's PL022 SPI
// controllers instead of a PIO state machine. The controller shifts bytes,
// so a frame goes out as two transfers with the select line held across
// both; in mode 3 the clock parks high between them and the far side still
// counts exactly 16 pulses per selection.
type MachineFrameDriver struct {
	mu  sync.Mutex
	spi *machine.SPI
	csn machine.Pin
}

var _ core.FrameDriver = (*MachineFrameDriver)(nil)

// NewMachineFrameDriver configures bus (SPI0 or SPI1) for mode-3 shifting
// on the given pins. The pins must sit on one of the controller's mux
// groups.
func NewMachineFrameDriver(bus *machine.SPI, sck, mosi, miso, csn machine.Pin, baud uint32) (*MachineFrameDriver, error) {
	err := bus.Configure(machine.SPIConfig{
		Frequency: baud,
		SCK:       sck,
		SDO:       mosi, // SDO = Serial Data Out (MOSI)
		SDI:       miso, // SDI = Serial Data In (MISO)
		Mode:      3,    // CPOL=1, CPHA=1
	})
	if err != nil {
		return nil, err
	}

	csn.Configure(machine.PinConfig{Mode: machine.PinOutput})
	csn.High()

	return &MachineFrameDriver{spi: bus, csn: csn}, nil
}

// RunFrame shifts one frame, MSB first.
func (d *MachineFrameDriver) RunFrame(tx uint16) (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	w := [2]byte{byte(tx >> 8), byte(tx)}
	var r [2]byte

	d.csn.Low()
	// Tx is full duplex: both bytes go out and come back in one pass.
	err := d.spi.Tx(w[:], r[:])
	d.csn.High()
	if err != nil {
		return 0, err
	}
	return uint16(r[0])<<8 | uint16(r[1]), nil
}
