//go:build rp2040

package main

import (
	"errors"

	"tinygo.org/x/drivers"

	"softspi/core"
)

// SPIPort exposes a frame driver through the common SPI bus interface so
// stock peripheral drivers can share the engine's bus. The shift width is
// fixed at 16 bits, so transfers move two bytes per frame, big-endian.
type SPIPort struct {
	driver core.FrameDriver
}

var _ drivers.SPI = (*SPIPort)(nil)

func NewSPIPort(driver core.FrameDriver) *SPIPort {
	return &SPIPort{driver: driver}
}

// Tx shifts the buffers through the bus two bytes at a time. A nil w sends
// zeros; a nil r discards the reply. Buffer lengths must be even and, when
// both are given, equal.
func (p *SPIPort) Tx(w, r []byte) error {
	n := len(w)
	if w == nil {
		n = len(r)
	} else if r != nil && len(r) != n {
		return errors.New("expect lengths to be equal")
	}
	if n%2 != 0 {
		return errors.New("expect even length for 16-bit frames")
	}
	for i := 0; i < n; i += 2 {
		var tx uint16
		if w != nil {
			tx = uint16(w[i])<<8 | uint16(w[i+1])
		}
		rx, err := p.driver.RunFrame(tx)
		if err != nil {
			return err
		}
		if r != nil {
			r[i] = byte(rx >> 8)
			r[i+1] = byte(rx)
		}
	}
	return nil
}

// Transfer shifts a single byte in the top half of one frame, with the low
// byte zero, and returns the top half of the reply. Peripherals that frame
// per byte see a 16-pulse transaction here.
func (p *SPIPort) Transfer(b byte) (byte, error) {
	rx, err := p.driver.RunFrame(uint16(b) << 8)
	return byte(rx >> 8), err
}
