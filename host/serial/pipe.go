package serial

import (
	"net"
)

// pipePort adapts one end of an in-memory connection to the Port
// interface. Writes block until the peer reads, which mirrors the
// flow control of a real serial link.
type pipePort struct {
	net.Conn
}

// Flush is a no-op; pipe writes are synchronous
func (p pipePort) Flush() error {
	return nil
}

// Pipe returns two connected in-memory ports. Data written to one end
// is read from the other. Tests and the simulator's loopback mode use
// this to wire a host client directly to a device instance without any
// real hardware.
func Pipe() (Port, Port) {
	a, b := net.Pipe()
	return pipePort{a}, pipePort{b}
}
