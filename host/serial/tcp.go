package serial

import (
	"fmt"
	"net"
)

// TCPPort connects to a device that exposes its wire stream on a TCP
// socket, such as the simulator running in serve mode.
type TCPPort struct {
	conn net.Conn
}

// DialTCP connects to addr ("host:port") and wraps the connection as a Port
func DialTCP(addr string) (Port, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return &TCPPort{conn: conn}, nil
}

// Read reads data from the connection
func (p *TCPPort) Read(b []byte) (int, error) {
	return p.conn.Read(b)
}

// Write writes data to the connection
func (p *TCPPort) Write(b []byte) (int, error) {
	return p.conn.Write(b)
}

// Close closes the connection
func (p *TCPPort) Close() error {
	return p.conn.Close()
}

// Flush is a no-op; nothing is buffered at this layer
func (p *TCPPort) Flush() error {
	return nil
}
