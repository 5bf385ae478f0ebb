package serial

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// nativePort is a real serial device, opened through tarm/serial.
type nativePort struct {
	port *serial.Port
}

// Open opens the device named in cfg. ReadTimeout is carried through, so
// reads return with zero bytes instead of blocking forever when the line
// goes quiet.
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	p, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Device, err)
	}
	return &nativePort{port: p}, nil
}

func (p *nativePort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

func (p *nativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *nativePort) Close() error {
	return p.port.Close()
}

// Flush is a no-op; tarm/serial writes are unbuffered
func (p *nativePort) Flush() error {
	return nil
}
