package standalone

import (
	"io"
	"log"
	"net"
	"time"

	"softspi/core"
	"softspi/protocol"
)

// irqFlushPeriod bounds the latency of an irq_state notification when no
// host traffic is arriving to piggyback on.
const irqFlushPeriod = time.Millisecond

// ServeBridge serves the wire protocol for one bridge to one connection
// until the peer closes it or a read fails. All bridge work, frame dispatch
// and irq flushing included, happens on the calling goroutine; a second
// goroutine only moves bytes off the port. Hardware targets with their own
// bridges use this directly; the simulator wraps it as ServeConn.
func ServeBridge(bridge *core.CommandBridge, out *protocol.ScratchOutput, port io.ReadWriteCloser) error {
	tr := bridge.Transport()

	flush := func() {
		data := out.Result()
		if len(data) == 0 {
			return
		}
		port.Write(data)
		out.Reset()
	}
	tr.SetFlushCallback(flush)
	defer tr.SetFlushCallback(nil)

	// Each session starts from protocol reset state, and the first irq
	// flush tells the new host where both lines stand.
	tr.Reset()
	out.Reset()
	bridge.SyncIRQ()

	fifo := protocol.NewFifoBuffer(512)

	chunks := make(chan []byte, 8)
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := port.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				chunks <- data
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	irqTick := time.NewTicker(irqFlushPeriod)
	defer irqTick.Stop()

	for {
		select {
		case data := <-chunks:
			fifo.Write(data)
			tr.Receive(fifo)
			bridge.FlushIRQ()
			flush()

		case <-irqTick.C:
			bridge.FlushIRQ()
			flush()

		case err := <-readErr:
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// ServeConn serves one connection against the rig's bridge.
func ServeConn(rig *Rig, port io.ReadWriteCloser) error {
	return ServeBridge(rig.Bridge, rig.out, port)
}

// Serve accepts connections from ln and serves them one at a time; the
// rig has a single transport, so sessions take turns. Returns when the
// listener is closed.
func Serve(rig *Rig, ln net.Listener) error {
	log.Printf("[serve] listening on %s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}

		log.Printf("[serve] session from %s", conn.RemoteAddr())
		if err := ServeConn(rig, conn); err != nil {
			log.Printf("[serve] session ended: %v", err)
		} else {
			log.Printf("[serve] session closed")
		}
		conn.Close()
	}
}

// ListenAndServe binds a TCP listener on addr and serves it.
func ListenAndServe(rig *Rig, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()
	return Serve(rig, ln)
}
