//go:build rp2040

package main

import (
	"machine"
	"time"

	pio "github.com/tinygo-org/pio/rp2-pio"

	"softspi/core"
	"softspi/protocol"
)

// Pin assignment. The master pins sit on an SPI0 mux group so either the
// PIO or the PL022 backend can drive them. The master and slave halves are
// independent buses; jumper them together (2-10, 3-11, 4-12, 5-13) for a
// single-board loopback.
const (
	masterSCK  = machine.GPIO2
	masterMOSI = machine.GPIO3
	masterMISO = machine.GPIO4
	masterCSN  = machine.GPIO5

	slaveSCK  = machine.GPIO10
	slaveMOSI = machine.GPIO11
	slaveMISO = machine.GPIO12
	slaveCSN  = machine.GPIO13
)

// Serial clock rate for the PIO master. Kept low enough for the
// interrupt-clocked slave on the jumpered loopback; the PIO side itself is
// good for MHz rates against real silicon.
const busFrequency uint32 = 50000

var (
	// Buffers for communication
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	masterRegs *core.MasterRegs
	slaveRegs  *core.SlaveRegs
	bridge     *core.CommandBridge
	master     *core.HardwareMaster
	slave      *core.Slave

	msgErrors uint32

	// USB connection state tracking
	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
)

func main() {
	// Disable the watchdog on boot so state from a previous reset cannot
	// fire mid-initialization.
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	masterRegs = core.NewMasterRegs()
	slaveRegs = core.NewSlaveRegs()
	bridge = core.NewCommandBridge(masterRegs, slaveRegs, outputBuffer)
	bridge.Dict().AddConstant("MCU", "rp2040")
	bridge.Dict().AddConstant("BUS_HZ", int(busFrequency))

	mode := GetMode()
	var driver core.FrameDriver
	if mode.UseMachineSPI {
		driver, err = NewMachineFrameDriver(machine.SPI0,
			masterSCK, masterMOSI, masterMISO, masterCSN, busFrequency)
	} else {
		driver, err = NewPIOFrameDriver(pio.PIO0.StateMachine(0),
			masterSCK, masterMOSI, masterMISO, masterCSN, busFrequency)
	}
	if err != nil {
		return
	}
	master = core.NewHardwareMaster(masterRegs, driver)

	slavePads := NewSlavePinPads(slaveSCK, slaveCSN, slaveMOSI, slaveMISO)
	slave = core.NewSlave(slaveRegs, slavePads)
	if err := slavePads.Bind(slave); err != nil {
		return
	}

	if mode.SelfTest {
		runSelfTest(NewSPIPort(driver))
	}

	transport = bridge.Transport()
	transport.SetResetCallback(func() {
		// Clear buffers on host reset and republish interrupt levels so
		// the new session starts from known state.
		inputBuffer.Reset()
		outputBuffer.Reset()
		bridge.SyncIRQ()
	})
	// Acks must reach the host before the response that follows them.
	transport.SetFlushCallback(writeUSB)

	go usbReaderLoop()

	for {
		// Recover from panics in the main loop to prevent a firmware crash
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgErrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			if inputBuffer.Available() > 0 {
				transport.Receive(inputBuffer)
			}

			// One host-domain edge: register blocks first, then the
			// engines that watch their synchronized outputs.
			masterRegs.Tick()
			slaveRegs.Tick()
			master.Tick()
			slave.Tick()

			bridge.FlushIRQ()
			writeUSB()
		}()

		// Yield to other goroutines
		time.Sleep(10 * time.Microsecond)
	}
}

// usbReaderLoop runs in a goroutine to continuously read USB data
func usbReaderLoop() {
	// Recover from panics to prevent a firmware crash
	defer func() {
		if r := recover(); r != nil {
			msgErrors++
			// Restart the reader loop
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if USBAvailable() > 0 {
			data, err := USBRead()
			if err != nil {
				msgErrors++
				time.Sleep(1 * time.Millisecond)
				continue
			}

			// First bytes after a detected disconnect mean a fresh host;
			// drop any stale session state.
			if usbWasDisconnected {
				usbWasDisconnected = false
				inputBuffer.Reset()
				outputBuffer.Reset()
				transport.Reset()
				consecutiveWriteFailures = 0
			}

			if inputBuffer.Write([]byte{data}) == 0 {
				// Buffer full; drop the byte and let the transport resync.
				msgErrors++
				time.Sleep(10 * time.Millisecond)
			}
		}
		// Yield to avoid a busy loop
		time.Sleep(100 * time.Microsecond)
	}
}

// writeUSB pushes pending output to the USB port, handling partial writes.
// Repeated failures are treated as a disconnect and stale data is dropped
// so a reconnecting host starts clean.
func writeUSB() {
	result := outputBuffer.Result()
	if len(result) == 0 {
		return
	}

	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				usbWasDisconnected = true
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
				inputBuffer.Reset()
			}
			return
		}
		written += n
	}

	consecutiveWriteFailures = 0
	outputBuffer.Reset()
}
