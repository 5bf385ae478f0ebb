//go:build linux

package main

import (
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"softspi/core"
	"softspi/protocol"
	"softspi/standalone"
)

// Engine pair on character-device GPIO, serving the wire protocol over
// TCP. The master is the soft engine bit-banging its lines; the slave is
// clocked by kernel edge events. Either half can be left off for boards
// that only wire one side of the bus.

var (
	chipName   = flag.String("chip", "gpiochip0", "GPIO character device")
	listenAddr = flag.String("listen", ":7777", "TCP address to serve host sessions on")
	role       = flag.String("role", "both", "engines to attach: master, slave or both")

	hostHz   = flag.Int("host-hz", 20000, "register block clock in Hz")
	masterHz = flag.Int("master-hz", 2000, "master engine clock in Hz")
	slaveHz  = flag.Int("slave-hz", 2000, "slave flag clock in Hz")

	mSCLK = flag.Int("msclk", 2, "master serial clock line offset")
	mCSN  = flag.Int("mcsn", 3, "master select line offset")
	mMOSI = flag.Int("mmosi", 4, "master data out line offset")
	mMISO = flag.Int("mmiso", 5, "master data in line offset")

	sSCLK = flag.Int("ssclk", 10, "slave serial clock line offset")
	sCSN  = flag.Int("scsn", 11, "slave select line offset")
	sMOSI = flag.Int("smosi", 12, "slave data in line offset")
	sMISO = flag.Int("smiso", 13, "slave data out line offset")
)

func main() {
	flag.Parse()

	runMaster := *role == "master" || *role == "both"
	runSlave := *role == "slave" || *role == "both"
	if !runMaster && !runSlave {
		log.Fatalf("unknown role %q, want master, slave or both", *role)
	}

	chip, err := gpiocdev.NewChip(*chipName, gpiocdev.WithConsumer("softspi"))
	if err != nil {
		log.Fatalf("open %s: %v", *chipName, err)
	}
	defer chip.Close()

	out := protocol.NewScratchOutput()
	masterRegs := core.NewMasterRegs()
	slaveRegs := core.NewSlaveRegs()
	bridge := core.NewCommandBridge(masterRegs, slaveRegs, out)
	bridge.Dict().AddConstant("CHIP", *chipName)
	bridge.Dict().AddConstant("ROLE", *role)
	bridge.Dict().AddConstant("HOST_HZ", *hostHz)

	var masterPads *LineMasterPads
	var masterEng *core.Master
	if runMaster {
		masterPads, err = NewLineMasterPads(chip, *mSCLK, *mCSN, *mMOSI, *mMISO)
		if err != nil {
			log.Fatalf("master lines: %v", err)
		}
		defer masterPads.Close()
		masterEng = core.NewMaster(masterRegs, masterPads)
	}

	var slavePads *LineSlavePads
	var slaveEng *core.Slave
	if runSlave {
		slavePads, err = NewLineSlavePads(chip, *sCSN, *sMOSI, *sMISO)
		if err != nil {
			log.Fatalf("slave lines: %v", err)
		}
		defer slavePads.Close()
		slaveEng = core.NewSlave(slaveRegs, slavePads)
		if err := slavePads.Bind(chip, *sSCLK, slaveEng); err != nil {
			log.Fatalf("slave clock line: %v", err)
		}
	}

	// Register blocks tick whether or not an engine is attached; the
	// engineless side just never raises its busy flags. Domains stop
	// before their pads close.
	domains := []*core.Domain{
		core.NewDomain("host", period(*hostHz), func() {
			masterRegs.Tick()
			slaveRegs.Tick()
		}),
	}
	if masterEng != nil {
		domains = append(domains, core.NewDomain("master", period(*masterHz), masterEng.Tick))
	}
	if slaveEng != nil {
		domains = append(domains, core.NewDomain("slave", period(*slaveHz), slaveEng.Tick))
	}
	defer func() {
		for i := len(domains) - 1; i >= 0; i-- {
			domains[i].Stop()
		}
	}()

	ln, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	log.Printf("[serve] %s engines on %s, listening on %s", *role, *chipName, ln.Addr())

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("[serve] listener closed: %v", err)
			break
		}
		log.Printf("[serve] session from %s", conn.RemoteAddr())
		if err := standalone.ServeBridge(bridge, out, conn); err != nil {
			log.Printf("[serve] session ended: %v", err)
		} else {
			log.Printf("[serve] session closed")
		}
	}

	if masterPads != nil && masterPads.Errors() > 0 {
		log.Printf("[serve] master pads saw %d line faults", masterPads.Errors())
	}
	if slavePads != nil && slavePads.Errors() > 0 {
		log.Printf("[serve] slave pads saw %d line faults", slavePads.Errors())
	}
}

func period(hz int) time.Duration {
	if hz <= 0 {
		return 0
	}
	return time.Second / time.Duration(hz)
}
