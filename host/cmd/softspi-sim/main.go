package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"softspi/host/device"
	"softspi/host/serial"
	"softspi/standalone"
)

var (
	configPath = flag.String("config", "", "Rig config file (JSON)")
	listenAddr = flag.String("listen", "", "Serve the wire protocol on a TCP address (overrides config)")
	trace      = flag.Bool("trace", false, "Log pad events and dump the frame ring on exit")
	words      = flag.Int("words", 8, "Words to exchange in demo mode")
	seed       = flag.Int64("seed", 0, "Demo RNG seed (0 picks one from the clock)")
)

func main() {
	flag.Parse()

	fmt.Println("SoftSPI Simulator")
	fmt.Println("=================")
	fmt.Println()

	cfg := standalone.DefaultConfig()
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to read config: %v\n", err)
			os.Exit(1)
		}
		cfg, err = standalone.LoadConfig(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to parse config: %v\n", err)
			os.Exit(1)
		}
	}
	if *listenAddr != "" {
		cfg.Listen = *listenAddr
	}
	if *trace {
		cfg.Trace = true
	}

	rig := standalone.NewRig(cfg)
	rig.Start()
	defer rig.Stop()

	if cfg.Listen != "" {
		if err := standalone.ListenAndServe(rig, cfg.Listen); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Serve failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runDemo(rig, *words, *seed); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runDemo drives the rig through its own wire protocol: a client on one end
// of an in-memory pipe, the serve loop on the other. Each round preloads the
// slave, runs a master transaction and checks both directions.
func runDemo(rig *standalone.Rig, words int, seed int64) error {
	hostEnd, devEnd := serial.Pipe()
	go standalone.ServeConn(rig, devEnd)

	dev := device.NewDevice()
	if err := dev.ConnectPort(hostEnd); err != nil {
		return err
	}
	defer dev.Close()

	if err := dev.RetrieveDictionary(); err != nil {
		return err
	}
	dict := dev.Dictionary()
	fmt.Printf("Device %s, %s-bit frames, host domain at %s Hz\n",
		dict.Version, dict.Config["FRAME_BITS"], dict.Config["HOST_HZ"])

	dev.OnIRQ(func(eng device.Engine, level bool) {
		lvl := 0
		if level {
			lvl = 1
		}
		fmt.Printf("  [irq] %s=%d\n", eng, lvl)
	})
	if err := dev.SetIntEnable(device.Slave, true); err != nil {
		return err
	}

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	mismatches := 0
	for i := 0; i < words; i++ {
		txWord := uint16(rng.Intn(0x10000))
		slaveWord := uint16(rng.Intn(0x10000))

		if err := dev.WriteTx(device.Slave, slaveWord); err != nil {
			return err
		}
		// Let the slave reload its shifter before the frame starts.
		time.Sleep(2 * time.Millisecond)

		rx, err := dev.Transfer(txWord, 5*time.Second)
		if err != nil {
			return err
		}
		got, err := dev.ReadRx(device.Slave)
		if err != nil {
			return err
		}

		ok := rx == slaveWord && got == txWord
		if !ok {
			mismatches++
		}
		fmt.Printf("  [%2d] master 0x%04x <-> slave 0x%04x: master saw 0x%04x, slave saw 0x%04x\n",
			i, txWord, slaveWord, rx, got)
	}

	if mismatches > 0 {
		return fmt.Errorf("%d of %d words mismatched", mismatches, words)
	}
	fmt.Printf("Demo complete: %d words exchanged, no mismatches\n", words)
	return nil
}
