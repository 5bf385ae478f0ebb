package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"softspi/host/device"
	"softspi/host/serial"
)

var (
	devicePath = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud       = flag.Int("baud", 250000, "Baud rate (ignored for USB CDC)")
	tcpAddr    = flag.String("tcp", "", "Connect over TCP instead (host:port of a simulator)")
	irqWatch   = flag.Bool("irq", true, "Print interrupt line notifications")
)

func main() {
	flag.Parse()

	fmt.Println("SoftSPI Host")
	fmt.Println("============")
	fmt.Println()

	dev := device.NewDevice()

	var err error
	if *tcpAddr != "" {
		fmt.Printf("Connecting to simulator at %s...\n", *tcpAddr)
		var port serial.Port
		port, err = serial.DialTCP(*tcpAddr)
		if err == nil {
			err = dev.ConnectPort(port)
		}
	} else {
		fmt.Printf("Connecting to device on %s...\n", *devicePath)
		cfg := serial.DefaultConfig(*devicePath)
		cfg.Baud = *baud
		err = dev.ConnectWithConfig(cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer dev.Close()

	fmt.Println("Connected successfully!")

	if err := dev.RetrieveDictionary(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to retrieve dictionary: %v\n", err)
		os.Exit(1)
	}
	dev.PrintDictionary()

	if *irqWatch {
		dev.OnIRQ(func(eng device.Engine, level bool) {
			lvl := 0
			if level {
				lvl = 1
			}
			fmt.Printf("[irq] %s=%d\n", eng, lvl)
		})
	}

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)

		var err error
		switch parts[0] {
		case "quit", "exit", "q":
			fmt.Println("Goodbye!")
			return

		case "help", "?":
			printHelp()

		case "dict":
			dev.PrintDictionary()

		case "raw":
			raw := dev.DictionaryRaw()
			fmt.Printf("Raw dictionary data (%d bytes):\n%s\n", len(raw), string(raw))

		case "read":
			err = readReg(dev, parts[1:])

		case "write":
			err = writeReg(dev, parts[1:])

		case "xfer":
			err = transfer(dev, parts[1:])

		case "status":
			err = printStatus(dev)

		case "irq":
			err = setIrq(dev, parts[1:])

		case "clearerr":
			err = dev.ClearError()

		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", parts[0])
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  help                        - Show this help message")
	fmt.Println("  dict                        - Print dictionary summary")
	fmt.Println("  raw                         - Print raw dictionary data")
	fmt.Println("  read <reg>                  - Read a register by name (e.g. master_stat)")
	fmt.Println("  write <reg> <value>         - Write a register by name")
	fmt.Println("  xfer <word>                 - Run a master transaction with the word")
	fmt.Println("  status                      - Print decoded master and slave status")
	fmt.Println("  irq <master|slave> <on|off> - Gate an interrupt trigger")
	fmt.Println("  clearerr                    - Clear the slave overrun flag")
	fmt.Println("  quit/exit/q                 - Exit the program")
	fmt.Println()
}

func readReg(dev *device.Device, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: read <reg>")
	}
	v, err := dev.ReadReg(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s = 0x%04x (%d)\n", args[0], v, v)
	return nil
}

func writeReg(dev *device.Device, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: write <reg> <value>")
	}
	v, err := parseWord(args[1])
	if err != nil {
		return err
	}
	if err := dev.WriteReg(args[0], v); err != nil {
		return err
	}
	fmt.Printf("%s <- 0x%04x\n", args[0], v)
	return nil
}

func transfer(dev *device.Device, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: xfer <word>")
	}
	w, err := parseWord(args[0])
	if err != nil {
		return err
	}
	rx, err := dev.Transfer(w, 5*time.Second)
	if err != nil {
		return err
	}
	fmt.Printf("sent 0x%04x, received 0x%04x\n", w, rx)
	return nil
}

func printStatus(dev *device.Device) error {
	tip, txfull, err := dev.MasterStatus()
	if err != nil {
		return err
	}
	fmt.Printf("master: tip=%v txfull=%v\n", tip, txfull)

	tip, rxfull, rxover, err := dev.SlaveStatus()
	if err != nil {
		return err
	}
	fmt.Printf("slave:  tip=%v rxfull=%v rxover=%v\n", tip, rxfull, rxover)
	return nil
}

func setIrq(dev *device.Device, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: irq <master|slave> <on|off>")
	}
	eng, err := parseEngine(args[0])
	if err != nil {
		return err
	}
	switch args[1] {
	case "on":
		return dev.SetIntEnable(eng, true)
	case "off":
		return dev.SetIntEnable(eng, false)
	}
	return fmt.Errorf("usage: irq <master|slave> <on|off>")
}

func parseEngine(s string) (device.Engine, error) {
	switch s {
	case "master":
		return device.Master, nil
	case "slave":
		return device.Slave, nil
	}
	return 0, fmt.Errorf("unknown engine %q (want master or slave)", s)
}

func parseWord(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("bad value %q: %w", s, err)
	}
	return uint16(v), nil
}
