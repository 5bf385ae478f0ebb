//go:build rp2040

package main

// ModeConfig determines how the firmware comes up
type ModeConfig struct {
	// Set to true to shift master frames on the PL022 SPI controller
	// instead of a PIO state machine
	UseMachineSPI bool

	// Set to true to run the jumpered loopback self test before serving
	SelfTest bool
}

// GetMode returns the current mode configuration
// This can be modified at compile time
func GetMode() ModeConfig {
	// Default: PIO master, no self test. The PL022 path is for boards
	// where both PIO blocks are spoken for.
	return ModeConfig{
		UseMachineSPI: false,
		SelfTest:      false,
	}
}
