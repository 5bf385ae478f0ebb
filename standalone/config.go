package standalone

import (
	"encoding/json"
	"time"
)

// Config selects the simulation rig's clock rates and serving transport.
type Config struct {
	// Tick rates in Hz for the three clock domains. Zero takes the
	// default; a negative rate free-runs the domain with no wall-clock
	// pacing.
	HostHz   int `json:"host_hz"`
	MasterHz int `json:"master_hz"`
	SlaveHz  int `json:"slave_hz"`

	// Trace logs bus line changes and dumps the frame event ring on
	// shutdown.
	Trace bool `json:"trace"`

	// Listen is the TCP address the wire protocol server binds to.
	// Empty means no listener; the rig is driven in-process.
	Listen string `json:"listen"`
}

// LoadConfig parses a JSON configuration and returns a Config
func LoadConfig(jsonData []byte) (*Config, error) {
	var config Config

	err := json.Unmarshal(jsonData, &config)
	if err != nil {
		return nil, err
	}

	// Apply defaults
	applyDefaults(&config)

	return &config, nil
}

// DefaultConfig returns the default rig configuration with no listener
func DefaultConfig() *Config {
	config := &Config{}
	applyDefaults(config)
	return config
}

// applyDefaults fills in missing configuration values with sensible defaults
func applyDefaults(config *Config) {
	// The host domain must outpace the engines, or status flags and busy
	// windows would slip between its ticks.
	if config.HostHz == 0 {
		config.HostHz = 20000
	}
	if config.MasterHz == 0 {
		config.MasterHz = 2000
	}
	if config.SlaveHz == 0 {
		config.SlaveHz = 2000
	}
}

// period converts a tick rate to a Domain period. Negative rates free-run.
func period(hz int) time.Duration {
	if hz < 0 {
		return 0
	}
	return time.Second / time.Duration(hz)
}
