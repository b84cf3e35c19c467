package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"i2cprobe/core"
)

// ProbeConfig describes one bus and how the probe reaches its host.
type ProbeConfig struct {
	Mode     string `json:"mode"`     // "software" or "hardware"
	Target   string `json:"target"`   // "primary" or "secondary"
	Speed    int    `json:"speed"`    // tier index of the selected backend
	Board    string `json:"board"`    // "v3" or "v4"
	Revision string `json:"revision"` // v3 silicon: "legacy" or "b4"

	Pins PinConfig  `json:"pins"`
	Link LinkConfig `json:"link"`

	// Warnings prints protocol warnings (forced NACK) on the console.
	// The binary interface never reports them.
	Warnings bool `json:"warnings"`
}

// PinConfig names the lines as the host GPIO registry knows them.
type PinConfig struct {
	SCL string `json:"scl"`
	SDA string `json:"sda"`
	AUX string `json:"aux"`
	CS  string `json:"cs"`
	WP  string `json:"wp"` // onboard EEPROM write protect

	Power  string `json:"power"`
	Pullup string `json:"pullup"`

	// v4 pull-up voltage select
	Pullup3V3 string `json:"pullup_3v3"`
	Pullup5V  string `json:"pullup_5v"`
}

// LinkConfig is the serial port carrying the binary protocol.
type LinkConfig struct {
	Device string `json:"device"`
	Baud   int    `json:"baud"`
}

// LoadConfig parses a JSON configuration and returns a validated ProbeConfig
func LoadConfig(jsonData []byte) (*ProbeConfig, error) {
	var config ProbeConfig

	err := json.Unmarshal(jsonData, &config)
	if err != nil {
		return nil, err
	}

	// Apply defaults
	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// applyDefaults fills in missing configuration values with sensible defaults
func applyDefaults(config *ProbeConfig) {
	if config.Mode == "" {
		config.Mode = core.SoftwareBitBang.String()
	}
	if config.Target == "" {
		config.Target = core.Primary.String()
	}
	if config.Board == "" {
		config.Board = "v3"
	}
	if config.Board == "v3" && config.Revision == "" {
		config.Revision = "b4"
	}
	if config.Link.Baud == 0 {
		config.Link.Baud = 115200
	}
}

// DefaultConfig returns a software bus at ~50 kHz on the given lines
func DefaultConfig(scl, sda string) *ProbeConfig {
	c := &ProbeConfig{
		Speed: 1,
		Pins:  PinConfig{SCL: scl, SDA: sda},
	}
	applyDefaults(c)
	return c
}

// Validate checks names and the speed tier against the selected backend.
func (c *ProbeConfig) Validate() error {
	mode, err := c.mode()
	if err != nil {
		return err
	}
	if _, err := c.target(); err != nil {
		return err
	}
	speeds := core.SoftwareSpeeds
	if mode == core.HardwarePeripheral {
		speeds = core.HardwareSpeeds
	}
	if c.Speed < 0 || c.Speed >= len(speeds) {
		return fmt.Errorf("config: %w: %s tier %d (0-%d)", core.ErrSpeedRange, mode, c.Speed, len(speeds)-1)
	}
	switch c.Board {
	case "v3", "v4":
	default:
		return fmt.Errorf("config: unknown board %q", c.Board)
	}
	switch c.Revision {
	case "", "legacy", "b4":
	default:
		return fmt.Errorf("config: unknown revision %q", c.Revision)
	}
	if mode == core.SoftwareBitBang && (c.Pins.SCL == "" || c.Pins.SDA == "") {
		return fmt.Errorf("config: software mode needs pins.scl and pins.sda")
	}
	return nil
}

func (c *ProbeConfig) mode() (core.Mode, error) {
	switch strings.ToLower(c.Mode) {
	case "software":
		return core.SoftwareBitBang, nil
	case "hardware":
		return core.HardwarePeripheral, nil
	}
	return 0, fmt.Errorf("config: unknown mode %q", c.Mode)
}

func (c *ProbeConfig) target() (core.Target, error) {
	switch strings.ToLower(c.Target) {
	case "primary":
		return core.Primary, nil
	case "secondary":
		return core.Secondary, nil
	}
	return 0, fmt.Errorf("config: unknown target %q", c.Target)
}

// Session builds the session record the engine starts from.
func (c *ProbeConfig) Session() (*core.Session, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	mode, _ := c.mode()
	target, _ := c.target()
	return core.NewSession(mode, target, core.SpeedTier(c.Speed)), nil
}
