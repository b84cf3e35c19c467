//go:build rp2040 || rp2350

package main

import "i2cprobe/core"

// ModeConfig determines how the firmware serves the link
type ModeConfig struct {
	// Tier is the software speed tier the bus starts at
	Tier core.SpeedTier

	// Set to true to stream the text sniffer on the link
	// Set to false to run the binary protocol
	Sniff bool
}

// GetMode returns the current mode configuration
// This can be modified at compile time
func GetMode() ModeConfig {
	return ModeConfig{
		Tier:  1,
		Sniff: false,
	}
}
