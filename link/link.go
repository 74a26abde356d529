// Package link provides the serial connection layer: port configuration,
// the pluggable Port backends, device enumeration, and the outbound command
// frames that share the transport with inbound telemetry.
package link

import (
	"io"
)

// Driver selects the serial backend implementation.
type Driver string

const (
	// DriverTarm uses github.com/tarm/serial.
	DriverTarm Driver = "tarm"
	// DriverBugst uses go.bug.st/serial.
	DriverBugst Driver = "bugst"
)

// Port represents an open serial connection.
// Two implementations exist:
//   - tarm/serial backed (DriverTarm)
//   - go.bug.st/serial backed (DriverBugst)
//
// Reads honor the configured timeout and return (0, nil) when it expires,
// which the telemetry read loop treats as a poll, not an error.
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input so a fresh session starts clean.
	Flush() error
}

// Config holds serial port configuration.
type Config struct {
	// Device path (e.g. "/dev/ttyACM0", "COM4")
	Device string

	// Baud rate. The observed firmware talks at 115200.
	Baud int

	// Read timeout in milliseconds. Keep this short: it bounds how long a
	// reader stop request can go unobserved.
	ReadTimeout int

	// Backend selection; DriverTarm when empty.
	Driver Driver
}

// DefaultConfig returns the standard monitor configuration for a device.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 200,
		Driver:      DriverTarm,
	}
}

// Open opens a serial port using the backend named in cfg.Driver.
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, errNilConfig
	}
	if cfg.Driver == DriverBugst {
		return openBugst(cfg)
	}
	return openTarm(cfg)
}
