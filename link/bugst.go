package link

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// bugstPort wraps the go.bug.st/serial implementation.
type bugstPort struct {
	port serial.Port
}

func openBugst(cfg *Config) (Port, error) {
	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}

	if err := port.SetReadTimeout(time.Duration(cfg.ReadTimeout) * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", cfg.Device, err)
	}

	return &bugstPort{port: port}, nil
}

func (p *bugstPort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

func (p *bugstPort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *bugstPort) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

func (p *bugstPort) Flush() error {
	if p.port != nil {
		return p.port.ResetInputBuffer()
	}
	return nil
}
