package link

import (
	"errors"
	"fmt"
	"time"

	"github.com/tarm/serial"
)

var errNilConfig = errors.New("link: config cannot be nil")

// tarmPort wraps the tarm/serial implementation.
type tarmPort struct {
	port *serial.Port
}

// openTarm opens a port through tarm/serial. The library maps the read
// timeout onto the OS-level poll, so an idle port yields (0, nil) reads.
func openTarm(cfg *Config) (Port, error) {
	serialConfig := &serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	}

	port, err := serial.OpenPort(serialConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}

	return &tarmPort{port: port}, nil
}

func (p *tarmPort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

func (p *tarmPort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *tarmPort) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

func (p *tarmPort) Flush() error {
	if p.port != nil {
		return p.port.Flush()
	}
	return nil
}
