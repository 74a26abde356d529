// Package session ties the serial link, the telemetry core and the flasher
// into one monitoring session consumed by the UI.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"flashmon/config"
	"flashmon/flasher"
	"flashmon/link"
	"flashmon/telemetry"
)

// EventKind classifies UI-facing session events.
type EventKind int

const (
	// EventLog is a raw serial or flasher log line.
	EventLog EventKind = iota
	// EventState is a connection-state transition.
	EventState
	// EventInfo is a decoded device-metadata pair.
	EventInfo
)

// Event is delivered to the UI over the session event channel.
type Event struct {
	Time  time.Time
	Kind  EventKind
	Line  string              // EventLog
	State telemetry.LinkState // EventState
	Err   error               // EventState cause, nil unless error
	Key   string              // EventInfo
	Value string              // EventInfo
}

// ErrNotConnected is returned by link operations while disconnected.
var ErrNotConnected = errors.New("session: not connected")

// openPort is swapped out in tests to avoid real hardware.
var openPort = link.Open

// Session owns the ConnectionState and orchestrates connect/disconnect
// cycles. The series buffer lives for the whole session and survives
// reconnects unless the reset-on-connect policy is set; the link reader is
// created per connection and fully joined on disconnect, after which the
// port is closed.
type Session struct {
	cfg     *config.Config
	buffer  *telemetry.SeriesBuffer
	flasher *flasher.Flasher
	events  chan Event

	mu     sync.Mutex
	state  telemetry.LinkState
	port   link.Port
	reader *telemetry.LinkReader
	connID string

	infoMu     sync.Mutex
	deviceInfo map[string]string
}

// New creates a disconnected session around cfg.
func New(cfg *config.Config) *Session {
	s := &Session{
		cfg:        cfg,
		buffer:     telemetry.NewSeriesBuffer(cfg.MaxPoints),
		events:     make(chan Event, 256),
		state:      telemetry.LinkDisconnected,
		deviceInfo: make(map[string]string),
	}
	s.flasher = flasher.New(func(ts time.Time, line string) {
		s.emit(Event{Time: ts, Kind: EventLog, Line: line})
	})
	return s
}

// Events returns the channel the UI drains on its render tick.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Buffer returns the shared series buffer for snapshotting.
func (s *Session) Buffer() *telemetry.SeriesBuffer {
	return s.buffer
}

// State returns the current connection state.
func (s *Session) State() telemetry.LinkState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether a link is open.
func (s *Session) Connected() bool {
	return s.State() == telemetry.LinkConnected
}

// Connect opens the serial link on device and starts the read loop.
// An existing connection is torn down first.
func (s *Session) Connect(device string) error {
	s.Disconnect()

	s.cfg.Port = device
	lc := s.cfg.LinkConfig()

	port, err := openPort(lc)
	if err != nil {
		return fmt.Errorf("connect %s: %w", device, err)
	}
	// Stale bytes from before the connection would decode as noise
	if err := port.Flush(); err != nil {
		port.Close()
		return fmt.Errorf("flush %s: %w", device, err)
	}

	if s.cfg.ResetOnConnect {
		s.buffer.Clear()
	}

	reader := telemetry.NewLinkReader(s.buffer, telemetry.Handlers{
		RawLine: func(ts time.Time, line string) {
			s.emit(Event{Time: ts, Kind: EventLog, Line: line})
		},
		Info: func(key, value string) {
			s.infoMu.Lock()
			s.deviceInfo[key] = value
			s.infoMu.Unlock()
			s.emit(Event{Time: time.Now(), Kind: EventInfo, Key: key, Value: value})
		},
		State: func(state telemetry.LinkState, cause error) {
			// Terminal transport failure: the loop has exited on its own.
			// The UI observes this event and calls Disconnect to release
			// the port handle.
			s.mu.Lock()
			s.state = state
			s.mu.Unlock()
			log.Error().Err(cause).Str("device", device).Msg("serial link lost")
			s.emit(Event{Time: time.Now(), Kind: EventState, State: state, Err: cause})
		},
	})

	if err := reader.Start(port); err != nil {
		port.Close()
		return err
	}

	s.mu.Lock()
	s.port = port
	s.reader = reader
	s.state = telemetry.LinkConnected
	s.connID = uuid.NewString()
	connID := s.connID
	s.mu.Unlock()

	log.Info().Str("device", device).Int("baud", lc.Baud).
		Str("conn_id", connID).Msg("serial link connected")
	s.emit(Event{Time: time.Now(), Kind: EventState, State: telemetry.LinkConnected})
	return nil
}

// Disconnect stops the read loop, joins it, then closes the port. Safe to
// call at any time, including while already disconnected.
func (s *Session) Disconnect() {
	s.mu.Lock()
	reader := s.reader
	port := s.port
	wasConnected := s.state == telemetry.LinkConnected
	s.reader = nil
	s.port = nil
	s.state = telemetry.LinkDisconnected
	s.mu.Unlock()

	// Join before close: after Stop returns no reader access is in flight,
	// so closing the handle here is safe.
	if reader != nil {
		reader.Stop()
	}
	if port != nil {
		port.Close()
	}

	if wasConnected {
		log.Info().Msg("serial link disconnected")
		s.emit(Event{Time: time.Now(), Kind: EventState, State: telemetry.LinkDisconnected})
	}
}

// Flash releases the serial port and runs the firmware programmer. The
// caller reconnects afterwards if desired; the programmer owns the port for
// the duration.
func (s *Session) Flash(ctx context.Context) error {
	if s.cfg.FirmwarePath == "" {
		return flasher.ErrNoFirmware
	}
	s.Disconnect()

	return s.flasher.Run(ctx, flasher.Options{
		Command:      s.cfg.FlashCommand,
		Port:         s.cfg.Port,
		FirmwarePath: s.cfg.FirmwarePath,
	})
}

// Flashing reports whether a flash is in progress.
func (s *Session) Flashing() bool {
	return s.flasher.Busy()
}

// SendDebug writes a debug command frame over the open link.
func (s *Session) SendDebug(payload string) error {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return ErrNotConnected
	}
	return link.SendDebug(port, payload)
}

// SendParams writes a parameter command frame over the open link.
func (s *Session) SendParams(params []telemetry.Sample) error {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return ErrNotConnected
	}
	return link.SendParams(port, params)
}

// Stats returns the read-loop counters of the active connection, or zeros
// while disconnected.
func (s *Session) Stats() telemetry.StatsSnapshot {
	s.mu.Lock()
	reader := s.reader
	s.mu.Unlock()
	if reader == nil {
		return telemetry.StatsSnapshot{}
	}
	return reader.Stats()
}

// DeviceInfo returns a copy of the metadata reported by the device.
func (s *Session) DeviceInfo() map[string]string {
	s.infoMu.Lock()
	defer s.infoMu.Unlock()
	out := make(map[string]string, len(s.deviceInfo))
	for k, v := range s.deviceInfo {
		out[k] = v
	}
	return out
}

// emit delivers an event without ever blocking the producer; when the UI
// falls behind the oldest event is dropped.
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		select {
		case <-s.events:
		default:
		}
		select {
		case s.events <- ev:
		default:
		}
	}
}
