package telemetry

import "time"

// LinkState describes the connection as observed by the link reader.
type LinkState int

const (
	LinkDisconnected LinkState = iota
	LinkConnected
	LinkError
)

func (s LinkState) String() string {
	switch s {
	case LinkDisconnected:
		return "disconnected"
	case LinkConnected:
		return "connected"
	case LinkError:
		return "error"
	default:
		return "unknown"
	}
}

// Handlers carries the subscriber callbacks the reader invokes from its read
// loop. Any field may be nil. Callbacks run on the reader goroutine and must
// not block; hand off to a channel for anything slow.
type Handlers struct {
	// RawLine fires for every non-empty line read, matched or not.
	RawLine func(ts time.Time, line string)

	// Telemetry fires for every decoded telemetry record, after it has been
	// committed to the series buffer.
	Telemetry func(ts time.Time, rec Record)

	// Info fires for every decoded device-metadata pair.
	Info func(key, value string)

	// State fires on connection-state transitions. cause is non-nil only for
	// LinkError.
	State func(state LinkState, cause error)
}

func (h Handlers) emitRawLine(ts time.Time, line string) {
	if h.RawLine != nil {
		h.RawLine(ts, line)
	}
}

func (h Handlers) emitTelemetry(ts time.Time, rec Record) {
	if h.Telemetry != nil {
		h.Telemetry(ts, rec)
	}
}

func (h Handlers) emitInfo(key, value string) {
	if h.Info != nil {
		h.Info(key, value)
	}
}

func (h Handlers) emitState(state LinkState, cause error) {
	if h.State != nil {
		h.State(state, cause)
	}
}
