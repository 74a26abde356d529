package telemetry

import "sync/atomic"

// LinkStats tracks read-loop counters. All fields are updated atomically from
// the reader goroutine and read via Snapshot from anywhere.
type LinkStats struct {
	bytesRead    atomic.Uint64
	linesRead    atomic.Uint64
	records      atomic.Uint64
	infoFrames   atomic.Uint64
	decodeMisses atomic.Uint64
	readTimeouts atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of the link counters.
type StatsSnapshot struct {
	BytesRead    uint64
	LinesRead    uint64
	Records      uint64
	InfoFrames   uint64
	DecodeMisses uint64
	ReadTimeouts uint64
}

// Snapshot returns the current counter values. Non-blocking; counters may
// advance while it runs, which is acceptable for monitoring.
func (s *LinkStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		BytesRead:    s.bytesRead.Load(),
		LinesRead:    s.linesRead.Load(),
		Records:      s.records.Load(),
		InfoFrames:   s.infoFrames.Load(),
		DecodeMisses: s.decodeMisses.Load(),
		ReadTimeouts: s.readTimeouts.Load(),
	}
}
