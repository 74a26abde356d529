package telemetry

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ReaderState is the link reader lifecycle state.
type ReaderState int

const (
	ReaderIdle ReaderState = iota
	ReaderRunning
	ReaderStopping
)

func (s ReaderState) String() string {
	switch s {
	case ReaderIdle:
		return "idle"
	case ReaderRunning:
		return "running"
	case ReaderStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// ErrAlreadyRunning is returned by Start when the reader is not idle.
var ErrAlreadyRunning = errors.New("link reader already running")

// readChunkSize is the per-read buffer handed to the port. Telemetry lines
// are short; one chunk typically holds several frames.
const readChunkSize = 512

// LinkReader drives the blocking read loop over an open serial connection.
// It borrows the connection while running and never closes it; after Stop
// returns the caller may close the port immediately, no reader access is in
// flight. Lifecycle: Idle -> Running -> Stopping -> Idle.
//
// Decoded telemetry is appended to the shared SeriesBuffer (the reader is
// its single writer); raw lines, info pairs and state transitions go out
// through Handlers.
type LinkReader struct {
	buffer   *SeriesBuffer
	handlers Handlers
	stats    LinkStats

	mu     sync.Mutex
	state  ReaderState
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewLinkReader creates an idle reader feeding buf.
func NewLinkReader(buf *SeriesBuffer, handlers Handlers) *LinkReader {
	return &LinkReader{
		buffer:   buf,
		handlers: handlers,
	}
}

// Start spawns the read loop over port. The port must already be configured
// with a short read timeout so stop requests are observed promptly. Returns
// ErrAlreadyRunning unless the reader is idle.
func (r *LinkReader) Start(port io.Reader) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != ReaderIdle {
		return ErrAlreadyRunning
	}

	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.state = ReaderRunning

	go r.readLoop(port, r.stopCh, r.doneCh)
	return nil
}

// Stop requests loop exit and joins the reader goroutine before returning.
// Idempotent: stopping an idle reader is a no-op.
func (r *LinkReader) Stop() {
	r.mu.Lock()
	switch r.state {
	case ReaderIdle:
		r.mu.Unlock()
		return
	case ReaderRunning:
		r.state = ReaderStopping
		close(r.stopCh)
	case ReaderStopping:
		// Another Stop is already in flight; just wait alongside it.
	}
	doneCh := r.doneCh
	r.mu.Unlock()

	<-doneCh
}

// State returns the current lifecycle state.
func (r *LinkReader) State() ReaderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Stats returns a snapshot of the read-loop counters.
func (r *LinkReader) Stats() StatsSnapshot {
	return r.stats.Snapshot()
}

// readLoop runs until a stop request or a fatal transport error. Reads are
// bounded by the port's read timeout; a timed-out read returns (0, nil) and
// just polls the stop channel again.
func (r *LinkReader) readLoop(port io.Reader, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer func() {
		r.mu.Lock()
		r.state = ReaderIdle
		r.mu.Unlock()
		close(doneCh)
	}()

	fifo := NewLineFIFO(4 * readChunkSize)
	chunk := make([]byte, readChunkSize)

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		n, err := port.Read(chunk)
		if n > 0 {
			r.stats.bytesRead.Add(uint64(n))
			fifo.Write(chunk[:n])
			for {
				line, ok := fifo.NextLine()
				if !ok {
					break
				}
				r.handleLine(line)
			}
		}

		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				r.stats.readTimeouts.Add(1)
				continue
			}
			// Hard connection failure (EOF, unplugged device, closed port).
			// Suppress the terminal event when a stop was already requested:
			// closing the port under the loop is the normal shutdown path.
			select {
			case <-stopCh:
			default:
				r.handlers.emitState(LinkError, err)
			}
			return
		}

		if n == 0 {
			// Read timeout expired with no data
			r.stats.readTimeouts.Add(1)
		}
	}
}

// handleLine surfaces one complete line and routes its decoded form. A line
// that decodes to nothing is not an error; it is counted and still logged
// raw. Undecodable byte sequences are replaced rather than dropped so one
// garbled line never kills the loop.
func (r *LinkReader) handleLine(raw []byte) {
	line := strings.ToValidUTF8(string(raw), "�")
	if strings.TrimSpace(line) == "" {
		return
	}

	ts := time.Now()
	r.stats.linesRead.Add(1)
	r.handlers.emitRawLine(ts, line)

	frame, ok := DecodeLine(line)
	if !ok {
		r.stats.decodeMisses.Add(1)
		return
	}

	switch frame.Kind {
	case FrameTelemetry:
		r.buffer.Append(ts, frame.Record)
		r.stats.records.Add(1)
		r.handlers.emitTelemetry(ts, frame.Record)
	case FrameInfo:
		r.stats.infoFrames.Add(1)
		r.handlers.emitInfo(frame.Info.Key, frame.Info.Value)
	}
}
