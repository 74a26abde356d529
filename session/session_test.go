package session

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"flashmon/config"
	"flashmon/link"
	"flashmon/telemetry"
)

// fakePort is an in-memory link.Port fed by tests.
type fakePort struct {
	mu      sync.Mutex
	pending bytes.Buffer
	written bytes.Buffer
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.pending.Len() > 0 {
		n, _ := p.pending.Read(b)
		p.mu.Unlock()
		return n, nil
	}
	p.mu.Unlock()
	time.Sleep(time.Millisecond)
	return 0, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) Flush() error { return nil }

func (p *fakePort) feed(s string) {
	p.mu.Lock()
	p.pending.WriteString(s)
	p.mu.Unlock()
}

func (p *fakePort) writtenString() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

func withFakePort(t *testing.T) *fakePort {
	t.Helper()
	port := &fakePort{}
	orig := openPort
	openPort = func(*link.Config) (link.Port, error) { return port, nil }
	t.Cleanup(func() { openPort = orig })
	return port
}

func testConfig() *config.Config {
	return &config.Config{Port: "COM4", Baud: 115200, MaxPoints: 100, RefreshMs: 100}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSessionConnectDisconnect(t *testing.T) {
	port := withFakePort(t)
	s := New(testConfig())

	if s.Connected() {
		t.Fatal("new session should be disconnected")
	}
	if err := s.Connect("COM4"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !s.Connected() {
		t.Fatal("session should be connected")
	}

	port.feed("[adc]@temp:23.5\n")
	waitFor(t, "telemetry append", func() bool { return s.Buffer().Len() == 1 })

	s.Disconnect()
	if s.Connected() {
		t.Error("session should be disconnected")
	}
	if !port.closed {
		t.Error("port must be closed after disconnect")
	}

	// Idempotent
	s.Disconnect()
}

func TestSessionBufferSurvivesReconnect(t *testing.T) {
	port := withFakePort(t)
	s := New(testConfig())

	if err := s.Connect("COM4"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	port.feed("[adc]@a:1\n")
	waitFor(t, "first record", func() bool { return s.Buffer().Len() == 1 })
	s.Disconnect()

	if err := s.Connect("COM4"); err != nil {
		t.Fatalf("reconnect failed: %v", err)
	}
	defer s.Disconnect()

	if s.Buffer().Len() != 1 {
		t.Errorf("buffer should survive reconnect, got %d points", s.Buffer().Len())
	}
}

func TestSessionResetOnConnect(t *testing.T) {
	port := withFakePort(t)
	cfg := testConfig()
	cfg.ResetOnConnect = true
	s := New(cfg)

	if err := s.Connect("COM4"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	port.feed("[adc]@a:1\n")
	waitFor(t, "record", func() bool { return s.Buffer().Len() == 1 })
	s.Disconnect()

	if err := s.Connect("COM4"); err != nil {
		t.Fatalf("reconnect failed: %v", err)
	}
	defer s.Disconnect()

	if s.Buffer().Len() != 0 {
		t.Errorf("reset-on-connect should clear the buffer, got %d points", s.Buffer().Len())
	}
}

func TestSessionDeviceInfo(t *testing.T) {
	port := withFakePort(t)
	s := New(testConfig())

	if err := s.Connect("COM4"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Disconnect()

	port.feed("[info]@battery:87\n")
	waitFor(t, "device info", func() bool { return len(s.DeviceInfo()) == 1 })

	if v := s.DeviceInfo()["battery"]; v != "87" {
		t.Errorf("Expected battery=87, got %q", v)
	}
}

func TestSessionSendCommands(t *testing.T) {
	port := withFakePort(t)
	s := New(testConfig())

	if err := s.SendDebug("TEST"); err != ErrNotConnected {
		t.Errorf("Expected ErrNotConnected while disconnected, got %v", err)
	}

	if err := s.Connect("COM4"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Disconnect()

	if err := s.SendDebug("TEST"); err != nil {
		t.Fatalf("SendDebug failed: %v", err)
	}
	if err := s.SendParams([]telemetry.Sample{{Key: "gain", Value: 2}}); err != nil {
		t.Fatalf("SendParams failed: %v", err)
	}

	written := port.writtenString()
	if written != "[debug]@TEST\n[param]@gain:2\n" {
		t.Errorf("unexpected outbound frames: %q", written)
	}
}

func TestSessionEventsDelivered(t *testing.T) {
	port := withFakePort(t)
	s := New(testConfig())

	if err := s.Connect("COM4"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer s.Disconnect()

	port.feed("hello device\n")

	var sawState, sawLog bool
	deadline := time.After(2 * time.Second)
	for !(sawState && sawLog) {
		select {
		case ev := <-s.Events():
			switch ev.Kind {
			case EventState:
				if ev.State == telemetry.LinkConnected {
					sawState = true
				}
			case EventLog:
				if ev.Line == "hello device" {
					sawLog = true
				}
			}
		case <-deadline:
			t.Fatalf("missing events: state=%v log=%v", sawState, sawLog)
		}
	}
}
