package telemetry

import (
	"math"
	"sync"
	"testing"
	"time"
)

func recordOf(pairs ...Sample) Record {
	return Record(pairs)
}

func TestBufferAlignmentInvariant(t *testing.T) {
	buf := NewSeriesBuffer(100)
	base := time.Now()

	for i := 0; i < 50; i++ {
		buf.Append(base.Add(time.Duration(i)*time.Millisecond), recordOf(
			Sample{"a", float64(i)},
			Sample{"b", float64(i) * 2},
		))
	}

	snap := buf.Snapshot()
	if len(snap.Timestamps) != 50 {
		t.Fatalf("Expected 50 timestamps, got %d", len(snap.Timestamps))
	}
	for key, vals := range snap.Series {
		if len(vals) != len(snap.Timestamps) {
			t.Errorf("series %q has %d points, timestamps have %d", key, len(vals), len(snap.Timestamps))
		}
	}
}

func TestBufferEvictionBoundary(t *testing.T) {
	buf := NewSeriesBuffer(500)
	base := time.Now()

	for i := 0; i < 501; i++ {
		buf.Append(base.Add(time.Duration(i)*time.Millisecond), recordOf(Sample{"adc0", float64(i)}))
	}

	snap := buf.Snapshot()
	if len(snap.Timestamps) != 500 {
		t.Fatalf("Expected 500 points after 501 appends, got %d", len(snap.Timestamps))
	}

	// Exactly the oldest entry was evicted
	vals := snap.Series["adc0"]
	if vals[0] != 1 {
		t.Errorf("Expected oldest surviving value 1, got %v", vals[0])
	}
	if vals[len(vals)-1] != 500 {
		t.Errorf("Expected newest value 500, got %v", vals[len(vals)-1])
	}
}

func TestBufferLateChannelBackfill(t *testing.T) {
	buf := NewSeriesBuffer(100)
	base := time.Now()

	for i := 0; i < 10; i++ {
		buf.Append(base.Add(time.Duration(i)*time.Millisecond), recordOf(Sample{"old", float64(i)}))
	}
	buf.Append(base.Add(10*time.Millisecond), recordOf(
		Sample{"old", 10},
		Sample{"fresh", 99},
	))

	snap := buf.Snapshot()
	fresh := snap.Series["fresh"]
	if len(fresh) != 11 {
		t.Fatalf("Expected new series length 11 (10 fill + 1 real), got %d", len(fresh))
	}
	for i := 0; i < 10; i++ {
		if !math.IsNaN(fresh[i]) {
			t.Errorf("fill index %d: expected NaN, got %v", i, fresh[i])
		}
	}
	if fresh[10] != 99 {
		t.Errorf("Expected real value 99 at index 10, got %v", fresh[10])
	}
}

func TestBufferDisappearingChannel(t *testing.T) {
	buf := NewSeriesBuffer(100)
	base := time.Now()

	buf.Append(base, recordOf(Sample{"a", 1}, Sample{"b", 2}))
	buf.Append(base.Add(time.Millisecond), recordOf(Sample{"a", 3}))

	snap := buf.Snapshot()
	b := snap.Series["b"]
	if len(b) != 2 {
		t.Fatalf("series b should stay aligned, got length %d", len(b))
	}
	if !math.IsNaN(b[1]) {
		t.Errorf("absent channel should get NaN, got %v", b[1])
	}
}

func TestBufferChannelOrder(t *testing.T) {
	buf := NewSeriesBuffer(10)
	base := time.Now()

	buf.Append(base, recordOf(Sample{"z", 1}, Sample{"a", 2}))
	buf.Append(base, recordOf(Sample{"m", 3}))

	snap := buf.Snapshot()
	want := []string{"z", "a", "m"}
	if len(snap.Order) != len(want) {
		t.Fatalf("Expected %d channels, got %d", len(want), len(snap.Order))
	}
	for i, key := range want {
		if snap.Order[i] != key {
			t.Errorf("order[%d]: expected %q, got %q", i, key, snap.Order[i])
		}
	}
}

func TestBufferDuplicateTimestamps(t *testing.T) {
	buf := NewSeriesBuffer(10)
	ts := time.Now()

	buf.Append(ts, recordOf(Sample{"a", 1}))
	buf.Append(ts, recordOf(Sample{"a", 2}))

	if buf.Len() != 2 {
		t.Errorf("sub-resolution arrivals must stay distinct points, got %d", buf.Len())
	}
}

func TestBufferEmptyRecordIgnored(t *testing.T) {
	buf := NewSeriesBuffer(10)
	buf.Append(time.Now(), nil)
	if buf.Len() != 0 {
		t.Errorf("empty record should not advance the buffer, got %d points", buf.Len())
	}
}

func TestBufferSetWindow(t *testing.T) {
	buf := NewSeriesBuffer(100)
	base := time.Now()
	for i := 0; i < 50; i++ {
		buf.Append(base.Add(time.Duration(i)*time.Millisecond), recordOf(Sample{"a", float64(i)}))
	}

	if err := buf.SetWindow(20); err != nil {
		t.Fatalf("SetWindow(20) failed: %v", err)
	}
	snap := buf.Snapshot()
	if len(snap.Timestamps) != 20 {
		t.Fatalf("Expected 20 points after shrink, got %d", len(snap.Timestamps))
	}
	if snap.Series["a"][0] != 30 {
		t.Errorf("shrink should evict from the front, got first value %v", snap.Series["a"][0])
	}

	if err := buf.SetWindow(0); err != ErrInvalidWindow {
		t.Errorf("SetWindow(0): expected ErrInvalidWindow, got %v", err)
	}
	if err := buf.SetWindow(-5); err != ErrInvalidWindow {
		t.Errorf("SetWindow(-5): expected ErrInvalidWindow, got %v", err)
	}
	if buf.Len() != 20 {
		t.Errorf("rejected SetWindow must leave state unchanged, got %d points", buf.Len())
	}
}

func TestBufferClear(t *testing.T) {
	buf := NewSeriesBuffer(10)
	buf.Append(time.Now(), recordOf(Sample{"a", 1}))
	buf.Clear()

	snap := buf.Snapshot()
	if len(snap.Timestamps) != 0 || len(snap.Series) != 0 || len(snap.Order) != 0 {
		t.Errorf("Clear left residual state: %+v", snap)
	}
}

func TestBufferSnapshotIsACopy(t *testing.T) {
	buf := NewSeriesBuffer(10)
	buf.Append(time.Now(), recordOf(Sample{"a", 1}))

	snap := buf.Snapshot()
	snap.Series["a"][0] = 42

	again := buf.Snapshot()
	if again.Series["a"][0] != 1 {
		t.Error("mutating a snapshot must not affect the buffer")
	}
}

func TestBufferConcurrentAppendSnapshot(t *testing.T) {
	buf := NewSeriesBuffer(64)
	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		base := time.Now()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			buf.Append(base.Add(time.Duration(i)), recordOf(
				Sample{"a", float64(i)},
				Sample{"b", float64(-i)},
			))
		}
	}()

	// Readers must never observe torn state
	for i := 0; i < 200; i++ {
		snap := buf.Snapshot()
		for key, vals := range snap.Series {
			if len(vals) != len(snap.Timestamps) {
				t.Fatalf("torn snapshot: series %q has %d points, timestamps %d",
					key, len(vals), len(snap.Timestamps))
			}
		}
		if len(snap.Timestamps) > 64 {
			t.Fatalf("window bound violated: %d points", len(snap.Timestamps))
		}
	}

	close(stop)
	wg.Wait()
}
