package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/skillsenselab/interview-analyzer/logger"
	"github.com/skillsenselab/interview-analyzer/transcription"
)

// scriptedTranscriber returns "part1", "part2", ... per call, optionally
// gated so a flush can be held in flight.
type scriptedTranscriber struct {
	mu    sync.Mutex
	calls int
	gate  chan struct{}
	err   error
}

func (s *scriptedTranscriber) Name() string                     { return "scripted" }
func (s *scriptedTranscriber) IsAvailable(context.Context) bool { return true }

func (s *scriptedTranscriber) Transcribe(ctx context.Context, _ transcription.Request) (*transcription.Response, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	s.calls++
	n := s.calls
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &transcription.Response{Text: fmt.Sprintf("part%d", n)}, nil
}

func (s *scriptedTranscriber) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// pushSeconds pushes the given amount of audio in 0.5s chunks plus a
// remainder chunk, at the default 16kHz s16le rate.
func pushSeconds(t *testing.T, b *Buffer, seconds float64) {
	t.Helper()
	total := int(seconds * 32000)
	const chunk = 16000
	for total > 0 {
		n := chunk
		if total < chunk {
			n = total
		}
		if err := b.Push(make([]byte, n)); err != nil {
			t.Fatalf("Push: %v", err)
		}
		total -= n
	}
}

// waitUpdate polls FlushIfDue until a completed flush surfaces.
func waitUpdate(t *testing.T, b *Buffer) *Update {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		u, err := b.FlushIfDue(context.Background())
		if err != nil {
			t.Fatalf("FlushIfDue: %v", err)
		}
		if u != nil {
			return u
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no flush completed before deadline")
	return nil
}

func TestBufferFlushesTwiceForSixPointTwoSeconds(t *testing.T) {
	tr := &scriptedTranscriber{}
	b := NewBuffer("sess-1", tr, nil, Config{}, logger.Nop())

	pushSeconds(t, b, 6.2)

	u1 := waitUpdate(t, b)
	u2 := waitUpdate(t, b)
	if got := tr.Calls(); got != 2 {
		t.Fatalf("flushes before finalize = %d, want 2", got)
	}
	if len(u2.Transcript) < len(u1.Transcript) {
		t.Error("cumulative transcript shrank between flushes")
	}
	if u1.Interval.Start != 0 || u1.Interval.End != 3 {
		t.Errorf("first window interval = %+v, want [0,3)", u1.Interval)
	}
	if u2.Interval.Start != 3 || u2.Interval.End != 6 {
		t.Errorf("second window interval = %+v, want [3,6)", u2.Interval)
	}

	final, err := b.Finalize(context.Background())
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !final.Final {
		t.Error("final update not marked Final")
	}
	if got := tr.Calls(); got != 3 {
		t.Errorf("total flushes = %d, want 3 (trailing 0.2s window)", got)
	}
	if final.Transcript != "part1 part2 part3" {
		t.Errorf("transcript = %q", final.Transcript)
	}
	if final.Degraded {
		t.Error("clean run marked degraded")
	}
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed", b.State())
	}
}

func TestBufferBackpressureDropsOldestQueuedWindow(t *testing.T) {
	gate := make(chan struct{})
	tr := &scriptedTranscriber{gate: gate}
	b := NewBuffer("sess-1", tr, nil, Config{}, logger.Nop())

	// First window goes in flight and is held there.
	pushSeconds(t, b, 3.0)
	if _, err := b.FlushIfDue(context.Background()); err != nil {
		t.Fatalf("FlushIfDue: %v", err)
	}

	// Three more windows arrive while the flush is stuck. Backlog limit is
	// 2, so the oldest queued window (3s-6s) is dropped.
	pushSeconds(t, b, 9.0)
	if got := tr.Calls(); got != 0 {
		t.Fatalf("transcriber called %d times while gated", got)
	}

	degraded := b.DegradedIntervals()
	if len(degraded) != 1 {
		t.Fatalf("degraded intervals = %v, want exactly one", degraded)
	}
	if degraded[0].Start != 3 || degraded[0].End != 6 {
		t.Errorf("dropped interval = %+v, want [3,6)", degraded[0])
	}

	close(gate)
	for i := 0; i < 3; i++ {
		waitUpdate(t, b)
	}

	final, err := b.Finalize(context.Background())
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !final.Degraded {
		t.Error("final update not marked degraded after a drop")
	}
	// Windows 1, 3 and 4 survive.
	if final.Transcript != "part1 part2 part3" {
		t.Errorf("transcript = %q", final.Transcript)
	}
}

func TestBufferSingleFlushInFlight(t *testing.T) {
	gate := make(chan struct{})
	tr := &scriptedTranscriber{gate: gate}
	b := NewBuffer("sess-1", tr, nil, Config{}, logger.Nop())

	pushSeconds(t, b, 6.0)
	for i := 0; i < 5; i++ {
		if _, err := b.FlushIfDue(context.Background()); err != nil {
			t.Fatalf("FlushIfDue: %v", err)
		}
	}
	// The second window must wait for the first, no matter how often
	// FlushIfDue is called.
	time.Sleep(20 * time.Millisecond)
	if got := tr.Calls(); got != 0 {
		t.Fatalf("gated transcriber completed %d calls", got)
	}

	close(gate)
	waitUpdate(t, b)
	waitUpdate(t, b)
	if got := tr.Calls(); got != 2 {
		t.Errorf("flushes = %d, want 2", got)
	}
}

func TestBufferFlushErrorDegradesInterval(t *testing.T) {
	tr := &scriptedTranscriber{err: errors.New("engine offline")}
	b := NewBuffer("sess-1", tr, nil, Config{}, logger.Nop())

	pushSeconds(t, b, 3.0)
	u := waitUpdate(t, b)
	if !u.Degraded {
		t.Error("failed flush not marked degraded")
	}
	if u.Transcript != "" {
		t.Errorf("failed flush appended text: %q", u.Transcript)
	}

	// The stream recovers once the engine does.
	tr.mu.Lock()
	tr.err = nil
	tr.mu.Unlock()

	pushSeconds(t, b, 3.0)
	u = waitUpdate(t, b)
	if u.Appended == "" {
		t.Error("recovered flush appended nothing")
	}

	final, err := b.Finalize(context.Background())
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !final.Degraded {
		t.Error("report not marked degraded after a failed window")
	}
}

func TestBufferFinalizeWithoutThresholdAudio(t *testing.T) {
	tr := &scriptedTranscriber{}
	b := NewBuffer("sess-1", tr, nil, Config{}, logger.Nop())

	// 1.5s: below the 3s threshold, so no flush is ever due.
	pushSeconds(t, b, 1.5)
	if u, err := b.FlushIfDue(context.Background()); err != nil || u != nil {
		t.Fatalf("unexpected flush: update=%v err=%v", u, err)
	}

	final, err := b.Finalize(context.Background())
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if tr.Calls() != 1 {
		t.Errorf("finalize flushes = %d, want 1", tr.Calls())
	}
	if final.Transcript != "part1" {
		t.Errorf("transcript = %q", final.Transcript)
	}
	if final.Interval.End != 1.5 {
		t.Errorf("final interval end = %v, want 1.5", final.Interval.End)
	}
}

func TestBufferClosedRejectsFurtherUse(t *testing.T) {
	tr := &scriptedTranscriber{}
	b := NewBuffer("sess-1", tr, nil, Config{}, logger.Nop())

	if _, err := b.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := b.Push(make([]byte, 100)); err == nil {
		t.Error("Push on closed buffer succeeded")
	}
	if _, err := b.FlushIfDue(context.Background()); err == nil {
		t.Error("FlushIfDue on closed buffer succeeded")
	}
	if _, err := b.Finalize(context.Background()); err == nil {
		t.Error("second Finalize succeeded")
	}
}
