package ingest

import (
	"context"
	"strings"
	"time"

	pipeerrors "github.com/skillsenselab/interview-analyzer/errors"
	"github.com/skillsenselab/interview-analyzer/logger"
	"github.com/skillsenselab/interview-analyzer/progress"
	"github.com/skillsenselab/interview-analyzer/transcription"
)

// flushResult is the outcome of one asynchronous window flush.
type flushResult struct {
	interval Interval
	text     string
	err      error
}

// Buffer accumulates streamed audio and flushes fixed windows to the
// transcription collaborator. One caller drives Push/FlushIfDue/Finalize;
// the only internal concurrency is the single in-flight flush goroutine.
type Buffer struct {
	cfg         Config
	transcriber transcription.Provider
	publisher   progress.Publisher
	log         *logger.Logger
	sessionID   string

	state      State
	pending    []byte
	cutBytes   int64 // stream offset (bytes) up to the last cut window
	totalBytes int64
	queue      []window
	inflight   bool
	results    chan flushResult
	transcript strings.Builder
	degraded   []Interval
}

// NewBuffer creates an idle ingest buffer for one session.
func NewBuffer(sessionID string, transcriber transcription.Provider, publisher progress.Publisher, cfg Config, log *logger.Logger) *Buffer {
	cfg.ApplyDefaults()
	if publisher == nil {
		publisher = progress.NopPublisher{}
	}
	return &Buffer{
		cfg:         cfg,
		transcriber: transcriber,
		publisher:   publisher,
		log:         log.WithComponent("ingest").WithSession(sessionID),
		sessionID:   sessionID,
		state:       StateIdle,
		results:     make(chan flushResult, 1),
	}
}

// State returns the buffer's lifecycle state.
func (b *Buffer) State() State { return b.state }

// Transcript returns the cumulative transcript so far.
func (b *Buffer) Transcript() string { return b.transcript.String() }

// DegradedIntervals returns the audio intervals dropped under backpressure.
func (b *Buffer) DegradedIntervals() []Interval {
	out := make([]Interval, len(b.degraded))
	copy(out, b.degraded)
	return out
}

// Push appends an audio chunk, cutting complete windows as thresholds are
// reached. It never blocks on the transcription collaborator.
func (b *Buffer) Push(chunk []byte) error {
	switch b.state {
	case StateIdle:
		b.state = StateAccumulating
	case StateAccumulating, StateFlushing:
	default:
		return pipeerrors.InvalidInput("push on " + b.state.String() + " ingest buffer")
	}

	b.pending = append(b.pending, chunk...)
	b.totalBytes += int64(len(chunk))

	limit := b.cfg.windowBytes()
	for len(b.pending) >= limit {
		data := make([]byte, limit)
		copy(data, b.pending[:limit])
		b.pending = b.pending[limit:]

		iv := Interval{
			Start: b.cfg.seconds(b.cutBytes),
			End:   b.cfg.seconds(b.cutBytes + int64(limit)),
		}
		b.cutBytes += int64(limit)
		b.enqueue(window{data: data, interval: iv})
	}
	return nil
}

// enqueue adds a cut window to the flush queue, dropping the oldest queued
// window when the backlog limit is exceeded.
func (b *Buffer) enqueue(w window) {
	b.queue = append(b.queue, w)
	for len(b.queue) > b.cfg.BacklogLimit {
		dropped := b.queue[0]
		b.queue = b.queue[1:]
		b.markDegraded(dropped.interval, "backlog limit exceeded")
	}
}

func (b *Buffer) markDegraded(iv Interval, reason string) {
	b.degraded = append(b.degraded, iv)
	b.log.Warn("dropping audio window", logger.Fields(
		"start_sec", iv.Start, "end_sec", iv.End, "reason", reason,
	))
	b.publisher.Publish(progress.Event{
		SessionID: b.sessionID,
		Kind:      progress.KindPartialTranscript,
		Stage:     "ingest",
		Degraded:  true,
		Message:   reason,
		At:        time.Now(),
	})
}

// FlushIfDue applies at most one completed flush result and starts the
// next queued flush. It returns a transcript update when a flush completed
// since the previous call, nil otherwise. It never waits for the
// transcription collaborator.
func (b *Buffer) FlushIfDue(ctx context.Context) (*Update, error) {
	switch b.state {
	case StateIdle, StateAccumulating, StateFlushing:
	default:
		return nil, pipeerrors.InvalidInput("flush on " + b.state.String() + " ingest buffer")
	}

	var update *Update
	if b.inflight {
		select {
		case res := <-b.results:
			update = b.apply(res)
		default:
		}
	}

	b.startNext(ctx)
	return update, nil
}

// startNext launches the next queued window if no flush is in flight.
func (b *Buffer) startNext(ctx context.Context) {
	if b.inflight || len(b.queue) == 0 {
		return
	}
	w := b.queue[0]
	b.queue = b.queue[1:]
	b.inflight = true
	if b.state == StateAccumulating {
		b.state = StateFlushing
	}

	go func() {
		resp, err := b.transcriber.Transcribe(ctx, transcription.Request{
			AudioBytes: w.data,
			Language:   b.cfg.Language,
		})
		res := flushResult{interval: w.interval, err: err}
		if err == nil {
			res.text = strings.TrimSpace(resp.Text)
		}
		b.results <- res
	}()
}

// apply folds one finished flush into the cumulative transcript. Flush
// errors degrade the interval instead of failing the stream.
func (b *Buffer) apply(res flushResult) *Update {
	b.inflight = false
	if b.state == StateFlushing {
		b.state = StateAccumulating
	}

	if res.err != nil {
		b.markDegraded(res.interval, "transcription failed: "+res.err.Error())
		return &Update{
			Transcript: b.transcript.String(),
			Interval:   res.interval,
			Degraded:   true,
		}
	}

	if res.text != "" {
		if b.transcript.Len() > 0 {
			b.transcript.WriteByte(' ')
		}
		b.transcript.WriteString(res.text)
	}

	update := &Update{
		Transcript: b.transcript.String(),
		Appended:   res.text,
		Interval:   res.interval,
		Degraded:   len(b.degraded) > 0,
	}
	b.publisher.Publish(progress.Event{
		SessionID:  b.sessionID,
		Kind:       progress.KindPartialTranscript,
		Stage:      "ingest",
		Transcript: update.Transcript,
		Degraded:   update.Degraded,
		At:         time.Now(),
	})
	return update
}

// Finalize flushes the remaining partial window regardless of threshold,
// drains every queued and in-flight flush in order, and closes the buffer.
// No trailing audio is silently discarded.
func (b *Buffer) Finalize(ctx context.Context) (*Update, error) {
	switch b.state {
	case StateIdle, StateAccumulating, StateFlushing:
	default:
		return nil, pipeerrors.InvalidInput("finalize on " + b.state.String() + " ingest buffer")
	}
	b.state = StateFinalizing

	if len(b.pending) > 0 {
		iv := Interval{
			Start: b.cfg.seconds(b.cutBytes),
			End:   b.cfg.seconds(b.totalBytes),
		}
		b.queue = append(b.queue, window{data: b.pending, interval: iv})
		b.cutBytes = b.totalBytes
		b.pending = nil
	}

	if b.inflight {
		select {
		case res := <-b.results:
			b.apply(res)
		case <-ctx.Done():
			b.state = StateClosed
			return nil, ctx.Err()
		}
	}

	// Remaining queued windows run synchronously; ordering stays monotonic.
	for _, w := range b.queue {
		resp, err := b.transcriber.Transcribe(ctx, transcription.Request{
			AudioBytes: w.data,
			Language:   b.cfg.Language,
		})
		if err != nil {
			if ctx.Err() != nil {
				b.state = StateClosed
				return nil, ctx.Err()
			}
			b.markDegraded(w.interval, "transcription failed: "+err.Error())
			continue
		}
		if text := strings.TrimSpace(resp.Text); text != "" {
			if b.transcript.Len() > 0 {
				b.transcript.WriteByte(' ')
			}
			b.transcript.WriteString(text)
		}
	}
	b.queue = nil
	b.state = StateClosed

	update := &Update{
		Transcript: b.transcript.String(),
		Interval:   Interval{Start: 0, End: b.cfg.seconds(b.totalBytes)},
		Degraded:   len(b.degraded) > 0,
		Final:      true,
	}
	b.publisher.Publish(progress.Event{
		SessionID:  b.sessionID,
		Kind:       progress.KindPartialTranscript,
		Stage:      "ingest",
		Transcript: update.Transcript,
		Degraded:   update.Degraded,
		At:         time.Now(),
	})
	return update, nil
}
