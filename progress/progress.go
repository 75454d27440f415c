// Package progress delivers pipeline progress events to in-process
// subscribers: partial transcript updates during streaming ingest, stage
// completions, and session completion. Delivery is push-based with bounded
// per-subscriber buffers; a slow subscriber loses events rather than
// stalling the pipeline.
package progress

import (
	"time"
)

// Kind classifies a progress event.
type Kind string

const (
	// KindPartialTranscript carries an incremental transcript update from
	// the streaming ingest buffer.
	KindPartialTranscript Kind = "partial_transcript"
	// KindStageCompleted marks one pipeline stage finishing (successfully
	// or degraded).
	KindStageCompleted Kind = "stage_completed"
	// KindStageFailed marks a recorded stage failure.
	KindStageFailed Kind = "stage_failed"
	// KindSessionCompleted marks the whole session reaching a terminal
	// state.
	KindSessionCompleted Kind = "session_completed"
)

// Event is one progress notification for a session.
type Event struct {
	SessionID string    `json:"session_id"`
	Kind      Kind      `json:"kind"`
	Stage     string    `json:"stage,omitempty"`
	// Transcript is the cumulative transcript so far (partial updates only).
	Transcript string `json:"transcript,omitempty"`
	// Degraded marks an interval whose audio was dropped under backpressure.
	Degraded bool      `json:"degraded,omitempty"`
	Message  string    `json:"message,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher is the send side of the hub. The ingest buffer and the
// orchestrator publish through this interface so tests can substitute a
// recorder.
type Publisher interface {
	Publish(event Event)
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
