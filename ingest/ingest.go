// Package ingest buffers live audio into fixed-duration windows for
// incremental transcription. Ingestion never blocks on the transcription
// collaborator: windows queue behind an in-flight flush, and a bounded
// backlog drops the oldest queued window (marking its interval degraded)
// instead of growing without limit.
package ingest

import (
	"fmt"
	"time"
)

// State is the buffer lifecycle state.
type State int

const (
	StateIdle State = iota
	StateAccumulating
	StateFlushing
	StateFinalizing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateFlushing:
		return "flushing"
	case StateFinalizing:
		return "finalizing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config configures a streaming ingest buffer. Audio is PCM s16le mono.
type Config struct {
	// SampleRate is the audio sample rate in Hz.
	SampleRate int `yaml:"sample_rate" mapstructure:"sample_rate"`
	// BytesPerSample is the sample width (2 for s16le).
	BytesPerSample int `yaml:"bytes_per_sample" mapstructure:"bytes_per_sample"`
	// WindowDuration is the accumulation threshold before a flush.
	WindowDuration time.Duration `yaml:"window_duration" mapstructure:"window_duration"`
	// MaxWindowBytes optionally flushes earlier than WindowDuration when
	// the buffered bytes reach this size. Zero disables the byte threshold.
	MaxWindowBytes int `yaml:"max_window_bytes" mapstructure:"max_window_bytes"`
	// BacklogLimit is the number of cut windows that may wait behind an
	// in-flight flush before the oldest is dropped.
	BacklogLimit int `yaml:"backlog_limit" mapstructure:"backlog_limit"`
	// Language is passed through to the transcription collaborator.
	Language string `yaml:"language" mapstructure:"language"`
}

// ApplyDefaults applies default values to the ingest configuration.
func (c *Config) ApplyDefaults() {
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.BytesPerSample == 0 {
		c.BytesPerSample = 2
	}
	if c.WindowDuration == 0 {
		c.WindowDuration = 3 * time.Second
	}
	if c.BacklogLimit == 0 {
		c.BacklogLimit = 2
	}
}

// windowBytes is the flush threshold in bytes.
func (c Config) windowBytes() int {
	n := int(float64(c.SampleRate*c.BytesPerSample) * c.WindowDuration.Seconds())
	if c.MaxWindowBytes > 0 && c.MaxWindowBytes < n {
		n = c.MaxWindowBytes
	}
	return n
}

// seconds converts a byte count to audio seconds.
func (c Config) seconds(n int64) float64 {
	return float64(n) / float64(c.SampleRate*c.BytesPerSample)
}

// Interval is a half-open time range [Start, End) in seconds from the
// beginning of the stream.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Update is one incremental transcript notification. Transcript only ever
// grows across successive updates.
type Update struct {
	// Transcript is the cumulative transcript so far.
	Transcript string `json:"transcript"`
	// Appended is the text this update added.
	Appended string `json:"appended,omitempty"`
	// Interval is the audio range this update covers.
	Interval Interval `json:"interval"`
	// Degraded reports whether any interval so far was dropped under
	// backpressure.
	Degraded bool `json:"degraded,omitempty"`
	// Final marks the update produced by Finalize.
	Final bool `json:"final,omitempty"`
}

// window is one cut span of audio awaiting transcription.
type window struct {
	data     []byte
	interval Interval
}
