// Package transcription defines the transcription collaborator boundary:
// the provider interface and time-aligned segment types consumed by the
// pipeline. Engine internals (Whisper or otherwise) live behind it.
package transcription

import "context"

// Segment represents a time-aligned portion of a transcript.
type Segment struct {
	// Start is the segment start time in seconds.
	Start float64 `json:"start"`
	// End is the segment end time in seconds. Always > Start.
	End float64 `json:"end"`
	// Text is the transcribed text for this segment.
	Text string `json:"text"`
	// Speaker is the assigned speaker label. Empty until speaker
	// assignment runs; never empty in a finished report.
	Speaker string `json:"speaker,omitempty"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 { return s.End - s.Start }

// Midpoint returns the temporal midpoint used for speaker assignment.
func (s Segment) Midpoint() float64 { return (s.Start + s.End) / 2 }

// Request holds parameters for a transcription call.
type Request struct {
	// AudioBytes is the raw audio payload to transcribe.
	AudioBytes []byte `json:"-"`
	// Language is the expected language of the audio (e.g. "en").
	Language string `json:"language,omitempty"`
	// Model is the transcription model to use.
	Model string `json:"model,omitempty"`
}

// Response holds the result of a transcription call.
type Response struct {
	// Text is the full transcription text.
	Text string `json:"text"`
	// Segments contains time-aligned transcript segments.
	Segments []Segment `json:"segments,omitempty"`
	// Duration is the audio duration in seconds.
	Duration float64 `json:"duration,omitempty"`
	// Language is the detected or specified language.
	Language string `json:"language,omitempty"`
}

// Provider is the interface transcription backends must implement.
type Provider interface {
	// Name returns the provider's unique name.
	Name() string
	// IsAvailable checks if the provider is ready to handle requests.
	IsAvailable(ctx context.Context) bool
	// Transcribe sends audio for transcription and returns the result.
	Transcribe(ctx context.Context, req Request) (*Response, error)
}
