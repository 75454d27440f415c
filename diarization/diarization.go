// Package diarization defines the speaker-diarization collaborator boundary.
package diarization

import "context"

// Turn represents a speaker-attributed time range.
type Turn struct {
	// Speaker is the diarization speaker label (e.g. "SPEAKER_00").
	Speaker string `json:"speaker"`
	// Start is the turn start time in seconds.
	Start float64 `json:"start"`
	// End is the turn end time in seconds.
	End float64 `json:"end"`
}

// Request holds parameters for a diarization call.
type Request struct {
	// AudioBytes is the raw audio payload to diarize.
	AudioBytes []byte `json:"-"`
	// NumSpeakers is the expected number of speakers (0 = auto-detect).
	NumSpeakers int `json:"num_speakers,omitempty"`
}

// Response holds the result of a diarization call.
type Response struct {
	// Turns contains speaker-attributed time ranges. Turns are produced
	// ordered and non-overlapping, but consumers must not rely on it.
	Turns []Turn `json:"turns"`
	// NumSpeakers is the number of speakers detected.
	NumSpeakers int `json:"num_speakers"`
}

// Provider is the interface diarization backends must implement.
type Provider interface {
	// Name returns the provider's unique name.
	Name() string
	// IsAvailable checks if the provider is ready to handle requests.
	IsAvailable(ctx context.Context) bool
	// Diarize sends audio for speaker diarization and returns the result.
	Diarize(ctx context.Context, req Request) (*Response, error)
}
