// Package acoustic defines the feature-extraction collaborator boundary and
// the emotion scorer that derives bounded scores from acoustic features.
package acoustic

import (
	"context"

	"github.com/skillsenselab/interview-analyzer/diarization"
)

// FeatureWindow holds per-speaker acoustic aggregates for a session.
// Produced once by the feature-extraction collaborator and immutable after.
type FeatureWindow struct {
	// PitchMeanHz is the mean fundamental frequency.
	PitchMeanHz float64 `json:"pitch_mean_hz"`
	// PitchStdHz is the standard deviation of the fundamental frequency.
	PitchStdHz float64 `json:"pitch_std_hz"`
	// VolumeMeanDB is the mean RMS volume in decibels.
	VolumeMeanDB float64 `json:"volume_mean_db"`
	// VolumeStdDB is the standard deviation of the RMS volume.
	VolumeStdDB float64 `json:"volume_std_db"`
	// ZeroCrossingRate is the mean zero-crossing rate.
	ZeroCrossingRate float64 `json:"zero_crossing_rate"`
	// ZeroCrossingStd is the standard deviation of the zero-crossing rate.
	ZeroCrossingStd float64 `json:"zero_crossing_std"`
	// SpectralCentroid is the mean spectral centroid in Hz.
	SpectralCentroid float64 `json:"spectral_centroid"`
	// Jitter is the relative frequency perturbation (dimensionless).
	Jitter float64 `json:"jitter"`
	// SpeechRate is the speaking rate in units per minute.
	SpeechRate float64 `json:"speech_rate"`
	// PauseCount is the number of pauses of 0.5s or longer.
	PauseCount int `json:"pause_count"`
	// PauseTotalSec is the total pause time in seconds.
	PauseTotalSec float64 `json:"pause_total_sec"`
	// DurationSec is the total attributed speech time in seconds.
	DurationSec float64 `json:"duration_sec"`
	// PitchDetected is false when no voiced frames were found (for example
	// a silent or noise-only segment); pitch fields are then meaningless.
	PitchDetected bool `json:"pitch_detected"`
}

// Request holds parameters for a feature-extraction call.
type Request struct {
	// AudioBytes is the raw audio payload.
	AudioBytes []byte `json:"-"`
	// SpeakerTurns attributes time ranges to speakers so features can be
	// aggregated per speaker label.
	SpeakerTurns []diarization.Turn `json:"speaker_turns"`
}

// Response maps each identified speaker label to its feature window.
type Response struct {
	Windows map[string]FeatureWindow `json:"windows"`
}

// Provider is the interface feature-extraction backends must implement.
type Provider interface {
	// Name returns the provider's unique name.
	Name() string
	// IsAvailable checks if the provider is ready to handle requests.
	IsAvailable(ctx context.Context) bool
	// ExtractFeatures computes per-speaker acoustic aggregates.
	ExtractFeatures(ctx context.Context, req Request) (*Response, error)
}

// SpeechRateFor recomputes the actual speech rate (units/minute) from the
// transcript once transcription is available, replacing the extractor's
// estimate.
func SpeechRateFor(text string, durationSec float64) float64 {
	if durationSec <= 0 {
		return 0
	}
	units := len([]rune(text))
	return float64(units) / (durationSec / 60.0)
}
