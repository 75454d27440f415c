// Package transcript merges transcription output with diarization output,
// attributing each transcript segment to a speaker, and maps raw speaker
// labels to interview roles.
package transcript

import (
	"math"
	"sort"

	"github.com/skillsenselab/interview-analyzer/diarization"
	"github.com/skillsenselab/interview-analyzer/transcription"
)

// SpeakerUnassigned is the reserved label for segments no diarization turn
// could be matched to. Finished reports never carry an empty speaker.
const SpeakerUnassigned = "UNASSIGNED"

// DefaultTolerance is the maximum distance (seconds) from a segment midpoint
// to the nearest turn boundary for the nearest-neighbor fallback to apply.
const DefaultTolerance = 1.0

// Option configures Assign.
type Option func(*assignConfig)

type assignConfig struct {
	tolerance float64
}

// WithTolerance overrides the nearest-neighbor fallback tolerance in seconds.
func WithTolerance(seconds float64) Option {
	return func(c *assignConfig) { c.tolerance = seconds }
}

// Assign labels each transcript segment with the speaker of the diarization
// turn containing the segment's midpoint. Segments whose midpoint falls in
// no turn take the nearest turn within the tolerance, or SpeakerUnassigned.
//
// The function is pure: inputs are never mutated, the result is a new slice,
// and re-running on the same inputs yields the same output. Turns are not
// assumed sorted or non-overlapping; containment ties resolve to the turn
// with the earliest start.
func Assign(segments []transcription.Segment, turns []diarization.Turn, opts ...Option) []transcription.Segment {
	cfg := assignConfig{tolerance: DefaultTolerance}
	for _, o := range opts {
		o(&cfg)
	}

	out := make([]transcription.Segment, len(segments))
	copy(out, segments)

	for i := range out {
		out[i].Speaker = speakerFor(out[i].Midpoint(), turns, cfg.tolerance)
	}
	return out
}

func speakerFor(mid float64, turns []diarization.Turn, tolerance float64) string {
	best := ""
	bestStart := math.Inf(1)
	for _, t := range turns {
		if mid >= t.Start && mid < t.End && t.Start < bestStart {
			best = t.Speaker
			bestStart = t.Start
		}
	}
	if best != "" {
		return best
	}

	// Nearest-neighbor fallback: smallest distance from the midpoint to
	// either turn boundary, ties again broken by earliest start.
	bestDist := math.Inf(1)
	bestStart = math.Inf(1)
	for _, t := range turns {
		d := math.Min(math.Abs(mid-t.Start), math.Abs(mid-t.End))
		if d < bestDist || (d == bestDist && t.Start < bestStart) {
			best = t.Speaker
			bestDist = d
			bestStart = t.Start
		}
	}
	if best != "" && bestDist <= tolerance {
		return best
	}
	return SpeakerUnassigned
}

// Interview roles assigned by MapRoles.
const (
	RoleInterviewer = "interviewer"
	RoleCandidate   = "candidate"
)

// MapRoles maps raw speaker labels to interview roles by total talk time:
// in a practice interview the candidate talks most, the interviewer least.
// With a single speaker, that speaker is the candidate. Labels beyond the
// two dominant speakers, and SpeakerUnassigned, are left untouched.
// Ties break lexicographically by label so the mapping is deterministic.
func MapRoles(segments []transcription.Segment) map[string]string {
	talk := make(map[string]float64)
	for _, s := range segments {
		if s.Speaker == "" || s.Speaker == SpeakerUnassigned {
			continue
		}
		talk[s.Speaker] += s.Duration()
	}

	labels := make([]string, 0, len(talk))
	for l := range talk {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if talk[labels[i]] != talk[labels[j]] {
			return talk[labels[i]] > talk[labels[j]]
		}
		return labels[i] < labels[j]
	})

	roles := make(map[string]string, 2)
	if len(labels) >= 1 {
		roles[labels[0]] = RoleCandidate
	}
	if len(labels) >= 2 {
		roles[labels[1]] = RoleInterviewer
	}
	return roles
}
