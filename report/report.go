// Package report assembles the final analysis report from completed stage
// outputs. Assembly is a pure, deterministic merge: identical inputs
// produce an identical report, with the generation timestamp supplied by
// the caller as the only time-dependent field.
package report

import (
	"sort"
	"time"

	"github.com/skillsenselab/interview-analyzer/acoustic"
	"github.com/skillsenselab/interview-analyzer/ingest"
	"github.com/skillsenselab/interview-analyzer/semantic"
	"github.com/skillsenselab/interview-analyzer/session"
	"github.com/skillsenselab/interview-analyzer/transcription"
)

// SpeakerAnalysis bundles everything derived for one speaker.
type SpeakerAnalysis struct {
	// Label is the diarization speaker label (or the implicit-speaker
	// sentinel when diarization was unavailable).
	Label string `json:"label"`
	// Role is the interview role mapped from talk time, if known.
	Role string `json:"role,omitempty"`
	// TalkTimeSec is the total attributed speech time.
	TalkTimeSec float64 `json:"talk_time_sec"`
	// Features is the speaker's acoustic feature window.
	Features acoustic.FeatureWindow `json:"features"`
	// Scores is the derived emotion score set.
	Scores acoustic.ScoreSet `json:"scores"`
	// Feedback holds the coaching remarks rendered from the scores.
	Feedback []string `json:"feedback,omitempty"`
}

// Report is the immutable final output of one session's analysis. A
// reprocessed session gets a new report; existing reports are never
// mutated.
type Report struct {
	SessionID   string         `json:"session_id"`
	Status      session.Status `json:"status"`
	GeneratedAt time.Time      `json:"generated_at"`

	// Segments is the speaker-labeled transcript in start-time order.
	// Every segment carries a speaker label; unassignable segments carry
	// the UNASSIGNED sentinel.
	Segments []transcription.Segment `json:"segments"`

	// Speakers lists per-speaker analyses sorted by label.
	Speakers []SpeakerAnalysis `json:"speakers"`

	// Semantic holds the analysis results in fixed type order, each
	// flagged when a rule-based fallback produced it.
	Semantic []semantic.Result `json:"semantic"`

	// DegradedIntervals lists audio ranges dropped during streaming ingest.
	DegradedIntervals []ingest.Interval `json:"degraded_intervals,omitempty"`

	// Errors carries every recorded stage failure, including ones the
	// session survived.
	Errors []session.StageError `json:"errors,omitempty"`
}

// Degraded reports whether any section of the report used a fallback or
// lost data.
func (r *Report) Degraded() bool {
	if len(r.DegradedIntervals) > 0 || len(r.Errors) > 0 {
		return true
	}
	for _, s := range r.Semantic {
		if s.UsedFallback {
			return true
		}
	}
	for _, sp := range r.Speakers {
		if sp.Scores.LowConfidence {
			return true
		}
	}
	return false
}

// AssembleInput carries the completed stage outputs into Assemble.
type AssembleInput struct {
	Session     *session.Session
	Segments    []transcription.Segment
	Features    map[string]acoustic.FeatureWindow
	Scores      map[string]acoustic.ScoreSet
	Roles       map[string]string
	Semantic    []semantic.Result
	Degraded    []ingest.Interval
	GeneratedAt time.Time
}

// Assemble merges stage outputs into a report. Pure: no I/O, inputs are
// not mutated, and ordering is fully determined by the inputs.
func Assemble(in AssembleInput) *Report {
	segments := make([]transcription.Segment, len(in.Segments))
	copy(segments, in.Segments)
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})

	talk := make(map[string]float64)
	for _, s := range segments {
		talk[s.Speaker] += s.Duration()
	}

	labels := make([]string, 0, len(in.Features))
	for label := range in.Features {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	speakers := make([]SpeakerAnalysis, 0, len(labels))
	for _, label := range labels {
		scores := in.Scores[label]
		speakers = append(speakers, SpeakerAnalysis{
			Label:       label,
			Role:        in.Roles[label],
			TalkTimeSec: talk[label],
			Features:    in.Features[label],
			Scores:      scores,
			Feedback:    acoustic.Feedback(scores),
		})
	}

	semanticResults := make([]semantic.Result, len(in.Semantic))
	copy(semanticResults, in.Semantic)

	degraded := make([]ingest.Interval, len(in.Degraded))
	copy(degraded, in.Degraded)

	return &Report{
		SessionID:         in.Session.ID,
		Status:            in.Session.CurrentStatus(),
		GeneratedAt:       in.GeneratedAt,
		Segments:          segments,
		Speakers:          speakers,
		Semantic:          semanticResults,
		DegradedIntervals: degraded,
		Errors:            in.Session.ErrorList(),
	}
}
