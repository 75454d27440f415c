package acoustic

// ScoreSet holds derived emotion scores, each clamped to [0,100].
// Recomputed whenever the source feature window changes, never mutated
// independently.
type ScoreSet struct {
	Confidence  float64 `json:"confidence"`
	Nervousness float64 `json:"nervousness"`
	Calmness    float64 `json:"calmness"`
	Clarity     float64 `json:"clarity"`
	// LowConfidence marks a score set derived from incomplete features
	// (e.g. pitch undetectable in a silent segment). Consumers must treat
	// the scores as unreliable, not merely low.
	LowConfidence bool `json:"low_confidence"`
}

// Secondary score coefficients. Calmness falls as volume volatility rises,
// clarity falls as zero-crossing volatility rises; both clamp to [0,100].
const (
	calmnessVolumeWeight = 4.0
	clarityZCRWeight     = 400.0
	neutralScore         = 50.0
)

// Score derives an emotion score set from one feature window.
//
// Formulas:
//
//	rawNervousness = jitter*1000 + pitchStd/100
//	confidence     = clamp(100 - rawNervousness)
//	nervousness    = clamp(rawNervousness)
//	calmness       = clamp(100 - 4*volumeStdDB)
//	clarity        = clamp(100 - 400*zeroCrossingStd)
//
// When pitch was not detected the required inputs are missing; rather than
// fabricating values from a partial formula, all scores are set to a neutral
// 50 and LowConfidence is raised.
func Score(w FeatureWindow) ScoreSet {
	if !w.PitchDetected {
		return ScoreSet{
			Confidence:    neutralScore,
			Nervousness:   neutralScore,
			Calmness:      neutralScore,
			Clarity:       neutralScore,
			LowConfidence: true,
		}
	}

	rawNervousness := w.Jitter*1000 + w.PitchStdHz/100

	return ScoreSet{
		Confidence:  clamp(100 - rawNervousness),
		Nervousness: clamp(rawNervousness),
		Calmness:    clamp(100 - calmnessVolumeWeight*w.VolumeStdDB),
		Clarity:     clamp(100 - clarityZCRWeight*w.ZeroCrossingStd),
	}
}

// Feedback renders short coaching remarks from a score set. Deterministic;
// used verbatim in the rendered report.
func Feedback(s ScoreSet) []string {
	if s.LowConfidence {
		return []string{"Not enough voiced audio to assess delivery reliably."}
	}

	var out []string

	switch {
	case s.Confidence > 70:
		out = append(out, "Confident, steady tone throughout.")
	case s.Confidence > 50:
		out = append(out, "Reasonably confident; a slightly stronger voice would land better.")
	default:
		out = append(out, "Voice sounds tentative; practice the answers until they feel settled.")
	}

	switch {
	case s.Nervousness > 70:
		out = append(out, "High vocal tension detected; slow down and breathe between answers.")
	case s.Nervousness > 50:
		out = append(out, "Some nervousness shows in the voice; pausing before answers helps.")
	default:
		out = append(out, "Relaxed delivery; keep it up.")
	}

	if s.Calmness < 40 {
		out = append(out, "Volume swings a lot; aim for an even speaking level.")
	}
	if s.Clarity < 40 {
		out = append(out, "Articulation is uneven; enunciating key points more clearly would help.")
	}

	return out
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
