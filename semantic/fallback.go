package semantic

import (
	"encoding/json"
	"fmt"
	"strings"
)

// interviewLexicon is the ordered term list the fallback keyword scan
// matches against. Order fixes the output order, keeping the fallback
// deterministic.
var interviewLexicon = []string{
	"experience", "project", "team", "leadership", "challenge",
	"problem", "solution", "skills", "communication", "learned",
	"growth", "goal", "motivation", "responsibility", "improve",
}

// casualPhrases are fillers and casual register markers the fallback
// politeness check flags, each paired with its coaching suggestion.
var casualPhrases = []struct {
	phrase     string
	issue      string
	suggestion string
}{
	{"gonna", `casual contraction "gonna"`, `prefer "going to" over "gonna"`},
	{"wanna", `casual contraction "wanna"`, `prefer "want to" over "wanna"`},
	{"kinda", `casual hedge "kinda"`, `prefer "somewhat" or drop the hedge`},
	{"you know", `filler phrase "you know"`, `pause instead of saying "you know"`},
	{"like,", `filler "like"`, `reduce filler "like" between clauses`},
	{"stuff", `vague word "stuff"`, `name the specific items instead of "stuff"`},
	{"yeah", `casual acknowledgment "yeah"`, `prefer "yes" in a formal setting`},
}

var positiveWords = []string{
	"confident", "excited", "enjoy", "proud", "success", "achieved",
	"passionate", "motivated", "opportunity", "improved",
}

var negativeWords = []string{
	"unfortunately", "failed", "nervous", "worried", "difficult",
	"struggle", "problem", "weak", "afraid", "stress",
}

// Fallback produces a deterministic rule-based result for the analysis
// type, used when the external service is exhausted. No I/O; identical
// text always yields an identical payload.
func Fallback(analysisType AnalysisType, text string) (json.RawMessage, error) {
	switch analysisType {
	case TypeKeywords:
		return json.Marshal(fallbackKeywords(text))
	case TypePoliteness:
		return json.Marshal(fallbackPoliteness(text))
	case TypeSentiment:
		return json.Marshal(fallbackSentiment(text))
	default:
		return nil, fmt.Errorf("no fallback for analysis type %q", analysisType)
	}
}

func fallbackKeywords(text string) KeywordsResult {
	lower := strings.ToLower(text)
	var found []string
	for _, kw := range interviewLexicon {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
		if len(found) == 10 {
			break
		}
	}
	if len(found) == 0 {
		found = []string{"no notable keywords detected"}
	}
	return KeywordsResult{Keywords: found}
}

func fallbackPoliteness(text string) PolitenessResult {
	lower := strings.ToLower(text)
	result := PolitenessResult{Score: 5}
	for _, p := range casualPhrases {
		if strings.Contains(lower, p.phrase) {
			result.Issues = append(result.Issues, p.issue)
			result.Suggestions = append(result.Suggestions, p.suggestion)
		}
	}
	result.Score -= len(result.Issues)
	if result.Score < 1 {
		result.Score = 1
	}
	return result
}

func fallbackSentiment(text string) SentimentResult {
	lower := strings.ToLower(text)

	var pos, neg int
	for _, w := range positiveWords {
		pos += strings.Count(lower, w)
	}
	for _, w := range negativeWords {
		neg += strings.Count(lower, w)
	}

	positivity := clamp01(0.5 + 0.05*float64(pos-neg))

	// Longer answers read as more confident; very short ones as hesitant.
	words := len(strings.Fields(text))
	confidence := clamp01(0.3 + float64(words)/500.0)

	calmness := clamp01(0.5 + 0.03*float64(pos) - 0.05*float64(neg))

	var summary string
	switch {
	case words < 30:
		summary = "Short answer; consider elaborating with concrete examples."
	case positivity >= 0.6:
		summary = "Generally positive tone with adequate detail."
	case positivity <= 0.4:
		summary = "Tone leans negative; reframing setbacks as learning may help."
	default:
		summary = "Neutral tone with adequate detail."
	}

	return SentimentResult{
		Confidence: confidence,
		Calmness:   calmness,
		Positivity: positivity,
		Summary:    summary,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
