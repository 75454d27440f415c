package report

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/skillsenselab/interview-analyzer/semantic"
)

// RenderMarkdown serializes the report as a human-readable Markdown
// document. The output is deterministic for a given report; GeneratedAt is
// the only field that varies between runs over identical inputs.
func RenderMarkdown(r *Report) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "# Interview Analysis Report\n\n")
	fmt.Fprintf(&b, "- Session: `%s`\n", r.SessionID)
	fmt.Fprintf(&b, "- Status: %s\n", r.Status)
	fmt.Fprintf(&b, "- Generated: %s\n", r.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	if r.Degraded() {
		fmt.Fprintf(&b, "- **Note: parts of this report are degraded or fallback-derived (see below).**\n")
	}
	b.WriteByte('\n')

	b.WriteString("## Transcript\n\n")
	if len(r.Segments) == 0 {
		b.WriteString("_No transcript segments._\n\n")
	}
	for _, s := range r.Segments {
		fmt.Fprintf(&b, "- `[%.1fs–%.1fs]` **%s**: %s\n", s.Start, s.End, s.Speaker, s.Text)
	}
	if len(r.Segments) > 0 {
		b.WriteByte('\n')
	}

	b.WriteString("## Speakers\n\n")
	for _, sp := range r.Speakers {
		name := sp.Label
		if sp.Role != "" {
			name = fmt.Sprintf("%s (%s)", sp.Label, sp.Role)
		}
		fmt.Fprintf(&b, "### %s\n\n", name)
		fmt.Fprintf(&b, "- Talk time: %.1fs\n", sp.TalkTimeSec)
		fmt.Fprintf(&b, "- Confidence: %.1f / Nervousness: %.1f / Calmness: %.1f / Clarity: %.1f\n",
			sp.Scores.Confidence, sp.Scores.Nervousness, sp.Scores.Calmness, sp.Scores.Clarity)
		if sp.Scores.LowConfidence {
			b.WriteString("- _Scores are low-confidence: pitch could not be detected._\n")
		}
		fmt.Fprintf(&b, "- Speech rate: %.0f units/min, pauses: %d (%.1fs total)\n",
			sp.Features.SpeechRate, sp.Features.PauseCount, sp.Features.PauseTotalSec)
		for _, f := range sp.Feedback {
			fmt.Fprintf(&b, "- %s\n", f)
		}
		b.WriteByte('\n')
	}

	b.WriteString("## Semantic Analysis\n\n")
	for _, res := range r.Semantic {
		renderSemantic(&b, res)
	}

	if len(r.DegradedIntervals) > 0 {
		b.WriteString("## Dropped Audio\n\n")
		for _, iv := range r.DegradedIntervals {
			fmt.Fprintf(&b, "- `[%.1fs–%.1fs]` audio dropped under backpressure; transcript for this range is missing\n", iv.Start, iv.End)
		}
		b.WriteByte('\n')
	}

	if len(r.Errors) > 0 {
		b.WriteString("## Stage Errors\n\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "- `%s` %s: %s\n", e.Stage, e.Code, e.Message)
		}
		b.WriteByte('\n')
	}

	return b.Bytes()
}

func renderSemantic(b *bytes.Buffer, res semantic.Result) {
	title := map[semantic.AnalysisType]string{
		semantic.TypeKeywords:   "Keywords",
		semantic.TypePoliteness: "Politeness",
		semantic.TypeSentiment:  "Sentiment",
	}[res.Type]
	if title == "" {
		title = string(res.Type)
	}

	fmt.Fprintf(b, "### %s", title)
	if res.UsedFallback {
		b.WriteString(" _(rule-based fallback)_")
	}
	b.WriteString("\n\n")

	switch res.Type {
	case semantic.TypeKeywords:
		var kr semantic.KeywordsResult
		if json.Unmarshal(res.Payload, &kr) == nil {
			for _, kw := range kr.Keywords {
				fmt.Fprintf(b, "- %s\n", kw)
			}
		}
	case semantic.TypePoliteness:
		var pr semantic.PolitenessResult
		if json.Unmarshal(res.Payload, &pr) == nil {
			fmt.Fprintf(b, "- Score: %d/5\n", pr.Score)
			for _, issue := range pr.Issues {
				fmt.Fprintf(b, "- Issue: %s\n", issue)
			}
			for _, sug := range pr.Suggestions {
				fmt.Fprintf(b, "- Suggestion: %s\n", sug)
			}
		}
	case semantic.TypeSentiment:
		var sr semantic.SentimentResult
		if json.Unmarshal(res.Payload, &sr) == nil {
			fmt.Fprintf(b, "- Confidence %.2f, calmness %.2f, positivity %.2f\n",
				sr.Confidence, sr.Calmness, sr.Positivity)
			fmt.Fprintf(b, "- %s\n", sr.Summary)
		}
	}
	b.WriteByte('\n')
}
