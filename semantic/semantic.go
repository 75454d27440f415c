// Package semantic wraps the external semantic-analysis service with typed
// response schemas, retry, rate limiting, a deterministic rule-based
// fallback, and a content-addressed result cache.
package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	pipeerrors "github.com/skillsenselab/interview-analyzer/errors"
)

// AnalysisType selects which structured analysis to run over a transcript.
type AnalysisType string

const (
	TypeKeywords   AnalysisType = "keywords"
	TypePoliteness AnalysisType = "politeness"
	TypeSentiment  AnalysisType = "sentiment"
)

// AllTypes returns every analysis type in report order.
func AllTypes() []AnalysisType {
	return []AnalysisType{TypeKeywords, TypePoliteness, TypeSentiment}
}

// Valid reports whether t names a known analysis type.
func (t AnalysisType) Valid() bool {
	switch t {
	case TypeKeywords, TypePoliteness, TypeSentiment:
		return true
	}
	return false
}

// Provider is the external semantic-analysis collaborator. Responses are
// raw JSON; the client decodes and validates them against the per-type
// schema immediately after the call.
type Provider interface {
	// Name identifies the provider (used as the cache model tag).
	Name() string
	// IsAvailable reports whether the provider can serve requests.
	IsAvailable(ctx context.Context) bool
	// Analyze runs one analysis of the given type over the text.
	Analyze(ctx context.Context, analysisType AnalysisType, text string) (json.RawMessage, error)
}

// KeywordsResult is the schema for a keywords analysis: the notable terms
// the answer touched, between 5 and 10 of them.
type KeywordsResult struct {
	Keywords []string `json:"keywords" validate:"required,min=5,max=10,dive,required"`
}

// PolitenessResult is the schema for a politeness evaluation.
type PolitenessResult struct {
	// Score grades register and phrasing from 1 (poor) to 5 (excellent).
	Score       int      `json:"score" validate:"gte=1,lte=5"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

// SentimentResult is the schema for a sentiment analysis. The three signal
// fields are normalized to [0, 1].
type SentimentResult struct {
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
	Calmness   float64 `json:"calmness" validate:"gte=0,lte=1"`
	Positivity float64 `json:"positivity" validate:"gte=0,lte=1"`
	Summary    string  `json:"summary" validate:"required"`
}

var validate = validator.New()

// decodeAndValidate parses a provider payload into the typed schema for the
// analysis type and validates it. Any shape mismatch is a schema-validation
// error, which the client retries exactly like a transient failure.
func decodeAndValidate(analysisType AnalysisType, payload json.RawMessage) (json.RawMessage, error) {
	var target any
	switch analysisType {
	case TypeKeywords:
		target = &KeywordsResult{}
	case TypePoliteness:
		target = &PolitenessResult{}
	case TypeSentiment:
		target = &SentimentResult{}
	default:
		return nil, pipeerrors.InvalidInput(fmt.Sprintf("unknown analysis type %q", analysisType))
	}

	cleaned := stripCodeFence(payload)

	dec := json.NewDecoder(bytes.NewReader(cleaned))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return nil, pipeerrors.SchemaValidation(string(analysisType), err)
	}
	if err := validate.Struct(target); err != nil {
		return nil, pipeerrors.SchemaValidation(string(analysisType), err)
	}

	// Re-marshal so the cached payload is canonical regardless of how the
	// provider formatted its response.
	canonical, err := json.Marshal(target)
	if err != nil {
		return nil, pipeerrors.SchemaValidation(string(analysisType), err)
	}
	return canonical, nil
}

// stripCodeFence removes a Markdown ```json fence if the provider wrapped
// its response in one.
func stripCodeFence(payload []byte) []byte {
	trimmed := bytes.TrimSpace(payload)
	if !bytes.HasPrefix(trimmed, []byte("```")) {
		return trimmed
	}
	trimmed = bytes.TrimPrefix(trimmed, []byte("```json"))
	trimmed = bytes.TrimPrefix(trimmed, []byte("```"))
	trimmed = bytes.TrimSuffix(bytes.TrimSpace(trimmed), []byte("```"))
	return bytes.TrimSpace(trimmed)
}
