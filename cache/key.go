package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// MaxInputRunes is the documented input limit: text is truncated to this
// many runes before hashing, matching the truncation applied to the text
// actually sent to the semantic service.
const MaxInputRunes = 4000

// Normalize canonicalizes input text before hashing: leading/trailing
// whitespace is trimmed, internal whitespace runs collapse to single
// spaces, and the result is truncated to MaxInputRunes. Near-duplicate
// whitespace variants of the same text therefore share one cache key.
func Normalize(text string) string {
	fields := strings.Fields(text)
	normalized := strings.Join(fields, " ")

	runes := []rune(normalized)
	if len(runes) > MaxInputRunes {
		normalized = string(runes[:MaxInputRunes])
	}
	return normalized
}

// KeyFor builds the content-addressed cache key for an analysis type and
// input text: analysisType ":" hex(sha256(Normalize(text))).
func KeyFor(analysisType, text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return analysisType + ":" + hex.EncodeToString(sum[:])
}
