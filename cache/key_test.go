package cache

import (
	"strings"
	"testing"
)

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already clean", "hello world", "hello world"},
		{"leading and trailing", "  hello world  ", "hello world"},
		{"internal runs", "hello   \t\n  world", "hello world"},
		{"only whitespace", " \t\n ", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeTruncatesToRuneLimit(t *testing.T) {
	long := strings.Repeat("あ", MaxInputRunes+500)
	got := Normalize(long)
	if n := len([]rune(got)); n != MaxInputRunes {
		t.Errorf("normalized length = %d runes, want %d", n, MaxInputRunes)
	}
}

func TestKeyForStableAcrossWhitespaceVariants(t *testing.T) {
	a := KeyFor("keywords", "I worked on a  distributed\tsystem")
	b := KeyFor("keywords", "  I worked on a distributed system ")
	if a != b {
		t.Errorf("whitespace variants produced different keys: %q vs %q", a, b)
	}
}

func TestKeyForSeparatesAnalysisTypes(t *testing.T) {
	text := "the same answer text"
	if KeyFor("keywords", text) == KeyFor("sentiment", text) {
		t.Error("different analysis types must not share a cache key")
	}
}

func TestKeyForPrefix(t *testing.T) {
	key := KeyFor("politeness", "answer")
	if !strings.HasPrefix(key, "politeness:") {
		t.Errorf("key %q missing analysis-type prefix", key)
	}
	// sha256 hex digest after the prefix
	digest := strings.TrimPrefix(key, "politeness:")
	if len(digest) != 64 {
		t.Errorf("digest length = %d, want 64", len(digest))
	}
}

func TestKeyForIgnoresTextBeyondLimit(t *testing.T) {
	base := strings.Repeat("a ", MaxInputRunes) // collapses to > MaxInputRunes runes
	a := KeyFor("keywords", base+" tail one")
	b := KeyFor("keywords", base+" tail two")
	if a != b {
		t.Error("text past the truncation limit must not affect the key")
	}
}
