package chunking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitStrings(t *testing.T, text string) []string {
	t.Helper()
	runes := []rune(text)
	spans := newSentenceSplitter().split(runes)

	// Spans must be contiguous and cover the whole input.
	prev := 0
	out := make([]string, 0, len(spans))
	for _, sp := range spans {
		require.Equal(t, prev, sp.Start)
		prev = sp.End
		out = append(out, string(runes[sp.Start:sp.End]))
	}
	if len(spans) > 0 {
		require.Equal(t, len(runes), spans[len(spans)-1].End)
	}
	return out
}

func TestSplitBasicSentences(t *testing.T) {
	sentences := splitStrings(t, "First sentence here. Second one follows! Third asks a question? Done.")
	assert.Len(t, sentences, 4)
	assert.Equal(t, "First sentence here. ", sentences[0])
	assert.Equal(t, "Second one follows! ", sentences[1])
}

func TestSplitAbbreviations(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"title abbreviation", "Dr. Smith arrived early. He was pleased.", 2},
		{"company suffix", "She works at Acme Inc. The office is downtown.", 2},
		{"latin abbreviation", "Bring supplies, e.g. rope and tape. Nothing else.", 2},
		{"decimal number", "The value of pi is roughly 3.14 in most uses. Precision varies.", 2},
		{"ellipsis", "He paused... then continued speaking. The end.", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitStrings(t, tt.text)
			assert.Len(t, got, tt.want, "sentences: %q", got)
		})
	}
}

func TestSplitParagraphBoundary(t *testing.T) {
	sentences := splitStrings(t, "A heading without punctuation\n\nThe body starts here.")
	require.Len(t, sentences, 2)
	assert.Equal(t, "A heading without punctuation\n\n", sentences[0])
}

func TestSplitNoTrailingPunctuation(t *testing.T) {
	sentences := splitStrings(t, "This text just stops")
	require.Len(t, sentences, 1)
	assert.Equal(t, "This text just stops", sentences[0])
}

func TestSplitEmpty(t *testing.T) {
	assert.Empty(t, splitStrings(t, ""))
}

func TestSplitClosingQuote(t *testing.T) {
	sentences := splitStrings(t, `He said "stop." Then he left.`)
	assert.Len(t, sentences, 2)
}
