// Package chunking splits extracted document text into bounded,
// position-tracked segments ready for embedding.
package chunking

import (
	"fmt"
	"unicode"

	"github.com/google/uuid"

	"github.com/arkologystudio/lumen-search/pkg/models"
	"github.com/arkologystudio/lumen-search/pkg/observability"
)

const (
	// DefaultMaxChars bounds the length of a chunk in runes.
	DefaultMaxChars = 1200
	// DefaultOverlap is the tail window carried into the next chunk.
	DefaultOverlap = 100
)

// Chunker packs sentences into bounded chunks with a fixed overlap window.
// Chunking is deterministic: identical input yields identical chunks and
// identical chunk IDs.
type Chunker struct {
	maxChars int
	overlap  int
	splitter *sentenceSplitter
	metrics  observability.MetricsClient
}

// Config configures a Chunker.
type Config struct {
	MaxChars int
	Overlap  int
	Metrics  observability.MetricsClient
}

// New creates a Chunker. Zero config fields fall back to defaults.
func New(cfg Config) (*Chunker, error) {
	if cfg.MaxChars == 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	if cfg.MaxChars < 0 {
		return nil, fmt.Errorf("max chunk length must be positive, got %d", cfg.MaxChars)
	}
	if cfg.Overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must be non-negative, got %d", cfg.Overlap)
	}
	if cfg.Overlap == 0 {
		cfg.Overlap = DefaultOverlap
	}
	if cfg.Overlap >= cfg.MaxChars {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than max chunk length %d", cfg.Overlap, cfg.MaxChars)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewNoopMetricsClient()
	}

	return &Chunker{
		maxChars: cfg.MaxChars,
		overlap:  cfg.Overlap,
		splitter: newSentenceSplitter(),
		metrics:  cfg.Metrics,
	}, nil
}

// Chunk splits text into ordered chunks for one document. Offsets are rune
// offsets into the original text; consecutive chunks overlap by the
// configured window and their union covers the whole input. Empty input
// yields zero chunks.
func (c *Chunker) Chunk(tenantID uuid.UUID, documentID, title, url, text string) ([]models.Chunk, error) {
	if documentID == "" {
		return nil, fmt.Errorf("document id is required")
	}

	runes := []rune(text)
	if isBlank(runes) {
		return nil, nil
	}

	segments := c.pack(runes)

	chunks := make([]models.Chunk, 0, len(segments))
	completed := 0
	for i, seg := range segments {
		start := seg.Start
		if i > 0 {
			// Pull the overlap window from the previous segment's tail.
			start = seg.Start - c.overlap
			if start < segments[i-1].Start {
				start = segments[i-1].Start
			}
		}

		chunkText := string(runes[start:seg.End])
		if endsAtSentence(runes, seg.End) {
			completed++
		}

		chunks = append(chunks, models.Chunk{
			ID:            models.ChunkID(tenantID, documentID, i),
			TenantID:      tenantID,
			DocumentID:    documentID,
			DocumentTitle: title,
			DocumentURL:   url,
			Sequence:      i,
			Text:          chunkText,
			StartOffset:   start,
			EndOffset:     seg.End,
		})
	}

	if len(chunks) > 0 {
		c.metrics.RecordGauge("chunker_sentence_completeness_ratio",
			float64(completed)/float64(len(chunks)),
			map[string]string{"tenant_id": tenantID.String()})
		c.metrics.IncrementCounter("chunker_chunks_total",
			float64(len(chunks)),
			map[string]string{"tenant_id": tenantID.String()})
	}

	return chunks, nil
}

// pack groups sentence spans into segments no longer than maxChars, never
// severing a sentence. A single sentence longer than maxChars is hard-split,
// preferring a trailing space inside the window.
func (c *Chunker) pack(runes []rune) []span {
	sentences := c.splitter.split(runes)

	var segments []span
	var cur *span

	flush := func() {
		if cur != nil {
			segments = append(segments, *cur)
			cur = nil
		}
	}

	for _, sent := range sentences {
		length := sent.End - sent.Start

		if length > c.maxChars {
			flush()
			segments = append(segments, c.hardSplit(runes, sent)...)
			continue
		}

		if cur == nil {
			s := sent
			cur = &s
			continue
		}

		if cur.End-cur.Start+length > c.maxChars {
			flush()
			s := sent
			cur = &s
			continue
		}

		cur.End = sent.End
	}
	flush()

	return segments
}

// hardSplit breaks one oversized sentence into maxChars windows.
func (c *Chunker) hardSplit(runes []rune, sent span) []span {
	var parts []span
	start := sent.Start
	for start < sent.End {
		end := start + c.maxChars
		if end >= sent.End {
			parts = append(parts, span{Start: start, End: sent.End})
			break
		}
		// Prefer to break after the last space inside the window.
		cut := end
		for cut > start+1 && !unicode.IsSpace(runes[cut-1]) {
			cut--
		}
		if cut == start+1 {
			cut = end
		}
		parts = append(parts, span{Start: start, End: cut})
		start = cut
	}
	return parts
}

// endsAtSentence reports whether the text up to end finishes on sentence
// punctuation, ignoring trailing whitespace and closing quotes.
func endsAtSentence(runes []rune, end int) bool {
	i := end - 1
	for i >= 0 && (unicode.IsSpace(runes[i]) || isClosing(runes[i])) {
		i--
	}
	if i < 0 {
		return false
	}
	return runes[i] == '.' || runes[i] == '!' || runes[i] == '?'
}

func isBlank(runes []rune) bool {
	for _, r := range runes {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
