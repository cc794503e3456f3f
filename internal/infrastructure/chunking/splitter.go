package chunking

import (
	"iter"

	"github.com/kirillkom/book-qa/internal/core/domain"
)

const (
	DefaultChunkSize    = 300
	DefaultChunkOverlap = 100
)

// Splitter cuts each document into windows of ChunkSize characters whose
// starts are ChunkSize-Overlap apart. The last window ends at the end of the
// text and may be shorter. Offsets count runes, not bytes.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

// NewSplitter falls back to the default size for non-positive sizes and
// shrinks an overlap that would stall the window to a quarter of the size.
func NewSplitter(chunkSize, overlap int) *Splitter {
	s := &Splitter{ChunkSize: chunkSize, Overlap: max(overlap, 0)}
	if s.ChunkSize <= 0 {
		s.ChunkSize = DefaultChunkSize
	}
	if s.Overlap >= s.ChunkSize {
		s.Overlap = s.ChunkSize / 4
	}
	return s
}

// Split never returns nil so callers can report zero chunks as an empty list.
func (s *Splitter) Split(docs []domain.TextDocument) []domain.Chunk {
	chunks := []domain.Chunk{}
	for _, doc := range docs {
		text := []rune(doc.Text)
		for start, end := range s.windows(len(text)) {
			chunks = append(chunks, domain.Chunk{
				Source:     doc.Source,
				StartIndex: start,
				Text:       string(text[start:end]),
			})
		}
	}
	return chunks
}

// windows yields the [start, end) bounds over a text of n runes.
func (s *Splitter) windows(n int) iter.Seq2[int, int] {
	size := max(s.ChunkSize, 1)
	stride := max(size-s.Overlap, 1)
	return func(yield func(int, int) bool) {
		for start := 0; start < n; start += stride {
			end := min(start+size, n)
			if !yield(start, end) || end == n {
				return
			}
		}
	}
}
