package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/book-qa/internal/core/domain"
)

func doc(text string) []domain.TextDocument {
	return []domain.TextDocument{{Source: "uploads/book.md", Text: text}}
}

func TestSplitShortTextYieldsSingleChunk(t *testing.T) {
	text := strings.Repeat("a", 50)
	chunks := NewSplitter(300, 100).Split(doc(text))

	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].StartIndex)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, "uploads/book.md", chunks[0].Source)
}

func TestSplitExactlyChunkSize(t *testing.T) {
	chunks := NewSplitter(300, 100).Split(doc(strings.Repeat("x", 300)))
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0].Text, 300)
}

func TestSplitThousandCharacters(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 1000; i++ {
		b.WriteByte(byte('a' + i%26))
	}
	text := b.String()

	chunks := NewSplitter(300, 100).Split(doc(text))

	require.Len(t, chunks, 5)
	offsets := make([]int, 0, len(chunks))
	for _, c := range chunks {
		offsets = append(offsets, c.StartIndex)
		assert.Equal(t, text[c.StartIndex:c.StartIndex+len(c.Text)], c.Text)
	}
	assert.Equal(t, []int{0, 200, 400, 600, 800}, offsets)
	assert.Len(t, chunks[4].Text, 200)
}

func TestSplitConsecutiveChunksOverlapByHundred(t *testing.T) {
	text := strings.Repeat("0123456789", 137)
	chunks := NewSplitter(300, 100).Split(doc(text))
	require.Greater(t, len(chunks), 2)

	for i := 0; i+1 < len(chunks); i++ {
		cur, next := chunks[i], chunks[i+1]
		assert.Equal(t, cur.StartIndex+200, next.StartIndex)
		assert.Len(t, cur.Text, 300)
		assert.Equal(t, cur.Text[200:], next.Text[:100])
	}
	last := chunks[len(chunks)-1]
	assert.LessOrEqual(t, len(last.Text), 300)
	assert.Equal(t, len(text), last.StartIndex+len(last.Text))
}

func TestSplitIsDeterministic(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)
	s := NewSplitter(300, 100)
	assert.Equal(t, s.Split(doc(text)), s.Split(doc(text)))
}

func TestSplitZeroDocuments(t *testing.T) {
	chunks := NewSplitter(300, 100).Split(nil)
	assert.NotNil(t, chunks)
	assert.Empty(t, chunks)
}

func TestSplitEmptyTextYieldsNothing(t *testing.T) {
	assert.Empty(t, NewSplitter(300, 100).Split(doc("")))
}

func TestSplitCountsCharactersNotBytes(t *testing.T) {
	text := strings.Repeat("שלום", 100)
	chunks := NewSplitter(300, 100).Split(doc(text))

	require.Len(t, chunks, 2)
	assert.Equal(t, 200, chunks[1].StartIndex)
	assert.Equal(t, 300, len([]rune(chunks[0].Text)))
	assert.Equal(t, 200, len([]rune(chunks[1].Text)))
}

func TestSplitKeepsSourcesApart(t *testing.T) {
	docs := []domain.TextDocument{
		{Source: "a.md", Text: strings.Repeat("a", 250)},
		{Source: "b.md", Text: strings.Repeat("b", 450)},
	}
	chunks := NewSplitter(300, 100).Split(docs)

	require.Len(t, chunks, 3)
	assert.Equal(t, "a.md", chunks[0].Source)
	assert.Equal(t, "b.md", chunks[1].Source)
	assert.Equal(t, 0, chunks[1].StartIndex)
	assert.Equal(t, 200, chunks[2].StartIndex)
}

func TestNewSplitterNormalizesSettings(t *testing.T) {
	s := NewSplitter(0, -5)
	assert.Equal(t, DefaultChunkSize, s.ChunkSize)
	assert.Equal(t, 0, s.Overlap)

	s = NewSplitter(100, 150)
	assert.Equal(t, 25, s.Overlap)
}

func TestSplitWithZeroValueSplitterTerminates(t *testing.T) {
	chunks := (&Splitter{}).Split(doc("abc"))
	require.Len(t, chunks, 3)
	assert.Equal(t, "c", chunks[2].Text)
}
