package chromemdb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/book-qa/internal/core/domain"
	"github.com/kirillkom/book-qa/internal/infrastructure/resilience"
	"github.com/kirillkom/book-qa/internal/infrastructure/storage/localfs"
)

// letterEmbedder maps text to a letter histogram plus a constant component so
// no vector is ever zero.
type letterEmbedder struct {
	err   error
	calls int
}

func (e *letterEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = letters(text)
	}
	return out, nil
}

func (e *letterEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return letters(text), nil
}

func letters(text string) []float32 {
	vec := make([]float32, 27)
	vec[26] = 1
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		}
	}
	return vec
}

type flakyDirOps struct {
	failures int
	attempts int
}

func (f *flakyDirOps) Rename(oldPath, newPath string) error {
	f.attempts++
	if f.attempts <= f.failures {
		return &os.LinkError{Op: "rename", Old: oldPath, New: newPath, Err: errors.New("resource busy")}
	}
	return os.Rename(oldPath, newPath)
}

func (f *flakyDirOps) RemoveAll(path string) error { return localfs.ForceRemoveAll(path) }

func recordingExecutor(waits *[]time.Duration) *resilience.Executor {
	return resilience.NewExecutor(resilience.DestroyPolicy(), resilience.WithSleeper(func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}))
}

func thousandChunks() []domain.Chunk {
	text := strings.Repeat("abcdefghij", 100)
	out := make([]domain.Chunk, 0, 5)
	for start := 0; start < len(text); start += 200 {
		end := start + 300
		if end > len(text) {
			end = len(text)
		}
		out = append(out, domain.Chunk{Source: "uploads/book.md", StartIndex: start, Text: text[start:end]})
		if end == len(text) {
			break
		}
	}
	return out
}

func newStore(t *testing.T, opts ...Option) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chroma")
	var waits []time.Duration
	opts = append([]Option{WithDestroyExecutor(recordingExecutor(&waits))}, opts...)
	store, err := New(path, &letterEmbedder{}, opts...)
	require.NoError(t, err)
	return store, path
}

func TestRebuildReplacesPriorGeneration(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Rebuild(ctx, []domain.Chunk{
		{Source: "old.md", StartIndex: 0, Text: "stale whale"},
		{Source: "old.md", StartIndex: 200, Text: "stale ship"},
	}))
	require.NoError(t, store.Rebuild(ctx, thousandChunks()))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	results, err := store.Search(ctx, "abcdefghij", 10)
	require.NoError(t, err)
	require.Len(t, results, 5)
	for _, r := range results {
		assert.Equal(t, "uploads/book.md", r.Chunk.Source)
	}
}

func TestRebuildSurvivesTransientDestroyFailures(t *testing.T) {
	ops := &flakyDirOps{failures: 3}
	var waits []time.Duration
	path := filepath.Join(t.TempDir(), "chroma")
	store, err := New(path, &letterEmbedder{}, WithDestroyExecutor(recordingExecutor(&waits)), withDirOps(ops))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(path, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "leftover"), []byte("x"), 0o644))

	require.NoError(t, store.Rebuild(ctx, thousandChunks()))

	assert.Equal(t, 4, ops.attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, waits)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	_, err = os.Stat(filepath.Join(path, "leftover"))
	assert.True(t, os.IsNotExist(err))
}

func TestRebuildExhaustedRetriesKeepsPriorIndex(t *testing.T) {
	ops := &flakyDirOps{}
	var waits []time.Duration
	path := filepath.Join(t.TempDir(), "chroma")
	store, err := New(path, &letterEmbedder{}, WithDestroyExecutor(recordingExecutor(&waits)), withDirOps(ops))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Rebuild(ctx, []domain.Chunk{{Source: "old.md", Text: "moby dick"}}))

	ops.attempts = 0
	ops.failures = 1000
	err = store.Rebuild(ctx, thousandChunks())
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrTransientStorage))
	assert.Equal(t, 10, ops.attempts)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.True(t, store.Verify(ctx))
}

func TestRebuildEmbeddingFailureLeavesIndexUntouched(t *testing.T) {
	embedder := &letterEmbedder{}
	path := filepath.Join(t.TempDir(), "chroma")
	store, err := New(path, embedder)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Rebuild(ctx, []domain.Chunk{{Source: "old.md", Text: "moby dick"}}))

	embedder.err = errors.New("401 unauthorized")
	err = store.Rebuild(ctx, thousandChunks())
	assert.True(t, domain.IsKind(err, domain.ErrEmbeddingService))
	assert.Equal(t, 2, embedder.calls)

	embedder.err = nil
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSearchEmptyIndex(t *testing.T) {
	store, _ := newStore(t)
	results, err := store.Search(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.False(t, store.Verify(context.Background()))
}

func TestSearchRanksBySimilarity(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Rebuild(ctx, []domain.Chunk{
		{Source: "a.md", StartIndex: 0, Text: "zzzz zzzz"},
		{Source: "a.md", StartIndex: 200, Text: "whale whale whale"},
		{Source: "a.md", StartIndex: 400, Text: "qqqq"},
	}))

	results, err := store.Search(ctx, "whale", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 200, results[0].Chunk.StartIndex)
	assert.Equal(t, "whale whale whale", results[0].Chunk.Text)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	assert.True(t, store.Verify(ctx))
}

func TestIndexPersistsAcrossStores(t *testing.T) {
	store, path := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Rebuild(ctx, thousandChunks()))

	reopened, err := New(path, &letterEmbedder{})
	require.NoError(t, err)
	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestDestroyLeavesEmptyDirectory(t *testing.T) {
	store, path := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Rebuild(ctx, thousandChunks()))

	require.NoError(t, store.Destroy(ctx))

	entries, err := os.ReadDir(path)
	require.NoError(t, err)
	assert.Empty(t, entries)
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	trash, err := filepath.Glob(path + trashInfix + "*")
	require.NoError(t, err)
	assert.Empty(t, trash)
}

func TestSimilarityKeepsShortestDecimal(t *testing.T) {
	assert.Equal(t, 0.7, similarity(float32(0.7)))
	assert.Equal(t, 1.0, similarity(1))
	assert.Equal(t, 0.0, similarity(-1))
	assert.Equal(t, 1.0, similarity(1.0000001))
}

// axisEmbedder stores every text along +x and queries along -x.
type axisEmbedder struct{}

func (axisEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (axisEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{-1, 0}, nil
}

func TestSearchOpposedVectorsScoreZero(t *testing.T) {
	var waits []time.Duration
	store, err := New(filepath.Join(t.TempDir(), "chroma"), axisEmbedder{}, WithDestroyExecutor(recordingExecutor(&waits)))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Rebuild(ctx, []domain.Chunk{{Source: "a.md", StartIndex: 0, Text: "whale"}}))

	results, err := store.Search(ctx, "whale", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.GreaterOrEqual(t, results[0].Score, 0.0)
	assert.LessOrEqual(t, results[0].Score, 1.0)
	assert.Zero(t, results[0].Score)
}
