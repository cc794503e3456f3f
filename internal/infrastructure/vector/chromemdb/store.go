package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"github.com/kirillkom/book-qa/internal/core/domain"
	"github.com/kirillkom/book-qa/internal/core/ports"
	"github.com/kirillkom/book-qa/internal/infrastructure/resilience"
	"github.com/kirillkom/book-qa/internal/infrastructure/storage/localfs"
)

const (
	DefaultPath       = "chroma"
	DefaultCollection = "book"

	metaSource     = "source"
	metaStartIndex = "start_index"
	trashInfix     = ".trash-"
	verifyQuery    = "test"
)

// dirOps is the filesystem surface touched by destroy.
type dirOps interface {
	Rename(oldPath, newPath string) error
	RemoveAll(path string) error
}

type osDirOps struct{}

func (osDirOps) Rename(oldPath, newPath string) error { return os.Rename(oldPath, newPath) }
func (osDirOps) RemoveAll(path string) error          { return localfs.ForceRemoveAll(path) }

// Store keeps one generation of chunk embeddings in a chromem-go persistent DB
// rooted at a directory.
type Store struct {
	path       string
	collection string
	embedder   ports.Embedder
	executor   *resilience.Executor
	fs         dirOps

	mu   sync.Mutex
	coll *chromem.Collection
}

type Option func(*Store)

func WithCollection(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.collection = name
		}
	}
}

// WithDestroyExecutor replaces the retry policy around the destroy step.
func WithDestroyExecutor(executor *resilience.Executor) Option {
	return func(s *Store) {
		if executor != nil {
			s.executor = executor
		}
	}
}

func withDirOps(ops dirOps) Option {
	return func(s *Store) {
		s.fs = ops
	}
}

func New(path string, embedder ports.Embedder, opts ...Option) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	s := &Store{
		path:       filepath.Clean(path),
		collection: DefaultCollection,
		embedder:   embedder,
		executor:   resilience.NewExecutor(resilience.DestroyPolicy()),
		fs:         osDirOps{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sweepTrash()
	return s, nil
}

// Rebuild embeds every chunk first, then destroys the current generation and
// writes the new one. Any failure before the destroy completes leaves the
// previous index readable.
func (s *Store) Rebuild(ctx context.Context, chunks []domain.Chunk) error {
	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.destroyLocked(ctx); err != nil {
		return err
	}

	db, err := chromem.NewPersistentDB(s.path, false)
	if err != nil {
		return domain.WrapError(domain.ErrTransientStorage, "open index", err)
	}
	coll, err := db.CreateCollection(s.collection, nil, s.embeddingFunc())
	if err != nil {
		return domain.WrapError(domain.ErrTransientStorage, "create collection", err)
	}

	if len(chunks) > 0 {
		ids := make([]string, len(chunks))
		metadatas := make([]map[string]string, len(chunks))
		contents := make([]string, len(chunks))
		for i, chunk := range chunks {
			ids[i] = chunk.ID()
			contents[i] = chunk.Text
			metadatas[i] = map[string]string{
				metaSource:     chunk.Source,
				metaStartIndex: strconv.Itoa(chunk.StartIndex),
			}
		}
		if err := coll.Add(ctx, ids, vectors, metadatas, contents); err != nil {
			return domain.WrapError(domain.ErrTransientStorage, "write index", err)
		}
	}

	s.coll = coll
	return nil
}

func (s *Store) Search(ctx context.Context, query string, k int) ([]domain.RetrievalResult, error) {
	if k <= 0 {
		return []domain.RetrievalResult{}, nil
	}

	s.mu.Lock()
	coll, err := s.collectionLocked()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if coll == nil {
		return []domain.RetrievalResult{}, nil
	}

	n := coll.Count()
	if n == 0 {
		return []domain.RetrievalResult{}, nil
	}
	if k < n {
		n = k
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, asEmbeddingError("embed query", err)
	}

	found, err := coll.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTransientStorage, "query index", err)
	}

	out := make([]domain.RetrievalResult, 0, len(found))
	for _, item := range found {
		start, _ := strconv.Atoi(item.Metadata[metaStartIndex])
		out = append(out, domain.RetrievalResult{
			Chunk: domain.Chunk{
				Source:     item.Metadata[metaSource],
				StartIndex: start,
				Text:       item.Content,
			},
			Score: similarity(item.Similarity),
		})
	}
	return out, nil
}

// Verify reports whether a trivial search returns at least one entry.
func (s *Store) Verify(ctx context.Context) bool {
	results, err := s.Search(ctx, verifyQuery, 1)
	return err == nil && len(results) >= 1
}

// Destroy removes the index and leaves an empty directory in its place.
func (s *Store) Destroy(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.destroyLocked(ctx); err != nil {
		return err
	}
	if err := os.MkdirAll(s.path, 0o755); err != nil {
		return domain.WrapError(domain.ErrTransientStorage, "recreate index dir", err)
	}
	return nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.collectionLocked()
	if err != nil {
		return 0, err
	}
	if coll == nil {
		return 0, nil
	}
	return coll.Count(), nil
}

func (s *Store) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, asEmbeddingError("embed chunks", err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.WrapError(
			domain.ErrEmbeddingService,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}
	return vectors, nil
}

// destroyLocked moves the index directory aside under the retry policy, then
// removes the moved copy best-effort. The rename is the commit point.
func (s *Store) destroyLocked(ctx context.Context) error {
	trash := s.path + trashInfix + uuid.NewString()

	err := s.executor.Execute(ctx, "destroy_index", func(context.Context) error {
		err := s.fs.Rename(s.path, trash)
		if errors.Is(err, fs.ErrNotExist) {
			trash = ""
			return nil
		}
		return err
	}, classifyDestroyError)
	if err != nil {
		slog.Error("index_destroy_failed", "path", s.path, "attempts", resilience.Attempts(err), "error", err.Error())
		return domain.WrapError(domain.ErrTransientStorage, "destroy index", err)
	}

	s.coll = nil

	if trash != "" {
		if err := s.fs.RemoveAll(trash); err != nil {
			slog.Warn("index_trash_remove_failed", "path", trash, "error", err.Error())
		}
	}
	return nil
}

func (s *Store) collectionLocked() (*chromem.Collection, error) {
	if s.coll != nil {
		return s.coll, nil
	}

	entries, err := os.ReadDir(s.path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(entries) == 0) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrTransientStorage, "read index dir", err)
	}

	db, err := chromem.NewPersistentDB(s.path, false)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTransientStorage, "open index", err)
	}
	coll := db.GetCollection(s.collection, s.embeddingFunc())
	if coll == nil {
		return nil, nil
	}
	s.coll = coll
	return coll, nil
}

func (s *Store) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

func (s *Store) sweepTrash() {
	matches, err := filepath.Glob(s.path + trashInfix + "*")
	if err != nil {
		return
	}
	for _, path := range matches {
		if err := s.fs.RemoveAll(path); err != nil {
			slog.Warn("index_trash_remove_failed", "path", path, "error", err.Error())
		}
	}
}

func classifyDestroyError(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

func asEmbeddingError(operation string, err error) error {
	if domain.IsKind(err, domain.ErrEmbeddingService) {
		return err
	}
	return domain.WrapError(domain.ErrEmbeddingService, operation, err)
}

// similarity widens a float32 score through its shortest decimal form, so a
// stored 0.7 compares equal to a 0.7 threshold, and clamps it to [0, 1].
// Cosine similarity of opposed vectors is negative.
func similarity(v float32) float64 {
	out, err := strconv.ParseFloat(strconv.FormatFloat(float64(v), 'g', -1, 32), 64)
	if err != nil {
		out = float64(v)
	}
	return min(max(out, 0), 1)
}
