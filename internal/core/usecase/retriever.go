package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/book-qa/internal/core/domain"
	"github.com/kirillkom/book-qa/internal/core/ports"
)

const (
	DefaultTopK               = 3
	DefaultRelevanceThreshold = 0.7
	ContextDelimiter          = "\n\n---\n\n"
)

type Retriever struct {
	store     ports.IndexStore
	topK      int
	threshold float64
}

func NewRetriever(store ports.IndexStore, topK int, threshold float64) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{
		store:     store,
		topK:      topK,
		threshold: threshold,
	}
}

// Retrieve searches the index and applies the admission check. Only the best
// score is compared against the threshold; a score equal to it is admitted.
func (r *Retriever) Retrieve(ctx context.Context, question string) (*domain.Retrieval, error) {
	results, err := r.store.Search(ctx, question, r.topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > r.topK {
		results = results[:r.topK]
	}

	if len(results) == 0 || results[0].Score < r.threshold {
		return &domain.Retrieval{
			Matched: false,
			Sources: []string{},
			Results: results,
		}, nil
	}

	texts := make([]string, 0, len(results))
	sources := make([]string, 0, len(results))
	for _, result := range results {
		texts = append(texts, result.Chunk.Text)
		sources = append(sources, result.Chunk.Source)
	}

	return &domain.Retrieval{
		Matched: true,
		Context: strings.Join(texts, ContextDelimiter),
		Sources: sources,
		Results: results,
	}, nil
}
