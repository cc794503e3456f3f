package usecase

import (
	"context"
	"io"
	"sort"

	"github.com/kirillkom/book-qa/internal/core/domain"
)

type workspaceFake struct {
	files    map[string]string
	texts    []domain.TextDocument
	saveErr  error
	listErr  error
	resetErr error
	resets   int

	removeErr error
	removed   []string
}

func newWorkspaceFake() *workspaceFake {
	return &workspaceFake{files: map[string]string{}}
}

func (f *workspaceFake) Save(_ context.Context, name string, data io.Reader) (string, int64, error) {
	if f.saveErr != nil {
		return "", 0, f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", 0, err
	}
	f.files[name] = string(raw)
	return "uploads/" + name, int64(len(raw)), nil
}

func (f *workspaceFake) Remove(_ context.Context, name string) error {
	f.removed = append(f.removed, name)
	delete(f.files, name)
	return f.removeErr
}

func (f *workspaceFake) ListText(context.Context) ([]domain.TextDocument, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.texts, nil
}

func (f *workspaceFake) Reset(context.Context) error {
	f.resets++
	if f.resetErr != nil {
		return f.resetErr
	}
	f.files = map[string]string{}
	f.texts = nil
	return nil
}

type inspectorFake struct {
	pages int
	err   error
}

func (f *inspectorFake) Inspect([]byte) (int, error) {
	return f.pages, f.err
}

type extractorFake struct {
	text string
	err  error
	doc  *domain.Document
}

func (f *extractorFake) Extract(_ context.Context, doc *domain.Document) (string, error) {
	copyDoc := *doc
	f.doc = &copyDoc
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

// chunkerFake applies the fixed 300/100 windows so use case tests can assert on
// offsets without importing an adapter.
type chunkerFake struct{}

func (chunkerFake) Split(docs []domain.TextDocument) []domain.Chunk {
	out := make([]domain.Chunk, 0)
	for _, doc := range docs {
		runes := []rune(doc.Text)
		for start := 0; start < len(runes); start += 200 {
			end := start + 300
			if end > len(runes) {
				end = len(runes)
			}
			out = append(out, domain.Chunk{Source: doc.Source, StartIndex: start, Text: string(runes[start:end])})
			if end == len(runes) {
				break
			}
		}
	}
	return out
}

// storeFake scores every entry with a fixed value per chunk text, or with
// defaultScore when the text is not listed.
type storeFake struct {
	entries      []domain.Chunk
	scores       map[string]float64
	defaultScore float64
	searchErr    error
	rebuildErr   error
	destroyErr   error
	verified     bool
	searches     int
	lastK        int
	destroys     int
}

func (f *storeFake) Rebuild(_ context.Context, chunks []domain.Chunk) error {
	if f.rebuildErr != nil {
		return f.rebuildErr
	}
	f.entries = append([]domain.Chunk(nil), chunks...)
	return nil
}

func (f *storeFake) Search(_ context.Context, _ string, k int) ([]domain.RetrievalResult, error) {
	f.searches++
	f.lastK = k
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	results := make([]domain.RetrievalResult, 0, len(f.entries))
	for _, chunk := range f.entries {
		score, ok := f.scores[chunk.Text]
		if !ok {
			score = f.defaultScore
		}
		results = append(results, domain.RetrievalResult{Chunk: chunk, Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (f *storeFake) Verify(context.Context) bool { return f.verified }

func (f *storeFake) Destroy(context.Context) error {
	f.destroys++
	if f.destroyErr != nil {
		return f.destroyErr
	}
	f.entries = nil
	return nil
}

func (f *storeFake) Count(context.Context) (int, error) { return len(f.entries), nil }

type modelFake struct {
	reply   string
	err     error
	calls   int
	prompts []string
}

func (f *modelFake) Complete(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type historyFake struct {
	records   []domain.QueryRecord
	appendErr error
	clearErr  error
}

func (f *historyFake) Append(_ context.Context, record domain.QueryRecord) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.records = append(f.records, record)
	return nil
}

func (f *historyFake) List(context.Context) ([]domain.QueryRecord, error) {
	return append([]domain.QueryRecord(nil), f.records...), nil
}

func (f *historyFake) Clear(context.Context) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.records = nil
	return nil
}

type publisherFake struct {
	events []domain.PipelineEvent
	err    error
}

func (f *publisherFake) Publish(_ context.Context, event domain.PipelineEvent) error {
	f.events = append(f.events, event)
	return f.err
}
