package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/kirillkom/book-qa/internal/bootstrap"
	"github.com/kirillkom/book-qa/internal/config"
	"github.com/kirillkom/book-qa/internal/core/domain"
)

type converterMock struct {
	docs       []domain.Document
	conversion *domain.Conversion
	err        error
}

func (m *converterMock) Convert(_ context.Context, doc domain.Document) (*domain.Conversion, error) {
	m.docs = append(m.docs, doc)
	return m.conversion, m.err
}

type indexerMock struct {
	report *domain.BuildReport
	err    error
}

func (m *indexerMock) Build(context.Context) (*domain.BuildReport, error) {
	return m.report, m.err
}

type answererMock struct {
	answer    *domain.Answer
	records   []domain.QueryRecord
	err       error
	questions []string
}

func (m *answererMock) Ask(_ context.Context, question string) (*domain.Answer, error) {
	m.questions = append(m.questions, question)
	return m.answer, m.err
}

func (m *answererMock) History(context.Context) ([]domain.QueryRecord, error) {
	return m.records, m.err
}

type resetterMock struct {
	calls int
	err   error
}

func (m *resetterMock) Reset(context.Context) error {
	m.calls++
	return m.err
}

type counterMock struct {
	count int
	err   error
}

func (m *counterMock) Count(context.Context) (int, error) { return m.count, m.err }

type testSession struct {
	converter *converterMock
	indexer   *indexerMock
	answerer  *answererMock
	resetter  *resetterMock
	index     *counterMock
	opened    int
	closed    int
	openErr   error
	opts      []bootstrap.Option
}

func testConfig() config.Config {
	return config.Config{
		LogLevel:              "error",
		LLMProvider:           config.ProviderOpenAI,
		OpenAIAPIKey:          "sk-test",
		IndexEngine:           config.EngineChromem,
		RAGTopK:               3,
		RAGRelevanceThreshold: 0.7,
	}
}

// setupTestSession swaps the config loader and session factory for fakes and
// restores every package-level flag afterwards.
func setupTestSession(t *testing.T) *testSession {
	t.Helper()
	ts := &testSession{
		converter: &converterMock{},
		indexer:   &indexerMock{},
		answerer:  &answererMock{},
		resetter:  &resetterMock{},
		index:     &counterMock{},
	}

	prevLoad, prevOpen := loadConfig, openSession
	loadConfig = func() (config.Config, error) { return testConfig(), nil }
	openSession = func(_ context.Context, cfg config.Config, opts ...bootstrap.Option) (*Session, error) {
		ts.opened++
		ts.opts = opts
		if ts.openErr != nil {
			return nil, ts.openErr
		}
		return &Session{
			Config:    cfg,
			Converter: ts.converter,
			Indexer:   ts.indexer,
			Answerer:  ts.answerer,
			Resetter:  ts.resetter,
			Index:     ts.index,
			Close:     func() { ts.closed++ },
		}, nil
	}

	t.Cleanup(func() {
		loadConfig, openSession = prevLoad, prevOpen
		askJSON, historyJSON, indexJSON, watchJSON, convertPrint = false, false, false, false, false
		convertLanguage = "English"
		logLevel = ""
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	return ts
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}
