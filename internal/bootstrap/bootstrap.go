package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/book-qa/internal/config"
	"github.com/kirillkom/book-qa/internal/core/ports"
	"github.com/kirillkom/book-qa/internal/core/usecase"
	"github.com/kirillkom/book-qa/internal/infrastructure/chunking"
	"github.com/kirillkom/book-qa/internal/infrastructure/extractor/ocr"
	"github.com/kirillkom/book-qa/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/book-qa/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/book-qa/internal/infrastructure/llm/openai"
	"github.com/kirillkom/book-qa/internal/infrastructure/queue/nats"
	"github.com/kirillkom/book-qa/internal/infrastructure/repository/memory"
	"github.com/kirillkom/book-qa/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/book-qa/internal/infrastructure/resilience"
	"github.com/kirillkom/book-qa/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/book-qa/internal/infrastructure/vector/chromemdb"
	"github.com/kirillkom/book-qa/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Store    ports.IndexStore
	Bus      *nats.Bus
	Checker  ports.DependencyChecker
	Provider string

	ConvertUC *usecase.ConvertDocumentUseCase
	IndexUC   *usecase.BuildIndexUseCase
	QueryUC   *usecase.QueryUseCase
	ResetUC   *usecase.ResetUseCase

	closers []func()
}

type options struct {
	checker    ports.DependencyChecker
	embedder   ports.Embedder
	model      ports.CompletionModel
	extractor  ports.TextExtractor
	queryOpts  []usecase.QueryOption
	skipBus    bool
	skipChecks bool
}

type Option func(*options)

// WithDependencyChecker replaces the OCR binary preflight.
func WithDependencyChecker(checker ports.DependencyChecker) Option {
	return func(o *options) {
		o.checker = checker
	}
}

// WithProvider replaces the configured embedding and completion provider.
func WithProvider(embedder ports.Embedder, model ports.CompletionModel) Option {
	return func(o *options) {
		o.embedder = embedder
		o.model = model
	}
}

func WithExtractor(extractor ports.TextExtractor) Option {
	return func(o *options) {
		o.extractor = extractor
	}
}

func WithQueryOptions(opts ...usecase.QueryOption) Option {
	return func(o *options) {
		o.queryOpts = append(o.queryOpts, opts...)
	}
}

// WithoutEventBus skips NATS even when NATS_URL is set. The watch command
// opens its own connection.
func WithoutEventBus() Option {
	return func(o *options) {
		o.skipBus = true
	}
}

// WithoutPreflight skips the configuration and dependency checks. Only the
// doctor command uses it, to report problems instead of failing on them.
func WithoutPreflight() Option {
	return func(o *options) {
		o.skipChecks = true
	}
}

// NewChecker builds the OCR binary preflight for cfg.
func NewChecker(cfg config.Config) ports.DependencyChecker {
	return ocr.NewPreflight(ocr.ExecRunner{}, cfg.OCRRasterizer, cfg.OCREngine)
}

// New validates the configuration, verifies the OCR binaries and wires the
// pipeline. Nothing accepts input before both checks pass.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.checker == nil {
		o.checker = NewChecker(cfg)
	}

	if !o.skipChecks {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if err := o.checker.Check(ctx); err != nil {
			return nil, err
		}
	}

	app := &App{Config: cfg, Checker: o.checker, Provider: cfg.LLMProvider}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	embedder, model := o.embedder, o.model
	if embedder == nil || model == nil {
		var err error
		embedder, model, err = app.newProvider(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	storage, err := localfs.New(cfg.UploadsPath)
	if err != nil {
		return nil, fmt.Errorf("init uploads workspace: %w", err)
	}

	store, err := newIndexStore(cfg, embedder)
	if err != nil {
		return nil, err
	}
	app.Store = store

	history, err := app.newHistoryStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var publisher ports.EventPublisher
	if cfg.NATSURL != "" && !o.skipBus {
		bus, err := nats.New(cfg.NATSURL, cfg.NATSSubjectPrefix)
		if err != nil {
			return nil, fmt.Errorf("init event bus: %w", err)
		}
		app.Bus = bus
		app.closers = append(app.closers, bus.Close)
		publisher = bus
	}

	extractor := o.extractor
	if extractor == nil {
		extractor = ocr.NewExtractor(
			ocr.WithBinaries(cfg.OCRRasterizer, cfg.OCREngine),
			ocr.WithDPI(cfg.OCRDPI),
			ocr.WithTempDir(cfg.OCRTempDir),
		)
	}
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	retriever := usecase.NewRetriever(store, cfg.RAGTopK, cfg.RAGRelevanceThreshold)

	app.ConvertUC = usecase.NewConvertDocumentUseCase(storage, ocr.NewInspector(), extractor, publisher)
	app.IndexUC = usecase.NewBuildIndexUseCase(storage, chunker, store, publisher)
	app.QueryUC = usecase.NewQueryUseCase(retriever, model, history, o.queryOpts...)
	app.ResetUC = usecase.NewResetUseCase(store, storage, history, publisher)

	slog.Info("app_ready",
		"provider", cfg.LLMProvider,
		"index_engine", cfg.IndexEngine,
		"uploads_path", cfg.UploadsPath,
		"index_path", cfg.IndexPath,
		"history", historyKind(cfg),
	)
	ok = true
	return app, nil
}

func (a *App) newProvider(ctx context.Context, cfg config.Config) (ports.Embedder, ports.CompletionModel, error) {
	executor := resilience.NewExecutor(resilience.ProviderPolicy())
	timeout := time.Duration(cfg.ProviderTimeoutSeconds) * time.Second

	switch cfg.LLMProvider {
	case config.ProviderGemini:
		client, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiChatModel, cfg.GeminiEmbedModel, executor)
		if err != nil {
			return nil, nil, fmt.Errorf("init gemini provider: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		return gemini.NewEmbedder(client), gemini.NewGenerator(client), nil
	case config.ProviderOllama:
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
		return ollama.NewEmbedder(client), ollama.NewGenerator(client), nil
	default:
		client := openai.New(openai.Config{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			ChatModel:  cfg.OpenAIChatModel,
			EmbedModel: cfg.OpenAIEmbedModel,
			Timeout:    timeout,
		}, executor)
		return openai.NewEmbedder(client), openai.NewGenerator(client), nil
	}
}

func newIndexStore(cfg config.Config, embedder ports.Embedder) (ports.IndexStore, error) {
	destroy := resilience.NewExecutor(resilience.DestroyPolicy())
	switch cfg.IndexEngine {
	case config.EngineQdrant:
		return qdrant.New(cfg.QdrantURL, cfg.IndexCollection, embedder, qdrant.WithDestroyExecutor(destroy)), nil
	default:
		store, err := chromemdb.New(cfg.IndexPath, embedder,
			chromemdb.WithCollection(cfg.IndexCollection),
			chromemdb.WithDestroyExecutor(destroy),
		)
		if err != nil {
			return nil, fmt.Errorf("init index store: %w", err)
		}
		return store, nil
	}
}

func (a *App) newHistoryStore(ctx context.Context, cfg config.Config) (ports.HistoryStore, error) {
	if cfg.PostgresDSN == "" {
		return memory.NewHistoryStore(), nil
	}
	db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = db.Close() })

	repo := postgres.NewHistoryRepository(db, cfg.HistorySession)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, nil
}

func historyKind(cfg config.Config) string {
	if cfg.PostgresDSN == "" {
		return "memory"
	}
	return "postgres"
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
