package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/book-qa/internal/core/domain"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"

	EngineChromem = "chromem"
	EngineQdrant  = "qdrant"
)

type Config struct {
	APIPort   string
	LogLevel  string
	LogFormat string

	APIRateLimitRPS       float64
	APIRateLimitBurst     int
	APIMaxInFlight        int
	APIMaxConnections     int
	APIMaxUploadBytes     int64
	APIBackpressureWaitMS int

	UploadsPath     string
	IndexPath       string
	IndexEngine     string
	IndexCollection string
	QdrantURL       string

	ChunkSize             int
	ChunkOverlap          int
	RAGTopK               int
	RAGRelevanceThreshold float64

	LLMProvider            string
	ProviderTimeoutSeconds int

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIChatModel  string
	OpenAIEmbedModel string

	GeminiAPIKey     string
	GeminiChatModel  string
	GeminiEmbedModel string

	OllamaURL        string
	OllamaGenModel   string
	OllamaEmbedModel string

	PostgresDSN    string
	HistorySession string

	NATSURL           string
	NATSSubjectPrefix string

	OCRRasterizer string
	OCREngine     string
	OCRDPI        int
	OCRTempDir    string
}

// env resolves a key from the process environment first and the optional
// YAML overlay second.
type env struct {
	file map[string]string
}

func (e env) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return e.file[key]
}

// Load reads .env (when present), then the YAML file named by CONFIG_FILE,
// then the environment. Environment values win.
func Load() (Config, error) {
	if err := LoadDotEnv(); err != nil {
		return Config{}, err
	}
	overlay, err := readOverlay(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return Config{}, err
	}
	return load(env{file: overlay}), nil
}

// LoadDotEnv loads variables from the given files (".env" by default) without
// overriding values already in the environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

func readOverlay(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	out := make(map[string]string, len(values))
	for key, value := range values {
		if value == nil {
			continue
		}
		out[strings.ToUpper(key)] = fmt.Sprint(value)
	}
	return out, nil
}

func load(e env) Config {
	return Config{
		APIPort:   e.str("API_PORT", "8080"),
		LogLevel:  e.str("LOG_LEVEL", "info"),
		LogFormat: e.str("LOG_FORMAT", "json"),

		APIRateLimitRPS:       e.number("API_RATE_LIMIT_RPS", 5),
		APIRateLimitBurst:     e.integer("API_RATE_LIMIT_BURST", 10),
		APIMaxInFlight:        e.integer("API_MAX_IN_FLIGHT", 4),
		APIMaxConnections:     e.integer("API_MAX_CONNECTIONS", 64),
		APIMaxUploadBytes:     int64(e.integer("API_MAX_UPLOAD_MB", 200)) << 20,
		APIBackpressureWaitMS: e.integer("API_BACKPRESSURE_WAIT_MS", 250),

		UploadsPath:     e.str("UPLOADS_PATH", "uploads"),
		IndexPath:       e.str("INDEX_PATH", "chroma"),
		IndexEngine:     strings.ToLower(e.str("INDEX_ENGINE", EngineChromem)),
		IndexCollection: e.str("INDEX_COLLECTION", "book"),
		QdrantURL:       e.str("QDRANT_URL", "http://localhost:6333"),

		ChunkSize:             e.integer("CHUNK_SIZE", 300),
		ChunkOverlap:          e.integer("CHUNK_OVERLAP", 100),
		RAGTopK:               e.integer("RAG_TOP_K", 3),
		RAGRelevanceThreshold: e.number("RAG_RELEVANCE_THRESHOLD", 0.7),

		LLMProvider:            strings.ToLower(e.str("LLM_PROVIDER", ProviderOpenAI)),
		ProviderTimeoutSeconds: e.integer("PROVIDER_TIMEOUT_SECONDS", 120),

		OpenAIAPIKey:     e.str("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    e.str("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIChatModel:  e.str("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		OpenAIEmbedModel: e.str("OPENAI_EMBED_MODEL", "text-embedding-3-small"),

		GeminiAPIKey:     e.str("GEMINI_API_KEY", ""),
		GeminiChatModel:  e.str("GEMINI_CHAT_MODEL", "gemini-2.5-flash"),
		GeminiEmbedModel: e.str("GEMINI_EMBED_MODEL", "text-embedding-004"),

		OllamaURL:        e.str("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:   e.str("OLLAMA_GEN_MODEL", "llama3.1:8b"),
		OllamaEmbedModel: e.str("OLLAMA_EMBED_MODEL", "nomic-embed-text"),

		PostgresDSN:    e.str("POSTGRES_DSN", ""),
		HistorySession: e.str("HISTORY_SESSION", "default"),

		NATSURL:           e.str("NATS_URL", ""),
		NATSSubjectPrefix: e.str("NATS_SUBJECT_PREFIX", "bookqa.events"),

		OCRRasterizer: e.str("OCR_RASTERIZER", "pdftoppm"),
		OCREngine:     e.str("OCR_ENGINE", "tesseract"),
		OCRDPI:        e.integer("OCR_DPI", 300),
		OCRTempDir:    e.str("OCR_TEMP_DIR", ""),
	}
}

// Validate checks the selected provider has its secret and that tunables are
// in range. A missing secret is reported as *domain.ConfigurationError.
func (c Config) Validate() error {
	switch c.LLMProvider {
	case ProviderOpenAI:
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			return &domain.ConfigurationError{MissingSecret: "OPENAI_API_KEY"}
		}
	case ProviderGemini:
		if strings.TrimSpace(c.GeminiAPIKey) == "" {
			return &domain.ConfigurationError{MissingSecret: "GEMINI_API_KEY"}
		}
	case ProviderOllama:
	default:
		return domain.WrapError(domain.ErrConfiguration, "validate config", fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider))
	}

	switch c.IndexEngine {
	case EngineChromem, EngineQdrant:
	default:
		return domain.WrapError(domain.ErrConfiguration, "validate config", fmt.Errorf("unsupported INDEX_ENGINE %q", c.IndexEngine))
	}

	if c.RAGTopK <= 0 {
		return domain.WrapError(domain.ErrConfiguration, "validate config", errors.New("RAG_TOP_K must be positive"))
	}
	if c.RAGRelevanceThreshold < 0 || c.RAGRelevanceThreshold > 1 {
		return domain.WrapError(domain.ErrConfiguration, "validate config", errors.New("RAG_RELEVANCE_THRESHOLD must be within [0, 1]"))
	}
	return nil
}

func (e env) str(key, fallback string) string {
	v := e.lookup(key)
	if v == "" {
		return fallback
	}
	return v
}

func (e env) integer(key string, fallback int) int {
	v := e.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (e env) number(key string, fallback float64) float64 {
	v := e.lookup(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
