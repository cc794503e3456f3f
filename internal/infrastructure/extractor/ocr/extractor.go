package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kirillkom/book-qa/internal/core/domain"
)

const (
	DefaultRasterizer = "pdftoppm"
	DefaultOCR        = "tesseract"
	DefaultDPI        = 300

	pageSeparator = "\n\n"
)

// Extractor rasterizes every PDF page to PNG and runs OCR on it.
type Extractor struct {
	runner     CommandRunner
	inspector  *Inspector
	rasterizer string
	ocr        string
	dpi        int
	tempDir    string
}

type Option func(*Extractor)

func WithRunner(runner CommandRunner) Option {
	return func(e *Extractor) {
		if runner != nil {
			e.runner = runner
		}
	}
}

func WithBinaries(rasterizer, ocr string) Option {
	return func(e *Extractor) {
		if rasterizer != "" {
			e.rasterizer = rasterizer
		}
		if ocr != "" {
			e.ocr = ocr
		}
	}
}

func WithDPI(dpi int) Option {
	return func(e *Extractor) {
		if dpi > 0 {
			e.dpi = dpi
		}
	}
}

// WithTempDir sets where page images are rendered; the OS default otherwise.
func WithTempDir(dir string) Option {
	return func(e *Extractor) {
		e.tempDir = dir
	}
}

func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		runner:     ExecRunner{},
		inspector:  NewInspector(),
		rasterizer: DefaultRasterizer,
		ocr:        DefaultOCR,
		dpi:        DefaultDPI,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	if doc == nil || doc.Path == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("document path is empty"))
	}

	content := doc.Content
	if len(content) == 0 {
		raw, err := os.ReadFile(doc.Path)
		if err != nil {
			return "", fmt.Errorf("read source document: %w", err)
		}
		content = raw
	}

	pages, err := e.inspector.Inspect(content)
	if err != nil {
		return "", err
	}

	workDir, err := os.MkdirTemp(e.tempDir, "bookqa-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create page dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	lang := domain.ResolveLanguage(doc.Language)
	texts := make([]string, 0, pages)
	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		image, err := e.rasterize(ctx, doc.Path, workDir, page)
		if err != nil {
			return "", err
		}
		text, err := e.recognize(ctx, image, lang, page)
		if err != nil {
			return "", err
		}
		texts = append(texts, text)
	}

	return ToMarkdown(strings.Join(texts, pageSeparator)), nil
}

func (e *Extractor) rasterize(ctx context.Context, source, workDir string, page int) (string, error) {
	n := strconv.Itoa(page)
	prefix := filepath.Join(workDir, fmt.Sprintf("page-%05d", page))
	_, err := e.runner.Run(ctx, e.rasterizer,
		"-f", n, "-l", n,
		"-r", strconv.Itoa(e.dpi),
		"-png", "-singlefile",
		source, prefix,
	)
	if err != nil {
		if isNotInstalled(err) {
			return "", domain.NewDependencyMissing(domain.EngineRasterizer, e.rasterizer, err)
		}
		return "", fmt.Errorf("rasterize page %d: %w", page, err)
	}
	return prefix + ".png", nil
}

func (e *Extractor) recognize(ctx context.Context, image, lang string, page int) (string, error) {
	out, err := e.runner.Run(ctx, e.ocr, image, "stdout", "-l", lang)
	if err != nil {
		if isNotInstalled(err) {
			return "", domain.NewDependencyMissing(domain.EngineOCR, e.ocr, err)
		}
		return "", fmt.Errorf("ocr page %d: %w", page, err)
	}
	return string(out), nil
}
