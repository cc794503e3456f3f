package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrTemporary         = errors.New("temporary failure")
	ErrDependencyMissing = errors.New("dependency missing")
	ErrConfiguration     = errors.New("configuration error")
	ErrTransientStorage  = errors.New("index storage busy")
	ErrEmbeddingService  = errors.New("embedding service error")
	ErrCompletionService = errors.New("completion service error")
	ErrNoDocuments       = errors.New("no converted documents")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

const (
	EngineRasterizer = "pdf-rasterizer"
	EngineOCR        = "ocr"
)

// DependencyMissingError reports an external engine that is not installed or
// not callable. It is fatal for the session.
type DependencyMissingError struct {
	Engine      string
	Binary      string
	Remediation string
	Err         error
}

func NewDependencyMissing(engine, binary string, err error) *DependencyMissingError {
	return &DependencyMissingError{
		Engine:      engine,
		Binary:      binary,
		Remediation: remediationFor(engine),
		Err:         err,
	}
}

func (e *DependencyMissingError) Error() string {
	msg := fmt.Sprintf("%s engine unavailable (%s not found or not callable)", e.Engine, e.Binary)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DependencyMissingError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDependencyMissing}
	}
	return []error{ErrDependencyMissing, e.Err}
}

func remediationFor(engine string) string {
	switch engine {
	case EngineRasterizer:
		return "Poppler is not installed or not found in the PATH. Install poppler-utils (apt install poppler-utils / brew install poppler) and make sure pdftoppm is callable."
	case EngineOCR:
		return "Tesseract is not installed or not found in the PATH. Install tesseract-ocr with the language packs you need and make sure tesseract is callable."
	default:
		return "Install the missing engine and make sure it is on the PATH."
	}
}

// ConfigurationError blocks startup when a required secret is absent.
type ConfigurationError struct {
	MissingSecret string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s is not set", e.MissingSecret)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// DependencyEngine returns the engine name carried by err, if any.
func DependencyEngine(err error) (string, bool) {
	var depErr *DependencyMissingError
	if errors.As(err, &depErr) {
		return depErr.Engine, true
	}
	return "", false
}
