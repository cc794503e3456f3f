package ocr

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/book-qa/internal/core/domain"
)

const headerWindow = 1024

var pdfMagic = []byte("%PDF-")

// Inspector is the upload type filter. It accepts only parseable PDFs and
// reports their page count.
type Inspector struct{}

func NewInspector() *Inspector {
	return &Inspector{}
}

func (i *Inspector) Inspect(data []byte) (pages int, err error) {
	window := data
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}
	if !bytes.Contains(window, pdfMagic) {
		return 0, domain.WrapError(domain.ErrInvalidInput, "inspect upload", errors.New("not a PDF document"))
	}

	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages = 0
			err = domain.WrapError(domain.ErrInvalidInput, "inspect upload", fmt.Errorf("malformed PDF: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "inspect upload", fmt.Errorf("parse PDF: %w", err))
	}
	pages = reader.NumPage()
	if pages <= 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "inspect upload", errors.New("PDF has no pages"))
	}
	return pages, nil
}
