package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kirillkom/book-qa/internal/core/domain"
)

const DefaultUploadsPath = "uploads"

// Storage is the uploads workspace: PDFs and their converted markdown live
// side by side in one flat directory.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = DefaultUploadsPath
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

func (s *Storage) Save(_ context.Context, name string, data io.Reader) (string, int64, error) {
	path, err := s.resolve(name)
	if err != nil {
		return "", 0, err
	}

	tmp, err := os.CreateTemp(s.basePath, ".upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, data)
	if err != nil {
		tmp.Close()
		return "", 0, fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", 0, fmt.Errorf("move file into place: %w", err)
	}
	return path, size, nil
}

// Remove deletes one workspace file. A file that is already gone is not an
// error.
func (s *Storage) Remove(_ context.Context, name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// ListText loads every converted markdown file, ordered by name. The source
// identifier is the file path.
func (s *Storage) ListText(_ context.Context) ([]domain.TextDocument, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("read storage dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".md") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	docs := make([]domain.TextDocument, 0, len(names))
	for _, name := range names {
		path := filepath.Join(s.basePath, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		docs = append(docs, domain.TextDocument{Source: path, Text: string(raw)})
	}
	return docs, nil
}

// Reset deletes the workspace, read-only entries included, and recreates it
// empty.
func (s *Storage) Reset(_ context.Context) error {
	if err := ForceRemoveAll(s.basePath); err != nil {
		return fmt.Errorf("remove storage dir: %w", err)
	}
	if err := os.MkdirAll(s.basePath, 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	return nil
}

func (s *Storage) resolve(name string) (string, error) {
	clean := filepath.Base(filepath.Clean(name))
	if clean == "." || clean == string(filepath.Separator) || clean == ".." {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve file name", fmt.Errorf("invalid name %q", name))
	}
	return filepath.Join(s.basePath, clean), nil
}
