package ocr

import (
	"context"
	"errors"
	"os/exec"

	"github.com/kirillkom/book-qa/internal/core/domain"
)

// Preflight checks that both external engines can be started.
type Preflight struct {
	runner     CommandRunner
	lookPath   func(string) (string, error)
	rasterizer string
	ocr        string
}

func NewPreflight(runner CommandRunner, rasterizer, ocr string) *Preflight {
	if runner == nil {
		runner = ExecRunner{}
	}
	if rasterizer == "" {
		rasterizer = DefaultRasterizer
	}
	if ocr == "" {
		ocr = DefaultOCR
	}
	return &Preflight{
		runner:     runner,
		lookPath:   exec.LookPath,
		rasterizer: rasterizer,
		ocr:        ocr,
	}
}

// Check reports every missing engine, each as its own DependencyMissingError.
func (p *Preflight) Check(ctx context.Context) error {
	var errs []error
	if err := p.probe(ctx, p.rasterizer); err != nil {
		errs = append(errs, domain.NewDependencyMissing(domain.EngineRasterizer, p.rasterizer, err))
	}
	if err := p.probe(ctx, p.ocr); err != nil {
		errs = append(errs, domain.NewDependencyMissing(domain.EngineOCR, p.ocr, err))
	}
	return errors.Join(errs...)
}

func (p *Preflight) probe(ctx context.Context, binary string) error {
	if _, err := p.lookPath(binary); err != nil {
		return err
	}
	_, err := p.runner.Run(ctx, binary, "-v")
	return err
}
