package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/book-qa/internal/bootstrap"
	"github.com/kirillkom/book-qa/internal/config"
	"github.com/kirillkom/book-qa/internal/core/ports"
)

// IndexCounter reports how many entries the current index holds.
type IndexCounter interface {
	Count(ctx context.Context) (int, error)
}

// Session is the wired pipeline a command works against.
type Session struct {
	Config    config.Config
	Converter ports.DocumentConverter
	Indexer   ports.IndexBuilder
	Answerer  ports.QuestionAnswerer
	Resetter  ports.SessionResetter
	Index     IndexCounter
	Close     func()
}

// SessionFactory opens a session for cfg. Tests swap it for fakes.
type SessionFactory func(ctx context.Context, cfg config.Config, opts ...bootstrap.Option) (*Session, error)

var openSession SessionFactory = bootstrapSession

// SetSessionFactory replaces how commands open the pipeline.
func SetSessionFactory(factory SessionFactory) {
	if factory == nil {
		factory = bootstrapSession
	}
	openSession = factory
}

func bootstrapSession(ctx context.Context, cfg config.Config, opts ...bootstrap.Option) (*Session, error) {
	app, err := bootstrap.New(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Session{
		Config:    app.Config,
		Converter: app.ConvertUC,
		Indexer:   app.IndexUC,
		Answerer:  app.QueryUC,
		Resetter:  app.ResetUC,
		Index:     app.Store,
		Close:     app.Close,
	}, nil
}

// withSession loads the configuration, opens a session, runs fn and closes
// the session afterwards.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *Session) error, opts ...bootstrap.Option) error {
	cfg, err := prepare(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	session, err := openSession(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	if session == nil {
		return errors.New("session factory returned no session")
	}
	if session.Close != nil {
		defer session.Close()
	}
	if err := fn(ctx, session); err != nil {
		return fmt.Errorf("%s: %w", cmd.Name(), err)
	}
	return nil
}
