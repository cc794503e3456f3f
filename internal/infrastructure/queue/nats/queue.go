package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/book-qa/internal/core/domain"
	"github.com/kirillkom/book-qa/internal/infrastructure/resilience"
)

const DefaultSubjectPrefix = "bookqa.events"

// publisher is the part of *nats.Conn the event bus writes through.
type publisher interface {
	Publish(subject string, data []byte) error
}

// Bus publishes pipeline events as JSON on "<prefix>.<kind>" subjects.
type Bus struct {
	conn     *nats.Conn
	pub      publisher
	prefix   string
	executor *resilience.Executor
}

func New(url, prefix string) (*Bus, error) {
	return NewWithOptions(url, prefix, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func NewWithOptions(url, prefix string, options Options) (*Bus, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("book-qa"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", errString(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	executor := options.ResilienceExecutor
	if executor == nil {
		executor = resilience.NewExecutor(resilience.PublishPolicy())
	}
	bus := newBus(conn, prefix, executor)
	bus.conn = conn
	return bus, nil
}

func newBus(pub publisher, prefix string, executor *resilience.Executor) *Bus {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Bus{pub: pub, prefix: prefix, executor: executor}
}

func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

// Subject returns the subject an event kind is published on.
func (b *Bus) Subject(kind domain.EventKind) string {
	return b.prefix + "." + string(kind)
}

func (b *Bus) Publish(ctx context.Context, event domain.PipelineEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	subject := b.Subject(event.Kind)

	call := func(_ context.Context) error {
		if err := b.pub.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if b.executor != nil {
		err = b.executor.Execute(ctx, "nats.publish", call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	if err != nil && classifyPublishError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "publish "+subject, err)
	}
	return err
}

// Connection-level failures clear up once the client reconnects.
var connectionErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
	nats.ErrConnectionReconnecting,
}

func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	for _, target := range connectionErrors {
		if errors.Is(err, target) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

// Subscribe delivers every pipeline event to handler until ctx is done.
func (b *Bus) Subscribe(ctx context.Context, handler func(context.Context, domain.PipelineEvent) error) error {
	if b.conn == nil {
		return errors.New("nats subscribe: bus is not connected")
	}
	sub, err := b.conn.Subscribe(b.prefix+".>", func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		event, err := decodeEvent(msg.Data)
		if err != nil {
			slog.Warn("event_decode_failed", "subject", msg.Subject, "error", err.Error())
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, event); err != nil {
			slog.Error("event_handler_failed", "subject", msg.Subject, "error", err.Error())
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func decodeEvent(data []byte) (domain.PipelineEvent, error) {
	var event domain.PipelineEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.PipelineEvent{}, err
	}
	if event.Kind == "" {
		return domain.PipelineEvent{}, errors.New("event kind is empty")
	}
	return event, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
