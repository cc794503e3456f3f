package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/book-qa/internal/core/domain"
	"github.com/kirillkom/book-qa/internal/core/ports"
)

var errEmptyQuestion = errors.New("question is empty")

type QueryUseCase struct {
	retriever *Retriever
	model     ports.CompletionModel
	history   ports.HistoryStore
	now       func() time.Time
	onState   func(domain.QueryState)
}

type QueryOption func(*QueryUseCase)

// WithStateObserver reports every state the question passes through.
func WithStateObserver(fn func(domain.QueryState)) QueryOption {
	return func(uc *QueryUseCase) {
		uc.onState = fn
	}
}

func WithClock(now func() time.Time) QueryOption {
	return func(uc *QueryUseCase) {
		uc.now = now
	}
}

func NewQueryUseCase(
	retriever *Retriever,
	model ports.CompletionModel,
	history ports.HistoryStore,
	opts ...QueryOption,
) *QueryUseCase {
	uc := &QueryUseCase{
		retriever: retriever,
		model:     model,
		history:   history,
		now:       func() time.Time { return time.Now().UTC() },
		onState:   func(domain.QueryState) {},
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *QueryUseCase) Ask(ctx context.Context, question string) (*domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errEmptyQuestion)
	}
	uc.onState(domain.QueryReceived)

	uc.onState(domain.QueryRetrieving)
	retrieval, err := uc.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	answer := &domain.Answer{
		Question: question,
		Matched:  retrieval.Matched,
		Sources:  retrieval.Sources,
		Results:  retrieval.Results,
	}

	if !retrieval.Matched {
		uc.onState(domain.QueryNoMatch)
		answer.Text = domain.NoMatchAnswer
	} else {
		uc.onState(domain.QueryMatched)
		text, err := uc.compose(ctx, question, retrieval.Context)
		if err != nil {
			return nil, err
		}
		answer.Text = text
	}

	uc.onState(domain.QueryAnswered)
	record := domain.QueryRecord{
		Timestamp: uc.now(),
		Question:  question,
		Answer:    answer.Text,
		Matched:   answer.Matched,
		Sources:   answer.Sources,
	}
	if err := uc.history.Append(ctx, record); err != nil {
		return nil, fmt.Errorf("append history: %w", err)
	}
	return answer, nil
}

func (uc *QueryUseCase) compose(ctx context.Context, question, contextText string) (string, error) {
	uc.onState(domain.QueryComposing)
	prompt, err := RenderPrompt(AnswerPromptTemplate, map[string]string{
		"context":  contextText,
		"question": question,
	})
	if err != nil {
		return "", err
	}

	text, err := uc.model.Complete(ctx, prompt)
	if err != nil {
		if domain.IsKind(err, domain.ErrCompletionService) {
			return "", err
		}
		return "", domain.WrapError(domain.ErrCompletionService, "complete answer", err)
	}
	return text, nil
}

func (uc *QueryUseCase) History(ctx context.Context) ([]domain.QueryRecord, error) {
	records, err := uc.history.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return records, nil
}
