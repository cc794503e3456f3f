package usecase

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/book-qa/internal/core/domain"
)

func newQuery(store *storeFake, model *modelFake, history *historyFake, opts ...QueryOption) *QueryUseCase {
	return NewQueryUseCase(NewRetriever(store, 3, 0.7), model, history, opts...)
}

func TestQueryNoMatchSkipsCompletion(t *testing.T) {
	// 50-character book, unrelated question.
	store := &storeFake{}
	if err := store.Rebuild(context.Background(), chunkerFake{}.Split([]domain.TextDocument{
		{Source: "uploads/book.md", Text: strings.Repeat("x", 50)},
	})); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if len(store.entries) != 1 || store.entries[0].StartIndex != 0 {
		t.Fatalf("expected one chunk at offset 0, got %+v", store.entries)
	}
	store.defaultScore = 0.12

	model := &modelFake{reply: "should not be used"}
	history := &historyFake{}
	answer, err := newQuery(store, model, history).Ask(context.Background(), "What is the capital of Peru?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Text != domain.NoMatchAnswer || answer.Matched {
		t.Fatalf("expected sentinel answer, got %+v", answer)
	}
	if model.calls != 0 {
		t.Fatalf("completion must not be called on no match, got %d calls", model.calls)
	}
	if len(history.records) != 1 || history.records[0].Answer != domain.NoMatchAnswer {
		t.Fatalf("expected sentinel in history, got %+v", history.records)
	}
}

func TestQueryMatchedBuildsPromptAndRecordsHistory(t *testing.T) {
	store := &storeFake{
		entries: chunks("Ahab hunts the whale.", "Ishmael narrates."),
		scores:  map[string]float64{"Ahab hunts the whale.": 0.91, "Ishmael narrates.": 0.75},
	}
	model := &modelFake{reply: "Captain Ahab."}
	history := &historyFake{}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	var states []domain.QueryState
	uc := newQuery(store, model, history,
		WithClock(func() time.Time { return fixed }),
		WithStateObserver(func(s domain.QueryState) { states = append(states, s) }),
	)

	answer, err := uc.Ask(context.Background(), "Who hunts the whale?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Text != "Captain Ahab." || !answer.Matched {
		t.Fatalf("unexpected answer %+v", answer)
	}
	if len(answer.Sources) != 2 {
		t.Fatalf("expected two sources, got %v", answer.Sources)
	}

	wantPrompt := "Answer the question based only on the following context:\n\n" +
		"Ahab hunts the whale.\n\n---\n\nIshmael narrates." +
		"\n\n---\n\nAnswer the question based on the above context: Who hunts the whale?"
	if len(model.prompts) != 1 || model.prompts[0] != wantPrompt {
		t.Fatalf("unexpected prompt %q", model.prompts)
	}

	wantStates := []domain.QueryState{
		domain.QueryReceived, domain.QueryRetrieving, domain.QueryMatched,
		domain.QueryComposing, domain.QueryAnswered,
	}
	if !reflect.DeepEqual(states, wantStates) {
		t.Fatalf("unexpected states %v", states)
	}

	records, err := uc.History(context.Background())
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(records) != 1 || !records[0].Timestamp.Equal(fixed) || records[0].Answer != "Captain Ahab." {
		t.Fatalf("unexpected history %+v", records)
	}
}

func TestQueryNoMatchStates(t *testing.T) {
	var states []domain.QueryState
	uc := newQuery(&storeFake{}, &modelFake{}, &historyFake{},
		WithStateObserver(func(s domain.QueryState) { states = append(states, s) }),
	)
	if _, err := uc.Ask(context.Background(), "q"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	want := []domain.QueryState{domain.QueryReceived, domain.QueryRetrieving, domain.QueryNoMatch, domain.QueryAnswered}
	if !reflect.DeepEqual(states, want) {
		t.Fatalf("unexpected states %v", states)
	}
}

func TestQueryCompletionFailureIsTyped(t *testing.T) {
	store := &storeFake{entries: chunks("text"), defaultScore: 0.8}
	history := &historyFake{}
	_, err := newQuery(store, &modelFake{err: errors.New("connection refused")}, history).Ask(context.Background(), "q")
	if !domain.IsKind(err, domain.ErrCompletionService) {
		t.Fatalf("expected completion service error, got %v", err)
	}
	if len(history.records) != 0 {
		t.Fatalf("failed question must not be recorded")
	}
}

func TestQueryEmptyQuestion(t *testing.T) {
	store := &storeFake{}
	_, err := newQuery(store, &modelFake{}, &historyFake{}).Ask(context.Background(), "   ")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if store.searches != 0 {
		t.Fatalf("empty question must not reach the index")
	}
}

func TestQueryHistoryAppendError(t *testing.T) {
	_, err := newQuery(&storeFake{}, &modelFake{}, &historyFake{appendErr: errors.New("db down")}).Ask(context.Background(), "q")
	if err == nil {
		t.Fatalf("expected error")
	}
}
