package domain

import "fmt"

// Chunk is unique only by (Source, StartIndex).
type Chunk struct {
	Source     string `json:"source"`
	StartIndex int    `json:"start_index"`
	Text       string `json:"text"`
}

func (c Chunk) ID() string {
	return fmt.Sprintf("%s#%d", c.Source, c.StartIndex)
}

type RetrievalResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Retrieval is the outcome of one admission decision. Matched=false is the
// NoMatch outcome and is not an error.
type Retrieval struct {
	Matched bool              `json:"matched"`
	Context string            `json:"context,omitempty"`
	Sources []string          `json:"sources"`
	Results []RetrievalResult `json:"results"`
}

// NoMatchAnswer is returned instead of calling the completion service when no
// chunk clears the relevance threshold.
const NoMatchAnswer = "Unable to find matching results."

type Answer struct {
	Question string            `json:"question"`
	Text     string            `json:"text"`
	Matched  bool              `json:"matched"`
	Sources  []string          `json:"sources"`
	Results  []RetrievalResult `json:"results,omitempty"`
}
