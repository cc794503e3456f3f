package domain

import "time"

type QueryRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Matched   bool      `json:"matched"`
	Sources   []string  `json:"sources,omitempty"`
}

// QueryState tracks one question through the answering pipeline.
type QueryState string

const (
	QueryReceived   QueryState = "received"
	QueryRetrieving QueryState = "retrieving"
	QueryNoMatch    QueryState = "no_match"
	QueryMatched    QueryState = "matched"
	QueryComposing  QueryState = "composing"
	QueryAnswered   QueryState = "answered"
)
