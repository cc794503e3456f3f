package domain

import "time"

type EventKind string

const (
	EventDocumentConverted EventKind = "document.converted"
	EventIndexRebuilt      EventKind = "index.rebuilt"
	EventHistoryReset      EventKind = "history.reset"
)

type PipelineEvent struct {
	Kind       EventKind         `json:"kind"`
	Subject    string            `json:"subject"`
	OccurredAt time.Time         `json:"occurred_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}
