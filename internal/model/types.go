package model

import "encoding/json"

// WorkItem is one dataset row selected for translation. ID is the stable
// zero-based data-row index and survives across runs.
type WorkItem struct {
	ID      int64
	Content string
}

// TranslationResult is what a worker hands to the aggregator for one item.
// Raw carries the provider response envelope byte-for-byte.
type TranslationResult struct {
	ID    int64
	Input string
	Text  string
	Raw   json.RawMessage
}

// RunSummary is the outcome of one pipeline run.
type RunSummary struct {
	RunID       string  `json:"run_id"`
	DatasetSize int     `json:"dataset_size"`
	AlreadyDone int     `json:"already_done"`
	Planned     int     `json:"planned"`
	Completed   int     `json:"completed"`
	Failed      int     `json:"failed"`
	FailedIDs   []int64 `json:"failed_ids,omitempty"`
	ElapsedSecs float64 `json:"elapsed_seconds"`
}
