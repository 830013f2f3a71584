package models

import (
	"time"

	"github.com/jinzhu/inflection"
)

// ObjectFailure records why a single object could not be persisted.
type ObjectFailure struct {
	Object string `json:"object" yaml:"object"`
	Reason string `json:"reason" yaml:"reason"`
}

// CategoryResult summarizes one object category of an extraction run.
type CategoryResult struct {
	Category  ObjectType      `json:"category" yaml:"category"`
	Listed    int             `json:"listed" yaml:"listed"`
	Succeeded int             `json:"succeeded" yaml:"succeeded"`
	Failed    int             `json:"failed" yaml:"failed"`
	Failures  []ObjectFailure `json:"failures,omitempty" yaml:"failures,omitempty"`
	// Error is set when the category itself could not run (e.g. the listing call failed).
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Label returns the plural category name used in logs and summaries.
func (c *CategoryResult) Label() string {
	return inflection.Plural(string(c.Category))
}

// OK reports whether every object in the category was persisted.
func (c *CategoryResult) OK() bool {
	return c.Error == "" && c.Failed == 0
}

// ExtractionResult is the structured outcome of one reflection run.
type ExtractionResult struct {
	DatabaseID string           `json:"database_id" yaml:"database_id"`
	Dialect    Dialect          `json:"dialect" yaml:"dialect"`
	StartedAt  time.Time        `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time        `json:"finished_at" yaml:"finished_at"`
	Categories []CategoryResult `json:"categories" yaml:"categories"`
}

// Category returns the result for the given category, or nil.
func (r *ExtractionResult) Category(t ObjectType) *CategoryResult {
	for i := range r.Categories {
		if r.Categories[i].Category == t {
			return &r.Categories[i]
		}
	}
	return nil
}

// OK reports whether every category completed without failures.
func (r *ExtractionResult) OK() bool {
	for i := range r.Categories {
		if !r.Categories[i].OK() {
			return false
		}
	}
	return true
}

// Totals returns the summed succeeded and failed object counts.
func (r *ExtractionResult) Totals() (succeeded, failed int) {
	for _, c := range r.Categories {
		succeeded += c.Succeeded
		failed += c.Failed
	}
	return succeeded, failed
}
