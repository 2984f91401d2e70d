// Package research wraps the external web search and deep-research service
// used for part lookups and pricing checks.
package research

import (
	"context"
	"errors"
	"time"
)

// Cache source tags.
const (
	SourceSearch   = "search"
	SourceResearch = "research"
)

// ErrProviderUnavailable is returned when the research service cannot be reached
// or answers with an error.
var ErrProviderUnavailable = errors.New("research provider unavailable")

// Result is one web search hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Answer is a synthesized research answer with its supporting sources.
type Answer struct {
	Query      string    `json:"query"`
	Summary    string    `json:"summary"`
	Sources    []Result  `json:"sources"`
	Complete   bool      `json:"complete"`
	ResearchAt time.Time `json:"researched_at"`
}

// neutralSummary is returned in place of an answer when research fails.
const neutralSummary = "Research could not be completed right now. Please try again later."

// IncompleteAnswer returns the neutral answer used when research fails.
func IncompleteAnswer(query string) Answer {
	return Answer{Query: query, Summary: neutralSummary, Sources: []Result{}}
}

// Provider is the external research capability.
type Provider interface {
	Search(ctx context.Context, query string) ([]Result, error)
	DeepResearch(ctx context.Context, query string) (Answer, error)
}
