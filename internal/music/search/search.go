// Package search abstracts the upstream video search service. The resolver
// and the player's alternative-lookup tier only depend on the Client
// interface, so tests can substitute canned result sets.
package search

import (
	"context"
	"time"
)

// Candidate is one ranked search result.
type Candidate struct {
	Title    string
	Channel  string
	URL      string
	Thumb    string
	Duration time.Duration
	Live     bool
}

type Client interface {
	// Search returns up to limit candidates ranked by the upstream service.
	Search(ctx context.Context, query string, limit int) ([]Candidate, error)
}
