// Package scrape fetches the text of job posting pages.
package scrape

import (
	"context"

	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/outcome"
)

// Result is the text of a scraped page. Text is empty unless Outcome is
// Success.
type Result struct {
	Text    string
	Outcome outcome.Outcome
	Err     error
}

// Scraper returns the readable content of a page. Implementations never
// return a Success result with empty text.
type Scraper interface {
	Scrape(ctx context.Context, url string) Result
	Name() string
}

// Disabled is used when no scrape backend is configured.
type Disabled struct{}

func (Disabled) Scrape(context.Context, string) Result {
	return Result{Outcome: outcome.Degraded}
}

func (Disabled) Name() string { return "disabled" }

func failed(err error) Result {
	return Result{Outcome: outcome.Failed, Err: err}
}
