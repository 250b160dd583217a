package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/ai"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/catalog"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/embeddings"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/index"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/outcome"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/scrape"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/utils"
)

const (
	DefaultCandidates     = 20
	DefaultTarget         = 10
	DefaultMaxScrapeChars = 3000
	DefaultMinResults     = 5
)

var (
	// ErrEmptyQuery is returned for blank requests.
	ErrEmptyQuery = errors.New("query must not be empty")
	// ErrPipeline wraps failures that leave nothing to recommend from, such
	// as an unreachable embedding backend or an empty index.
	ErrPipeline = errors.New("recommendation pipeline failed")
)

// Searcher is the nearest neighbour lookup used by the pipeline.
type Searcher interface {
	Query(ctx context.Context, vector []float32, k int) ([]index.Hit, error)
}

// Deps aggregates the collaborators of the pipeline. Scraper and Rewriter
// may be nil.
type Deps struct {
	Scraper  scrape.Scraper
	Rewriter *ai.Rewriter
	Embedder embeddings.Embedder
	Index    Searcher
	Logger   *zap.Logger
}

type Options struct {
	Candidates     int
	Target         int
	MaxScrapeChars int
	MinResults     int
}

func (o Options) withDefaults() Options {
	if o.Candidates <= 0 {
		o.Candidates = DefaultCandidates
	}
	if o.Target <= 0 {
		o.Target = DefaultTarget
	}
	if o.MaxScrapeChars <= 0 {
		o.MaxScrapeChars = DefaultMaxScrapeChars
	}
	if o.MinResults <= 0 {
		o.MinResults = DefaultMinResults
	}
	return o
}

// Stage describes the result of executing one pipeline step.
type Stage struct {
	Name    string
	Outcome outcome.Outcome
	Initial int
	Dropped int
	Left    int
}

type Result struct {
	Assessments []*catalog.Record
	// SearchText is the text that was rewritten: the request or the scraped page.
	SearchText string
	// Query is the text that was embedded.
	Query  string
	Stages []Stage
}

type Pipeline struct {
	deps Deps
	opts Options
}

func NewPipeline(deps Deps, opts Options) *Pipeline {
	if deps.Scraper == nil {
		deps.Scraper = scrape.Disabled{}
	}
	if deps.Rewriter == nil {
		deps.Rewriter = ai.NewRewriter(nil, deps.Logger, 0)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Pipeline{deps: deps, opts: opts.withDefaults()}
}

// IsURL reports whether the request should be scraped rather than searched
// as text.
func IsURL(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Recommend runs scrape, rewrite, search and balance for one request.
func (p *Pipeline) Recommend(ctx context.Context, request string) (*Result, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return nil, ErrEmptyQuery
	}

	result := &Result{SearchText: request}

	if IsURL(request) {
		result.SearchText = p.scrape(ctx, request, result)
	}

	rewrite := p.deps.Rewriter.Rewrite(ctx, result.SearchText)
	result.Query = rewrite.Query
	p.step(result, Stage{Name: "rewrite", Outcome: rewrite.Outcome, Initial: 1, Left: 1})

	vector, err := p.deps.Embedder.Embed(ctx, result.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", ErrPipeline, err)
	}

	hits, err := p.deps.Index.Query(ctx, vector, p.opts.Candidates)
	if err != nil {
		return nil, fmt.Errorf("%w: search index: %w", ErrPipeline, err)
	}
	p.step(result, Stage{Name: "search", Initial: p.opts.Candidates, Dropped: p.opts.Candidates - len(hits), Left: len(hits)})

	candidates := make([]*catalog.Record, 0, len(hits))
	for _, hit := range hits {
		record, err := index.DecodeRecord(hit.Metadata)
		if err != nil {
			p.deps.Logger.Warn("Dropping undecodable hit", zap.String("id", hit.ID), zap.Error(err))
			continue
		}
		candidates = append(candidates, record)
	}
	p.step(result, Stage{Name: "decode", Initial: len(hits), Dropped: len(hits) - len(candidates), Left: len(candidates)})

	result.Assessments = Balance(candidates, p.opts.Target)
	p.step(result, Stage{Name: "balance", Initial: len(candidates), Dropped: len(candidates) - len(result.Assessments), Left: len(result.Assessments)})

	if len(result.Assessments) < p.opts.MinResults {
		p.deps.Logger.Warn("Fewer recommendations than expected",
			zap.Int("got", len(result.Assessments)),
			zap.Int("expected", p.opts.MinResults),
		)
	}

	return result, nil
}

// scrape returns the page text, or the URL itself when scraping is not
// possible.
func (p *Pipeline) scrape(ctx context.Context, url string, result *Result) string {
	scraped := p.deps.Scraper.Scrape(ctx, url)

	text := strings.TrimSpace(scraped.Text)
	res := scraped.Outcome
	if res.OK() && text == "" {
		res = outcome.Failed
	}

	if !res.OK() {
		if scraped.Err != nil {
			p.deps.Logger.Warn("Scrape failed, searching with the URL",
				zap.String("url", url),
				zap.String("scraper", p.deps.Scraper.Name()),
				zap.Error(scraped.Err),
			)
		}
		p.step(result, Stage{Name: "scrape", Outcome: res, Initial: 1, Left: 1})
		return url
	}

	p.step(result, Stage{Name: "scrape", Outcome: res, Initial: 1, Left: 1})
	return utils.Prefix(text, p.opts.MaxScrapeChars)
}

func (p *Pipeline) step(result *Result, stage Stage) {
	result.Stages = append(result.Stages, stage)
	p.deps.Logger.Debug("pipeline step",
		zap.String("name", stage.Name),
		zap.String("outcome", stage.Outcome.String()),
		zap.Int("initial", stage.Initial),
		zap.Int("dropped", stage.Dropped),
		zap.Int("left", stage.Left),
	)
}
