package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/outcome"
)

const (
	DefaultMinRecords     = 370
	DefaultMinLinks       = 50
	DefaultWorkers        = 10
	DefaultPageTimeout    = 10 * time.Second
	DefaultListingTimeout = 30 * time.Second
	DefaultUserAgent      = "Mozilla/5.0 (compatible; assessment-recommender/1.0)"
)

var (
	// ErrCatalogUnavailable means neither a live crawl, the fallback file nor a
	// persisted snapshot produced any records.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrLinkDiscoveryInsufficient means the listing page was fetched but held
	// too few product links to be worth crawling.
	ErrLinkDiscoveryInsufficient = errors.New("link discovery insufficient")

	errNoRecords = errors.New("crawl produced no records")
)

// Source tells where the snapshot returned by the crawler came from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
	// SourceStale is an undersized persisted snapshot served because nothing
	// better was available.
	SourceStale Source = "stale"
)

type Config struct {
	ListingURL  string
	BaseURL     string
	PathSegment string

	SnapshotFile string
	FallbackFile string

	MinRecords int
	MinLinks   int
	Workers    int

	PageTimeout    time.Duration
	ListingTimeout time.Duration

	// RequestsPerSecond limits page fetches across all workers. Zero disables
	// the limiter.
	RequestsPerSecond float64
	UserAgent         string
}

func (c Config) withDefaults() Config {
	if c.ListingURL == "" {
		c.ListingURL = DefaultListingURL
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.PathSegment == "" {
		c.PathSegment = DefaultPathSegment
	}
	if c.MinRecords <= 0 {
		c.MinRecords = DefaultMinRecords
	}
	if c.MinLinks <= 0 {
		c.MinLinks = DefaultMinLinks
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.PageTimeout <= 0 {
		c.PageTimeout = DefaultPageTimeout
	}
	if c.ListingTimeout <= 0 {
		c.ListingTimeout = DefaultListingTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}

// PageResult is the outcome of fetching and extracting one product page.
type PageResult struct {
	URL     string
	Record  *Record
	Outcome outcome.Outcome
	Err     error
}

// Stats describes the last EnsureCatalog or Crawl run.
type Stats struct {
	Source     Source        `json:"source"`
	Discovered int           `json:"discovered"`
	Extracted  int           `json:"extracted"`
	Failed     int           `json:"failed"`
	Saved      int           `json:"saved"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

type Crawler struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	mu   sync.Mutex
	last Stats
}

func NewCrawler(cfg Config, client *http.Client, logger *zap.Logger) *Crawler {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg = cfg.withDefaults()

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Workers)
	}

	return &Crawler{
		cfg:     cfg,
		client:  client,
		limiter: limiter,
		logger:  logger,
	}
}

// LastRun returns the statistics of the most recent run.
func (c *Crawler) LastRun() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// EnsureCatalog returns the persisted snapshot when it is complete and crawls
// otherwise. It is safe to call on every start.
func (c *Crawler) EnsureCatalog(ctx context.Context) (*Records, error) {
	started := time.Now()

	existing, err := LoadFile(c.cfg.SnapshotFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Warn("Persisted catalog is unreadable", zap.String("path", c.cfg.SnapshotFile), zap.Error(err))
	}

	if existing.IsComplete(c.cfg.MinRecords) {
		c.logger.Info("Catalog is warm",
			zap.Int("records", existing.Len()),
			zap.Int("min_records", c.cfg.MinRecords),
		)
		c.record(Stats{Source: SourceCache, Saved: existing.Len(), StartedAt: started, Duration: time.Since(started)})
		return existing, nil
	}

	c.logger.Info("Catalog is below threshold, crawling",
		zap.Int("records", existing.Len()),
		zap.Int("min_records", c.cfg.MinRecords),
	)

	return c.crawl(ctx, existing, started)
}

// Crawl ignores the persisted snapshot size and always re-acquires the catalog.
func (c *Crawler) Crawl(ctx context.Context) (*Records, error) {
	started := time.Now()
	existing, _ := LoadFile(c.cfg.SnapshotFile)
	return c.crawl(ctx, existing, started)
}

func (c *Crawler) crawl(ctx context.Context, existing *Records, started time.Time) (*Records, error) {
	links, err := c.discover(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, c.interrupted(Stats{Discovered: len(links), StartedAt: started}, ctxErr)
		}
		c.logger.Warn("Link discovery failed, using fallback", zap.Error(err))
		return c.fallback(existing, Stats{Discovered: len(links), StartedAt: started}, err)
	}

	results := c.fetchAll(ctx, links)

	stats := Stats{Discovered: len(links), StartedAt: started}
	if err := ctx.Err(); err != nil {
		return nil, c.interrupted(stats, err)
	}

	records := &Records{Items: make([]*Record, 0, len(results))}
	for _, res := range results {
		if !res.Outcome.OK() {
			stats.Failed++
			c.logger.Debug("Page dropped", zap.String("url", res.URL), zap.Error(res.Err))
			continue
		}
		records.Items = append(records.Items, res.Record)
	}
	stats.Extracted = records.Len()

	if records.Len() == 0 {
		c.logger.Warn("Live crawl extracted nothing, using fallback", zap.Int("failed", stats.Failed))
		return c.fallback(existing, stats, errNoRecords)
	}

	records.SortByURL()
	if err := records.ToFile(c.cfg.SnapshotFile); err != nil {
		return nil, fmt.Errorf("persist catalog: %w", err)
	}

	stats.Source = SourceLive
	stats.Saved = records.Len()
	stats.Duration = time.Since(started)
	c.record(stats)

	c.logger.Info("Catalog crawl finished",
		zap.Int("discovered", stats.Discovered),
		zap.Int("extracted", stats.Extracted),
		zap.Int("failed", stats.Failed),
		zap.Duration("took", stats.Duration),
	)

	return records, nil
}

func (c *Crawler) discover(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ListingTimeout)
	defer cancel()

	resp, err := c.get(ctx, c.cfg.ListingURL)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	links := DiscoverLinks(doc, c.cfg.BaseURL, c.cfg.PathSegment)
	c.logger.Debug("Listing links discovered", zap.Int("links", len(links)))

	if len(links) < c.cfg.MinLinks {
		return links, fmt.Errorf("%w: found %d links, need %d", ErrLinkDiscoveryInsufficient, len(links), c.cfg.MinLinks)
	}

	return links, nil
}

// fetchAll runs one task per link on a bounded pool. Tasks never return an
// error so a failing page does not cancel its siblings.
func (c *Crawler) fetchAll(ctx context.Context, links []string) []PageResult {
	var (
		mu      sync.Mutex
		results = make([]PageResult, 0, len(links))
	)

	g := new(errgroup.Group)
	g.SetLimit(c.cfg.Workers)

	for _, link := range links {
		g.Go(func() error {
			res := c.fetchPage(ctx, link)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (c *Crawler) fetchPage(ctx context.Context, link string) PageResult {
	failed := func(err error) PageResult {
		return PageResult{URL: link, Outcome: outcome.Failed, Err: err}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return failed(fmt.Errorf("rate limit: %w", err))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.PageTimeout)
	defer cancel()

	resp, err := c.get(ctx, link)
	if err != nil {
		return failed(err)
	}
	defer resp.Body.Close()

	record, err := Extract(resp.Body, link)
	if err != nil {
		return failed(err)
	}

	return PageResult{URL: link, Record: record, Outcome: outcome.Success}
}

func (c *Crawler) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %d", target, resp.StatusCode)
	}

	return resp, nil
}

// interrupted records a crawl cut short by ctx. Nothing is persisted, so the
// previous snapshot stays in place.
func (c *Crawler) interrupted(stats Stats, cause error) error {
	stats.Error = cause.Error()
	stats.Duration = time.Since(stats.StartedAt)
	c.record(stats)

	c.logger.Warn("Catalog crawl interrupted, snapshot left untouched", zap.Error(cause))
	return fmt.Errorf("crawl interrupted: %w", cause)
}

// fallback serves the bundled fallback file, copied to the snapshot byte for
// byte; only the returned records are normalized. When it is missing an
// undersized persisted snapshot is still better than nothing.
func (c *Crawler) fallback(existing *Records, stats Stats, cause error) (*Records, error) {
	data, records, err := readRecords(c.cfg.FallbackFile)
	if err == nil {
		if err := writeFileAtomic(c.cfg.SnapshotFile, data); err != nil {
			return nil, fmt.Errorf("persist fallback catalog: %w", err)
		}
		stats.Source = SourceFallback
		stats.Saved = records.Len()
		stats.Error = cause.Error()
		stats.Duration = time.Since(stats.StartedAt)
		c.record(stats)

		c.logger.Info("Fallback catalog loaded",
			zap.String("path", c.cfg.FallbackFile),
			zap.Int("records", records.Len()),
		)
		return records, nil
	}

	if existing.Len() > 0 {
		stats.Source = SourceStale
		stats.Saved = existing.Len()
		stats.Error = cause.Error()
		stats.Duration = time.Since(stats.StartedAt)
		c.record(stats)

		c.logger.Warn("Fallback catalog missing, serving undersized snapshot",
			zap.Int("records", existing.Len()),
			zap.Error(err),
		)
		return existing, nil
	}

	stats.Error = err.Error()
	stats.Duration = time.Since(stats.StartedAt)
	c.record(stats)

	c.logger.Error("Catalog unavailable", zap.NamedError("crawl_error", cause), zap.NamedError("fallback_error", err))
	return nil, fmt.Errorf("%w: %w (fallback: %w)", ErrCatalogUnavailable, cause, err)
}

func (c *Crawler) record(stats Stats) {
	c.mu.Lock()
	c.last = stats
	c.mu.Unlock()
}
