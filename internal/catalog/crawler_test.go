package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const viewPath = "/solutions/products/product-catalog/view/"

type catalogSite struct {
	server       *httptest.Server
	requests     atomic.Int64
	pageRequests atomic.Int64
}

// newCatalogSite serves a listing with the given number of product links.
// Pages named "missing-*" answer 404 and pages named "blank-*" have no h1.
func newCatalogSite(t *testing.T, slugs []string) *catalogSite {
	t.Helper()
	return newHookedCatalogSite(t, slugs, nil)
}

// newHookedCatalogSite is newCatalogSite with onPage called at the start of
// every product page request.
func newHookedCatalogSite(t *testing.T, slugs []string, onPage func(slug string)) *catalogSite {
	t.Helper()

	site := &catalogSite{}
	mux := http.NewServeMux()

	mux.HandleFunc("/listing", func(w http.ResponseWriter, r *http.Request) {
		site.requests.Add(1)
		var b strings.Builder
		b.WriteString("<html><body>")
		for _, slug := range slugs {
			fmt.Fprintf(&b, `<a href="/products/product-catalog/view/%s/">%s</a>`, slug, slug)
		}
		b.WriteString(`<a href="/contact/">Contact</a></body></html>`)
		_, _ = w.Write([]byte(b.String()))
	})

	mux.HandleFunc(viewPath, func(w http.ResponseWriter, r *http.Request) {
		site.requests.Add(1)
		site.pageRequests.Add(1)

		slug := strings.Trim(strings.TrimPrefix(r.URL.Path, viewPath), "/")
		if onPage != nil {
			onPage(slug)
		}

		switch {
		case strings.HasPrefix(slug, "missing-"):
			http.NotFound(w, r)
		case strings.HasPrefix(slug, "blank-"):
			_, _ = w.Write([]byte("<html><body><p>nothing here</p></body></html>"))
		default:
			fmt.Fprintf(w, "<html><body><h1>%s</h1><p>Java coding test, 15 minutes, remote.</p></body></html>", slug)
		}
	})

	site.server = httptest.NewServer(mux)
	t.Cleanup(site.server.Close)

	return site
}

func (s *catalogSite) config(dir string) Config {
	return Config{
		ListingURL:   s.server.URL + "/listing",
		BaseURL:      s.server.URL,
		SnapshotFile: filepath.Join(dir, "catalog.json"),
		FallbackFile: filepath.Join(dir, "fallback.json"),
	}
}

func makeRecords(n int) *Records {
	records := &Records{}
	for i := 0; i < n; i++ {
		records.Items = append(records.Items, &Record{
			URL:             fmt.Sprintf("https://example.com/item-%03d", i),
			Name:            fmt.Sprintf("Item %d", i),
			RemoteSupport:   Yes,
			AdaptiveSupport: No,
			TestType:        []string{TypeGeneral},
		})
	}
	return records
}

func slugs(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%02d", prefix, i)
	}
	return out
}

func TestEnsureCatalogWarmSnapshotMakesNoRequests(t *testing.T) {
	t.Parallel()

	site := newCatalogSite(t, slugs("item-", 60))
	cfg := site.config(t.TempDir())
	require.NoError(t, makeRecords(DefaultMinRecords).ToFile(cfg.SnapshotFile))

	crawler := NewCrawler(cfg, site.server.Client(), zap.NewNop())
	records, err := crawler.EnsureCatalog(context.Background())
	require.NoError(t, err)

	assert.Equal(t, DefaultMinRecords, records.Len())
	assert.Zero(t, site.requests.Load())
	assert.Equal(t, SourceCache, crawler.LastRun().Source)
}

func TestEnsureCatalogFewLinksUsesFallback(t *testing.T) {
	t.Parallel()

	site := newCatalogSite(t, slugs("item-", DefaultMinLinks-1))
	cfg := site.config(t.TempDir())

	fallback := makeRecords(3)
	require.NoError(t, fallback.ToFile(cfg.FallbackFile))

	crawler := NewCrawler(cfg, site.server.Client(), zap.NewNop())
	records, err := crawler.EnsureCatalog(context.Background())
	require.NoError(t, err)

	assert.Zero(t, site.pageRequests.Load())
	assert.Equal(t, fallback.Items, records.Items)

	persisted, err := LoadFile(cfg.SnapshotFile)
	require.NoError(t, err)
	assert.Equal(t, fallback.Items, persisted.Items)

	stats := crawler.LastRun()
	assert.Equal(t, SourceFallback, stats.Source)
	assert.Equal(t, DefaultMinLinks-1, stats.Discovered)
	assert.Contains(t, stats.Error, ErrLinkDiscoveryInsufficient.Error())
}

func TestEnsureCatalogListingFailureUsesFallback(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	cfg := Config{
		ListingURL:   server.URL,
		SnapshotFile: filepath.Join(dir, "catalog.json"),
		FallbackFile: filepath.Join(dir, "fallback.json"),
	}
	require.NoError(t, makeRecords(2).ToFile(cfg.FallbackFile))

	records, err := NewCrawler(cfg, server.Client(), nil).EnsureCatalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, records.Len())
}

func TestEnsureCatalogLiveCrawl(t *testing.T) {
	t.Parallel()

	pages := append(slugs("item-", 8), "missing-01", "blank-01")
	site := newCatalogSite(t, pages)
	cfg := site.config(t.TempDir())
	cfg.MinLinks = 5
	cfg.Workers = 3

	crawler := NewCrawler(cfg, site.server.Client(), zap.NewNop())
	records, err := crawler.EnsureCatalog(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(len(pages)), site.pageRequests.Load())
	require.Equal(t, 8, records.Len())

	first := records.Items[0]
	assert.Equal(t, site.server.URL+viewPath+"item-00/", first.URL)
	assert.Equal(t, "item-00", first.Name)
	assert.Equal(t, 15, first.DurationMinutes)
	assert.Equal(t, Yes, first.RemoteSupport)
	assert.Equal(t, []string{TypeKnowledge}, first.TestType)

	persisted, err := LoadFile(cfg.SnapshotFile)
	require.NoError(t, err)
	assert.Equal(t, records.URLs(), persisted.URLs())

	stats := crawler.LastRun()
	assert.Equal(t, SourceLive, stats.Source)
	assert.Equal(t, 10, stats.Discovered)
	assert.Equal(t, 8, stats.Extracted)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 8, stats.Saved)
}

func TestCrawlIgnoresWarmSnapshot(t *testing.T) {
	t.Parallel()

	site := newCatalogSite(t, slugs("item-", 6))
	cfg := site.config(t.TempDir())
	cfg.MinLinks = 5
	cfg.MinRecords = 1
	require.NoError(t, makeRecords(4).ToFile(cfg.SnapshotFile))

	records, err := NewCrawler(cfg, site.server.Client(), nil).Crawl(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, records.Len())
	assert.Equal(t, int64(6), site.pageRequests.Load())
}

func TestEnsureCatalogUnavailable(t *testing.T) {
	t.Parallel()

	site := newCatalogSite(t, slugs("item-", 2))
	cfg := site.config(t.TempDir())

	records, err := NewCrawler(cfg, site.server.Client(), nil).EnsureCatalog(context.Background())
	require.ErrorIs(t, err, ErrCatalogUnavailable)
	require.ErrorIs(t, err, ErrLinkDiscoveryInsufficient)
	assert.Nil(t, records)
}

func TestEnsureCatalogServesStaleSnapshotWithoutFallback(t *testing.T) {
	t.Parallel()

	site := newCatalogSite(t, slugs("item-", 2))
	cfg := site.config(t.TempDir())
	require.NoError(t, makeRecords(5).ToFile(cfg.SnapshotFile))

	crawler := NewCrawler(cfg, site.server.Client(), nil)
	records, err := crawler.EnsureCatalog(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, records.Len())
	assert.Equal(t, SourceStale, crawler.LastRun().Source)
}

func TestCrawlInterruptedKeepsSnapshot(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pages atomic.Int64
	site := newHookedCatalogSite(t, slugs("item-", 60), func(string) {
		if pages.Add(1) == 5 {
			cancel()
		}
	})
	cfg := site.config(t.TempDir())
	cfg.Workers = 1
	require.NoError(t, makeRecords(400).ToFile(cfg.SnapshotFile))
	before, err := os.ReadFile(cfg.SnapshotFile)
	require.NoError(t, err)

	crawler := NewCrawler(cfg, site.server.Client(), zap.NewNop())
	records, err := crawler.Crawl(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, records)

	after, err := os.ReadFile(cfg.SnapshotFile)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	persisted, err := LoadFile(cfg.SnapshotFile)
	require.NoError(t, err)
	assert.Equal(t, 400, persisted.Len())

	stats := crawler.LastRun()
	assert.Empty(t, stats.Source)
	assert.Equal(t, 60, stats.Discovered)
	assert.Contains(t, stats.Error, context.Canceled.Error())
}

func TestCrawlCancelledBeforeListingSkipsFallback(t *testing.T) {
	t.Parallel()

	site := newCatalogSite(t, slugs("item-", 60))
	cfg := site.config(t.TempDir())
	require.NoError(t, makeRecords(3).ToFile(cfg.FallbackFile))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCrawler(cfg, site.server.Client(), nil).Crawl(ctx)
	require.ErrorIs(t, err, context.Canceled)

	_, err = os.Stat(cfg.SnapshotFile)
	assert.True(t, errors.Is(err, os.ErrNotExist), "snapshot must not be written")
}

func TestFallbackIsPersistedVerbatim(t *testing.T) {
	t.Parallel()

	site := newCatalogSite(t, slugs("item-", 2))
	cfg := site.config(t.TempDir())

	fallback := []byte(`[{"url":"https://example.com/a","name":"A","remote_support":"yes","test_type":[],"job_levels":["Mid"]},
 {"url":"https://example.com/b","name":"B","duration":30,"adaptive_support":"Yes","test_type":["Cognitive Ability"]}]`)
	require.NoError(t, os.WriteFile(cfg.FallbackFile, fallback, 0o644))

	records, err := NewCrawler(cfg, site.server.Client(), nil).EnsureCatalog(context.Background())
	require.NoError(t, err)

	persisted, err := os.ReadFile(cfg.SnapshotFile)
	require.NoError(t, err)
	assert.Equal(t, fallback, persisted)

	require.Equal(t, 2, records.Len())
	a := records.FindByURL("https://example.com/a")
	require.NotNil(t, a)
	assert.Equal(t, []string{TypeGeneral}, a.TestType)
	assert.Equal(t, No, a.RemoteSupport)
	assert.Equal(t, No, a.AdaptiveSupport)
	assert.Equal(t, Yes, records.FindByURL("https://example.com/b").AdaptiveSupport)
}

func TestInvalidFallbackLeavesSnapshotAlone(t *testing.T) {
	t.Parallel()

	site := newCatalogSite(t, slugs("item-", 2))
	cfg := site.config(t.TempDir())
	require.NoError(t, makeRecords(5).ToFile(cfg.SnapshotFile))
	before, err := os.ReadFile(cfg.SnapshotFile)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cfg.FallbackFile, []byte(`{"not": "an array"}`), 0o644))

	crawler := NewCrawler(cfg, site.server.Client(), nil)
	records, err := crawler.EnsureCatalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, records.Len())
	assert.Equal(t, SourceStale, crawler.LastRun().Source)

	after, err := os.ReadFile(cfg.SnapshotFile)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFetchAllRespectsWorkerLimit(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int64
	pages := append(slugs("item-", 20), slugs("missing-", 4)...)
	site := newHookedCatalogSite(t, pages, func(string) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(15 * time.Millisecond)
		inFlight.Add(-1)
	})
	cfg := site.config(t.TempDir())
	cfg.MinLinks = 10
	cfg.Workers = 3

	crawler := NewCrawler(cfg, site.server.Client(), zap.NewNop())
	records, err := crawler.Crawl(context.Background())
	require.NoError(t, err)

	assert.LessOrEqual(t, peak.Load(), int64(3))
	assert.Equal(t, int64(len(pages)), site.pageRequests.Load())
	assert.Equal(t, 20, records.Len())

	stats := crawler.LastRun()
	assert.Equal(t, SourceLive, stats.Source)
	assert.Equal(t, 20, stats.Extracted)
	assert.Equal(t, 4, stats.Failed)
}
