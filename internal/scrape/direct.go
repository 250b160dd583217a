package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/catalog"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/outcome"
)

// Direct fetches the page itself and keeps the visible body text.
type Direct struct {
	httpClient *http.Client
	userAgent  string
}

func NewDirect(client *http.Client, userAgent string) *Direct {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if userAgent == "" {
		userAgent = catalog.DefaultUserAgent
	}
	return &Direct{httpClient: client, userAgent: userAgent}
}

func (d *Direct) Name() string { return "direct" }

func (d *Direct) Scrape(ctx context.Context, url string) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return failed(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return failed(fmt.Errorf("fetch page: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failed(fmt.Errorf("fetch page: status %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return failed(fmt.Errorf("parse page: %w", err))
	}

	content := doc.Find("main, article").First()
	if content.Length() == 0 {
		content = doc.Find("body")
	}

	text := catalog.PageText(content)
	if text == "" {
		return failed(errors.New("page has no text"))
	}

	return Result{Text: text, Outcome: outcome.Success}
}
