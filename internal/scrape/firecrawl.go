package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/outcome"
)

const DefaultFirecrawlEndpoint = "https://api.firecrawl.dev"

type firecrawlRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type firecrawlResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    struct {
		Markdown string `json:"markdown"`
	} `json:"data"`
}

// Firecrawl scrapes pages through the Firecrawl API as markdown.
type Firecrawl struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewFirecrawl(apiKey, endpoint string) *Firecrawl {
	if endpoint = strings.TrimSpace(endpoint); endpoint == "" {
		endpoint = DefaultFirecrawlEndpoint
	}
	return &Firecrawl{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		apiKey:   strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (f *Firecrawl) Name() string { return "firecrawl" }

func (f *Firecrawl) Scrape(ctx context.Context, url string) Result {
	body, err := json.Marshal(firecrawlRequest{URL: url, Formats: []string{"markdown"}})
	if err != nil {
		return failed(fmt.Errorf("marshal scrape request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint+"/v1/scrape", bytes.NewReader(body))
	if err != nil {
		return failed(fmt.Errorf("build scrape request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.apiKey)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return failed(fmt.Errorf("firecrawl request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failed(fmt.Errorf("firecrawl: status %d", resp.StatusCode))
	}

	var result firecrawlResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return failed(fmt.Errorf("decode scrape response: %w", err))
	}

	if !result.Success {
		return failed(fmt.Errorf("firecrawl: %s", result.Error))
	}

	text := strings.TrimSpace(result.Data.Markdown)
	if text == "" {
		return failed(errors.New("firecrawl returned empty content"))
	}

	return Result{Text: text, Outcome: outcome.Success}
}
