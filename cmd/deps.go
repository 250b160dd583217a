package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/ai"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/ai/gemini"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/ai/openai"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/catalog"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/embeddings"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/engine"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/index"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/logger"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/recommend"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/scrape"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/secrets"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	catalogFileName  = "shl_catalog.json"
	fallbackFileName = "shl_catalog_fallback.json"
)

// setup creates the logger and reads the config. Both failures are fatal.
func setup() (*zap.Logger, *Config) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		logger.Fatal("config is empty")
	}

	logger.Info("starting the "+app, zap.String("version", resolvedVersion()))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	return logger, config
}

// redacted returns a copy of the config safe to print.
func redacted(config *Config) Config {
	out := *config
	if config.AI != nil {
		aiCfg := *config.AI
		if aiCfg.Gemini != nil {
			g := *aiCfg.Gemini
			g.APIKey = secrets.Mask(g.APIKey)
			aiCfg.Gemini = &g
		}
		if aiCfg.OpenAI != nil {
			o := *aiCfg.OpenAI
			o.APIKey = secrets.Mask(o.APIKey)
			aiCfg.OpenAI = &o
		}
		out.AI = &aiCfg
	}
	if config.Scrape != nil && config.Scrape.Firecrawl != nil {
		s := *config.Scrape
		f := *s.Firecrawl
		f.APIKey = secrets.Mask(f.APIKey)
		s.Firecrawl = &f
		out.Scrape = &s
	}
	return out
}

func newCrawler(config *Config, lg *zap.Logger) *catalog.Crawler {
	cfg := catalog.Config{
		SnapshotFile: filepath.Join(config.DataDir, catalogFileName),
		FallbackFile: filepath.Join(config.DataDir, fallbackFileName),
	}

	if c := config.Catalog; c != nil {
		cfg.ListingURL = c.URL
		cfg.BaseURL = c.BaseURL
		cfg.PathSegment = c.PathSegment
		cfg.MinRecords = c.MinRecords
		cfg.MinLinks = c.MinLinks
		cfg.Workers = c.Workers
		cfg.PageTimeout = c.PageTimeout
		cfg.ListingTimeout = c.ListingTimeout
		cfg.RequestsPerSecond = c.RequestsPerSecond
		cfg.UserAgent = c.UserAgent
		if c.FallbackFile != "" {
			cfg.FallbackFile = c.FallbackFile
		}
	}

	return catalog.NewCrawler(cfg, &http.Client{}, logger.WithComponent(lg, "catalog"))
}

// newGenerator returns the configured text generator, or nil when generation
// is disabled or no credential is available. A nil generator makes the
// rewriter pass requests through unchanged.
func newGenerator(ctx context.Context, config *AIConfig, log *zap.Logger) (ai.Generator, error) {
	if config == nil || !config.Enabled {
		log.Info("query rewriting is disabled by config")
		return nil, nil
	}

	switch strings.ToLower(strings.TrimSpace(config.Provider)) {
	case "", "gemini":
		cfg := config.Gemini
		if cfg == nil {
			cfg = &GeminiConfig{}
		}
		key, err := secrets.LoadOptional(secrets.Source{Name: "gemini api key", Value: cfg.APIKey, File: cfg.APIKeyFile})
		if err != nil {
			return nil, err
		}
		if key == "" {
			log.Warn("gemini api key is not set, query rewriting is disabled")
			return nil, nil
		}
		return gemini.NewGenerator(ctx, key, cfg.Model)
	case "openai":
		cfg := config.OpenAI
		if cfg == nil {
			cfg = &OpenAIConfig{}
		}
		key, err := secrets.LoadOptional(secrets.Source{Name: "openai api key", Value: cfg.APIKey, File: cfg.APIKeyFile})
		if err != nil {
			return nil, err
		}
		if key == "" {
			log.Warn("openai api key is not set, query rewriting is disabled")
			return nil, nil
		}
		return openai.NewGenerator(key, cfg.Model, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", config.Provider)
	}
}

func newEmbedder(ctx context.Context, config *Config) (embeddings.Embedder, error) {
	cfg := config.Embedding
	if cfg == nil {
		cfg = &EmbeddingConfig{}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "ollama":
		var host, model string
		if cfg.Ollama != nil {
			host, model = cfg.Ollama.Host, cfg.Ollama.Model
		}
		return embeddings.NewClient(host, model), nil
	case "gemini":
		var model string
		if cfg.Gemini != nil {
			model = cfg.Gemini.Model
		}
		var src secrets.Source
		if config.AI != nil && config.AI.Gemini != nil {
			src = secrets.Source{Value: config.AI.Gemini.APIKey, File: config.AI.Gemini.APIKeyFile}
		}
		src.Name = "gemini api key"
		key, err := secrets.Load(src)
		if err != nil {
			return nil, err
		}
		return gemini.NewEmbedder(ctx, key, model)
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}
}

func newScraper(config *Config, log *zap.Logger) (scrape.Scraper, error) {
	cfg := config.Scrape
	if cfg == nil {
		cfg = &ScrapeConfig{}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "firecrawl":
		var src secrets.Source
		var endpoint string
		if cfg.Firecrawl != nil {
			src = secrets.Source{Value: cfg.Firecrawl.APIKey, File: cfg.Firecrawl.APIKeyFile}
			endpoint = cfg.Firecrawl.Endpoint
		}
		src.Name = "firecrawl api key"
		key, err := secrets.LoadOptional(src)
		if err != nil {
			return nil, err
		}
		if key == "" {
			log.Warn("firecrawl api key is not set, url requests will be searched as text")
			return scrape.Disabled{}, nil
		}
		return scrape.NewFirecrawl(key, endpoint), nil
	case "direct":
		var userAgent string
		if config.Catalog != nil {
			userAgent = config.Catalog.UserAgent
		}
		return scrape.NewDirect(&http.Client{Timeout: 30 * time.Second}, userAgent), nil
	case "disabled", "none":
		return scrape.Disabled{}, nil
	default:
		return nil, fmt.Errorf("unsupported scrape provider %q", cfg.Provider)
	}
}

// newEngine wires every component of the recommender. The engine is returned
// cold; callers decide when to warm it.
func newEngine(ctx context.Context, config *Config, log *zap.Logger) (*engine.Engine, *catalog.Crawler, error) {
	crawler := newCrawler(config, log)

	generator, err := newGenerator(ctx, config.AI, logger.WithComponent(log, "ai"))
	if err != nil {
		return nil, nil, fmt.Errorf("creating a generator: %w", err)
	}

	rewriterLogger := logger.WithComponent(log, "rewriter")
	maxLogLength := 0
	if generator != nil {
		rewriterLogger = logger.WithService(rewriterLogger, logger.Service{Kind: "rewrite", Provider: config.AI.Provider, Model: generator.Model()})
		if config.AI.Gemini != nil {
			maxLogLength = config.AI.Gemini.MaxLogLength
		}
	}
	rewriter := ai.NewRewriter(generator, rewriterLogger, maxLogLength)

	embedder, err := newEmbedder(ctx, config)
	if err != nil {
		return nil, nil, fmt.Errorf("creating an embedder: %w", err)
	}

	scraper, err := newScraper(config, logger.WithComponent(log, "scrape"))
	if err != nil {
		return nil, nil, fmt.Errorf("creating a scraper: %w", err)
	}

	provider := "ollama"
	if config.Embedding != nil && config.Embedding.Provider != "" {
		provider = config.Embedding.Provider
	}

	store := index.NewStore(config.DataDir)
	indexer := index.NewIndexer(embedder, store, index.DefaultBatchSize,
		logger.WithService(logger.WithComponent(log, "indexer"), logger.Service{Kind: "embedding", Provider: provider, Model: embedder.Model()}))

	var opts recommend.Options
	if config.Recommend != nil {
		opts = recommend.Options{
			Candidates: config.Recommend.Candidates,
			Target:     config.Recommend.Target,
			MinResults: config.Recommend.MinResults,
		}
	}
	if config.Scrape != nil {
		opts.MaxScrapeChars = config.Scrape.MaxChars
	}

	pipeline := recommend.NewPipeline(recommend.Deps{
		Scraper:  scraper,
		Rewriter: rewriter,
		Embedder: embedder,
		Index:    store,
		Logger:   logger.WithComponent(log, "pipeline"),
	}, opts)

	eng := engine.New(engine.Deps{
		Catalog:  crawler,
		Store:    store,
		Indexer:  indexer,
		Pipeline: pipeline,
		Logger:   logger.WithComponent(log, "engine"),
	})

	log.Info("engine is configured",
		zap.Bool("rewriting", rewriter.Enabled()),
		zap.String("scraper", scraper.Name()),
		zap.String("embedding_model", embedder.Model()),
		zap.String("data_dir", config.DataDir),
	)

	return eng, crawler, nil
}
