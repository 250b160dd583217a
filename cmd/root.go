package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "assessment-recommender"
)

type Config struct {
	DataDir   string           `mapstructure:"data-dir"`
	Catalog   *CatalogConfig   `mapstructure:"catalog"`
	AI        *AIConfig        `mapstructure:"ai"`
	Embedding *EmbeddingConfig `mapstructure:"embedding"`
	Scrape    *ScrapeConfig    `mapstructure:"scrape"`
	Recommend *RecommendConfig `mapstructure:"recommend"`
	Server    *ServerConfig    `mapstructure:"server"`
}

type CatalogConfig struct {
	URL               string        `mapstructure:"url"`
	BaseURL           string        `mapstructure:"base-url"`
	PathSegment       string        `mapstructure:"path-segment"`
	FallbackFile      string        `mapstructure:"fallback-file"`
	MinRecords        int           `mapstructure:"min-records"`
	MinLinks          int           `mapstructure:"min-links"`
	Workers           int           `mapstructure:"workers"`
	PageTimeout       time.Duration `mapstructure:"page-timeout"`
	ListingTimeout    time.Duration `mapstructure:"listing-timeout"`
	RequestsPerSecond float64       `mapstructure:"requests-per-second"`
	UserAgent         string        `mapstructure:"user-agent"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
	OpenAI   *OpenAIConfig `mapstructure:"openai"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base-url"`
}

type EmbeddingConfig struct {
	Provider string `mapstructure:"provider"`
	Ollama   *struct {
		Host  string `mapstructure:"host"`
		Model string `mapstructure:"model"`
	} `mapstructure:"ollama"`
	Gemini *struct {
		Model string `mapstructure:"model"`
	} `mapstructure:"gemini"`
}

type ScrapeConfig struct {
	Provider  string `mapstructure:"provider"`
	MaxChars  int    `mapstructure:"max-chars"`
	Firecrawl *struct {
		APIKey     string `mapstructure:"api-key"`
		APIKeyFile string `mapstructure:"api-key-file"`
		Endpoint   string `mapstructure:"endpoint"`
	} `mapstructure:"firecrawl"`
}

type RecommendConfig struct {
	Candidates int `mapstructure:"candidates"`
	Target     int `mapstructure:"target"`
	MinResults int `mapstructure:"min-results"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "assessment-recommender suggests SHL assessments for a job description, query or job posting URL",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

var envBindings = map[string][]string{
	"data-dir":                      {"DATA_DIR"},
	"server.port":                   {"PORT"},
	"ai.gemini.api-key":             {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	"ai.gemini.api-key-file":        {"GOOGLE_API_KEY_FILE"},
	"ai.openai.api-key":             {"OPENAI_API_KEY"},
	"ai.openai.base-url":            {"OPENAI_BASE_URL"},
	"embedding.ollama.host":         {"OLLAMA_HOST"},
	"scrape.firecrawl.api-key":      {"FIRECRAWL_API_KEY"},
	"scrape.firecrawl.api-key-file": {"FIRECRAWL_API_KEY_FILE"},
}

func init() {
	// A missing .env is the normal case in production.
	_ = godotenv.Load()

	for key, envs := range envBindings {
		if err := viper.BindEnv(append([]string{key}, envs...)...); err != nil {
			log.Fatalf("binding %v environment variables: %v", envs, err)
		}
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is assessment-recommender.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	viper.SetDefault("data-dir", "data")

	viper.SetDefault("catalog.url", "https://www.shl.com/solutions/products/product-catalog/")
	viper.SetDefault("catalog.base-url", "https://www.shl.com")
	viper.SetDefault("catalog.path-segment", "/product-catalog/view/")
	viper.SetDefault("catalog.min-records", 370)
	viper.SetDefault("catalog.min-links", 50)
	viper.SetDefault("catalog.workers", 10)
	viper.SetDefault("catalog.page-timeout", 10*time.Second)
	viper.SetDefault("catalog.listing-timeout", 30*time.Second)

	viper.SetDefault("ai.enabled", true)
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("ai.gemini.max-log-length", 500)

	viper.SetDefault("embedding.provider", "ollama")
	viper.SetDefault("embedding.ollama.host", "http://localhost:11434")
	viper.SetDefault("embedding.ollama.model", "nomic-embed-text")
	viper.SetDefault("embedding.gemini.model", "text-embedding-004")

	viper.SetDefault("scrape.provider", "firecrawl")
	viper.SetDefault("scrape.max-chars", 3000)

	viper.SetDefault("recommend.candidates", 20)
	viper.SetDefault("recommend.target", 10)
	viper.SetDefault("recommend.min-results", 5)

	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.shutdown-timeout", 10*time.Second)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Every setting has a default, so only an explicit or broken config is fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
