package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

// Config is the full CLI configuration, built once at startup and passed
// into component constructors. No component reads the environment itself.
type Config struct {
	Qdrant struct {
		URL                string  `mapstructure:"url"`
		Host               string  `mapstructure:"host"`
		Port               int     `mapstructure:"port"`
		APIKey             string  `mapstructure:"api_key"`
		Collection         string  `mapstructure:"collection"`
		VectorName         string  `mapstructure:"vector_name"`
		ExpectedVectorSize int     `mapstructure:"expected_vector_size"`
	} `mapstructure:"qdrant"`

	Embedding struct {
		Provider      string `mapstructure:"provider"`
		OpenAIAPIKey  string `mapstructure:"openai_api_key"`
		OpenAIBaseURL string `mapstructure:"openai_base_url"`
		BGEM3URL      string `mapstructure:"bgem3_url"`
		BGEM3Port     int    `mapstructure:"bgem3_port"`
		BGEM3Endpoint string `mapstructure:"bgem3_endpoint"`
	} `mapstructure:"embedding"`

	Run struct {
		MaxRank            int     `mapstructure:"max_rank"`
		MinScore           float64 `mapstructure:"min_score"`
		TopK               int     `mapstructure:"top_k"`
		SearchMode         string  `mapstructure:"search_mode"`
		TestTimeoutSeconds int     `mapstructure:"test_timeout_seconds"`
		RunTimeoutSeconds  int     `mapstructure:"run_timeout_seconds"`
		Concurrency        int     `mapstructure:"concurrency"`
		ErrorStreak        int     `mapstructure:"error_streak"`
	} `mapstructure:"run"`

	Report struct {
		Formats       []string `mapstructure:"formats"`
		Dir           string   `mapstructure:"dir"`
		RetentionDays int      `mapstructure:"retention_days"`
	} `mapstructure:"report"`

	TestsFile  string `mapstructure:"tests_file"`
	HistoryDB  string `mapstructure:"history_db"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// DefaultConfig mirrors the defaults the original deployment ran with.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Qdrant.Host = "localhost"
	cfg.Qdrant.Port = 6333
	cfg.Qdrant.Collection = "distill_hybrid_v2"
	cfg.Embedding.Provider = "bge-m3"
	cfg.Run.MaxRank = 3
	cfg.Run.MinScore = 0.3
	cfg.Run.TopK = 10
	cfg.Run.SearchMode = "dense"
	cfg.Run.TestTimeoutSeconds = 30
	cfg.Run.RunTimeoutSeconds = 600
	cfg.Run.Concurrency = 4
	cfg.Run.ErrorStreak = 5
	cfg.Report.Formats = []string{"json"}
	cfg.Report.Dir = "reports"
	cfg.Report.RetentionDays = 30
	cfg.TestsFile = "tests.json"
	cfg.HistoryDB = filepath.Join(".qst", "history.db")
	cfg.ListenAddr = ":8080"
	return cfg
}

// LoadConfig merges defaults, an optional YAML config file and environment
// variable overrides, in that order.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = "qst.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overrides file settings with the environment variables the
// original deployment used.
func applyEnv(cfg *Config) {
	setString(&cfg.Qdrant.URL, "QDRANT_URL")
	setString(&cfg.Qdrant.Host, "QDRANT_HOST")
	setInt(&cfg.Qdrant.Port, "QDRANT_PORT")
	setString(&cfg.Qdrant.APIKey, "QDRANT_API_KEY")
	setString(&cfg.Qdrant.Collection, "COLLECTION_NAME")
	setString(&cfg.Embedding.Provider, "EMBEDDING_MODEL")
	setString(&cfg.Embedding.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&cfg.Embedding.OpenAIBaseURL, "OPENAI_BASE_URL")
	setString(&cfg.Embedding.BGEM3URL, "BGM_M3_URL")
	setInt(&cfg.Embedding.BGEM3Port, "BGM_M3_PORT")
	setString(&cfg.Embedding.BGEM3Endpoint, "BGM_M3_ENDPOINT")
	setString(&cfg.TestsFile, "TESTS_FILE")
	setString(&cfg.Report.Dir, "REPORT_DIR")
	setInt(&cfg.Report.RetentionDays, "REPORT_RETENTION_DAYS")
}

// Validate checks configuration consistency before anything runs.
func (c *Config) Validate() error {
	if c.Qdrant.Collection == "" {
		return fmt.Errorf("qdrant collection name is required")
	}
	if c.Embedding.Provider == "openai" && c.Embedding.OpenAIAPIKey == "" {
		return fmt.Errorf("openai embedding provider requires OPENAI_API_KEY")
	}
	if c.Run.MaxRank < 1 {
		return fmt.Errorf("run.max_rank must be >= 1")
	}
	switch c.Run.SearchMode {
	case "", "dense", "sparse", "hybrid":
	default:
		return fmt.Errorf("run.search_mode must be dense, sparse or hybrid")
	}
	if c.Run.Concurrency < 1 {
		return fmt.Errorf("run.concurrency must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setInt(dst *int, key string) {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		}
	}
}
