package embedding

import (
	"context"
	"fmt"
)

// Vector dimensions for the supported embedding models.
const (
	OpenAISmallDim = 1536 // text-embedding-3-small
	BGEM3Dim       = 1024 // BAAI BGE-M3
)

// Embedder turns query text into a fixed-length vector.
// Implementations: OpenAIClient, BGEM3Client.
type Embedder interface {
	// EmbedQuery embeds a search query. Text must be non-empty.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension is the length of vectors this embedder produces.
	Dimension() int

	// Model identifies the underlying model for logs and reports.
	Model() string
}

// Config selects and configures an embedding provider.
type Config struct {
	// Provider is "openai" or "bge-m3".
	Provider string

	// OpenAI settings.
	OpenAIAPIKey  string
	OpenAIBaseURL string

	// BGE-M3 self-hosted settings.
	BGEM3URL      string
	BGEM3Port     int
	BGEM3Endpoint string

	TimeoutSeconds int
}

// New builds the embedder selected by cfg.Provider.
func New(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return NewOpenAIClient(cfg), nil
	case "bge-m3", "":
		return NewBGEM3Client(cfg), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
