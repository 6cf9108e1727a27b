package index

import (
	"context"
	"fmt"
	"os"
	"time"

	"google.golang.org/genai"
)

// EmbeddingClient wraps the Gemini embeddings API. It extends the
// existing genai-backed LLMClient's role (pkg/index/llm.go) with
// vector embedding rather than text generation, so both capabilities
// share one client configuration.
type EmbeddingClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// EmbeddingConfig configures an EmbeddingClient.
type EmbeddingConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// DefaultEmbeddingConfig returns the default embedding configuration.
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		APIKey:  os.Getenv("GOOGLE_GEMINI_API_KEY"),
		Model:   "gemini-embedding-001",
		Timeout: 30 * time.Second,
	}
}

// NewEmbeddingClient creates an embedding client, or nil if unconfigured.
func NewEmbeddingClient(cfg EmbeddingConfig) *EmbeddingClient {
	if cfg.APIKey == "" {
		return nil
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-embedding-001"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil
	}
	return &EmbeddingClient{client: client, model: cfg.Model, timeout: cfg.Timeout}
}

// IsConfigured reports whether the client has a live API key.
func (c *EmbeddingClient) IsConfigured() bool { return c != nil && c.client != nil }

// Embed returns a vector embedding for text.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("embedding client not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.client.Models.EmbedContent(ctx, c.model, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if result == nil || len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	return result.Embeddings[0].Values, nil
}

// EnsureModelAvailable reports whether the embedding model is reachable,
// satisfying core.EmbeddingClient so pkg/index can stand in for it.
func (c *EmbeddingClient) EnsureModelAvailable(ctx context.Context) error {
	if !c.IsConfigured() {
		return fmt.Errorf("embedding model unavailable: no API key configured")
	}
	return nil
}
