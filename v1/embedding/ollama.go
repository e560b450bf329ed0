package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaProvider embeds through a local Ollama server using langchaingo.
type OllamaProvider struct {
	name      string
	dimension int
	embedder  embeddings.Embedder
}

func newOllamaProvider(cfg Config) (*OllamaProvider, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.Endpoint),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("embedding: create ollama client for %s: %w", cfg.Name, err)
	}

	embedder, err := embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(false))
	if err != nil {
		return nil, fmt.Errorf("embedding: create ollama embedder for %s: %w", cfg.Name, err)
	}

	return &OllamaProvider{
		name:      cfg.Name,
		dimension: cfg.Dimension,
		embedder:  embedder,
	}, nil
}

func (p *OllamaProvider) Name() string   { return p.name }
func (p *OllamaProvider) Dimension() int { return p.dimension }

func (p *OllamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, &ProviderError{Model: p.name, Err: err}
	}
	return vectors, nil
}
