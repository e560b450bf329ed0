package embedding

import (
	"context"
	"errors"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider calls the OpenAI embeddings API, or any compatible endpoint
// when Config.Endpoint is set.
type OpenAIProvider struct {
	name      string
	model     string
	dimension int
	client    *openai.Client
}

func newOpenAIProvider(cfg Config, httpClient *http.Client) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	} else {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &OpenAIProvider{
		name:      cfg.Name,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		client:    openai.NewClientWithConfig(clientCfg),
	}
}

func (p *OpenAIProvider) Name() string   { return p.name }
func (p *OpenAIProvider) Dimension() int { return p.dimension }

func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, p.wrapError(err)
	}

	if len(resp.Data) != len(texts) {
		return nil, &ProviderError{Model: p.name, Err: ErrCountMismatch}
	}

	out := make([][]float32, len(texts))
	for i, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out) || out[idx] != nil {
			idx = i
		}
		out[idx] = d.Embedding
	}
	return out, nil
}

func (p *OpenAIProvider) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return &ProviderError{Model: p.name, StatusCode: apiErr.HTTPStatusCode, Err: errors.Join(ErrRateLimited, err)}
		}
		return &ProviderError{Model: p.name, StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return &ProviderError{Model: p.name, StatusCode: reqErr.HTTPStatusCode, Err: errors.Join(ErrRateLimited, err)}
		}
		return &ProviderError{Model: p.name, StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return &ProviderError{Model: p.name, Err: err}
}
