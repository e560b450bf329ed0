package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// InferenceProvider calls an OpenAI-compatible /embeddings endpoint over plain
// HTTP, as exposed by most self-hosted inference servers.
type InferenceProvider struct {
	name       string
	model      string
	dimension  int
	baseURL    string
	token      string
	httpClient *http.Client
}

func newInferenceProvider(cfg Config, httpClient *http.Client) *InferenceProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &InferenceProvider{
		name:       cfg.Name,
		model:      cfg.Model,
		dimension:  cfg.Dimension,
		baseURL:    strings.TrimRight(cfg.Endpoint, "/"),
		token:      cfg.APIKey,
		httpClient: httpClient,
	}
}

func (p *InferenceProvider) Name() string   { return p.name }
func (p *InferenceProvider) Dimension() int { return p.dimension }

// Embed sends all texts in one request. The response items carry an index
// and are placed back in input order.
func (p *InferenceProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	reqBody := map[string]any{
		"model": p.model,
		"input": texts,
	}

	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}

	if err := p.postJSON(ctx, p.baseURL+"/embeddings", reqBody, &parsed); err != nil {
		return nil, err
	}

	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(parsed.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) || out[d.Index] != nil {
			return nil, &ProviderError{Model: p.name, Err: fmt.Errorf("invalid or duplicate index %d", d.Index)}
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (p *InferenceProvider) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &ProviderError{Model: p.name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &ProviderError{Model: p.name, StatusCode: resp.StatusCode, Err: ErrRateLimited}
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &ProviderError{Model: p.name, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(msg)))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProviderError{Model: p.name, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
