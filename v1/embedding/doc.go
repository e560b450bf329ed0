// Package embedding provides the model clients behind the model registry.
//
// Three backends are supported, selected by Config.Kind:
//   - inference: an OpenAI-compatible /embeddings endpoint over HTTP
//   - openai: the OpenAI API through sashabaranov/go-openai
//   - ollama: a local Ollama server through tmc/langchaingo
//
// New wraps every backend in a Guarded provider that adds a per-call timeout,
// an optional token-bucket rate limiter and a circuit breaker:
//
//	p, err := embedding.New(embedding.Config{
//		Name:      "openai-text-embedding-3-small",
//		Kind:      embedding.KindOpenAI,
//		APIKey:    os.Getenv("OPENAI_API_KEY"),
//		Model:     "text-embedding-3-small",
//		Dimension: 1536,
//		RateLimit: 20,
//	})
//	vectors, err := p.Embed(ctx, []string{"first chunk", "second chunk"})
//
// A batch either fully succeeds or fails: providers never return partial results.
// ErrCircuitOpen, ErrRateLimited, ErrCountMismatch and ErrDimensionMismatch can
// be matched with errors.Is; remote failures are *ProviderError.
package embedding
