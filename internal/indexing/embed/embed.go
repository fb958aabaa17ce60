package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/yungbote/vectorbridge-backend/internal/platform/envutil"
	"github.com/yungbote/vectorbridge-backend/internal/platform/logger"
)

// Provider turns batches of text into embedding vectors.
type Provider interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	Model() string
	Dimensions() int
}

// Cache stores vectors keyed by content hash so unchanged chunks skip
// the provider on re-index. Implementations absorb their own errors and
// report misses instead.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, vector []float32)
}

// ProviderError marks a terminal provider failure after retries were
// exhausted inside the provider itself.
type ProviderError struct {
	Model string
	Cause error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider failed (model=%s): %v", e.Model, e.Cause)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

type Service struct {
	log       *logger.Logger
	provider  Provider
	cache     Cache
	batchSize int
}

func NewService(log *logger.Logger, provider Provider, cache Cache) *Service {
	return &Service{
		log:       log.With("service", "EmbedService"),
		provider:  provider,
		cache:     cache,
		batchSize: envutil.GetEnvAsInt("EMBED_BATCH_SIZE", 64, log),
	}
}

func (s *Service) Model() string { return s.provider.Model() }

func (s *Service) Dimensions() int { return s.provider.Dimensions() }

// Embed returns one vector per input text, in input order. Blank inputs
// yield a nil vector rather than an error so callers can keep chunk
// indexes aligned.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	missingTexts := make([]string, 0, len(texts))
	missingIdx := make([]int, 0, len(texts))
	keys := make([]string, len(texts))

	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		keys[i] = CacheKey(s.provider.Model(), s.provider.Dimensions(), text)
		if s.cache != nil {
			if vec, ok := s.cache.Get(ctx, keys[i]); ok && len(vec) > 0 {
				out[i] = vec
				continue
			}
		}
		missingTexts = append(missingTexts, text)
		missingIdx = append(missingIdx, i)
	}

	for start := 0; start < len(missingTexts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(missingTexts) {
			end = len(missingTexts)
		}
		vectors, err := s.provider.Embed(ctx, missingTexts[start:end])
		if err != nil {
			return nil, &ProviderError{Model: s.provider.Model(), Cause: err}
		}
		if len(vectors) != end-start {
			return nil, &ProviderError{
				Model: s.provider.Model(),
				Cause: fmt.Errorf("got %d vectors for %d inputs", len(vectors), end-start),
			}
		}
		for j, vec := range vectors {
			idx := missingIdx[start+j]
			out[idx] = vec
			if s.cache != nil {
				s.cache.Set(ctx, keys[idx], vec)
			}
		}
	}

	cached := len(texts) - len(missingTexts)
	if cached > 0 {
		s.log.Debug("embedding cache hits", "hits", cached, "total", len(texts))
	}
	return out, nil
}

// EmbedQuery embeds a single search query, bypassing the cache since
// query text rarely repeats byte for byte.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("query text is blank")
	}
	vectors, err := s.provider.Embed(ctx, []string{text})
	if err != nil {
		return nil, &ProviderError{Model: s.provider.Model(), Cause: err}
	}
	if len(vectors) != 1 {
		return nil, &ProviderError{
			Model: s.provider.Model(),
			Cause: fmt.Errorf("got %d vectors for 1 input", len(vectors)),
		}
	}
	return vectors[0], nil
}

// CacheKey is stable across processes: same model, dimensionality and
// text always hash to the same key.
func CacheKey(model string, dim int, text string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", model, dim, text)))
	return "embed:" + hex.EncodeToString(sum[:])
}

// EstimateTokens is a rough chars/4 heuristic, good enough for logging
// and batch sizing.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := (len(text) + 3) / 4
	if n < 1 {
		n = 1
	}
	return n
}
