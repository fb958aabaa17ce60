package embed

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/vectorbridge-backend/internal/platform/logger"
)

type fakeProvider struct {
	model string
	dim   int
	calls [][]string
	fail  error
}

func (f *fakeProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	f.calls = append(f.calls, append([]string(nil), inputs...))
	if f.fail != nil {
		return nil, f.fail
	}
	out := make([][]float32, len(inputs))
	for i, input := range inputs {
		out[i] = []float32{float32(len(input)), 1}
	}
	return out, nil
}

func (f *fakeProvider) Model() string   { return f.model }
func (f *fakeProvider) Dimensions() int { return f.dim }

type fakeCache struct {
	data map[string][]float32
	sets int
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]float32, bool) {
	vec, ok := c.data[key]
	return vec, ok
}

func (c *fakeCache) Set(ctx context.Context, key string, vector []float32) {
	c.data[key] = vector
	c.sets++
}

func newTestService(t *testing.T, provider *fakeProvider, cache Cache) *Service {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return NewService(log, provider, cache)
}

func TestEmbedAlignsVectorsWithInputs(t *testing.T) {
	provider := &fakeProvider{model: "test-model", dim: 2}
	svc := newTestService(t, provider, nil)

	vectors, err := svc.Embed(context.Background(), []string{"aa", "", "bbbb"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("vectors = %d, want 3", len(vectors))
	}
	if vectors[1] != nil {
		t.Fatalf("blank input produced vector %v, want nil", vectors[1])
	}
	if vectors[0][0] != 2 || vectors[2][0] != 4 {
		t.Fatalf("vectors misaligned: %v", vectors)
	}
}

func TestEmbedUsesCache(t *testing.T) {
	provider := &fakeProvider{model: "test-model", dim: 2}
	cache := &fakeCache{data: map[string][]float32{}}
	svc := newTestService(t, provider, cache)

	first, err := svc.Embed(context.Background(), []string{"hello", "world"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(provider.calls) != 1 || cache.sets != 2 {
		t.Fatalf("calls = %d sets = %d, want 1 and 2", len(provider.calls), cache.sets)
	}

	second, err := svc.Embed(context.Background(), []string{"hello", "world"})
	if err != nil {
		t.Fatalf("Embed (cached): %v", err)
	}
	if len(provider.calls) != 1 {
		t.Fatalf("provider called again despite warm cache: %d calls", len(provider.calls))
	}
	for i := range first {
		if first[i][0] != second[i][0] {
			t.Fatalf("cached vector differs at %d: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestEmbedWrapsProviderFailure(t *testing.T) {
	provider := &fakeProvider{model: "test-model", dim: 2, fail: errors.New("quota exceeded")}
	svc := newTestService(t, provider, nil)

	_, err := svc.Embed(context.Background(), []string{"text"})
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
	if provErr.Model != "test-model" {
		t.Fatalf("ProviderError model = %q", provErr.Model)
	}
}

func TestEmbedBatchesLargeInputs(t *testing.T) {
	provider := &fakeProvider{model: "test-model", dim: 2}
	svc := newTestService(t, provider, nil)
	svc.batchSize = 10

	texts := make([]string, 25)
	for i := range texts {
		texts[i] = "chunk"
	}
	vectors, err := svc.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vectors) != 25 {
		t.Fatalf("vectors = %d, want 25", len(vectors))
	}
	if len(provider.calls) != 3 {
		t.Fatalf("provider calls = %d, want 3", len(provider.calls))
	}
}

func TestEmbedQueryBypassesCache(t *testing.T) {
	provider := &fakeProvider{model: "test-model", dim: 2}
	cache := &fakeCache{data: map[string][]float32{}}
	svc := newTestService(t, provider, cache)

	if _, err := svc.EmbedQuery(context.Background(), "find similar articles"); err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if cache.sets != 0 {
		t.Fatalf("query embedding wrote to cache: %d sets", cache.sets)
	}
	if _, err := svc.EmbedQuery(context.Background(), "   "); err == nil {
		t.Fatal("blank query should error")
	}
}

func TestCacheKeyStable(t *testing.T) {
	a := CacheKey("m", 1536, "text")
	b := CacheKey("m", 1536, "text")
	if a != b {
		t.Fatalf("keys differ: %q vs %q", a, b)
	}
	if CacheKey("m", 1536, "text") == CacheKey("m", 768, "text") {
		t.Fatal("dimension change should change key")
	}
	if CacheKey("m", 1536, "text") == CacheKey("other", 1536, "text") {
		t.Fatal("model change should change key")
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Fatalf("EstimateTokens(\"\") = %d, want 0", got)
	}
	if got := EstimateTokens("abc"); got != 1 {
		t.Fatalf("EstimateTokens(abc) = %d, want 1", got)
	}
	if got := EstimateTokens("abcdefgh"); got != 2 {
		t.Fatalf("EstimateTokens(8 chars) = %d, want 2", got)
	}
}
