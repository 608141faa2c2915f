package ai

import (
	"context"
	"math"
	"net/http"
	"os"
	"testing"
	"time"
)

func vectorNorm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

func TestNormalizeVectorUnitNorm(t *testing.T) {
	vec := []float32{3, 4}
	normalized := NormalizeVector(vec)

	if got := vectorNorm(normalized); math.Abs(got-1.0) > 1e-6 {
		t.Errorf("expected unit norm, got %f", got)
	}
	if math.Abs(float64(normalized[0])-0.6) > 1e-6 || math.Abs(float64(normalized[1])-0.8) > 1e-6 {
		t.Errorf("unexpected components: %v", normalized)
	}
	// Input must not be mutated.
	if vec[0] != 3 || vec[1] != 4 {
		t.Errorf("input vector was modified: %v", vec)
	}
}

func TestNormalizeVectorZeroUnchanged(t *testing.T) {
	vec := []float32{0, 0, 0}
	normalized := NormalizeVector(vec)

	for i, v := range normalized {
		if v != 0 {
			t.Errorf("component %d changed: %f", i, v)
		}
	}
}

func TestRandomEmbedderProducesNormalizedVectors(t *testing.T) {
	embedder := &randomEmbedder{dim: 1024}

	vec, err := embedder.Embed(context.Background(), Input{Text: "anything", Role: RoleQuery})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 1024 {
		t.Fatalf("expected 1024 dimensions, got %d", len(vec))
	}
	if got := vectorNorm(vec); math.Abs(got-1.0) > 1e-6 {
		t.Errorf("expected unit norm, got %f", got)
	}
}

// Live provider test, runs only with a real API key in the environment.
func TestVoyageEmbeddingLive(t *testing.T) {
	apiKey := os.Getenv("VOYAGE_API_KEY")
	if apiKey == "" {
		t.Skip("VOYAGE_API_KEY not set, skipping live embedding test")
	}

	chain := &providerChain{
		voyageAPIKey: apiKey,
		voyageModel:  "voyage-2",
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}

	vec, err := chain.Embed(context.Background(), Input{Text: "hello world", Role: RoleQuery})
	if err != nil {
		t.Fatalf("live embedding failed: %v", err)
	}
	if len(vec) == 0 {
		t.Fatal("expected a non-empty embedding")
	}
	if got := vectorNorm(vec); math.Abs(got-1.0) > 1e-6 {
		t.Errorf("expected unit norm, got %f", got)
	}
}

func TestCacheKeyStability(t *testing.T) {
	a := cacheKey(Input{Text: "hello", Role: RoleQuery})
	b := cacheKey(Input{Text: "hello", Role: RoleQuery})
	if a != b {
		t.Errorf("same input produced different keys: %s vs %s", a, b)
	}

	c := cacheKey(Input{Text: "hello", Role: RoleDocument})
	if a == c {
		t.Error("different roles produced the same key")
	}

	d := cacheKey(Input{Image: []byte("hello"), Role: RoleQuery})
	if a == d {
		t.Error("text and image inputs produced the same key")
	}
}
