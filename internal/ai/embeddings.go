package ai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"pdf-vector-chat/internal/config"
	"pdf-vector-chat/internal/logger"
)

// Embedding input roles, passed through to the provider as input_type.
const (
	RoleDocument = "document"
	RoleQuery    = "query"
)

// Input is one embedding request: text, or raw image bytes when no text
// is available for a page.
type Input struct {
	Text  string
	Image []byte
	Role  string
}

// Embedder produces a unit-normalized embedding vector for an input.
type Embedder interface {
	Embed(ctx context.Context, in Input) ([]float32, error)
}

// NewEmbedder builds the configured embedding client: the serverless
// endpoint is preferred, then the Voyage AI API. With neither configured,
// the random demo provider is returned only when explicitly enabled;
// otherwise configuration is an error so the gap fails loudly.
func NewEmbedder(cfg *config.Config, rdb *redis.Client) (Embedder, error) {
	var inner Embedder

	switch {
	case cfg.ServerlessURL != "" || cfg.VoyageAPIKey != "":
		inner = &providerChain{
			serverlessURL: cfg.ServerlessURL,
			voyageAPIKey:  cfg.VoyageAPIKey,
			voyageModel:   cfg.VoyageModel,
			httpClient:    &http.Client{Timeout: time.Duration(cfg.HTTPTimeoutSecs) * time.Second},
		}
	case cfg.AllowRandomEmbeddings:
		logger.Warn("No embedding provider configured, using random embeddings (demo mode only)")
		inner = &randomEmbedder{dim: cfg.VectorDim}
	default:
		return nil, fmt.Errorf("no embedding provider configured: set SERVERLESS_URL or VOYAGE_API_KEY, or EMBEDDINGS_ALLOW_RANDOM=true for demos")
	}

	if rdb != nil {
		inner = &cachedEmbedder{inner: inner, rdb: rdb, ttl: time.Hour}
	}
	return inner, nil
}

// NormalizeVector divides each component by the Euclidean norm. A
// near-zero norm returns the vector unchanged to avoid division by zero.
func NormalizeVector(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm < 1e-12 {
		return vec
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

// providerChain tries the serverless endpoint first, then Voyage AI.
type providerChain struct {
	serverlessURL string
	voyageAPIKey  string
	voyageModel   string
	httpClient    *http.Client
}

func (p *providerChain) Embed(ctx context.Context, in Input) ([]float32, error) {
	if p.serverlessURL != "" {
		vec, err := p.embedServerless(ctx, in)
		if err == nil {
			return NormalizeVector(vec), nil
		}
		logger.Warn("Serverless embedding failed, falling back", "error", err)
	}

	if p.voyageAPIKey != "" {
		vec, err := p.embedVoyage(ctx, in)
		if err != nil {
			return nil, err
		}
		return NormalizeVector(vec), nil
	}

	return nil, fmt.Errorf("all embedding providers failed")
}

type serverlessRequest struct {
	Task string `json:"task"`
	Data struct {
		Input     string `json:"input"`
		InputType string `json:"input_type"`
	} `json:"data"`
}

type serverlessResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (p *providerChain) embedServerless(ctx context.Context, in Input) ([]float32, error) {
	req := serverlessRequest{Task: "get_embedding"}
	if len(in.Image) > 0 {
		req.Data.Input = base64.StdEncoding.EncodeToString(in.Image)
	} else {
		req.Data.Input = in.Text
	}
	req.Data.InputType = in.Role

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverlessURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serverless endpoint returned status %d", resp.StatusCode)
	}

	var out serverlessResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("serverless endpoint returned no embedding")
	}
	return out.Embedding, nil
}

type voyageRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
}

type voyageResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *providerChain) embedVoyage(ctx context.Context, in Input) ([]float32, error) {
	text := in.Text
	if len(in.Image) > 0 {
		// The text models cannot embed raw image bytes. A content-derived
		// placeholder keeps identical pages mapping to identical vectors.
		imageHash := base64.StdEncoding.EncodeToString(in.Image)
		if len(imageHash) > 32 {
			imageHash = imageHash[:32]
		}
		text = "PDF document page visual content image data representation " + imageHash
	}

	body, err := json.Marshal(voyageRequest{
		Input:     []string{text},
		Model:     p.voyageModel,
		InputType: in.Role,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.voyageai.com/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.voyageAPIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voyage API returned status %d", resp.StatusCode)
	}

	var out voyageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("voyage API returned no embedding")
	}
	return out.Data[0].Embedding, nil
}

// randomEmbedder is the demo-only null object: uniform components in
// [-1,1], normalized like any real vector. Selected by configuration,
// never by silent fallthrough.
type randomEmbedder struct {
	dim int
}

func (r *randomEmbedder) Embed(ctx context.Context, in Input) ([]float32, error) {
	vec := make([]float32, r.dim)
	for i := range vec {
		vec[i] = float32(rand.Float64()*2 - 1)
	}
	return NormalizeVector(vec), nil
}

// cachedEmbedder caches vectors in Redis keyed by a hash of the input.
// Cache failures are logged and ignored; the provider is the source of
// truth.
type cachedEmbedder struct {
	inner Embedder
	rdb   *redis.Client
	ttl   time.Duration
}

func (c *cachedEmbedder) Embed(ctx context.Context, in Input) ([]float32, error) {
	key := cacheKey(in)

	if data, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var vec []float32
		if err := json.Unmarshal(data, &vec); err == nil && len(vec) > 0 {
			return vec, nil
		}
	}

	vec, err := c.inner.Embed(ctx, in)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(vec); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			logger.Debug("Embedding cache write failed", "error", err)
		}
	}
	return vec, nil
}

func cacheKey(in Input) string {
	h := sha256.New()
	h.Write([]byte(in.Role))
	h.Write([]byte{0})
	if len(in.Image) > 0 {
		h.Write(in.Image)
	} else {
		h.Write([]byte(in.Text))
	}
	return "emb:" + hex.EncodeToString(h.Sum(nil))
}
