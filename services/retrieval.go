package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"pdf-vector-chat/internal/ai"
	"pdf-vector-chat/internal/logger"
	"pdf-vector-chat/models"
)

// Placeholder relevance scores for tiers that have no ranking signal.
const (
	keywordScore = 0.8
	sampleScore  = 0.5

	// Arbitrary pages returned by the last-resort tier.
	sampleLimit = 2

	// Over-fetch multiplier applied when a documentId scope will be
	// filtered post-hoc; the vector index is not natively filterable.
	scopeOverFetch = 10

	minCandidates = 150
)

// RetrievalStrategy is one tier of the fallback chain. A strategy that
// cannot serve the query returns an empty slice; errors are treated the
// same way by the engine.
type RetrievalStrategy interface {
	Name() string
	Attempt(ctx context.Context, query, documentID string, limit int) ([]models.QueryResult, error)
}

// Engine runs an ordered list of retrieval strategies and stops at the
// first non-empty result.
type Engine struct {
	strategies []RetrievalStrategy
}

// NewEngine assembles the standard chain: vector search, then keyword
// matching, then an arbitrary sample of the scoped document.
func NewEngine(store PageStore, embedder ai.Embedder, strictScope bool) *Engine {
	return &Engine{
		strategies: []RetrievalStrategy{
			&VectorStrategy{Store: store, Embedder: embedder, StrictScope: strictScope},
			&KeywordStrategy{Store: store},
			&SampleStrategy{Store: store},
		},
	}
}

// NewEngineWithStrategies builds an engine from an explicit tier order.
func NewEngineWithStrategies(strategies ...RetrievalStrategy) *Engine {
	return &Engine{strategies: strategies}
}

// Retrieve returns ranked results and the name of the tier that produced
// them ("none" when every tier came up empty). Provider and database
// errors inside a tier degrade to the next tier rather than failing the
// query.
func (e *Engine) Retrieve(ctx context.Context, query, documentID string, limit int) ([]models.QueryResult, string, error) {
	tracer := otel.Tracer("retrieval-engine")
	ctx, span := tracer.Start(ctx, "retrieval.retrieve")
	defer span.End()

	span.SetAttributes(
		attribute.String("retrieval.document_id", documentID),
		attribute.Int("retrieval.limit", limit),
	)

	for _, strategy := range e.strategies {
		results, err := strategy.Attempt(ctx, query, documentID, limit)
		if err != nil {
			logger.Warn("Retrieval tier failed, trying next",
				"tier", strategy.Name(), "error", err)
			continue
		}
		if len(results) > 0 {
			span.SetAttributes(
				attribute.String("retrieval.method", strategy.Name()),
				attribute.Int("retrieval.results", len(results)),
			)
			return results, strategy.Name(), nil
		}
	}

	span.SetAttributes(attribute.String("retrieval.method", "none"))
	return nil, "none", nil
}

// VectorStrategy embeds the query and runs nearest-neighbor search over
// the page embeddings. When a documentId scope is requested the search
// over-fetches and filters post-hoc; a scope with zero stored records is
// dropped entirely (search everything) unless StrictScope is set.
type VectorStrategy struct {
	Store       PageStore
	Embedder    ai.Embedder
	StrictScope bool
}

func (v *VectorStrategy) Name() string { return "vector" }

func (v *VectorStrategy) Attempt(ctx context.Context, query, documentID string, limit int) ([]models.QueryResult, error) {
	queryVector, err := v.Embedder.Embed(ctx, ai.Input{Text: query, Role: ai.RoleQuery})
	if err != nil {
		return nil, err
	}

	applyScope := false
	if documentID != "" {
		count, err := v.Store.CountByDocument(ctx, documentID)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			applyScope = true
		} else if v.StrictScope {
			logger.Info("No pages stored for document, strict scope returns empty",
				"document_id", documentID)
			return nil, nil
		} else {
			// Deliberate policy: a scope with no data searches everything
			// rather than guaranteeing an empty answer.
			logger.Warn("No pages stored for document, searching all documents",
				"document_id", documentID)
		}
	}

	searchLimit := limit
	if applyScope {
		searchLimit = limit * scopeOverFetch
	}
	numCandidates := searchLimit * 10
	if numCandidates < minCandidates {
		numCandidates = minCandidates
	}

	results, err := v.Store.VectorSearch(ctx, queryVector, searchLimit, numCandidates)
	if err != nil {
		return nil, err
	}

	if applyScope {
		filtered := results[:0]
		for _, r := range results {
			if r.DocumentID == documentID {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// KeywordStrategy matches query words against the textual page fields.
// Every match gets a fixed placeholder score since no ranking signal is
// available.
type KeywordStrategy struct {
	Store PageStore
}

func (k *KeywordStrategy) Name() string { return "keyword" }

func (k *KeywordStrategy) Attempt(ctx context.Context, query, documentID string, limit int) ([]models.QueryResult, error) {
	keywords := TokenizeQuery(query)
	if len(keywords) == 0 {
		return nil, nil
	}

	results, err := k.Store.KeywordSearch(ctx, keywords, documentID, limit)
	if err != nil {
		return nil, err
	}

	for i := range results {
		results[i].Score = keywordScore
	}
	return results, nil
}

// SampleStrategy returns a couple of arbitrary pages from the scoped
// document, on the theory that something relevant to show beats nothing.
// Without a scope there is nothing sensible to sample.
type SampleStrategy struct {
	Store PageStore
}

func (s *SampleStrategy) Name() string { return "fallback" }

func (s *SampleStrategy) Attempt(ctx context.Context, query, documentID string, limit int) ([]models.QueryResult, error) {
	if documentID == "" {
		return nil, nil
	}

	results, err := s.Store.SamplePages(ctx, documentID, sampleLimit)
	if err != nil {
		return nil, err
	}

	for i := range results {
		results[i].Score = sampleScore
	}
	return results, nil
}

// TokenizeQuery lowercases the query and keeps words longer than 2
// characters.
func TokenizeQuery(query string) []string {
	var keywords []string
	for _, word := range strings.Fields(strings.ToLower(query)) {
		word = strings.Trim(word, ".,!?;:\"'()[]")
		if len(word) > 2 {
			keywords = append(keywords, word)
		}
	}
	return keywords
}
