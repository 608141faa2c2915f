package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"pdf-vector-chat/internal/ai"
	"pdf-vector-chat/models"
)

// fakeStore is an in-memory PageStore for tests.
type fakeStore struct {
	records       map[string][]models.PageRecord
	vectorResults []models.QueryResult
	vectorErr     error
	keywordErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string][]models.PageRecord)}
}

func (f *fakeStore) VectorSearch(ctx context.Context, queryVector []float32, limit, numCandidates int) ([]models.QueryResult, error) {
	if f.vectorErr != nil {
		return nil, f.vectorErr
	}
	results := f.vectorResults
	if len(results) > limit {
		results = results[:limit]
	}
	return append([]models.QueryResult(nil), results...), nil
}

func (f *fakeStore) KeywordSearch(ctx context.Context, keywords []string, documentID string, limit int) ([]models.QueryResult, error) {
	if f.keywordErr != nil {
		return nil, f.keywordErr
	}
	var results []models.QueryResult
	for docID, pages := range f.records {
		if documentID != "" && docID != documentID {
			continue
		}
		for _, rec := range pages {
			if matchesAny(rec, keywords) && len(results) < limit {
				results = append(results, models.QueryResult{
					DocumentID: rec.DocumentID,
					PageNumber: rec.PageNumber,
					Content:    rec.Content,
					Key:        rec.Key,
				})
			}
		}
	}
	return results, nil
}

func matchesAny(rec models.PageRecord, keywords []string) bool {
	haystack := strings.ToLower(rec.Content + " " + rec.Summary + " " + strings.Join(rec.Topics, " "))
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

func (f *fakeStore) SamplePages(ctx context.Context, documentID string, limit int) ([]models.QueryResult, error) {
	var results []models.QueryResult
	for _, rec := range f.records[documentID] {
		if len(results) >= limit {
			break
		}
		results = append(results, models.QueryResult{
			DocumentID: rec.DocumentID,
			PageNumber: rec.PageNumber,
			Content:    rec.Content,
			Key:        rec.Key,
		})
	}
	return results, nil
}

func (f *fakeStore) CountByDocument(ctx context.Context, documentID string) (int64, error) {
	return int64(len(f.records[documentID])), nil
}

func (f *fakeStore) Count(ctx context.Context) (int64, error) {
	var total int64
	for _, pages := range f.records {
		total += int64(len(pages))
	}
	return total, nil
}

func (f *fakeStore) ReplacePages(ctx context.Context, documentID string, pages []models.PageRecord) error {
	delete(f.records, documentID)
	if len(pages) > 0 {
		f.records[documentID] = append([]models.PageRecord(nil), pages...)
	}
	return nil
}

func (f *fakeStore) DeleteDocument(ctx context.Context, documentID string) (int64, error) {
	deleted := int64(len(f.records[documentID]))
	delete(f.records, documentID)
	return deleted, nil
}

func (f *fakeStore) DeleteAll(ctx context.Context) (int64, error) {
	total, _ := f.Count(ctx)
	f.records = make(map[string][]models.PageRecord)
	return total, nil
}

func (f *fakeStore) DeleteAllExcept(ctx context.Context, documentID string) (int64, error) {
	var deleted int64
	for docID, pages := range f.records {
		if docID != documentID {
			deleted += int64(len(pages))
			delete(f.records, docID)
		}
	}
	return deleted, nil
}

func (f *fakeStore) ListDocuments(ctx context.Context) ([]models.DocumentInfo, error) {
	var docs []models.DocumentInfo
	for docID, pages := range f.records {
		docs = append(docs, models.DocumentInfo{DocumentID: docID, PageCount: int64(len(pages))})
	}
	return docs, nil
}

func (f *fakeStore) SampleRecords(ctx context.Context, documentID string, limit int) ([]models.PageRecord, error) {
	var records []models.PageRecord
	for docID, pages := range f.records {
		if documentID != "" && docID != documentID {
			continue
		}
		for _, rec := range pages {
			if len(records) >= limit {
				break
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

func (f *fakeStore) EnsureVectorIndex(ctx context.Context) error { return nil }

// fakeEmbedder returns a fixed vector, or an error when set.
type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, in ai.Input) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.vec != nil {
		return f.vec, nil
	}
	return []float32{1, 0, 0}, nil
}

func addPages(store *fakeStore, documentID string, pages ...models.PageRecord) {
	for i := range pages {
		pages[i].DocumentID = documentID
	}
	store.records[documentID] = append(store.records[documentID], pages...)
}

func TestVectorTierReturnsRankedResults(t *testing.T) {
	store := newFakeStore()
	addPages(store, "doc-1", models.PageRecord{PageNumber: 1, Content: "intro"})
	store.vectorResults = []models.QueryResult{
		{DocumentID: "doc-1", PageNumber: 1, Score: 0.93},
	}

	engine := NewEngine(store, &fakeEmbedder{}, false)
	results, method, err := engine.Retrieve(context.Background(), "introduction", "doc-1", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != "vector" {
		t.Fatalf("expected vector tier, got %s", method)
	}
	if len(results) != 1 || results[0].Score != 0.93 {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestVectorTierScopeFiltersOtherDocuments(t *testing.T) {
	store := newFakeStore()
	addPages(store, "doc-1", models.PageRecord{PageNumber: 1})
	store.vectorResults = []models.QueryResult{
		{DocumentID: "doc-2", PageNumber: 4, Score: 0.99},
		{DocumentID: "doc-1", PageNumber: 1, Score: 0.90},
		{DocumentID: "doc-3", PageNumber: 2, Score: 0.85},
	}

	engine := NewEngine(store, &fakeEmbedder{}, false)
	results, method, err := engine.Retrieve(context.Background(), "question", "doc-1", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != "vector" {
		t.Fatalf("expected vector tier, got %s", method)
	}
	for _, r := range results {
		if r.DocumentID != "doc-1" {
			t.Errorf("result leaked from scope: %+v", r)
		}
	}
	if len(results) != 1 {
		t.Errorf("expected 1 scoped result, got %d", len(results))
	}
}

func TestVectorTierDropsEmptyScope(t *testing.T) {
	store := newFakeStore()
	// "missing-doc" has no records; the scope is dropped and the global
	// matches come back unfiltered.
	store.vectorResults = []models.QueryResult{
		{DocumentID: "other-doc", PageNumber: 2, Score: 0.88},
	}

	engine := NewEngine(store, &fakeEmbedder{}, false)
	results, method, err := engine.Retrieve(context.Background(), "question", "missing-doc", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != "vector" {
		t.Fatalf("expected vector tier, got %s", method)
	}
	if len(results) != 1 || results[0].DocumentID != "other-doc" {
		t.Fatalf("expected cross-document result, got %+v", results)
	}
}

func TestVectorTierStrictScopeReturnsNothing(t *testing.T) {
	store := newFakeStore()
	store.vectorResults = []models.QueryResult{
		{DocumentID: "other-doc", PageNumber: 2, Score: 0.88},
	}

	engine := NewEngine(store, &fakeEmbedder{}, true)
	results, method, err := engine.Retrieve(context.Background(), "question", "missing-doc", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != "none" {
		t.Fatalf("expected no tier to serve the query, got %s", method)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %+v", results)
	}
}

func TestKeywordTierAssignsFixedScore(t *testing.T) {
	store := newFakeStore()
	addPages(store, "doc-1",
		models.PageRecord{PageNumber: 3, Content: "Voyage AI's multimodal embeddings capture text and layout"},
		models.PageRecord{PageNumber: 9, Content: "unrelated appendix"},
	)
	// Vector tier comes back empty so the keyword tier must serve.

	engine := NewEngine(store, &fakeEmbedder{}, false)
	results, method, err := engine.Retrieve(context.Background(), "multimodal embeddings", "doc-1", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != "keyword" {
		t.Fatalf("expected keyword tier, got %s", method)
	}
	if len(results) != 1 || results[0].PageNumber != 3 {
		t.Fatalf("unexpected results: %+v", results)
	}
	if results[0].Score != 0.8 {
		t.Errorf("expected fixed keyword score 0.8, got %f", results[0].Score)
	}
}

func TestSampleTierServesAsLastResort(t *testing.T) {
	store := newFakeStore()
	addPages(store, "doc-1",
		models.PageRecord{PageNumber: 1},
		models.PageRecord{PageNumber: 2},
		models.PageRecord{PageNumber: 3},
	)

	engine := NewEngine(store, &fakeEmbedder{}, false)
	results, method, err := engine.Retrieve(context.Background(), "zzz qqq xxx", "doc-1", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != "fallback" {
		t.Fatalf("expected fallback tier, got %s", method)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 sampled pages, got %d", len(results))
	}
	for _, r := range results {
		if r.Score != 0.5 {
			t.Errorf("expected fixed sample score 0.5, got %f", r.Score)
		}
	}
}

func TestSampleTierRequiresDocumentScope(t *testing.T) {
	store := newFakeStore()
	addPages(store, "doc-1", models.PageRecord{PageNumber: 1})

	engine := NewEngine(store, &fakeEmbedder{}, false)
	results, method, err := engine.Retrieve(context.Background(), "zzz qqq xxx", "", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != "none" || len(results) != 0 {
		t.Fatalf("expected no results without a scope, got method=%s results=%+v", method, results)
	}
}

func TestEmbeddingFailureDegradesToKeywordTier(t *testing.T) {
	store := newFakeStore()
	addPages(store, "doc-1",
		models.PageRecord{PageNumber: 5, Content: "quarterly revenue figures"},
	)

	engine := NewEngine(store, &fakeEmbedder{err: errors.New("provider down")}, false)
	results, method, err := engine.Retrieve(context.Background(), "revenue figures", "doc-1", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != "keyword" {
		t.Fatalf("expected keyword tier after embedding failure, got %s", method)
	}
	if len(results) != 1 || results[0].PageNumber != 5 {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestKeywordTierIsIdempotent(t *testing.T) {
	store := newFakeStore()
	addPages(store, "doc-1",
		models.PageRecord{PageNumber: 3, Content: "vector search index configuration"},
	)
	engine := NewEngine(store, &fakeEmbedder{}, false)

	first, _, err := engine.Retrieve(context.Background(), "index configuration", "doc-1", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _, err := engine.Retrieve(context.Background(), "index configuration", "doc-1", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated query diverged: %+v vs %+v", first, second)
	}
}

func TestTokenizeQuery(t *testing.T) {
	got := TokenizeQuery("What ARE the Key-Findings, really?!")
	want := []string{"what", "are", "the", "key-findings", "really"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if got := TokenizeQuery("a an to"); got != nil {
		t.Errorf("expected short words dropped, got %v", got)
	}
}
