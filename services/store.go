package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pdf-vector-chat/internal/config"
	"pdf-vector-chat/models"
)

// PageStore persists and queries PageRecords. The Mongo implementation
// is the production one; tests substitute in-memory fakes.
type PageStore interface {
	VectorSearch(ctx context.Context, queryVector []float32, limit, numCandidates int) ([]models.QueryResult, error)
	KeywordSearch(ctx context.Context, keywords []string, documentID string, limit int) ([]models.QueryResult, error)
	SamplePages(ctx context.Context, documentID string, limit int) ([]models.QueryResult, error)
	CountByDocument(ctx context.Context, documentID string) (int64, error)
	Count(ctx context.Context) (int64, error)
	ReplacePages(ctx context.Context, documentID string, pages []models.PageRecord) error
	DeleteDocument(ctx context.Context, documentID string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	DeleteAllExcept(ctx context.Context, documentID string) (int64, error)
	ListDocuments(ctx context.Context) ([]models.DocumentInfo, error)
	SampleRecords(ctx context.Context, documentID string, limit int) ([]models.PageRecord, error)
	EnsureVectorIndex(ctx context.Context) error
}

// MongoPageStore implements PageStore on a MongoDB Atlas collection with
// a vector search index over the embedding field.
type MongoPageStore struct {
	collection *mongo.Collection
	cfg        *config.Config
}

func NewMongoPageStore(client *mongo.Client, cfg *config.Config) *MongoPageStore {
	return &MongoPageStore{
		collection: client.Database(cfg.DBName).Collection(cfg.CollectionName),
		cfg:        cfg,
	}
}

func (s *MongoPageStore) VectorSearch(ctx context.Context, queryVector []float32, limit, numCandidates int) ([]models.QueryResult, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: s.cfg.VectorIndexName},
			{Key: "path", Value: "embedding"},
			{Key: "queryVector", Value: queryVector},
			{Key: "numCandidates", Value: numCandidates},
			{Key: "limit", Value: limit},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "documentId", Value: 1},
			{Key: "pageNumber", Value: 1},
			{Key: "content", Value: 1},
			{Key: "summary", Value: 1},
			{Key: "topics", Value: 1},
			{Key: "key", Value: 1},
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer cursor.Close(ctx)

	var results []models.QueryResult
	for cursor.Next(ctx) {
		var doc struct {
			DocumentID string   `bson:"documentId"`
			PageNumber int      `bson:"pageNumber"`
			Content    string   `bson:"content"`
			Summary    string   `bson:"summary"`
			Topics     []string `bson:"topics"`
			Key        string   `bson:"key"`
			Score      float64  `bson:"score"`
		}
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		results = append(results, models.QueryResult{
			DocumentID: doc.DocumentID,
			PageNumber: doc.PageNumber,
			Content:    doc.Content,
			Summary:    doc.Summary,
			Topics:     doc.Topics,
			Key:        doc.Key,
			Score:      doc.Score,
		})
	}
	return results, cursor.Err()
}

func (s *MongoPageStore) KeywordSearch(ctx context.Context, keywords []string, documentID string, limit int) ([]models.QueryResult, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	escaped := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		escaped = append(escaped, regexp.QuoteMeta(kw))
	}
	pattern := strings.Join(escaped, "|")

	filter := bson.M{
		"$or": bson.A{
			bson.M{"content": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"summary": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"topics": bson.M{"$in": keywords}},
		},
	}
	if documentID != "" {
		filter["documentId"] = documentID
	}

	cursor, err := s.collection.Find(ctx, filter, options.Find().SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeResults(ctx, cursor)
}

func (s *MongoPageStore) SamplePages(ctx context.Context, documentID string, limit int) ([]models.QueryResult, error) {
	cursor, err := s.collection.Find(ctx, bson.M{"documentId": documentID}, options.Find().SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("sample query failed: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeResults(ctx, cursor)
}

func decodeResults(ctx context.Context, cursor *mongo.Cursor) ([]models.QueryResult, error) {
	var results []models.QueryResult
	for cursor.Next(ctx) {
		var rec models.PageRecord
		if err := cursor.Decode(&rec); err != nil {
			continue
		}
		results = append(results, models.QueryResult{
			DocumentID: rec.DocumentID,
			PageNumber: rec.PageNumber,
			Content:    rec.Content,
			Summary:    rec.Summary,
			Topics:     rec.Topics,
			Key:        rec.Key,
		})
	}
	return results, cursor.Err()
}

func (s *MongoPageStore) CountByDocument(ctx context.Context, documentID string) (int64, error) {
	return s.collection.CountDocuments(ctx, bson.M{"documentId": documentID})
}

func (s *MongoPageStore) Count(ctx context.Context) (int64, error) {
	return s.collection.CountDocuments(ctx, bson.M{})
}

// ReplacePages implements replace-on-reingest: all prior records for the
// document are removed before the new batch is inserted.
func (s *MongoPageStore) ReplacePages(ctx context.Context, documentID string, pages []models.PageRecord) error {
	if _, err := s.collection.DeleteMany(ctx, bson.M{"documentId": documentID}); err != nil {
		return fmt.Errorf("failed to delete prior pages: %w", err)
	}

	if len(pages) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(pages))
	now := time.Now()
	for _, p := range pages {
		p.DocumentID = documentID
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		docs = append(docs, p)
	}

	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert pages: %w", err)
	}
	return nil
}

func (s *MongoPageStore) DeleteDocument(ctx context.Context, documentID string) (int64, error) {
	res, err := s.collection.DeleteMany(ctx, bson.M{"documentId": documentID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *MongoPageStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.collection.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteAllExcept removes every record outside the kept document,
// including legacy records with a missing or null documentId.
func (s *MongoPageStore) DeleteAllExcept(ctx context.Context, documentID string) (int64, error) {
	res, err := s.collection.DeleteMany(ctx, bson.M{"documentId": bson.M{"$ne": documentID}})
	if err != nil {
		return 0, err
	}
	deleted := res.DeletedCount

	res, err = s.collection.DeleteMany(ctx, bson.M{"$or": bson.A{
		bson.M{"documentId": nil},
		bson.M{"documentId": bson.M{"$exists": false}},
	}})
	if err != nil {
		return deleted, err
	}
	return deleted + res.DeletedCount, nil
}

func (s *MongoPageStore) ListDocuments(ctx context.Context) ([]models.DocumentInfo, error) {
	ids, err := s.collection.Distinct(ctx, "documentId", bson.M{"documentId": bson.M{"$ne": nil}})
	if err != nil {
		return nil, err
	}

	docs := make([]models.DocumentInfo, 0, len(ids))
	for _, id := range ids {
		docID, ok := id.(string)
		if !ok || docID == "" {
			continue
		}
		count, err := s.CountByDocument(ctx, docID)
		if err != nil {
			return nil, err
		}
		docs = append(docs, models.DocumentInfo{DocumentID: docID, PageCount: count})
	}
	return docs, nil
}

func (s *MongoPageStore) SampleRecords(ctx context.Context, documentID string, limit int) ([]models.PageRecord, error) {
	filter := bson.M{}
	if documentID != "" {
		filter["documentId"] = documentID
	}

	cursor, err := s.collection.Find(ctx, filter, options.Find().SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []models.PageRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *MongoPageStore) EnsureVectorIndex(ctx context.Context) error {
	return config.EnsureVectorSearchIndex(ctx, s.collection, s.cfg)
}
