package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	// Create indexes
	err = createIndexes(client, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(client *mongo.Client, cfg *Config) error {
	db := client.Database(cfg.DBName)

	// Pages collection indexes for document-scoped lookups
	pagesCollection := db.Collection(cfg.CollectionName)
	pageIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "documentId", Value: 1}}},
		{Keys: bson.D{{Key: "documentId", Value: 1}, {Key: "pageNumber", Value: 1}}},
	}
	_, err := pagesCollection.Indexes().CreateMany(context.Background(), pageIndexes)
	if err != nil {
		return err
	}

	return nil
}

// EnsureVectorSearchIndex creates the Atlas vector search index over the
// embedding field if it does not exist yet. Non-Atlas deployments reject
// search index commands, so failures are returned rather than fatal -
// retrieval degrades to the keyword tier without the index.
func EnsureVectorSearchIndex(ctx context.Context, collection *mongo.Collection, cfg *Config) error {
	cursor, err := collection.SearchIndexes().List(ctx, options.SearchIndexes().SetName(cfg.VectorIndexName))
	if err == nil {
		var existing []bson.M
		if err := cursor.All(ctx, &existing); err == nil && len(existing) > 0 {
			return nil
		}
	}

	definition := bson.D{
		{Key: "fields", Value: bson.A{
			bson.D{
				{Key: "type", Value: "vector"},
				{Key: "path", Value: "embedding"},
				{Key: "numDimensions", Value: cfg.VectorDim},
				{Key: "similarity", Value: "cosine"},
			},
		}},
	}

	_, err = collection.SearchIndexes().CreateOne(ctx, mongo.SearchIndexModel{
		Definition: definition,
		Options:    options.SearchIndexes().SetName(cfg.VectorIndexName).SetType("vectorSearch"),
	})
	if err != nil {
		return fmt.Errorf("failed to create vector search index: %v", err)
	}
	return nil
}
