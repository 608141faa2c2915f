package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PageRecord is one ingested PDF page with its embedding and metadata.
// Field names match the Atlas collection used by the vector search index,
// so they stay camelCase on the wire.
type PageRecord struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	DocumentID  string             `bson:"documentId,omitempty" json:"document_id,omitempty"`
	PageNumber  int                `bson:"pageNumber" json:"page_number"`
	Content     string             `bson:"content,omitempty" json:"content,omitempty"`
	Summary     string             `bson:"summary,omitempty" json:"summary,omitempty"`
	Topics      []string           `bson:"topics,omitempty" json:"topics,omitempty"`
	Key         string             `bson:"key,omitempty" json:"key,omitempty"`
	Width       int                `bson:"width,omitempty" json:"width,omitempty"`
	Height      int                `bson:"height,omitempty" json:"height,omitempty"`
	Embedding   []float32          `bson:"embedding,omitempty" json:"-"`
	StorageType string             `bson:"storageType,omitempty" json:"storage_type,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt,omitempty" json:"created_at"`
}

// QueryResult is a retrieved page with its relevance score. Ephemeral,
// produced fresh per query and never persisted.
type QueryResult struct {
	DocumentID string   `json:"document_id,omitempty"`
	PageNumber int      `json:"page_number"`
	Score      float64  `json:"score"`
	Content    string   `json:"content,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	Topics     []string `json:"topics,omitempty"`
	Key        string   `json:"key,omitempty"`
}

// Source is the page citation pair returned alongside an answer.
type Source struct {
	Page  int     `json:"page"`
	Score float64 `json:"score"`
}

// Answer is the synthesizer output for one question.
type Answer struct {
	Text    string   `json:"response"`
	Sources []Source `json:"sources"`
}

// DocumentInfo summarizes one ingested document for listings.
type DocumentInfo struct {
	DocumentID string `json:"document_id"`
	PageCount  int64  `json:"page_count"`
}
