package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI        string
	DBName          string
	CollectionName  string
	VectorIndexName string
	VectorDim       int

	Port        string
	GinMode     string
	CORSOrigins []string

	// Embeddings: serverless endpoint is preferred, then Voyage AI.
	// AllowRandomEmbeddings selects the demo-only random provider when
	// neither is configured; with it off, a missing provider is a
	// configuration error.
	ServerlessURL         string
	VoyageAPIKey          string
	VoyageModel           string
	AllowRandomEmbeddings bool

	GoogleAPIKey string
	GeminiModel  string
	GeminiTier   string

	// StrictScope turns the "scope has no data, search everything"
	// policy into an empty result instead.
	StrictScope bool

	MaxFileSize       int64
	FileStorageDir    string
	ConvertDPI        int
	IngestTimeoutSecs int
	HTTPTimeoutSecs   int

	// Vercel Blob storage; local filesystem is used when unset.
	BlobToken   string
	BlobBaseURL string

	// Optional Redis embedding cache.
	RedisURL      string
	RedisPassword string
	RedisDB       int

	TracingEnabled bool
	OTLPEndpoint   string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:        getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DBName:          getEnv("DB_NAME", "mongodb_aiewf"),
		CollectionName:  getEnv("COLLECTION_NAME", "multimodal_workshop_voyageai"),
		VectorIndexName: getEnv("VS_INDEX_NAME", "vector_index_voyageai"),
		VectorDim:       getEnvInt("VECTOR_DIM", 1024),

		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),

		ServerlessURL:         getEnv("SERVERLESS_URL", ""),
		VoyageAPIKey:          getEnv("VOYAGE_API_KEY", ""),
		VoyageModel:           getEnv("VOYAGE_MODEL", "voyage-2"),
		AllowRandomEmbeddings: getEnvBool("EMBEDDINGS_ALLOW_RANDOM", false),

		GoogleAPIKey: getEnv("GOOGLE_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash-exp"),
		GeminiTier:   getEnv("GEMINI_TIER", "free"),

		StrictScope: getEnvBool("STRICT_SCOPE", false),

		MaxFileSize:       getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB
		FileStorageDir:    getEnv("FILE_STORAGE_DIR", "./storage"),
		ConvertDPI:        getEnvInt("CONVERT_DPI", 300),
		IngestTimeoutSecs: getEnvInt("INGEST_TIMEOUT", 300),
		HTTPTimeoutSecs:   getEnvInt("HTTP_TIMEOUT", 30),

		BlobToken:   getEnv("BLOB_READ_WRITE_TOKEN", ""),
		BlobBaseURL: getEnv("BLOB_BASE_URL", "https://blob.vercel-storage.com"),

		RedisURL:      getEnv("REDIS_URL", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
	}

	if cfg.VectorDim <= 0 {
		return nil, fmt.Errorf("VECTOR_DIM must be positive")
	}

	return cfg, nil
}

// Problems lists missing or inconsistent settings. Unlike a hard
// validation failure, the server still starts so the setup view can
// report exactly which dependency is unconfigured.
func (cfg *Config) Problems() []string {
	var problems []string
	if cfg.GoogleAPIKey == "" {
		problems = append(problems, "GOOGLE_API_KEY is not set - answer synthesis will fail")
	}
	if cfg.ServerlessURL == "" && cfg.VoyageAPIKey == "" {
		if cfg.AllowRandomEmbeddings {
			problems = append(problems, "no embedding provider configured - using random embeddings (demo mode)")
		} else {
			problems = append(problems, "no embedding provider configured - set SERVERLESS_URL or VOYAGE_API_KEY")
		}
	}
	return problems
}

// BlobConfigured reports whether Vercel Blob storage can be used.
func (cfg *Config) BlobConfigured() bool {
	return cfg.BlobToken != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
