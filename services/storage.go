package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pdf-vector-chat/internal/config"
	"pdf-vector-chat/internal/logger"
)

// ImageStorage persists rendered page images. Keys for local storage are
// relative paths served by the static file route; blob keys are full URLs.
type ImageStorage interface {
	SavePageImage(ctx context.Context, documentID string, pageNumber int, data []byte) (string, error)
	Load(ctx context.Context, key string) ([]byte, error)
	DeleteDocument(ctx context.Context, documentID string) error
	Mode() string
}

// NewImageStorage picks blob storage when a token is configured and
// falls back to the local filesystem otherwise.
func NewImageStorage(cfg *config.Config) (ImageStorage, error) {
	if cfg.BlobConfigured() {
		logger.Info("Using blob storage for page images")
		return NewBlobImageStorage(cfg), nil
	}
	logger.Info("Using local filesystem for page images", "dir", cfg.FileStorageDir)
	return NewLocalImageStorage(cfg.FileStorageDir)
}

// LocalImageStorage writes page images under
// <baseDir>/pdf-pages/<documentID>/page-NN.png.
type LocalImageStorage struct {
	baseDir string
}

func NewLocalImageStorage(baseDir string) (*LocalImageStorage, error) {
	if err := os.MkdirAll(filepath.Join(baseDir, "pdf-pages"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalImageStorage{baseDir: baseDir}, nil
}

func (l *LocalImageStorage) Mode() string { return "local" }

func (l *LocalImageStorage) SavePageImage(ctx context.Context, documentID string, pageNumber int, data []byte) (string, error) {
	dir := filepath.Join(l.baseDir, "pdf-pages", documentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create page directory: %w", err)
	}

	name := fmt.Sprintf("page-%02d.png", pageNumber)
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write page image: %w", err)
	}
	return filepath.ToSlash(filepath.Join("pdf-pages", documentID, name)), nil
}

func (l *LocalImageStorage) Load(ctx context.Context, key string) ([]byte, error) {
	clean := filepath.Clean(key)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, fmt.Errorf("invalid image key: %s", key)
	}
	return os.ReadFile(filepath.Join(l.baseDir, clean))
}

func (l *LocalImageStorage) DeleteDocument(ctx context.Context, documentID string) error {
	return os.RemoveAll(filepath.Join(l.baseDir, "pdf-pages", documentID))
}

// BlobImageStorage stores page images in Vercel Blob over its REST API.
// There is no official Go SDK, so the two endpoints we need (upload and
// delete) are called directly.
type BlobImageStorage struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

func NewBlobImageStorage(cfg *config.Config) *BlobImageStorage {
	base := cfg.BlobBaseURL
	if base == "" {
		base = "https://blob.vercel-storage.com"
	}
	return &BlobImageStorage{
		token:      cfg.BlobToken,
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: time.Duration(cfg.HTTPTimeoutSecs) * time.Second},
	}
}

func (b *BlobImageStorage) Mode() string { return "blob" }

func (b *BlobImageStorage) SavePageImage(ctx context.Context, documentID string, pageNumber int, data []byte) (string, error) {
	pathname := fmt.Sprintf("pdf-pages/%s/page-%02d.png", documentID, pageNumber)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, b.baseURL+"/"+pathname, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+b.token)
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("X-Add-Random-Suffix", "0")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("blob upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("blob upload returned status %d", resp.StatusCode)
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode blob response: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("blob upload returned no url")
	}
	return out.URL, nil
}

func (b *BlobImageStorage) Load(ctx context.Context, key string) ([]byte, error) {
	return fetchURL(ctx, b.httpClient, key)
}

// DeleteDocument lists blobs under the document prefix and deletes them
// in one batch.
func (b *BlobImageStorage) DeleteDocument(ctx context.Context, documentID string) error {
	prefix := "pdf-pages/" + documentID + "/"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"?prefix="+prefix, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+b.token)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("blob list failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("blob list returned status %d", resp.StatusCode)
	}

	var listing struct {
		Blobs []struct {
			URL string `json:"url"`
		} `json:"blobs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return fmt.Errorf("failed to decode blob listing: %w", err)
	}
	if len(listing.Blobs) == 0 {
		return nil
	}

	urls := make([]string, 0, len(listing.Blobs))
	for _, blob := range listing.Blobs {
		urls = append(urls, blob.URL)
	}

	body, err := json.Marshal(map[string][]string{"urls": urls})
	if err != nil {
		return err
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/delete", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+b.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err = b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("blob delete failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("blob delete returned status %d", resp.StatusCode)
	}
	return nil
}

func fetchURL(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s returned status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
