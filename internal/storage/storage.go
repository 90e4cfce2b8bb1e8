// Package storage uploads artwork images to object storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
	storage "github.com/supabase-community/storage-go"
)

// ImageStore persists image bytes and returns their public URL
type ImageStore interface {
	Upload(ctx context.Context, artworkID int64, filename, contentType string, data io.Reader) (string, error)
}

// AllowedContentTypes lists the image formats accepted for upload
var AllowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type SupabaseStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

func NewSupabaseStore(url, serviceKey, bucket string) *SupabaseStore {
	baseURL := strings.TrimSuffix(url, "/")
	return &SupabaseStore{
		client:  storage.NewClient(baseURL+"/storage/v1", serviceKey, nil),
		bucket:  bucket,
		baseURL: baseURL,
	}
}

// Upload stores the image under artworks/{id}/ with a random name
func (s *SupabaseStore) Upload(ctx context.Context, artworkID int64, filename, contentType string, data io.Reader) (string, error) {
	storagePath := objectPath(artworkID, filename, contentType)

	upsert := false
	_, err := s.client.UploadFile(s.bucket, storagePath, data, storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	return s.PublicURL(storagePath), nil
}

// PublicURL returns the public URL of an object in the bucket
func (s *SupabaseStore) PublicURL(storagePath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, storagePath)
}

func objectPath(artworkID int64, filename, contentType string) string {
	ext := AllowedContentTypes[contentType]
	if ext == "" {
		ext = strings.ToLower(path.Ext(filename))
	}
	return fmt.Sprintf("artworks/%d/%s%s", artworkID, uuid.NewString(), ext)
}

// MemoryStore keeps uploads in memory
type MemoryStore struct {
	mu      sync.Mutex
	baseURL string
	Objects map[string][]byte
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: strings.TrimSuffix(baseURL, "/"), Objects: make(map[string][]byte)}
}

func (m *MemoryStore) Upload(ctx context.Context, artworkID int64, filename, contentType string, data io.Reader) (string, error) {
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	storagePath := objectPath(artworkID, filename, contentType)

	m.mu.Lock()
	m.Objects[storagePath] = b
	m.mu.Unlock()

	return m.baseURL + "/" + storagePath, nil
}
