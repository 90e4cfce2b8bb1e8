package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectPathUsesContentTypeExtension(t *testing.T) {
	p := objectPath(12, "photo.JPEG", "image/png")
	assert.True(t, strings.HasPrefix(p, "artworks/12/"))
	assert.True(t, strings.HasSuffix(p, ".png"))

	p = objectPath(12, "photo.JPEG", "application/octet-stream")
	assert.True(t, strings.HasSuffix(p, ".jpeg"))
}

func TestSupabaseStorePublicURL(t *testing.T) {
	s := NewSupabaseStore("https://project.supabase.co/", "key", "artwork-images")
	assert.Equal(t,
		"https://project.supabase.co/storage/v1/object/public/artwork-images/artworks/1/a.jpg",
		s.PublicURL("artworks/1/a.jpg"))
}

func TestMemoryStoreUpload(t *testing.T) {
	s := NewMemoryStore("https://cdn.test/")
	url, err := s.Upload(context.Background(), 3, "a.jpg", "image/jpeg", strings.NewReader("bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://cdn.test/artworks/3/"))
	assert.Len(t, s.Objects, 1)
}
