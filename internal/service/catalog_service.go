package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gallery-service/internal/apperr"
	"gallery-service/internal/models"
	"gallery-service/internal/redisclient"
	"gallery-service/internal/storage"
	"gallery-service/internal/store"
	"gallery-service/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	artworkListCacheKey = "artworks:list"
	maxSlugAttempts     = 5
	maxTitleLength      = 200
)

// ArtworkInput carries artwork fields from admin requests. Nil fields are
// left unchanged on update.
type ArtworkInput struct {
	Title             *string              `json:"title"`
	Description       *string              `json:"description"`
	Year              *int                 `json:"year"`
	Medium            *string              `json:"medium"`
	Dimensions        *string              `json:"dimensions"`
	OriginalPrice     *decimal.Decimal     `json:"original_price"`
	OriginalAvailable *bool                `json:"original_available"`
	OriginalSold      *bool                `json:"original_sold"`
	PrintsAvailable   *bool                `json:"prints_available"`
	PrintOptions      *models.PrintOptions `json:"print_options"`
	Images            *[]string            `json:"images"`
}

func (in ArtworkInput) apply(a *models.Artwork) {
	if in.Title != nil {
		a.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		a.Description = strings.TrimSpace(*in.Description)
	}
	if in.Year != nil {
		a.Year = *in.Year
	}
	if in.Medium != nil {
		a.Medium = strings.TrimSpace(*in.Medium)
	}
	if in.Dimensions != nil {
		a.Dimensions = strings.TrimSpace(*in.Dimensions)
	}
	if in.OriginalPrice != nil {
		a.OriginalPrice = decimal.NewNullDecimal(*in.OriginalPrice)
	}
	if in.OriginalAvailable != nil {
		a.OriginalAvailable = *in.OriginalAvailable
	}
	if in.OriginalSold != nil {
		a.OriginalSold = *in.OriginalSold
	}
	if in.PrintsAvailable != nil {
		a.PrintsAvailable = *in.PrintsAvailable
	}
	if in.PrintOptions != nil {
		opts := make(models.PrintOptions, len(*in.PrintOptions))
		for i, o := range *in.PrintOptions {
			opts[i] = models.PrintOption{Size: strings.TrimSpace(o.Size), Price: o.Price}
		}
		a.PrintOptions = opts
	}
	if in.Images != nil {
		a.Images = append([]string{}, (*in.Images)...)
	}
}

// ValidateArtwork returns field errors for an artwork about to be written
func ValidateArtwork(a *models.Artwork) map[string]string {
	fields := map[string]string{}

	switch {
	case a.Title == "":
		fields["title"] = "is required"
	case len(a.Title) > maxTitleLength:
		fields["title"] = fmt.Sprintf("must be at most %d characters", maxTitleLength)
	}
	if a.Year <= 0 || a.Year > time.Now().Year()+1 {
		fields["year"] = "must be a valid year"
	}
	if a.Medium == "" {
		fields["medium"] = "is required"
	}
	if a.Dimensions == "" {
		fields["dimensions"] = "is required"
	}

	if a.OriginalPrice.Valid && a.OriginalPrice.Decimal.IsNegative() {
		fields["original_price"] = "must not be negative"
	} else if a.OriginalAvailable && !a.OriginalPrice.Valid {
		fields["original_price"] = "is required when the original is available"
	}

	sizes := make(map[string]bool, len(a.PrintOptions))
	for i, opt := range a.PrintOptions {
		switch {
		case opt.Size == "":
			fields[fmt.Sprintf("print_options[%d].size", i)] = "is required"
		case sizes[opt.Size]:
			fields[fmt.Sprintf("print_options[%d].size", i)] = "is duplicated"
		}
		sizes[opt.Size] = true
		if !opt.Price.IsPositive() {
			fields[fmt.Sprintf("print_options[%d].price", i)] = "must be positive"
		}
	}
	if a.PrintsAvailable && len(a.PrintOptions) == 0 {
		fields["print_options"] = "at least one option is required when prints are available"
	}

	for i, img := range a.Images {
		if strings.TrimSpace(img) == "" {
			fields[fmt.Sprintf("images[%d]", i)] = "must not be empty"
		}
	}
	return fields
}

// CatalogService serves the public catalog and admin artwork mutations
type CatalogService struct {
	store    CatalogStore
	cache    Cache
	cacheTTL time.Duration
	images   storage.ImageStore
	logger   *zap.Logger
}

// NewCatalogService creates a catalog service. cache and images may be nil.
func NewCatalogService(store CatalogStore, cache Cache, cacheTTL time.Duration, images storage.ImageStore) *CatalogService {
	return &CatalogService{
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
		images:   images,
		logger:   util.GetLogger(),
	}
}

// ListArtworks returns the visible catalog sorted by (display_order, id)
func (s *CatalogService) ListArtworks(ctx context.Context) ([]models.Artwork, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListArtworks")
	defer span.End()

	if s.cache != nil {
		var cached []models.Artwork
		err := s.cache.GetJSON(ctx, artworkListCacheKey, &cached)
		switch {
		case err == nil:
			util.CatalogCacheTotal.WithLabelValues("hit").Inc()
			return cached, nil
		case errors.Is(err, redisclient.ErrCacheMiss):
			util.CatalogCacheTotal.WithLabelValues("miss").Inc()
		default:
			util.CatalogCacheTotal.WithLabelValues("error").Inc()
			s.logger.Warn("Catalog cache read failed", zap.Error(err))
		}
	}

	artworks, err := s.store.ListArtworks(ctx, false)
	if err != nil {
		util.RecordError(span, err)
		return nil, apperr.Persistence("failed to list artworks", err)
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, artworkListCacheKey, artworks, s.cacheTTL); err != nil {
			s.logger.Warn("Catalog cache write failed", zap.Error(err))
		}
	}
	return artworks, nil
}

// ListAllArtworks returns the catalog including archived artworks
func (s *CatalogService) ListAllArtworks(ctx context.Context) ([]models.Artwork, error) {
	artworks, err := s.store.ListArtworks(ctx, true)
	if err != nil {
		return nil, apperr.Persistence("failed to list artworks", err)
	}
	return artworks, nil
}

// GetArtwork resolves a numeric id or a slug. Archived artworks are hidden
// unless includeArchived is set.
func (s *CatalogService) GetArtwork(ctx context.Context, idOrSlug string, includeArchived bool) (*models.Artwork, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetArtwork", attribute.String("artwork", idOrSlug))
	defer span.End()

	var artwork *models.Artwork
	var err error
	if id, convErr := strconv.ParseInt(idOrSlug, 10, 64); convErr == nil {
		artwork, err = s.store.GetArtworkByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			artwork, err = s.store.GetArtworkBySlug(ctx, idOrSlug)
		}
	} else {
		artwork, err = s.store.GetArtworkBySlug(ctx, idOrSlug)
	}
	if err != nil {
		return nil, persistenceErr(err, "failed to get artwork", "artwork", idOrSlug)
	}
	if artwork.Archived() && !includeArchived {
		return nil, apperr.NotFound("artwork", idOrSlug)
	}
	return artwork, nil
}

// CreateArtwork validates input and stores a new artwork with a unique slug
// at the end of the display order
func (s *CatalogService) CreateArtwork(ctx context.Context, in ArtworkInput) (*models.Artwork, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateArtwork")
	defer span.End()

	artwork := &models.Artwork{PrintOptions: models.PrintOptions{}, Images: []string{}}
	in.apply(artwork)
	if fields := ValidateArtwork(artwork); len(fields) > 0 {
		return nil, apperr.Validation("invalid artwork", fields)
	}

	next, err := s.store.NextDisplayOrder(ctx)
	if err != nil {
		return nil, apperr.Persistence("failed to create artwork", err)
	}
	artwork.DisplayOrder = next

	err = s.withUniqueSlug(ctx, artwork, func() error {
		return s.store.CreateArtwork(ctx, artwork)
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, apperr.Persistence("failed to create artwork", err)
	}

	s.mutated(ctx, "create")
	s.logger.Info("Artwork created", zap.Int64("artwork_id", artwork.ID), zap.String("slug", artwork.Slug))
	return artwork, nil
}

// UpdateArtwork applies a partial update; a changed title regenerates the slug
func (s *CatalogService) UpdateArtwork(ctx context.Context, id int64, in ArtworkInput) (*models.Artwork, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateArtwork", attribute.Int64("artwork_id", id))
	defer span.End()

	artwork, err := s.store.GetArtworkByID(ctx, id)
	if err != nil {
		return nil, persistenceErr(err, "failed to update artwork", "artwork", id)
	}
	if artwork.Archived() {
		return nil, apperr.NotFound("artwork", id)
	}

	oldTitle := artwork.Title
	in.apply(artwork)
	if fields := ValidateArtwork(artwork); len(fields) > 0 {
		return nil, apperr.Validation("invalid artwork", fields)
	}

	write := func() error { return s.store.UpdateArtwork(ctx, artwork) }
	if artwork.Title != oldTitle {
		err = s.withUniqueSlug(ctx, artwork, write)
	} else {
		err = write()
	}
	if err != nil {
		util.RecordError(span, err)
		return nil, persistenceErr(err, "failed to update artwork", "artwork", id)
	}

	s.mutated(ctx, "update")
	return artwork, nil
}

// DeleteArtwork archives an artwork. Order history keeps its snapshot.
func (s *CatalogService) DeleteArtwork(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.DeleteArtwork", attribute.Int64("artwork_id", id))
	defer span.End()

	if err := s.store.ArchiveArtwork(ctx, id); err != nil {
		util.RecordError(span, err)
		return persistenceErr(err, "failed to delete artwork", "artwork", id)
	}

	s.mutated(ctx, "delete")
	s.logger.Info("Artwork archived", zap.Int64("artwork_id", id))
	return nil
}

// ReorderArtworks puts ids first in the given order; artworks not listed
// follow in their previous order
func (s *CatalogService) ReorderArtworks(ctx context.Context, ids []int64) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.ReorderArtworks", attribute.Int("count", len(ids)))
	defer span.End()

	if len(ids) == 0 {
		return apperr.Validation("invalid reorder", map[string]string{"ids": "at least one artwork id is required"})
	}
	seen := make(map[int64]bool, len(ids))
	for i, id := range ids {
		if seen[id] {
			return apperr.Validation("invalid reorder", map[string]string{
				fmt.Sprintf("ids[%d]", i): fmt.Sprintf("artwork %d is listed more than once", id),
			})
		}
		seen[id] = true
	}

	existing, err := s.store.GetArtworksByIDs(ctx, ids)
	if err != nil {
		return apperr.Persistence("failed to reorder artworks", err)
	}
	found := make(map[int64]bool, len(existing))
	for _, a := range existing {
		if !a.Archived() {
			found[a.ID] = true
		}
	}
	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, strconv.FormatInt(id, 10))
		}
	}
	if len(missing) > 0 {
		return apperr.NotFound("artwork", strings.Join(missing, ", "))
	}

	if err := s.store.ReorderArtworks(ctx, ids); err != nil {
		util.RecordError(span, err)
		return persistenceErr(err, "failed to reorder artworks", "artwork", ids)
	}

	s.mutated(ctx, "reorder")
	return nil
}

// UploadImage stores an image and appends its URL to the artwork
func (s *CatalogService) UploadImage(ctx context.Context, id int64, filename, contentType string, data io.Reader) (*models.Artwork, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UploadImage", attribute.Int64("artwork_id", id))
	defer span.End()

	if _, ok := storage.AllowedContentTypes[contentType]; !ok {
		return nil, apperr.Validation("invalid image", map[string]string{"file": "must be a JPEG, PNG or WebP image"})
	}
	if s.images == nil {
		return nil, apperr.Persistence("image storage is not configured", nil)
	}

	artwork, err := s.store.GetArtworkByID(ctx, id)
	if err != nil {
		return nil, persistenceErr(err, "failed to upload image", "artwork", id)
	}
	if artwork.Archived() {
		return nil, apperr.NotFound("artwork", id)
	}

	url, err := s.images.Upload(ctx, id, filename, contentType, data)
	if err != nil {
		util.RecordError(span, err)
		return nil, apperr.Persistence("failed to upload image", err)
	}

	artwork.Images = append(artwork.Images, url)
	if err := s.store.UpdateArtwork(ctx, artwork); err != nil {
		return nil, persistenceErr(err, "failed to attach image", "artwork", id)
	}

	s.mutated(ctx, "upload_image")
	return artwork, nil
}

// withUniqueSlug assigns a free slug derived from the title and runs write,
// retrying when a concurrent writer claimed the same slug first
func (s *CatalogService) withUniqueSlug(ctx context.Context, a *models.Artwork, write func() error) error {
	base := store.Slugify(a.Title)
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		taken, err := s.store.SlugsWithBase(ctx, base, a.ID)
		if err != nil {
			return err
		}
		a.Slug = store.UniqueSlug(base, taken)

		err = write()
		if !errors.Is(err, store.ErrSlugTaken) {
			return err
		}
		s.logger.Debug("Slug taken concurrently, retrying", zap.String("slug", a.Slug))
	}
	return fmt.Errorf("could not allocate slug for %q: %w", base, store.ErrSlugTaken)
}

func (s *CatalogService) mutated(ctx context.Context, operation string) {
	util.CatalogMutationsTotal.WithLabelValues(operation).Inc()
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, artworkListCacheKey); err != nil {
		s.logger.Warn("Failed to invalidate catalog cache", zap.Error(err))
	}
}
