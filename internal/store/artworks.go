package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gallery-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const artworkColumns = `id, title, slug, description, year, medium, dimensions, original_price,
	original_available, original_sold, prints_available, print_options, images,
	display_order, archived_at, created_at, updated_at`

// ListArtworks returns catalog artworks sorted by (display_order, id)
func (s *Store) ListArtworks(ctx context.Context, includeArchived bool) ([]models.Artwork, error) {
	query := "SELECT " + artworkColumns + " FROM artworks"
	if !includeArchived {
		query += " WHERE archived_at IS NULL"
	}
	query += " ORDER BY display_order, id"

	artworks := []models.Artwork{}
	err := s.db.SelectContext(ctx, &artworks, query)
	return artworks, err
}

// GetArtworkByID retrieves an artwork by ID, archived or not
func (s *Store) GetArtworkByID(ctx context.Context, id int64) (*models.Artwork, error) {
	var artwork models.Artwork
	err := s.db.GetContext(ctx, &artwork,
		"SELECT "+artworkColumns+" FROM artworks WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("artwork %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &artwork, nil
}

// GetArtworkBySlug retrieves an artwork by slug, archived or not
func (s *Store) GetArtworkBySlug(ctx context.Context, slug string) (*models.Artwork, error) {
	var artwork models.Artwork
	err := s.db.GetContext(ctx, &artwork,
		"SELECT "+artworkColumns+" FROM artworks WHERE slug = $1", slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("artwork %q: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &artwork, nil
}

// GetArtworksByIDs retrieves multiple artworks by IDs
func (s *Store) GetArtworksByIDs(ctx context.Context, ids []int64) ([]models.Artwork, error) {
	if len(ids) == 0 {
		return []models.Artwork{}, nil
	}

	query, args, err := sqlx.In("SELECT "+artworkColumns+" FROM artworks WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var artworks []models.Artwork
	err = s.db.SelectContext(ctx, &artworks, query, args...)
	return artworks, err
}

// SlugsWithBase returns existing slugs equal to base or of the form base-N,
// ignoring the artwork excludeID
func (s *Store) SlugsWithBase(ctx context.Context, base string, excludeID int64) ([]string, error) {
	var slugs []string
	err := s.db.SelectContext(ctx, &slugs,
		"SELECT slug FROM artworks WHERE (slug = $1 OR slug LIKE $1 || '-%') AND id <> $2",
		base, excludeID)
	return slugs, err
}

// NextDisplayOrder returns one past the highest display order in use
func (s *Store) NextDisplayOrder(ctx context.Context) (int, error) {
	var next int
	err := s.db.GetContext(ctx, &next, "SELECT COALESCE(MAX(display_order) + 1, 0) FROM artworks")
	return next, err
}

// CreateArtwork inserts an artwork. A slug collision yields ErrSlugTaken.
func (s *Store) CreateArtwork(ctx context.Context, a *models.Artwork) error {
	query := `
		INSERT INTO artworks (title, slug, description, year, medium, dimensions, original_price,
			original_available, original_sold, prints_available, print_options, images, display_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		a.Title, a.Slug, a.Description, a.Year, a.Medium, a.Dimensions, a.OriginalPrice,
		a.OriginalAvailable, a.OriginalSold, a.PrintsAvailable, a.PrintOptions, a.Images, a.DisplayOrder,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if constraint, ok := uniqueConstraint(err); ok && constraint == "artworks_slug_key" {
		return ErrSlugTaken
	}
	return err
}

// UpdateArtwork writes every mutable column of an artwork
func (s *Store) UpdateArtwork(ctx context.Context, a *models.Artwork) error {
	query := `
		UPDATE artworks SET title = $1, slug = $2, description = $3, year = $4, medium = $5,
			dimensions = $6, original_price = $7, original_available = $8, original_sold = $9,
			prints_available = $10, print_options = $11, images = $12, updated_at = NOW()
		WHERE id = $13 AND archived_at IS NULL
		RETURNING updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		a.Title, a.Slug, a.Description, a.Year, a.Medium, a.Dimensions, a.OriginalPrice,
		a.OriginalAvailable, a.OriginalSold, a.PrintsAvailable, a.PrintOptions, a.Images, a.ID,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("artwork %d: %w", a.ID, ErrNotFound)
	}
	if constraint, ok := uniqueConstraint(err); ok && constraint == "artworks_slug_key" {
		return ErrSlugTaken
	}
	return err
}

// ArchiveArtwork soft-deletes an artwork so order history keeps its reference
func (s *Store) ArchiveArtwork(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE artworks SET archived_at = NOW(), updated_at = NOW() WHERE id = $1 AND archived_at IS NULL", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("artwork %d: %w", id, ErrNotFound)
	}
	return nil
}

// ReorderArtworks sets display_order to each id's position, all or nothing.
// Artworks missing from ids keep their relative order after the listed ones.
func (s *Store) ReorderArtworks(ctx context.Context, ids []int64) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var locked []int64
		if err := tx.SelectContext(ctx, &locked,
			"SELECT id FROM artworks WHERE archived_at IS NULL ORDER BY id FOR UPDATE"); err != nil {
			return fmt.Errorf("failed to lock artworks: %w", err)
		}
		active := make(map[int64]bool, len(locked))
		for _, id := range locked {
			active[id] = true
		}
		for _, id := range ids {
			if !active[id] {
				return fmt.Errorf("reorder references unknown artwork %d: %w", id, ErrNotFound)
			}
		}

		_, err := tx.ExecContext(ctx, `
			UPDATE artworks AS a
			SET display_order = v.pos - 1, updated_at = NOW()
			FROM unnest($1::bigint[]) WITH ORDINALITY AS v(id, pos)
			WHERE a.id = v.id`, pq.Array(ids))
		if err != nil {
			return fmt.Errorf("failed to reorder artworks: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE artworks AS a
			SET display_order = $2 + r.pos - 1, updated_at = NOW()
			FROM (
				SELECT id, ROW_NUMBER() OVER (ORDER BY display_order, id) AS pos
				FROM artworks
				WHERE archived_at IS NULL AND NOT (id = ANY($1))
			) AS r
			WHERE a.id = r.id`, pq.Array(ids), len(ids))
		if err != nil {
			return fmt.Errorf("failed to move unlisted artworks: %w", err)
		}
		return nil
	})
}
