package service

import (
	"context"
	"errors"
	"time"

	"gallery-service/internal/apperr"
	"gallery-service/internal/models"
	"gallery-service/internal/store"
)

// CatalogStore persists artworks
type CatalogStore interface {
	ListArtworks(ctx context.Context, includeArchived bool) ([]models.Artwork, error)
	GetArtworkByID(ctx context.Context, id int64) (*models.Artwork, error)
	GetArtworkBySlug(ctx context.Context, slug string) (*models.Artwork, error)
	GetArtworksByIDs(ctx context.Context, ids []int64) ([]models.Artwork, error)
	SlugsWithBase(ctx context.Context, base string, excludeID int64) ([]string, error)
	NextDisplayOrder(ctx context.Context) (int, error)
	CreateArtwork(ctx context.Context, a *models.Artwork) error
	UpdateArtwork(ctx context.Context, a *models.Artwork) error
	ArchiveArtwork(ctx context.Context, id int64) error
	ReorderArtworks(ctx context.Context, ids []int64) error
}

// CustomerStore persists customers
type CustomerStore interface {
	UpsertCustomer(ctx context.Context, c *models.Customer) error
	GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error)
	GetCustomersByIDs(ctx context.Context, ids []int64) ([]models.Customer, error)
}

// OrderStore persists orders and their items
type OrderStore interface {
	CreateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	ListOrders(ctx context.Context, status string) ([]models.Order, error)
	TransitionOrderStatus(ctx context.Context, orderID int64, from, to string) error
	SetOrderPaymentIntent(ctx context.Context, orderID int64, intentID string) error
	SetOrderTransferReference(ctx context.Context, orderID int64, reference string) error
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	GetOrderItemsByOrderIDs(ctx context.Context, orderIDs []int64) ([]models.OrderItem, error)
}

// MessageStore persists contact messages, subscriptions and social settings
type MessageStore interface {
	CreateContactMessage(ctx context.Context, m *models.ContactMessage) error
	ListContactMessages(ctx context.Context) ([]models.ContactMessage, error)
	MarkContactMessageRead(ctx context.Context, id int64) error
	DeleteContactMessage(ctx context.Context, id int64) error
	Subscribe(ctx context.Context, email string) (*models.NewsletterSubscription, bool, error)
	Unsubscribe(ctx context.Context, email string) error
	ListSubscriptions(ctx context.Context) ([]models.NewsletterSubscription, error)
	ListSocialMediaSettings(ctx context.Context) ([]models.SocialMediaSetting, error)
	UpsertSocialMediaSetting(ctx context.Context, setting *models.SocialMediaSetting) error
}

// Locker guards a checkout attempt across instances
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// Cache stores JSON values by key
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// persistenceErr classifies a store error; ErrNotFound becomes a NotFound
// error for entity/key, anything else a persistence failure.
func persistenceErr(err error, op, entity string, key interface{}) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(entity, key)
	}
	return apperr.Persistence(op, err)
}
