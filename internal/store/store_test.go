package store

import (
	"context"
	"os"
	"testing"

	"gallery-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore connects to TEST_DATABASE_URL, skipping when it is unset
func openTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires TEST_DATABASE_URL")
	}

	store, err := NewStore(url)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func newArtwork(t *testing.T, s *Store, title string) *models.Artwork {
	t.Helper()
	ctx := context.Background()

	taken, err := s.SlugsWithBase(ctx, Slugify(title), 0)
	require.NoError(t, err)
	next, err := s.NextDisplayOrder(ctx)
	require.NoError(t, err)

	a := &models.Artwork{
		Title:           title,
		Slug:            UniqueSlug(Slugify(title), taken),
		Year:            2024,
		Medium:          "Oil on canvas",
		Dimensions:      "50x70 cm",
		PrintsAvailable: true,
		PrintOptions:    models.PrintOptions{{Size: "8x10", Price: decimal.NewFromInt(20)}},
		DisplayOrder:    next,
	}
	require.NoError(t, s.CreateArtwork(ctx, a))
	return a
}

func TestCreateOrderWithItems(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	artwork := newArtwork(t, s, "Integration "+uuid.NewString()[:8])
	customer := &models.Customer{Email: uuid.NewString() + "@example.test", FirstName: "Ada", LastName: "L"}
	require.NoError(t, s.UpsertCustomer(ctx, customer))

	size := "8x10"
	order := &models.Order{
		CustomerID:     customer.ID,
		Subtotal:       decimal.NewFromInt(40),
		ShippingCost:   decimal.NewFromInt(15),
		TotalAmount:    decimal.NewFromInt(55),
		Currency:       "usd",
		PaymentMethod:  models.PaymentMethodBankTransfer,
		Status:         models.OrderStatusPending,
		IdempotencyKey: uuid.NewString(),
		AccessToken:    uuid.NewString(),
	}
	items := []models.OrderItem{{
		ArtworkID:    artwork.ID,
		ArtworkTitle: artwork.Title,
		ArtworkSlug:  artwork.Slug,
		Type:         models.PurchaseTypePrint,
		PrintSize:    &size,
		Quantity:     2,
		UnitPrice:    decimal.NewFromInt(20),
		TotalPrice:   decimal.NewFromInt(40),
	}}

	require.NoError(t, s.CreateOrderWithItems(ctx, order, items))
	assert.NotZero(t, order.ID)

	retrieved, err := s.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, order.TotalAmount.Equal(retrieved.TotalAmount))

	stored, err := s.GetOrderItemsByOrderID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, retrieved.Subtotal.Equal(stored[0].TotalPrice))

	require.NoError(t, s.TransitionOrderStatus(ctx, order.ID, models.OrderStatusPending, models.OrderStatusCompleted))
	err = s.TransitionOrderStatus(ctx, order.ID, models.OrderStatusPending, models.OrderStatusCancelled)
	assert.ErrorIs(t, err, ErrStatusChanged)
}

func TestIdempotencyKeyIsUnique(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	customer := &models.Customer{Email: uuid.NewString() + "@example.test", FirstName: "Ada", LastName: "L"}
	require.NoError(t, s.UpsertCustomer(ctx, customer))

	key := uuid.NewString()
	newOrder := func() *models.Order {
		return &models.Order{
			CustomerID:     customer.ID,
			Subtotal:       decimal.NewFromInt(90),
			ShippingCost:   decimal.NewFromInt(25),
			TotalAmount:    decimal.NewFromInt(115),
			Currency:       "usd",
			PaymentMethod:  models.PaymentMethodBankTransfer,
			Status:         models.OrderStatusPending,
			IdempotencyKey: key,
			AccessToken:    uuid.NewString(),
		}
	}

	require.NoError(t, s.CreateOrderWithItems(ctx, newOrder(), nil))
	err := s.CreateOrderWithItems(ctx, newOrder(), nil)
	assert.ErrorIs(t, err, ErrDuplicateIdempotencyKey)
}

func TestUpsertCustomerKeepsID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	email := uuid.NewString() + "@example.test"
	first := &models.Customer{Email: email, FirstName: "Ada", LastName: "L", City: "London"}
	require.NoError(t, s.UpsertCustomer(ctx, first))
	second := &models.Customer{Email: email, FirstName: "Ada", LastName: "L", City: "Paris"}
	require.NoError(t, s.UpsertCustomer(ctx, second))

	assert.Equal(t, first.ID, second.ID)
	stored, err := s.GetCustomerByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Paris", stored.City)
}

func TestReorderArtworks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := newArtwork(t, s, "Reorder A")
	b := newArtwork(t, s, "Reorder B")
	c := newArtwork(t, s, "Reorder C")

	require.NoError(t, s.ReorderArtworks(ctx, []int64{c.ID, a.ID, b.ID}))

	got, err := s.GetArtworksByIDs(ctx, []int64{a.ID, b.ID, c.ID})
	require.NoError(t, err)
	order := map[int64]int{}
	for _, art := range got {
		order[art.ID] = art.DisplayOrder
	}
	assert.Equal(t, 0, order[c.ID])
	assert.Equal(t, 1, order[a.ID])
	assert.Equal(t, 2, order[b.ID])

	require.NoError(t, s.ReorderArtworks(ctx, []int64{b.ID}))
	got, err = s.GetArtworksByIDs(ctx, []int64{a.ID, b.ID, c.ID})
	require.NoError(t, err)
	for _, art := range got {
		order[art.ID] = art.DisplayOrder
	}
	assert.Equal(t, 0, order[b.ID])
	assert.Less(t, order[b.ID], order[c.ID])
	assert.Less(t, order[c.ID], order[a.ID])

	err = s.ReorderArtworks(ctx, []int64{a.ID, -1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchiveArtworkKeepsSlugReserved(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	title := "Archive " + uuid.NewString()[:8]
	a := newArtwork(t, s, title)
	require.NoError(t, s.ArchiveArtwork(ctx, a.ID))
	assert.ErrorIs(t, s.ArchiveArtwork(ctx, a.ID), ErrNotFound)

	b := newArtwork(t, s, title)
	assert.Equal(t, a.Slug+"-1", b.Slug)
}

func TestOriginalClaimAndRelease(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	artwork := newArtwork(t, s, "Original "+uuid.NewString()[:8])
	artwork.OriginalAvailable = true
	artwork.OriginalPrice = decimal.NewNullDecimal(decimal.NewFromInt(90))
	require.NoError(t, s.UpdateArtwork(ctx, artwork))

	customer := &models.Customer{Email: uuid.NewString() + "@example.test", FirstName: "Ada", LastName: "L"}
	require.NoError(t, s.UpsertCustomer(ctx, customer))

	place := func() (*models.Order, error) {
		order := &models.Order{
			CustomerID:     customer.ID,
			Subtotal:       decimal.NewFromInt(90),
			ShippingCost:   decimal.NewFromInt(25),
			TotalAmount:    decimal.NewFromInt(115),
			Currency:       "usd",
			PaymentMethod:  models.PaymentMethodBankTransfer,
			Status:         models.OrderStatusPending,
			IdempotencyKey: uuid.NewString(),
			AccessToken:    uuid.NewString(),
		}
		items := []models.OrderItem{{
			ArtworkID:    artwork.ID,
			ArtworkTitle: artwork.Title,
			ArtworkSlug:  artwork.Slug,
			Type:         models.PurchaseTypeOriginal,
			Quantity:     1,
			UnitPrice:    decimal.NewFromInt(90),
			TotalPrice:   decimal.NewFromInt(90),
		}}
		return order, s.CreateOrderWithItems(ctx, order, items)
	}

	first, err := place()
	require.NoError(t, err)
	stored, err := s.GetArtworkByID(ctx, artwork.ID)
	require.NoError(t, err)
	assert.True(t, stored.OriginalSold)

	second, err := place()
	assert.ErrorIs(t, err, ErrOriginalSold)
	missing, err := s.GetOrderByIdempotencyKey(ctx, second.IdempotencyKey)
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.TransitionOrderStatus(ctx, first.ID, models.OrderStatusPending, models.OrderStatusCancelled))
	stored, err = s.GetArtworkByID(ctx, artwork.ID)
	require.NoError(t, err)
	assert.False(t, stored.OriginalSold)
}
