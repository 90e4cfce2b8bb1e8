package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"gallery-service/internal/apperr"
	"gallery-service/internal/models"
	"gallery-service/internal/payment"
	"gallery-service/internal/pricing"
	"gallery-service/internal/storage"
	"gallery-service/internal/store/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// flakyGateway wraps the sandbox, records intent keys and fails transfer
// instructions on demand
type flakyGateway struct {
	*payment.Sandbox
	transferErr error
	intentKeys  []string
}

func (g *flakyGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currency, idempotencyKey string, metadata map[string]string) (*payment.Intent, error) {
	g.intentKeys = append(g.intentKeys, idempotencyKey)
	return g.Sandbox.CreateIntent(ctx, amount, currency, idempotencyKey, metadata)
}

func (g *flakyGateway) CreateTransferInstruction(ctx context.Context, orderID int64, amount decimal.Decimal, currency string) (*payment.TransferInstruction, error) {
	if g.transferErr != nil {
		return nil, g.transferErr
	}
	return g.Sandbox.CreateTransferInstruction(ctx, orderID, amount, currency)
}

type fixture struct {
	store   *memory.Store
	gateway *flakyGateway
	locker  *memory.Locker
	cache   *memory.Cache
	images  *storage.MemoryStore
	orders  *OrderService
	catalog *CatalogService
	admin   *AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:   memory.NewStore(),
		gateway: &flakyGateway{Sandbox: payment.NewSandbox(false)},
		locker:  memory.NewLocker(),
		cache:   memory.NewCache(),
		images:  storage.NewMemoryStore("https://cdn.test"),
	}
	f.catalog = NewCatalogService(f.store, f.cache, time.Minute, f.images)
	f.orders = NewOrderService(f.store, f.store, f.store, f.gateway, f.locker, nil, OrderOptions{
		Currency:     "usd",
		Rates:        pricing.DefaultRates(),
		CatalogCache: f.cache,
	})
	f.admin = NewAdminService(f.store, nil)
	return f
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func boolPtr(b bool) *bool { return &b }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// sunsetInput describes an artwork with an available original at 90 and
// prints at 20 (8x10) and 45 (16x20)
func sunsetInput(title string) ArtworkInput {
	return ArtworkInput{
		Title:             strPtr(title),
		Year:              intPtr(2021),
		Medium:            strPtr("Oil on canvas"),
		Dimensions:        strPtr("60x80 cm"),
		OriginalPrice:     decPtr("90"),
		OriginalAvailable: boolPtr(true),
		PrintsAvailable:   boolPtr(true),
		PrintOptions: &models.PrintOptions{
			{Size: "8x10", Price: decimal.NewFromInt(20)},
			{Size: "16x20", Price: decimal.NewFromInt(45)},
		},
	}
}

func (f *fixture) seedArtwork(t *testing.T, title string) *models.Artwork {
	t.Helper()
	artwork, err := f.catalog.CreateArtwork(context.Background(), sunsetInput(title))
	require.NoError(t, err)
	return artwork
}

func buyer() CustomerData {
	return CustomerData{
		Email:     "Ada@Example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Phone:     "+44 20 0000 0000",
		Address:   "12 St James's Square",
		City:      "London",
		ZipCode:   "SW1Y 4JH",
		Country:   "GB",
	}
}

func printLine(artworkID int64, size string, qty int) models.CartLineItem {
	return models.CartLineItem{ArtworkID: artworkID, Type: models.PurchaseTypePrint, PrintSize: size, Quantity: qty}
}

func originalLine(artworkID int64) models.CartLineItem {
	return models.CartLineItem{ArtworkID: artworkID, Type: models.PurchaseTypeOriginal, Quantity: 1}
}

// paidIntent creates and confirms a sandbox intent for amount
func (f *fixture) paidIntent(t *testing.T, amount string) string {
	t.Helper()
	ctx := context.Background()
	intent, err := f.gateway.CreateIntent(ctx, decimal.RequireFromString(amount), "usd", "", nil)
	require.NoError(t, err)
	_, err = f.gateway.ConfirmIntent(ctx, intent.ID)
	require.NoError(t, err)
	return intent.ID
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr), "expected *apperr.Error, got %T: %v", err, err)
	require.Equal(t, kind, appErr.Kind, appErr.Error())
}
