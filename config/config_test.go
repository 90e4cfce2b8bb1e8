package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "usd", cfg.Business.Currency)
	assert.Equal(t, 10, cfg.Business.MaxPrintQuantity)
	assert.True(t, decimal.NewFromInt(100).Equal(cfg.Shipping.FreeShippingThreshold))
	assert.True(t, decimal.NewFromInt(25).Equal(cfg.Shipping.OriginalShippingRate))
	assert.True(t, decimal.NewFromInt(15).Equal(cfg.Shipping.PrintShippingRate))
	assert.Equal(t, "sandbox", cfg.Payment.Provider)
	assert.True(t, cfg.Payment.SandboxAutoConfirm)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CURRENCY", "EUR")
	t.Setenv("SHIPPING_FREE_THRESHOLD", "250.00")
	t.Setenv("SHIPPING_PRINT_RATE", "not-a-number")
	t.Setenv("ADMIN_EMAILS", "Owner@Gallery.test, curator@gallery.test ,")
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("CHECKOUT_LOCK_TTL_SECONDS", "45")

	cfg := Load()

	assert.Equal(t, "eur", cfg.Business.Currency)
	assert.True(t, decimal.NewFromInt(250).Equal(cfg.Shipping.FreeShippingThreshold))
	assert.True(t, decimal.NewFromInt(15).Equal(cfg.Shipping.PrintShippingRate))
	assert.Equal(t, []string{"owner@gallery.test", "curator@gallery.test"}, cfg.Auth.AdminEmails)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, 45*time.Second, cfg.Business.CheckoutLockTTL)
}
