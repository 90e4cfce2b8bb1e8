package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// PrintOption is one purchasable print size of an artwork
type PrintOption struct {
	Size  string          `json:"size"`
	Price decimal.Decimal `json:"price"`
}

// PrintOptions is stored as a JSONB array, order preserved
type PrintOptions []PrintOption

// Value implements driver.Valuer
func (p PrintOptions) Value() (driver.Value, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner
func (p *PrintOptions) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*p = PrintOptions{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported print_options type %T", src)
	}
	return json.Unmarshal(data, p)
}

// Find returns the option for a size
func (p PrintOptions) Find(size string) (PrintOption, bool) {
	for _, opt := range p {
		if opt.Size == size {
			return opt, true
		}
	}
	return PrintOption{}, false
}

// Artwork represents a catalog entry
type Artwork struct {
	ID                int64               `db:"id" json:"id"`
	Title             string              `db:"title" json:"title"`
	Slug              string              `db:"slug" json:"slug"`
	Description       string              `db:"description" json:"description"`
	Year              int                 `db:"year" json:"year"`
	Medium            string              `db:"medium" json:"medium"`
	Dimensions        string              `db:"dimensions" json:"dimensions"`
	OriginalPrice     decimal.NullDecimal `db:"original_price" json:"original_price"`
	OriginalAvailable bool                `db:"original_available" json:"original_available"`
	OriginalSold      bool                `db:"original_sold" json:"original_sold"`
	PrintsAvailable   bool                `db:"prints_available" json:"prints_available"`
	PrintOptions      PrintOptions        `db:"print_options" json:"print_options"`
	Images            pq.StringArray      `db:"images" json:"images"`
	DisplayOrder      int                 `db:"display_order" json:"display_order"`
	ArchivedAt        *time.Time          `db:"archived_at" json:"archived_at,omitempty"`
	CreatedAt         time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time           `db:"updated_at" json:"updated_at"`
}

// Archived reports whether the artwork was removed from the catalog
func (a *Artwork) Archived() bool {
	return a.ArchivedAt != nil
}

// Customer represents a buyer, keyed by email
type Customer struct {
	ID        int64     `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Phone     string    `db:"phone" json:"phone"`
	Address   string    `db:"address" json:"address"`
	City      string    `db:"city" json:"city"`
	ZipCode   string    `db:"zip_code" json:"zip_code"`
	Country   string    `db:"country" json:"country"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Order represents a customer order
type Order struct {
	ID                  int64           `db:"id" json:"id"`
	CustomerID          int64           `db:"customer_id" json:"customer_id"`
	Subtotal            decimal.Decimal `db:"subtotal" json:"subtotal"`
	ShippingCost        decimal.Decimal `db:"shipping_cost" json:"shipping_cost"`
	TotalAmount         decimal.Decimal `db:"total_amount" json:"total_amount"`
	Currency            string          `db:"currency" json:"currency"`
	PaymentMethod       string          `db:"payment_method" json:"payment_method"`
	PaymentIntentID     *string         `db:"payment_intent_id" json:"payment_intent_id,omitempty"`
	TransferReference   *string         `db:"transfer_reference" json:"transfer_reference,omitempty"`
	Status              string          `db:"status" json:"status"`
	SpecialInstructions *string         `db:"special_instructions" json:"special_instructions,omitempty"`
	IdempotencyKey      string          `db:"idempotency_key" json:"-"`
	AccessToken         string          `db:"access_token" json:"-"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem represents items in an order
type OrderItem struct {
	ID           int64           `db:"id" json:"id"`
	OrderID      int64           `db:"order_id" json:"order_id"`
	ArtworkID    int64           `db:"artwork_id" json:"artwork_id"`
	ArtworkTitle string          `db:"artwork_title" json:"artwork_title"`
	ArtworkSlug  string          `db:"artwork_slug" json:"artwork_slug"`
	Type         string          `db:"type" json:"type"`
	PrintSize    *string         `db:"print_size" json:"print_size,omitempty"`
	Quantity     int             `db:"quantity" json:"quantity"`
	UnitPrice    decimal.Decimal `db:"unit_price" json:"unit_price"`
	TotalPrice   decimal.Decimal `db:"total_price" json:"total_price"`
}

// OrderDetail is an order with its customer and line items
type OrderDetail struct {
	Order    Order       `json:"order"`
	Customer *Customer   `json:"customer,omitempty"`
	Items    []OrderItem `json:"items"`
}

// Purchase types
const (
	PurchaseTypeOriginal = "original"
	PurchaseTypePrint    = "print"
)

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
	OrderStatusFailed    = "failed"
)

// Payment methods
const (
	PaymentMethodCard         = "card"
	PaymentMethodBankTransfer = "bank_transfer"
)

// CartLineItem is one entry of a client-held cart
type CartLineItem struct {
	ID        string          `json:"id"`
	ArtworkID int64           `json:"artwork_id"`
	Type      string          `json:"type"`
	PrintSize string          `json:"print_size,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// LineTotal returns unit price times quantity
func (li CartLineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// ContactMessage is a message sent through the contact form
type ContactMessage struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Subject   string    `db:"subject" json:"subject"`
	Message   string    `db:"message" json:"message"`
	Read      bool      `db:"read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NewsletterSubscription represents a newsletter subscriber
type NewsletterSubscription struct {
	ID             int64      `db:"id" json:"id"`
	Email          string     `db:"email" json:"email"`
	Active         bool       `db:"active" json:"active"`
	SubscribedAt   time.Time  `db:"subscribed_at" json:"subscribed_at"`
	UnsubscribedAt *time.Time `db:"unsubscribed_at" json:"unsubscribed_at,omitempty"`
}

// SocialMediaSetting holds the link and visibility of one platform
type SocialMediaSetting struct {
	Platform  string    `db:"platform" json:"platform"`
	URL       string    `db:"url" json:"url"`
	Visible   bool      `db:"visible" json:"visible"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Known social platforms
const (
	PlatformInstagram = "instagram"
	PlatformFacebook  = "facebook"
	PlatformX         = "x"
	PlatformPinterest = "pinterest"
	PlatformTikTok    = "tiktok"
	PlatformYouTube   = "youtube"
	PlatformEmail     = "email"
)

// SocialPlatforms lists the supported platforms in display order
var SocialPlatforms = []string{
	PlatformInstagram,
	PlatformFacebook,
	PlatformX,
	PlatformPinterest,
	PlatformTikTok,
	PlatformYouTube,
	PlatformEmail,
}

// IsSocialPlatform reports whether name is a supported platform
func IsSocialPlatform(name string) bool {
	for _, p := range SocialPlatforms {
		if p == name {
			return true
		}
	}
	return false
}
