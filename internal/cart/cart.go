// Package cart implements the client-held shopping cart: a JSON array of
// line items kept in a key-value store owned by the client. The server never
// persists carts; it only normalises the items submitted at checkout.
//
// Callers clear the cart only after an order was durably created.
package cart

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"

	"gallery-service/internal/apperr"
	"gallery-service/internal/models"
	"gallery-service/internal/pricing"
)

// StorageKey is the key the cart is stored under
const StorageKey = "cart"

// DefaultMaxPrintQuantity caps the quantity of a single print line
const DefaultMaxPrintQuantity = 10

// Storage is the client-local key-value store holding the serialized cart
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// LineItemID builds the de-duplication id of a line item
func LineItemID(artworkID int64, itemType, printSize string) string {
	if itemType == models.PurchaseTypeOriginal {
		printSize = ""
	}
	return fmt.Sprintf("%d-%s-%s", artworkID, itemType, printSize)
}

// Decode parses a serialized cart. Empty or blank input is an empty cart.
func Decode(data string) ([]models.CartLineItem, error) {
	if strings.TrimSpace(data) == "" || strings.TrimSpace(data) == "null" {
		return []models.CartLineItem{}, nil
	}
	var items []models.CartLineItem
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	if items == nil {
		items = []models.CartLineItem{}
	}
	return items, nil
}

// Encode serializes a cart
func Encode(items []models.CartLineItem) (string, error) {
	if items == nil {
		items = []models.CartLineItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode cart: %w", err)
	}
	return string(data), nil
}

// Repository is the cart API used by clients
type Repository struct {
	storage          Storage
	maxPrintQuantity int
	mu               sync.Mutex
}

// NewRepository creates a cart repository over storage
func NewRepository(storage Storage, maxPrintQuantity int) *Repository {
	if maxPrintQuantity <= 0 {
		maxPrintQuantity = DefaultMaxPrintQuantity
	}
	return &Repository{
		storage:          storage,
		maxPrintQuantity: maxPrintQuantity,
	}
}

// GetCart returns the stored cart; a missing value is an empty cart
func (r *Repository) GetCart() ([]models.CartLineItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// SetCart replaces the stored cart
func (r *Repository) SetCart(items []models.CartLineItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(items)
}

// AddItem adds a line item, merging quantities with an existing line for the
// same artwork, type and size. Originals stay at quantity 1 and prints are
// capped at the configured maximum.
func (r *Repository) AddItem(item models.CartLineItem) ([]models.CartLineItem, error) {
	if item.Type == models.PurchaseTypeOriginal && item.Quantity > 1 {
		item.Quantity = 1
	}
	if err := validateLine(item, math.MaxInt32); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.load()
	if err != nil {
		return nil, err
	}

	item.ID = LineItemID(item.ArtworkID, item.Type, item.PrintSize)
	merged := false
	for i := range items {
		if items[i].ID == item.ID {
			items[i].Quantity = r.capQuantity(items[i].Type, items[i].Quantity+item.Quantity)
			merged = true
			break
		}
	}
	if !merged {
		item.Quantity = r.capQuantity(item.Type, item.Quantity)
		items = append(items, item)
	}

	if err := r.save(items); err != nil {
		return nil, err
	}
	return items, nil
}

// RemoveItem removes a line item by id
func (r *Repository) RemoveItem(id string) ([]models.CartLineItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.load()
	if err != nil {
		return nil, err
	}

	kept := items[:0]
	for _, item := range items {
		if item.ID != id {
			kept = append(kept, item)
		}
	}

	if err := r.save(kept); err != nil {
		return nil, err
	}
	return kept, nil
}

// UpdateQuantity sets the quantity of a line; zero or less removes it
func (r *Repository) UpdateQuantity(id string, quantity int) ([]models.CartLineItem, error) {
	if quantity <= 0 {
		return r.RemoveItem(id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.load()
	if err != nil {
		return nil, err
	}

	found := false
	for i := range items {
		if items[i].ID == id {
			items[i].Quantity = r.capQuantity(items[i].Type, quantity)
			found = true
			break
		}
	}
	if !found {
		return nil, apperr.NotFound("cart item", id)
	}

	if err := r.save(items); err != nil {
		return nil, err
	}
	return items, nil
}

// Clear empties the cart
func (r *Repository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.storage.Delete(StorageKey)
}

// Totals prices the stored cart for display. The server recomputes the
// authoritative amount at checkout.
func (r *Repository) Totals(rates pricing.Rates) (pricing.Totals, error) {
	items, err := r.GetCart()
	if err != nil {
		return pricing.Totals{}, err
	}
	return pricing.ComputeTotals(items, rates), nil
}

func (r *Repository) capQuantity(itemType string, quantity int) int {
	if itemType == models.PurchaseTypeOriginal {
		return 1
	}
	if quantity > r.maxPrintQuantity {
		return r.maxPrintQuantity
	}
	return quantity
}

func (r *Repository) load() ([]models.CartLineItem, error) {
	raw, ok, err := r.storage.Get(StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	if !ok {
		return []models.CartLineItem{}, nil
	}
	return Decode(raw)
}

func (r *Repository) save(items []models.CartLineItem) error {
	data, err := Encode(items)
	if err != nil {
		return err
	}
	if err := r.storage.Set(StorageKey, data); err != nil {
		return fmt.Errorf("failed to write cart: %w", err)
	}
	return nil
}

// MemoryStorage is an in-process Storage
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStorage creates an empty MemoryStorage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
