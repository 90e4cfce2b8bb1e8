// Package memory is an in-process implementation of the gallery store, lock
// and cache used by tests and local runs without Postgres or Redis.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gallery-service/internal/models"
	"gallery-service/internal/redisclient"
	"gallery-service/internal/store"

	"github.com/shopspring/decimal"
)

// Store mirrors the constraints of the Postgres schema
type Store struct {
	mu sync.Mutex

	artworks      map[int64]models.Artwork
	customers     map[int64]models.Customer
	orders        map[int64]models.Order
	items         map[int64][]models.OrderItem
	messages      map[int64]models.ContactMessage
	subscriptions map[string]models.NewsletterSubscription
	social        map[string]models.SocialMediaSetting

	nextID   int64
	failures map[string]error
}

func NewStore() *Store {
	return &Store{
		artworks:      make(map[int64]models.Artwork),
		customers:     make(map[int64]models.Customer),
		orders:        make(map[int64]models.Order),
		items:         make(map[int64][]models.OrderItem),
		messages:      make(map[int64]models.ContactMessage),
		subscriptions: make(map[string]models.NewsletterSubscription),
		social:        make(map[string]models.SocialMediaSetting),
		failures:      make(map[string]error),
	}
}

// FailNext makes the next call of the named method return err
func (s *Store) FailNext(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

func (s *Store) failure(method string) error {
	err := s.failures[method]
	delete(s.failures, method)
	return err
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// OrderCount returns the number of stored orders
func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *Store) ListArtworks(ctx context.Context, includeArchived bool) ([]models.Artwork, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	artworks := []models.Artwork{}
	for _, a := range s.artworks {
		if a.Archived() && !includeArchived {
			continue
		}
		artworks = append(artworks, a)
	}
	sort.Slice(artworks, func(i, j int) bool {
		if artworks[i].DisplayOrder != artworks[j].DisplayOrder {
			return artworks[i].DisplayOrder < artworks[j].DisplayOrder
		}
		return artworks[i].ID < artworks[j].ID
	})
	return artworks, nil
}

func (s *Store) GetArtworkByID(ctx context.Context, id int64) (*models.Artwork, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.artworks[id]
	if !ok {
		return nil, fmt.Errorf("artwork %d: %w", id, store.ErrNotFound)
	}
	return &a, nil
}

func (s *Store) GetArtworkBySlug(ctx context.Context, slug string) (*models.Artwork, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.artworks {
		if a.Slug == slug {
			return &a, nil
		}
	}
	return nil, fmt.Errorf("artwork %q: %w", slug, store.ErrNotFound)
}

func (s *Store) GetArtworksByIDs(ctx context.Context, ids []int64) ([]models.Artwork, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	artworks := []models.Artwork{}
	seen := make(map[int64]bool)
	for _, id := range ids {
		if a, ok := s.artworks[id]; ok && !seen[id] {
			seen[id] = true
			artworks = append(artworks, a)
		}
	}
	return artworks, nil
}

func (s *Store) SlugsWithBase(ctx context.Context, base string, excludeID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var slugs []string
	for _, a := range s.artworks {
		if a.ID == excludeID {
			continue
		}
		if a.Slug == base || strings.HasPrefix(a.Slug, base+"-") {
			slugs = append(slugs, a.Slug)
		}
	}
	return slugs, nil
}

func (s *Store) NextDisplayOrder(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := 0
	for _, a := range s.artworks {
		if a.DisplayOrder+1 > next {
			next = a.DisplayOrder + 1
		}
	}
	return next, nil
}

func (s *Store) slugTaken(slug string, excludeID int64) bool {
	for _, a := range s.artworks {
		if a.Slug == slug && a.ID != excludeID {
			return true
		}
	}
	return false
}

func (s *Store) CreateArtwork(ctx context.Context, a *models.Artwork) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("CreateArtwork"); err != nil {
		return err
	}
	if s.slugTaken(a.Slug, 0) {
		return store.ErrSlugTaken
	}
	now := time.Now().UTC()
	a.ID = s.id()
	a.CreatedAt, a.UpdatedAt = now, now
	if a.PrintOptions == nil {
		a.PrintOptions = models.PrintOptions{}
	}
	s.artworks[a.ID] = *a
	return nil
}

func (s *Store) UpdateArtwork(ctx context.Context, a *models.Artwork) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.artworks[a.ID]
	if !ok || existing.Archived() {
		return fmt.Errorf("artwork %d: %w", a.ID, store.ErrNotFound)
	}
	if s.slugTaken(a.Slug, a.ID) {
		return store.ErrSlugTaken
	}
	a.CreatedAt = existing.CreatedAt
	a.DisplayOrder = existing.DisplayOrder
	a.ArchivedAt = nil
	a.UpdatedAt = time.Now().UTC()
	s.artworks[a.ID] = *a
	return nil
}

func (s *Store) ArchiveArtwork(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.artworks[id]
	if !ok || a.Archived() {
		return fmt.Errorf("artwork %d: %w", id, store.ErrNotFound)
	}
	now := time.Now().UTC()
	a.ArchivedAt = &now
	a.UpdatedAt = now
	s.artworks[id] = a
	return nil
}

func (s *Store) ReorderArtworks(ctx context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if a, ok := s.artworks[id]; !ok || a.Archived() {
			return fmt.Errorf("reorder references unknown artworks: %w", store.ErrNotFound)
		}
	}
	listed := make(map[int64]bool, len(ids))
	for _, id := range ids {
		listed[id] = true
	}
	var rest []models.Artwork
	for _, a := range s.artworks {
		if !listed[a.ID] && !a.Archived() {
			rest = append(rest, a)
		}
	}
	sort.Slice(rest, func(i, j int) bool {
		if rest[i].DisplayOrder != rest[j].DisplayOrder {
			return rest[i].DisplayOrder < rest[j].DisplayOrder
		}
		return rest[i].ID < rest[j].ID
	})

	now := time.Now().UTC()
	order := make([]int64, 0, len(ids)+len(rest))
	order = append(order, ids...)
	for _, a := range rest {
		order = append(order, a.ID)
	}
	for pos, id := range order {
		a := s.artworks[id]
		a.DisplayOrder = pos
		a.UpdatedAt = now
		s.artworks[id] = a
	}
	return nil
}

func (s *Store) UpsertCustomer(ctx context.Context, c *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("UpsertCustomer"); err != nil {
		return err
	}
	now := time.Now().UTC()
	for id, existing := range s.customers {
		if existing.Email == c.Email {
			c.ID = id
			c.CreatedAt = existing.CreatedAt
			c.UpdatedAt = now
			s.customers[id] = *c
			return nil
		}
	}
	c.ID = s.id()
	c.CreatedAt, c.UpdatedAt = now, now
	s.customers[c.ID] = *c
	return nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %d: %w", id, store.ErrNotFound)
	}
	return &c, nil
}

func (s *Store) GetCustomersByIDs(ctx context.Context, ids []int64) ([]models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers := []models.Customer{}
	seen := make(map[int64]bool)
	for _, id := range ids {
		if c, ok := s.customers[id]; ok && !seen[id] {
			seen[id] = true
			customers = append(customers, c)
		}
	}
	return customers, nil
}

// CreateOrderWithItems stores the order and items or nothing at all
func (s *Store) CreateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("CreateOrderWithItems"); err != nil {
		return err
	}
	for _, o := range s.orders {
		if o.IdempotencyKey == order.IdempotencyKey {
			return store.ErrDuplicateIdempotencyKey
		}
		if order.PaymentIntentID != nil && o.PaymentIntentID != nil && *o.PaymentIntentID == *order.PaymentIntentID {
			return store.ErrPaymentIntentUsed
		}
	}
	if _, ok := s.customers[order.CustomerID]; !ok {
		return fmt.Errorf("failed to insert order: customer %d does not exist", order.CustomerID)
	}
	if !order.TotalAmount.Equal(order.Subtotal.Add(order.ShippingCost)) {
		return fmt.Errorf("failed to insert order: total does not equal subtotal plus shipping")
	}
	for i, item := range items {
		if _, ok := s.artworks[item.ArtworkID]; !ok {
			return fmt.Errorf("failed to insert order item %d: artwork %d does not exist", i, item.ArtworkID)
		}
		if !item.TotalPrice.Equal(item.UnitPrice.Mul(decimalInt(item.Quantity))) {
			return fmt.Errorf("failed to insert order item %d: total_price mismatch", i)
		}
		if item.Type == models.PurchaseTypeOriginal {
			a := s.artworks[item.ArtworkID]
			if !a.OriginalAvailable || a.OriginalSold || a.Archived() {
				return fmt.Errorf("artwork %d: %w", item.ArtworkID, store.ErrOriginalSold)
			}
		}
	}

	now := time.Now().UTC()
	order.ID = s.id()
	order.CreatedAt, order.UpdatedAt = now, now
	stored := make([]models.OrderItem, len(items))
	for i := range items {
		items[i].ID = s.id()
		items[i].OrderID = order.ID
		stored[i] = items[i]
	}
	for _, item := range stored {
		if item.Type == models.PurchaseTypeOriginal {
			s.setOriginalSold(item.ArtworkID, true)
		}
	}
	s.orders[order.ID] = *order
	s.items[order.ID] = stored
	return nil
}

func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, store.ErrNotFound)
	}
	return &o, nil
}

func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.orders {
		if o.IdempotencyKey == key {
			return &o, nil
		}
	}
	return nil, nil
}

func (s *Store) ListOrders(ctx context.Context, status string) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := []models.Order{}
	for _, o := range s.orders {
		if status == "" || o.Status == status {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID > orders[j].ID })
	return orders, nil
}

func (s *Store) TransitionOrderStatus(ctx context.Context, orderID int64, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("TransitionOrderStatus"); err != nil {
		return err
	}
	o, ok := s.orders[orderID]
	if !ok || o.Status != from {
		return fmt.Errorf("order %d not %s: %w", orderID, from, store.ErrStatusChanged)
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	s.orders[orderID] = o

	if to == models.OrderStatusCancelled || to == models.OrderStatusFailed {
		for _, item := range s.items[orderID] {
			if item.Type == models.PurchaseTypeOriginal {
				s.setOriginalSold(item.ArtworkID, false)
			}
		}
	}
	return nil
}

func (s *Store) setOriginalSold(artworkID int64, sold bool) {
	a := s.artworks[artworkID]
	a.OriginalSold = sold
	a.UpdatedAt = time.Now().UTC()
	s.artworks[artworkID] = a
}

func (s *Store) SetOrderPaymentIntent(ctx context.Context, orderID int64, intentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, other := range s.orders {
		if id != orderID && other.PaymentIntentID != nil && *other.PaymentIntentID == intentID {
			return store.ErrPaymentIntentUsed
		}
	}
	o, ok := s.orders[orderID]
	if !ok {
		return nil
	}
	o.PaymentIntentID = &intentID
	o.UpdatedAt = time.Now().UTC()
	s.orders[orderID] = o
	return nil
}

func (s *Store) SetOrderTransferReference(ctx context.Context, orderID int64, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("SetOrderTransferReference"); err != nil {
		return err
	}
	o, ok := s.orders[orderID]
	if !ok {
		return nil
	}
	o.TransferReference = &reference
	o.UpdatedAt = time.Now().UTC()
	s.orders[orderID] = o
	return nil
}

func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]models.OrderItem{}, s.items[orderID]...), nil
}

func (s *Store) GetOrderItemsByOrderIDs(ctx context.Context, orderIDs []int64) ([]models.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := []models.OrderItem{}
	for _, id := range orderIDs {
		items = append(items, s.items[id]...)
	}
	return items, nil
}

func (s *Store) CreateContactMessage(ctx context.Context, m *models.ContactMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.id()
	m.Read = false
	m.CreatedAt = time.Now().UTC()
	s.messages[m.ID] = *m
	return nil
}

func (s *Store) ListContactMessages(ctx context.Context) ([]models.ContactMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := []models.ContactMessage{}
	for _, m := range s.messages {
		messages = append(messages, m)
	}
	sort.Slice(messages, func(i, j int) bool { return messages[i].ID > messages[j].ID })
	return messages, nil
}

func (s *Store) MarkContactMessageRead(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return fmt.Errorf("contact message %d: %w", id, store.ErrNotFound)
	}
	m.Read = true
	s.messages[id] = m
	return nil
}

func (s *Store) DeleteContactMessage(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[id]; !ok {
		return fmt.Errorf("contact message %d: %w", id, store.ErrNotFound)
	}
	delete(s.messages, id)
	return nil
}

func (s *Store) Subscribe(ctx context.Context, email string) (*models.NewsletterSubscription, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	sub, ok := s.subscriptions[email]
	activated := !ok || !sub.Active
	switch {
	case !ok:
		sub = models.NewsletterSubscription{ID: s.id(), Email: email, Active: true, SubscribedAt: now}
	case !sub.Active:
		sub.Active = true
		sub.SubscribedAt = now
		sub.UnsubscribedAt = nil
	}
	s.subscriptions[email] = sub
	return &sub, activated, nil
}

func (s *Store) Unsubscribe(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[email]
	if !ok || !sub.Active {
		return fmt.Errorf("subscription %q: %w", email, store.ErrNotFound)
	}
	now := time.Now().UTC()
	sub.Active = false
	sub.UnsubscribedAt = &now
	s.subscriptions[email] = sub
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context) ([]models.NewsletterSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := []models.NewsletterSubscription{}
	for _, sub := range s.subscriptions {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].Active != subs[j].Active {
			return subs[i].Active
		}
		return subs[i].ID > subs[j].ID
	})
	return subs, nil
}

func (s *Store) ListSocialMediaSettings(ctx context.Context) ([]models.SocialMediaSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := []models.SocialMediaSetting{}
	for _, setting := range s.social {
		settings = append(settings, setting)
	}
	return settings, nil
}

func (s *Store) UpsertSocialMediaSetting(ctx context.Context, setting *models.SocialMediaSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	setting.UpdatedAt = time.Now().UTC()
	s.social[setting.Platform] = *setting
	return nil
}

// Locker is a process-local stand-in for the Redis checkout lock
type Locker struct {
	mu    sync.Mutex
	locks map[string]time.Time
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]time.Time)}
}

func (l *Locker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expires, ok := l.locks[key]; ok && time.Now().Before(expires) {
		return false, nil
	}
	l.locks[key] = time.Now().Add(ttl)
	return true, nil
}

func (l *Locker) ReleaseLock(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, key)
	return nil
}

// Cache is a process-local JSON cache without expiry
type Cache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string][]byte)}
}

func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	data, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return redisclient.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[key] = data
	c.mu.Unlock()
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func decimalInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}
