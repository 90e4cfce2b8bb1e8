package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gallery-service/internal/apperr"
	"gallery-service/internal/broker"
	"gallery-service/internal/cart"
	"gallery-service/internal/models"
	"gallery-service/internal/payment"
	"gallery-service/internal/pricing"
	"gallery-service/internal/store"
	"gallery-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const maxIdempotencyKeyLength = 255

// OrderOptions configures checkout. CatalogCache, when set, is invalidated
// whenever an order changes whether an original is for sale.
type OrderOptions struct {
	Currency         string
	Rates            pricing.Rates
	MaxPrintQuantity int
	LockTTL          time.Duration
	CatalogCache     Cache
}

// OrderService handles checkout and order administration
type OrderService struct {
	orders         OrderStore
	catalog        CatalogStore
	customers      CustomerStore
	resolver       *CustomerResolver
	gateway        payment.Gateway
	locker         Locker
	eventPublisher *broker.EventPublisher
	opts           OrderOptions
	logger         *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	orders OrderStore,
	catalog CatalogStore,
	customers CustomerStore,
	gateway payment.Gateway,
	locker Locker,
	eventPublisher *broker.EventPublisher,
	opts OrderOptions,
) *OrderService {
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	if opts.MaxPrintQuantity <= 0 {
		opts.MaxPrintQuantity = cart.DefaultMaxPrintQuantity
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	return &OrderService{
		orders:         orders,
		catalog:        catalog,
		customers:      customers,
		resolver:       NewCustomerResolver(customers),
		gateway:        gateway,
		locker:         locker,
		eventPublisher: eventPublisher,
		opts:           opts,
		logger:         util.GetLogger(),
	}
}

// PaymentIntentRequest asks for a card payment intent covering a cart
type PaymentIntentRequest struct {
	Items    []models.CartLineItem `json:"items"`
	Amount   *decimal.Decimal      `json:"amount,omitempty"`
	Currency string                `json:"currency,omitempty"`
}

// PaymentIntentResponse carries the intent handle and the server totals
type PaymentIntentResponse struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
	Currency        string `json:"currency"`
	pricing.Totals
}

// CreateOrderRequest represents a checkout submission
type CreateOrderRequest struct {
	Customer            CustomerData          `json:"customer"`
	Items               []models.CartLineItem `json:"items"`
	PaymentMethod       string                `json:"payment_method"`
	PaymentIntentID     string                `json:"payment_intent_id,omitempty"`
	SpecialInstructions string                `json:"special_instructions,omitempty"`
	Currency            string                `json:"currency,omitempty"`
	IdempotencyKey      string                `json:"idempotency_key,omitempty"`
}

// TransferDetails tells the buyer where to send a bank transfer
type TransferDetails struct {
	Reference   string          `json:"reference"`
	AccountName string          `json:"account_name,omitempty"`
	IBAN        string          `json:"iban,omitempty"`
	BIC         string          `json:"bic,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
}

// CheckoutResult is returned by CreateOrder
type CheckoutResult struct {
	models.OrderDetail
	AccessToken string           `json:"access_token"`
	Transfer    *TransferDetails `json:"transfer_instructions,omitempty"`
	Replayed    bool             `json:"replayed"`
}

// QuotePaymentIntent prices the cart and opens a processor intent for the
// server-computed total. A client-supplied amount is ignored.
func (s *OrderService) QuotePaymentIntent(ctx context.Context, req *PaymentIntentRequest) (*PaymentIntentResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.QuotePaymentIntent")
	defer span.End()

	if err := s.checkCurrency(req.Currency); err != nil {
		return nil, err
	}
	_, totals, err := s.priceCart(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	if req.Amount != nil && !req.Amount.Equal(totals.Total) {
		s.logger.Info("Client amount differs from server total",
			zap.String("client_amount", req.Amount.String()),
			zap.String("server_total", totals.Total.StringFixed(2)))
	}

	intent, err := s.gateway.CreateIntent(ctx, totals.Total, s.opts.Currency, "intent-"+uuid.New().String(), map[string]string{
		"source": "gallery-checkout",
	})
	if err != nil {
		util.PaymentIntentsTotal.WithLabelValues("error").Inc()
		util.RecordError(span, err)
		return nil, apperr.Payment("failed to create payment intent", err)
	}
	util.PaymentIntentsTotal.WithLabelValues("created").Inc()
	span.SetAttributes(attribute.String("payment_intent_id", intent.ID))

	return &PaymentIntentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Currency:        s.opts.Currency,
		Totals:          totals,
	}, nil
}

// CreateOrder runs checkout. A request whose idempotency key already produced
// an order returns that order, finishing any step a failed attempt left undone.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CheckoutResult, error) {
	method := paymentMethodLabel(req.PaymentMethod)
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder",
		attribute.String("payment_method", method))
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	if err := s.validateCheckout(req); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, err
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	}
	logger := util.LoggerFromContext(ctx).With(zap.String("idempotency_key", req.IdempotencyKey))

	if result, err := s.replay(ctx, req); result != nil || err != nil {
		return result, err
	}

	lockKey := "checkout:" + req.IdempotencyKey
	locked, err := s.locker.AcquireLock(ctx, lockKey, s.opts.LockTTL)
	if err != nil {
		logger.Warn("Checkout lock unavailable, relying on unique key", zap.Error(err))
	} else if !locked {
		return nil, apperr.Conflict("a checkout with this idempotency key is already in progress")
	} else {
		defer func() {
			if err := s.locker.ReleaseLock(context.Background(), lockKey); err != nil {
				logger.Warn("Failed to release checkout lock", zap.Error(err))
			}
		}()
		if result, err := s.replay(ctx, req); result != nil || err != nil {
			return result, err
		}
	}

	lines, totals, err := s.priceCart(ctx, req.Items)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_cart").Inc()
		return nil, err
	}

	var intentID *string
	if req.PaymentMethod == models.PaymentMethodCard {
		intent, err := s.verifyIntent(ctx, req.PaymentIntentID, totals.Total, s.opts.Currency)
		if err != nil {
			util.OrdersFailedTotal.WithLabelValues("payment_unverified").Inc()
			util.RecordError(span, err)
			return nil, err
		}
		intentID = &intent.ID
	}

	customer, err := s.resolver.Resolve(ctx, req.Customer)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("customer").Inc()
		return nil, err
	}

	order := &models.Order{
		CustomerID:      customer.ID,
		Subtotal:        totals.Subtotal,
		ShippingCost:    totals.ShippingCost,
		TotalAmount:     totals.Total,
		Currency:        s.opts.Currency,
		PaymentMethod:   req.PaymentMethod,
		PaymentIntentID: intentID,
		Status:          models.OrderStatusPending,
		IdempotencyKey:  req.IdempotencyKey,
		AccessToken:     uuid.New().String(),
	}
	if instructions := strings.TrimSpace(req.SpecialInstructions); instructions != "" {
		order.SpecialInstructions = &instructions
	}
	items := buildOrderItems(lines)

	err = s.orders.CreateOrderWithItems(ctx, order, items)
	switch {
	case errors.Is(err, store.ErrDuplicateIdempotencyKey):
		logger.Info("Concurrent checkout won the idempotency key")
		if result, err := s.replay(ctx, req); result != nil || err != nil {
			return result, err
		}
		return nil, apperr.Conflict("a checkout with this idempotency key is already in progress")
	case errors.Is(err, store.ErrPaymentIntentUsed):
		util.OrdersFailedTotal.WithLabelValues("intent_reused").Inc()
		return nil, apperr.Conflict("payment intent is already attached to another order")
	case errors.Is(err, store.ErrOriginalSold):
		util.OrdersFailedTotal.WithLabelValues("original_sold").Inc()
		return nil, apperr.Conflict("an original in the cart has just been sold")
	case err != nil:
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		util.RecordError(span, err)
		return nil, apperr.Persistence("failed to create order", err)
	}

	util.OrdersCreatedTotal.WithLabelValues(order.PaymentMethod).Inc()
	span.SetAttributes(attribute.Int64("order_id", order.ID))
	logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("customer_id", customer.ID),
		zap.String("total", order.TotalAmount.StringFixed(2)))

	s.originalsChanged(ctx, items)
	s.publishOrderCreated(ctx, order, customer, items)

	detail := models.OrderDetail{Order: *order, Customer: customer, Items: items}
	return s.finishCheckout(ctx, &detail, false)
}

// replay returns the checkout result of an existing order for the request's
// idempotency key, or nil. The request must come from the same buyer.
func (s *OrderService) replay(ctx context.Context, req *CreateOrderRequest) (*CheckoutResult, error) {
	key := req.IdempotencyKey
	existing, err := s.orders.GetOrderByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, apperr.Persistence("failed to check idempotency", err)
	}
	if existing == nil {
		return nil, nil
	}

	logger := util.LoggerFromContext(ctx).With(
		zap.String("idempotency_key", key),
		zap.Int64("order_id", existing.ID))

	detail, err := s.loadDetail(ctx, existing)
	if err != nil {
		return nil, err
	}
	if detail.Customer == nil || detail.Customer.Email != NormalizeEmail(req.Customer.Email) {
		util.OrdersFailedTotal.WithLabelValues("idempotency_mismatch").Inc()
		logger.Warn("Idempotency key reused by a different buyer")
		return nil, apperr.Conflict("idempotency key was already used for another checkout")
	}

	util.DuplicateCheckoutsTotal.Inc()
	logger.Info("Duplicate checkout request detected")
	return s.finishCheckout(ctx, detail, true)
}

// finishCheckout drives a pending order through its payment-specific last
// step. Failures leave the order pending for a retry or an admin.
func (s *OrderService) finishCheckout(ctx context.Context, detail *models.OrderDetail, replayed bool) (*CheckoutResult, error) {
	order := &detail.Order
	result := &CheckoutResult{AccessToken: order.AccessToken, Replayed: replayed}

	switch order.PaymentMethod {
	case models.PaymentMethodCard:
		if order.Status == models.OrderStatusPending {
			if err := s.complete(ctx, order); err != nil {
				return nil, err
			}
		}
	case models.PaymentMethodBankTransfer:
		if order.Status != models.OrderStatusPending {
			if order.TransferReference != nil {
				result.Transfer = &TransferDetails{Reference: *order.TransferReference, Amount: order.TotalAmount, Currency: order.Currency}
			}
			break
		}
		transfer, err := s.transferInstruction(ctx, order)
		if err != nil {
			return nil, err
		}
		result.Transfer = transfer
	}

	result.OrderDetail = *detail
	return result, nil
}

// complete moves a pending order to completed
func (s *OrderService) complete(ctx context.Context, order *models.Order) error {
	err := s.orders.TransitionOrderStatus(ctx, order.ID, models.OrderStatusPending, models.OrderStatusCompleted)
	if errors.Is(err, store.ErrStatusChanged) {
		current, getErr := s.orders.GetOrderByID(ctx, order.ID)
		if getErr != nil {
			return apperr.Persistence("failed to reload order", getErr)
		}
		if current.Status == models.OrderStatusCompleted {
			*order = *current
			return nil
		}
		return apperr.Conflict(fmt.Sprintf("order %d is %s", order.ID, current.Status))
	}
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("completion").Inc()
		s.logger.Error("Order left pending: completion write failed",
			zap.Int64("order_id", order.ID), zap.Error(err))
		return apperr.Persistence(fmt.Sprintf("order %d was created but could not be marked completed", order.ID), err)
	}

	order.Status = models.OrderStatusCompleted
	order.UpdatedAt = time.Now().UTC()
	util.OrdersCompletedTotal.Inc()
	s.logger.Info("Order completed", zap.Int64("order_id", order.ID))

	intentID := ""
	if order.PaymentIntentID != nil {
		intentID = *order.PaymentIntentID
	}
	event := &models.OrderCompletedEvent{
		BaseEvent:       broker.NewBaseEvent(models.EventTypeOrderCompleted),
		OrderID:         order.ID,
		CustomerID:      order.CustomerID,
		TotalAmount:     order.TotalAmount,
		PaymentIntentID: intentID,
	}
	if err := s.eventPublisher.PublishOrderCompleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCompleted event", zap.Error(err))
	}
	return nil
}

// transferInstruction fetches transfer details keyed to the order and records
// the reference the first time
func (s *OrderService) transferInstruction(ctx context.Context, order *models.Order) (*TransferDetails, error) {
	instruction, err := s.gateway.CreateTransferInstruction(ctx, order.ID, order.TotalAmount, order.Currency)
	if err != nil {
		if order.TransferReference != nil {
			s.logger.Warn("Transfer details unavailable, returning stored reference",
				zap.Int64("order_id", order.ID), zap.Error(err))
			return &TransferDetails{Reference: *order.TransferReference, Amount: order.TotalAmount, Currency: order.Currency}, nil
		}
		util.OrdersFailedTotal.WithLabelValues("transfer_instruction").Inc()
		s.logger.Error("Order left pending: transfer instruction failed",
			zap.Int64("order_id", order.ID), zap.Error(err))
		return nil, apperr.Payment(fmt.Sprintf("order %d was created but transfer instructions are unavailable; retry to fetch them", order.ID), err)
	}

	if order.TransferReference == nil {
		if err := s.orders.SetOrderTransferReference(ctx, order.ID, instruction.Reference); err != nil {
			return nil, apperr.Persistence("failed to record transfer reference", err)
		}
		order.TransferReference = &instruction.Reference
	}

	return &TransferDetails{
		Reference:   instruction.Reference,
		AccountName: instruction.AccountName,
		IBAN:        instruction.IBAN,
		BIC:         instruction.BIC,
		Amount:      instruction.Amount,
		Currency:    instruction.Currency,
	}, nil
}

// CompleteOrder confirms a pending order with a succeeded payment intent
// covering exactly the order total. Completing a completed order with the
// same intent is a no-op.
func (s *OrderService) CompleteOrder(ctx context.Context, id int64, intentID, accessToken string, isAdmin bool) (*models.OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CompleteOrder", attribute.Int64("order_id", id))
	defer span.End()

	order, err := s.authorizedOrder(ctx, id, accessToken, isAdmin)
	if err != nil {
		return nil, err
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, apperr.Validation("invalid completion", map[string]string{"payment_intent_id": "is required"})
	}

	switch {
	case order.Status == models.OrderStatusCompleted:
		if order.PaymentIntentID != nil && *order.PaymentIntentID == intentID {
			return s.loadDetail(ctx, order)
		}
		return nil, apperr.Conflict(fmt.Sprintf("order %d is already completed", id))
	case order.Status != models.OrderStatusPending:
		return nil, apperr.Conflict(fmt.Sprintf("order %d is %s", id, order.Status))
	case order.PaymentIntentID != nil && *order.PaymentIntentID != intentID:
		return nil, apperr.Validation("invalid completion", map[string]string{
			"payment_intent_id": "does not belong to this order",
		})
	}

	if _, err := s.verifyIntent(ctx, intentID, order.TotalAmount, order.Currency); err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	if order.PaymentIntentID == nil {
		err := s.orders.SetOrderPaymentIntent(ctx, order.ID, intentID)
		if errors.Is(err, store.ErrPaymentIntentUsed) {
			return nil, apperr.Conflict("payment intent is already attached to another order")
		}
		if err != nil {
			return nil, apperr.Persistence("failed to record payment intent", err)
		}
		order.PaymentIntentID = &intentID
	}

	if err := s.complete(ctx, order); err != nil {
		return nil, err
	}
	return s.loadDetail(ctx, order)
}

// GetOrder returns an order with its customer and items. Callers other than
// admins must present the order's access token; a wrong token reads as not found.
func (s *OrderService) GetOrder(ctx context.Context, id int64, accessToken string, isAdmin bool) (*models.OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder", attribute.Int64("order_id", id))
	defer span.End()

	order, err := s.authorizedOrder(ctx, id, accessToken, isAdmin)
	if err != nil {
		return nil, err
	}
	return s.loadDetail(ctx, order)
}

// ListOrders returns orders newest first with customers and items
func (s *OrderService) ListOrders(ctx context.Context, status string) ([]models.OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders", attribute.String("status", status))
	defer span.End()

	if status != "" && !validStatus(status) {
		return nil, apperr.Validation("invalid filter", map[string]string{"status": "is not a known order status"})
	}

	orders, err := s.orders.ListOrders(ctx, status)
	if err != nil {
		return nil, apperr.Persistence("failed to list orders", err)
	}
	if len(orders) == 0 {
		return []models.OrderDetail{}, nil
	}

	orderIDs := make([]int64, len(orders))
	customerIDs := make([]int64, 0, len(orders))
	for i, o := range orders {
		orderIDs[i] = o.ID
		customerIDs = append(customerIDs, o.CustomerID)
	}

	items, err := s.orders.GetOrderItemsByOrderIDs(ctx, orderIDs)
	if err != nil {
		return nil, apperr.Persistence("failed to list order items", err)
	}
	customers, err := s.customers.GetCustomersByIDs(ctx, customerIDs)
	if err != nil {
		return nil, apperr.Persistence("failed to list customers", err)
	}

	itemsByOrder := make(map[int64][]models.OrderItem, len(orders))
	for _, item := range items {
		itemsByOrder[item.OrderID] = append(itemsByOrder[item.OrderID], item)
	}
	customerByID := make(map[int64]*models.Customer, len(customers))
	for i := range customers {
		customerByID[customers[i].ID] = &customers[i]
	}

	details := make([]models.OrderDetail, len(orders))
	for i, o := range orders {
		orderItems := itemsByOrder[o.ID]
		if orderItems == nil {
			orderItems = []models.OrderItem{}
		}
		details[i] = models.OrderDetail{Order: o, Customer: customerByID[o.CustomerID], Items: orderItems}
	}
	return details, nil
}

// UpdateOrderStatus moves a pending order to completed, cancelled or failed.
// Any other transition is a conflict.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id int64, status string) (*models.OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrderStatus",
		attribute.Int64("order_id", id), attribute.String("status", status))
	defer span.End()

	if !validStatus(status) {
		return nil, apperr.Validation("invalid status", map[string]string{"status": "must be pending, completed, cancelled or failed"})
	}

	order, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		return nil, persistenceErr(err, "failed to get order", "order", id)
	}
	if order.Status != models.OrderStatusPending || status == models.OrderStatusPending {
		return nil, apperr.Conflict(fmt.Sprintf("cannot change order %d from %s to %s", id, order.Status, status))
	}

	from := order.Status
	if status == models.OrderStatusCompleted {
		if err := s.complete(ctx, order); err != nil {
			return nil, err
		}
	} else {
		err := s.orders.TransitionOrderStatus(ctx, id, from, status)
		if errors.Is(err, store.ErrStatusChanged) {
			return nil, apperr.Conflict(fmt.Sprintf("order %d changed status concurrently", id))
		}
		if err != nil {
			util.RecordError(span, err)
			return nil, apperr.Persistence("failed to update order status", err)
		}
		order.Status = status
	}

	s.logger.Info("Order status changed",
		zap.Int64("order_id", id), zap.String("from", from), zap.String("to", status))
	event := &models.OrderStatusChangedEvent{
		BaseEvent:  broker.NewBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:    id,
		FromStatus: from,
		ToStatus:   status,
	}
	if err := s.eventPublisher.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
	}

	detail, err := s.loadDetail(ctx, order)
	if err != nil {
		return nil, err
	}
	if status != models.OrderStatusCompleted {
		s.originalsChanged(ctx, detail.Items)
	}
	return detail, nil
}

// originalsChanged drops the cached catalog when items include an original
func (s *OrderService) originalsChanged(ctx context.Context, items []models.OrderItem) {
	if s.opts.CatalogCache == nil {
		return
	}
	for _, item := range items {
		if item.Type == models.PurchaseTypeOriginal {
			if err := s.opts.CatalogCache.Delete(ctx, artworkListCacheKey); err != nil {
				s.logger.Warn("Catalog cache invalidation failed", zap.Error(err))
			}
			return
		}
	}
}

func (s *OrderService) authorizedOrder(ctx context.Context, id int64, accessToken string, isAdmin bool) (*models.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		return nil, persistenceErr(err, "failed to get order", "order", id)
	}
	if !isAdmin && subtle.ConstantTimeCompare([]byte(order.AccessToken), []byte(accessToken)) != 1 {
		return nil, apperr.NotFound("order", id)
	}
	return order, nil
}

func (s *OrderService) loadDetail(ctx context.Context, order *models.Order) (*models.OrderDetail, error) {
	items, err := s.orders.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, apperr.Persistence("failed to load order items", err)
	}
	customer, err := s.customers.GetCustomerByID(ctx, order.CustomerID)
	if err != nil {
		return nil, persistenceErr(err, "failed to load customer", "customer", order.CustomerID)
	}
	return &models.OrderDetail{Order: *order, Customer: customer, Items: items}, nil
}

func (s *OrderService) validateCheckout(req *CreateOrderRequest) error {
	fields := req.Customer.Validate("customer.")
	switch req.PaymentMethod {
	case models.PaymentMethodCard:
		if strings.TrimSpace(req.PaymentIntentID) == "" {
			fields["payment_intent_id"] = "is required for card payments"
		}
	case models.PaymentMethodBankTransfer:
	default:
		fields["payment_method"] = "must be card or bank_transfer"
	}
	if len(req.Items) == 0 {
		fields["items"] = "at least one item is required"
	}
	if len(req.IdempotencyKey) > maxIdempotencyKeyLength {
		fields["idempotency_key"] = fmt.Sprintf("must be at most %d characters", maxIdempotencyKeyLength)
	}
	if err := s.checkCurrency(req.Currency); err != nil {
		fields["currency"] = "must be " + s.opts.Currency
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid checkout request", fields)
	}
	return nil
}

func (s *OrderService) checkCurrency(currency string) error {
	if currency != "" && strings.ToLower(currency) != s.opts.Currency {
		return apperr.Validation("unsupported currency", map[string]string{"currency": "must be " + s.opts.Currency})
	}
	return nil
}

// priceCart normalises the cart and replaces every unit price with the
// catalog price
func (s *OrderService) priceCart(ctx context.Context, items []models.CartLineItem) ([]pricedLine, pricing.Totals, error) {
	lines, err := cart.Normalize(items, s.opts.MaxPrintQuantity)
	if err != nil {
		return nil, pricing.Totals{}, err
	}

	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ArtworkID)
	}
	artworks, err := s.catalog.GetArtworksByIDs(ctx, ids)
	if err != nil {
		return nil, pricing.Totals{}, apperr.Persistence("failed to load artworks", err)
	}
	byID := make(map[int64]*models.Artwork, len(artworks))
	for i := range artworks {
		if !artworks[i].Archived() {
			byID[artworks[i].ID] = &artworks[i]
		}
	}

	var missing []string
	fields := map[string]string{}
	priced := make([]pricedLine, 0, len(lines))
	for i, line := range lines {
		artwork, ok := byID[line.ArtworkID]
		if !ok {
			missing = append(missing, strconv.FormatInt(line.ArtworkID, 10))
			continue
		}

		switch line.Type {
		case models.PurchaseTypeOriginal:
			if !artwork.OriginalAvailable || artwork.OriginalSold || !artwork.OriginalPrice.Valid {
				fields[fmt.Sprintf("items[%d]", i)] = "the original is not available"
				continue
			}
			line.UnitPrice = artwork.OriginalPrice.Decimal
		case models.PurchaseTypePrint:
			opt, found := artwork.PrintOptions.Find(line.PrintSize)
			switch {
			case !artwork.PrintsAvailable:
				fields[fmt.Sprintf("items[%d]", i)] = "prints are not available"
				continue
			case !found:
				fields[fmt.Sprintf("items[%d].print_size", i)] = "is not offered for this artwork"
				continue
			}
			line.UnitPrice = opt.Price
		}
		priced = append(priced, pricedLine{CartLineItem: line, artwork: artwork})
	}

	if len(missing) > 0 {
		return nil, pricing.Totals{}, apperr.NotFound("artwork", strings.Join(missing, ", "))
	}
	if len(fields) > 0 {
		return nil, pricing.Totals{}, apperr.Validation("cart cannot be fulfilled", fields)
	}

	cartLines := make([]models.CartLineItem, len(priced))
	for i, p := range priced {
		cartLines[i] = p.CartLineItem
	}
	return priced, pricing.ComputeTotals(cartLines, s.opts.Rates), nil
}

// verifyIntent checks that intent id succeeded for exactly amount in currency
func (s *OrderService) verifyIntent(ctx context.Context, id string, amount decimal.Decimal, currency string) (*payment.Intent, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperr.Validation("invalid payment", map[string]string{"payment_intent_id": "is required for card payments"})
	}

	intent, err := s.gateway.GetIntent(ctx, id)
	if errors.Is(err, payment.ErrIntentNotFound) {
		return nil, apperr.Validation("invalid payment", map[string]string{"payment_intent_id": "unknown payment intent"})
	}
	if err != nil {
		return nil, apperr.Payment("failed to verify payment", err)
	}
	if !intent.Succeeded() {
		return nil, apperr.Payment(fmt.Sprintf("payment has not succeeded (status %s)", intent.Status), nil)
	}
	if !intent.Matches(amount, currency) {
		s.logger.Warn("Payment intent does not cover order total",
			zap.String("payment_intent_id", id),
			zap.String("intent_amount", intent.Amount.StringFixed(2)),
			zap.String("order_total", amount.StringFixed(2)))
		return nil, apperr.Validation("invalid payment", map[string]string{
			"payment_intent_id": "amount or currency does not match the order total",
		})
	}
	return intent, nil
}

func (s *OrderService) publishOrderCreated(ctx context.Context, order *models.Order, customer *models.Customer, items []models.OrderItem) {
	data := make([]models.OrderItemData, len(items))
	for i, item := range items {
		size := ""
		if item.PrintSize != nil {
			size = *item.PrintSize
		}
		data[i] = models.OrderItemData{
			ArtworkID: item.ArtworkID,
			Title:     item.ArtworkTitle,
			Type:      item.Type,
			PrintSize: size,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	event := &models.OrderCreatedEvent{
		BaseEvent:     broker.NewBaseEvent(models.EventTypeOrderCreated),
		OrderID:       order.ID,
		CustomerID:    customer.ID,
		CustomerEmail: customer.Email,
		PaymentMethod: order.PaymentMethod,
		TotalAmount:   order.TotalAmount,
		Currency:      order.Currency,
		Items:         data,
	}
	if err := s.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}
}

type pricedLine struct {
	models.CartLineItem
	artwork *models.Artwork
}

func buildOrderItems(lines []pricedLine) []models.OrderItem {
	items := make([]models.OrderItem, len(lines))
	for i, line := range lines {
		var size *string
		if line.Type == models.PurchaseTypePrint {
			s := line.PrintSize
			size = &s
		}
		items[i] = models.OrderItem{
			ArtworkID:    line.ArtworkID,
			ArtworkTitle: line.artwork.Title,
			ArtworkSlug:  line.artwork.Slug,
			Type:         line.Type,
			PrintSize:    size,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			TotalPrice:   line.LineTotal(),
		}
	}
	return items
}

// paymentMethodLabel keeps client input out of metric labels
func paymentMethodLabel(method string) string {
	switch method {
	case models.PaymentMethodCard, models.PaymentMethodBankTransfer:
		return method
	}
	return "invalid"
}

func validStatus(status string) bool {
	switch status {
	case models.OrderStatusPending, models.OrderStatusCompleted, models.OrderStatusCancelled, models.OrderStatusFailed:
		return true
	}
	return false
}
