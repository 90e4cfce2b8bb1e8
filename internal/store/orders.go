package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gallery-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateOrderWithItems inserts an order and its items in one transaction and
// marks every original in it as sold. A reused idempotency key yields
// ErrDuplicateIdempotencyKey, an original already sold yields ErrOriginalSold,
// and in both cases nothing is written.
func (s *Store) CreateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO orders (customer_id, subtotal, shipping_cost, total_amount, currency,
				payment_method, payment_intent_id, status, special_instructions, idempotency_key, access_token)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id, created_at, updated_at`

		err := tx.QueryRowxContext(ctx, query,
			order.CustomerID, order.Subtotal, order.ShippingCost, order.TotalAmount, order.Currency,
			order.PaymentMethod, order.PaymentIntentID, order.Status, order.SpecialInstructions,
			order.IdempotencyKey, order.AccessToken,
		).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
		if constraint, ok := uniqueConstraint(err); ok {
			switch constraint {
			case "orders_idempotency_key_key":
				return ErrDuplicateIdempotencyKey
			case "orders_payment_intent_id_key":
				return ErrPaymentIntentUsed
			}
		}
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		for i := range items {
			items[i].OrderID = order.ID
			err := tx.QueryRowxContext(ctx, `
				INSERT INTO order_items (order_id, artwork_id, artwork_title, artwork_slug, type,
					print_size, quantity, unit_price, total_price)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				RETURNING id`,
				items[i].OrderID, items[i].ArtworkID, items[i].ArtworkTitle, items[i].ArtworkSlug,
				items[i].Type, items[i].PrintSize, items[i].Quantity, items[i].UnitPrice, items[i].TotalPrice,
			).Scan(&items[i].ID)
			if err != nil {
				return fmt.Errorf("failed to insert order item %d: %w", i, err)
			}

			if items[i].Type == models.PurchaseTypeOriginal {
				if err := claimOriginal(ctx, tx, items[i].ArtworkID); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func claimOriginal(ctx context.Context, tx *sqlx.Tx, artworkID int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE artworks SET original_sold = TRUE, updated_at = NOW()
		WHERE id = $1 AND original_available AND NOT original_sold AND archived_at IS NULL`,
		artworkID)
	if err != nil {
		return fmt.Errorf("failed to claim original %d: %w", artworkID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("artwork %d: %w", artworkID, ErrOriginalSold)
	}
	return nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE idempotency_key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders returns orders newest first, optionally filtered by status
func (s *Store) ListOrders(ctx context.Context, status string) ([]models.Order, error) {
	orders := []models.Order{}
	var err error
	if status == "" {
		err = s.db.SelectContext(ctx, &orders, "SELECT * FROM orders ORDER BY created_at DESC, id DESC")
	} else {
		err = s.db.SelectContext(ctx, &orders,
			"SELECT * FROM orders WHERE status = $1 ORDER BY created_at DESC, id DESC", status)
	}
	return orders, err
}

// TransitionOrderStatus moves an order from one status to another. It fails
// with ErrStatusChanged if the order is no longer in the expected status.
// Cancelling or failing an order puts its originals back on sale.
func (s *Store) TransitionOrderStatus(ctx context.Context, orderID int64, from, to string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
			to, orderID, from)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("order %d not %s: %w", orderID, from, ErrStatusChanged)
		}

		if to != models.OrderStatusCancelled && to != models.OrderStatusFailed {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE artworks SET original_sold = FALSE, updated_at = NOW()
			WHERE id IN (SELECT artwork_id FROM order_items WHERE order_id = $1 AND type = $2)`,
			orderID, models.PurchaseTypeOriginal)
		if err != nil {
			return fmt.Errorf("failed to release originals of order %d: %w", orderID, err)
		}
		return nil
	})
}

// SetOrderPaymentIntent records the processor intent confirming an order
func (s *Store) SetOrderPaymentIntent(ctx context.Context, orderID int64, intentID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET payment_intent_id = $1, updated_at = NOW() WHERE id = $2",
		intentID, orderID)
	if constraint, ok := uniqueConstraint(err); ok && constraint == "orders_payment_intent_id_key" {
		return ErrPaymentIntentUsed
	}
	return err
}

// SetOrderTransferReference records the bank transfer reference for an order
func (s *Store) SetOrderTransferReference(ctx context.Context, orderID int64, reference string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET transfer_reference = $1, updated_at = NOW() WHERE id = $2",
		reference, orderID)
	return err
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// GetOrderItemsByOrderIDs retrieves items for several orders
func (s *Store) GetOrderItemsByOrderIDs(ctx context.Context, orderIDs []int64) ([]models.OrderItem, error) {
	if len(orderIDs) == 0 {
		return []models.OrderItem{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM order_items WHERE order_id IN (?) ORDER BY order_id, id", orderIDs)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var items []models.OrderItem
	err = s.db.SelectContext(ctx, &items, query, args...)
	return items, err
}
