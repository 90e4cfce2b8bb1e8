package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gallery-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// UpsertCustomer inserts a customer or refreshes the profile of the existing
// row with the same email. The returned row carries the stable id.
func (s *Store) UpsertCustomer(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO customers (email, first_name, last_name, phone, address, city, zip_code, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (email) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			zip_code = EXCLUDED.zip_code,
			country = EXCLUDED.country,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		c.Email, c.FirstName, c.LastName, c.Phone, c.Address, c.City, c.ZipCode, c.Country,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// GetCustomerByID retrieves a customer by ID
func (s *Store) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.GetContext(ctx, &customer, "SELECT * FROM customers WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetCustomersByIDs retrieves multiple customers by IDs
func (s *Store) GetCustomersByIDs(ctx context.Context, ids []int64) ([]models.Customer, error) {
	if len(ids) == 0 {
		return []models.Customer{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM customers WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var customers []models.Customer
	err = s.db.SelectContext(ctx, &customers, query, args...)
	return customers, err
}
