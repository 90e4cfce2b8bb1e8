package service

import (
	"context"
	"net/mail"
	"strings"

	"gallery-service/internal/apperr"
	"gallery-service/internal/models"
	"gallery-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
)

// CustomerData is the buyer profile submitted at checkout
type CustomerData struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	ZipCode   string `json:"zip_code"`
	Country   string `json:"country"`
}

// NormalizeEmail trims and lower-cases an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email is a bare address
func ValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// Validate checks the required checkout fields. Keys are prefixed with prefix.
func (d CustomerData) Validate(prefix string) map[string]string {
	fields := map[string]string{}
	email := NormalizeEmail(d.Email)
	switch {
	case email == "":
		fields[prefix+"email"] = "is required"
	case !ValidEmail(email):
		fields[prefix+"email"] = "is not a valid email address"
	}
	required := map[string]string{
		"first_name": d.FirstName,
		"last_name":  d.LastName,
		"address":    d.Address,
		"city":       d.City,
		"zip_code":   d.ZipCode,
		"country":    d.Country,
	}
	for name, v := range required {
		if strings.TrimSpace(v) == "" {
			fields[prefix+name] = "is required"
		}
	}
	return fields
}

// CustomerResolver finds or creates customers keyed by email
type CustomerResolver struct {
	store CustomerStore
}

func NewCustomerResolver(store CustomerStore) *CustomerResolver {
	return &CustomerResolver{store: store}
}

// Resolve returns the customer for data.Email, creating it on first use and
// refreshing the stored profile otherwise. Repeated calls with the same email
// return the same id.
func (r *CustomerResolver) Resolve(ctx context.Context, data CustomerData) (*models.Customer, error) {
	ctx, span := util.StartSpan(ctx, "CustomerResolver.Resolve")
	defer span.End()

	if fields := data.Validate(""); len(fields) > 0 {
		return nil, apperr.Validation("invalid customer data", fields)
	}

	customer := &models.Customer{
		Email:     NormalizeEmail(data.Email),
		FirstName: strings.TrimSpace(data.FirstName),
		LastName:  strings.TrimSpace(data.LastName),
		Phone:     strings.TrimSpace(data.Phone),
		Address:   strings.TrimSpace(data.Address),
		City:      strings.TrimSpace(data.City),
		ZipCode:   strings.TrimSpace(data.ZipCode),
		Country:   strings.TrimSpace(data.Country),
	}
	if err := r.store.UpsertCustomer(ctx, customer); err != nil {
		util.RecordError(span, err)
		return nil, apperr.Persistence("failed to resolve customer", err)
	}

	span.SetAttributes(attribute.Int64("customer_id", customer.ID))
	return customer, nil
}
