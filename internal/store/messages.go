package store

import (
	"context"
	"fmt"

	"gallery-service/internal/models"
)

// CreateContactMessage stores a contact form submission
func (s *Store) CreateContactMessage(ctx context.Context, m *models.ContactMessage) error {
	return s.db.QueryRowxContext(ctx, `
		INSERT INTO contact_messages (name, email, subject, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, read, created_at`,
		m.Name, m.Email, m.Subject, m.Message,
	).Scan(&m.ID, &m.Read, &m.CreatedAt)
}

// ListContactMessages returns messages newest first
func (s *Store) ListContactMessages(ctx context.Context) ([]models.ContactMessage, error) {
	messages := []models.ContactMessage{}
	err := s.db.SelectContext(ctx, &messages,
		"SELECT * FROM contact_messages ORDER BY created_at DESC, id DESC")
	return messages, err
}

// MarkContactMessageRead flags a message as read
func (s *Store) MarkContactMessageRead(ctx context.Context, id int64) error {
	return s.execOne(ctx, fmt.Sprintf("contact message %d", id),
		"UPDATE contact_messages SET read = TRUE WHERE id = $1", id)
}

// DeleteContactMessage removes a message
func (s *Store) DeleteContactMessage(ctx context.Context, id int64) error {
	return s.execOne(ctx, fmt.Sprintf("contact message %d", id),
		"DELETE FROM contact_messages WHERE id = $1", id)
}

// Subscribe activates a newsletter subscription, creating it if needed.
// activated is false when the address was already subscribed.
func (s *Store) Subscribe(ctx context.Context, email string) (*models.NewsletterSubscription, bool, error) {
	var row struct {
		models.NewsletterSubscription
		WasActive bool `db:"was_active"`
	}
	err := s.db.GetContext(ctx, &row, `
		WITH prev AS (SELECT active FROM newsletter_subscriptions WHERE email = $1)
		INSERT INTO newsletter_subscriptions (email) VALUES ($1)
		ON CONFLICT (email) DO UPDATE SET
			active = TRUE,
			subscribed_at = CASE WHEN newsletter_subscriptions.active
				THEN newsletter_subscriptions.subscribed_at ELSE NOW() END,
			unsubscribed_at = NULL
		RETURNING id, email, active, subscribed_at, unsubscribed_at,
			COALESCE((SELECT active FROM prev), FALSE) AS was_active`, email)
	if err != nil {
		return nil, false, err
	}
	return &row.NewsletterSubscription, !row.WasActive, nil
}

// Unsubscribe deactivates a subscription by email
func (s *Store) Unsubscribe(ctx context.Context, email string) error {
	return s.execOne(ctx, fmt.Sprintf("subscription %q", email),
		"UPDATE newsletter_subscriptions SET active = FALSE, unsubscribed_at = NOW() WHERE email = $1 AND active",
		email)
}

// ListSubscriptions returns all subscriptions, active first
func (s *Store) ListSubscriptions(ctx context.Context) ([]models.NewsletterSubscription, error) {
	subs := []models.NewsletterSubscription{}
	err := s.db.SelectContext(ctx, &subs,
		"SELECT * FROM newsletter_subscriptions ORDER BY active DESC, subscribed_at DESC")
	return subs, err
}

// ListSocialMediaSettings returns stored platform settings
func (s *Store) ListSocialMediaSettings(ctx context.Context) ([]models.SocialMediaSetting, error) {
	settings := []models.SocialMediaSetting{}
	err := s.db.SelectContext(ctx, &settings, "SELECT * FROM social_media_settings")
	return settings, err
}

// UpsertSocialMediaSetting stores the setting of one platform
func (s *Store) UpsertSocialMediaSetting(ctx context.Context, setting *models.SocialMediaSetting) error {
	return s.db.QueryRowxContext(ctx, `
		INSERT INTO social_media_settings (platform, url, visible)
		VALUES ($1, $2, $3)
		ON CONFLICT (platform) DO UPDATE SET url = EXCLUDED.url, visible = EXCLUDED.visible, updated_at = NOW()
		RETURNING updated_at`,
		setting.Platform, setting.URL, setting.Visible,
	).Scan(&setting.UpdatedAt)
}

func (s *Store) execOne(ctx context.Context, what, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
