package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"gallery-service/internal/apperr"
	"gallery-service/internal/broker"
	"gallery-service/internal/models"
	"gallery-service/internal/store"
	"gallery-service/internal/util"

	"go.uber.org/zap"
)

const (
	maxNameLength    = 200
	maxSubjectLength = 300
	maxMessageLength = 5000
)

// ContactRequest is a contact form submission
type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// SocialMediaInput updates one platform setting
type SocialMediaInput struct {
	URL     string `json:"url"`
	Visible bool   `json:"visible"`
}

// AdminService manages contact messages, subscribers and social links
type AdminService struct {
	store          MessageStore
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

func NewAdminService(store MessageStore, eventPublisher *broker.EventPublisher) *AdminService {
	return &AdminService{
		store:          store,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// SubmitContactMessage validates and stores a message from the contact form
func (s *AdminService) SubmitContactMessage(ctx context.Context, req *ContactRequest) (*models.ContactMessage, error) {
	ctx, span := util.StartSpan(ctx, "AdminService.SubmitContactMessage")
	defer span.End()

	msg := &models.ContactMessage{
		Name:    strings.TrimSpace(req.Name),
		Email:   NormalizeEmail(req.Email),
		Subject: strings.TrimSpace(req.Subject),
		Message: strings.TrimSpace(req.Message),
	}

	fields := map[string]string{}
	requireText(fields, "name", msg.Name, maxNameLength)
	requireText(fields, "subject", msg.Subject, maxSubjectLength)
	requireText(fields, "message", msg.Message, maxMessageLength)
	if !ValidEmail(msg.Email) {
		fields["email"] = "is not a valid email address"
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid contact message", fields)
	}

	if err := s.store.CreateContactMessage(ctx, msg); err != nil {
		util.RecordError(span, err)
		return nil, apperr.Persistence("failed to save message", err)
	}

	event := &models.ContactMessageReceivedEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeContactMessageReceived),
		MessageID: msg.ID,
		Name:      msg.Name,
		Email:     msg.Email,
		Subject:   msg.Subject,
	}
	if err := s.eventPublisher.PublishContactMessageReceived(ctx, event); err != nil {
		s.logger.Error("Failed to publish ContactMessageReceived event", zap.Error(err))
	}
	return msg, nil
}

func (s *AdminService) ListContactMessages(ctx context.Context) ([]models.ContactMessage, error) {
	messages, err := s.store.ListContactMessages(ctx)
	if err != nil {
		return nil, apperr.Persistence("failed to list messages", err)
	}
	return messages, nil
}

func (s *AdminService) MarkContactMessageRead(ctx context.Context, id int64) error {
	if err := s.store.MarkContactMessageRead(ctx, id); err != nil {
		return persistenceErr(err, "failed to update message", "message", id)
	}
	return nil
}

func (s *AdminService) DeleteContactMessage(ctx context.Context, id int64) error {
	if err := s.store.DeleteContactMessage(ctx, id); err != nil {
		return persistenceErr(err, "failed to delete message", "message", id)
	}
	s.logger.Info("Contact message deleted", zap.Int64("message_id", id))
	return nil
}

// Subscribe adds or reactivates a newsletter subscription. Subscribing an
// active address again is a no-op.
func (s *AdminService) Subscribe(ctx context.Context, email string) (*models.NewsletterSubscription, error) {
	email = NormalizeEmail(email)
	if !ValidEmail(email) {
		return nil, apperr.Validation("invalid subscription", map[string]string{"email": "is not a valid email address"})
	}

	sub, activated, err := s.store.Subscribe(ctx, email)
	if err != nil {
		return nil, apperr.Persistence("failed to subscribe", err)
	}

	if activated {
		event := &models.NewsletterSubscribedEvent{
			BaseEvent: broker.NewBaseEvent(models.EventTypeNewsletterSubscribed),
			Email:     email,
		}
		if err := s.eventPublisher.PublishNewsletterSubscribed(ctx, event); err != nil {
			s.logger.Error("Failed to publish NewsletterSubscribed event", zap.Error(err))
		}
	}
	return sub, nil
}

// Unsubscribe deactivates a subscription. Unknown or inactive addresses
// succeed silently so membership is not disclosed.
func (s *AdminService) Unsubscribe(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if !ValidEmail(email) {
		return apperr.Validation("invalid subscription", map[string]string{"email": "is not a valid email address"})
	}

	err := s.store.Unsubscribe(ctx, email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return apperr.Persistence("failed to unsubscribe", err)
	}
	return nil
}

func (s *AdminService) ListSubscriptions(ctx context.Context) ([]models.NewsletterSubscription, error) {
	subs, err := s.store.ListSubscriptions(ctx)
	if err != nil {
		return nil, apperr.Persistence("failed to list subscribers", err)
	}
	return subs, nil
}

// ListSocialMedia returns every known platform in display order. Platforms
// never configured read as hidden with an empty URL.
func (s *AdminService) ListSocialMedia(ctx context.Context) ([]models.SocialMediaSetting, error) {
	stored, err := s.store.ListSocialMediaSettings(ctx)
	if err != nil {
		return nil, apperr.Persistence("failed to list social media settings", err)
	}

	byPlatform := make(map[string]models.SocialMediaSetting, len(stored))
	for _, setting := range stored {
		byPlatform[setting.Platform] = setting
	}

	settings := make([]models.SocialMediaSetting, 0, len(models.SocialPlatforms))
	for _, platform := range models.SocialPlatforms {
		setting, ok := byPlatform[platform]
		if !ok {
			setting = models.SocialMediaSetting{Platform: platform}
		}
		settings = append(settings, setting)
	}
	return settings, nil
}

// GetSocialMedia returns the setting of one platform
func (s *AdminService) GetSocialMedia(ctx context.Context, platform string) (*models.SocialMediaSetting, error) {
	platform = strings.ToLower(platform)
	if !models.IsSocialPlatform(platform) {
		return nil, apperr.NotFound("social media platform", platform)
	}

	settings, err := s.ListSocialMedia(ctx)
	if err != nil {
		return nil, err
	}
	for i := range settings {
		if settings[i].Platform == platform {
			return &settings[i], nil
		}
	}
	return &models.SocialMediaSetting{Platform: platform}, nil
}

// UpdateSocialMedia stores the link and visibility of a platform
func (s *AdminService) UpdateSocialMedia(ctx context.Context, platform string, in SocialMediaInput) (*models.SocialMediaSetting, error) {
	platform = strings.ToLower(platform)
	if !models.IsSocialPlatform(platform) {
		return nil, apperr.Validation("invalid social media setting", map[string]string{
			"platform": fmt.Sprintf("must be one of %s", strings.Join(models.SocialPlatforms, ", ")),
		})
	}

	setting := &models.SocialMediaSetting{
		Platform: platform,
		URL:      strings.TrimSpace(in.URL),
		Visible:  in.Visible,
	}
	if msg := validateSocialURL(platform, setting.URL, setting.Visible); msg != "" {
		return nil, apperr.Validation("invalid social media setting", map[string]string{"url": msg})
	}

	if err := s.store.UpsertSocialMediaSetting(ctx, setting); err != nil {
		return nil, apperr.Persistence("failed to save social media setting", err)
	}
	return setting, nil
}

func validateSocialURL(platform, raw string, visible bool) string {
	if raw == "" {
		if visible {
			return "is required when visible"
		}
		return ""
	}
	if platform == models.PlatformEmail {
		if ValidEmail(strings.TrimPrefix(raw, "mailto:")) {
			return ""
		}
		return "must be an email address"
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "must be an http or https URL"
	}
	return ""
}

func requireText(fields map[string]string, name, value string, max int) {
	switch {
	case value == "":
		fields[name] = "is required"
	case len(value) > max:
		fields[name] = fmt.Sprintf("must be at most %d characters", max)
	}
}
