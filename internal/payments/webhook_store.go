package payments

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/avilaluz/mercadito-backend/pkg/db/models"
	"github.com/avilaluz/mercadito-backend/pkg/enums"
)

// WebhookStore is the durable idempotency fence for provider event
// delivery. The provider event id is the idempotency key; the unique index
// on event_id is the backstop against concurrent duplicate writes.
type WebhookStore interface {
	WithTx(tx *gorm.DB) WebhookStore
	FindByEventID(ctx context.Context, eventID string) (*models.WebhookEvent, error)
	CreateProcessed(ctx context.Context, event *models.WebhookEvent) error
}

type webhookStore struct {
	db *gorm.DB
}

// NewWebhookStore builds a webhook event store bound to the provided DB.
func NewWebhookStore(db *gorm.DB) WebhookStore {
	return &webhookStore{db: db}
}

func (s *webhookStore) WithTx(tx *gorm.DB) WebhookStore {
	if tx == nil {
		return s
	}
	return &webhookStore{db: tx}
}

// FindByEventID returns nil, nil when the event has not been seen.
func (s *webhookStore) FindByEventID(ctx context.Context, eventID string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// CreateProcessed writes the event as processed. Call inside the same
// transaction as the financial mutation the event triggers.
func (s *webhookStore) CreateProcessed(ctx context.Context, event *models.WebhookEvent) error {
	now := time.Now()
	event.Status = enums.WebhookEventStatusProcessed
	event.ProcessedAt = &now
	return s.db.WithContext(ctx).Create(event).Error
}
