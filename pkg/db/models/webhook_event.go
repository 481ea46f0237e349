package models

import (
	"encoding/json"
	"time"

	"github.com/avilaluz/mercadito-backend/pkg/enums"
	"github.com/google/uuid"
)

// WebhookEvent is the idempotency and audit row for provider webhook
// delivery. EventID is the provider's unique event id and the idempotency
// key; the unique index is the backstop against concurrent duplicate writes.
type WebhookEvent struct {
	ID               uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID          string                   `gorm:"column:event_id;not null;uniqueIndex"`
	EventType        string                   `gorm:"column:event_type;not null"`
	ProviderIntentID *string                  `gorm:"column:provider_intent_id"`
	Status           enums.WebhookEventStatus `gorm:"column:status;not null;default:'pending'"`
	Payload          json.RawMessage          `gorm:"column:payload;type:jsonb"`
	ProcessedAt      *time.Time               `gorm:"column:processed_at"`
	CreatedAt        time.Time                `gorm:"column:created_at;autoCreateTime"`
}
