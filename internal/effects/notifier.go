package effects

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avilaluz/mercadito-backend/pkg/db/models"
	"github.com/avilaluz/mercadito-backend/pkg/enums"
	"github.com/avilaluz/mercadito-backend/pkg/logger"
)

type dbNotifier struct {
	db *gorm.DB
}

// NewDBNotifier persists notifications as rows the user-facing API reads.
func NewDBNotifier(db *gorm.DB) (Notifier, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &dbNotifier{db: db}, nil
}

func (n *dbNotifier) Notify(ctx context.Context, userID uuid.UUID, notificationType enums.NotificationType, title, body string) error {
	if userID == uuid.Nil {
		return fmt.Errorf("user id required")
	}
	row := models.Notification{
		UserID: userID,
		Type:   notificationType,
		Title:  title,
		Body:   body,
	}
	return n.db.WithContext(ctx).Create(&row).Error
}

type logMailer struct {
	logg *logger.Logger
}

// NewLogMailer returns a mailer that records sends in the structured log.
// Stands in until a delivery provider is wired; the dispatcher treats it
// like any other mailer.
func NewLogMailer(logg *logger.Logger) (Mailer, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &logMailer{logg: logg}, nil
}

func (m *logMailer) Send(ctx context.Context, to, subject, body string) error {
	fields := map[string]any{
		"mail_to":      to,
		"mail_subject": subject,
	}
	m.logg.Info(m.logg.WithFields(ctx, fields), "transactional mail queued")
	return nil
}
