package effects

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/avilaluz/mercadito-backend/pkg/enums"
	"github.com/avilaluz/mercadito-backend/pkg/logger"
)

// Event carries the data a post-commit effect needs. One variant per
// notification type; unused fields stay zero.
type Event struct {
	Type        enums.NotificationType
	UserID      uuid.UUID
	OrderID     uuid.UUID
	Title       string
	Body        string
	EmailTo     string
	AmountCents int64
}

// Notifier persists user-facing notification artifacts.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, notificationType enums.NotificationType, title, body string) error
}

// Mailer delivers transactional email. Delivery is best-effort.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Dispatcher runs best-effort side effects after financial state has
// committed. Failures are logged, never propagated, and never roll back
// the transaction that triggered them.
type Dispatcher interface {
	Dispatch(ctx context.Context, events ...Event)
	Wait()
}

type dispatcher struct {
	notifier Notifier
	mailer   Mailer
	logg     *logger.Logger
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewDispatcher wires the post-commit effects dispatcher. Notifier and
// mailer may independently be nil; missing collaborators are skipped.
func NewDispatcher(notifier Notifier, mailer Mailer, logg *logger.Logger) (Dispatcher, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &dispatcher{
		notifier: notifier,
		mailer:   mailer,
		logg:     logg,
		timeout:  15 * time.Second,
	}, nil
}

// Dispatch fans the events out on a fresh goroutine. The caller's context is
// not reused: the request may complete (and its context cancel) before the
// effects finish.
func (d *dispatcher) Dispatch(ctx context.Context, events ...Event) {
	if len(events) == 0 {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				d.logg.Error(context.Background(), "effects dispatch panicked", fmt.Errorf("panic in effects dispatch: %v", rec))
			}
		}()

		bg, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		for _, event := range events {
			if err := d.apply(bg, event); err != nil {
				fields := map[string]any{
					"effect_type": event.Type.String(),
					"order_id":    event.OrderID.String(),
				}
				d.logg.Error(d.logg.WithFields(bg, fields), "post-commit effect failed", err)
			}
		}
	}()
}

// Wait blocks until in-flight effects finish. Used on shutdown and in tests.
func (d *dispatcher) Wait() {
	d.wg.Wait()
}

func (d *dispatcher) apply(ctx context.Context, event Event) error {
	var errs error

	if d.notifier != nil && event.UserID != uuid.Nil {
		if err := d.notifier.Notify(ctx, event.UserID, event.Type, event.Title, event.Body); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("notify: %w", err))
		}
	}

	if d.mailer != nil && event.EmailTo != "" {
		if err := d.mailer.Send(ctx, event.EmailTo, event.Title, event.Body); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("send mail: %w", err))
		}
	}

	return errs
}
