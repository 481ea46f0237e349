package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avilaluz/mercadito-backend/api/controllers"
	webhookcontrollers "github.com/avilaluz/mercadito-backend/api/controllers/webhooks"
	"github.com/avilaluz/mercadito-backend/api/middleware"
	"github.com/avilaluz/mercadito-backend/internal/ledger"
	"github.com/avilaluz/mercadito-backend/internal/orders"
	"github.com/avilaluz/mercadito-backend/internal/payments"
	"github.com/avilaluz/mercadito-backend/internal/payouts"
	"github.com/avilaluz/mercadito-backend/pkg/config"
	"github.com/avilaluz/mercadito-backend/pkg/db"
	"github.com/avilaluz/mercadito-backend/pkg/enums"
	"github.com/avilaluz/mercadito-backend/pkg/logger"
	"github.com/avilaluz/mercadito-backend/pkg/metrics"
	"github.com/avilaluz/mercadito-backend/pkg/redis"
	"github.com/avilaluz/mercadito-backend/pkg/stripe"
)

// Deps carries everything the HTTP layer needs. Grouped in a struct because
// the constructor argument list outgrew readability.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DB    db.Pinger
	Redis *redis.Client

	Orders   orders.Service
	Payments payments.Service
	Payouts  payouts.Service
	Ledger   ledger.Service

	StripeClient *stripe.Client
	WebhookGuard *payments.IdempotencyGuard

	PaymentMetrics *metrics.PaymentMetrics
	Registry       *prometheus.Registry
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.DB, d.Redis))
	})

	if d.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(d.Payments, d.StripeClient, d.WebhookGuard, d.PaymentMetrics, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.PlaceOrder(d.Orders, logg))
			r.Get("/", controllers.ListOrders(d.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(d.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.CancelOrder(d.Orders, logg))
			r.With(middleware.RequireAnyRole(logg, string(enums.ActorRoleSeller), string(enums.ActorRoleAdmin))).
				Patch("/{orderId}/status", controllers.UpdateOrderStatus(d.Orders, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/intent", controllers.CreatePaymentIntent(d.Payments, logg))
			r.Post("/{orderId}/refund", controllers.RefundPayment(d.Payments, logg))
		})

		r.Route("/sellers/me", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.ActorRoleSeller), logg))
			r.Get("/financials", controllers.SellerFinancials(d.Ledger, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(string(enums.ActorRoleAdmin), logg))

		r.Post("/payouts", controllers.ProcessPayout(d.Payouts, logg))
		r.Get("/financials", controllers.PlatformFinancials(d.Ledger, logg))
	})

	return r
}
