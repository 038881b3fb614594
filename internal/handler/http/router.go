package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nainu25/ELEMENT-01/internal/cart"
	"github.com/nainu25/ELEMENT-01/internal/service"
	"github.com/nainu25/ELEMENT-01/pkg/health"
	"github.com/nainu25/ELEMENT-01/pkg/middleware"
)

// serviceName labels HTTP metrics and spans.
const serviceName = "storefront"

// CheckoutLimits throttles checkout calls per session. A zero RPS disables it.
type CheckoutLimits struct {
	RPS   float64
	Burst int
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(
	sessions *cart.Sessions,
	cartService *service.CartService,
	checkoutService *service.CheckoutService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	limits CheckoutLimits,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	cartHandler := NewCartHandler(sessions, cartService, logger)
	checkoutHandler := NewCheckoutHandler(sessions, checkoutService, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(SessionFromHeader)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/toggle", cartHandler.ToggleCart)

			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{productId}", cartHandler.UpdateItemQuantity)
			r.Delete("/items/{productId}", cartHandler.RemoveItem)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Use(middleware.RateLimit(limits.RPS, limits.Burst, middleware.BySession, logger))
			r.Post("/payment-intent", checkoutHandler.CreatePaymentIntent)
			r.Post("/finalize", checkoutHandler.Finalize)
		})
	})

	return r
}
