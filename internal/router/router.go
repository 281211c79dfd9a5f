package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/avelora/checkout/internal/config"
	"github.com/avelora/checkout/internal/handler"    // import the handlers that implement business logic
	"github.com/avelora/checkout/internal/middleware" // import middleware for auth, rate limiting and signatures
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance. Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// The health endpoint is used by load balancers and monitoring to
	// verify that the service is up.
	e.GET("/healthz", handler.Health)
}

// RegisterCheckout registers the customer-facing checkout and order
// routes under /v1. All of them require a valid access token; checkout
// itself additionally passes through the Redis token bucket because it
// reserves stock and calls the payment processor on every request.
func RegisterCheckout(e *echo.Echo, ch *handler.CheckoutHandler, oh *handler.OrderHandler, jwtSecret string, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))

	// Checkout creates a reservation and a payment intent, so it gets
	// the tighter bucket configured for mutating endpoints.
	g.POST("/checkout", ch.PlaceOrder, middleware.NewTokenBucket(rlCfg, rdb))

	// Order inspection and customer-initiated cancellation.
	g.GET("/orders", oh.List)
	g.GET("/orders/:id", oh.Get)
	g.POST("/orders/:id/cancel", oh.Cancel)

	// Fulfillment transitions are operational actions performed by
	// warehouse staff, not by the customer who placed the order.
	staff := g.Group("", middleware.RequireRole("STAFF"))
	staff.POST("/orders/:id/ship", oh.Ship)
	staff.POST("/orders/:id/deliver", oh.Deliver)
}

// RegisterWebhooks registers the payment processor callback. The route
// is unauthenticated in the JWT sense: the processor proves itself with
// an HMAC signature over the raw body instead, and the token bucket
// keeps a misbehaving sender from flooding the reconciler.
func RegisterWebhooks(e *echo.Echo, wh *handler.WebhookHandler, webhookSecret string, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	e.POST("/v1/webhooks/payment", wh.Ingest,
		middleware.VerifyWebhookSignature(webhookSecret),
		middleware.NewTokenBucket(rlCfg, rdb))
}
