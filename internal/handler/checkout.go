package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avelora/checkout/internal/payment"
	"github.com/avelora/checkout/internal/repository"
	"github.com/avelora/checkout/internal/service"
)

// CheckoutHandler exposes the cart-to-order path. JWT authentication
// has already run; the handler only translates service results into
// HTTP responses with stable error codes so clients can tell retryable
// failures from permanent ones.
type CheckoutHandler struct {
	Checkout *service.CheckoutService
}

// NewCheckoutHandler constructs the handler. The checkout service must
// be non-nil.
func NewCheckoutHandler(checkout *service.CheckoutService) *CheckoutHandler {
	if checkout == nil {
		panic("nil checkout service passed to NewCheckoutHandler")
	}
	return &CheckoutHandler{Checkout: checkout}
}

type checkoutRequest struct {
	Currency string `json:"currency"`
}

type lineItemResponse struct {
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type checkoutResponse struct {
	OrderID      string             `json:"order_id"`
	Status       string             `json:"status"`
	TotalCents   int64              `json:"total_cents"`
	Currency     string             `json:"currency"`
	IntentID     string             `json:"intent_id"`
	ClientSecret string             `json:"client_secret,omitempty"`
	Items        []lineItemResponse `json:"items"`
}

// PlaceOrder handles POST /v1/checkout. It freezes the caller's cart,
// reserves stock, opens a payment intent and creates the order in
// PENDING_PAYMENT. The client completes payment with the processor
// using the returned client secret.
func (h *CheckoutHandler) PlaceOrder(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body checkoutRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Currency == "" {
		body.Currency = "USD"
	}
	if len(body.Currency) != 3 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "currency must be a 3-letter code"})
	}

	order, intent, err := h.Checkout.PlaceOrder(c.Request().Context(), userID, body.Currency)
	if err != nil {
		return writeCheckoutError(c, err)
	}

	items := make([]lineItemResponse, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, lineItemResponse{
			ProductID:      it.ProductID,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		})
	}
	return c.JSON(http.StatusCreated, checkoutResponse{
		OrderID:      order.ID,
		Status:       string(order.Status),
		TotalCents:   order.TotalCents,
		Currency:     order.Currency,
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Items:        items,
	})
}

// writeCheckoutError maps the checkout error taxonomy onto HTTP
// responses. Payment provider failures are the only retryable case: no
// reservation survives them, so the client can safely run the whole
// checkout again.
func writeCheckoutError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrEmptyCart):
		return c.JSON(http.StatusBadRequest, checkoutError{Error: err.Error(), Code: "EMPTY_CART"})
	case errors.Is(err, repository.ErrProductUnavailable):
		return c.JSON(http.StatusBadRequest, checkoutError{Error: err.Error(), Code: "PRODUCT_UNAVAILABLE"})
	case errors.Is(err, repository.ErrInsufficientStock):
		return c.JSON(http.StatusConflict, checkoutError{Error: err.Error(), Code: "INSUFFICIENT_STOCK"})
	case errors.Is(err, payment.ErrProvider):
		return c.JSON(http.StatusBadGateway, checkoutError{Error: "payment provider unavailable", Code: "PAYMENT_PROVIDER_ERROR", Retryable: true})
	default:
		return c.JSON(http.StatusInternalServerError, checkoutError{Error: "internal error", Code: "INTERNAL"})
	}
}
