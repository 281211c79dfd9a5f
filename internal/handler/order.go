package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avelora/checkout/internal/model"
	"github.com/avelora/checkout/internal/repository"
	"github.com/avelora/checkout/internal/service"
)

// IntentReader reads the locally cached payment intent snapshot. The
// cache is best effort; a miss just means the response omits the
// payment status.
type IntentReader interface {
	GetByID(ctx context.Context, intentID string) (*model.PaymentIntent, error)
}

// OrderHandler serves order reads and lifecycle actions: customers list
// and cancel their own orders, staff move paid orders through
// fulfillment.
type OrderHandler struct {
	Orders  repository.OrderStore
	Machine *service.OrderMachine
	Intents IntentReader
}

// NewOrderHandler constructs the handler; orders and machine must be
// non-nil, intents may be nil.
func NewOrderHandler(orders repository.OrderStore, machine *service.OrderMachine, intents IntentReader) *OrderHandler {
	if orders == nil || machine == nil {
		panic("nil dependency passed to NewOrderHandler")
	}
	return &OrderHandler{Orders: orders, Machine: machine, Intents: intents}
}

type orderResponse struct {
	OrderID       string             `json:"order_id"`
	Status        string             `json:"status"`
	TotalCents    int64              `json:"total_cents"`
	Currency      string             `json:"currency"`
	IntentID      string             `json:"intent_id,omitempty"`
	PaymentStatus string             `json:"payment_status,omitempty"`
	Items         []lineItemResponse `json:"items"`
	CreatedAt     string             `json:"created_at"`
}

func toOrderResponse(o *model.Order) orderResponse {
	items := make([]lineItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, lineItemResponse{
			ProductID:      it.ProductID,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		})
	}
	return orderResponse{
		OrderID:    o.ID,
		Status:     string(o.Status),
		TotalCents: o.TotalCents,
		Currency:   o.Currency,
		IntentID:   o.IntentID,
		Items:      items,
		CreatedAt:  o.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// List handles GET /v1/orders and returns the caller's orders, newest
// first.
func (h *OrderHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orders, err := h.Orders.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderResponse(&orders[i]))
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /v1/orders/:id, enforcing ownership.
func (h *OrderHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	order, err := h.Orders.GetByID(c.Request().Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if order.UserID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	out := toOrderResponse(order)
	// While payment is unresolved, surface the last processor-reported
	// intent status from the local cache.
	if order.Status == model.StatusPendingPayment && order.IntentID != "" && h.Intents != nil {
		if intent, err := h.Intents.GetByID(c.Request().Context(), order.IntentID); err == nil {
			out.PaymentStatus = string(intent.Status)
		}
	}
	return c.JSON(http.StatusOK, out)
}

// Cancel handles POST /v1/orders/:id/cancel. Cancellation is allowed
// only before shipment; a pending order gives its stock back.
func (h *OrderHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	err = h.Machine.Cancel(c.Request().Context(), c.Param("id"), userID)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"status": string(model.StatusCancelled)})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
	case errors.Is(err, service.ErrNotOrderOwner):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, service.ErrIllegalTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": "order can no longer be cancelled"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
}

// Ship handles POST /v1/orders/:id/ship (staff only). A paid order is
// moved to PROCESSING implicitly when fulfillment picks it up, so this
// accepts orders in PAID as well by stepping through PROCESSING first.
func (h *OrderHandler) Ship(c echo.Context) error {
	ctx := c.Request().Context()
	orderID := c.Param("id")
	// Step a freshly paid order into fulfillment first; a no-op when it
	// is already PROCESSING.
	if err := h.Machine.MarkProcessing(ctx, orderID); err != nil && !errors.Is(err, service.ErrIllegalTransition) {
		return h.writeTransitionError(c, err)
	}
	if err := h.Machine.MarkShipped(ctx, orderID); err != nil {
		return h.writeTransitionError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": string(model.StatusShipped)})
}

// Deliver handles POST /v1/orders/:id/deliver (staff only).
func (h *OrderHandler) Deliver(c echo.Context) error {
	if err := h.Machine.MarkDelivered(c.Request().Context(), c.Param("id")); err != nil {
		return h.writeTransitionError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": string(model.StatusDelivered)})
}

func (h *OrderHandler) writeTransitionError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
	case errors.Is(err, service.ErrIllegalTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
}
