package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avelora/checkout/internal/model"
	"github.com/avelora/checkout/internal/service"
)

// WebhookHandler receives asynchronous payment events from the
// processor. Signature verification happened in middleware; the handler
// only binds the payload and hands it to the reconciler. Duplicates are
// acknowledged with 200 so the processor stops redelivering them.
type WebhookHandler struct {
	Reconciler *service.WebhookReconciler
}

// NewWebhookHandler constructs the handler; the reconciler must be
// non-nil.
func NewWebhookHandler(reconciler *service.WebhookReconciler) *WebhookHandler {
	if reconciler == nil {
		panic("nil reconciler passed to NewWebhookHandler")
	}
	return &WebhookHandler{Reconciler: reconciler}
}

type webhookPayload struct {
	EventID   string `json:"event_id"`
	IntentID  string `json:"intent_id"`
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
}

// Ingest handles POST /v1/webhooks/payment. Unknown intents return 422
// and are escalated in logs for manual investigation; the processor
// will redeliver, which keeps the evidence arriving until someone
// looks.
func (h *WebhookHandler) Ingest(c echo.Context) error {
	var body webhookPayload
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}
	if body.EventID == "" || body.IntentID == "" || body.Type == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id, intent_id and type are required"})
	}

	receivedAt := time.Now().UTC()
	if body.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, body.CreatedAt); err == nil {
			receivedAt = t.UTC()
		}
	}

	err := h.Reconciler.Ingest(c.Request().Context(), model.WebhookEvent{
		EventID:    body.EventID,
		IntentID:   body.IntentID,
		Type:       body.Type,
		ReceivedAt: receivedAt,
	})
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	case errors.Is(err, service.ErrUnknownIntent):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "unknown intent"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "ingest failed"})
	}
}
