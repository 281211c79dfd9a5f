// Package payment talks to the external payment processor. The
// processor is the source of truth for intent state; everything in this
// package is a thin, bounded-timeout HTTP contract around "create
// intent", "get intent" and "cancel intent".
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avelora/checkout/internal/model"
)

// ErrProvider wraps any transport or processor-side failure. Checkout
// treats it as transient: the reservation is released and the whole
// checkout is safe to retry from scratch.
var ErrProvider = errors.New("payment provider error")

// ErrIntentNotFound is returned when the processor does not know the
// intent id.
var ErrIntentNotFound = errors.New("payment intent not found")

// Provider is the contract with the external processor. CreateIntent
// opens a charge attempt scoped to the reserved total; GetIntent
// returns the authoritative current status; CancelIntent asks the
// processor to cancel (and refund, if already captured) an intent.
// Every call carries the client's bounded timeout and is never retried
// blindly by the caller.
type Provider interface {
	CreateIntent(ctx context.Context, orderID string, amountCents int64, currency string) (*model.PaymentIntent, error)
	GetIntent(ctx context.Context, intentID string) (*model.PaymentIntent, error)
	CancelIntent(ctx context.Context, intentID string) error
}

// HTTPProvider implements Provider against the processor's REST API.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPProvider builds a provider client. The timeout bounds every
// request end to end; a timed-out create is reported as ErrProvider so
// the caller releases its reservation immediately.
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// intentPayload mirrors the processor's intent resource.
type intentPayload struct {
	ID           string `json:"id"`
	OrderID      string `json:"order_id"`
	AmountCents  int64  `json:"amount_cents"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
	ClientSecret string `json:"client_secret,omitempty"`
}

func (p *HTTPProvider) CreateIntent(ctx context.Context, orderID string, amountCents int64, currency string) (*model.PaymentIntent, error) {
	body, err := json.Marshal(map[string]interface{}{
		"order_id":     orderID,
		"amount_cents": amountCents,
		"currency":     currency,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/intents", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	// Idempotency key lets the processor collapse a retried create for
	// the same order into one intent.
	req.Header.Set("Idempotency-Key", orderID)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: create intent returned %d", ErrProvider, resp.StatusCode)
	}
	return decodeIntent(resp.Body)
}

func (p *HTTPProvider) GetIntent(ctx context.Context, intentID string) (*model.PaymentIntent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/intents/"+intentID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrIntentNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: get intent returned %d", ErrProvider, resp.StatusCode)
	}
	return decodeIntent(resp.Body)
}

func (p *HTTPProvider) CancelIntent(ctx context.Context, intentID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/intents/"+intentID+"/cancel", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrIntentNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: cancel intent returned %d", ErrProvider, resp.StatusCode)
	}
	return nil
}

func decodeIntent(r io.Reader) (*model.PaymentIntent, error) {
	var in intentPayload
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("%w: decode intent: %v", ErrProvider, err)
	}
	return &model.PaymentIntent{
		ID:           in.ID,
		OrderID:      in.OrderID,
		AmountCents:  in.AmountCents,
		Currency:     in.Currency,
		Status:       model.IntentStatus(in.Status),
		ClientSecret: in.ClientSecret,
	}, nil
}
