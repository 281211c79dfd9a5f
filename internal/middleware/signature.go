package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/avelora/checkout/internal/payment"
)

// SignatureHeader carries the processor's HMAC-SHA256 signature of the
// raw request body, hex encoded.
const SignatureHeader = "X-Webhook-Signature"

// VerifyWebhookSignature rejects webhook deliveries whose body does not
// match the signature header. Verification is a precondition of
// ingestion: an unsigned or tampered payload never reaches the
// reconciler. The body is restored on the request so the handler can
// bind it normally.
func VerifyWebhookSignature(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			body, err := io.ReadAll(c.Request().Body)
			if err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
			}
			c.Request().Body = io.NopCloser(bytes.NewReader(body))

			sig := c.Request().Header.Get(SignatureHeader)
			if !payment.VerifySignature(secret, body, sig) {
				log.Warn().Str("remote", c.RealIP()).Msg("webhook: rejected delivery with bad signature")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid signature"})
			}
			return next(c)
		}
	}
}
