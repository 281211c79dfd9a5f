package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	secret := "whk_secret"
	body := []byte(`{"event_id":"evt-1","intent_id":"pi-1","type":"payment_intent.succeeded"}`)

	sig := Sign(secret, body)
	assert.True(t, VerifySignature(secret, body, sig))
}

func TestVerifySignature_TamperedBody(t *testing.T) {
	secret := "whk_secret"
	sig := Sign(secret, []byte(`{"amount":100}`))
	assert.False(t, VerifySignature(secret, []byte(`{"amount":999}`), sig))
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	body := []byte(`{"event_id":"evt-1"}`)
	sig := Sign("secret-a", body)
	assert.False(t, VerifySignature("secret-b", body, sig))
}

func TestVerifySignature_EmptySignature(t *testing.T) {
	assert.False(t, VerifySignature("secret", []byte("body"), ""))
}
