package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		want     bool
	}{
		{StatusPendingPayment, StatusPaid, true},
		{StatusPendingPayment, StatusPaymentFailed, true},
		{StatusPendingPayment, StatusExpired, true},
		{StatusPendingPayment, StatusCancelled, true},
		{StatusPendingPayment, StatusShipped, false},
		{StatusPaid, StatusProcessing, true},
		{StatusPaid, StatusPendingPayment, false},
		{StatusPaid, StatusPaymentFailed, false},
		{StatusProcessing, StatusShipped, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, false},
		{StatusDelivered, StatusShipped, false},
		{StatusExpired, StatusPaid, false},
		{StatusPaymentFailed, StatusPaid, false},
		{StatusCancelled, StatusPendingPayment, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestSnapshotTotal(t *testing.T) {
	items := []LineItemSnapshot{
		{ProductID: "sku-a", Quantity: 2, UnitPriceCents: 1250},
		{ProductID: "sku-b", Quantity: 3, UnitPriceCents: 400},
	}
	assert.Equal(t, int64(2500), items[0].Subtotal())
	assert.Equal(t, int64(3700), SnapshotTotal(items))
	assert.Zero(t, SnapshotTotal(nil))
}
