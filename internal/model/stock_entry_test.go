package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStockEntry_CanReserve(t *testing.T) {
	e := &StockEntry{ProductID: "sku-a", Available: 5, Reserved: 2}

	assert.True(t, e.CanReserve(5))
	assert.False(t, e.CanReserve(6))
	assert.False(t, e.CanReserve(0))
	assert.False(t, e.CanReserve(-1))
}
