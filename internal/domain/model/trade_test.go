package model_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapStreamApp/internal/domain/model"
)

func TestTradeEvent_JSONShape(t *testing.T) {
	ev := model.TradeEvent{
		TransactionID:    "0xabc",
		TradeType:        model.TradeTypeSell,
		Timestamp:        1718000000123,
		ProcessingTimeUs: 900,
		BlockNumber:      42,
		PriceUsd:         "2.50",
	}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Equal(t, "1718000000123", raw["timestamp"])
	assert.Equal(t, "900", raw["processingTimeUs"])
	assert.Equal(t, "42", raw["blockNumber"])
	assert.Equal(t, float64(2), raw["tradeType"])
	assert.Equal(t, "2.50", raw["priceUsd"])
	assert.Contains(t, raw, "pnlMint7d")
	assert.Nil(t, raw["pnlMint7d"])
	assert.NotContains(t, raw, "currentSupply")
	assert.NotContains(t, raw, "ReceivedAt")
	assert.Contains(t, raw, "ethAmount")
	assert.Contains(t, raw, "currentEthBalance")

	var back model.TradeEvent
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, ev, back)
}

func TestPnlMetrics_IsZero(t *testing.T) {
	assert.True(t, model.PnlMetrics{}.IsZero())
	assert.False(t, model.PnlMetrics{RealizedPnlPct: -0.01}.IsZero())
}

func TestTradeType_String(t *testing.T) {
	assert.Equal(t, "BUY", model.TradeTypeBuy.String())
	assert.Equal(t, "SELL", model.TradeTypeSell.String())
	assert.Equal(t, "UNSPECIFIED", model.TradeTypeUnspecified.String())
	assert.Equal(t, "UNKNOWN", model.TradeType(9).String())
}
