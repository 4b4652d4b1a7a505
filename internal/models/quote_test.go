package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuote_Amounts(t *testing.T) {
	q := Quote{InAmount: "1250000000", OutAmount: "187500000", MinimumOut: "186562500"}
	assert.Equal(t, "1250000000", q.In().String())
	assert.Equal(t, "187500000", q.Out().String())
	assert.Equal(t, "186562500", q.MinOut().String())
	assert.False(t, q.IsZero())

	assert.True(t, Quote{}.IsZero())
	assert.Equal(t, "0", Quote{OutAmount: "garbage"}.Out().String())
}

func TestQuote_JSONShape(t *testing.T) {
	q := Quote{
		InputToken:     "SOL",
		OutputToken:    "USDC",
		OutAmount:      "187500000",
		PriceImpactPct: decimal.RequireFromString("0.1"),
		Source:         SourceEstimated,
		FetchedAt:      time.Unix(0, 0).UTC(),
	}
	b, err := json.Marshal(q)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "187500000", m["outAmount"])
	assert.Equal(t, "0.1", m["priceImpactPct"])
	assert.Equal(t, "estimated", m["source"])
}
