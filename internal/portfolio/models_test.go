package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTransactionInput(t *testing.T) {
	tx, err := ParseTransactionInput(TransactionInput{
		Symbol:    "petrobras",
		Side:      "BUY",
		Quantity:  "10",
		UnitPrice: "100.50",
		Fees:      "5.25",
		TradeDate: "2024-01-10",
		TradeTime: "10:30",
		Notes:     "first lot",
	})
	require.NoError(t, err)

	assert.Equal(t, "PETR4.SA", tx.Symbol)
	assert.Equal(t, SideBuy, tx.Side)
	assert.InDelta(t, 10, tx.Quantity, 1e-9)
	assert.InDelta(t, 100.50, tx.UnitPrice, 1e-9)
	assert.InDelta(t, 5.25, tx.Fees, 1e-9)
}

func TestParseTransactionInputDefaultsFees(t *testing.T) {
	tx, err := ParseTransactionInput(TransactionInput{
		Symbol: "VALE3.SA", Side: "SELL", Quantity: "2",
		UnitPrice: "61.30", TradeDate: "2024-02-01",
	})
	require.NoError(t, err)
	assert.Zero(t, tx.Fees)
	assert.Empty(t, tx.TradeTime)
}

func TestParseTransactionInputRejections(t *testing.T) {
	valid := TransactionInput{
		Symbol: "PETR4.SA", Side: "BUY", Quantity: "1",
		UnitPrice: "10", TradeDate: "2024-01-10",
	}

	cases := []struct {
		name   string
		mutate func(*TransactionInput)
	}{
		{"missing symbol", func(in *TransactionInput) { in.Symbol = "" }},
		{"bad side", func(in *TransactionInput) { in.Side = "HOLD" }},
		{"zero quantity", func(in *TransactionInput) { in.Quantity = "0" }},
		{"negative quantity", func(in *TransactionInput) { in.Quantity = "-1" }},
		{"quantity not a number", func(in *TransactionInput) { in.Quantity = "ten" }},
		{"zero price", func(in *TransactionInput) { in.UnitPrice = "0" }},
		{"negative fees", func(in *TransactionInput) { in.Fees = "-0.01" }},
		{"bad date", func(in *TransactionInput) { in.TradeDate = "10/01/2024" }},
		{"bad time", func(in *TransactionInput) { in.TradeTime = "25:99" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.mutate(&in)
			_, err := ParseTransactionInput(in)
			assert.Error(t, err)
		})
	}
}

func TestLotStateAverageCost(t *testing.T) {
	assert.InDelta(t, 100.50, LotState{Quantity: 10, AccumulatedCost: 1005}.AverageCost(), 1e-9)
	assert.Zero(t, LotState{}.AverageCost())
}
