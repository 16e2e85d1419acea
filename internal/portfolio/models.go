// Package portfolio implements the transaction ledger, position
// reconstruction and the aggregated portfolio view.
package portfolio

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Marcos415/cotacoesview/internal/symbols"
)

// Side is the direction of a transaction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether the side is one of the known values.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Transaction is one ledger entry. Positions are never stored; they
// are reconstructed by replaying the user's transactions in order.
type Transaction struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Quantity  float64   `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	Fees      float64   `json:"fees"`
	TradeDate string    `json:"trade_date"`           // YYYY-MM-DD
	TradeTime string    `json:"trade_time,omitempty"` // HH:MM, optional
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TransactionInput is the raw form of a transaction as submitted by a
// client. Numeric fields arrive as strings and are validated with
// exact decimal arithmetic before conversion.
type TransactionInput struct {
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Quantity  string `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Fees      string `json:"fees"`
	TradeDate string `json:"trade_date"`
	TradeTime string `json:"trade_time"`
	Notes     string `json:"notes"`
}

// ParseTransactionInput validates raw input and produces a Transaction
// without ID, UserID or CreatedAt, which the repository assigns.
func ParseTransactionInput(in TransactionInput) (Transaction, error) {
	var tx Transaction

	if in.Symbol == "" {
		return tx, fmt.Errorf("symbol is required")
	}

	side := Side(in.Side)
	if !side.Valid() {
		return tx, fmt.Errorf("side must be %s or %s", SideBuy, SideSell)
	}

	quantity, err := decimal.NewFromString(in.Quantity)
	if err != nil {
		return tx, fmt.Errorf("invalid quantity %q: %w", in.Quantity, err)
	}
	if !quantity.IsPositive() {
		return tx, fmt.Errorf("quantity must be positive")
	}

	unitPrice, err := decimal.NewFromString(in.UnitPrice)
	if err != nil {
		return tx, fmt.Errorf("invalid unit price %q: %w", in.UnitPrice, err)
	}
	if !unitPrice.IsPositive() {
		return tx, fmt.Errorf("unit price must be positive")
	}

	fees := decimal.Zero
	if in.Fees != "" {
		fees, err = decimal.NewFromString(in.Fees)
		if err != nil {
			return tx, fmt.Errorf("invalid fees %q: %w", in.Fees, err)
		}
		if fees.IsNegative() {
			return tx, fmt.Errorf("fees cannot be negative")
		}
	}

	if _, err := time.Parse("2006-01-02", in.TradeDate); err != nil {
		return tx, fmt.Errorf("invalid trade date %q, expected YYYY-MM-DD", in.TradeDate)
	}
	if in.TradeTime != "" {
		if _, err := time.Parse("15:04", in.TradeTime); err != nil {
			return tx, fmt.Errorf("invalid trade time %q, expected HH:MM", in.TradeTime)
		}
	}

	tx = Transaction{
		Symbol:    symbols.Canonicalize(in.Symbol),
		Side:      side,
		Quantity:  quantity.InexactFloat64(),
		UnitPrice: unitPrice.InexactFloat64(),
		Fees:      fees.InexactFloat64(),
		TradeDate: in.TradeDate,
		TradeTime: in.TradeTime,
		Notes:     in.Notes,
	}
	return tx, nil
}

// LotState is the reconstructed position for one symbol: how many
// units are held and what they cost in total, fees included.
type LotState struct {
	Quantity        float64 `json:"quantity"`
	AccumulatedCost float64 `json:"accumulated_cost"`
}

// AverageCost returns the cost per unit, or 0 for an empty position.
func (l LotState) AverageCost() float64 {
	if l.Quantity <= 0 {
		return 0
	}
	return l.AccumulatedCost / l.Quantity
}

// Position is one row of the aggregated portfolio view.
type Position struct {
	Symbol         string   `json:"symbol"`
	DisplayName    string   `json:"display_name"`
	Quantity       float64  `json:"quantity"`
	AverageCost    float64  `json:"average_cost"`
	CurrentPrice   *float64 `json:"current_price"`
	MarketValue    float64  `json:"market_value"`
	UnrealizedPnL  float64  `json:"unrealized_pnl"`
	PredictedPrice *float64 `json:"predicted_price,omitempty"`
}

// Snapshot is the full portfolio view for one user at one moment.
type Snapshot struct {
	UserID              string              `json:"user_id"`
	Positions           map[string]Position `json:"positions"`
	TotalMarketValue    float64             `json:"total_market_value"`
	TotalUnrealizedGain float64             `json:"total_unrealized_gain"`
	TotalUnrealizedLoss float64             `json:"total_unrealized_loss"`
	ComputedAt          time.Time           `json:"computed_at"`
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Positions = make(map[string]Position, len(s.Positions))
	for k, p := range s.Positions {
		cp := p
		if p.CurrentPrice != nil {
			v := *p.CurrentPrice
			cp.CurrentPrice = &v
		}
		if p.PredictedPrice != nil {
			v := *p.PredictedPrice
			cp.PredictedPrice = &v
		}
		out.Positions[k] = cp
	}
	return out
}
