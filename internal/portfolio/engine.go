package portfolio

import (
	"math"
	"sort"
)

// epsilon guards against float drift when a position is sold down to
// zero: any residual below it counts as an empty position.
const epsilon = 1e-5

// Reconstruct replays a user's transactions and returns the open
// position per symbol. The input order does not matter; transactions
// are replayed per symbol ordered by trade date, trade time and
// insertion time.
//
// Replay rules:
//   - A buy adds quantity, and adds quantity*price plus fees to cost.
//   - A sell removes quantity at the current average cost, plus fees.
//   - A sell larger than the held quantity closes the position.
//   - A sell with nothing held is ignored.
//
// Symbols whose final quantity is zero are omitted from the result.
func Reconstruct(txns []Transaction) map[string]LotState {
	ordered := make([]Transaction, len(txns))
	copy(ordered, txns)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		if a.TradeDate != b.TradeDate {
			return a.TradeDate < b.TradeDate
		}
		if a.TradeTime != b.TradeTime {
			return a.TradeTime < b.TradeTime
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	states := make(map[string]LotState)
	for _, tx := range ordered {
		state := states[tx.Symbol]
		states[tx.Symbol] = apply(state, tx)
	}

	for symbol, state := range states {
		if state.Quantity <= epsilon {
			delete(states, symbol)
		}
	}
	return states
}

// apply advances a single position by one transaction.
func apply(state LotState, tx Transaction) LotState {
	switch tx.Side {
	case SideBuy:
		state.Quantity += tx.Quantity
		state.AccumulatedCost += tx.Quantity*tx.UnitPrice + tx.Fees

	case SideSell:
		if state.Quantity <= epsilon {
			// Selling with nothing held leaves the position untouched
			return state
		}
		if tx.Quantity >= state.Quantity-epsilon {
			return LotState{}
		}

		avg := state.AccumulatedCost / state.Quantity
		state.Quantity -= tx.Quantity
		state.AccumulatedCost -= tx.Quantity*avg + tx.Fees

		if state.Quantity <= epsilon || state.AccumulatedCost < 0 {
			state.AccumulatedCost = math.Max(state.AccumulatedCost, 0)
		}
		if state.Quantity <= epsilon {
			return LotState{}
		}
	}
	return state
}
