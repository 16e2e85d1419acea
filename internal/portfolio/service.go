package portfolio

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/Marcos415/cotacoesview/internal/cache"
	"github.com/Marcos415/cotacoesview/internal/symbols"
)

// Ledger lists a user's transactions for replay.
type Ledger interface {
	ListByUser(userID string) ([]Transaction, error)
}

// PriceProvider returns the current price for a symbol, nil when no
// quote is available.
type PriceProvider interface {
	CurrentPrice(symbol string) *float64
}

// Predictor returns the model's estimated next close, nil when the
// model cannot produce one.
type Predictor interface {
	PredictedPrice(symbol string) *float64
}

// Service builds the aggregated portfolio view. Snapshots are cached
// per user and invalidated whenever the ledger changes.
type Service struct {
	ledger    Ledger
	prices    PriceProvider
	predictor Predictor
	store     *cache.Store[Snapshot]
	log       zerolog.Logger
}

// NewService creates the portfolio service. The predictor is optional;
// when nil, positions carry no predicted price.
func NewService(ledger Ledger, prices PriceProvider, predictor Predictor, ttl time.Duration, log zerolog.Logger) *Service {
	return &Service{
		ledger:    ledger,
		prices:    prices,
		predictor: predictor,
		store:     cache.New[Snapshot](ttl, cache.WithClone[Snapshot](Snapshot.Clone)),
		log:       log.With().Str("service", "portfolio").Logger(),
	}
}

// Snapshot returns the user's portfolio view, served from cache when
// fresh. The whole snapshot is computed atomically: every position in
// it comes from the same replay of the ledger.
func (s *Service) Snapshot(userID string) (Snapshot, error) {
	var computeErr error
	snapshot, ok := s.store.GetOrCompute(userID, func() (Snapshot, bool) {
		snap, err := s.build(userID)
		if err != nil {
			computeErr = err
			return Snapshot{}, false
		}
		return snap, true
	})
	if !ok {
		if computeErr == nil {
			// Another caller's coalesced compute failed
			computeErr = fmt.Errorf("snapshot computation failed for user %s", userID)
		}
		return Snapshot{}, computeErr
	}
	return snapshot, nil
}

// Invalidate drops the user's cached snapshot. Called after every
// ledger mutation so the next read reflects it.
func (s *Service) Invalidate(userID string) {
	s.store.Invalidate(userID)
}

func (s *Service) build(userID string) (Snapshot, error) {
	txns, err := s.ledger.ListByUser(userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load ledger for user %s: %w", userID, err)
	}

	states := Reconstruct(txns)

	snapshot := Snapshot{
		UserID:     userID,
		Positions:  make(map[string]Position, len(states)),
		ComputedAt: time.Now().UTC(),
	}

	for symbol, state := range states {
		position := Position{
			Symbol:      symbol,
			DisplayName: symbols.DisplayName(symbol),
			Quantity:    state.Quantity,
			AverageCost: round2(state.AverageCost()),
		}

		if price := s.prices.CurrentPrice(symbol); price != nil {
			position.CurrentPrice = price
			position.MarketValue = round2(*price * state.Quantity)
			position.UnrealizedPnL = round2((*price - state.AverageCost()) * state.Quantity)

			snapshot.TotalMarketValue += position.MarketValue
			if position.UnrealizedPnL > 0 {
				snapshot.TotalUnrealizedGain += position.UnrealizedPnL
			} else {
				snapshot.TotalUnrealizedLoss += position.UnrealizedPnL
			}
		}

		if s.predictor != nil {
			position.PredictedPrice = s.predictor.PredictedPrice(symbol)
		}

		snapshot.Positions[symbol] = position
	}

	snapshot.TotalMarketValue = round2(snapshot.TotalMarketValue)
	snapshot.TotalUnrealizedGain = round2(snapshot.TotalUnrealizedGain)
	snapshot.TotalUnrealizedLoss = round2(snapshot.TotalUnrealizedLoss)

	s.log.Debug().
		Str("user_id", userID).
		Int("positions", len(snapshot.Positions)).
		Float64("market_value", snapshot.TotalMarketValue).
		Msg("Portfolio snapshot computed")

	return snapshot, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
