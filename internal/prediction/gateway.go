package prediction

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/Marcos415/cotacoesview/internal/cache"
	"github.com/Marcos415/cotacoesview/internal/symbols"
)

// Gateway caches model output per symbol so repeated dashboard loads
// do not retrain.
type Gateway struct {
	history HistoryFetcher
	store   *cache.Store[float64]
	log     zerolog.Logger
}

// NewGateway creates a prediction gateway with the given cache TTL.
func NewGateway(history HistoryFetcher, ttl time.Duration, log zerolog.Logger) *Gateway {
	return &Gateway{
		history: history,
		store:   cache.New[float64](ttl),
		log:     log.With().Str("service", "prediction").Logger(),
	}
}

// PredictedPrice returns the estimated next close for the symbol, or
// nil when the model cannot be trained. Failures are not cached.
func (g *Gateway) PredictedPrice(symbol string) *float64 {
	ticker := symbols.Canonicalize(symbol)
	if ticker == "" {
		return nil
	}

	price, ok := g.store.GetOrCompute(ticker, func() (float64, bool) {
		predicted, err := NextClose(ticker, g.history)
		if err != nil {
			g.log.Debug().Err(err).Str("symbol", ticker).Msg("Prediction unavailable")
			return 0, false
		}
		return *predicted, true
	})
	if !ok {
		return nil
	}
	return &price
}

// PurgeStale drops expired predictions.
func (g *Gateway) PurgeStale() int {
	return g.store.Purge()
}
