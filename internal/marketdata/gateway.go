package marketdata

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Marcos415/cotacoesview/internal/cache"
	"github.com/Marcos415/cotacoesview/internal/symbols"
)

// Fetcher retrieves raw price data from the quote provider.
type Fetcher interface {
	FetchHistory(symbol, period, interval string) (Series, error)
	FetchIntraday(symbol string) (Series, error)
}

// Gateway serves quotes and history with a TTL cache in front of the
// provider. Lookups never fail hard: a provider error surfaces as a
// nil price or an empty series, and nothing is cached for it.
type Gateway struct {
	fetcher Fetcher
	prices  *cache.Store[float64]
	history *cache.Store[Series]
	log     zerolog.Logger
}

// NewGateway creates a gateway whose cached values stay fresh for ttl.
func NewGateway(fetcher Fetcher, ttl time.Duration, log zerolog.Logger) *Gateway {
	return &Gateway{
		fetcher: fetcher,
		prices:  cache.New[float64](ttl),
		history: cache.New[Series](ttl, cache.WithClone[Series](Series.Clone)),
		log:     log.With().Str("service", "marketdata").Logger(),
	}
}

// CurrentPrice returns the latest traded price for the symbol, or nil
// when the provider has no quote. Intraday minute bars are tried
// first; symbols without intraday data fall back to recent dailies.
func (g *Gateway) CurrentPrice(symbol string) *float64 {
	ticker := symbols.Canonicalize(symbol)
	if ticker == "" {
		return nil
	}

	price, ok := g.prices.GetOrCompute(ticker, func() (float64, bool) {
		return g.fetchLatest(ticker)
	})
	if !ok {
		return nil
	}
	return &price
}

func (g *Gateway) fetchLatest(ticker string) (float64, bool) {
	series, err := g.fetcher.FetchIntraday(ticker)
	if err != nil || series.Empty() {
		if err != nil {
			g.log.Debug().Err(err).Str("symbol", ticker).Msg("Intraday fetch failed, trying daily bars")
		}
		series, err = g.fetcher.FetchHistory(ticker, "5d", "1d")
		if err != nil {
			g.log.Warn().Err(err).Str("symbol", ticker).Msg("Price lookup failed")
			return 0, false
		}
	}

	last, ok := series.Last()
	if !ok {
		g.log.Warn().Str("symbol", ticker).Msg("Provider returned no usable bars")
		return 0, false
	}
	return *last.EffectiveClose(), true
}

// History returns candles for the symbol over the given range. On
// provider failure it returns an empty series and does not cache,
// so the next call retries.
func (g *Gateway) History(symbol, period, interval string) Series {
	ticker := symbols.Canonicalize(symbol)
	if ticker == "" {
		return Series{}
	}

	key := fmt.Sprintf("%s|%s|%s", ticker, period, interval)
	series, ok := g.history.GetOrCompute(key, func() (Series, bool) {
		s, err := g.fetcher.FetchHistory(ticker, period, interval)
		if err != nil {
			g.log.Warn().Err(err).Str("symbol", ticker).Str("period", period).Msg("History fetch failed")
			return Series{}, false
		}
		if s.Empty() {
			return Series{}, false
		}
		return s, true
	})
	if !ok {
		return Series{Symbol: ticker}
	}
	return series
}

// PurgeStale drops expired cache entries and returns how many were
// removed. Called from the maintenance job.
func (g *Gateway) PurgeStale() int {
	return g.prices.Purge() + g.history.Purge()
}
