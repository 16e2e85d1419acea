// Package charts prepares price series with indicator overlays for the
// chart endpoints.
package charts

import (
	"fmt"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"github.com/Marcos415/cotacoesview/internal/cache"
	"github.com/Marcos415/cotacoesview/internal/marketdata"
)

const (
	smaPeriod = 20
	emaPeriod = 50
)

// Chart is a price series with moving average overlays. Overlay
// entries are nil during the indicator warmup window.
type Chart struct {
	Symbol string           `json:"symbol"`
	Bars   []marketdata.Bar `json:"bars"`
	SMA20  []*float64       `json:"sma_20"`
	EMA50  []*float64       `json:"ema_50"`
}

// HistoryFetcher provides the underlying price series.
type HistoryFetcher interface {
	History(symbol, period, interval string) marketdata.Series
}

// Service computes and caches chart data.
type Service struct {
	history HistoryFetcher
	store   *cache.Store[Chart]
	log     zerolog.Logger
}

// NewService creates the chart service with the given cache TTL.
func NewService(history HistoryFetcher, ttl time.Duration, log zerolog.Logger) *Service {
	return &Service{
		history: history,
		store:   cache.New[Chart](ttl, cache.WithClone[Chart](cloneChart)),
		log:     log.With().Str("service", "charts").Logger(),
	}
}

// HistoryWithOverlays returns the symbol's candles for the range with
// SMA(20) and EMA(50) overlays. Bars without a close are excluded so
// the overlays stay aligned with the candles.
func (s *Service) HistoryWithOverlays(symbol, period, interval string) (Chart, error) {
	key := fmt.Sprintf("%s|%s|%s", symbol, period, interval)
	chart, ok := s.store.GetOrCompute(key, func() (Chart, bool) {
		series := s.history.History(symbol, period, interval)
		if series.Empty() {
			return Chart{}, false
		}
		return buildChart(series), true
	})
	if !ok {
		return Chart{}, fmt.Errorf("no chart data for %s over %s", symbol, period)
	}
	return chart, nil
}

// PurgeStale drops expired chart entries.
func (s *Service) PurgeStale() int {
	return s.store.Purge()
}

func buildChart(series marketdata.Series) Chart {
	bars := make([]marketdata.Bar, 0, len(series.Bars))
	closes := make([]float64, 0, len(series.Bars))
	for _, bar := range series.Bars {
		if c := bar.EffectiveClose(); c != nil {
			bars = append(bars, bar)
			closes = append(closes, *c)
		}
	}

	chart := Chart{
		Symbol: series.Symbol,
		Bars:   bars,
		SMA20:  overlay(closes, smaPeriod, talib.Sma),
		EMA50:  overlay(closes, emaPeriod, talib.Ema),
	}
	return chart
}

// overlay runs an indicator and blanks the warmup window, where talib
// emits zeros rather than meaningful values.
func overlay(closes []float64, period int, indicator func([]float64, int) []float64) []*float64 {
	out := make([]*float64, len(closes))
	if len(closes) < period {
		return out
	}

	values := indicator(closes, period)
	for i := period - 1; i < len(values); i++ {
		v := values[i]
		out[i] = &v
	}
	return out
}

// cloneChart deep-copies a cached chart so callers can never mutate
// the cached entry through the pointer fields inside each bar.
func cloneChart(c Chart) Chart {
	return Chart{
		Symbol: c.Symbol,
		Bars:   marketdata.Series{Bars: c.Bars}.Clone().Bars,
		SMA20:  cloneOverlay(c.SMA20),
		EMA50:  cloneOverlay(c.EMA50),
	}
}

func cloneOverlay(values []*float64) []*float64 {
	out := make([]*float64, len(values))
	for i, v := range values {
		if v != nil {
			c := *v
			out[i] = &c
		}
	}
	return out
}
