package marketdata

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	intraday      map[string]Series
	history       map[string]Series
	err           error
	intradayCalls int
	historyCalls  int
}

func (s *stubFetcher) FetchIntraday(symbol string) (Series, error) {
	s.intradayCalls++
	if s.err != nil {
		return Series{}, s.err
	}
	return s.intraday[symbol], nil
}

func (s *stubFetcher) FetchHistory(symbol, period, interval string) (Series, error) {
	s.historyCalls++
	if s.err != nil {
		return Series{}, s.err
	}
	return s.history[symbol+"|"+period+"|"+interval], nil
}

func seriesWithCloses(symbol string, closes ...float64) Series {
	s := Series{Symbol: symbol}
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := range closes {
		c := closes[i]
		s.Bars = append(s.Bars, Bar{Timestamp: base.AddDate(0, 0, i), Close: &c})
	}
	return s
}

func TestCurrentPriceFromIntraday(t *testing.T) {
	fetcher := &stubFetcher{
		intraday: map[string]Series{
			"PETR4.SA": seriesWithCloses("PETR4.SA", 30.1, 30.5),
		},
	}
	gw := NewGateway(fetcher, time.Minute, zerolog.Nop())

	price := gw.CurrentPrice("petrobras")
	require.NotNil(t, price)
	assert.InDelta(t, 30.5, *price, 1e-9)

	// Second call is served from cache
	gw.CurrentPrice("PETR4.SA")
	assert.Equal(t, 1, fetcher.intradayCalls)
}

func TestCurrentPriceFallsBackToDaily(t *testing.T) {
	fetcher := &stubFetcher{
		intraday: map[string]Series{},
		history: map[string]Series{
			"VALE3.SA|5d|1d": seriesWithCloses("VALE3.SA", 61.0, 62.4),
		},
	}
	gw := NewGateway(fetcher, time.Minute, zerolog.Nop())

	price := gw.CurrentPrice("VALE3.SA")
	require.NotNil(t, price)
	assert.InDelta(t, 62.4, *price, 1e-9)
	assert.Equal(t, 1, fetcher.historyCalls)
}

func TestCurrentPriceUnavailable(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("provider down")}
	gw := NewGateway(fetcher, time.Minute, zerolog.Nop())

	assert.Nil(t, gw.CurrentPrice("PETR4.SA"))

	// Failures are not cached; the fetcher is hit again
	fetcher.err = nil
	fetcher.intraday = map[string]Series{
		"PETR4.SA": seriesWithCloses("PETR4.SA", 31.0),
	}
	price := gw.CurrentPrice("PETR4.SA")
	require.NotNil(t, price)
	assert.InDelta(t, 31.0, *price, 1e-9)
}

func TestHistoryCachesAndClones(t *testing.T) {
	fetcher := &stubFetcher{
		history: map[string]Series{
			"PETR4.SA|1y|1d": seriesWithCloses("PETR4.SA", 28.0, 29.0, 30.0),
		},
	}
	gw := NewGateway(fetcher, time.Minute, zerolog.Nop())

	first := gw.History("PETR4.SA", "1y", "1d")
	require.Len(t, first.Bars, 3)

	// Mutating the returned series must not corrupt the cache
	*first.Bars[0].Close = 999

	second := gw.History("PETR4.SA", "1y", "1d")
	assert.InDelta(t, 28.0, *second.Bars[0].Close, 1e-9)
	assert.Equal(t, 1, fetcher.historyCalls)
}

func TestHistoryEmptyOnFailure(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("timeout")}
	gw := NewGateway(fetcher, time.Minute, zerolog.Nop())

	series := gw.History("VALE3.SA", "6mo", "1d")
	assert.True(t, series.Empty())
	assert.Equal(t, "VALE3.SA", series.Symbol)
}
