// Package yahoo implements a client for the Yahoo Finance v8 chart API.
package yahoo

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/Marcos415/cotacoesview/internal/marketdata"
)

const defaultBaseURL = "https://query2.finance.yahoo.com"

// Client fetches price history from the Yahoo Finance chart endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log.With().Str("client", "yahoo").Logger(),
	}
}

// chartResponse mirrors the subset of the v8 chart payload we consume.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchHistory retrieves candles for symbol over the given range.
// Period and interval use Yahoo's notation ("1y"/"1d", "5d"/"1d",
// "1d"/"1m").
func (c *Client) FetchHistory(symbol, period, interval string) (marketdata.Series, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(interval), url.QueryEscape(period))

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return marketdata.Series{}, fmt.Errorf("failed to create request: %w", err)
	}
	// Yahoo rejects requests without a browser-like user agent
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return marketdata.Series{}, fmt.Errorf("failed to fetch chart for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return marketdata.Series{}, fmt.Errorf("chart request for %s returned status %d", symbol, resp.StatusCode)
	}

	var payload chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return marketdata.Series{}, fmt.Errorf("failed to decode chart response for %s: %w", symbol, err)
	}

	if payload.Chart.Error != nil {
		return marketdata.Series{}, fmt.Errorf("chart API error for %s: %s (%s)",
			symbol, payload.Chart.Error.Description, payload.Chart.Error.Code)
	}
	if len(payload.Chart.Result) == 0 {
		return marketdata.Series{}, fmt.Errorf("chart response for %s contained no result", symbol)
	}

	result := payload.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return marketdata.Series{Symbol: symbol}, nil
	}
	quote := result.Indicators.Quote[0]

	var adjClose []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adjClose = result.Indicators.AdjClose[0].AdjClose
	}

	series := marketdata.Series{
		Symbol: symbol,
		Bars:   make([]marketdata.Bar, 0, len(result.Timestamp)),
	}
	for i, ts := range result.Timestamp {
		series.Bars = append(series.Bars, marketdata.Bar{
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      sanitize(at(quote.Open, i)),
			High:      sanitize(at(quote.High, i)),
			Low:       sanitize(at(quote.Low, i)),
			Close:     sanitize(at(quote.Close, i)),
			AdjClose:  sanitize(at(adjClose, i)),
			Volume:    sanitize(at(quote.Volume, i)),
		})
	}

	c.log.Debug().
		Str("symbol", symbol).
		Str("period", period).
		Str("interval", interval).
		Int("bars", len(series.Bars)).
		Msg("Fetched price history")

	return series, nil
}

// FetchIntraday retrieves today's one-minute candles for symbol.
func (c *Client) FetchIntraday(symbol string) (marketdata.Series, error) {
	return c.FetchHistory(symbol, "1d", "1m")
}

func at(values []*float64, i int) *float64 {
	if i < len(values) {
		return values[i]
	}
	return nil
}

// sanitize drops NaN and infinite values, which Yahoo occasionally
// emits for illiquid bars.
func sanitize(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}
