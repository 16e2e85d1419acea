package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marcos415/cotacoesview/internal/charts"
	"github.com/Marcos415/cotacoesview/internal/config"
	"github.com/Marcos415/cotacoesview/internal/database"
	"github.com/Marcos415/cotacoesview/internal/di"
	"github.com/Marcos415/cotacoesview/internal/marketdata"
	"github.com/Marcos415/cotacoesview/internal/news"
	"github.com/Marcos415/cotacoesview/internal/portfolio"
	"github.com/Marcos415/cotacoesview/internal/prediction"
)

// fakeFetcher serves canned quotes so handler tests never reach the
// real provider.
type fakeFetcher struct {
	closes map[string][]float64
}

func (f *fakeFetcher) series(symbol string, closes []float64) marketdata.Series {
	s := marketdata.Series{Symbol: symbol}
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := range closes {
		c := closes[i]
		s.Bars = append(s.Bars, marketdata.Bar{Timestamp: base.AddDate(0, 0, i), Close: &c})
	}
	return s
}

func (f *fakeFetcher) FetchIntraday(symbol string) (marketdata.Series, error) {
	return f.series(symbol, f.closes[symbol]), nil
}

func (f *fakeFetcher) FetchHistory(symbol, period, interval string) (marketdata.Series, error) {
	return f.series(symbol, f.closes[symbol]), nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{
		DataDir:       t.TempDir(),
		Port:          8000,
		MarketDataTTL: 5 * time.Minute,
		NewsTTL:       time.Hour,
		PortfolioTTL:  2 * time.Minute,
		PredictionTTL: 10 * time.Minute,
		ChartTTL:      time.Hour,
	}

	db, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "test.db"),
		Name: "test",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	log := zerolog.Nop()
	transactions := portfolio.NewTransactionRepository(db, log)
	snapshots := portfolio.NewSnapshotRepository(db, log)

	fetcher := &fakeFetcher{closes: map[string][]float64{
		"PETR4.SA": {108.0, 110.0},
	}}
	market := marketdata.NewGateway(fetcher, cfg.MarketDataTTL, log)
	predictor := prediction.NewGateway(market, cfg.PredictionTTL, log)

	container := &di.Container{
		Config:       cfg,
		Log:          log,
		DB:           db,
		Transactions: transactions,
		Snapshots:    snapshots,
		MarketData:   market,
		Prediction:   predictor,
		Portfolio:    portfolio.NewService(transactions, market, nil, cfg.PortfolioTTL, log),
		Charts:       charts.NewService(market, cfg.ChartTTL, log),
		News:         news.NewService(nil, transactions, cfg.NewsTTL, log),
	}

	return New(container)
}

func doRequest(t *testing.T, s *Server, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func createTransaction(t *testing.T, s *Server, user string, input portfolio.TransactionInput) portfolio.Transaction {
	t.Helper()
	rec := doRequest(t, s, http.MethodPost, "/api/transactions/?user_id="+user, input)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var tx portfolio.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tx))
	return tx
}

func buyInput(symbol, qty, price string) portfolio.TransactionInput {
	return portfolio.TransactionInput{
		Symbol: symbol, Side: "BUY", Quantity: qty,
		UnitPrice: price, TradeDate: "2024-01-10",
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestCreateTransaction(t *testing.T) {
	s := newTestServer(t)

	tx := createTransaction(t, s, "user-1", portfolio.TransactionInput{
		Symbol: "petrobras", Side: "BUY", Quantity: "10",
		UnitPrice: "100.00", Fees: "5.00", TradeDate: "2024-01-10",
	})

	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, "PETR4.SA", tx.Symbol)
	assert.Equal(t, "user-1", tx.UserID)
}

func TestCreateTransactionValidation(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/transactions/?user_id=user-1",
		portfolio.TransactionInput{Symbol: "PETR4.SA", Side: "BUY", Quantity: "-1", UnitPrice: "10", TradeDate: "2024-01-10"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/transactions/", buyInput("PETR4.SA", "1", "10"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "user_id")
}

func TestTransactionLifecycle(t *testing.T) {
	s := newTestServer(t)

	tx := createTransaction(t, s, "user-1", buyInput("PETR4.SA", "10", "100.00"))

	rec := doRequest(t, s, http.MethodGet, fmt.Sprintf("/api/transactions/%s?user_id=user-1", tx.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	update := buyInput("PETR4.SA", "12", "100.00")
	rec = doRequest(t, s, http.MethodPut, fmt.Sprintf("/api/transactions/%s?user_id=user-1", tx.ID), update)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated portfolio.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.InDelta(t, 12, updated.Quantity, 1e-9)

	rec = doRequest(t, s, http.MethodDelete, fmt.Sprintf("/api/transactions/%s?user_id=user-1", tx.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, s, http.MethodGet, fmt.Sprintf("/api/transactions/%s?user_id=user-1", tx.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransactionsAreUserScoped(t *testing.T) {
	s := newTestServer(t)

	tx := createTransaction(t, s, "user-1", buyInput("PETR4.SA", "10", "100.00"))

	rec := doRequest(t, s, http.MethodGet, fmt.Sprintf("/api/transactions/%s?user_id=user-2", tx.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTransactionsFiltered(t *testing.T) {
	s := newTestServer(t)

	createTransaction(t, s, "user-1", buyInput("PETR4.SA", "10", "100.00"))
	createTransaction(t, s, "user-1", buyInput("VALE3.SA", "5", "60.00"))

	rec := doRequest(t, s, http.MethodGet, "/api/transactions/?user_id=user-1&symbol=petrobras", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var txns []portfolio.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txns))
	require.Len(t, txns, 1)
	assert.Equal(t, "PETR4.SA", txns[0].Symbol)

	rec = doRequest(t, s, http.MethodGet, "/api/transactions/?user_id=user-1&side=HOLD", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPortfolioReflectsLedger(t *testing.T) {
	s := newTestServer(t)

	createTransaction(t, s, "user-1", portfolio.TransactionInput{
		Symbol: "PETR4.SA", Side: "BUY", Quantity: "10",
		UnitPrice: "100.00", Fees: "5.00", TradeDate: "2024-01-10",
	})

	rec := doRequest(t, s, http.MethodGet, "/api/portfolio?user_id=user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap portfolio.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Contains(t, snap.Positions, "PETR4.SA")

	pos := snap.Positions["PETR4.SA"]
	assert.InDelta(t, 100.50, pos.AverageCost, 1e-9)
	require.NotNil(t, pos.CurrentPrice)
	assert.InDelta(t, 110.0, *pos.CurrentPrice, 1e-9)
	assert.InDelta(t, 1100.0, pos.MarketValue, 1e-9)
}

func TestPortfolioInvalidatedByMutation(t *testing.T) {
	s := newTestServer(t)

	createTransaction(t, s, "user-1", buyInput("PETR4.SA", "10", "100.00"))
	doRequest(t, s, http.MethodGet, "/api/portfolio?user_id=user-1", nil)

	// A second buy must show up immediately despite the snapshot cache
	createTransaction(t, s, "user-1", buyInput("PETR4.SA", "5", "120.00"))

	rec := doRequest(t, s, http.MethodGet, "/api/portfolio?user_id=user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap portfolio.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.InDelta(t, 15, snap.Positions["PETR4.SA"].Quantity, 1e-9)
}

func TestQuote(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/quotes/petrobras", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"symbol":"PETR4.SA"`)
	assert.Contains(t, rec.Body.String(), `"price":110`)
}

func TestQuoteUnknownSymbol(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/quotes/ZZZZ", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPortfolioHistoryEmpty(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/portfolio/history?user_id=user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestNewsDisabledWithoutKey(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/news?user_id=user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}
