package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Marcos415/cotacoesview/internal/portfolio"
	"github.com/Marcos415/cotacoesview/internal/symbols"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// userID extracts the user identifier from the query string. Every
// portfolio route is scoped to one user.
func userID(r *http.Request) string {
	return r.URL.Query().Get("user_id")
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := userID(r)
	if id == "" {
		respondError(w, http.StatusBadRequest, "user_id query parameter is required")
		return "", false
	}
	return id, true
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	snapshot, err := s.container.Portfolio.Snapshot(user)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user).Msg("Failed to build portfolio snapshot")
		respondError(w, http.StatusInternalServerError, "failed to build portfolio")
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handlePortfolioHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	history, err := s.container.Snapshots.History(user, limit)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user).Msg("Failed to load snapshot history")
		respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if history == nil {
		history = []portfolio.RecordedSnapshot{}
	}
	respondJSON(w, http.StatusOK, history)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var input portfolio.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tx, err := portfolio.ParseTransactionInput(input)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	tx.UserID = user

	created, err := s.container.Transactions.Create(tx)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user).Msg("Failed to create transaction")
		respondError(w, http.StatusInternalServerError, "failed to create transaction")
		return
	}

	s.container.Portfolio.Invalidate(user)
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := portfolio.TransactionFilter{
		Side:     portfolio.Side(q.Get("side")),
		DateFrom: q.Get("from"),
		DateTo:   q.Get("to"),
	}
	if symbol := q.Get("symbol"); symbol != "" {
		filter.Symbol = symbols.Canonicalize(symbol)
	}
	if filter.Side != "" && !filter.Side.Valid() {
		respondError(w, http.StatusBadRequest, "side must be BUY or SELL")
		return
	}

	txns, err := s.container.Transactions.ListByUserFiltered(user, filter)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user).Msg("Failed to list transactions")
		respondError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	if txns == nil {
		txns = []portfolio.Transaction{}
	}
	respondJSON(w, http.StatusOK, txns)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	tx, err := s.container.Transactions.GetByID(user, chi.URLParam(r, "id"))
	if errors.Is(err, portfolio.ErrTransactionNotFound) {
		respondError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load transaction")
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var input portfolio.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tx, err := portfolio.ParseTransactionInput(input)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	tx.ID = chi.URLParam(r, "id")
	tx.UserID = user

	err = s.container.Transactions.Update(tx)
	if errors.Is(err, portfolio.ErrTransactionNotFound) {
		respondError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user).Msg("Failed to update transaction")
		respondError(w, http.StatusInternalServerError, "failed to update transaction")
		return
	}

	s.container.Portfolio.Invalidate(user)

	updated, err := s.container.Transactions.GetByID(user, tx.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to reload transaction")
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	err := s.container.Transactions.Delete(user, chi.URLParam(r, "id"))
	if errors.Is(err, portfolio.ErrTransactionNotFound) {
		respondError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user).Msg("Failed to delete transaction")
		respondError(w, http.StatusInternalServerError, "failed to delete transaction")
		return
	}

	s.container.Portfolio.Invalidate(user)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	ticker := symbols.Canonicalize(chi.URLParam(r, "symbol"))

	snapshot, err := s.container.Portfolio.Snapshot(user)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user).Msg("Failed to build portfolio snapshot")
		respondError(w, http.StatusInternalServerError, "failed to build portfolio")
		return
	}

	position, held := snapshot.Positions[ticker]
	if !held {
		respondError(w, http.StatusNotFound, "no open position in "+ticker)
		return
	}
	respondJSON(w, http.StatusOK, position)
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	known := symbols.Known()
	entries := make([]map[string]string, 0, len(known))
	for _, name := range known {
		entries = append(entries, map[string]string{
			"name":   name,
			"ticker": symbols.Canonicalize(name),
		})
	}
	respondJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ticker := symbols.Canonicalize(chi.URLParam(r, "symbol"))

	period := r.URL.Query().Get("period")
	if period == "" {
		period = "6mo"
	}
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = "1d"
	}

	series := s.container.MarketData.History(ticker, period, interval)
	if series.Empty() {
		respondError(w, http.StatusNotFound, "no history available for "+ticker)
		return
	}
	respondJSON(w, http.StatusOK, series)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "symbol")
	ticker := symbols.Canonicalize(raw)

	price := s.container.MarketData.CurrentPrice(ticker)
	if price == nil {
		respondError(w, http.StatusNotFound, "no quote available for "+ticker)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":       ticker,
		"display_name": symbols.DisplayName(ticker),
		"price":        *price,
	})
}

func (s *Server) handlePrediction(w http.ResponseWriter, r *http.Request) {
	ticker := symbols.Canonicalize(chi.URLParam(r, "symbol"))

	predicted := s.container.Prediction.PredictedPrice(ticker)
	if predicted == nil {
		respondError(w, http.StatusNotFound, "no prediction available for "+ticker)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":          ticker,
		"predicted_close": *predicted,
	})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	ticker := symbols.Canonicalize(chi.URLParam(r, "symbol"))

	period := r.URL.Query().Get("period")
	if period == "" {
		period = "1y"
	}
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = "1d"
	}

	chart, err := s.container.Charts.HistoryWithOverlays(ticker, period, interval)
	if err != nil {
		respondError(w, http.StatusNotFound, "no chart data available for "+ticker)
		return
	}
	respondJSON(w, http.StatusOK, chart)
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.container.News.ForUser(user))
}
