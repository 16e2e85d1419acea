package portfolio

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Marcos415/cotacoesview/internal/database"
)

// ErrTransactionNotFound is returned when a transaction does not exist
// or belongs to another user.
var ErrTransactionNotFound = errors.New("transaction not found")

// TransactionFilter narrows ListByUserFiltered. Zero values mean no
// constraint.
type TransactionFilter struct {
	Symbol   string
	Side     Side
	DateFrom string // YYYY-MM-DD inclusive
	DateTo   string // YYYY-MM-DD inclusive
}

// TransactionRepository persists the transaction ledger.
type TransactionRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *database.DB, log zerolog.Logger) *TransactionRepository {
	return &TransactionRepository{
		db:  db,
		log: log.With().Str("repository", "transactions").Logger(),
	}
}

const transactionColumns = `id, user_id, symbol, side, quantity, unit_price, fees, trade_date, trade_time, notes, created_at`

// Create inserts a new transaction, assigning its ID and creation time.
func (r *TransactionRepository) Create(tx Transaction) (Transaction, error) {
	if tx.UserID == "" {
		return Transaction{}, fmt.Errorf("user id is required")
	}

	tx.ID = uuid.New().String()
	tx.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(`
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.Symbol, string(tx.Side),
		formatAmount(tx.Quantity), formatAmount(tx.UnitPrice), formatAmount(tx.Fees),
		tx.TradeDate, nullString(tx.TradeTime), nullString(tx.Notes),
		tx.CreatedAt.Unix(),
	)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to insert transaction: %w", err)
	}

	r.log.Debug().
		Str("id", tx.ID).
		Str("user_id", tx.UserID).
		Str("symbol", tx.Symbol).
		Str("side", string(tx.Side)).
		Msg("Transaction recorded")

	return tx, nil
}

// GetByID returns one of the user's transactions.
func (r *TransactionRepository) GetByID(userID, id string) (Transaction, error) {
	row := r.db.QueryRow(`
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = ? AND user_id = ?`, id, userID)

	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Transaction{}, ErrTransactionNotFound
	}
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to load transaction %s: %w", id, err)
	}
	return tx, nil
}

// Update replaces the mutable fields of an existing transaction. The
// ID, user and creation time never change.
func (r *TransactionRepository) Update(tx Transaction) error {
	result, err := r.db.Exec(`
		UPDATE transactions
		SET symbol = ?, side = ?, quantity = ?, unit_price = ?, fees = ?,
		    trade_date = ?, trade_time = ?, notes = ?
		WHERE id = ? AND user_id = ?`,
		tx.Symbol, string(tx.Side),
		formatAmount(tx.Quantity), formatAmount(tx.UnitPrice), formatAmount(tx.Fees),
		tx.TradeDate, nullString(tx.TradeTime), nullString(tx.Notes),
		tx.ID, tx.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", tx.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// Delete removes one of the user's transactions.
func (r *TransactionRepository) Delete(userID, id string) error {
	result, err := r.db.Exec(`DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// ListByUser returns the user's full ledger in replay order.
func (r *TransactionRepository) ListByUser(userID string) ([]Transaction, error) {
	return r.ListByUserFiltered(userID, TransactionFilter{})
}

// ListByUserFiltered returns the user's ledger, optionally narrowed by
// symbol, side or date range, in replay order.
func (r *TransactionRepository) ListByUserFiltered(userID string, filter TransactionFilter) ([]Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ?`
	args := []interface{}{userID}

	if filter.Symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, filter.Symbol)
	}
	if filter.Side != "" {
		query += ` AND side = ?`
		args = append(args, string(filter.Side))
	}
	if filter.DateFrom != "" {
		query += ` AND trade_date >= ?`
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		query += ` AND trade_date <= ?`
		args = append(args, filter.DateTo)
	}

	query += ` ORDER BY symbol, trade_date, trade_time, created_at`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txns, nil
}

// HeldSymbols returns the symbols with an open position, derived by
// replaying the user's ledger.
func (r *TransactionRepository) HeldSymbols(userID string) ([]string, error) {
	txns, err := r.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	states := Reconstruct(txns)
	held := make([]string, 0, len(states))
	for symbol := range states {
		held = append(held, symbol)
	}
	return held, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var tx Transaction
	var side, quantity, unitPrice, fees string
	var tradeTime, notes sql.NullString
	var createdAt int64

	err := row.Scan(&tx.ID, &tx.UserID, &tx.Symbol, &side,
		&quantity, &unitPrice, &fees,
		&tx.TradeDate, &tradeTime, &notes, &createdAt)
	if err != nil {
		return Transaction{}, err
	}

	tx.Side = Side(side)
	if tx.Quantity, err = strconv.ParseFloat(quantity, 64); err != nil {
		return Transaction{}, fmt.Errorf("corrupt quantity %q: %w", quantity, err)
	}
	if tx.UnitPrice, err = strconv.ParseFloat(unitPrice, 64); err != nil {
		return Transaction{}, fmt.Errorf("corrupt unit price %q: %w", unitPrice, err)
	}
	if tx.Fees, err = strconv.ParseFloat(fees, 64); err != nil {
		return Transaction{}, fmt.Errorf("corrupt fees %q: %w", fees, err)
	}
	tx.TradeTime = tradeTime.String
	tx.Notes = notes.String
	tx.CreatedAt = time.Unix(createdAt, 0).UTC()

	return tx, nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
