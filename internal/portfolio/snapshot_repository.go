package portfolio

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Marcos415/cotacoesview/internal/database"
)

// RecordedSnapshot is a historical snapshot as stored by Record.
type RecordedSnapshot struct {
	Snapshot   Snapshot  `json:"snapshot"`
	RecordedAt time.Time `json:"recorded_at"`
}

// SnapshotRepository stores periodic portfolio snapshots so the value
// of a portfolio can be charted over time.
type SnapshotRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *database.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:  db,
		log: log.With().Str("repository", "snapshots").Logger(),
	}
}

// Record persists one snapshot as a msgpack blob.
func (r *SnapshotRepository) Record(snapshot Snapshot) error {
	data, err := msgpack.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO portfolio_snapshots (user_id, data, recorded_at)
		VALUES (?, ?, ?)`,
		snapshot.UserID, data, time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

// History returns the user's most recent snapshots, newest first,
// capped at limit.
func (r *SnapshotRepository) History(userID string, limit int) ([]RecordedSnapshot, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(`
		SELECT data, recorded_at
		FROM portfolio_snapshots
		WHERE user_id = ?
		ORDER BY recorded_at DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var history []RecordedSnapshot
	for rows.Next() {
		var data []byte
		var recordedAt int64
		if err := rows.Scan(&data, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}

		var snapshot Snapshot
		if err := msgpack.Unmarshal(data, &snapshot); err != nil {
			// A corrupt row should not take down the whole history
			r.log.Warn().Err(err).Str("user_id", userID).Msg("Skipping undecodable snapshot")
			continue
		}

		history = append(history, RecordedSnapshot{
			Snapshot:   snapshot,
			RecordedAt: time.Unix(recordedAt, 0).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}
	return history, nil
}

// Users returns the distinct user ids that have at least one
// transaction. Used by the recording job to know whose snapshots to
// take.
func (r *SnapshotRepository) Users() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT user_id FROM transactions`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}
