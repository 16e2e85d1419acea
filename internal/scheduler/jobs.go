package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Marcos415/cotacoesview/internal/portfolio"
)

// UserLister enumerates users with ledger activity.
type UserLister interface {
	Users() ([]string, error)
}

// HoldingsLister lists a user's open symbols.
type HoldingsLister interface {
	HeldSymbols(userID string) ([]string, error)
}

// PriceWarmer fetches a price, filling the quote cache as a side
// effect.
type PriceWarmer interface {
	CurrentPrice(symbol string) *float64
}

// PriceWarmJob pre-fetches quotes for every held symbol so dashboard
// loads hit a warm cache.
type PriceWarmJob struct {
	users    UserLister
	holdings HoldingsLister
	prices   PriceWarmer
	log      zerolog.Logger
}

// NewPriceWarmJob creates the price warming job
func NewPriceWarmJob(users UserLister, holdings HoldingsLister, prices PriceWarmer, log zerolog.Logger) *PriceWarmJob {
	return &PriceWarmJob{users: users, holdings: holdings, prices: prices, log: log}
}

func (j *PriceWarmJob) Name() string { return "price-warm" }

func (j *PriceWarmJob) Run() error {
	users, err := j.users.Users()
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	seen := map[string]bool{}
	warmed := 0
	for _, userID := range users {
		held, err := j.holdings.HeldSymbols(userID)
		if err != nil {
			j.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to list holdings")
			continue
		}
		for _, symbol := range held {
			if seen[symbol] {
				continue
			}
			seen[symbol] = true
			if j.prices.CurrentPrice(symbol) != nil {
				warmed++
			}
		}
	}

	j.log.Debug().Int("symbols", len(seen)).Int("warmed", warmed).Msg("Quote cache warmed")
	return nil
}

// SnapshotSource produces the current portfolio view for a user.
type SnapshotSource interface {
	Snapshot(userID string) (portfolio.Snapshot, error)
}

// SnapshotSink persists a snapshot.
type SnapshotSink interface {
	Record(snapshot portfolio.Snapshot) error
}

// SnapshotRecordJob periodically stores every user's portfolio value
// so it can be charted over time.
type SnapshotRecordJob struct {
	users  UserLister
	source SnapshotSource
	sink   SnapshotSink
	log    zerolog.Logger
}

// NewSnapshotRecordJob creates the snapshot recording job
func NewSnapshotRecordJob(users UserLister, source SnapshotSource, sink SnapshotSink, log zerolog.Logger) *SnapshotRecordJob {
	return &SnapshotRecordJob{users: users, source: source, sink: sink, log: log}
}

func (j *SnapshotRecordJob) Name() string { return "snapshot-record" }

func (j *SnapshotRecordJob) Run() error {
	users, err := j.users.Users()
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	var failed int
	for _, userID := range users {
		snapshot, err := j.source.Snapshot(userID)
		if err != nil {
			j.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to compute snapshot")
			failed++
			continue
		}
		if err := j.sink.Record(snapshot); err != nil {
			j.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to record snapshot")
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d snapshots failed", failed, len(users))
	}
	return nil
}

// Archiver ships a database backup to remote storage.
type Archiver interface {
	CreateAndUpload(ctx context.Context) (string, error)
}

// BackupJob runs the nightly database backup.
type BackupJob struct {
	archiver Archiver
	timeout  time.Duration
	log      zerolog.Logger
}

// NewBackupJob creates the backup job
func NewBackupJob(archiver Archiver, log zerolog.Logger) *BackupJob {
	return &BackupJob{archiver: archiver, timeout: 10 * time.Minute, log: log}
}

func (j *BackupJob) Name() string { return "backup" }

func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	result, err := j.archiver.CreateAndUpload(ctx)
	if err != nil {
		return err
	}
	j.log.Info().Str("backup", result).Msg("Backup completed")
	return nil
}

// Purger drops expired cache entries.
type Purger interface {
	PurgeStale() int
}

// CacheSweepJob bounds cache memory by dropping entries that expired
// and were never read again.
type CacheSweepJob struct {
	purgers []Purger
	log     zerolog.Logger
}

// NewCacheSweepJob creates the cache sweep job
func NewCacheSweepJob(log zerolog.Logger, purgers ...Purger) *CacheSweepJob {
	return &CacheSweepJob{purgers: purgers, log: log}
}

func (j *CacheSweepJob) Name() string { return "cache-sweep" }

func (j *CacheSweepJob) Run() error {
	removed := 0
	for _, p := range j.purgers {
		removed += p.PurgeStale()
	}
	j.log.Debug().Int("removed", removed).Msg("Swept expired cache entries")
	return nil
}
