// Package di wires the application's services together.
package di

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/Marcos415/cotacoesview/internal/charts"
	"github.com/Marcos415/cotacoesview/internal/clients/newsapi"
	"github.com/Marcos415/cotacoesview/internal/clients/yahoo"
	"github.com/Marcos415/cotacoesview/internal/config"
	"github.com/Marcos415/cotacoesview/internal/database"
	"github.com/Marcos415/cotacoesview/internal/marketdata"
	"github.com/Marcos415/cotacoesview/internal/news"
	"github.com/Marcos415/cotacoesview/internal/portfolio"
	"github.com/Marcos415/cotacoesview/internal/prediction"
	"github.com/Marcos415/cotacoesview/internal/reliability"
)

// Container holds all initialized services and their dependencies.
type Container struct {
	Config *config.Config
	Log    zerolog.Logger

	DB *database.DB

	Transactions *portfolio.TransactionRepository
	Snapshots    *portfolio.SnapshotRepository

	MarketData *marketdata.Gateway
	Prediction *prediction.Gateway
	Portfolio  *portfolio.Service
	Charts     *charts.Service
	News       *news.Service
	Backup     *reliability.BackupService
}

// Build constructs the full service graph.
func Build(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "app.db"),
		Profile: database.ProfileLedger,
		Name:    "app",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	transactions := portfolio.NewTransactionRepository(db, log)
	snapshots := portfolio.NewSnapshotRepository(db, log)

	market := marketdata.NewGateway(yahoo.NewClient(log), cfg.MarketDataTTL, log)
	predictor := prediction.NewGateway(market, cfg.PredictionTTL, log)
	portfolioSvc := portfolio.NewService(transactions, market, predictor, cfg.PortfolioTTL, log)
	chartSvc := charts.NewService(market, cfg.ChartTTL, log)

	var searcher news.Searcher
	if cfg.NewsAPIKey != "" {
		searcher = newsapi.NewClient(cfg.NewsAPIKey, log)
	}
	newsSvc := news.NewService(searcher, transactions, cfg.NewsTTL, log)

	backup, err := reliability.NewBackupService(db, cfg.Backup, cfg.DataDir, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize backup service: %w", err)
	}

	return &Container{
		Config:       cfg,
		Log:          log,
		DB:           db,
		Transactions: transactions,
		Snapshots:    snapshots,
		MarketData:   market,
		Prediction:   predictor,
		Portfolio:    portfolioSvc,
		Charts:       chartSvc,
		News:         newsSvc,
		Backup:       backup,
	}, nil
}

// Close releases held resources.
func (c *Container) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
