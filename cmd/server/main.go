// Command server runs the portfolio tracking API.
//
// Startup sequence:
//  1. Load configuration from the environment (.env supported)
//  2. Build the structured logger
//  3. Wire services through the DI container
//  4. Register and start the maintenance jobs
//  5. Serve the HTTP API until SIGINT/SIGTERM
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Marcos415/cotacoesview/internal/config"
	"github.com/Marcos415/cotacoesview/internal/di"
	"github.com/Marcos415/cotacoesview/internal/scheduler"
	"github.com/Marcos415/cotacoesview/internal/server"
	"github.com/Marcos415/cotacoesview/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLog := logger.New(logger.Config{Level: "error"})
		errLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Int("port", cfg.Port).
		Str("data_dir", cfg.DataDir).
		Bool("news_enabled", cfg.NewsAPIKey != "").
		Bool("backup_enabled", cfg.Backup.Enabled()).
		Msg("Starting cotacoesview")

	container, err := di.Build(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build services")
	}
	defer container.Close()

	sched := scheduler.New(log)
	registerJobs(sched, container, log)
	sched.Start()
	defer sched.Stop()

	srv := server.New(container)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Server stopped unexpectedly")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

func registerJobs(sched *scheduler.Scheduler, container *di.Container, log zerolog.Logger) {
	jobs := []struct {
		spec string
		job  scheduler.Job
	}{
		// Quotes are warmed every 5 minutes during B3 trading hours
		{"*/5 11-21 * * 1-5", scheduler.NewPriceWarmJob(container.Snapshots, container.Transactions, container.MarketData, log)},
		// Portfolio values are recorded nightly after the B3 close
		{"0 22 * * 1-5", scheduler.NewSnapshotRecordJob(container.Snapshots, container.Portfolio, container.Snapshots, log)},
		// Nightly database backup
		{"30 3 * * *", scheduler.NewBackupJob(container.Backup, log)},
		// Expired cache entries are swept hourly
		{"0 * * * *", scheduler.NewCacheSweepJob(log, container.MarketData, container.Prediction, container.Charts)},
	}

	for _, j := range jobs {
		if err := sched.Register(j.spec, j.job); err != nil {
			log.Fatal().Err(err).Str("job", j.job.Name()).Msg("Failed to register job")
		}
	}
}
