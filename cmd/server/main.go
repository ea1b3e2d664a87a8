// Package main is the entry point for fundscope, a tracker of institutional
// stock holdings. It fetches SEC filings for a configured set of funds,
// computes quarter-over-quarter position deltas, aggregates them across
// funds and serves the analysis over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/fundscope/fundscope/internal/clients/ai"
	"github.com/fundscope/fundscope/internal/clients/finnhub"
	"github.com/fundscope/fundscope/internal/clients/githubalerts"
	"github.com/fundscope/fundscope/internal/clients/openfigi"
	"github.com/fundscope/fundscope/internal/clients/sec"
	"github.com/fundscope/fundscope/internal/config"
	"github.com/fundscope/fundscope/internal/database"
	"github.com/fundscope/fundscope/internal/modules/comparison"
	"github.com/fundscope/fundscope/internal/modules/evaluation"
	"github.com/fundscope/fundscope/internal/modules/reports"
	"github.com/fundscope/fundscope/internal/modules/tracking"
	"github.com/fundscope/fundscope/internal/modules/universe"
	"github.com/fundscope/fundscope/internal/reliability"
	"github.com/fundscope/fundscope/internal/scheduler"
	"github.com/fundscope/fundscope/internal/server"
	"github.com/fundscope/fundscope/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting fundscope")

	// Three-database layout: durable filings/reports, the security catalog,
	// and the ephemeral raw-filing cache.
	filingsDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "filings.db"),
		Name: "filings",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open filings database")
	}
	catalogDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "catalog.db"),
		Name: "catalog",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open catalog database")
	}
	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer filingsDB.Close()
	defer catalogDB.Close()
	defer cacheDB.Close()

	allDatabases := map[string]*database.DB{
		"filings": filingsDB,
		"catalog": catalogDB,
		"cache":   cacheDB,
	}
	for name, db := range allDatabases {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", name).Msg("Failed to migrate database")
		}
	}

	funds, err := tracking.LoadFunds(filepath.Join(cfg.DataDir, "funds.csv"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load tracked funds")
	}
	log.Info().Int("funds", len(funds)).Msg("Loaded tracked funds")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	secClient := sec.NewClient(cfg.SECUserAgent, sec.NewCache(cacheDB.Conn()), log)
	finnhubClient := finnhub.NewClient(cfg.FinnhubKey, log)
	figiClient := openfigi.NewClient(cfg.OpenFIGIKey, log)

	catalog := universe.NewCatalogRepository(catalogDB.Conn(), log)
	// OpenFIGI maps CUSIPs directly; Finnhub is the fallback and also covers
	// the company-name search for identifiers OpenFIGI does not know.
	resolver := universe.NewResolver(catalog, []universe.Strategy{figiClient, finnhubClient}, log)

	var alerts comparison.AlertSink
	if client := githubalerts.NewClient(cfg.GitHubToken, cfg.GitHubRepo, log); client != nil {
		alerts = client
	} else {
		log.Info().Msg("GitHub alerts disabled, attribution problems will only be logged")
	}

	var weights tracking.WeightingProvider
	analyst, err := ai.NewAnalyst(ctx, cfg.GeminiKey, cfg.GeminiModel, log)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize analyst, promise scoring uses default weights")
	} else if analyst != nil {
		weights = analyst
	} else {
		log.Info().Msg("Analyst disabled, promise scoring uses default weights")
	}

	store := reports.NewStore(filingsDB.Conn(), log)
	tracker := tracking.NewService(funds, secClient, store, resolver, catalog, finnhubClient, alerts, weights, cfg, log)
	evaluator := evaluation.NewEvaluator(store, finnhubClient, log)

	s3, err := reliability.NewS3Client(ctx, cfg.Backup)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize backup storage, backups disabled")
	}
	// The raw-filing cache is re-fetchable from EDGAR and not worth archiving.
	backups := reliability.NewBackupService(map[string]*database.DB{
		"filings": filingsDB,
		"catalog": catalogDB,
	}, cfg.DataDir, s3, log)
	maintenance := reliability.NewMaintenanceService(allDatabases, cfg.DataDir, log)

	sched := scheduler.New(log)
	mustSchedule(log, sched, scheduler.QuarterlyRefreshSchedule, scheduler.NewQuarterlyRefreshJob(tracker))
	mustSchedule(log, sched, scheduler.NonQuarterlyRefreshSchedule, scheduler.NewNonQuarterlyRefreshJob(tracker))
	mustSchedule(log, sched, scheduler.MaintenanceSchedule, scheduler.NewMaintenanceJob(maintenance))
	if backups.Enabled() {
		mustSchedule(log, sched, scheduler.BackupSchedule, scheduler.NewBackupJob(backups, cfg.Backup.RetentionDays))
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		Tracker:   tracker,
		Quarters:  store,
		Evaluator: evaluator,
		Databases: allDatabases,
		DataDir:   cfg.DataDir,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shut down")
	}
}

func mustSchedule(log zerolog.Logger, sched *scheduler.Scheduler, schedule string, job scheduler.Job) {
	if err := sched.AddJob(schedule, job); err != nil {
		log.Fatal().Err(err).Str("job", job.Name()).Msg("Failed to schedule job")
	}
}
