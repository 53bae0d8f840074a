package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"joinguard/internal/clock"
	"joinguard/internal/config"
	"joinguard/internal/gateway/telegram"
	"joinguard/internal/jobs"
	"joinguard/internal/logger"
	"joinguard/internal/repository/postgres"
	"joinguard/internal/scheduler"
	"joinguard/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'expire-join-requests', 'record-gauges', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting join request cronjob runner...", "log_level", cfg.Log.Level)

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	if err := postgres.EnsureSchema(context.Background(), db); err != nil {
		logger.Error("Failed to prepare schema", "error", err)
		log.Fatalf("Failed to prepare schema: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize Repositories
	store := postgres.NewStore(db)

	// Initialize Services
	client := telegram.NewClient(telegram.Config{
		Token:             cfg.Telegram.Token,
		APIURL:            cfg.Telegram.APIURL,
		RequestsPerSecond: cfg.Telegram.RequestsPerSecond,
		Burst:             cfg.Telegram.RequestBurst,
		Timeout:           30 * time.Second,
	})
	clk := clock.Real()
	settings := service.Settings{
		CommunityChatID:   cfg.Telegram.CommunityChatID,
		ModeratorChatID:   cfg.Telegram.ModeratorChatID,
		ModeratorThreadID: cfg.Telegram.ModeratorThreadID,
		Lifetime:          cfg.JoinRequest.Lifetime(),
	}
	reporter := service.NewErrorReporter(client, cfg.Telegram.ErrorChatID, cfg.Telegram.ErrorThreadID)

	joinRequestService := service.NewJoinRequestService(
		store.JoinRequestRepository,
		store.BanRepository,
		client,
		service.NewBanCache(cfg.JoinRequest.BanCacheSize, cfg.JoinRequest.BanCacheTTL()),
		reporter,
		clk,
		settings,
	)
	sweeperService := service.NewSweeperService(
		store.JoinRequestRepository,
		client,
		joinRequestService,
		clk,
		settings,
	)

	jobServices := &jobs.Services{
		Sweeper:  sweeperService,
		Reporter: reporter,
	}

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(store.JoinRequestRepository, jobServices, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		runJobOnce(jobRunner, *runOnce)
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler := scheduler.NewScheduler(jobRunner)

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once and exits
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) {
	switch jobName {
	case "expire-join-requests":
		jobRunner.ExpireJoinRequests()
	case "record-gauges":
		jobRunner.RecordJoinRequestGauges()
	case "all":
		jobRunner.RunAll()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - expire-join-requests\n")
		fmt.Printf("  - record-gauges\n")
		fmt.Printf("  - all\n")
		os.Exit(1)
	}
}
