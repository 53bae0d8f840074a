package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "joinguard/internal/api/http"
	"joinguard/internal/bot"
	"joinguard/internal/clock"
	"joinguard/internal/config"
	"joinguard/internal/gateway/telegram"
	"joinguard/internal/jobs"
	"joinguard/internal/logger"
	"joinguard/internal/repository/postgres"
	"joinguard/internal/scheduler"
	"joinguard/internal/service"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting join request bot...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Join request configuration",
		"lifetime_minutes", cfg.JoinRequest.LifetimeMinutes,
		"check_interval_minutes", cfg.JoinRequest.CheckIntervalMinutes,
		"question_timeout_minutes", cfg.JoinRequest.PendingQuestionTimeoutMinutes)
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Database
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.PingContext(ctx); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		logger.Error("Failed to prepare schema", "error", err)
		log.Fatalf("Failed to prepare schema: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize Repositories
	store := postgres.NewStore(db)

	// Initialize platform gateway
	client := telegram.NewClient(telegram.Config{
		Token:             cfg.Telegram.Token,
		APIURL:            cfg.Telegram.APIURL,
		RequestsPerSecond: cfg.Telegram.RequestsPerSecond,
		Burst:             cfg.Telegram.RequestBurst,
		Timeout:           cfg.Telegram.PollTimeout() + 15*time.Second,
	})
	me, err := client.GetMe(ctx)
	if err != nil {
		logger.Error("Failed to reach the Bot API", "error", err)
		log.Fatalf("Failed to reach the Bot API: %v", err)
	}
	logger.Info("Bot API connection established", "bot_id", me.ID, "username", me.Username)

	// Initialize Services
	clk := clock.Real()
	settings := service.Settings{
		CommunityChatID:   cfg.Telegram.CommunityChatID,
		ModeratorChatID:   cfg.Telegram.ModeratorChatID,
		ModeratorThreadID: cfg.Telegram.ModeratorThreadID,
		Lifetime:          cfg.JoinRequest.Lifetime(),
	}
	reporter := service.NewErrorReporter(client, cfg.Telegram.ErrorChatID, cfg.Telegram.ErrorThreadID)
	bans := service.NewBanCache(cfg.JoinRequest.BanCacheSize, cfg.JoinRequest.BanCacheTTL())
	questionRegistry := service.NewQuestionRegistry(clk, cfg.JoinRequest.QuestionTimeout())

	joinRequestService := service.NewJoinRequestService(
		store.JoinRequestRepository,
		store.BanRepository,
		client,
		bans,
		reporter,
		clk,
		settings,
	)
	questionService := service.NewQuestionService(
		store.JoinRequestRepository,
		client,
		questionRegistry,
		reporter,
		clk,
		settings,
	)
	moderationService := service.NewModerationService(
		joinRequestService,
		questionService,
		client,
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

	// Initialize Job Runner and Scheduler
	jobRunner := jobs.NewJobRunner(store.JoinRequestRepository, &jobs.Services{
		Sweeper:  sweeperService,
		Reporter: reporter,
	}, cfg)
	cronScheduler := scheduler.NewScheduler(jobRunner)
	cronScheduler.Start()

	// Catch up on requests that expired while the bot was down
	go jobRunner.ExpireJoinRequests()

	// Set up HTTP server for health and metrics
	router := mux.NewRouter()
	httpapi.RegisterStatusRoutes(router, db, questionRegistry)
	httpServer := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	// Start polling updates
	updateRouter := bot.NewRouter(bot.Config{
		CommunityChatID: cfg.Telegram.CommunityChatID,
		ModeratorChatID: cfg.Telegram.ModeratorChatID,
	}, joinRequestService, moderationService, questionService, reporter)
	poller := telegram.NewPoller(client, cfg.Telegram.PollTimeout())
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		poller.Run(ctx, updateRouter.Dispatch)
	}()
	logger.Info("Bot is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down...")
	cancel()
	<-pollDone
	cronScheduler.Stop()
	updateRouter.Wait()
	questionRegistry.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	fmt.Println("Goodbye!")
}
