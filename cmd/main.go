package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "greenloan-engine/docs"
	"greenloan-engine/internal/api"
	"greenloan-engine/internal/batch"
	"greenloan-engine/internal/config"
	"greenloan-engine/internal/domain/applicant"
	"greenloan-engine/internal/domain/application"
	"greenloan-engine/internal/domain/catalog"
	"greenloan-engine/internal/domain/credit"
	"greenloan-engine/internal/domain/loan"
	"greenloan-engine/internal/domain/payment"
	"greenloan-engine/internal/event"
	"greenloan-engine/internal/infrastructure/database/postgres"
	"greenloan-engine/internal/infrastructure/logging"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// @title GreenLoan Engine API
// @version 1.0
// @description API documentation for the GreenLoan loan origination and servicing engine.
// @termsOfService http://greenloan.com/terms/

// @contact.name API Support
// @contact.url http://greenloan.com/support
// @contact.email support@greenloan.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, logger := initializeApp()

	dbPool := initializeDatabase(cfg, logger)
	defer closeDatabase(dbPool, logger)

	rabbitConn, publisher := setupEventPublisher(cfg, logger)
	defer closeRabbitMQ(rabbitConn, logger)

	redisClient := initializeRedisClient(cfg, logger)
	defer closeRedis(redisClient, logger)

	svcs, loanRepo, creditService := initializeServices(dbPool, publisher, cfg, logger)

	overdueJob := batch.NewOverdueCheckJob(loanRepo, creditService, logger)
	cronScheduler := startBatchJobs(cfg, logger, overdueJob)

	router := api.SetupRouter(svcs, cfg, redisClient, logger)

	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
	handleShutdown(srv, cronScheduler, shutdownChan, serverErrors, logger)
}

func initializeApp() (*config.Config, *slog.Logger) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Logger)
	slog.SetDefault(logger)
	logger.Info("Application starting...", "config_source", viper.ConfigFileUsed())

	return cfg, logger
}

func initializeDatabase(cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	logger.Info("Initializing database connection pool...")
	dbPool, err := postgres.NewConnectionPool(context.Background(), cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	return dbPool
}

func closeDatabase(dbPool *pgxpool.Pool, logger *slog.Logger) {
	logger.Info("Closing database connection pool...")
	dbPool.Close()
}

func setupEventPublisher(cfg *config.Config, logger *slog.Logger) (*amqp.Connection, event.EventPublisher) {
	if !cfg.RabbitMQ.Enabled {
		logger.Info("RabbitMQ disabled, loan events will be logged only")
		return nil, event.NewNoopPublisher(logger)
	}

	conn, err := connectRabbitMQ(cfg, logger)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ, falling back to no-op publisher", "error", err)
		return nil, event.NewNoopPublisher(logger)
	}

	publisher, err := event.NewRabbitMQEventPublisher(conn, cfg.RabbitMQ.ExchangeName, logger)
	if err != nil {
		logger.Error("Failed to set up RabbitMQ publisher, falling back to no-op publisher", "error", err)
		conn.Close()
		return nil, event.NewNoopPublisher(logger)
	}
	return conn, publisher
}

func connectRabbitMQ(cfg *config.Config, logger *slog.Logger) (*amqp.Connection, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/",
		cfg.RabbitMQ.Username, cfg.RabbitMQ.Password, cfg.RabbitMQ.Host, cfg.RabbitMQ.Port)

	var conn *amqp.Connection
	var err error
	for attempt := 1; attempt <= 5; attempt++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			logger.Info("Connected to RabbitMQ", "host", cfg.RabbitMQ.Host, "attempt", attempt)
			return conn, nil
		}
		logger.Warn("RabbitMQ connection failed, retrying...", "attempt", attempt, "error", err)
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	return nil, fmt.Errorf("could not connect to RabbitMQ after retries: %w", err)
}

func closeRabbitMQ(conn *amqp.Connection, logger *slog.Logger) {
	if conn == nil || conn.IsClosed() {
		return
	}
	logger.Info("Closing RabbitMQ connection...")
	if err := conn.Close(); err != nil {
		logger.Error("Failed to close RabbitMQ connection", "error", err)
	}
}

func initializeRedisClient(cfg *config.Config, logger *slog.Logger) *redis.Client {
	if !cfg.Redis.Enabled {
		logger.Info("Redis disabled, rate limiting falls back to in-process limiters")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis ping failed, rate limiting falls back to in-process limiters", "error", err)
		_ = client.Close()
		return nil
	}
	logger.Info("Connected to Redis", "addr", cfg.Redis.Addr)
	return client
}

func closeRedis(client *redis.Client, logger *slog.Logger) {
	if client == nil {
		return
	}
	logger.Info("Closing Redis client...")
	if err := client.Close(); err != nil {
		logger.Error("Failed to close Redis client", "error", err)
	}
}

func initializeServices(dbPool *pgxpool.Pool, publisher event.EventPublisher, cfg *config.Config, logger *slog.Logger) (api.Services, loan.Repository, credit.CreditService) {
	logger.Info("Initializing application components...")

	catalogRepo := postgres.NewCatalogRepository(dbPool, logger)
	applicantRepo := postgres.NewApplicantRepository(dbPool, logger)
	applicationRepo := postgres.NewApplicationRepository(dbPool, logger)
	loanRepo := postgres.NewLoanRepository(dbPool, logger)
	creditRepo := postgres.NewCreditRepository(dbPool, logger)
	paymentRepo := postgres.NewPaymentRepository(dbPool, logger)

	catalogService := catalog.NewCatalogService(catalogRepo, logger)
	applicantService := applicant.NewApplicantService(applicantRepo, logger)
	loanService := loan.NewLoanService(loanRepo, logger)
	creditService := credit.NewCreditService(creditRepo, logger)
	paymentService := payment.NewPaymentService(paymentRepo, creditService, cfg.Gateway.EsewaProductCode, logger)

	allowedIncomePercent, err := decimal.NewFromString(cfg.Loan.AllowedIncomePercent)
	if err != nil || !allowedIncomePercent.IsPositive() {
		logger.Warn("Invalid loan.allowedIncomePercent, using default", "value", cfg.Loan.AllowedIncomePercent)
		allowedIncomePercent = decimal.NewFromInt(40)
	}

	applicationService := application.NewApplicationService(
		applicationRepo, catalogService, applicantService, loanService, publisher, allowedIncomePercent, logger)

	return api.Services{
		Catalog:     catalogService,
		Applicant:   applicantService,
		Application: applicationService,
		Loan:        loanService,
		Payment:     paymentService,
		Credit:      creditService,
	}, loanRepo, creditService
}

func startServer(cfg *config.Config, router http.Handler, logger *slog.Logger) (*http.Server, <-chan error, <-chan os.Signal) {
	logger.Info("Setting up HTTP server...", "port", cfg.Server.Port)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Server listening on port %d", cfg.Server.Port))
		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			serverErrors <- err
		} else {
			logger.Info("Server closed gracefully.")
			serverErrors <- nil
		}
	}()
	return srv, serverErrors, shutdownChan
}

func handleShutdown(srv *http.Server, cronScheduler *cron.Cron, shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) {
	logger.Info("Shutdown handler started. Waiting for signal or server error...")

	var triggerReason string
	select {
	case sig := <-shutdownChan:
		triggerReason = "signal: " + sig.String()
		logger.Info("Shutdown signal received.", "signal", sig.String())
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server exited unexpectedly before signal", "error", err)
			os.Exit(1)
		}
		triggerReason = "server exited"
		logger.Info("Server goroutine finished before signal.", "error", err)
	}

	logger.Info("Starting graceful shutdown...", "trigger", triggerReason)

	logger.Info("Stopping cron scheduler...")
	cronCtx := cronScheduler.Stop()
	select {
	case <-cronCtx.Done():
		logger.Info("Cron scheduler stopped gracefully.")
	case <-time.After(15 * time.Second):
		logger.Warn("Cron scheduler shutdown timed out.")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	logger.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server graceful shutdown failed", "error", err)
		} else {
			logger.Info("HTTP server shutdown initiated.")
		}
		if err := srv.Close(); err != nil {
			logger.Error("HTTP server forced close failed", "error", err)
		}
	} else {
		logger.Info("HTTP server gracefully stopped.")
	}
	logger.Info("Waiting for server goroutine to confirm exit...")
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Server goroutine exited with unexpected error after shutdown", "error", err)
		} else {
			logger.Info("Server goroutine confirmed exit.")
		}
	case <-time.After(5 * time.Second):
		logger.Warn("Timed out waiting for server goroutine confirmation.")
	}

	logger.Info("Application shutdown process complete.")
}

func startBatchJobs(cfg *config.Config, logger *slog.Logger, overdueJob *batch.OverdueCheckJob) *cron.Cron {
	logger.Info("Initializing batch job scheduler...")
	c := cron.New()

	scheduleSpec := cfg.Batch.OverdueCheckSchedule
	if scheduleSpec == "" {
		scheduleSpec = "0 2 * * *"
		logger.Warn("Batch overdue check schedule not configured, using default", "schedule", scheduleSpec)
	}
	jobTimeout := cfg.Batch.OverdueCheckTimeout
	if jobTimeout <= 0 {
		jobTimeout = 1 * time.Hour
	}

	jobID, err := c.AddJob(scheduleSpec, cron.FuncJob(func() {
		jobLogger := logger.With("job_name", "OverdueCheck")
		jobLogger.Info("Cron triggered: Running overdue repayment check job.")

		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if runErr := overdueJob.Run(ctx); runErr != nil {
			jobLogger.Error("Overdue check job finished with error", slog.Any("error", runErr))
		} else {
			jobLogger.Info("Overdue check job finished successfully.")
		}
	}))

	if err != nil {
		logger.Error("Failed to schedule overdue check job", "schedule", scheduleSpec, slog.Any("error", err))
	} else {
		logger.Info("Scheduled overdue check job", "schedule", scheduleSpec, "job_id", jobID)
	}

	c.Start()
	logger.Info("Cron scheduler started.")
	return c
}
