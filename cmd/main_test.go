package main

import (
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"

	"greenloan-engine/internal/config"
	"greenloan-engine/internal/infrastructure/logging"
)

func TestStartServer(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:         0,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  5 * time.Second,
		},
	}
	logger := logging.NewLogger(config.LoggerConfig{})
	router := http.NewServeMux()

	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)

	assert.NotNil(t, srv, "Server should not be nil")
	assert.NotNil(t, serverErrors, "Server errors channel should not be nil")
	assert.NotNil(t, shutdownChan, "Shutdown channel should not be nil")
}

func TestHandleShutdown(t *testing.T) {
	logger := logging.NewLogger(config.LoggerConfig{})
	cronScheduler := cron.New()
	srv := &http.Server{}
	shutdownChan := make(chan os.Signal, 1)
	serverErrors := make(chan error, 1)

	go func() {
		shutdownChan <- syscall.SIGINT
	}()

	handleShutdown(srv, cronScheduler, shutdownChan, serverErrors, logger)
	assert.True(t, true, "Graceful shutdown should complete without errors")
}

func TestStartBatchJobsDefaultsSchedule(t *testing.T) {
	logger := logging.NewLogger(config.LoggerConfig{})
	cfg := &config.Config{}

	c := startBatchJobs(cfg, logger, nil)
	defer c.Stop()

	assert.NotNil(t, c, "Cron scheduler should be created")
	assert.Len(t, c.Entries(), 1, "Overdue check job should be scheduled")
}
