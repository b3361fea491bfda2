package main

import (
	"github.com/rs/zerolog/log"

	"family-registry-backend/internal/infrastructure/queue"
	"family-registry-backend/pkg/container"
	"family-registry-backend/pkg/logger"
)

// asynqScheduler wraps queue.Scheduler with additional functionality
type asynqScheduler struct {
	*queue.Scheduler
}

// setupScheduler creates and configures the scheduler
func setupScheduler(c *container.Container) *asynqScheduler {
	scheduler := queue.NewScheduler(c.RedisOpt(), c.Config.Job)

	// Register cron jobs
	if err := scheduler.RegisterJobs(); err != nil {
		log.Fatal().Err(err).Msg("[Scheduler] Failed to register")
	}

	logger.Info("[Scheduler] Starting...", map[string]interface{}{})
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("[Scheduler] Failed")
	}

	return &asynqScheduler{Scheduler: scheduler}
}

// Shutdown gracefully shuts down the scheduler
func (s *asynqScheduler) Shutdown() {
	logger.Info("[Scheduler] Shutting down...", map[string]interface{}{})
	s.Scheduler.Shutdown()
}
