package main

import (
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"family-registry-backend/pkg/container"
	"family-registry-backend/pkg/logger"
)

// asynqServer wraps asynq.Server with additional functionality
type asynqServer struct {
	*asynq.Server
}

// setupAsynqServer creates and configures the Asynq server
func setupAsynqServer(c *container.Container, handlers *HandlerRegistry) *asynqServer {
	mux := asynq.NewServeMux()
	handlers.RegisterHandlers(mux)

	srv := asynq.NewServer(c.RedisOpt(), queueConfig(c.Config))

	// Start server in goroutine
	go func() {
		logger.Info("[Worker] Starting...", map[string]interface{}{
			"concurrency": c.Config.Worker.Concurrency,
		})
		if err := srv.Run(mux); err != nil {
			log.Fatal().Err(err).Msg("[Worker] Failed")
		}
	}()

	return &asynqServer{Server: srv}
}

// Shutdown chờ task đang chạy tối đa ShutdownTimeout rồi dừng
func (s *asynqServer) Shutdown() {
	logger.Info("[Worker] Shutting down...", map[string]interface{}{})
	s.Server.Shutdown()
	logger.Info("[Worker] Gracefully stopped", map[string]interface{}{})
}
