package main

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"family-registry-backend/internal/config"
	"family-registry-backend/internal/shared"
)

// queueConfig: renumbering ưu tiên hơn maintenance (verify_codes)
func queueConfig(cfg *config.Config) asynq.Config {
	return asynq.Config{
		Queues: map[string]int{
			shared.QueueGenealogy:   10,
			shared.QueueMaintenance: 2,
		},
		Concurrency:     cfg.Worker.Concurrency,
		ShutdownTimeout: cfg.Genealogy.RenumberTimeout,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			log.Error().
				Err(err).
				Str("type", task.Type()).
				Int("retried", retried).
				Int("max_retry", maxRetry).
				Msg("[Asynq] Task failed")
		}),
	}
}
