package queue

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"family-registry-backend/internal/config"
	"family-registry-backend/internal/shared"
	"family-registry-backend/pkg/logger"
)

type Scheduler struct {
	scheduler *asynq.Scheduler
	jobConfig config.JobConfig
}

func NewScheduler(redisOpt asynq.RedisClientOpt, jobConfig config.JobConfig) *Scheduler {
	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
		},
	)

	return &Scheduler{
		scheduler: scheduler,
		jobConfig: jobConfig,
	}
}

func (s *Scheduler) RegisterJobs() error {
	return s.registerVerifyCodesJob()
}

// ================================================
// Verify codes of every group (nightly by default)
// ================================================
func (s *Scheduler) registerVerifyCodesJob() error {
	payload, err := json.Marshal(verifyCodesPayload(s.jobConfig))
	if err != nil {
		return err
	}

	task := asynq.NewTask(shared.TypeVerifyCodes, payload)

	_, err = s.scheduler.Register(
		s.jobConfig.VerifyCron,
		task,
		asynq.Queue(shared.QueueMaintenance),
		asynq.MaxRetry(1),
		asynq.Timeout(30*time.Minute),
	)
	if err != nil {
		logger.Error("Failed to register VerifyCodes job", err)
		return err
	}

	logger.Info("✓ Registered VerifyCodes", map[string]interface{}{
		"cron":   s.jobConfig.VerifyCron,
		"repair": s.jobConfig.VerifyRepair,
	})
	return nil
}

// verifyCodesPayload: lượt định kỳ luôn quét mọi group
func verifyCodesPayload(cfg config.JobConfig) shared.VerifyCodesPayload {
	return shared.VerifyCodesPayload{Repair: cfg.VerifyRepair}
}

// Start không block; Shutdown dừng scheduler.
func (s *Scheduler) Start() error {
	return s.scheduler.Start()
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
