package container

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"family-registry-backend/internal/config"
	"family-registry-backend/internal/domains/genealogy/engine"
	genealogyHandler "family-registry-backend/internal/domains/genealogy/handler"
	"family-registry-backend/internal/domains/genealogy/model"
	"family-registry-backend/internal/domains/genealogy/repository"
	genealogyService "family-registry-backend/internal/domains/genealogy/service"
	infraCache "family-registry-backend/internal/infrastructure/cache"
	"family-registry-backend/internal/infrastructure/database"
	"family-registry-backend/internal/infrastructure/lock"
	"family-registry-backend/internal/infrastructure/queue"
	"family-registry-backend/pkg/cache"
	"family-registry-backend/pkg/logger"
)

// ========================================
// CONTAINER STRUCT
// ========================================

// Container chứa TẤT CẢ dependencies của application (API và worker dùng chung)
type Container struct {
	// ========================================
	// INFRASTRUCTURE LAYER
	// ========================================
	Config      *config.Config
	DB          *database.PostgresDB
	Redis       *infraCache.RedisClient
	Cache       cache.Cache // Noop khi Redis không kết nối được
	Locker      lock.Locker
	AsynqClient *asynq.Client

	// ========================================
	// REPOSITORY / ENGINE
	// ========================================
	GenealogyStore repository.Store
	Engine         *engine.Engine

	// ========================================
	// SERVICE / HANDLER
	// ========================================
	GenealogyService genealogyService.ServiceInterface
	GenealogyHandler *genealogyHandler.Handler
}

// NewContainer tạo toàn bộ dependency graph theo thứ tự:
// 1. Config
// 2. Infrastructure (DB, Redis, asynq client)
// 3. Store + Engine
// 4. Service
// 5. Handler
func NewContainer() (*Container, error) {
	c := &Container{}

	// ========================================
	// STEP 1: LOAD CONFIGURATION
	// ========================================
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg
	logger.Info("[CONTAINER] config loaded", map[string]interface{}{
		"env":           cfg.App.Environment,
		"auto_renumber": cfg.Genealogy.AutoRenumber,
	})

	// ========================================
	// STEP 2: INFRASTRUCTURE
	// ========================================
	if err := c.initDatabase(); err != nil {
		return nil, err
	}
	c.initRedis()
	c.AsynqClient = asynq.NewClient(c.RedisOpt())

	// ========================================
	// STEP 3: STORE + ENGINE
	// ========================================
	c.GenealogyStore = repository.NewPostgresStore(c.DB.Pool)
	c.Engine = NewEngine(cfg.Genealogy)

	// ========================================
	// STEP 4: SERVICE
	// ========================================
	var enqueuer genealogyService.Enqueuer
	if cfg.Genealogy.AutoRenumber == config.AutoRenumberAsync {
		enqueuer = queue.NewRenumberEnqueuer(c.AsynqClient, cfg.Job.RenumberMaxRetry, cfg.Genealogy.RenumberTimeout)
	}
	c.GenealogyService = genealogyService.NewService(
		c.GenealogyStore,
		c.Engine,
		c.Locker,
		c.Cache,
		enqueuer,
		genealogyService.ConfigFrom(cfg.Genealogy),
	)

	// ========================================
	// STEP 5: HANDLER
	// ========================================
	c.GenealogyHandler = genealogyHandler.NewHandler(c.GenealogyService)

	logger.Info("[CONTAINER] initialized", map[string]interface{}{})
	return c, nil
}

// NewEngine build engine options từ config (dùng chung với familyctl)
func NewEngine(g config.GenealogyConfig) *engine.Engine {
	return engine.New(engine.Options{
		PrimaryRole:     model.Role(g.PrimaryRole),
		MaxWalkDepth:    g.MaxWalkDepth,
		MaxKinshipDepth: g.MaxKinshipDepth,
	})
}

func (c *Container) initDatabase() error {
	dbConfig, err := config.LoadDatabaseConfig()
	if err != nil {
		return fmt.Errorf("failed to load database config: %w", err)
	}

	db := database.NewPostgresDB(dbConfig)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.HealthCheck(ctx); err != nil {
		db.Close()
		return fmt.Errorf("database health check failed: %w", err)
	}
	c.DB = db

	if c.Config.App.AutoMigrate {
		if err := database.NewMigrator(db).Up(ctx); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
	}
	return nil
}

// initRedis: Redis không critical. Lỗi -> cache Noop + lock local,
// pg_advisory_xact_lock vẫn serialise giữa các process.
func (c *Container) initRedis() {
	cfg := c.Config
	c.Redis = infraCache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Redis.Connect(ctx); err != nil {
		logger.Warn("[CONTAINER] redis unavailable, running without cache", err, map[string]interface{}{
			"addr": cfg.Redis.Host,
		})
		c.Cache = cache.Noop{}
		c.Locker = lock.NewLocalLocker()
		return
	}

	c.Cache = infraCache.NewRedisCache(c.Redis, "family:")
	c.Locker = lock.NewRedisLocker(c.Redis.Client, cfg.Genealogy.LockTTL)
}

// RedisOpt dùng cho asynq client/server/scheduler
func (c *Container) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     c.Config.Redis.Host,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	}
}

// Cleanup dọn dẹp resources khi shutdown
func (c *Container) Cleanup() {
	if c.AsynqClient != nil {
		if err := c.AsynqClient.Close(); err != nil {
			logger.Error("[CONTAINER] failed to close asynq client", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logger.Error("[CONTAINER] failed to close redis", err)
		}
	}
	if c.DB != nil {
		c.DB.Close()
	}
	logger.Info("[CONTAINER] cleanup completed", map[string]interface{}{})
}
