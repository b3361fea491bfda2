package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config chứa toàn bộ application configuration
// Struct này được populate từ environment variables
type Config struct {
	App       AppConfig
	Redis     RedisConfig
	Genealogy GenealogyConfig
	Job       JobConfig
	Worker    WorkerConfig
}

type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Port        string
	Version     string
	// AutoMigrate chạy goose up khi API khởi động
	AutoMigrate bool
}

type RedisConfig struct {
	Host     string
	Password string
	DB       int
}

// =====================================================
// GENEALOGY ENGINE
// =====================================================

// AutoRenumber quyết định renumbering sau mỗi mutation chạy ở đâu
type AutoRenumber string

const (
	AutoRenumberSync  AutoRenumber = "sync"  // trong cùng transaction với mutation
	AutoRenumberAsync AutoRenumber = "async" // enqueue asynq task
	AutoRenumberOff   AutoRenumber = "off"   // chỉ chạy khi gọi /assign
)

type GenealogyConfig struct {
	PrimaryRole     string // father | mother
	MaxWalkDepth    int
	MaxKinshipDepth int
	RenumberTimeout time.Duration
	AutoRenumber    AutoRenumber
	// TTL của kết quả kinship/ancestors trong Redis, 0 = không cache
	CacheTTL time.Duration
	// Lock TTL của Redis group lock, phải lớn hơn RenumberTimeout
	LockTTL time.Duration
}

// JobConfig - VerifyRepair bật thì verify_codes hằng đêm chạy AssignAll cho group bị lệch
type JobConfig struct {
	VerifyCron        string
	VerifyConcurrency int
	VerifyRepair      bool
	RenumberMaxRetry  int
}

// WorkerConfig - asynq server của cmd/worker
type WorkerConfig struct {
	Concurrency int
	// HealthAddr phục vụ /health, /ready, /metrics
	HealthAddr string
}

// LoadEnv nạp .env nếu có; production dùng system environment variables.
func LoadEnv() bool {
	return godotenv.Load() == nil
}

// Load đọc config từ environment variables
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Family Registry API"),
			Environment: getEnv("APP_ENV", "development"),
			Port:        getEnv("APP_PORT", "8080"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			AutoMigrate: getEnvBool("APP_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Genealogy: GenealogyConfig{
			PrimaryRole:     getEnv("GENEALOGY_PRIMARY_ROLE", "father"),
			MaxWalkDepth:    getEnvInt("GENEALOGY_MAX_WALK_DEPTH", 20),
			MaxKinshipDepth: getEnvInt("GENEALOGY_MAX_KINSHIP_DEPTH", 10),
			RenumberTimeout: getEnvDuration("GENEALOGY_RENUMBER_TIMEOUT", 30*time.Second),
			AutoRenumber:    AutoRenumber(strings.ToLower(getEnv("GENEALOGY_AUTO_RENUMBER", string(AutoRenumberSync)))),
			CacheTTL:        getEnvDuration("GENEALOGY_CACHE_TTL", 10*time.Minute),
			LockTTL:         getEnvDuration("GENEALOGY_LOCK_TTL", 45*time.Second),
		},
		Job: JobConfig{
			VerifyCron:        getEnv("GENEALOGY_VERIFY_CRON", "0 3 * * *"),
			VerifyConcurrency: getEnvInt("GENEALOGY_VERIFY_CONCURRENCY", 4),
			VerifyRepair:      getEnvBool("GENEALOGY_VERIFY_REPAIR", false),
			RenumberMaxRetry:  getEnvInt("GENEALOGY_RENUMBER_MAX_RETRY", 3),
		},
		Worker: WorkerConfig{
			Concurrency: getEnvInt("WORKER_CONCURRENCY", 10),
			HealthAddr:  getEnv("WORKER_HEALTH_ADDR", ":9999"),
		},
	}

	// Validate critical config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate kiểm tra config có hợp lệ không
func (c *Config) Validate() error {
	g := c.Genealogy
	if g.PrimaryRole != "father" && g.PrimaryRole != "mother" {
		return fmt.Errorf("GENEALOGY_PRIMARY_ROLE must be father or mother, got %q", g.PrimaryRole)
	}
	switch g.AutoRenumber {
	case AutoRenumberSync, AutoRenumberAsync, AutoRenumberOff:
	default:
		return fmt.Errorf("GENEALOGY_AUTO_RENUMBER must be sync, async or off, got %q", g.AutoRenumber)
	}
	if g.MaxWalkDepth < 1 || g.MaxKinshipDepth < 1 {
		return fmt.Errorf("walk and kinship depth caps must be positive")
	}
	if g.RenumberTimeout <= 0 {
		return fmt.Errorf("GENEALOGY_RENUMBER_TIMEOUT must be positive")
	}
	if g.LockTTL <= g.RenumberTimeout {
		return fmt.Errorf("GENEALOGY_LOCK_TTL (%s) must exceed GENEALOGY_RENUMBER_TIMEOUT (%s)", g.LockTTL, g.RenumberTimeout)
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	if c.Job.VerifyConcurrency < 1 {
		return fmt.Errorf("GENEALOGY_VERIFY_CONCURRENCY must be at least 1")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
