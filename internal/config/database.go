package config

import (
	"fmt"
	"strconv"
	"time"

	"family-registry-backend/internal/infrastructure/database"
)

// LoadDatabaseConfig đọc config từ environment variables và trả về DBConfig.
// Khác Load(): giá trị sai định dạng là lỗi, không âm thầm dùng default.
func LoadDatabaseConfig() (*database.DBConfig, error) {
	p := &envParser{}

	cfg := &database.DBConfig{
		Host:              getEnv("DB_HOST", "localhost"),
		Port:              p.int("DB_PORT", "5432"),
		Username:          getEnv("DB_USER", "family"),
		Password:          getEnv("DB_PASSWORD", "secret"),
		DBName:            getEnv("DB_NAME", "family_registry"),
		SSLMode:           getEnv("DB_SSLMODE", "disable"),
		MaxConns:          int32(p.int("DB_MAX_CONNECTIONS", "25")),
		MinConns:          int32(p.int("DB_MIN_CONNECTIONS", "5")),
		MaxConnLifetime:   p.duration("DB_MAX_CONN_LIFETIME", "5m"),
		MaxConnIdleTime:   p.duration("DB_MAX_CONN_IDLE_TIME", "1m"),
		HealthCheckPeriod: p.duration("DB_HEALTH_CHECK_PERIOD", "1m"),
		MaxRetries:        p.int("DB_MAX_RETRIES", "5"),
		RetryDelay:        p.duration("DB_RETRY_DELAY", "1s"),
		ConnectTimeout:    p.duration("DB_CONNECT_TIMEOUT", "10s"),
	}
	if p.err != nil {
		return nil, p.err
	}
	return cfg, nil
}

// envParser giữ lỗi đầu tiên để LoadDatabaseConfig không phải check từng dòng
type envParser struct {
	err error
}

func (p *envParser) int(key, def string) int {
	v, err := strconv.Atoi(getEnv(key, def))
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

func (p *envParser) duration(key, def string) time.Duration {
	v, err := time.ParseDuration(getEnv(key, def))
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}
