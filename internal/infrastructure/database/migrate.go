package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"family-registry-backend/migrations"
	"family-registry-backend/pkg/logger"
)

// Migrator chạy goose migrations (embed trong binary) trên pool hiện có.
type Migrator struct {
	db *PostgresDB
}

func NewMigrator(db *PostgresDB) *Migrator {
	return &Migrator{db: db}
}

// withSQLDB mở *sql.DB từ pgxpool cho goose, đóng lại sau khi xong
func (m *Migrator) withSQLDB(fn func(*sql.DB) error) error {
	if m.db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(m.db.Pool)
	defer sqlDB.Close()
	return fn(sqlDB)
}

// Up runs all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	return m.withSQLDB(func(sqlDB *sql.DB) error {
		if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		version, err := goose.GetDBVersionContext(ctx, sqlDB)
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		logger.Info("[MIGRATE] schema up to date", map[string]interface{}{"version": version})
		return nil
	})
}

// Status in trạng thái từng migration (goose tự log ra stdout).
func (m *Migrator) Status(ctx context.Context) error {
	return m.withSQLDB(func(sqlDB *sql.DB) error {
		if err := goose.StatusContext(ctx, sqlDB, "."); err != nil {
			return fmt.Errorf("failed to get migration status: %w", err)
		}
		return nil
	})
}

// Version returns the applied schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	var version int64
	err := m.withSQLDB(func(sqlDB *sql.DB) error {
		v, err := goose.GetDBVersionContext(ctx, sqlDB)
		version = v
		return err
	})
	return version, err
}
