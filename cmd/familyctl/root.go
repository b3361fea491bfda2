package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"family-registry-backend/internal/config"
	"family-registry-backend/internal/domains/genealogy/fixture"
	"family-registry-backend/internal/domains/genealogy/repository"
	"family-registry-backend/internal/domains/genealogy/service"
	"family-registry-backend/internal/infrastructure/database"
	"family-registry-backend/pkg/container"
)

// ── flags ─────────────────────────────────────────────────────────────────────

type rootFlags struct {
	fixture string
	output  string
	timeout time.Duration
}

// backend là service đã dựng xong, cùng hàm đóng tài nguyên
type backend struct {
	svc   service.ServiceInterface
	db    *database.PostgresDB
	close func()
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:          "familyctl",
		Short:        "Inspect and maintain family registry codes",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.fixture, "fixture", "", "YAML fixture loaded into an in-memory store instead of Postgres")
	root.PersistentFlags().StringVarP(&flags.output, "output", "o", "json", "output format: json or yaml")
	root.PersistentFlags().DurationVar(&flags.timeout, "timeout", time.Minute, "overall command timeout")

	root.AddCommand(
		newMigrateCmd(flags),
		newAssignCmd(flags),
		newVerifyCmd(flags),
		newAncestorsCmd(flags),
		newDescendantsCmd(flags),
		newKinshipCmd(flags),
	)
	return root
}

// openBackend: --fixture -> MemoryStore, ngược lại Postgres từ env DB_*
func openBackend(ctx context.Context, flags *rootFlags) (*backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	eng := container.NewEngine(cfg.Genealogy)
	svcCfg := service.ConfigFrom(cfg.Genealogy)
	// CLI không có Redis: không cache, renumber chạy ngay
	svcCfg.CacheTTL = 0
	svcCfg.AutoRenumber = config.AutoRenumberSync

	if flags.fixture != "" {
		f, err := fixture.LoadFile(flags.fixture)
		if err != nil {
			return nil, err
		}
		return &backend{
			svc:   service.NewService(f.NewStore(), eng, nil, nil, nil, svcCfg),
			close: func() {},
		}, nil
	}

	db, err := connectDB(ctx)
	if err != nil {
		return nil, err
	}
	store := repository.NewPostgresStore(db.Pool)
	return &backend{
		svc:   service.NewService(store, eng, nil, nil, nil, svcCfg),
		db:    db,
		close: db.Close,
	}, nil
}

func connectDB(ctx context.Context) (*database.PostgresDB, error) {
	dbConfig, err := config.LoadDatabaseConfig()
	if err != nil {
		return nil, err
	}
	db := database.NewPostgresDB(dbConfig)
	if err := db.Connect(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// runWithBackend gom phần timeout + mở/đóng backend của mọi subcommand
func runWithBackend(flags *rootFlags, fn func(ctx context.Context, b *backend) (interface{}, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
		defer cancel()

		b, err := openBackend(ctx, flags)
		if err != nil {
			return err
		}
		defer b.close()

		result, err := fn(ctx, b)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), flags.output, result)
	}
}

func render(w io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q (json, yaml)", format)
	}
}
