package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"family-registry-backend/internal/infrastructure/database"
)

// ── migrate ───────────────────────────────────────────────────────────────────

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the embedded SQL migrations",
	}

	migrate := func(fn func(ctx context.Context, m *database.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			if flags.fixture != "" {
				return errors.New("migrate works on Postgres only, drop --fixture")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
			defer cancel()

			db, err := connectDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			return fn(ctx, database.NewMigrator(db))
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Run all pending migrations",
			RunE: migrate(func(ctx context.Context, m *database.Migrator) error {
				return m.Up(ctx)
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the status of every migration",
			RunE: migrate(func(ctx context.Context, m *database.Migrator) error {
				return m.Status(ctx)
			}),
		},
	)
	return cmd
}

// ── assign / verify ───────────────────────────────────────────────────────────

func newAssignCmd(flags *rootFlags) *cobra.Command {
	var groupID, memberID int64
	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Recompute member codes of a group (--group) or of one subtree (--member)",
		Long: `Recompute member codes.

  familyctl assign --group 1       renumber the whole group
  familyctl assign --member 42     renumber member 42 and its primary-lineage descendants

With --fixture the result is computed in memory and printed, nothing is persisted.`,
		RunE: runWithBackend(flags, func(ctx context.Context, b *backend) (interface{}, error) {
			switch {
			case groupID > 0 && memberID > 0:
				return nil, errors.New("use either --group or --member")
			case groupID > 0:
				return b.svc.AssignGroup(ctx, groupID)
			case memberID > 0:
				return b.svc.AssignMember(ctx, memberID)
			}
			return nil, errors.New("--group or --member is required")
		}),
	}
	cmd.Flags().Int64Var(&groupID, "group", 0, "family group id")
	cmd.Flags().Int64Var(&memberID, "member", 0, "subtree root member id")
	return cmd
}

func newVerifyCmd(flags *rootFlags) *cobra.Command {
	var groupID int64
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Report members whose stored code differs from the computed one",
		RunE: runWithBackend(flags, func(ctx context.Context, b *backend) (interface{}, error) {
			report, err := b.svc.VerifyGroup(ctx, groupID)
			if err != nil {
				return nil, err
			}
			return report, nil
		}),
	}
	cmd.Flags().Int64Var(&groupID, "group", 0, "family group id")
	_ = cmd.MarkFlagRequired("group")
	return cmd
}

// ── walker / kinship ──────────────────────────────────────────────────────────

func newAncestorsCmd(flags *rootFlags) *cobra.Command {
	var memberID int64
	var depth int
	cmd := &cobra.Command{
		Use:   "ancestors",
		Short: "List the ancestors of a member, nearest generation first",
		RunE: runWithBackend(flags, func(ctx context.Context, b *backend) (interface{}, error) {
			return b.svc.Ancestors(ctx, memberID, depth)
		}),
	}
	cmd.Flags().Int64Var(&memberID, "member", 0, "member id")
	cmd.Flags().IntVar(&depth, "depth", 0, "generations to walk (0 = configured cap)")
	_ = cmd.MarkFlagRequired("member")
	return cmd
}

func newDescendantsCmd(flags *rootFlags) *cobra.Command {
	var memberID int64
	var depth int
	var tree bool
	cmd := &cobra.Command{
		Use:   "descendants",
		Short: "List the descendants of a member",
		RunE: runWithBackend(flags, func(ctx context.Context, b *backend) (interface{}, error) {
			if tree {
				return b.svc.DescendantTree(ctx, memberID, depth)
			}
			return b.svc.Descendants(ctx, memberID, depth)
		}),
	}
	cmd.Flags().Int64Var(&memberID, "member", 0, "member id")
	cmd.Flags().IntVar(&depth, "depth", 0, "generations to walk (0 = configured cap)")
	cmd.Flags().BoolVar(&tree, "tree", false, "print a nested tree instead of a flat list")
	_ = cmd.MarkFlagRequired("member")
	return cmd
}

func newKinshipCmd(flags *rootFlags) *cobra.Command {
	var a, b int64
	cmd := &cobra.Command{
		Use:   "kinship",
		Short: "Describe what member --b is to member --a",
		RunE: runWithBackend(flags, func(ctx context.Context, be *backend) (interface{}, error) {
			if a <= 0 || b <= 0 {
				return nil, fmt.Errorf("--a and --b must be member ids")
			}
			return be.svc.Relationship(ctx, a, b)
		}),
	}
	cmd.Flags().Int64Var(&a, "a", 0, "member A")
	cmd.Flags().Int64Var(&b, "b", 0, "member B")
	_ = cmd.MarkFlagRequired("a")
	_ = cmd.MarkFlagRequired("b")
	return cmd
}
