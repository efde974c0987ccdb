package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"tenant-migration-service/internal/domain"
	"tenant-migration-service/internal/infra"
	"tenant-migration-service/internal/repository"
	"tenant-migration-service/internal/usecase"
)

// newRunner はCLI実行1回分のMigrationRunnerを組み立てる。
// 返却されるcleanupはテナントディレクトリ用のホスト接続を閉じる。
func newRunner(dryRun bool) (*usecase.MigrationRunner, func(), error) {
	if cfg.DBName == "" {
		return nil, nil, fmt.Errorf("DB_NAME environment variable is required")
	}

	// テナントディレクトリ照会用のホスト接続
	hostDB, err := infra.NewDB(cfg, cfg.DBName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to host database: %w", err)
	}
	cleanup := func() {
		if sqlDB, err := hostDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	appliedBy := os.Getenv("USER")
	if appliedBy == "" {
		appliedBy = "system"
	}

	runner := usecase.NewMigrationRunner(
		infra.NewConnectionFactory(cfg),
		func(db *gorm.DB) usecase.VersionStore { return repository.NewVersionRepository(db) },
		repository.NewTenantRepository(hostDB),
		cfg.MigrationsDir,
		cfg.DBName,
		appliedBy,
		dryRun,
	)
	return runner, cleanup, nil
}

// migrateCmd は保留マイグレーションの適用コマンド。
func migrateCmd() *cobra.Command {
	var toVersion int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations to host and all tenant databases",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, cleanup, err := newRunner(dryRun)
			if err != nil {
				return err
			}
			defer cleanup()

			if dryRun {
				fmt.Println("DRY RUN - no changes will be made")
			}

			reports, err := runner.MigrateAll(context.Background(), toVersion)
			printReports(reports, "apply")
			return err
		},
	}
	cmd.Flags().IntVar(&toVersion, "to", 0, "Migrate up to this version (0 = latest)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview migrations without applying")
	return cmd
}

// rollbackCmd はマイグレーションの巻き戻しコマンド。
func rollbackCmd() *cobra.Command {
	var steps int
	var toVersion int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Roll back migrations on host and all tenant databases",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, cleanup, err := newRunner(dryRun)
			if err != nil {
				return err
			}
			defer cleanup()

			if dryRun {
				fmt.Println("DRY RUN - no changes will be made")
			} else {
				fmt.Println("WARNING: rolling back migrations may result in data loss")
			}

			reports, err := runner.RollbackAll(context.Background(), steps, toVersion)
			printReports(reports, "roll back")
			return err
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "Number of versions to roll back")
	cmd.Flags().IntVar(&toVersion, "to", -1, "Roll back to this version (-1 = use --steps; 0 = everything)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview rollback without applying")
	return cmd
}

// statusCmd はマイグレーション状況の表示コマンド。
func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status for host and all tenant databases",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, cleanup, err := newRunner(false)
			if err != nil {
				return err
			}
			defer cleanup()

			statuses, err := runner.Status(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "TARGET\tDATABASE\tCURRENT\tLATEST\tPENDING\tNOTES")
			fmt.Fprintln(w, "------\t--------\t-------\t------\t-------\t-----")
			for _, s := range statuses {
				notes := "-"
				switch {
				case s.Err != nil:
					notes = fmt.Sprintf("error: %v", s.Err)
				case len(s.Drifted) > 0:
					notes = fmt.Sprintf("checksum drift: %v", s.Drifted)
				}
				fmt.Fprintf(w, "%s\t%s\tv%03d\tv%03d\t%d\t%s\n",
					s.Target.Label(), s.Target.Database, s.CurrentVersion, s.LatestVersion, s.Pending, notes)
			}
			if err := w.Flush(); err != nil {
				return fmt.Errorf("failed to flush output: %w", err)
			}
			return nil
		},
	}
}

// printReports は実行結果を操作者向けに出力する。
func printReports(reports []*domain.MigrationReport, action string) {
	for _, r := range reports {
		if r.UpToDate {
			fmt.Printf("%s: up to date (v%03d)\n", r.Target.Label(), r.FromVersion)
			continue
		}
		fmt.Printf("%s (v%03d -> v%03d)\n", r.Target.Label(), r.FromVersion, r.ToVersion)

		for _, p := range r.Planned {
			fmt.Printf("  [dry-run] would %s %03d_%s\n", action, p.Version, p.Name)
		}
		for _, a := range r.Applied {
			verb := "applied"
			if a.Direction == domain.DirectionDown {
				verb = "rolled back"
			}
			fmt.Printf("  %s %03d_%s (%dms)\n", verb, a.Version, a.Name, a.ExecutionTimeMS)
		}
		for _, v := range r.Skipped {
			fmt.Printf("  skipped %03d (scope mismatch)\n", v)
		}
		if r.Err != nil {
			fmt.Printf("  FAILED: %v\n", r.Err)
		}
	}
}
