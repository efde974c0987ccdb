package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tenant-migration-service/internal/domain"
)

// ConnectionFactory はデータベース名から接続を開くファクトリのインターフェース。
type ConnectionFactory interface {
	Open(ctx context.Context, dbName string) (*gorm.DB, error)
}

// VersionStore は1データベースの追跡テーブルへのアクセスのインターフェース。
type VersionStore interface {
	EnsureSchema(ctx context.Context) error
	CurrentVersion(ctx context.Context) (int, error)
	FindApplied(ctx context.Context) ([]*domain.AppliedMigration, error)
}

// VersionStoreFactory は接続ごとにVersionStoreを生成する。
type VersionStoreFactory func(db *gorm.DB) VersionStore

// TenantDirectory はホストデータベースのテナント一覧照会のインターフェース。
type TenantDirectory interface {
	ListActiveTenantDatabases(ctx context.Context) ([]domain.TenantDatabase, error)
}

// MigrationRunner はホストと全テナントデータベースに対する
// マイグレーション適用/ロールバックを順次実行する。
// 1データベースの失敗は報告のうえそのデータベースのシーケンスのみを
// 中断し、他のデータベースの処理は継続する。
type MigrationRunner struct {
	connections   ConnectionFactory
	stores        VersionStoreFactory
	tenants       TenantDirectory
	migrationsDir string
	hostDatabase  string
	appliedBy     string
	dryRun        bool
	runID         string
}

// NewMigrationRunner は新しいMigrationRunnerを生成する。
func NewMigrationRunner(
	connections ConnectionFactory,
	stores VersionStoreFactory,
	tenants TenantDirectory,
	migrationsDir string,
	hostDatabase string,
	appliedBy string,
	dryRun bool,
) *MigrationRunner {
	return &MigrationRunner{
		connections:   connections,
		stores:        stores,
		tenants:       tenants,
		migrationsDir: migrationsDir,
		hostDatabase:  hostDatabase,
		appliedBy:     appliedBy,
		dryRun:        dryRun,
		runID:         uuid.New().String(),
	}
}

// targets はホストを先頭に、テナント一覧照会の順序で対象データベースを返す。
// テナント照会の失敗はホストのみの実行に縮退する。
func (r *MigrationRunner) targets(ctx context.Context) []domain.DatabaseTarget {
	targets := []domain.DatabaseTarget{{
		Kind:     domain.TargetHost,
		Database: r.hostDatabase,
	}}

	tenants, err := r.tenants.ListActiveTenantDatabases(ctx)
	if err != nil {
		slog.WarnContext(ctx, "tenant lookup failed, proceeding host-only",
			"operation", "resolve_targets",
			"run_id", r.runID,
			"error", err,
		)
		return targets
	}

	for _, t := range tenants {
		targets = append(targets, domain.DatabaseTarget{
			Kind:     domain.TargetTenant,
			Database: t.Database,
			TenantID: t.TenantID,
		})
	}
	return targets
}

func closeConnection(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	_ = sqlDB.Close()
}

// MigrateAll はホストと全テナントデータベースを前進させる。
// toVersionが正の場合、そのバージョンまでで打ち切る。
// いずれかのデータベースが失敗した場合もレポートは全件返し、
// 集約エラーを併せて返す。
func (r *MigrationRunner) MigrateAll(ctx context.Context, toVersion int) ([]*domain.MigrationReport, error) {
	migrations, err := DiscoverMigrations(ctx, r.migrationsDir, "")
	if err != nil {
		return nil, err
	}

	targets := r.targets(ctx)
	reports := make([]*domain.MigrationReport, 0, len(targets))
	failed := 0
	for _, target := range targets {
		report := r.migrateDatabase(ctx, target, migrations, toVersion)
		reports = append(reports, report)
		if report.Err != nil {
			failed++
		}
	}

	if failed > 0 {
		return reports, fmt.Errorf("migration failed on %d of %d database(s)", failed, len(targets))
	}
	return reports, nil
}

// migrateDatabase は1データベースを前進させる。
func (r *MigrationRunner) migrateDatabase(ctx context.Context, target domain.DatabaseTarget, migrations []*domain.Migration, toVersion int) *domain.MigrationReport {
	report := &domain.MigrationReport{Target: target}

	db, err := r.connections.Open(ctx, target.Database)
	if err != nil {
		report.Err = fmt.Errorf("connecting to %s: %w", target.Database, err)
		r.logDatabaseError(ctx, "migrate_database", target, report.Err)
		return report
	}
	defer closeConnection(db)

	store := r.stores(db)
	if err := store.EnsureSchema(ctx); err != nil {
		report.Err = err
		r.logDatabaseError(ctx, "migrate_database", target, err)
		return report
	}

	current, err := store.CurrentVersion(ctx)
	if err != nil {
		report.Err = err
		r.logDatabaseError(ctx, "migrate_database", target, err)
		return report
	}
	report.FromVersion = current
	report.ToVersion = current

	var pending []*domain.Migration
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if toVersion > 0 && m.Version > toVersion {
			continue
		}
		pending = append(pending, m)
	}

	if len(pending) == 0 {
		report.UpToDate = true
		return report
	}

	for _, m := range pending {
		if !m.AppliesTo(target.Kind) {
			report.Skipped = append(report.Skipped, m.Version)
			continue
		}

		if r.dryRun {
			report.Planned = append(report.Planned, domain.PlannedStep{Version: m.Version, Name: m.Name})
			report.ToVersion = m.Version
			continue
		}

		step, err := r.applyMigration(ctx, db, m, domain.DirectionUp)
		if err != nil {
			// 残りの保留マイグレーションはこのデータベースでは試行しない
			report.Err = fmt.Errorf("%w: version %03d: %v", domain.ErrMigrationFailed, m.Version, err)
			r.logDatabaseError(ctx, "migrate_database", target, report.Err)
			return report
		}
		report.Applied = append(report.Applied, step)
		report.ToVersion = m.Version

		slog.InfoContext(ctx, "migration applied",
			"operation", "migrate_database",
			"run_id", r.runID,
			"target", target.Label(),
			"database", target.Database,
			"version", m.Version,
			"name", m.Name,
			"direction", string(domain.DirectionUp),
			"execution_time_ms", step.ExecutionTimeMS,
		)
	}

	return report
}

// RollbackAll はホストと全テナントデータベースを後退させる。
// toVersionが負の場合はstepsから対象バージョンを算出する（toVersion 0は
// 全ロールバックを意味するため有効値）。
func (r *MigrationRunner) RollbackAll(ctx context.Context, steps, toVersion int) ([]*domain.MigrationReport, error) {
	migrations, err := DiscoverMigrations(ctx, r.migrationsDir, "")
	if err != nil {
		return nil, err
	}

	targets := r.targets(ctx)
	reports := make([]*domain.MigrationReport, 0, len(targets))
	failed := 0
	for _, target := range targets {
		report := r.rollbackDatabase(ctx, target, migrations, steps, toVersion)
		reports = append(reports, report)
		if report.Err != nil {
			failed++
		}
	}

	if failed > 0 {
		return reports, fmt.Errorf("rollback failed on %d of %d database(s)", failed, len(targets))
	}
	return reports, nil
}

// rollbackDatabase は1データベースを後退させる。バージョン降順に実行し、
// DOWNセクションを持たないマイグレーションに当たった時点でそのデータベースの
// シーケンスを中断する。
func (r *MigrationRunner) rollbackDatabase(ctx context.Context, target domain.DatabaseTarget, migrations []*domain.Migration, steps, toVersion int) *domain.MigrationReport {
	report := &domain.MigrationReport{Target: target}

	db, err := r.connections.Open(ctx, target.Database)
	if err != nil {
		report.Err = fmt.Errorf("connecting to %s: %w", target.Database, err)
		r.logDatabaseError(ctx, "rollback_database", target, report.Err)
		return report
	}
	defer closeConnection(db)

	store := r.stores(db)
	if err := store.EnsureSchema(ctx); err != nil {
		report.Err = err
		r.logDatabaseError(ctx, "rollback_database", target, err)
		return report
	}

	current, err := store.CurrentVersion(ctx)
	if err != nil {
		report.Err = err
		r.logDatabaseError(ctx, "rollback_database", target, err)
		return report
	}
	report.FromVersion = current
	report.ToVersion = current

	if current == 0 {
		report.UpToDate = true
		return report
	}

	if toVersion < 0 {
		toVersion = current - steps
		if toVersion < 0 {
			toVersion = 0
		}
	}
	if toVersion >= current {
		report.UpToDate = true
		return report
	}

	// toVersion < version <= current を降順で後退させる
	var selected []*domain.Migration
	for i := len(migrations) - 1; i >= 0; i-- {
		m := migrations[i]
		if m.Version > current || m.Version <= toVersion {
			continue
		}
		selected = append(selected, m)
	}

	for _, m := range selected {
		if !m.AppliesTo(target.Kind) {
			report.Skipped = append(report.Skipped, m.Version)
			continue
		}

		if strings.TrimSpace(m.DownSQL) == "" {
			report.Err = fmt.Errorf("%w: DOWN in %03d_%s", domain.ErrMissingDirectionSection, m.Version, m.Name)
			r.logDatabaseError(ctx, "rollback_database", target, report.Err)
			return report
		}

		if r.dryRun {
			report.Planned = append(report.Planned, domain.PlannedStep{Version: m.Version, Name: m.Name})
			continue
		}

		step, err := r.applyMigration(ctx, db, m, domain.DirectionDown)
		if err != nil {
			report.Err = fmt.Errorf("%w: version %03d: %v", domain.ErrMigrationFailed, m.Version, err)
			r.logDatabaseError(ctx, "rollback_database", target, report.Err)
			return report
		}
		report.Applied = append(report.Applied, step)

		slog.InfoContext(ctx, "migration rolled back",
			"operation", "rollback_database",
			"run_id", r.runID,
			"target", target.Label(),
			"database", target.Database,
			"version", m.Version,
			"name", m.Name,
			"direction", string(domain.DirectionDown),
			"execution_time_ms", step.ExecutionTimeMS,
		)
	}

	report.ToVersion = toVersion
	return report
}

// applyMigration は1マイグレーションを実行する。SQL実行と追跡行の挿入は
// 同一トランザクションで行い、失敗時は両方ロールバックされる。
func (r *MigrationRunner) applyMigration(ctx context.Context, db *gorm.DB, m *domain.Migration, direction domain.Direction) (domain.AppliedStep, error) {
	sql := m.SQL(direction)
	if strings.TrimSpace(sql) == "" {
		return domain.AppliedStep{}, fmt.Errorf("%w: %s in %03d_%s",
			domain.ErrMissingDirectionSection, strings.ToUpper(string(direction)), m.Version, m.Name)
	}

	start := time.Now()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(sql).Error; err != nil {
			return fmt.Errorf("executing %s SQL: %w", strings.ToUpper(string(direction)), err)
		}

		// 追跡行の挿入（SQL実行と同一トランザクションで記録する）
		record := struct {
			Version         int    `gorm:"column:version;primaryKey"`
			Name            string `gorm:"column:name"`
			Scope           string `gorm:"column:scope"`
			Direction       string `gorm:"column:direction;primaryKey"`
			AppliedBy       string `gorm:"column:applied_by"`
			ExecutionTimeMS int64  `gorm:"column:execution_time_ms"`
			Checksum        string `gorm:"column:checksum"`
		}{
			Version:         m.Version,
			Name:            m.Name,
			Scope:           string(m.Scope),
			Direction:       string(direction),
			AppliedBy:       r.appliedBy,
			ExecutionTimeMS: time.Since(start).Milliseconds(),
			Checksum:        m.Checksum(direction),
		}
		if err := tx.Table("_migration_versions").Create(&record).Error; err != nil {
			return fmt.Errorf("recording migration: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.AppliedStep{}, err
	}

	return domain.AppliedStep{
		Version:         m.Version,
		Name:            m.Name,
		Direction:       direction,
		ExecutionTimeMS: time.Since(start).Milliseconds(),
	}, nil
}

// Status はホストと全テナントのマイグレーション状況を返す。
// 個別データベースの照会失敗は該当行に記録し、全体の走査は継続する。
func (r *MigrationRunner) Status(ctx context.Context) ([]domain.DatabaseStatus, error) {
	migrations, err := DiscoverMigrations(ctx, r.migrationsDir, "")
	if err != nil {
		return nil, err
	}

	latest := latestVersion(migrations)
	byVersion := make(map[int]*domain.Migration, len(migrations))
	for _, m := range migrations {
		byVersion[m.Version] = m
	}

	targets := r.targets(ctx)
	statuses := make([]domain.DatabaseStatus, 0, len(targets))
	for _, target := range targets {
		statuses = append(statuses, r.databaseStatus(ctx, target, latest, byVersion))
	}
	return statuses, nil
}

// databaseStatus は1データベースの状況を照会する。
func (r *MigrationRunner) databaseStatus(ctx context.Context, target domain.DatabaseTarget, latest int, byVersion map[int]*domain.Migration) domain.DatabaseStatus {
	status := domain.DatabaseStatus{Target: target, LatestVersion: latest}

	db, err := r.connections.Open(ctx, target.Database)
	if err != nil {
		status.Err = fmt.Errorf("connecting to %s: %w", target.Database, err)
		return status
	}
	defer closeConnection(db)

	store := r.stores(db)
	if err := store.EnsureSchema(ctx); err != nil {
		status.Err = err
		return status
	}

	current, err := store.CurrentVersion(ctx)
	if err != nil {
		status.Err = err
		return status
	}
	status.CurrentVersion = current
	status.Pending = latest - current

	// 適用済みチェックサムと現在のファイル内容の照合。
	// 適用後に書き換えられたマイグレーションを検出する。
	applied, err := store.FindApplied(ctx)
	if err != nil {
		slog.WarnContext(ctx, "skipping checksum drift check",
			"operation", "database_status",
			"target", target.Label(),
			"error", err,
		)
		return status
	}

	seen := make(map[int]bool)
	for _, a := range applied {
		if a.Direction != domain.DirectionUp || seen[a.Version] {
			continue
		}
		m, ok := byVersion[a.Version]
		if !ok {
			continue
		}
		if m.Checksum(domain.DirectionUp) != a.Checksum {
			status.Drifted = append(status.Drifted, a.Version)
		}
		seen[a.Version] = true
	}

	return status
}

func (r *MigrationRunner) logDatabaseError(ctx context.Context, operation string, target domain.DatabaseTarget, err error) {
	slog.ErrorContext(ctx, "database migration error",
		"operation", operation,
		"run_id", r.runID,
		"target", target.Label(),
		"database", target.Database,
		"error", err,
	)
}
