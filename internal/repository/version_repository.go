// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"tenant-migration-service/internal/domain"
)

// MigrationVersionModel は_migration_versionsテーブルのモデル。
// (version, direction)を複合主キーとする追記専用テーブルで、
// 同一方向の再適用は主キー制約で拒否される。
type MigrationVersionModel struct {
	Version         int       `gorm:"column:version;primaryKey"`
	Name            string    `gorm:"column:name;not null"`
	Scope           string    `gorm:"column:scope;not null"`
	Direction       string    `gorm:"column:direction;primaryKey;type:varchar(8)"`
	AppliedAt       time.Time `gorm:"column:applied_at;not null;autoCreateTime"`
	AppliedBy       string    `gorm:"column:applied_by"`
	ExecutionTimeMS int64     `gorm:"column:execution_time_ms"`
	Checksum        string    `gorm:"column:checksum;not null;type:varchar(16)"`
}

// TableName はテーブル名を指定。
func (MigrationVersionModel) TableName() string {
	return "_migration_versions"
}

func (m *MigrationVersionModel) toDomain() *domain.AppliedMigration {
	return &domain.AppliedMigration{
		Version:         m.Version,
		Name:            m.Name,
		Scope:           domain.Scope(m.Scope),
		Direction:       domain.Direction(m.Direction),
		AppliedAt:       m.AppliedAt,
		AppliedBy:       m.AppliedBy,
		ExecutionTimeMS: m.ExecutionTimeMS,
		Checksum:        m.Checksum,
	}
}

// VersionRepository は1データベースの追跡テーブルへのアクセスを提供する。
// 接続ごとに生成され、接続と同じライフサイクルを持つ。
type VersionRepository struct {
	db *gorm.DB
}

// NewVersionRepository は新しいVersionRepositoryを生成する。
func NewVersionRepository(db *gorm.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// EnsureSchema は追跡テーブルとインデックスを冪等に作成する。
func (r *VersionRepository) EnsureSchema(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS _migration_versions (
		version INTEGER NOT NULL,
		name TEXT NOT NULL,
		scope TEXT NOT NULL,
		direction VARCHAR(8) NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		applied_by TEXT,
		execution_time_ms INTEGER,
		checksum VARCHAR(16) NOT NULL,
		PRIMARY KEY (version, direction)
	)`
	if err := r.db.WithContext(ctx).Exec(ddl).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create migration tracking table",
			"operation", "ensure_schema",
			"error", err,
		)
		return fmt.Errorf("creating tracking table: %w", err)
	}

	idx := `CREATE INDEX IF NOT EXISTS idx_migration_version_timestamp
		ON _migration_versions (version DESC, applied_at DESC)`
	if err := r.db.WithContext(ctx).Exec(idx).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create migration tracking index",
			"operation", "ensure_schema",
			"error", err,
		)
		return fmt.Errorf("creating tracking index: %w", err)
	}

	return nil
}

// CurrentVersion はdirection='up'の記録を持つ最大バージョンを返す。
// 未適用の場合は0。照会失敗は0と区別してエラーとして返し、
// 呼び出し側で該当データベースの実行をブロックする。
func (r *VersionRepository) CurrentVersion(ctx context.Context) (int, error) {
	var maxVersion *int
	err := r.db.WithContext(ctx).
		Model(&MigrationVersionModel{}).
		Where("direction = ?", string(domain.DirectionUp)).
		Select("MAX(version)").
		Scan(&maxVersion).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to query current version",
			"operation", "current_version",
			"error", err,
		)
		return 0, fmt.Errorf("%w: %v", domain.ErrVersionQueryFailed, err)
	}
	if maxVersion == nil {
		return 0, nil
	}
	return *maxVersion, nil
}

// FindApplied は適用履歴をバージョン昇順で取得する。
func (r *VersionRepository) FindApplied(ctx context.Context) ([]*domain.AppliedMigration, error) {
	var models []MigrationVersionModel
	err := r.db.WithContext(ctx).
		Order("version ASC, applied_at ASC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find applied migrations",
			"operation", "find_applied",
			"error", err,
		)
		return nil, err
	}

	applied := make([]*domain.AppliedMigration, len(models))
	for i, m := range models {
		applied[i] = m.toDomain()
	}
	return applied, nil
}
