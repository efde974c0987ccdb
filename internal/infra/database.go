// Package infra は外部サービスとの接続を提供する。
package infra

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"tenant-migration-service/config"
)

// NewDB は指定されたデータベースへのgorm接続を初期化する。
// ドライバはDB_DRIVERで切り替える（postgres/mysql）。
func NewDB(cfg *config.Config, dbName string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "mysql":
		dialector = mysql.Open(cfg.DSN(dbName))
	case "postgres", "":
		dialector = postgres.Open(cfg.DSN(dbName))
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER: %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if cfg.OtelEnabled {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, err
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 接続プール設定。マイグレーションは逐次実行のため小さく保つ
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// ConnectionFactory は設定に基づいてデータベース名ごとの接続を開く。
type ConnectionFactory struct {
	cfg *config.Config
}

// NewConnectionFactory は新しいConnectionFactoryを生成する。
func NewConnectionFactory(cfg *config.Config) *ConnectionFactory {
	return &ConnectionFactory{cfg: cfg}
}

// Open は指定されたデータベースへの接続を開く。
func (f *ConnectionFactory) Open(_ context.Context, dbName string) (*gorm.DB, error) {
	return NewDB(f.cfg, dbName)
}
