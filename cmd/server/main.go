// Package main はマイグレーション状況APIサーバーのエントリポイント。
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"

	"tenant-migration-service/config"
	"tenant-migration-service/internal/handler"
	"tenant-migration-service/internal/infra"
	"tenant-migration-service/internal/repository"
	"tenant-migration-service/internal/usecase"
)

func main() {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	// 既存の環境変数は上書きしない
	_ = godotenv.Load()

	// 設定読み込み
	cfg := config.Load()

	// トレーサー初期化（ロガー設定の前に実行）
	tp, err := infra.InitTracer(ctx, cfg)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	if tp != nil {
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				slog.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	// トレース情報付きロガーを設定
	infra.SetupLogger(cfg, infra.LogLevel(cfg))

	// ホストDB初期化（テナントディレクトリ照会用）
	if cfg.DBName == "" {
		slog.Error("DB_NAME is not set")
		os.Exit(1)
	}
	hostDB, err := infra.NewDB(cfg, cfg.DBName)
	if err != nil {
		slog.Error("failed to init host database", "error", err)
		os.Exit(1)
	}

	// DI
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
		true, // 状況APIは読み取り専用のためドライラン固定
	)
	h := handler.NewStatusHandler(runner)
	router := handler.NewRouter(h)

	// サーバー起動
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: otelhttp.NewHandler(router, "migration-status-api"),
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting server", "port", cfg.Port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
