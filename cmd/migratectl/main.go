// Package main はマイグレーションCLIのエントリポイント。
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"tenant-migration-service/config"
	"tenant-migration-service/internal/infra"
)

const version = "1.0.0"

var cfg *config.Config

func main() {
	rootCmd := &cobra.Command{
		Use:   "migratectl",
		Short: "Multi-tenant database migration runner",
		Long:  "Apply, roll back and inspect schema migrations across the host database and all tenant databases",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .envファイルを読み込む（存在しない場合は無視）
			// 既存の環境変数は上書きしない
			_ = godotenv.Load()
			cfg = config.Load()
			infra.SetupLogger(cfg, infra.LogLevel(cfg))
		},
	}

	// サブコマンド登録
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(rollbackCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd はバージョン情報を表示する。
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("migratectl version %s\n", version)
		},
	}
}
