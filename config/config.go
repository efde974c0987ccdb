// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config はアプリケーション設定を表す。
type Config struct {
	Port             string
	DBDriver         string // "postgres" または "mysql"
	DBUsername       string
	DBPassword       string
	DBHost           string
	DBPort           string
	DBName           string // ホストデータベース名
	MigrationsDir    string
	LogLevel         string
	OtelEnabled      bool
	OtelEndpoint     string
	OtelServiceName  string
	OtelSamplingRate float64
}

// Load は環境変数から設定を読み込む。
func Load() *Config {
	samplingRate := 1.0
	if v := os.Getenv("OTEL_SAMPLING_RATE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			samplingRate = parsed
		}
	}

	return &Config{
		Port:             getEnv("PORT", "8080"),
		DBDriver:         getEnv("DB_DRIVER", "postgres"),
		DBUsername:       os.Getenv("DB_USERNAME"),
		DBPassword:       os.Getenv("DB_PASSWORD"),
		DBHost:           getEnv("DB_HOST", "localhost"),
		DBPort:           getEnv("DB_PORT", "5432"),
		DBName:           os.Getenv("DB_NAME"),
		MigrationsDir:    getEnv("MIGRATIONS_DIR", "./migrations"),
		LogLevel:         getEnv("LOG_LEVEL", "INFO"),
		OtelEnabled:      os.Getenv("OTEL_ENABLED") == "true",
		OtelEndpoint:     getEnv("OTEL_ENDPOINT", "localhost:4317"),
		OtelServiceName:  getEnv("OTEL_SERVICE_NAME", "tenant-migration-service"),
		OtelSamplingRate: samplingRate,
	}
}

// DSN は指定されたデータベース名への接続文字列を構築する。
// テナントデータベースはホストと同一のサーバー上に存在するため、
// 接続情報はデータベース名以外共通となる。
func (c *Config) DSN(dbName string) string {
	switch c.DBDriver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.DBUsername, c.DBPassword, c.DBHost, c.DBPort, dbName)
	default:
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			c.DBHost, c.DBPort, c.DBUsername, c.DBPassword, dbName)
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
