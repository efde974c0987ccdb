package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tenant-migration-service/internal/domain"
	"tenant-migration-service/internal/repository"
	"tenant-migration-service/internal/usecase"
)

// memoryConnectionFactory は共有インメモリSQLiteを開くテスト用ファクトリ。
type memoryConnectionFactory struct {
	t         *testing.T
	keepalive map[string]*gorm.DB
}

func (f *memoryConnectionFactory) Open(_ context.Context, dbName string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", f.t.Name(), dbName)
	if _, ok := f.keepalive[dbName]; !ok {
		keep, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
		if err != nil {
			return nil, err
		}
		f.keepalive[dbName] = keep
		f.t.Cleanup(func() {
			if sqlDB, err := keep.DB(); err == nil {
				sqlDB.Close()
			}
		})
	}
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
}

type emptyTenantDirectory struct{}

func (emptyTenantDirectory) ListActiveTenantDatabases(ctx context.Context) ([]domain.TenantDatabase, error) {
	return nil, nil
}

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	tmpDir := t.TempDir()
	hostDir := filepath.Join(tmpDir, "host")
	if err := os.MkdirAll(hostDir, 0755); err != nil {
		t.Fatalf("failed to create migrations dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(hostDir, "001_init.sql"),
		[]byte("CREATE TABLE tenants (id INT);"), 0644); err != nil {
		t.Fatalf("failed to write migration file: %v", err)
	}

	runner := usecase.NewMigrationRunner(
		&memoryConnectionFactory{t: t, keepalive: make(map[string]*gorm.DB)},
		func(db *gorm.DB) usecase.VersionStore { return repository.NewVersionRepository(db) },
		emptyTenantDirectory{},
		tmpDir,
		"host_db",
		"tester",
		true,
	)

	server := httptest.NewServer(NewRouter(NewStatusHandler(runner)))
	t.Cleanup(server.Close)
	return server
}

func TestStatusHandler_GetStatus(t *testing.T) {
	server := setupTestServer(t)

	resp, err := http.Get(server.URL + "/v1/migrations/status")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var body StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(body.Databases) != 1 {
		t.Fatalf("expected 1 database row, got %d", len(body.Databases))
	}
	row := body.Databases[0]
	if row.Target != "HOST" || row.CurrentVersion != 0 || row.LatestVersion != 1 || row.Pending != 1 {
		t.Errorf("unexpected host row: %+v", row)
	}
}

func TestStatusHandler_Healthz(t *testing.T) {
	server := setupTestServer(t)

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
}
