package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tenant-migration-service/internal/domain"
)

// writeMigrationFile はテスト用のマイグレーションファイルを作成する。
func writeMigrationFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write migration file: %v", err)
	}
	return path
}

func TestParseMigrationFile_Filename(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeMigrationFile(t, filepath.Join(tmpDir, "host"), "003_add_billing.sql",
		"CREATE TABLE billing (id INT);")

	m, err := parseMigrationFile(path)
	if err != nil {
		t.Fatalf("parseMigrationFile failed: %v", err)
	}

	if m.Version != 3 {
		t.Errorf("expected version 3, got %d", m.Version)
	}
	if m.Name != "add_billing" {
		t.Errorf("expected name add_billing, got %q", m.Name)
	}
	if m.Scope != domain.ScopeHost {
		t.Errorf("expected scope host, got %q", m.Scope)
	}
}

func TestParseMigrationFile_InvalidFilename(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeMigrationFile(t, filepath.Join(tmpDir, "host"), "add_billing.sql",
		"CREATE TABLE billing (id INT);")

	_, err := parseMigrationFile(path)
	if !errors.Is(err, domain.ErrInvalidMigrationFilename) {
		t.Errorf("expected ErrInvalidMigrationFilename, got %v", err)
	}
}

func TestParseMigrationFile_UnknownScope(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeMigrationFile(t, filepath.Join(tmpDir, "misc"), "001_init.sql", "SELECT 1;")

	m, err := parseMigrationFile(path)
	if err != nil {
		t.Fatalf("parseMigrationFile failed: %v", err)
	}
	// 認識できないディレクトリは致命的ではなくunknownに落ちる
	if m.Scope != domain.ScopeUnknown {
		t.Errorf("expected scope unknown, got %q", m.Scope)
	}
}

func TestSplitSQLSections(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantUp   string
		wantDown string
	}{
		{
			name:     "up and down markers",
			content:  "-- === UP ===\nCREATE TABLE a (id INT);\n-- === DOWN ===\nDROP TABLE a;\n",
			wantUp:   "CREATE TABLE a (id INT);",
			wantDown: "DROP TABLE a;",
		},
		{
			name:     "up only",
			content:  "-- === UP ===\nCREATE TABLE a (id INT);\n",
			wantUp:   "CREATE TABLE a (id INT);",
			wantDown: "",
		},
		{
			name:     "no markers defaults whole file to up",
			content:  "CREATE TABLE a (id INT);\n",
			wantUp:   "CREATE TABLE a (id INT);",
			wantDown: "",
		},
		{
			name:     "case insensitive with extra padding",
			content:  "-- ======= up =======\nCREATE TABLE a (id INT);\n-- == Down ==\nDROP TABLE a;\n",
			wantUp:   "CREATE TABLE a (id INT);",
			wantDown: "DROP TABLE a;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up, down := splitSQLSections(tt.content)
			if up != tt.wantUp {
				t.Errorf("up: expected %q, got %q", tt.wantUp, up)
			}
			if down != tt.wantDown {
				t.Errorf("down: expected %q, got %q", tt.wantDown, down)
			}
		})
	}
}

func TestMigration_Checksum(t *testing.T) {
	m := &domain.Migration{UpSQL: "CREATE TABLE a (id INT);", DownSQL: "DROP TABLE a;"}

	up := m.Checksum(domain.DirectionUp)
	down := m.Checksum(domain.DirectionDown)

	if len(up) != 16 || len(down) != 16 {
		t.Errorf("expected 16 character checksums, got %d and %d", len(up), len(down))
	}
	if up == down {
		t.Error("expected different checksums for different bodies")
	}
	if up != m.Checksum(domain.DirectionUp) {
		t.Error("expected checksum to be deterministic")
	}
}

func TestDiscoverMigrations(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	writeMigrationFile(t, filepath.Join(tmpDir, "tenant"), "002_add_col.sql",
		"-- === UP ===\nALTER TABLE a ADD COLUMN b INT;\n-- === DOWN ===\nALTER TABLE a DROP COLUMN b;\n")
	writeMigrationFile(t, filepath.Join(tmpDir, "host"), "001_init.sql", "CREATE TABLE a (id INT);")
	writeMigrationFile(t, filepath.Join(tmpDir, "both"), "003_audit.sql", "CREATE TABLE audit (id INT);")
	// 不正なファイル名は警告のうえ読み飛ばされる
	writeMigrationFile(t, filepath.Join(tmpDir, "host"), "invalid.sql", "SELECT 1;")

	migrations, err := DiscoverMigrations(ctx, tmpDir, "")
	if err != nil {
		t.Fatalf("DiscoverMigrations failed: %v", err)
	}

	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	for i, want := range []int{1, 2, 3} {
		if migrations[i].Version != want {
			t.Errorf("position %d: expected version %d, got %d", i, want, migrations[i].Version)
		}
	}
}

func TestDiscoverMigrations_ScopeFilter(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	writeMigrationFile(t, filepath.Join(tmpDir, "host"), "001_init.sql", "SELECT 1;")
	writeMigrationFile(t, filepath.Join(tmpDir, "tenant"), "002_add_col.sql", "SELECT 1;")

	migrations, err := DiscoverMigrations(ctx, tmpDir, domain.ScopeTenant)
	if err != nil {
		t.Fatalf("DiscoverMigrations failed: %v", err)
	}

	if len(migrations) != 1 {
		t.Fatalf("expected 1 migration, got %d", len(migrations))
	}
	if migrations[0].Version != 2 {
		t.Errorf("expected version 2, got %d", migrations[0].Version)
	}
}

func TestDiscoverMigrations_DuplicateVersion(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	writeMigrationFile(t, filepath.Join(tmpDir, "host"), "001_init.sql", "SELECT 1;")
	writeMigrationFile(t, filepath.Join(tmpDir, "tenant"), "001_other.sql", "SELECT 1;")

	_, err := DiscoverMigrations(ctx, tmpDir, "")
	if !errors.Is(err, domain.ErrDuplicateVersion) {
		t.Errorf("expected ErrDuplicateVersion, got %v", err)
	}
}

func TestDiscoverMigrations_MissingDirectory(t *testing.T) {
	ctx := context.Background()

	migrations, err := DiscoverMigrations(ctx, t.TempDir(), "")
	if err != nil {
		t.Fatalf("DiscoverMigrations failed: %v", err)
	}
	if len(migrations) != 0 {
		t.Errorf("expected no migrations, got %d", len(migrations))
	}
}
