// Package usecase はマイグレーション実行のユースケースを実装する。
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"tenant-migration-service/internal/domain"
)

var (
	// ファイル名のフォーマット: {version}_{name}.sql (例: 003_add_billing.sql)
	migrationFilenamePattern = regexp.MustCompile(`^(\d+)_(.+)\.sql$`)

	// マーカーコメントは大文字小文字を区別せず、=の繰り返し数も任意。
	// 例: -- === UP === / -- ==== DOWN ====
	upMarkerPattern   = regexp.MustCompile(`(?i)--\s*=+\s*UP\s*=+[^\n]*\n?`)
	downMarkerPattern = regexp.MustCompile(`(?i)--\s*=+\s*DOWN\s*=+[^\n]*\n?`)
)

// parseMigrationFile は1つのSQLファイルをMigrationにパースする。
func parseMigrationFile(path string) (*domain.Migration, error) {
	base := filepath.Base(path)
	match := migrationFilenamePattern.FindStringSubmatch(base)
	if match == nil {
		return nil, fmt.Errorf("%w: %s (expected format: {version}_{name}.sql)",
			domain.ErrInvalidMigrationFilename, base)
	}

	version, err := strconv.Atoi(match[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidMigrationFilename, base, err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading migration file: %w", err)
	}

	upSQL, downSQL := splitSQLSections(string(content))

	return &domain.Migration{
		Version:  version,
		Name:     match[2],
		Scope:    scopeFromDir(filepath.Base(filepath.Dir(path))),
		UpSQL:    upSQL,
		DownSQL:  downSQL,
		FilePath: path,
	}, nil
}

// scopeFromDir は親ディレクトリ名からスコープを決定する。
// 認識できないディレクトリ名はScopeUnknownに落とす（致命的ではない）。
func scopeFromDir(dir string) domain.Scope {
	switch dir {
	case "host":
		return domain.ScopeHost
	case "tenant":
		return domain.ScopeTenant
	case "both":
		return domain.ScopeBoth
	default:
		return domain.ScopeUnknown
	}
}

// splitSQLSections はUP/DOWNマーカーでSQL本文を分割する。
// UPマーカーが無い場合はファイル全体が前進用SQLとなり、後退用SQLは空。
// DOWNマーカーが無い場合は後退用SQLは空。
func splitSQLSections(content string) (upSQL, downSQL string) {
	upLoc := upMarkerPattern.FindStringIndex(content)
	if upLoc == nil {
		return strings.TrimSpace(content), ""
	}

	rest := content[upLoc[1]:]
	downLoc := downMarkerPattern.FindStringIndex(rest)
	if downLoc == nil {
		return strings.TrimSpace(rest), ""
	}

	return strings.TrimSpace(rest[:downLoc[0]]), strings.TrimSpace(rest[downLoc[1]:])
}

// DiscoverMigrations はルートディレクトリ配下のhost/tenant/both
// サブディレクトリからマイグレーションをバージョン昇順で収集する。
// scopeFilterを指定すると該当スコープのディレクトリのみ走査する。
// パースできないファイルは警告ログを出して読み飛ばす。
// 同一バージョンを主張するファイルが複数あればErrDuplicateVersionを返す。
func DiscoverMigrations(ctx context.Context, rootDir string, scopeFilter domain.Scope) ([]*domain.Migration, error) {
	scopeDirs := []string{"host", "tenant", "both"}
	if scopeFilter != "" {
		scopeDirs = []string{string(scopeFilter)}
	}

	var migrations []*domain.Migration
	for _, scopeDir := range scopeDirs {
		dir := filepath.Join(rootDir, scopeDir)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading migrations directory: %w", err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
				continue
			}

			migration, err := parseMigrationFile(filepath.Join(dir, entry.Name()))
			if err != nil {
				slog.WarnContext(ctx, "skipping invalid migration file",
					"operation", "discover_migrations",
					"file", filepath.Join(dir, entry.Name()),
					"error", err,
				)
				continue
			}
			migrations = append(migrations, migration)
		}
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version == migrations[i-1].Version {
			return nil, fmt.Errorf("%w: %03d claimed by %s and %s",
				domain.ErrDuplicateVersion, migrations[i].Version,
				migrations[i-1].FilePath, migrations[i].FilePath)
		}
	}

	return migrations, nil
}

// 後述のステータス照会で使用するヘルパ。
func latestVersion(migrations []*domain.Migration) int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
