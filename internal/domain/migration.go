// Package domain はマイグレーション実行のドメインモデルを定義する。
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Scope はマイグレーションの適用対象データベース種別を表す。
// 配置ディレクトリ名（host/tenant/both）から決定される。
type Scope string

const (
	ScopeHost    Scope = "host"
	ScopeTenant  Scope = "tenant"
	ScopeBoth    Scope = "both"
	ScopeUnknown Scope = "unknown"
)

// Direction はマイグレーションの実行方向を表す。
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Migration は1つのマイグレーションファイルを表すドメインモデル。
// パース後は不変として扱う。
type Migration struct {
	Version  int    // バージョン番号（マイグレーションセット全体で一意）
	Name     string // マイグレーション名（ファイル名から抽出）
	Scope    Scope  // 適用対象スコープ
	UpSQL    string // 前進用SQL（必須）
	DownSQL  string // 後退用SQL（空の場合ロールバック不可）
	FilePath string // マイグレーションファイルのパス
}

// SQL は指定された方向のSQL本文を返す。
func (m *Migration) SQL(direction Direction) string {
	if direction == DirectionDown {
		return m.DownSQL
	}
	return m.UpSQL
}

// Checksum は指定された方向のSQL本文のチェックサムを返す。
// SHA-256ダイジェストの先頭16文字（16進）。監査用に記録され、
// 適用時に遅延計算される。
func (m *Migration) Checksum(direction Direction) string {
	sum := sha256.Sum256([]byte(m.SQL(direction)))
	return hex.EncodeToString(sum[:])[:16]
}

// AppliesTo はマイグレーションが指定された対象種別に適用可能か判定する。
// ScopeBothは常に適用され、ScopeUnknownは対象を限定しない。
func (m *Migration) AppliesTo(kind TargetKind) bool {
	switch m.Scope {
	case ScopeHost:
		return kind == TargetHost
	case ScopeTenant:
		return kind == TargetTenant
	default:
		return true
	}
}

// AppliedMigration は追跡テーブルに記録された適用履歴1件を表す。
// (version, direction)ごとに1行の追記専用レコード。
type AppliedMigration struct {
	Version         int
	Name            string
	Scope           Scope
	Direction       Direction
	AppliedAt       time.Time
	AppliedBy       string
	ExecutionTimeMS int64
	Checksum        string
}
