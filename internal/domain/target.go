package domain

import "fmt"

// TargetKind は移行対象データベースの種別を表す。
type TargetKind string

const (
	TargetHost   TargetKind = "host"
	TargetTenant TargetKind = "tenant"
)

// DatabaseTarget は移行対象の1データベースを表す。
// ホストデータベースは単一、テナントデータベースはテナントごとに1つ存在し、
// それぞれ独立した追跡テーブルを持つ。
type DatabaseTarget struct {
	Kind     TargetKind
	Database string // データベース名
	TenantID string // Kind == TargetTenant の場合のみ設定
}

// Label は操作者向け出力用のラベルを返す。
func (t DatabaseTarget) Label() string {
	if t.Kind == TargetTenant {
		return fmt.Sprintf("TENANT %s", t.TenantID)
	}
	return "HOST"
}

// TenantDatabase はホストデータベースのテナントディレクトリから
// 列挙されたテナントデータベース1件を表す。
type TenantDatabase struct {
	TenantID string
	Database string
}
