package domain

// AppliedStep は1マイグレーションの適用結果を表す。
type AppliedStep struct {
	Version         int
	Name            string
	Direction       Direction
	ExecutionTimeMS int64
}

// PlannedStep はドライラン時に適用予定として報告される1件を表す。
type PlannedStep struct {
	Version int
	Name    string
}

// MigrationReport は1データベースに対する移行/ロールバック実行の結果を表す。
type MigrationReport struct {
	Target      DatabaseTarget
	FromVersion int
	ToVersion   int // 実行後のバージョン（ドライラン時は到達予定バージョン）
	Applied     []AppliedStep
	Planned     []PlannedStep // ドライラン時のみ設定
	Skipped     []int         // スコープ不一致でスキップされたバージョン
	UpToDate    bool
	Err         error // このデータベースで発生した失敗（他データベースには影響しない）
}

// DatabaseStatus は1データベースのマイグレーション状況を表す。
type DatabaseStatus struct {
	Target         DatabaseTarget
	CurrentVersion int
	LatestVersion  int   // マイグレーションセット中の最大バージョン
	Pending        int   // LatestVersion - CurrentVersion
	Drifted        []int // 適用後にファイルが書き換えられたバージョン
	Err            error // このデータベースの照会失敗（全体の走査は継続する）
}
