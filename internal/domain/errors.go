package domain

import "errors"

var (
	// ErrInvalidMigrationFilename はファイル名がバージョン番号で始まらない場合のエラー。
	// 該当ファイルのみ無効となり、ディスカバリは継続する。
	ErrInvalidMigrationFilename = errors.New("invalid migration filename")

	// ErrDuplicateVersion は複数のファイルが同一バージョンを主張する場合のエラー。
	// ディスカバリ全体が失敗する。
	ErrDuplicateVersion = errors.New("duplicate migration version")

	// ErrMissingDirectionSection は実行方向のSQL本文が空の場合のエラー。
	// 該当データベースの残りのシーケンスは中断される。
	ErrMissingDirectionSection = errors.New("no SQL section for direction")

	// ErrMigrationFailed はマイグレーションSQL実行時のエラー。
	ErrMigrationFailed = errors.New("migration failed")

	// ErrVersionQueryFailed は現在バージョンの照会に失敗した場合のエラー。
	// バージョン0とは区別され、該当データベースの実行をブロックする。
	ErrVersionQueryFailed = errors.New("could not determine current version")
)
