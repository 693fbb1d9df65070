// Package database はPostgreSQL・SQLiteへの接続と、PostgreSQLのスキーマ移行を提供する。
//
// migrations/ に埋め込んだ移行は次の順で適用される。
//
//	000001 accounts  メールアドレス(一意)・bcryptハッシュ・表示名
//	000002 sessions  トークンのsidに対応するセッション。失効・期限切れは定期削除の対象
//	000003 documents events / favorites をJSONBで保持。お気に入りは(userId, eventId)で一意
//
// SQLiteは sqlite/schema.sql を起動時に冪等に適用するだけで、移行履歴は持たない。
package database

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// MigrationResult はRunMigrationsの前後のスキーマバージョン。0は未適用を表す。
type MigrationResult struct {
	From  uint
	To    uint
	Dirty bool
}

// Applied は今回の実行で新たに移行が適用されたかを返す。
func (r MigrationResult) Applied() bool {
	return r.From != r.To
}

// NewMigrator は埋め込み移行を使うPostgreSQL用のmigrateインスタンスを生成する。
// 移行ツールのログはslogのdebugレベルへ流す。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect migrator: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

// RunMigrations は未適用の移行をすべて適用し、前後のバージョンを返す。
// 最新の場合はFromとToが等しい結果を返す。
func RunMigrations(databaseURL string) (MigrationResult, error) {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return MigrationResult{}, err
	}
	defer closeMigrator(m)

	from, _, err := schemaVersion(m)
	if err != nil {
		return MigrationResult{}, err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return MigrationResult{From: from}, fmt.Errorf("failed to apply migrations from version %d: %w", from, err)
	}

	to, dirty, err := schemaVersion(m)
	if err != nil {
		return MigrationResult{From: from}, err
	}
	return MigrationResult{From: from, To: to, Dirty: dirty}, nil
}

// LatestVersion はバイナリに埋め込まれた最新の移行バージョンを返す。
func LatestVersion() (uint, error) {
	src, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return 0, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	defer src.Close()

	v, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("no embedded migrations: %w", err)
	}
	for {
		next, err := src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read migration after version %d: %w", v, err)
		}
		v = next
	}
}

func schemaVersion(m *migrate.Migrate) (uint, bool, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, dirty, nil
}

func closeMigrator(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		slog.Warn("failed to close migrator", slog.String("error", err.Error()))
	}
}

// migrateLogger はmigrate.Loggerをslogへ橋渡しする。
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...any) {
	slog.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "migrate"))
}

func (migrateLogger) Verbose() bool { return false }
