package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/eventorg/internal/config"
	"github.com/hitoshi/eventorg/internal/database"
	"github.com/hitoshi/eventorg/internal/handler"
	"github.com/hitoshi/eventorg/internal/repository"
)

// storage は選択したバックエンドのリポジトリ一式。
type storage struct {
	documents repository.DocumentRepository
	accounts  repository.AccountRepository
	sessions  repository.SessionRepository
	health    handler.HealthChecker
	close     func() error
}

// openStorage は設定に従ってリポジトリを構築する。
func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxIdleTime: 5 * time.Minute,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established", slog.String("backend", cfg.Backend))
		return &storage{
			documents: repository.NewPostgresDocumentRepo(db),
			accounts:  repository.NewPostgresAccountRepo(db),
			sessions:  repository.NewPostgresSessionRepo(db),
			health:    db,
			close:     db.Close,
		}, nil

	case config.BackendSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		slog.Info("database connection established",
			slog.String("backend", cfg.Backend),
			slog.String("path", cfg.SQLitePath),
		)
		return sqliteStorage(db), nil

	default:
		slog.Warn("using in-memory backend; data is lost on restart")
		return &storage{
			documents: repository.NewMemoryDocumentRepo(),
			accounts:  repository.NewMemoryAccountRepo(),
			sessions:  repository.NewMemorySessionRepo(),
			close:     func() error { return nil },
		}, nil
	}
}

func sqliteStorage(db *sql.DB) *storage {
	return &storage{
		documents: repository.NewSQLiteDocumentRepo(db),
		accounts:  repository.NewSQLiteAccountRepo(db),
		sessions:  repository.NewSQLiteSessionRepo(db),
		health:    db,
		close:     db.Close,
	}
}
