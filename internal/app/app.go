// Package app はコマンドの解析と依存関係のワイヤリングを行い、各起動モードを実行する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/eventorg/internal/backend"
	"github.com/hitoshi/eventorg/internal/config"
	"github.com/hitoshi/eventorg/internal/database"
	"github.com/hitoshi/eventorg/internal/handler"
	"github.com/hitoshi/eventorg/internal/logger"
	"github.com/hitoshi/eventorg/internal/metrics"
	"github.com/hitoshi/eventorg/internal/middleware"
	"github.com/hitoshi/eventorg/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
// smokeはHTTPクライアントのみで動くため、サーバー用の必須設定を要求しない。
func Init(w io.Writer, cmd Command) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	load := config.Load
	if cmd == CommandSmoke {
		load = config.LoadClient
	}
	cfg, err := load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. ログレベルを反映する
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		slog.Warn("invalid LOG_LEVEL, keeping info",
			slog.String("log_level", cfg.LogLevel),
			slog.String("error", err.Error()),
		)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w, cmd)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("backend", cfg.Backend),
		slog.String("port", cfg.ServerPort),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSmoke:
		return runSmoke(ctx, cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// ストレージを開き、全依存関係をワイヤリングし、HTTPサーバーとセッションクリーンアップを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. ストレージ
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mc := metrics.NewCollector(reg)

	// 3. バックエンドサービス
	accounts := backend.NewAccounts(store.accounts, store.sessions, backend.AccountsConfig{
		TokenSecret: []byte(cfg.TokenSecret),
		TokenTTL:    cfg.TokenTTL,
	}, mc)
	documents := backend.NewDocuments(store.documents, mc)

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Accounts:          accounts,
		Documents:         documents,
		Verifier:          accounts,
		HealthChecker:     store.health,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		Metrics:           mc,
		Gatherer:          reg,
	})

	// 5. 期限切れセッションのクリーンアップ
	cleanupJob := cleanup.NewCleanupJob(store.sessions, slog.Default(), mc)
	go cleanupJob.Start(ctx, cfg.SessionCleanupInterval)

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// PostgreSQLは未適用マイグレーションを順番に適用し、SQLiteはスキーマを冪等に適用する。
func runMigrate(cfg *config.Config) error {
	switch cfg.Backend {
	case config.BackendPostgres:
		slog.Info("running database migrations",
			slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		)
		res, err := database.RunMigrations(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		if res.Dirty {
			return fmt.Errorf("migration left schema version %d dirty", res.To)
		}
		latest, err := database.LatestVersion()
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("schema version",
			slog.Uint64("from", uint64(res.From)),
			slog.Uint64("to", uint64(res.To)),
			slog.Uint64("latest", uint64(latest)),
			slog.Bool("applied", res.Applied()),
		)
	case config.BackendSQLite:
		db, err := database.OpenSQLite(context.Background(), cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		db.Close()
	default:
		slog.Info("nothing to migrate for the in-memory backend")
		return nil
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
