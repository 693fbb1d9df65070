package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// healthTimeout はデータストア疎通確認のタイムアウト。
const healthTimeout = 3 * time.Second

// HealthChecker はデータストアの疎通確認のインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// healthResponse は/healthのレスポンスボディ。
type healthResponse struct {
	Status string `json:"status"`
}

// NewHealthHandler は/healthのハンドラーを返す。
// checkerがnil（インメモリバックエンド）の場合は常に200を返す。
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}
