// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 操作結果のラベル値。
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// バックエンドのサービス層とHTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordDocumentOp(collection, op, result string)
	RecordAuthAttempt(kind, result string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordSessionsExpired(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	documentOps     *prometheus.CounterVec
	authAttempts    *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
	sessionsExpired prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		documentOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventorg_document_operations_total",
			Help: "コレクション・操作・結果別のドキュメント操作数",
		}, []string{"collection", "op", "result"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventorg_auth_attempts_total",
			Help: "種別・結果別の認証試行数",
		}, []string{"kind", "result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventorg_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eventorg_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventorg_sessions_expired_total",
			Help: "期限切れで削除されたセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.documentOps,
		c.authAttempts,
		c.httpStatus,
		c.requestLatency,
		c.sessionsExpired,
	)

	return c
}

// RecordDocumentOp はドキュメント操作を記録する。
func (c *Collector) RecordDocumentOp(collection, op, result string) {
	c.documentOps.WithLabelValues(collection, op, result).Inc()
}

// RecordAuthAttempt は認証試行（register / sign_in / verify）を記録する。
func (c *Collector) RecordAuthAttempt(kind, result string) {
	c.authAttempts.WithLabelValues(kind, result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordSessionsExpired は削除した期限切れセッション数を記録する。
func (c *Collector) RecordSessionsExpired(count int64) {
	c.sessionsExpired.Add(float64(count))
}

// Result はエラー有無を結果ラベルに変換する。
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
