// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// APIサーバーと同期クライアントの双方から利用する。
type MetricsCollector interface {
	RecordProfileRead()
	RecordTimezoneUpdate()
	RecordHTTPStatus(statusCode int)
	RecordSyncOutcome(outcome string)
	RecordSyncLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	profileReads    prometheus.Counter
	timezoneUpdates prometheus.Counter
	httpStatus      *prometheus.CounterVec
	syncOutcomes    *prometheus.CounterVec
	syncLatency     prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		profileReads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "productivitygo_profile_reads_total",
			Help: "プロフィール取得の合計数",
		}),
		timezoneUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "productivitygo_timezone_updates_total",
			Help: "プロフィールのタイムゾーン更新の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "productivitygo_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		syncOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "productivitygo_timezone_sync_total",
			Help: "タイムゾーン自動同期の結果別の回数",
		}, []string{"outcome"}),
		syncLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "productivitygo_timezone_sync_duration_seconds",
			Help:    "タイムゾーン自動同期1回あたりの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.profileReads,
		c.timezoneUpdates,
		c.httpStatus,
		c.syncOutcomes,
		c.syncLatency,
	)

	return c
}

// RecordProfileRead はプロフィール取得を記録する。
func (c *Collector) RecordProfileRead() {
	c.profileReads.Inc()
}

// RecordTimezoneUpdate はタイムゾーン更新を記録する。
func (c *Collector) RecordTimezoneUpdate() {
	c.timezoneUpdates.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSyncOutcome は同期結果を記録する。
func (c *Collector) RecordSyncOutcome(outcome string) {
	c.syncOutcomes.WithLabelValues(outcome).Inc()
}

// RecordSyncLatency は同期1回の所要時間を記録する。
func (c *Collector) RecordSyncLatency(duration time.Duration) {
	c.syncLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
