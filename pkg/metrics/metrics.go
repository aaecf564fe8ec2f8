// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する。
// nilのCollectorに対するメソッド呼び出しは何もしない。
type Collector struct {
	tokenVerifications *prometheus.CounterVec
	authOperations     *prometheus.CounterVec
	uploads            *prometheus.CounterVec
	upstreamRequests   *prometheus.CounterVec
	rateLimitRejected  prometheus.Counter
	requestDuration    *prometheus.HistogramVec
	gatherer           prometheus.Gatherer
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg *prometheus.Registry) *Collector {
	c := &Collector{
		tokenVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uploadmesh_token_verifications_total",
			Help: "トークン検証の結果別件数",
		}, []string{"result"}),
		authOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uploadmesh_auth_operations_total",
			Help: "認証操作（register/login）の結果別件数",
		}, []string{"operation", "result"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uploadmesh_uploads_total",
			Help: "アップロード要求の結果別件数",
		}, []string{"result"}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uploadmesh_upstream_requests_total",
			Help: "上流サービスへのリクエストのステータスコード別件数",
		}, []string{"upstream", "status_code"}),
		rateLimitRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uploadmesh_ratelimit_rejected_total",
			Help: "レート制限で拒否されたリクエスト数",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "uploadmesh_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		gatherer: reg,
	}

	reg.MustRegister(
		c.tokenVerifications,
		c.authOperations,
		c.uploads,
		c.upstreamRequests,
		c.rateLimitRejected,
		c.requestDuration,
	)
	return c
}

// RecordTokenVerification はトークン検証の結果を記録する。
// resultは "ok" または検証失敗の種類。
func (c *Collector) RecordTokenVerification(result string) {
	if c == nil {
		return
	}
	c.tokenVerifications.WithLabelValues(result).Inc()
}

// RecordAuthOperation は認証操作の結果を記録する。
func (c *Collector) RecordAuthOperation(operation, result string) {
	if c == nil {
		return
	}
	c.authOperations.WithLabelValues(operation, result).Inc()
}

// RecordUpload はアップロード要求の結果を記録する。
func (c *Collector) RecordUpload(result string) {
	if c == nil {
		return
	}
	c.uploads.WithLabelValues(result).Inc()
}

// RecordUpstream は上流サービスからのレスポンスステータスを記録する。
// 通信自体に失敗した場合はstatusCodeに0を渡す。
func (c *Collector) RecordUpstream(upstream string, statusCode int) {
	if c == nil {
		return
	}
	c.upstreamRequests.WithLabelValues(upstream, strconv.Itoa(statusCode)).Inc()
}

// RecordRateLimitRejected はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimitRejected() {
	if c == nil {
		return
	}
	c.rateLimitRejected.Inc()
}

// RecordRequest はHTTPリクエストの処理時間を記録する。
func (c *Collector) RecordRequest(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler はメトリクスを公開するHTTPハンドラを返す。
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
