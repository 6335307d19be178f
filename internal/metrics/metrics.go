// Package metrics 抓取与校验的 Prometheus 指标，默认注册到全局 registry，由 /metrics 暴露。
package metrics

import (
	"time"

	"SportsNations/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestAttempts 每次抓取尝试按最终状态计数
	IngestAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sportsnations",
			Name:      "ingest_attempts_total",
			Help:      "Ingestion attempts by connector and final status",
		},
		[]string{"connector", "status"},
	)

	// UpsertedRows 写入行数，op 为 inserted/updated
	UpsertedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sportsnations",
			Name:      "upserted_rows_total",
			Help:      "Rows written by the upsert engine",
		},
		[]string{"connector", "table", "op"},
	)

	// FetchDuration fetch 阶段耗时（秒）
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sportsnations",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of the fetch stage",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"connector", "origin"},
	)

	// HTTPResponses connector 发出的 HTTP 请求按状态码计数
	HTTPResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sportsnations",
			Name:      "http_responses_total",
			Help:      "Upstream HTTP responses by connector and status code",
		},
		[]string{"connector", "code"},
	)

	// ValidationViolations 最近一次校验各检查项的违规行数
	ValidationViolations = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sportsnations",
			Name:      "validation_violations",
			Help:      "Violations found by the last validation run, per check",
		},
		[]string{"check"},
	)

	// ValidationPassed 最近一次校验是否通过（1/0）
	ValidationPassed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sportsnations",
		Name:      "validation_passed",
		Help:      "1 when the last validation run passed",
	})
)

// RecordIngest 记录一次抓取尝试的结果
func RecordIngest(connector string, status model.ImportStatus) {
	IngestAttempts.WithLabelValues(connector, string(status)).Inc()
}

// RecordFetch 记录 fetch 耗时；失败时 origin 为空
func RecordFetch(connector string, origin model.FetchOrigin, d time.Duration) {
	o := string(origin)
	if o == "" {
		o = "none"
	}
	FetchDuration.WithLabelValues(connector, o).Observe(d.Seconds())
}

// RecordHTTPResponse code 为状态码或 transport_error
func RecordHTTPResponse(connector, code string) {
	HTTPResponses.WithLabelValues(connector, code).Inc()
}

// RecordUpsert 按表累加写入行数
func RecordUpsert(connector string, report *model.UpsertReport) {
	if report == nil {
		return
	}
	for table, c := range report.Tables {
		if c.Inserted > 0 {
			UpsertedRows.WithLabelValues(connector, table, "inserted").Add(float64(c.Inserted))
		}
		if c.Updated > 0 {
			UpsertedRows.WithLabelValues(connector, table, "updated").Add(float64(c.Updated))
		}
		if c.Deleted > 0 {
			UpsertedRows.WithLabelValues(connector, table, "deleted").Add(float64(c.Deleted))
		}
	}
}

// RecordValidation 覆盖最近一次校验的结果
func RecordValidation(passed bool, violationsByCheck map[string]int) {
	if passed {
		ValidationPassed.Set(1)
	} else {
		ValidationPassed.Set(0)
	}
	for check, n := range violationsByCheck {
		ValidationViolations.WithLabelValues(check).Set(float64(n))
	}
}
