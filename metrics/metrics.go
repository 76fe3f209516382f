package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// 单次运行的指标，运行结束时按需写入textfile（node_exporter textfile collector格式）
var (
	Registry = prometheus.NewRegistry()

	EERequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forestloss_ee_requests_total",
		Help: "Total Earth Engine REST requests",
	}, []string{"method"})
	EEFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forestloss_ee_fail_total",
		Help: "Total failed Earth Engine REST requests",
	}, []string{"method"})
	EEDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "forestloss_ee_request_duration_ms",
		Help:    "Earth Engine request duration in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
	}, []string{"method"})
	RegionsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forestloss_regions_processed_total",
		Help: "Total regions analyzed",
	}, []string{"dataset"})
	RegionsAnnotatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forestloss_regions_annotated_total",
		Help: "Total regions whose loss percentage exceeded the threshold",
	}, []string{"dataset"})
)

func init() {
	Registry.MustRegister(
		EERequestsTotal,
		EEFailTotal,
		EEDurationMs,
		RegionsProcessedTotal,
		RegionsAnnotatedTotal,
	)
}

// 将当前指标写入文件，path为空时跳过
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, Registry)
}
