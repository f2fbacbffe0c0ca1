// Package contracts 提供合约执行相关的监控指标
package contracts

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ============================================================================
//                          Prometheus 监控指标
// ============================================================================

var (
	// executionTotal 执行总数（按调用种类与结局分类）
	executionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wes",
			Subsystem: "contracts",
			Name:      "execution_total",
			Help:      "Total number of contract executions by call kind and result",
		},
		[]string{"kind", "result"}, // kind: trigger/condition/function; result: ok或失败种类
	)

	// executionDuration 执行耗时（按调用种类分类）
	executionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wes",
			Subsystem: "contracts",
			Name:      "execution_duration_seconds",
			Help:      "Duration of contract executions in seconds by call kind",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms ~ 16s
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		executionTotal,
		executionDuration,
	)
}
