// Package cache 提供执行缓存相关的监控指标
package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ============================================================================
//                          Prometheus 监控指标
// ============================================================================

var (
	// cacheHitTotal 缓存命中总数（含等待在途执行的调用）
	cacheHitTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wes",
		Subsystem: "contracts_cache",
		Name:      "hit_total",
		Help:      "Total number of execution cache hits (including in-flight waits)",
	})

	// cacheMissTotal 缓存未命中总数
	cacheMissTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wes",
		Subsystem: "contracts_cache",
		Name:      "miss_total",
		Help:      "Total number of execution cache misses",
	})

	// cacheTimeoutTotal 拥有者超时导致条目被丢弃的总数
	cacheTimeoutTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wes",
		Subsystem: "contracts_cache",
		Name:      "timeout_total",
		Help:      "Total number of cached executions discarded due to deadline breach",
	})

	// cacheEvictionTotal 过期清理的条目总数
	cacheEvictionTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wes",
		Subsystem: "contracts_cache",
		Name:      "eviction_total",
		Help:      "Total number of expired cache entries evicted",
	})

	// cacheBypassTotal 容量耗尽降级为直接执行的总数
	cacheBypassTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wes",
		Subsystem: "contracts_cache",
		Name:      "bypass_total",
		Help:      "Total number of executions bypassing the cache due to capacity",
	})

	// cacheSizeGauge 当前缓存条目数
	cacheSizeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "wes",
		Subsystem: "contracts_cache",
		Name:      "size",
		Help:      "Current number of execution cache entries",
	})
)

func init() {
	prometheus.MustRegister(
		cacheHitTotal,
		cacheMissTotal,
		cacheTimeoutTotal,
		cacheEvictionTotal,
		cacheBypassTotal,
		cacheSizeGauge,
	)
}
