// Package cache 提供执行缓存功能
//
// 🎯 **核心职责**：
// 保证同一逻辑调用（同一合约、同一触发身份、同一调用方、同一解析时间、
// 同一输入摘要）在验证窗口内至多一次存活执行：
// - 首个调用方成为执行拥有者，在截止时间内运行计算
// - 并发到达的相同调用不重复执行，阻塞等待拥有者的结局
// - 拥有者超时则条目被丢弃，所有等待方收到 execution_timeout
//
// ⚠️ **核心约束**：
// - 条目存活时间固定（默认60秒），过期由后台协程清理
// - 不同时间/不同输入的调用天然产生不同键，无需主动失效
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/weisyn/contracts/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/contracts/pkg/types"
)

// entry 缓存条目
//
// done 关闭时 outcome 已就绪；等待方只读 outcome，绝不修改。
type entry struct {
	done      chan struct{}
	outcome   *types.Outcome
	expiresAt time.Time
}

// ExecutionCache 执行缓存
type ExecutionCache struct {
	mu      sync.Mutex
	entries map[string]*entry

	ttl     time.Duration
	maxSize int

	logger log.Logger

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// New 创建执行缓存并启动后台清理协程
//
// 📋 **参数**：
//   - ttl: 条目存活时间
//   - maxSize: 最大条目数（容量耗尽时先驱逐最旧的已完结条目，
//     仅当全部条目都在执行中时才降级为不缓存的直接执行）
//   - logger: 日志记录器
func New(ttl time.Duration, maxSize int, logger log.Logger) *ExecutionCache {
	c := &ExecutionCache{
		entries:     make(map[string]*entry),
		ttl:         ttl,
		maxSize:     maxSize,
		logger:      logger,
		stopCleanup: make(chan struct{}),
	}

	go c.cleanupLoop()

	return c
}

// Execute 以单航执行语义运行计算
//
// 🎯 **核心职责**：
//   - 命中未过期条目：等待（或立即取得）已有结局，绝不重复执行
//   - 未命中：成为拥有者，在 deadline 内运行 compute，结局对所有等待方可见
//
// ⚠️ **核心约束**：
//   - 拥有者超出 deadline 时条目被丢弃，拥有者与等待方都收到 execution_timeout
//   - 等待方自身的 ctx 被取消时同样降级为 execution_timeout，绝不悬挂
func (c *ExecutionCache) Execute(ctx context.Context, key Key, deadline time.Duration, compute func(ctx context.Context) *types.Outcome) *types.Outcome {
	hash := key.Hash()

	c.mu.Lock()
	if e, ok := c.entries[hash]; ok && time.Now().Before(e.expiresAt) {
		c.mu.Unlock()
		cacheHitTotal.Inc()
		return c.await(ctx, e)
	}

	// 未命中：容量耗尽时先清过期、再驱逐最旧的已完结条目，
	// 保住执行中条目的单航去重职责
	if len(c.entries) >= c.maxSize {
		c.evictExpiredLocked()
		if len(c.entries) >= c.maxSize {
			c.evictOldestResolvedLocked()
		}
		if len(c.entries) >= c.maxSize {
			c.mu.Unlock()
			cacheBypassTotal.Inc()
			c.logger.Warnf("执行缓存容量耗尽且全部条目执行中，降级为直接执行: key=%s", hash[:16])
			return c.ExecuteUncached(ctx, deadline, compute)
		}
	}

	e := &entry{
		done: make(chan struct{}),
		// 先给占位过期时间，结局就绪后再按 TTL 重置
		expiresAt: time.Now().Add(deadline + c.ttl),
	}
	c.entries[hash] = e
	c.mu.Unlock()
	cacheMissTotal.Inc()

	outcome := c.ExecuteUncached(ctx, deadline, compute)

	c.mu.Lock()
	if outcome.OK() || outcome.Failure.Kind != types.FailureExecutionTimeout {
		e.outcome = outcome
		e.expiresAt = time.Now().Add(c.ttl)
	} else {
		// 超时结局不缓存：丢弃条目，等待方统一收到 execution_timeout
		e.outcome = outcome
		delete(c.entries, hash)
		cacheTimeoutTotal.Inc()
	}
	cacheSizeGauge.Set(float64(len(c.entries)))
	c.mu.Unlock()

	close(e.done)
	return outcome
}

// ExecuteUncached 在截止时间内运行计算，不经过缓存
//
// 单次模拟路径（SkipCache）直接走这里，绝不污染共享缓存。
func (c *ExecutionCache) ExecuteUncached(ctx context.Context, deadline time.Duration, compute func(ctx context.Context) *types.Outcome) *types.Outcome {
	execCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	resultCh := make(chan *types.Outcome, 1)
	go func() {
		resultCh <- compute(execCtx)
	}()

	select {
	case outcome := <-resultCh:
		if outcome == nil {
			// 计算函数的契约违规，收敛为内部故障而非panic
			return types.OutcomeFromFailure(types.NewFailure(types.FailureExecutionRaise, "execution produced no outcome"))
		}
		return outcome
	case <-execCtx.Done():
		// 后端由被取消的 ctx 强制终止，这里不再等待其返回
		return types.OutcomeFromFailure(types.NewFailure(
			types.FailureExecutionTimeout,
			fmt.Sprintf("execution exceeded deadline of %s", deadline),
		))
	}
}

// await 等待拥有者的结局
func (c *ExecutionCache) await(ctx context.Context, e *entry) *types.Outcome {
	select {
	case <-e.done:
		return e.outcome
	case <-ctx.Done():
		return types.OutcomeFromFailure(types.NewFailure(
			types.FailureExecutionTimeout,
			"cancelled while waiting for in-flight execution",
		))
	}
}

// Len 返回当前缓存条目数
func (c *ExecutionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close 停止后台清理协程
func (c *ExecutionCache) Close() {
	c.stopOnce.Do(func() {
		close(c.stopCleanup)
	})
}

// cleanupLoop 后台清理循环
func (c *ExecutionCache) cleanupLoop() {
	interval := c.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.evictExpiredLocked()
			cacheSizeGauge.Set(float64(len(c.entries)))
			c.mu.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

// evictOldestResolvedLocked 驱逐过期时间最早的已完结条目（调用方必须持有锁）
//
// 执行中的条目承载去重职责，不参与驱逐。
func (c *ExecutionCache) evictOldestResolvedLocked() {
	var oldestHash string
	var oldest time.Time
	for hash, e := range c.entries {
		select {
		case <-e.done:
		default:
			continue
		}
		if oldestHash == "" || e.expiresAt.Before(oldest) {
			oldestHash = hash
			oldest = e.expiresAt
		}
	}
	if oldestHash != "" {
		delete(c.entries, oldestHash)
		cacheEvictionTotal.Inc()
	}
}

// evictExpiredLocked 清除所有过期条目（调用方必须持有锁）
//
// 执行中的条目（done 未关闭）不会被清除：其占位过期时间覆盖了截止时间。
func (c *ExecutionCache) evictExpiredLocked() {
	now := time.Now()
	for hash, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, hash)
			cacheEvictionTotal.Inc()
		}
	}
}
