// Package contracts 提供合约执行引擎的配置
package contracts

import "time"

// EngineOptions 引擎配置选项
type EngineOptions struct {
	// === 执行预算 ===
	TriggerDeadline   time.Duration `json:"trigger_deadline"`   // 触发器执行截止时间
	ConditionDeadline time.Duration `json:"condition_deadline"` // 条件校验截止时间
	FunctionBudget    time.Duration `json:"function_budget"`    // 公共函数墙钟预算

	// === 执行缓存 ===
	CacheTTL     time.Duration `json:"cache_ttl"`      // 缓存条目存活时间
	CacheMaxSize int           `json:"cache_max_size"` // 最大缓存条目数

	// === 状态约束 ===
	StateSizeLimit int `json:"state_size_limit"` // 序列化状态大小上限（字节）

	// === 沙箱约束 ===
	ModuleMemoryLimitBytes int64 `json:"module_memory_limit_bytes"` // WASM模块内存上限
}

// Config 引擎配置实现
type Config struct {
	options *EngineOptions
}

// New 创建引擎配置实现
//
// 先构造完整默认配置，再用用户配置（如有）覆盖。
func New(userConfig *EngineOptions) *Config {
	options := createDefaultEngineOptions()

	if userConfig != nil {
		applyUserEngineConfig(options, userConfig)
	}

	return &Config{options: options}
}

// Options 返回配置选项
func (c *Config) Options() *EngineOptions {
	return c.options
}

// TriggerDeadline 触发器执行截止时间
func (c *Config) TriggerDeadline() time.Duration { return c.options.TriggerDeadline }

// ConditionDeadline 条件校验截止时间
func (c *Config) ConditionDeadline() time.Duration { return c.options.ConditionDeadline }

// FunctionBudget 公共函数墙钟预算
func (c *Config) FunctionBudget() time.Duration { return c.options.FunctionBudget }

// CacheTTL 缓存条目存活时间
func (c *Config) CacheTTL() time.Duration { return c.options.CacheTTL }

// CacheMaxSize 最大缓存条目数
func (c *Config) CacheMaxSize() int { return c.options.CacheMaxSize }

// StateSizeLimit 序列化状态大小上限
func (c *Config) StateSizeLimit() int { return c.options.StateSizeLimit }

// ModuleMemoryLimitBytes WASM模块内存上限
func (c *Config) ModuleMemoryLimitBytes() int64 { return c.options.ModuleMemoryLimitBytes }

// createDefaultEngineOptions 创建默认引擎配置
func createDefaultEngineOptions() *EngineOptions {
	return &EngineOptions{
		TriggerDeadline:        defaultTriggerDeadline,
		ConditionDeadline:      defaultConditionDeadline,
		FunctionBudget:         defaultFunctionBudget,
		CacheTTL:               defaultCacheTTL,
		CacheMaxSize:           defaultCacheMaxSize,
		StateSizeLimit:         defaultStateSizeLimit,
		ModuleMemoryLimitBytes: defaultModuleMemoryLimitBytes,
	}
}

// applyUserEngineConfig 应用用户配置覆盖默认值（零值不覆盖）
func applyUserEngineConfig(options *EngineOptions, user *EngineOptions) {
	if user.TriggerDeadline > 0 {
		options.TriggerDeadline = user.TriggerDeadline
	}
	if user.ConditionDeadline > 0 {
		options.ConditionDeadline = user.ConditionDeadline
	}
	if user.FunctionBudget > 0 {
		options.FunctionBudget = user.FunctionBudget
	}
	if user.CacheTTL > 0 {
		options.CacheTTL = user.CacheTTL
	}
	if user.CacheMaxSize > 0 {
		options.CacheMaxSize = user.CacheMaxSize
	}
	if user.StateSizeLimit > 0 {
		options.StateSizeLimit = user.StateSizeLimit
	}
	if user.ModuleMemoryLimitBytes > 0 {
		options.ModuleMemoryLimitBytes = user.ModuleMemoryLimitBytes
	}
}
