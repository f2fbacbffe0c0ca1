package contracts

import "time"

// 引擎配置默认值
const (
	// defaultTriggerDeadline 触发器执行截止时间默认15秒
	// 原因：触发器可能构建交易并做多次账本查询，预算比条件更宽
	// 多个节点在同一验证窗口内独立重放同一调用，超时必须远小于窗口
	defaultTriggerDeadline = 15 * time.Second

	// defaultConditionDeadline 条件校验截止时间默认5秒
	// 原因：条件是纯谓词，正常实现远快于5秒；更长的预算只会放大拒绝服务面
	defaultConditionDeadline = 5 * time.Second

	// defaultFunctionBudget 公共函数墙钟预算默认500毫秒
	// 原因：公共函数服务于交互式查询路径，必须保持亚秒级响应
	// 超时后工作单元被强制终止，调用方收到 function_timeout
	defaultFunctionBudget = 500 * time.Millisecond

	// defaultCacheTTL 执行缓存条目存活时间默认60秒
	// 原因：覆盖一个验证窗口内所有节点对同一逻辑调用的重放
	// 陈旧性由键中嵌入的调用方地址/时间戳/输入摘要防止，无需主动失效
	defaultCacheTTL = 60 * time.Second

	// defaultCacheMaxSize 最大缓存条目数默认1000
	// 原因：每个条目只保留结局（状态+日志），1000条覆盖高峰验证并发
	defaultCacheMaxSize = 1000

	// defaultStateSizeLimit 序列化状态大小上限默认3MiB
	// 原因：状态随每笔链交易复制，上限防止单个合约膨胀拖垮链复制
	// 恰好等于上限的状态通过，超出一个字节即转换为 state_exceed_threshold
	defaultStateSizeLimit = 3 * 1024 * 1024

	// defaultModuleMemoryLimitBytes WASM模块内存上限默认64MB
	// 原因：限制不可信字节码的内存占用，与沙箱的拒绝默认策略配套
	defaultModuleMemoryLimitBytes = 64 * 1024 * 1024
)
