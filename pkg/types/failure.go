// Package types 提供合约执行核心的公共类型定义
package types

import "fmt"

// FailureKind 执行失败种类（封闭枚举）
//
// 🎯 **设计目标**：
//   - 引擎对外的唯一错误分类，上游的费用/重试逻辑依赖机器可判定的种类
//   - 枚举封闭：任何后端内部故障都必须收敛到这些种类之一，绝不向上抛出未分类错误
type FailureKind string

const (
	// FailureMissingCondition 合约未声明被触发的条件（非 inherit 条件缺失为硬失败）
	FailureMissingCondition FailureKind = "missing_condition"

	// FailureTriggerNotExists 合约未声明被调用的触发器
	FailureTriggerNotExists FailureKind = "trigger_not_exists"

	// FailureFunctionDoesNotExist 公共函数表中不存在 (名称, 参数数量)
	FailureFunctionDoesNotExist FailureKind = "function_does_not_exist"

	// FailureFunctionIsPrivate 函数存在但为私有，外部不可调用
	FailureFunctionIsPrivate FailureKind = "function_is_private"

	// FailureFunctionTimeout 公共函数调用超出墙钟预算
	FailureFunctionTimeout FailureKind = "function_timeout"

	// FailureExecutionTimeout 触发器/条件执行超出截止时间
	FailureExecutionTimeout FailureKind = "execution_timeout"

	// FailureExecutionRaise 后端内部故障（非用户主动抛出）
	FailureExecutionRaise FailureKind = "execution_raise"

	// FailureContractThrow 用户代码主动抛出的结构化错误（保留 code/message/data）
	FailureContractThrow FailureKind = "contract_throw"

	// FailureInvalidFunctionCall 函数参数不是映射或不符合声明的参数模式
	FailureInvalidFunctionCall FailureKind = "invalid_function_call"

	// FailureInvalidTriggerOutput 后端既未返回交易也未返回状态（后端契约违规）
	FailureInvalidTriggerOutput FailureKind = "invalid_trigger_output"

	// FailureStateExceedThreshold 产出状态超过大小上限
	FailureStateExceedThreshold FailureKind = "state_exceed_threshold"

	// FailureUpgradeNotSupported 合约未声明升级策略
	FailureUpgradeNotSupported FailureKind = "upgrade_not_supported"

	// FailureUpgradeNotAuthorized 调用者根链地址与升级策略声明的来源链不符
	FailureUpgradeNotAuthorized FailureKind = "upgrade_not_authorized"

	// FailureInvalidUpgradeParams 升级参数缺失或格式无效
	FailureInvalidUpgradeParams FailureKind = "invalid_upgrade_params"

	// FailureInvalidExecution 包装来自流水线其他环节的条件拒绝裁定
	FailureInvalidExecution FailureKind = "invalid_execution"
)

// Failure 执行失败记录
//
// 🎯 **核心职责**：离开引擎的唯一错误表示
//
// 📋 **字段说明**：
//   - Kind: 封闭枚举的失败种类（机器可判定）
//   - Message: 面向用户的错误消息
//   - Data: 可选的结构化负载（如 contract_throw 携带的 data）
//   - Logs: 失败前后端已产生的日志
//   - Stacktrace: 后端故障时捕获的调用栈
type Failure struct {
	Kind       FailureKind `json:"kind"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Logs       []string    `json:"logs,omitempty"`
	Stacktrace string      `json:"stacktrace,omitempty"`
}

// Error 实现error接口，便于内部管道传递
func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// NewFailure 创建失败记录
func NewFailure(kind FailureKind, message string) *Failure {
	return &Failure{Kind: kind, Message: message}
}

// WithLogs 附加后端日志
func (f *Failure) WithLogs(logs []string) *Failure {
	f.Logs = logs
	return f
}

// WithData 附加结构化负载
func (f *Failure) WithData(data interface{}) *Failure {
	f.Data = data
	return f
}

// WithStacktrace 附加调用栈
func (f *Failure) WithStacktrace(trace string) *Failure {
	f.Stacktrace = trace
	return f
}
