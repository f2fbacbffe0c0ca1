// Package contracts 提供合约执行核心的公共接口定义
//
// 🎯 **核心职责**：
// - 定义引擎对上（验证流水线、调用验证RPC处理器）暴露的统一执行接口
// - 定义引擎对下消费的协作方接口（解释型求值器、沙箱模块执行器、
//   余额账本、链解析器、根密钥加密）
//
// 🏗️ **设计原则**：
// - 公共接口优先：先定义对外能力，再扩展内部方法
// - 接口分层：公共接口 → 内部实现
// - 引擎在调用之间不保留任何合约实例——规范的长生命周期实例由注册表服务持有
package contracts

import (
	"context"
	"time"

	"github.com/weisyn/contracts/pkg/types"
)

// ExecOptions 单次执行选项
//
// 📋 **字段说明**：
//   - Time: 显式覆盖"当前时间"（在验证时间尚不存在时必须提供，如预验证阶段）
//   - SkipCache: 跳过执行缓存（单次模拟路径，绝不污染共享缓存）
//   - Deadline: 覆盖默认截止时间（0=使用配置默认值）
type ExecOptions struct {
	Time      time.Time
	SkipCache bool
	Deadline  time.Duration
}

// TriggerRequest 触发器执行请求
type TriggerRequest struct {
	Trigger   types.TriggerID
	Contract  *types.Contract
	// IncomingTx 触发交易（transaction/oracle 触发时提供）
	IncomingTx *types.Transaction
	// Recipient 本次调用命中的接收方条目（携带动作与参数）
	Recipient *types.Recipient
	Inputs    []*types.UnspentOutput
	Opts      ExecOptions
}

// ConditionRequest 条件执行请求
type ConditionRequest struct {
	Condition      types.ConditionID
	Contract       *types.Contract
	IncomingTx     *types.Transaction
	Recipient      *types.Recipient
	ValidationTime time.Time
	Inputs         []*types.UnspentOutput
	Opts           ExecOptions
}

// FunctionRequest 公共函数调用请求
type FunctionRequest struct {
	Contract *types.Contract
	Function string
	Args     []interface{}
	Inputs   []*types.UnspentOutput
}

// Engine 合约执行引擎公共接口
//
// 🎯 **核心职责**：
// 在两种互不兼容的合约后端（解释型领域语言 / 沙箱WASM模块）之上
// 呈现一个确定性的统一契约：
// - 同一逻辑调用至多一次存活执行（执行缓存）
// - 显式执行预算（截止时间），超时降级为类型化失败，绝不悬挂
// - 所有后端结局收敛为封闭的失败分类或规范链效果
//
// ⚠️ **核心约束**：
// - 任何方法都不得让后端内部故障未经捕获地向上传播
// - 取消绝不破坏已提交链状态：状态仅在调用方收到成功结局后由外部换入
type Engine interface {
	// ExecuteTrigger 执行触发器，返回链效果或失败
	ExecuteTrigger(ctx context.Context, req *TriggerRequest) *types.Outcome

	// ExecuteCondition 校验条件
	//
	// 返回：
	//   - *types.Verdict: 裁定（Valid=false 时 Subject 指出未通过主题）
	//   - *types.Failure: 执行失败（与裁定互斥）
	ExecuteCondition(ctx context.Context, req *ConditionRequest) (*types.Verdict, *types.Failure)

	// ExecuteFunction 只读公共函数调用（时间受限、故障隔离）
	ExecuteFunction(ctx context.Context, req *FunctionRequest) (*types.FunctionValue, *types.Failure)

	// SignNextTransaction 用合约链自身的密钥材料联署下一笔交易
	//
	// 种子解封/密钥派生失败以错误返回，绝不panic。
	SignNextTransaction(ctx context.Context, contract *types.Contract, next *types.Transaction, index uint32) (*types.Transaction, error)

	// ContainsTrigger 合约是否声明了该触发器
	ContainsTrigger(contract *types.Contract, trigger types.TriggerID) bool

	// FromTransaction 从定义交易解析合约实例（不做深度校验）
	FromTransaction(tx *types.Transaction) (*types.Contract, error)

	// ValidateAndParseTransaction 解析合约负载并校验其良构性
	ValidateAndParseTransaction(tx *types.Transaction) (*types.Contract, error)
}
