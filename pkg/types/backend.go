package types

import (
	"fmt"
	"time"
)

// ============================================================================
// 后端交换类型：引擎与两种合约运行时之间传递的原始结构
// ============================================================================

// Constants 解释型求值器的常量集
//
// 每次调用组装一份，包含合约视图、可选的触发交易视图、命名动作参数、
// 当前时间、当前状态与种子引用。
type Constants struct {
	Contract     *Contract              `json:"contract"`
	Transaction  *Transaction           `json:"transaction,omitempty"`   // 触发交易（可选）
	NextContract *Contract              `json:"next_contract,omitempty"` // inherit 条件的投影后继视图
	Args         map[string]interface{} `json:"args,omitempty"`          // 命名动作参数
	Now          time.Time              `json:"now"`
	State        []byte                 `json:"state,omitempty"`
	Balance      *BalanceSnapshot       `json:"balance,omitempty"`
	SeedRef      string                 `json:"seed_ref,omitempty"` // 种子引用（不含种子本体）
}

// EvalResult 后端成功执行的原始结果（{ok, value|transaction, state, logs}）
type EvalResult struct {
	Value       interface{}  `json:"value,omitempty"`
	Transaction *Transaction `json:"transaction,omitempty"` // 显式下一笔交易
	State       []byte       `json:"state,omitempty"`       // 新序列化状态（空槽位=无状态）
	Logs        []string     `json:"logs,omitempty"`
}

// ThrownValue 用户代码主动抛出的结构化值
type ThrownValue struct {
	Code    int64       `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Fault 后端故障（执行失败的原始形态，由铸型器转换为 Failure）
//
// Thrown 非空表示用户主动抛出（→ contract_throw），
// 否则为后端内部故障（→ execution_raise，Line 可判定时附加源行后缀）。
type Fault struct {
	Thrown     *ThrownValue `json:"thrown,omitempty"`
	Message    string       `json:"message"`
	Stacktrace string       `json:"stacktrace,omitempty"`
	Line       int          `json:"line,omitempty"` // 源行号（0=不可判定）
	Logs       []string     `json:"logs,omitempty"`
}

// Error 实现error接口
func (f *Fault) Error() string {
	if f.Thrown != nil {
		return fmt.Sprintf("contract throw (code=%d): %s", f.Thrown.Code, f.Thrown.Message)
	}
	return f.Message
}

// ConditionResult 条件求值的原始结果
type ConditionResult struct {
	Declared bool     `json:"declared"` // 合约是否声明了该条件
	Valid    bool     `json:"valid"`
	Subject  string   `json:"subject,omitempty"` // 未通过的条件主题
	Logs     []string `json:"logs,omitempty"`
}

// ModuleCall 沙箱模块调用的命名选项
type ModuleCall struct {
	Input       map[string]interface{} `json:"input,omitempty"` // 命名参数（必须为映射，不允许位置参数）
	State       []byte                 `json:"state,omitempty"`
	Balance     *BalanceSnapshot       `json:"balance,omitempty"`
	Transaction *Transaction           `json:"transaction,omitempty"`
	Now         time.Time              `json:"now"`
}

// ModuleUpdate 沙箱模块的更新结果（触发器路径）
type ModuleUpdate struct {
	State       []byte       `json:"state,omitempty"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Logs        []string     `json:"logs,omitempty"`
}

// ModuleRead 沙箱模块的只读结果（函数/条件路径）
type ModuleRead struct {
	Value interface{} `json:"value,omitempty"`
	Logs  []string    `json:"logs,omitempty"`
}

// ModuleResult 沙箱模块执行结果（{ok, read|update}，二者有且仅有其一）
type ModuleResult struct {
	Update *ModuleUpdate `json:"update,omitempty"`
	Read   *ModuleRead   `json:"read,omitempty"`
}
