package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// ContractVariant 合约后端变体
type ContractVariant string

const (
	// VariantInterpreted 解释型合约（领域语言源码，由外部求值器执行）
	VariantInterpreted ContractVariant = "interpreted"

	// VariantSandboxed 沙箱合约（WASM字节码模块）
	VariantSandboxed ContractVariant = "sandboxed"
)

// TriggerKind 触发器种类
type TriggerKind string

const (
	TriggerTransaction TriggerKind = "transaction" // 交易触发（可选命名动作）
	TriggerOracle      TriggerKind = "oracle"      // 预言机更新触发
	TriggerDatetime    TriggerKind = "datetime"    // 固定时间点触发
	TriggerInterval    TriggerKind = "interval"    // 周期触发
)

// TriggerID 触发器身份（标签化变体）
//
// 📋 **字段语义按 Kind 区分**：
//   - transaction: Action 为可选命名动作，Arity 为参数数量
//   - oracle: 无附加字段
//   - datetime: At 为触发时间点
//   - interval: Interval 为 cron 表达式
type TriggerID struct {
	Kind     TriggerKind `json:"kind"`
	Action   string      `json:"action,omitempty"`
	Arity    int         `json:"arity,omitempty"`
	At       time.Time   `json:"at,omitempty"`
	Interval string      `json:"interval,omitempty"`
}

// Key 返回触发器身份的规范字符串（用于能力表匹配与缓存键）
func (t TriggerID) Key() string {
	switch t.Kind {
	case TriggerTransaction:
		if t.Action == "" {
			return "transaction"
		}
		return fmt.Sprintf("transaction:%s/%d", t.Action, t.Arity)
	case TriggerOracle:
		return "oracle"
	case TriggerDatetime:
		return fmt.Sprintf("datetime:%d", t.At.Unix())
	case TriggerInterval:
		return fmt.Sprintf("interval:%s", t.Interval)
	default:
		return string(t.Kind)
	}
}

// ConditionKind 条件种类
type ConditionKind string

const (
	ConditionTransaction ConditionKind = "transaction" // 交易触发条件
	ConditionInherit     ConditionKind = "inherit"     // 后继状态（inherit）条件
	ConditionAction      ConditionKind = "action"      // 命名动作条件
)

// ConditionID 条件身份（标签化变体）
type ConditionID struct {
	Kind   ConditionKind `json:"kind"`
	Action string        `json:"action,omitempty"`
	Arity  int           `json:"arity,omitempty"`
}

// Key 返回条件身份的规范字符串
func (c ConditionID) Key() string {
	switch c.Kind {
	case ConditionAction:
		return fmt.Sprintf("action:%s/%d", c.Action, c.Arity)
	default:
		return string(c.Kind)
	}
}

// FunctionVisibility 函数可见性
type FunctionVisibility string

const (
	FunctionPublic  FunctionVisibility = "public"
	FunctionPrivate FunctionVisibility = "private"
)

// FunctionSpec 合约函数声明
type FunctionSpec struct {
	Name       string             `json:"name"`
	Arity      int                `json:"arity"`
	Visibility FunctionVisibility `json:"visibility"`
	// InputSchema 命名参数的JSON Schema（沙箱合约声明，可为空）
	InputSchema json.RawMessage `json:"input,omitempty"`
}

// UpgradePolicy 合约升级策略
//
// 升级触发器仅当调用者的根链地址等于 From 时才被授权。
type UpgradePolicy struct {
	From Address `json:"from"` // 声明的来源链根地址
}

// TriggerSpec 触发器声明（含输入模式）
type TriggerSpec struct {
	ID TriggerID `json:"id"`
	// InputSchema 命名参数的JSON Schema（沙箱合约声明，可为空）
	InputSchema json.RawMessage `json:"input,omitempty"`
}

// Contract 合约实例
//
// 🎯 **核心职责**：两种后端变体的统一视图，共享能力集 {触发器, 条件, 公共函数}
//
// ⚠️ **核心约束**：
//   - 引擎按调用以引用传递合约，调用之间绝不保留——长生命周期实例由外部监督服务持有
//   - State 与 Transaction 是每次调用的不可变快照
type Contract struct {
	Variant     ContractVariant `json:"variant"`
	Transaction *Transaction    `json:"transaction"`     // 定义交易
	State       []byte          `json:"state,omitempty"` // 当前序列化状态

	// 解释型负载
	Code string `json:"code,omitempty"`

	// 沙箱负载
	Bytecode []byte `json:"bytecode,omitempty"`

	// 能力集
	Triggers   []TriggerSpec  `json:"triggers,omitempty"`
	Conditions []ConditionID  `json:"conditions,omitempty"`
	Functions  []FunctionSpec `json:"functions,omitempty"`

	// 升级策略（仅沙箱合约，来自清单）
	UpgradePolicy *UpgradePolicy `json:"upgrade_policy,omitempty"`
}

// Address 返回合约地址（定义交易的地址）
func (c *Contract) Address() Address {
	if c.Transaction == nil {
		return nil
	}
	return c.Transaction.Address
}

// FindTrigger 按身份查找触发器声明
//
// transaction 类触发器按 (动作名, 参数数量) 匹配；
// datetime/interval 触发器按各自的时间参数精确匹配。
func (c *Contract) FindTrigger(id TriggerID) (*TriggerSpec, bool) {
	key := id.Key()
	for i := range c.Triggers {
		if c.Triggers[i].ID.Key() == key {
			return &c.Triggers[i], true
		}
	}
	return nil, false
}

// ContainsTrigger 合约是否声明了该触发器
func (c *Contract) ContainsTrigger(id TriggerID) bool {
	_, ok := c.FindTrigger(id)
	return ok
}

// ContainsCondition 合约是否声明了该条件
func (c *Contract) ContainsCondition(id ConditionID) bool {
	key := id.Key()
	for _, cond := range c.Conditions {
		if cond.Key() == key {
			return true
		}
	}
	return false
}

// FindFunction 按 (名称, 参数数量) 查找函数声明
func (c *Contract) FindFunction(name string, arity int) (*FunctionSpec, bool) {
	for i := range c.Functions {
		if c.Functions[i].Name == name && c.Functions[i].Arity == arity {
			return &c.Functions[i], true
		}
	}
	return nil, false
}
