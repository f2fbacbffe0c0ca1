// Package interp 提供解释型合约的领域语言求值器
//
// 解释型合约的源码是一个JSON程序：触发器/条件/公共函数的体都是CEL表达式，
// 按各自身份的规范键登记。条件体按主题拆分为多个布尔表达式，
// 第一个不成立的主题即拒绝主题。
package interp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/weisyn/contracts/pkg/types"
)

// TriggerBody 触发器体
type TriggerBody struct {
	// State 求值为新状态值的表达式（结果JSON序列化后作为新状态，空=不产出状态）
	State string `json:"state,omitempty"`
	// Transaction 求值为下一笔交易构造映射的表达式（空=无显式交易）
	Transaction string `json:"transaction,omitempty"`
}

// Program 解释型合约程序
//
// 📋 **键格式**：
//   - Triggers: 触发器身份的规范键（如 "transaction:vote/1"、"oracle"）
//   - Conditions: 条件身份的规范键 → (主题 → 布尔表达式)
//   - Functions: "函数名/参数数量"，私有函数以 "!" 前缀标记
type Program struct {
	Triggers   map[string]TriggerBody       `json:"triggers,omitempty"`
	Conditions map[string]map[string]string `json:"conditions,omitempty"`
	Functions  map[string]string            `json:"functions,omitempty"`
}

// ParseProgram 解析解释型合约源码
func ParseProgram(code string) (*Program, error) {
	var p Program
	decoder := json.NewDecoder(strings.NewReader(code))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode program: %w", err)
	}
	return &p, nil
}

// Capabilities 从程序推导合约能力集
//
// 🔧 **返回值**：触发器声明、条件声明、函数声明（签名非法时整体失败）
func (p *Program) Capabilities() ([]types.TriggerSpec, []types.ConditionID, []types.FunctionSpec, error) {
	triggers := make([]types.TriggerSpec, 0, len(p.Triggers))
	for key := range p.Triggers {
		id, err := ParseTriggerKey(key)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("trigger %q: %w", key, err)
		}
		triggers = append(triggers, types.TriggerSpec{ID: id})
	}

	conditions := make([]types.ConditionID, 0, len(p.Conditions))
	for key := range p.Conditions {
		id, err := ParseConditionKey(key)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("condition %q: %w", key, err)
		}
		conditions = append(conditions, id)
	}

	functions := make([]types.FunctionSpec, 0, len(p.Functions))
	for key := range p.Functions {
		spec, err := ParseFunctionKey(key)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("function %q: %w", key, err)
		}
		functions = append(functions, spec)
	}

	return triggers, conditions, functions, nil
}

// ParseTriggerKey 解析触发器身份的规范键
func ParseTriggerKey(key string) (types.TriggerID, error) {
	switch {
	case key == "transaction":
		return types.TriggerID{Kind: types.TriggerTransaction}, nil

	case strings.HasPrefix(key, "transaction:"):
		rest := strings.TrimPrefix(key, "transaction:")
		action, arity, err := splitActionArity(rest)
		if err != nil {
			return types.TriggerID{}, err
		}
		return types.TriggerID{Kind: types.TriggerTransaction, Action: action, Arity: arity}, nil

	case key == "oracle":
		return types.TriggerID{Kind: types.TriggerOracle}, nil

	case strings.HasPrefix(key, "datetime:"):
		unix, err := strconv.ParseInt(strings.TrimPrefix(key, "datetime:"), 10, 64)
		if err != nil {
			return types.TriggerID{}, fmt.Errorf("invalid datetime: %w", err)
		}
		return types.TriggerID{Kind: types.TriggerDatetime, At: time.Unix(unix, 0).UTC()}, nil

	case strings.HasPrefix(key, "interval:"):
		interval := strings.TrimPrefix(key, "interval:")
		if interval == "" {
			return types.TriggerID{}, fmt.Errorf("empty interval expression")
		}
		return types.TriggerID{Kind: types.TriggerInterval, Interval: interval}, nil

	default:
		return types.TriggerID{}, fmt.Errorf("unknown trigger kind")
	}
}

// ParseConditionKey 解析条件身份的规范键
func ParseConditionKey(key string) (types.ConditionID, error) {
	switch {
	case key == "transaction":
		return types.ConditionID{Kind: types.ConditionTransaction}, nil

	case key == "inherit":
		return types.ConditionID{Kind: types.ConditionInherit}, nil

	case strings.HasPrefix(key, "action:"):
		rest := strings.TrimPrefix(key, "action:")
		action, arity, err := splitActionArity(rest)
		if err != nil {
			return types.ConditionID{}, err
		}
		return types.ConditionID{Kind: types.ConditionAction, Action: action, Arity: arity}, nil

	default:
		return types.ConditionID{}, fmt.Errorf("unknown condition kind")
	}
}

// ParseFunctionKey 解析函数签名键（"名称/参数数量"，"!" 前缀标记私有）
func ParseFunctionKey(key string) (types.FunctionSpec, error) {
	visibility := types.FunctionPublic
	if strings.HasPrefix(key, "!") {
		visibility = types.FunctionPrivate
		key = strings.TrimPrefix(key, "!")
	}

	name, arity, err := splitActionArity(key)
	if err != nil {
		return types.FunctionSpec{}, err
	}

	return types.FunctionSpec{Name: name, Arity: arity, Visibility: visibility}, nil
}

// splitActionArity 拆分 "名称/参数数量" 形式的签名
func splitActionArity(s string) (string, int, error) {
	idx := strings.LastIndex(s, "/")
	if idx <= 0 {
		return "", 0, fmt.Errorf("expected name/arity, got %q", s)
	}
	name := s[:idx]
	arity, err := strconv.Atoi(s[idx+1:])
	if err != nil || arity < 0 {
		return "", 0, fmt.Errorf("invalid arity in %q", s)
	}
	return name, arity, nil
}

// FunctionKeyOf 返回函数签名键（与 ParseFunctionKey 互逆，不含可见性前缀）
func FunctionKeyOf(name string, arity int) string {
	return fmt.Sprintf("%s/%d", name, arity)
}
