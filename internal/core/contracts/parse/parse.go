// Package parse 提供合约负载的解析与良构性校验
//
// 🎯 **核心职责**：
// - FromTransaction: 从定义交易解析合约实例（浅解析，不做深度校验）
// - ValidateAndParse: 解析并校验合约负载的良构性（供交易准入使用）
//
// 两种负载形态：
//   - 解释型：交易携带领域语言源码（Data.Code），能力集从程序推导
//   - 沙箱：交易携带字节码+清单（Data.Contract），能力集从清单读取
package parse

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/weisyn/contracts/internal/core/contracts/engines/interp"
	"github.com/weisyn/contracts/internal/core/contracts/schema"
	"github.com/weisyn/contracts/pkg/types"
)

// manifest 沙箱合约清单的线格式
type manifest struct {
	Triggers []struct {
		On    string          `json:"on"`              // 触发器身份的规范键
		Input json.RawMessage `json:"input,omitempty"` // 命名参数的JSON Schema
	} `json:"triggers,omitempty"`

	Conditions []string `json:"conditions,omitempty"` // 条件身份的规范键

	Functions []struct {
		Name       string          `json:"name"`
		Arity      int             `json:"arity"`
		Visibility string          `json:"visibility,omitempty"` // public（默认）/ private
		Input      json.RawMessage `json:"input,omitempty"`
	} `json:"functions,omitempty"`

	Upgrade *struct {
		From string `json:"from"` // 授权来源链根地址（hex）
	} `json:"upgrade,omitempty"`
}

// FromTransaction 从定义交易解析合约实例
//
// 只做负载形态判定与能力集推导，不校验表达式/字节码本身。
func FromTransaction(tx *types.Transaction) (*types.Contract, error) {
	if tx == nil {
		return nil, ErrNilTransaction
	}
	if !tx.HasContractPayload() {
		return nil, ErrNoContractPayload
	}
	if tx.Data.Code != "" && tx.Data.Contract != nil {
		return nil, ErrAmbiguousContractPayload
	}

	if tx.Data.Code != "" {
		return fromInterpreted(tx)
	}
	return fromSandboxed(tx)
}

// ValidateAndParse 解析合约负载并校验其良构性
//
// 在 FromTransaction 之上追加：
//   - 沙箱：字节码非空、声明的输入模式可编译、升级策略地址合法
//   - 解释型：程序中每个条件主题非空
func ValidateAndParse(tx *types.Transaction) (*types.Contract, error) {
	contract, err := FromTransaction(tx)
	if err != nil {
		return nil, err
	}

	switch contract.Variant {
	case types.VariantInterpreted:
		if err := validateProgram(contract.Code); err != nil {
			return nil, WrapInvalidCodeProgramError(err)
		}
	case types.VariantSandboxed:
		if len(contract.Bytecode) == 0 {
			return nil, ErrEmptyBytecode
		}
		if err := validateSchemas(contract); err != nil {
			return nil, WrapInvalidManifestError(err)
		}
	}

	return contract, nil
}

// fromInterpreted 解析解释型负载
func fromInterpreted(tx *types.Transaction) (*types.Contract, error) {
	program, err := interp.ParseProgram(tx.Data.Code)
	if err != nil {
		return nil, WrapInvalidCodeProgramError(err)
	}

	triggers, conditions, functions, err := program.Capabilities()
	if err != nil {
		return nil, WrapInvalidCodeProgramError(err)
	}

	return &types.Contract{
		Variant:     types.VariantInterpreted,
		Transaction: tx,
		Code:        tx.Data.Code,
		Triggers:    triggers,
		Conditions:  conditions,
		Functions:   functions,
	}, nil
}

// fromSandboxed 解析沙箱负载
func fromSandboxed(tx *types.Transaction) (*types.Contract, error) {
	payload := tx.Data.Contract

	var m manifest
	decoder := json.NewDecoder(strings.NewReader(string(payload.Manifest)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&m); err != nil {
		return nil, WrapInvalidManifestError(err)
	}

	contract := &types.Contract{
		Variant:     types.VariantSandboxed,
		Transaction: tx,
		Bytecode:    payload.Bytecode,
	}

	for _, t := range m.Triggers {
		id, err := interp.ParseTriggerKey(t.On)
		if err != nil {
			return nil, WrapInvalidManifestError(fmt.Errorf("trigger %q: %w", t.On, err))
		}
		contract.Triggers = append(contract.Triggers, types.TriggerSpec{ID: id, InputSchema: t.Input})
	}

	for _, c := range m.Conditions {
		id, err := interp.ParseConditionKey(c)
		if err != nil {
			return nil, WrapInvalidManifestError(fmt.Errorf("condition %q: %w", c, err))
		}
		contract.Conditions = append(contract.Conditions, id)
	}

	for _, f := range m.Functions {
		visibility, err := parseVisibility(f.Visibility)
		if err != nil {
			return nil, WrapInvalidManifestError(fmt.Errorf("function %q: %w", f.Name, err))
		}
		if f.Name == "" || f.Arity < 0 {
			return nil, WrapInvalidManifestError(fmt.Errorf("function declaration with empty name or negative arity"))
		}
		contract.Functions = append(contract.Functions, types.FunctionSpec{
			Name:        f.Name,
			Arity:       f.Arity,
			Visibility:  visibility,
			InputSchema: f.Input,
		})
	}

	if m.Upgrade != nil {
		from, err := types.AddressFromHex(m.Upgrade.From)
		if err != nil || len(from) == 0 {
			return nil, WrapInvalidManifestError(fmt.Errorf("upgrade policy with invalid origin address %q", m.Upgrade.From))
		}
		contract.UpgradePolicy = &types.UpgradePolicy{From: from}
	}

	return contract, nil
}

// parseVisibility 解析函数可见性（空=public）
func parseVisibility(s string) (types.FunctionVisibility, error) {
	switch s {
	case "", "public":
		return types.FunctionPublic, nil
	case "private":
		return types.FunctionPrivate, nil
	default:
		return "", fmt.Errorf("unknown visibility %q", s)
	}
}

// validateProgram 校验解释型程序的良构性
func validateProgram(code string) error {
	program, err := interp.ParseProgram(code)
	if err != nil {
		return err
	}

	for key, subjects := range program.Conditions {
		for subject, expr := range subjects {
			if subject == "" {
				return fmt.Errorf("condition %q declares an empty subject", key)
			}
			if strings.TrimSpace(expr) == "" {
				return fmt.Errorf("condition %q subject %q declares an empty expression", key, subject)
			}
		}
	}

	for key, body := range program.Triggers {
		if body.State == "" && body.Transaction == "" {
			return fmt.Errorf("trigger %q declares an empty body", key)
		}
	}

	return nil
}

// validateSchemas 校验清单声明的输入模式可编译
func validateSchemas(contract *types.Contract) error {
	for _, t := range contract.Triggers {
		if len(t.InputSchema) == 0 {
			continue
		}
		if err := schema.Check(t.InputSchema); err != nil {
			return fmt.Errorf("trigger %q input schema: %w", t.ID.Key(), err)
		}
	}
	for _, f := range contract.Functions {
		if len(f.InputSchema) == 0 {
			continue
		}
		if err := schema.Check(f.InputSchema); err != nil {
			return fmt.Errorf("function %q input schema: %w", f.Name, err)
		}
	}
	return nil
}
