// Package schema 提供合约声明的JSON Schema校验
//
// 沙箱合约的清单可以为触发器与公共函数声明命名参数的输入模式；
// 调用到达时引擎在进入后端之前先做模式校验，拦截畸形参数。
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// compiled 已编译模式缓存（模式哈希 → 编译产物）
//
// 同一合约的同一声明在每次调用中重复出现，编译一次后复用。
var compiled sync.Map

// ValidateArgs 校验命名参数是否符合声明的输入模式
//
// 📋 **参数**：
//   - schemaRaw: 清单中声明的JSON Schema（空=未声明模式，直接通过）
//   - args: 调用携带的命名参数
//
// 🔧 **返回值**：
//   - error: 参数违反模式或模式本身无效时返回
func ValidateArgs(schemaRaw json.RawMessage, args map[string]interface{}) error {
	if len(schemaRaw) == 0 {
		return nil
	}

	sch, err := compileSchema(schemaRaw)
	if err != nil {
		return fmt.Errorf("compile input schema: %w", err)
	}

	// 参数经JSON往返归一化，保证数值等类型与模式校验器的期望一致
	normalized, err := normalize(args)
	if err != nil {
		return fmt.Errorf("normalize args: %w", err)
	}

	return sch.Validate(normalized)
}

// Check 校验模式本身可编译（供交易准入时的清单校验使用）
func Check(schemaRaw json.RawMessage) error {
	_, err := compileSchema(schemaRaw)
	return err
}

// compileSchema 编译模式（带缓存）
func compileSchema(schemaRaw json.RawMessage) (*jsonschema.Schema, error) {
	sum := sha256.Sum256(schemaRaw)
	key := hex.EncodeToString(sum[:])

	if cached, ok := compiled.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}

	sch, err := jsonschema.CompileString("input.json", string(schemaRaw))
	if err != nil {
		return nil, err
	}

	compiled.Store(key, sch)
	return sch, nil
}

// normalize 将参数映射归一化为JSON解码后的通用形态
func normalize(args map[string]interface{}) (interface{}, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	var v interface{}
	if err := json.Unmarshal(encoded, &v); err != nil {
		return nil, err
	}
	return v, nil
}
