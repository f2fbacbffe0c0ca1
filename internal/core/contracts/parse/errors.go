// Package parse provides error definitions for contract payload parsing.
package parse

import (
	"errors"
	"fmt"
)

// ============================================================================
//                            合约负载解析错误定义
// ============================================================================

var (
	// ErrNilTransaction 交易为空错误
	ErrNilTransaction = errors.New("nil transaction")

	// ErrNoContractPayload 交易不携带合约负载错误
	ErrNoContractPayload = errors.New("transaction carries no contract payload")

	// ErrAmbiguousContractPayload 交易同时携带两种合约负载错误
	ErrAmbiguousContractPayload = errors.New("transaction carries both interpreted code and sandboxed payload")

	// ErrInvalidManifest 合约清单解析失败错误
	ErrInvalidManifest = errors.New("invalid contract manifest")

	// ErrInvalidCodeProgram 解释型合约程序解析失败错误
	ErrInvalidCodeProgram = errors.New("invalid interpreted contract program")

	// ErrEmptyBytecode 沙箱合约字节码为空错误
	ErrEmptyBytecode = errors.New("empty contract bytecode")
)

// ============================================================================
//                               错误包装函数
// ============================================================================

// WrapInvalidManifestError 包装合约清单解析失败错误
func WrapInvalidManifestError(err error) error {
	return fmt.Errorf("%w: cause=%w", ErrInvalidManifest, err)
}

// WrapInvalidCodeProgramError 包装解释型合约程序解析失败错误
func WrapInvalidCodeProgramError(err error) error {
	return fmt.Errorf("%w: cause=%w", ErrInvalidCodeProgram, err)
}
