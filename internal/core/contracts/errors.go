// Package contracts provides error definitions for contract execution operations.
package contracts

import (
	"errors"
	"fmt"
)

// ============================================================================
//                            合约执行引擎错误定义
// ============================================================================

var (
	// ErrNilContract 合约实例为空错误
	ErrNilContract = errors.New("nil contract")

	// ErrNoResolvedTime 无法解析当前时间错误
	ErrNoResolvedTime = errors.New("no resolvable invocation time")
)

// ============================================================================
//                               错误包装函数
// ============================================================================

// WrapNoResolvedTimeError 包装无法解析当前时间错误
func WrapNoResolvedTimeError(identity string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrNoResolvedTime, identity, err)
}
