// Package registry provides error definitions for contract registry operations.
package registry

import (
	"errors"
	"fmt"
)

// ============================================================================
//                            合约注册表错误定义
// ============================================================================

var (
	// ErrContractNotRegistered 链上未登记合约错误
	ErrContractNotRegistered = errors.New("contract not registered for chain")

	// ErrContractAlreadyRegistered 链上已登记合约错误
	ErrContractAlreadyRegistered = errors.New("contract already registered for chain")

	// ErrRegistryClosed 注册表已关闭错误
	ErrRegistryClosed = errors.New("contract registry closed")
)

// ============================================================================
//                               错误包装函数
// ============================================================================

// WrapContractNotRegisteredError 包装链上未登记合约错误
func WrapContractNotRegisteredError(chainRoot string) error {
	return fmt.Errorf("%w: chain=%s", ErrContractNotRegistered, chainRoot)
}

// WrapContractAlreadyRegisteredError 包装链上已登记合约错误
func WrapContractAlreadyRegisteredError(chainRoot string) error {
	return fmt.Errorf("%w: chain=%s", ErrContractAlreadyRegistered, chainRoot)
}
