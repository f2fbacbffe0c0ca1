// Package seed provides error definitions for contract seed management.
package seed

import (
	"errors"
	"fmt"
)

// ============================================================================
//                            种子管理器错误定义
// ============================================================================

var (
	// ErrNilContract 合约实例为空错误
	ErrNilContract = errors.New("nil contract")

	// ErrNilTransaction 交易为空错误
	ErrNilTransaction = errors.New("nil transaction")

	// ErrNoOwnership 定义交易缺少所有权条目错误
	ErrNoOwnership = errors.New("definition transaction carries no ownership")

	// ErrSeedUnsealFailed 合约种子解封失败错误
	ErrSeedUnsealFailed = errors.New("contract seed unseal failed")

	// ErrKeyDerivationFailed 链密钥派生失败错误
	ErrKeyDerivationFailed = errors.New("chain key derivation failed")

	// ErrSigningFailed 交易签名失败错误
	ErrSigningFailed = errors.New("transaction signing failed")

	// ErrChainResolveFailed 链根地址解析失败错误
	ErrChainResolveFailed = errors.New("chain root address resolve failed")
)

// ============================================================================
//                               错误包装函数
// ============================================================================

// WrapSeedUnsealFailedError 包装合约种子解封失败错误
func WrapSeedUnsealFailedError(contractAddress string, err error) error {
	return fmt.Errorf("%w: contract=%s, cause=%w", ErrSeedUnsealFailed, contractAddress, err)
}

// WrapKeyDerivationFailedError 包装链密钥派生失败错误
func WrapKeyDerivationFailedError(chainRoot string, index uint32, err error) error {
	return fmt.Errorf("%w: chain=%s, index=%d, cause=%w", ErrKeyDerivationFailed, chainRoot, index, err)
}

// WrapChainResolveFailedError 包装链根地址解析失败错误
func WrapChainResolveFailedError(address string, err error) error {
	return fmt.Errorf("%w: address=%s, cause=%w", ErrChainResolveFailed, address, err)
}
