package contracts

import (
	"context"

	"github.com/weisyn/contracts/pkg/types"
)

// BalanceLedger 余额账本（外部协作方）
type BalanceLedger interface {
	// GetBalance 根据输入集合计算余额快照
	GetBalance(inputs []*types.UnspentOutput) *types.BalanceSnapshot

	// StreamUnspentOutputs 惰性流式读取链的未花费输出
	StreamUnspentOutputs(ctx context.Context, chain types.Address) (<-chan *types.UnspentOutput, error)
}

// ChainResolver 链解析器（外部协作方，用于升级授权）
type ChainResolver interface {
	// FetchRootAddress 解析地址所属链的根地址
	FetchRootAddress(ctx context.Context, address types.Address) (types.Address, error)
}

// RootKeyCipher 根密钥作用域的加解密（外部协作方，仅种子管理器使用）
type RootKeyCipher interface {
	// Encrypt 用节点根密钥密封数据
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)

	// Decrypt 解封根密钥密封的数据
	Decrypt(ctx context.Context, sealed []byte) ([]byte, error)
}
