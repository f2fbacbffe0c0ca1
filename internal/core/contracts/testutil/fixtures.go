// 测试数据 Fixtures：创建随机地址、定义交易与输入集合的辅助函数
package testutil

import (
	"crypto/rand"
	"time"

	"github.com/weisyn/contracts/pkg/types"
)

// RandomBytes 生成随机字节数组
func RandomBytes(size int) []byte {
	b := make([]byte, size)
	rand.Read(b)
	return b
}

// RandomAddress 生成随机地址（20 字节）
func RandomAddress() types.Address {
	return types.Address(RandomBytes(20))
}

// NewInterpretedDefinition 创建携带解释型源码的定义交易
func NewInterpretedDefinition(code string) *types.Transaction {
	return &types.Transaction{
		Address: RandomAddress(),
		Type:    "contract",
		Data:    types.TransactionData{Code: code},
	}
}

// NewSandboxedDefinition 创建携带字节码与清单的定义交易
func NewSandboxedDefinition(bytecode []byte, manifest string) *types.Transaction {
	return &types.Transaction{
		Address: RandomAddress(),
		Type:    "contract",
		Data: types.TransactionData{
			Contract: &types.ContractPayload{
				Bytecode: bytecode,
				Manifest: []byte(manifest),
			},
		},
	}
}

// NewNativeOutput 创建原生资产未花费输出
func NewNativeOutput(from types.Address, amount uint64, ts time.Time) *types.UnspentOutput {
	return &types.UnspentOutput{
		From:      from,
		Amount:    amount,
		Type:      "native",
		Timestamp: ts,
	}
}

// NewTokenOutput 创建代币未花费输出
func NewTokenOutput(from, token types.Address, amount uint64, ts time.Time) *types.UnspentOutput {
	return &types.UnspentOutput{
		From:         from,
		Amount:       amount,
		Type:         "token",
		TokenAddress: token,
		Timestamp:    ts,
	}
}
