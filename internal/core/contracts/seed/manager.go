// Package seed 提供合约种子与链密钥管理
//
// 🎯 **核心职责**：
// 合约链的签名材料来自定义交易中密封存储的种子：
// - 种子以节点根密钥作用域密封在首个所有权条目中，解封经 RootKeyCipher
// - 链密钥按 (种子, 链根地址, 索引) 经HKDF确定性派生
// - 下一笔交易用派生密钥联署，变更以新值返回，绝不原地修改
//
// ⚠️ **核心约束**：解封/派生失败以错误返回，绝不panic；种子本体绝不出现在日志中
package seed

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/hkdf"

	ifcontracts "github.com/weisyn/contracts/pkg/interfaces/contracts"
	"github.com/weisyn/contracts/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/contracts/pkg/types"
)

// Manager 种子管理器
type Manager struct {
	logger   log.Logger
	cipher   ifcontracts.RootKeyCipher
	resolver ifcontracts.ChainResolver
}

// New 创建种子管理器
func New(logger log.Logger, cipher ifcontracts.RootKeyCipher, resolver ifcontracts.ChainResolver) *Manager {
	return &Manager{logger: logger, cipher: cipher, resolver: resolver}
}

// SignNextTransaction 用合约链自身的密钥材料联署下一笔交易
//
// 📋 **参数**：
//   - contract: 合约实例（定义交易携带密封种子）
//   - next: 待签名的下一笔交易
//   - index: 链密钥索引（链上已有交易数）
//
// 🔧 **返回值**：携带签名与公钥的新交易副本
func (m *Manager) SignNextTransaction(ctx context.Context, contract *types.Contract, next *types.Transaction, index uint32) (*types.Transaction, error) {
	if contract == nil || contract.Transaction == nil {
		return nil, ErrNilContract
	}
	if next == nil {
		return nil, ErrNilTransaction
	}

	ownerships := contract.Transaction.Data.Ownerships
	if len(ownerships) == 0 {
		return nil, ErrNoOwnership
	}

	contractSeed, err := m.cipher.Decrypt(ctx, ownerships[0].Secret)
	if err != nil {
		return nil, WrapSeedUnsealFailedError(contract.Address().Hex(), err)
	}
	defer zero(contractSeed)

	root, err := m.resolver.FetchRootAddress(ctx, contract.Address())
	if err != nil {
		return nil, WrapChainResolveFailedError(contract.Address().Hex(), err)
	}

	privateKey, err := DeriveKeypair(contractSeed, root, index)
	if err != nil {
		return nil, WrapKeyDerivationFailedError(root.Hex(), index, err)
	}

	signed := *next
	digest := transactionDigest(&signed)
	signature := ecdsa.Sign(privateKey, digest)

	signed.PreviousPublicKey = privateKey.PubKey().SerializeCompressed()
	signed.PreviousSignature = signature.Serialize()

	return &signed, nil
}

// DeriveKeypair 从种子确定性派生链密钥
//
// 同一 (种子, 链根, 索引) 永远派生同一密钥。
func DeriveKeypair(contractSeed []byte, chainRoot types.Address, index uint32) (*btcec.PrivateKey, error) {
	if len(contractSeed) == 0 {
		return nil, fmt.Errorf("empty seed")
	}

	info := fmt.Sprintf("chain-key:%d", index)
	reader := hkdf.New(sha256.New, contractSeed, chainRoot, []byte(info))

	keyBytes := make([]byte, 32)
	if _, err := io.ReadFull(reader, keyBytes); err != nil {
		return nil, fmt.Errorf("expand key material: %w", err)
	}
	defer zero(keyBytes)

	privateKey, _ := btcec.PrivKeyFromBytes(keyBytes)
	return privateKey, nil
}

// transactionDigest 计算交易的签名摘要
//
// 摘要覆盖地址、类型与数据负载；签名字段本身不参与。
func transactionDigest(tx *types.Transaction) []byte {
	payload := struct {
		Address types.Address         `json:"address"`
		Type    string                `json:"type"`
		Data    types.TransactionData `json:"data"`
	}{
		Address: tx.Address,
		Type:    tx.Type,
		Data:    tx.Data,
	}

	encoded, err := json.Marshal(&payload)
	if err != nil {
		// 交易数据由引擎自身组装，序列化失败意味着内部不变量被破坏
		encoded = []byte(tx.Address.Hex() + tx.Type)
	}

	sum := sha256.Sum256(encoded)
	return sum[:]
}

// zero 清除敏感字节
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
