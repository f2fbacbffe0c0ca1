package types

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Address 链上地址（交易地址或链根地址）
type Address []byte

// Hex 返回十六进制字符串表示
func (a Address) Hex() string {
	return hex.EncodeToString(a)
}

// Equal 比较两个地址是否相同
func (a Address) Equal(other Address) bool {
	return bytes.Equal(a, other)
}

// IsZero 地址是否为空
func (a Address) IsZero() bool {
	return len(a) == 0
}

// AddressFromHex 从十六进制字符串解析地址
func AddressFromHex(s string) (Address, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return Address(b), nil
}

// Transaction 链上交易
//
// 🎯 **核心职责**：合约的定义交易与触发交易的统一表示
//
// ⚠️ **核心约束**：
//   - 引擎将交易视为每次调用的不可变快照，任何变更以新值返回，绝不原地修改
//   - 线格式不属于本核心，由外部RPC层负责序列化
type Transaction struct {
	Address           Address         `json:"address"`            // 本交易地址
	Type              string          `json:"type"`               // 交易类型（contract/transfer/data/...）
	Data              TransactionData `json:"data"`               // 交易数据
	ValidationTime    time.Time       `json:"validation_time"`    // 验证时间戳（待验证交易为零值）
	PreviousPublicKey []byte          `json:"previous_public_key,omitempty"`
	PreviousSignature []byte          `json:"previous_signature,omitempty"`
}

// TransactionData 交易数据负载
type TransactionData struct {
	Content    string           `json:"content,omitempty"`    // 自由内容
	Code       string           `json:"code,omitempty"`       // 解释型合约源码
	Contract   *ContractPayload `json:"contract,omitempty"`   // 沙箱合约负载（字节码+清单）
	Ledger     LedgerOperations `json:"ledger"`               // 账本操作
	Recipients []Recipient      `json:"recipients,omitempty"` // 合约调用接收方
	Ownerships []Ownership      `json:"ownerships,omitempty"` // 密封的所有权秘密（含合约种子）
}

// ContractPayload 沙箱合约负载
type ContractPayload struct {
	Bytecode []byte          `json:"bytecode"` // WASM模块字节码
	Manifest json.RawMessage `json:"manifest"` // 合约清单（触发器/条件/函数声明）
}

// HasContractPayload 交易是否携带任一形式的合约代码
func (tx *Transaction) HasContractPayload() bool {
	return tx.Data.Code != "" || tx.Data.Contract != nil
}

// LedgerOperations 交易的账本操作集合
type LedgerOperations struct {
	Transfers []Transfer `json:"transfers,omitempty"`
}

// Transfer 资产转移
type Transfer struct {
	To           Address `json:"to"`
	Amount       uint64  `json:"amount"`
	TokenAddress Address `json:"token_address,omitempty"` // 空表示原生资产
}

// Recipient 合约调用接收方（携带命名动作与参数）
type Recipient struct {
	Address Address                `json:"address"`
	Action  string                 `json:"action,omitempty"`
	Args    map[string]interface{} `json:"args,omitempty"`
}

// Ownership 密封的秘密及其授权密钥
//
// 合约种子以密封形式随定义交易存储，只有节点根密钥可解封。
type Ownership struct {
	Secret         []byte            `json:"secret"`                    // 密封的秘密（合约种子）
	AuthorizedKeys map[string][]byte `json:"authorized_keys,omitempty"` // hex(公钥) -> 加密的访问密钥
}

// UnspentOutput 未花费输出（合约可见的可用资产）
type UnspentOutput struct {
	From         Address   `json:"from"`
	Amount       uint64    `json:"amount"`
	Type         string    `json:"type"` // native/token/state/call
	TokenAddress Address   `json:"token_address,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// BalanceSnapshot 余额快照（由余额账本根据输入集合计算）
type BalanceSnapshot struct {
	Native uint64            `json:"native"`           // 原生资产余额
	Tokens map[string]uint64 `json:"tokens,omitempty"` // hex(token地址) -> 余额
}
