// Package eutxo 提供基于静态输入集合的账本协作方实现
//
// 引擎自身不拥有账本：验证流水线按调用传入未花费输出集合。
// 这里的实现服务于单次模拟工具与进程内装配，从登记的输出集合
// 计算余额快照并提供惰性流式读取。
package eutxo

import (
	"context"
	"sync"

	ifcontracts "github.com/weisyn/contracts/pkg/interfaces/contracts"
	"github.com/weisyn/contracts/pkg/types"
)

// StaticLedger 静态输入集合账本，实现 contracts.BalanceLedger
type StaticLedger struct {
	mu      sync.RWMutex
	outputs map[string][]*types.UnspentOutput // 链根地址(hex) → 未花费输出
}

var _ ifcontracts.BalanceLedger = (*StaticLedger)(nil)

// NewStaticLedger 创建静态账本
func NewStaticLedger() *StaticLedger {
	return &StaticLedger{outputs: make(map[string][]*types.UnspentOutput)}
}

// Put 登记链的未花费输出
func (l *StaticLedger) Put(chain types.Address, outputs ...*types.UnspentOutput) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outputs[chain.Hex()] = append(l.outputs[chain.Hex()], outputs...)
}

// GetBalance 根据输入集合计算余额快照
func (l *StaticLedger) GetBalance(inputs []*types.UnspentOutput) *types.BalanceSnapshot {
	snapshot := &types.BalanceSnapshot{Tokens: make(map[string]uint64)}
	for _, in := range inputs {
		if in == nil {
			continue
		}
		if in.TokenAddress.IsZero() {
			snapshot.Native += in.Amount
		} else {
			snapshot.Tokens[in.TokenAddress.Hex()] += in.Amount
		}
	}
	return snapshot
}

// StreamUnspentOutputs 惰性流式读取链的未花费输出
func (l *StaticLedger) StreamUnspentOutputs(ctx context.Context, chain types.Address) (<-chan *types.UnspentOutput, error) {
	l.mu.RLock()
	outputs := make([]*types.UnspentOutput, len(l.outputs[chain.Hex()]))
	copy(outputs, l.outputs[chain.Hex()])
	l.mu.RUnlock()

	ch := make(chan *types.UnspentOutput)
	go func() {
		defer close(ch)
		for _, out := range outputs {
			select {
			case ch <- out:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
