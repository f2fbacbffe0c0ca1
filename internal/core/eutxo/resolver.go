package eutxo

import (
	"context"
	"sync"

	ifcontracts "github.com/weisyn/contracts/pkg/interfaces/contracts"
	"github.com/weisyn/contracts/pkg/types"
)

// StaticResolver 静态链解析器，实现 contracts.ChainResolver
//
// 未显式登记的地址解析为其自身（单交易链的根即自身）。
type StaticResolver struct {
	mu    sync.RWMutex
	roots map[string]types.Address // 地址(hex) → 链根地址
}

var _ ifcontracts.ChainResolver = (*StaticResolver)(nil)

// NewStaticResolver 创建静态链解析器
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{roots: make(map[string]types.Address)}
}

// Register 登记地址所属链的根地址
func (r *StaticResolver) Register(address, root types.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roots[address.Hex()] = root
}

// FetchRootAddress 解析地址所属链的根地址
func (r *StaticResolver) FetchRootAddress(_ context.Context, address types.Address) (types.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if root, ok := r.roots[address.Hex()]; ok {
		return root, nil
	}
	return address, nil
}
