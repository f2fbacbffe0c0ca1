// Package registry 提供链级合约注册表
//
// 🎯 **核心职责**：
// 以单一受保护的 (链根地址 → 合约实例) 映射管理长生命周期合约：
// - Load: 从定义交易加载（每链一次，由外部加载器驱动）
// - Update: 链上出现新交易时刷新实例（状态快照延续）
// - Stop: 显式停止并移除
//
// ⚠️ **核心约束**：绝不依赖环境全局状态，生命周期完全显式
package registry

import (
	"context"
	"sync"

	"github.com/weisyn/contracts/internal/core/contracts/parse"
	ifcontracts "github.com/weisyn/contracts/pkg/interfaces/contracts"
	"github.com/weisyn/contracts/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/contracts/pkg/types"
)

// Service 合约注册表实现
type Service struct {
	logger   log.Logger
	resolver ifcontracts.ChainResolver

	mu        sync.RWMutex
	contracts map[string]*types.Contract
	closed    bool
}

var _ ifcontracts.Registry = (*Service)(nil)

// New 创建合约注册表
func New(logger log.Logger, resolver ifcontracts.ChainResolver) *Service {
	return &Service{
		logger:    logger,
		resolver:  resolver,
		contracts: make(map[string]*types.Contract),
	}
}

// Load 从定义交易加载合约并登记到链根地址下
func (s *Service) Load(ctx context.Context, tx *types.Transaction) (*types.Contract, error) {
	contract, err := parse.ValidateAndParse(tx)
	if err != nil {
		return nil, err
	}

	root, err := s.resolver.FetchRootAddress(ctx, tx.Address)
	if err != nil {
		return nil, err
	}
	key := root.Hex()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrRegistryClosed
	}
	if _, exists := s.contracts[key]; exists {
		return nil, WrapContractAlreadyRegisteredError(key)
	}

	s.contracts[key] = contract
	s.logger.Infof("合约已登记: chain=%s, variant=%s", key, contract.Variant)
	return contract, nil
}

// Update 用链上最新交易刷新合约实例
//
// 新实例延续旧实例的状态快照；状态的实际换入由验证流水线在
// 成功结局提交后驱动。
func (s *Service) Update(ctx context.Context, chainRoot types.Address, tx *types.Transaction) (*types.Contract, error) {
	contract, err := parse.ValidateAndParse(tx)
	if err != nil {
		return nil, err
	}
	key := chainRoot.Hex()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrRegistryClosed
	}
	previous, exists := s.contracts[key]
	if !exists {
		return nil, WrapContractNotRegisteredError(key)
	}

	contract.State = previous.State
	s.contracts[key] = contract
	s.logger.Debugf("合约已刷新: chain=%s", key)
	return contract, nil
}

// Stop 停止并移除链上的合约实例
func (s *Service) Stop(_ context.Context, chainRoot types.Address) error {
	key := chainRoot.Hex()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.contracts[key]; !exists {
		return WrapContractNotRegisteredError(key)
	}

	delete(s.contracts, key)
	s.logger.Infof("合约已停止: chain=%s", key)
	return nil
}

// Get 按链根地址取得当前合约实例
func (s *Service) Get(chainRoot types.Address) (*types.Contract, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contract, ok := s.contracts[chainRoot.Hex()]
	return contract, ok
}

// SetState 换入链上确认后的新状态快照
//
// 由验证流水线在成功结局提交后调用，取消中的执行绝不触碰这里。
func (s *Service) SetState(chainRoot types.Address, state []byte) error {
	key := chainRoot.Hex()

	s.mu.Lock()
	defer s.mu.Unlock()

	contract, exists := s.contracts[key]
	if !exists {
		return WrapContractNotRegisteredError(key)
	}

	clone := *contract
	clone.State = state
	s.contracts[key] = &clone
	return nil
}

// Close 关闭注册表并移除全部实例
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.contracts = make(map[string]*types.Contract)
}
