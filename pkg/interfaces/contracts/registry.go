package contracts

import (
	"context"

	"github.com/weisyn/contracts/pkg/types"
)

// Registry 链级合约注册表
//
// 🎯 **核心职责**：
// 以显式的 (链根地址 → 合约句柄) 映射替代"每链一个全局注册进程"的模式：
// 由单一协调服务持有受保护的表，提供显式的加载/更新/停止生命周期，
// 绝不依赖环境全局状态。
//
// 📋 **生命周期**：
// - Load: 从定义交易加载合约（每链一次，由外部加载器驱动）
// - Update: 链上出现新交易时刷新合约实例
// - Stop: 显式停止并移除
type Registry interface {
	// Load 从定义交易加载合约并登记到链根地址下
	Load(ctx context.Context, tx *types.Transaction) (*types.Contract, error)

	// Update 用链上最新交易刷新合约实例
	Update(ctx context.Context, chainRoot types.Address, tx *types.Transaction) (*types.Contract, error)

	// Stop 停止并移除链上的合约实例
	Stop(ctx context.Context, chainRoot types.Address) error

	// Get 按链根地址取得当前合约实例
	Get(chainRoot types.Address) (*types.Contract, bool)
}
