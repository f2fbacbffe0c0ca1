// Package contracts 提供合约执行模块
package contracts

import (
	"context"
	"fmt"

	"github.com/asaskevich/EventBus"
	"go.uber.org/fx"

	contractsconfig "github.com/weisyn/contracts/internal/config/contracts"
	"github.com/weisyn/contracts/internal/core/contracts/cache"
	"github.com/weisyn/contracts/internal/core/contracts/cast"
	"github.com/weisyn/contracts/internal/core/contracts/conditions"
	"github.com/weisyn/contracts/internal/core/contracts/dispatcher"
	"github.com/weisyn/contracts/internal/core/contracts/engines/interp"
	"github.com/weisyn/contracts/internal/core/contracts/engines/wasm"
	"github.com/weisyn/contracts/internal/core/contracts/invoke"
	"github.com/weisyn/contracts/internal/core/contracts/registry"
	"github.com/weisyn/contracts/internal/core/contracts/seed"
	ifcontracts "github.com/weisyn/contracts/pkg/interfaces/contracts"
	"github.com/weisyn/contracts/pkg/interfaces/infrastructure/log"
)

// ModuleParams 定义合约执行模块的依赖参数
type ModuleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Logger    log.Logger

	Options *contractsconfig.EngineOptions `optional:"true"` // 用户引擎配置（可选）

	// 外部协作方（由宿主应用提供）
	Ledger   ifcontracts.BalanceLedger
	Resolver ifcontracts.ChainResolver
	Cipher   ifcontracts.RootKeyCipher

	Bus EventBus.Bus `optional:"true"` // 事件总线（可选，缺省时模块内建）
}

// ModuleOutput 定义合约执行模块的输出结构
type ModuleOutput struct {
	fx.Out

	Engine   ifcontracts.Engine   // 统一执行接口
	Registry ifcontracts.Registry // 链级合约注册表
}

// Module 返回合约执行模块
func Module() fx.Option {
	return fx.Module("contracts",
		fx.Provide(ProvideServices),
	)
}

// ProvideServices 提供合约执行服务
//
// 📋 **装配顺序**：配置 → 铸型器/后端 → 缓存 → 分发器/条件/调用/种子 → 引擎
func ProvideServices(params ModuleParams) (ModuleOutput, error) {
	cfg := contractsconfig.New(params.Options)

	caster := cast.New(cfg.StateSizeLimit())
	evaluator := interp.New(params.Logger)

	executor, err := wasm.New(params.Logger, cfg.ModuleMemoryLimitBytes())
	if err != nil {
		return ModuleOutput{}, fmt.Errorf("创建WASM模块执行器失败: %w", err)
	}

	executionCache := cache.New(cfg.CacheTTL(), cfg.CacheMaxSize(), params.Logger)

	triggerDispatcher := dispatcher.New(params.Logger, caster, evaluator, executor, params.Ledger, params.Resolver)
	conditionEvaluator := conditions.New(params.Logger, caster, evaluator, executor, params.Ledger)
	functionInvoker := invoke.New(params.Logger, caster, evaluator, executor, params.Ledger, cfg.FunctionBudget())
	seedManager := seed.New(params.Logger, params.Cipher, params.Resolver)

	bus := params.Bus
	if bus == nil {
		bus = EventBus.New()
	}

	engine := NewEngine(params.Logger, cfg, executionCache, triggerDispatcher, conditionEvaluator, functionInvoker, seedManager, bus)
	contractRegistry := registry.New(params.Logger, params.Resolver)

	params.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			engine.Close()
			contractRegistry.Close()
			return executor.Close(ctx)
		},
	})

	return ModuleOutput{
		Engine:   engine,
		Registry: contractRegistry,
	}, nil
}
