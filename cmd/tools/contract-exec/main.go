// contract-exec 合约执行模拟工具
//
// 在不接入真实链的情况下对单个合约定义交易做单次模拟：
// 解析校验、触发器执行、条件校验、公共函数调用。
// 所有模拟均走跳过缓存路径，绝不污染共享执行缓存。
//
// 使用方式:
//
//	contract-exec parse <contract-tx.json>
//	contract-exec trigger <contract-tx.json> [--action name] [--args '{...}']
//	contract-exec condition <contract-tx.json> <transaction|inherit|action:name/arity>
//	contract-exec function <contract-tx.json> <name> [--args '[...]']
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/spf13/cobra"

	contractsconfig "github.com/weisyn/contracts/internal/config/contracts"
	logconfig "github.com/weisyn/contracts/internal/config/log"
	"github.com/weisyn/contracts/internal/core/contracts"
	"github.com/weisyn/contracts/internal/core/contracts/cache"
	"github.com/weisyn/contracts/internal/core/contracts/cast"
	"github.com/weisyn/contracts/internal/core/contracts/conditions"
	"github.com/weisyn/contracts/internal/core/contracts/dispatcher"
	"github.com/weisyn/contracts/internal/core/contracts/engines/interp"
	"github.com/weisyn/contracts/internal/core/contracts/engines/wasm"
	"github.com/weisyn/contracts/internal/core/contracts/invoke"
	"github.com/weisyn/contracts/internal/core/contracts/parse"
	"github.com/weisyn/contracts/internal/core/contracts/seed"
	"github.com/weisyn/contracts/internal/core/eutxo"
	"github.com/weisyn/contracts/internal/core/infrastructure/crypto/rootkey"
	corelog "github.com/weisyn/contracts/internal/core/infrastructure/log"
	ifcontracts "github.com/weisyn/contracts/pkg/interfaces/contracts"
	"github.com/weisyn/contracts/pkg/types"
)

// GlobalFlags 全局标志
type GlobalFlags struct {
	StateFile  string // 合约当前状态文件（覆盖定义交易中的初始状态）
	InputsFile string // 未花费输出集合文件（JSON数组）
	Time       string // 模拟"当前时间"（RFC3339，默认为本地当前时间）
	LogLevel   string // 日志级别
}

var globalFlags GlobalFlags

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "contract-exec",
	Short: "合约执行模拟工具",
	Long: `contract-exec - 合约单次执行模拟

对单个合约定义交易做离线模拟，不接入真实链：
- 解析并校验合约负载（解释型源码或WASM清单）
- 执行触发器并打印规范链效果或类型化失败
- 校验条件并打印裁定
- 调用只读公共函数

所有模拟均跳过执行缓存，时间可用 --time 显式覆盖。`,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ 错误: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.StateFile, "state", "", "合约当前序列化状态文件")
	rootCmd.PersistentFlags().StringVar(&globalFlags.InputsFile, "inputs", "", "未花费输出集合文件（JSON数组）")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Time, "time", "", "模拟当前时间（RFC3339，默认为本地当前时间）")
	rootCmd.PersistentFlags().StringVar(&globalFlags.LogLevel, "log-level", "warn", "日志级别: debug|info|warn|error")

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(conditionCmd)
	rootCmd.AddCommand(functionCmd)
}

func main() {
	Execute()
}

// ============================================================================
//                          模拟环境装配
// ============================================================================

// simulation 单次模拟环境
type simulation struct {
	engine   ifcontracts.Engine
	contract *types.Contract
	inputs   []*types.UnspentOutput
	now      time.Time
	close    func()
}

// newSimulation 从命令行参数装配单次模拟环境
func newSimulation(contractFile string) (*simulation, error) {
	logger, err := corelog.New(logconfig.New(&logconfig.LogOptions{
		Level:     globalFlags.LogLevel,
		ToConsole: true,
	}))
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	contract, err := loadContract(contractFile)
	if err != nil {
		return nil, err
	}

	inputs, err := loadInputs()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if globalFlags.Time != "" {
		now, err = time.Parse(time.RFC3339, globalFlags.Time)
		if err != nil {
			return nil, fmt.Errorf("解析 --time 失败: %w", err)
		}
	}

	cfg := contractsconfig.New(nil)
	caster := cast.New(cfg.StateSizeLimit())
	evaluator := interp.New(logger)

	executor, err := wasm.New(logger, cfg.ModuleMemoryLimitBytes())
	if err != nil {
		return nil, fmt.Errorf("创建WASM模块执行器失败: %w", err)
	}

	ledger := eutxo.NewStaticLedger()
	resolver := eutxo.NewStaticResolver()

	// 模拟用根密钥：仅为联署模拟存在，不承载真实秘密
	cipher, err := rootkey.New([]byte("contract-exec simulation key"))
	if err != nil {
		return nil, fmt.Errorf("创建根密钥加密器失败: %w", err)
	}

	executionCache := cache.New(cfg.CacheTTL(), cfg.CacheMaxSize(), logger)
	engine := contracts.NewEngine(
		logger,
		cfg,
		executionCache,
		dispatcher.New(logger, caster, evaluator, executor, ledger, resolver),
		conditions.New(logger, caster, evaluator, executor, ledger),
		invoke.New(logger, caster, evaluator, executor, ledger, cfg.FunctionBudget()),
		seed.New(logger, cipher, resolver),
		EventBus.New(),
	)

	return &simulation{
		engine:   engine,
		contract: contract,
		inputs:   inputs,
		now:      now,
		close: func() {
			engine.Close()
			_ = executor.Close(context.Background())
		},
	}, nil
}

// loadContract 读取并校验合约定义交易
func loadContract(path string) (*types.Contract, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取合约定义交易失败: %w", err)
	}

	var tx types.Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, fmt.Errorf("解析合约定义交易失败: %w", err)
	}

	contract, err := parse.ValidateAndParse(&tx)
	if err != nil {
		return nil, fmt.Errorf("合约负载校验失败: %w", err)
	}

	if globalFlags.StateFile != "" {
		state, err := os.ReadFile(globalFlags.StateFile)
		if err != nil {
			return nil, fmt.Errorf("读取状态文件失败: %w", err)
		}
		contract.State = state
	}
	return contract, nil
}

// loadInputs 读取未花费输出集合
func loadInputs() ([]*types.UnspentOutput, error) {
	if globalFlags.InputsFile == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(globalFlags.InputsFile)
	if err != nil {
		return nil, fmt.Errorf("读取输入集合失败: %w", err)
	}
	var inputs []*types.UnspentOutput
	if err := json.Unmarshal(raw, &inputs); err != nil {
		return nil, fmt.Errorf("解析输入集合失败: %w", err)
	}
	return inputs, nil
}

// printJSON 以缩进JSON打印结果
func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化结果失败: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
