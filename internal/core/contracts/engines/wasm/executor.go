// Package wasm 提供沙箱合约的WASM模块执行器
//
// 🎯 **核心职责**：
// 在拒绝默认（deny-by-default）的沙箱内执行不可信合约字节码：
// - 无文件系统、无网络、无环境变量、无宿主时钟旁路
// - 内存页数受限，执行由 ctx 截止时间强制终止
// - 模块与引擎之间通过线性内存交换JSON负载
//
// 📋 **模块ABI**：
//   - 导出 allocate(size: i32) -> i32 供引擎写入调用负载
//   - 导出函数 f(ptr: u32, len: u32) -> u64，高32位为结果指针、低32位为长度
//   - 结果为JSON：{update|read|throw, logs}
package wasm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	ifcontracts "github.com/weisyn/contracts/pkg/interfaces/contracts"
	"github.com/weisyn/contracts/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/contracts/pkg/types"
)

// wasmPageSize WASM线性内存页大小（固定64KB）
const wasmPageSize = 65536

// Executor WASM模块执行器，实现 contracts.ModuleExecutor
type Executor struct {
	logger  log.Logger
	runtime wazero.Runtime

	// 进程内编译缓存（字节码哈希 → 已编译模块）
	compiled sync.Map
}

var _ ifcontracts.ModuleExecutor = (*Executor)(nil)

// New 创建WASM模块执行器
//
// 📋 **参数**：
//   - logger: 日志记录器
//   - memoryLimitBytes: 单模块线性内存上限（按64KB页数向下取整）
func New(logger log.Logger, memoryLimitBytes int64) (*Executor, error) {
	pages := memoryLimitBytes / wasmPageSize
	if pages < 1 {
		pages = 1
	}

	ctx := context.Background()
	runtimeConfig := wazero.NewRuntimeConfig().
		WithCompilationCache(wazero.NewCompilationCache()).
		WithCloseOnContextDone(true).
		WithMemoryLimitPages(uint32(pages))

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)

	// WASI以最小面实例化：模块配置不挂载文件系统、不传环境变量，
	// 合约可见的WASI调用面即为空
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("instantiate wasi: %w", err)
	}

	return &Executor{logger: logger, runtime: runtime}, nil
}

// Execute 执行模块导出函数
//
// ⚠️ **核心约束**：ctx 截止时间到达时实例被强制关闭，用户代码无法抗拒取消
func (e *Executor) Execute(ctx context.Context, module []byte, functionName string, call *types.ModuleCall) (*types.ModuleResult, error) {
	compiledModule, err := e.compile(ctx, module)
	if err != nil {
		return nil, err
	}

	moduleConfig := wazero.NewModuleConfig().
		WithName(uuid.NewString()).
		WithStartFunctions()

	instance, err := e.runtime.InstantiateModule(ctx, compiledModule, moduleConfig)
	if err != nil {
		return nil, fmt.Errorf("instantiate module: %w", err)
	}
	defer instance.Close(context.WithoutCancel(ctx))

	fn := instance.ExportedFunction(functionName)
	if fn == nil {
		return nil, fmt.Errorf("module does not export function %q", functionName)
	}
	alloc := instance.ExportedFunction("allocate")
	if alloc == nil {
		return nil, fmt.Errorf("module does not export function \"allocate\"")
	}

	payload, err := encodeCall(call)
	if err != nil {
		return nil, fmt.Errorf("encode call payload: %w", err)
	}

	allocated, err := alloc.Call(ctx, uint64(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("allocate payload memory: %w", err)
	}
	ptr := uint32(allocated[0])
	if !instance.Memory().Write(ptr, payload) {
		return nil, fmt.Errorf("write payload at %d (%d bytes) out of memory range", ptr, len(payload))
	}

	packed, err := fn.Call(ctx, uint64(ptr), uint64(len(payload)))
	if err != nil {
		// 截止时间强制关闭与模块陷阱都走这条路，由上层按 ctx 状态区分
		return nil, fmt.Errorf("call %q: %w", functionName, err)
	}
	if len(packed) != 1 {
		return nil, fmt.Errorf("function %q returned %d values, want packed u64", functionName, len(packed))
	}

	outPtr, outLen := splitPacked(packed[0])
	raw, ok := instance.Memory().Read(outPtr, outLen)
	if !ok {
		return nil, fmt.Errorf("read result at %d (%d bytes) out of memory range", outPtr, outLen)
	}

	return decodeResult(raw)
}

// ListExportedFunctions 列出模块导出函数名集合
func (e *Executor) ListExportedFunctions(module []byte) (map[string]struct{}, error) {
	compiledModule, err := e.compile(context.Background(), module)
	if err != nil {
		return nil, err
	}

	exports := make(map[string]struct{})
	for name := range compiledModule.ExportedFunctions() {
		exports[name] = struct{}{}
	}
	return exports, nil
}

// Close 关闭运行时并释放全部编译产物
func (e *Executor) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// compile 编译模块（带进程内缓存）
func (e *Executor) compile(ctx context.Context, module []byte) (wazero.CompiledModule, error) {
	if len(module) == 0 {
		return nil, fmt.Errorf("empty module bytecode")
	}

	sum := sha256.Sum256(module)
	key := hex.EncodeToString(sum[:])

	if cached, ok := e.compiled.Load(key); ok {
		return cached.(wazero.CompiledModule), nil
	}

	compiledModule, err := e.runtime.CompileModule(ctx, module)
	if err != nil {
		return nil, fmt.Errorf("compile module: %w", err)
	}

	e.compiled.Store(key, compiledModule)
	return compiledModule, nil
}

// splitPacked 拆分打包的u64返回值（高32位为结果指针，低32位为长度）
func splitPacked(packed uint64) (ptr, length uint32) {
	return uint32(packed >> 32), uint32(packed)
}

// ============================================================================
//                              线格式编解码
// ============================================================================

// wireCall 调用负载的线格式
type wireCall struct {
	Input       map[string]interface{} `json:"input,omitempty"`
	State       json.RawMessage        `json:"state,omitempty"`
	Balance     *types.BalanceSnapshot `json:"balance,omitempty"`
	Transaction *types.Transaction     `json:"transaction,omitempty"`
	Now         int64                  `json:"now"`
}

// wireResult 模块结果的线格式
type wireResult struct {
	Update *wireUpdate        `json:"update,omitempty"`
	Read   *wireRead          `json:"read,omitempty"`
	Throw  *types.ThrownValue `json:"throw,omitempty"`
	Logs   []string           `json:"logs,omitempty"`
}

// wireUpdate 更新形态
type wireUpdate struct {
	State       json.RawMessage    `json:"state,omitempty"`
	Transaction *types.Transaction `json:"transaction,omitempty"`
}

// wireRead 只读形态
type wireRead struct {
	Value interface{} `json:"value,omitempty"`
}

// encodeCall 编码调用负载
func encodeCall(call *types.ModuleCall) ([]byte, error) {
	if call == nil {
		call = &types.ModuleCall{Now: time.Unix(0, 0)}
	}
	wire := wireCall{
		Input:       call.Input,
		Balance:     call.Balance,
		Transaction: call.Transaction,
		Now:         call.Now.Unix(),
	}
	if len(call.State) > 0 {
		wire.State = json.RawMessage(call.State)
	}
	return json.Marshal(&wire)
}

// decodeResult 解码模块结果
//
// 模块主动抛出（throw）以 *types.Fault 形态的错误返回，
// 由铸型器转换为 contract_throw。
func decodeResult(raw []byte) (*types.ModuleResult, error) {
	var wire wireResult
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode module result: %w", err)
	}

	if wire.Throw != nil {
		return nil, &types.Fault{
			Thrown:  wire.Throw,
			Message: wire.Throw.Message,
			Logs:    wire.Logs,
		}
	}

	result := &types.ModuleResult{}
	if wire.Update != nil {
		result.Update = &types.ModuleUpdate{
			State:       []byte(wire.Update.State),
			Transaction: wire.Update.Transaction,
			Logs:        wire.Logs,
		}
	}
	if wire.Read != nil {
		result.Read = &types.ModuleRead{
			Value: wire.Read.Value,
			Logs:  wire.Logs,
		}
	}
	return result, nil
}
