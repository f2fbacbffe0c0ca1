// Package invoke 提供公共函数调用功能
//
// 🎯 **核心职责**：
// 只读的公共函数调用路径（交互式查询）：
// - 存在性与可见性检查先于一切参数校验
// - 解释型调用在独立工作协程上运行，墙钟预算默认500毫秒，
//   超支强制取消并降级为 function_timeout
// - panic 被捕获并转换为类型化失败，绝不向上传播
//
// ⚠️ **核心约束**：函数调用绝不产生状态或交易
package invoke

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/weisyn/contracts/internal/core/contracts/cast"
	"github.com/weisyn/contracts/internal/core/contracts/schema"
	ifcontracts "github.com/weisyn/contracts/pkg/interfaces/contracts"
	"github.com/weisyn/contracts/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/contracts/pkg/types"
)

// Invoker 函数调用器
type Invoker struct {
	logger  log.Logger
	caster  *cast.Caster
	interp  ifcontracts.InterpretedEvaluator
	modules ifcontracts.ModuleExecutor
	ledger  ifcontracts.BalanceLedger
	budget  time.Duration
}

// New 创建函数调用器
func New(
	logger log.Logger,
	caster *cast.Caster,
	interp ifcontracts.InterpretedEvaluator,
	modules ifcontracts.ModuleExecutor,
	ledger ifcontracts.BalanceLedger,
	budget time.Duration,
) *Invoker {
	return &Invoker{
		logger:  logger,
		caster:  caster,
		interp:  interp,
		modules: modules,
		ledger:  ledger,
		budget:  budget,
	}
}

// Execute 调用公共函数
func (i *Invoker) Execute(ctx context.Context, req *ifcontracts.FunctionRequest) (*types.FunctionValue, *types.Failure) {
	contract := req.Contract

	spec, ok := contract.FindFunction(req.Function, len(req.Args))
	if !ok {
		return nil, types.NewFailure(types.FailureFunctionDoesNotExist,
			fmt.Sprintf("contract declares no function %s/%d", req.Function, len(req.Args)))
	}

	// 可见性先于参数合法性
	if spec.Visibility == types.FunctionPrivate {
		return nil, types.NewFailure(types.FailureFunctionIsPrivate,
			fmt.Sprintf("function %s/%d is private", req.Function, len(req.Args)))
	}

	budgetCtx, cancel := context.WithTimeout(ctx, i.budget)
	defer cancel()

	switch contract.Variant {
	case types.VariantInterpreted:
		return i.executeInterpreted(budgetCtx, req)
	case types.VariantSandboxed:
		return i.executeSandboxed(budgetCtx, req, spec)
	default:
		return nil, types.NewFailure(types.FailureExecutionRaise,
			fmt.Sprintf("unknown contract variant %q", contract.Variant))
	}
}

// executeInterpreted 在受预算保护的工作协程上运行解释型函数体
func (i *Invoker) executeInterpreted(ctx context.Context, req *ifcontracts.FunctionRequest) (*types.FunctionValue, *types.Failure) {
	constants := &types.Constants{
		Contract: req.Contract,
		Now:      time.Now().UTC(),
		State:    req.Contract.State,
		Balance:  i.ledger.GetBalance(req.Inputs),
	}

	type evalOutput struct {
		result *types.EvalResult
		fault  *types.Fault
	}

	resultCh := make(chan evalOutput, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- evalOutput{fault: &types.Fault{
					Message:    fmt.Sprintf("panic in function body: %v", r),
					Stacktrace: string(debug.Stack()),
				}}
			}
		}()
		result, fault := i.interp.ExecuteFunction(ctx, req.Function, req.Args, constants)
		resultCh <- evalOutput{result: result, fault: fault}
	}()

	select {
	case out := <-resultCh:
		if out.fault != nil {
			return nil, i.failureFromFault(ctx, out.fault)
		}
		return &types.FunctionValue{Value: out.result.Value, Logs: out.result.Logs}, nil

	case <-ctx.Done():
		return nil, i.timeoutFailure()
	}
}

// executeSandboxed 调用沙箱合约的导出函数
func (i *Invoker) executeSandboxed(ctx context.Context, req *ifcontracts.FunctionRequest, spec *types.FunctionSpec) (*types.FunctionValue, *types.Failure) {
	input, failure := namedInput(req.Args)
	if failure != nil {
		return nil, failure
	}

	if err := schema.ValidateArgs(spec.InputSchema, input); err != nil {
		return nil, types.NewFailure(types.FailureInvalidFunctionCall,
			fmt.Sprintf("function input rejected by declared schema: %v", err))
	}

	call := &types.ModuleCall{
		Input:   input,
		State:   req.Contract.State,
		Balance: i.ledger.GetBalance(req.Inputs),
		Now:     time.Now().UTC(),
	}

	result, err := i.modules.Execute(ctx, req.Contract.Bytecode, req.Function, call)
	if err != nil {
		return nil, i.failureFromError(ctx, err)
	}
	if result == nil || result.Read == nil {
		return nil, types.NewFailure(types.FailureExecutionRaise,
			"function produced a state update on the read-only path")
	}

	return &types.FunctionValue{Value: result.Read.Value, Logs: result.Read.Logs}, nil
}

// namedInput 把调用参数归一化为命名参数映射
//
// 沙箱函数只接受命名参数：零参数或单个映射参数，位置参数是调用违规。
func namedInput(args []interface{}) (map[string]interface{}, *types.Failure) {
	switch len(args) {
	case 0:
		return nil, nil
	case 1:
		if m, ok := args[0].(map[string]interface{}); ok {
			return m, nil
		}
		return nil, types.NewFailure(types.FailureInvalidFunctionCall,
			"sandboxed function arguments must be a named map")
	default:
		return nil, types.NewFailure(types.FailureInvalidFunctionCall,
			"sandboxed function does not accept positional arguments")
	}
}

// failureFromFault 把后端故障收敛为类型化失败
func (i *Invoker) failureFromFault(ctx context.Context, fault *types.Fault) *types.Failure {
	if ctx.Err() != nil {
		return i.timeoutFailure()
	}
	return i.caster.FromFault(fault)
}

// failureFromError 把后端错误收敛为类型化失败
func (i *Invoker) failureFromError(ctx context.Context, err error) *types.Failure {
	if ctx.Err() != nil {
		return i.timeoutFailure()
	}
	var fault *types.Fault
	if errors.As(err, &fault) {
		return i.caster.FromFault(fault)
	}
	return types.NewFailure(types.FailureExecutionRaise, err.Error())
}

// timeoutFailure 预算超支失败
func (i *Invoker) timeoutFailure() *types.Failure {
	return types.NewFailure(types.FailureFunctionTimeout,
		fmt.Sprintf("function call exceeded budget of %s", i.budget))
}
