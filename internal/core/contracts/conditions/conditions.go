// Package conditions 提供条件校验功能
//
// 🎯 **核心职责**：
// - inherit 条件看到"投影后继状态"：移除交易账本操作已消费的输入、
//   追加新产生的输出，调用前与投影后继两个合约视图同时暴露，
//   条件体可以断言前后不变量
// - 非 inherit 条件只看到触发交易与当前合约视图
//
// 📋 **缺失条件策略**：
//   - 解释型：未声明的 inherit 默认通过；未声明的其余种类 → missing_condition
//   - 沙箱：只有 inherit 经可选的 onInherit 导出运行，未导出即通过；
//     其余种类平凡通过
package conditions

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/weisyn/contracts/internal/core/contracts/cast"
	ifcontracts "github.com/weisyn/contracts/pkg/interfaces/contracts"
	"github.com/weisyn/contracts/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/contracts/pkg/types"
)

// exportOnInherit 沙箱合约的后继条件钩子导出名
const exportOnInherit = "onInherit"

// Evaluator 条件求值器
type Evaluator struct {
	logger  log.Logger
	caster  *cast.Caster
	interp  ifcontracts.InterpretedEvaluator
	modules ifcontracts.ModuleExecutor
	ledger  ifcontracts.BalanceLedger
}

// New 创建条件求值器
func New(
	logger log.Logger,
	caster *cast.Caster,
	interp ifcontracts.InterpretedEvaluator,
	modules ifcontracts.ModuleExecutor,
	ledger ifcontracts.BalanceLedger,
) *Evaluator {
	return &Evaluator{
		logger:  logger,
		caster:  caster,
		interp:  interp,
		modules: modules,
		ledger:  ledger,
	}
}

// Execute 执行条件校验的真实调用（缓存包装由引擎完成）
func (e *Evaluator) Execute(ctx context.Context, req *ifcontracts.ConditionRequest) (*types.Verdict, *types.Failure) {
	switch req.Contract.Variant {
	case types.VariantInterpreted:
		return e.executeInterpreted(ctx, req)
	case types.VariantSandboxed:
		return e.executeSandboxed(ctx, req)
	default:
		return nil, types.NewFailure(types.FailureExecutionRaise,
			fmt.Sprintf("unknown contract variant %q", req.Contract.Variant))
	}
}

// executeInterpreted 解释型后端的条件校验
func (e *Evaluator) executeInterpreted(ctx context.Context, req *ifcontracts.ConditionRequest) (*types.Verdict, *types.Failure) {
	constants := &types.Constants{
		Contract:    req.Contract,
		Transaction: req.IncomingTx,
		Args:        recipientArgs(req.Recipient),
		Now:         req.ValidationTime,
		State:       req.Contract.State,
		Balance:     e.ledger.GetBalance(req.Inputs),
	}

	if req.Condition.Kind == types.ConditionInherit {
		projected := ProjectInputs(req.Inputs, req.IncomingTx, req.Contract.Address())
		constants.Balance = e.ledger.GetBalance(projected)
		constants.NextContract = projectedNextContract(req.Contract, req.IncomingTx)
	}

	result, fault := e.interp.ExecuteCondition(ctx, req.Condition, constants)
	if fault != nil {
		return nil, e.failureFromFault(ctx, fault)
	}

	if !result.Declared {
		if req.Condition.Kind == types.ConditionInherit {
			// 未声明的 inherit 条件默认通过
			return &types.Verdict{Valid: true}, nil
		}
		return nil, types.NewFailure(types.FailureMissingCondition,
			fmt.Sprintf("contract does not declare condition %s", req.Condition.Key()))
	}

	return &types.Verdict{Valid: result.Valid, Subject: result.Subject, Logs: result.Logs}, nil
}

// executeSandboxed 沙箱后端的条件校验
func (e *Evaluator) executeSandboxed(ctx context.Context, req *ifcontracts.ConditionRequest) (*types.Verdict, *types.Failure) {
	if req.Condition.Kind != types.ConditionInherit {
		return &types.Verdict{Valid: true}, nil
	}

	exports, err := e.modules.ListExportedFunctions(req.Contract.Bytecode)
	if err != nil {
		return nil, e.failureFromError(ctx, err)
	}
	if _, ok := exports[exportOnInherit]; !ok {
		// 钩子未导出即通过
		return &types.Verdict{Valid: true}, nil
	}

	projected := ProjectInputs(req.Inputs, req.IncomingTx, req.Contract.Address())
	call := &types.ModuleCall{
		State:       req.Contract.State,
		Balance:     e.ledger.GetBalance(projected),
		Transaction: req.IncomingTx,
		Now:         req.ValidationTime,
	}

	result, err := e.modules.Execute(ctx, req.Contract.Bytecode, exportOnInherit, call)
	if err != nil {
		return nil, e.failureFromError(ctx, err)
	}
	if result == nil || result.Read == nil {
		return nil, types.NewFailure(types.FailureExecutionRaise,
			"inherit hook produced a state update instead of a verdict")
	}

	return decodeVerdict(result.Read)
}

// decodeVerdict 解码 onInherit 钩子的裁定值
//
// 接受布尔值或 {"valid": bool, "subject": string} 映射。
func decodeVerdict(read *types.ModuleRead) (*types.Verdict, *types.Failure) {
	switch v := read.Value.(type) {
	case bool:
		verdict := &types.Verdict{Valid: v, Logs: read.Logs}
		if !v {
			verdict.Subject = "inherit"
		}
		return verdict, nil

	case map[string]interface{}:
		valid, _ := v["valid"].(bool)
		subject, _ := v["subject"].(string)
		if !valid && subject == "" {
			subject = "inherit"
		}
		return &types.Verdict{Valid: valid, Subject: subject, Logs: read.Logs}, nil

	default:
		return nil, types.NewFailure(types.FailureExecutionRaise,
			fmt.Sprintf("inherit hook returned verdict of unsupported type %T", read.Value)).WithLogs(read.Logs)
	}
}

// failureFromFault 把后端故障收敛为类型化失败
func (e *Evaluator) failureFromFault(ctx context.Context, fault *types.Fault) *types.Failure {
	if ctx.Err() != nil {
		return types.NewFailure(types.FailureExecutionTimeout, "condition check exceeded deadline")
	}
	return e.caster.FromFault(fault)
}

// failureFromError 把后端错误收敛为类型化失败
func (e *Evaluator) failureFromError(ctx context.Context, err error) *types.Failure {
	if ctx.Err() != nil {
		return types.NewFailure(types.FailureExecutionTimeout, "condition check exceeded deadline")
	}
	var fault *types.Fault
	if errors.As(err, &fault) {
		return e.caster.FromFault(fault)
	}
	return types.NewFailure(types.FailureExecutionRaise, err.Error())
}

// ============================================================================
//                            后继状态投影
// ============================================================================

// ProjectInputs 构造投影后继输入集合
//
// 📋 **投影规则**：
//  1. 输入按 (时间戳, 来源) 排序保证确定性
//  2. 贪心移除被交易转出额覆盖的输入（原生与各代币分别结算）
//  3. 追加交易转给合约自身的新输出
func ProjectInputs(inputs []*types.UnspentOutput, tx *types.Transaction, contractAddr types.Address) []*types.UnspentOutput {
	sorted := make([]*types.UnspentOutput, len(inputs))
	copy(sorted, inputs)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].From.Hex() < sorted[j].From.Hex()
	})

	// 按资产归集转出总额
	consumed := map[string]uint64{}
	if tx != nil {
		for _, transfer := range tx.Data.Ledger.Transfers {
			consumed[transfer.TokenAddress.Hex()] += transfer.Amount
		}
	}

	projected := make([]*types.UnspentOutput, 0, len(sorted))
	for _, in := range sorted {
		asset := in.TokenAddress.Hex()
		if remaining := consumed[asset]; remaining > 0 {
			if in.Amount <= remaining {
				consumed[asset] = remaining - in.Amount
				continue
			}
			// 部分消费：剩余额以新输出形态保留
			kept := *in
			kept.Amount = in.Amount - remaining
			consumed[asset] = 0
			projected = append(projected, &kept)
			continue
		}
		projected = append(projected, in)
	}

	// 追加交易转给合约自身的新输出
	if tx != nil && !contractAddr.IsZero() {
		for _, transfer := range tx.Data.Ledger.Transfers {
			if transfer.To.Equal(contractAddr) {
				produced := &types.UnspentOutput{
					From:         tx.Address,
					Amount:       transfer.Amount,
					TokenAddress: transfer.TokenAddress,
					Timestamp:    tx.ValidationTime,
				}
				if transfer.TokenAddress.IsZero() {
					produced.Type = "native"
				} else {
					produced.Type = "token"
				}
				projected = append(projected, produced)
			}
		}
	}

	return projected
}

// projectedNextContract 构造投影后继合约视图
//
// 后继视图与当前视图共享代码与状态快照，定义交易替换为候选后继交易。
func projectedNextContract(contract *types.Contract, next *types.Transaction) *types.Contract {
	if next == nil {
		return contract
	}
	clone := *contract
	clone.Transaction = next
	return &clone
}

// recipientArgs 接收方条目的命名参数（nil安全）
func recipientArgs(recipient *types.Recipient) map[string]interface{} {
	if recipient == nil {
		return nil
	}
	return recipient.Args
}
