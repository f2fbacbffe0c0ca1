// Package cast 提供后端原始结果到执行结局的铸型
//
// 🎯 **核心职责**：
// 两种后端（解释型求值器 / 沙箱模块）的原始输出形态互不相同，
// 铸型器把它们收敛为同一个规范结局：
//  1. 后端成功返回新状态/日志，可带可不带显式下一笔交易
//  2. 空状态槽位归一化为"无状态"
//  3. 非空状态超过大小上限时整个结果转换为 state_exceed_threshold
//     （日志保留，候选交易丢弃）
//  4. 状态逐字节相同且无显式交易 → 无交易效果（纯调用，日志保留）
//  5. 状态变更但无显式交易 → 合成仅携带前代代码的交易外壳
//  6. 显式交易原样采纳，但若不携带合约负载则把前代代码复制进去，
//     链上代码绝不静默丢失
//  7. 后端故障连同调用栈转换为类型化失败：用户抛出 → contract_throw，
//     其余 → execution_raise（可判定时附加源行后缀）
//
// ⚠️ **核心约束**：
//   - 引擎绝不伪造交易来掩盖无操作调用
//   - 效果是完整的或不存在的，绝无半应用状态
package cast

import (
	"bytes"
	"fmt"

	"github.com/weisyn/contracts/pkg/types"
)

// Caster 结果铸型器
type Caster struct {
	stateSizeLimit int
}

// New 创建结果铸型器
func New(stateSizeLimit int) *Caster {
	return &Caster{stateSizeLimit: stateSizeLimit}
}

// FromEval 铸型解释型后端的触发器结果
func (c *Caster) FromEval(result *types.EvalResult, contract *types.Contract) *types.Outcome {
	if result == nil {
		return types.OutcomeFromFailure(types.NewFailure(
			types.FailureInvalidTriggerOutput, "backend returned no result"))
	}
	return c.castUpdate(result.State, result.Transaction, result.Logs, contract)
}

// FromModule 铸型沙箱后端的触发器结果
//
// 触发器路径只接受更新形态；只读形态（Read）是后端契约违规。
func (c *Caster) FromModule(result *types.ModuleResult, contract *types.Contract) *types.Outcome {
	if result == nil || (result.Update == nil && result.Read == nil) {
		return types.OutcomeFromFailure(types.NewFailure(
			types.FailureInvalidTriggerOutput, "module returned no result"))
	}
	if result.Update == nil {
		var logs []string
		if result.Read != nil {
			logs = result.Read.Logs
		}
		return types.OutcomeFromFailure(types.NewFailure(
			types.FailureInvalidTriggerOutput,
			"module returned a read-only result on the trigger path").WithLogs(logs))
	}
	return c.castUpdate(result.Update.State, result.Update.Transaction, result.Update.Logs, contract)
}

// FromFault 把后端故障转换为类型化失败
func (c *Caster) FromFault(fault *types.Fault) *types.Failure {
	if fault == nil {
		return types.NewFailure(types.FailureExecutionRaise, "unknown backend fault")
	}

	if fault.Thrown != nil {
		return types.NewFailure(types.FailureContractThrow, fault.Thrown.Message).
			WithData(fault.Thrown).
			WithLogs(fault.Logs).
			WithStacktrace(fault.Stacktrace)
	}

	message := fault.Message
	if fault.Line > 0 {
		message = fmt.Sprintf("%s (line %d)", message, fault.Line)
	}
	return types.NewFailure(types.FailureExecutionRaise, message).
		WithLogs(fault.Logs).
		WithStacktrace(fault.Stacktrace)
}

// castUpdate 更新形态的铸型状态机
func (c *Caster) castUpdate(state []byte, next *types.Transaction, logs []string, contract *types.Contract) *types.Outcome {
	// 空状态槽位归一化为"无状态"
	if len(state) == 0 {
		state = nil
	}

	prev := contract.State
	if len(prev) == 0 {
		prev = nil
	}

	if state == nil && next == nil {
		if prev == nil {
			// 前后都无状态：纯调用
			return types.OutcomeFromEffect(&types.ChainEffect{Logs: logs})
		}
		return types.OutcomeFromFailure(types.NewFailure(
			types.FailureInvalidTriggerOutput,
			"backend returned neither transaction nor state").WithLogs(logs))
	}

	if state != nil {
		// 恰好等于上限的状态通过，超出即整体转换为失败
		if len(state) > c.stateSizeLimit {
			return types.OutcomeFromFailure(types.NewFailure(
				types.FailureStateExceedThreshold,
				fmt.Sprintf("contract state size %d exceeds threshold %d", len(state), c.stateSizeLimit),
			).WithLogs(logs))
		}

		if next == nil && bytes.Equal(state, prev) {
			// 无操作调用：空编码状态，而非对未变状态的重新序列化
			return types.OutcomeFromEffect(&types.ChainEffect{Logs: logs})
		}

		if next == nil {
			// 合成空交易外壳：只携带前代代码（由下方复制），
			// 其余字段由验证流水线后续填充
			next = &types.Transaction{Type: "contract"}
		}
	}

	c.carryCodeForward(next, contract)

	return types.OutcomeFromEffect(&types.ChainEffect{
		EncodedState:    state,
		Logs:            logs,
		NextTransaction: next,
	})
}

// carryCodeForward 把前代合约代码复制进不携带合约负载的交易
func (c *Caster) carryCodeForward(next *types.Transaction, contract *types.Contract) {
	if next == nil || next.HasContractPayload() {
		return
	}

	switch contract.Variant {
	case types.VariantInterpreted:
		next.Data.Code = contract.Code
	case types.VariantSandboxed:
		payload := &types.ContractPayload{Bytecode: contract.Bytecode}
		if contract.Transaction != nil && contract.Transaction.Data.Contract != nil {
			payload.Manifest = contract.Transaction.Data.Contract.Manifest
		}
		next.Data.Contract = payload
	}
}
