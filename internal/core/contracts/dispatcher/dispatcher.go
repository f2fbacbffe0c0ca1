// Package dispatcher 提供触发器分发功能
//
// 🎯 **核心职责**：
// - 按触发器种类解析"当前时间"（交易/预言机=验证时间，定时=目标时间点，
//   周期=当前cron窗口起点，调用方可显式覆盖）
// - 升级触发器的授权与迁移（策略检查 → 来源链授权 → 参数校验 → 迁移钩子）
// - 把调用分发到对应后端并经铸型器收敛为规范结局
//
// ⚠️ **核心约束**：
// - 任何后端故障都不得未经捕获地向上传播
// - 截止时间到达时后端被强制终止，结局降级为 execution_timeout
package dispatcher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"github.com/weisyn/contracts/internal/core/contracts/cast"
	"github.com/weisyn/contracts/internal/core/contracts/parse"
	"github.com/weisyn/contracts/internal/core/contracts/schema"
	ifcontracts "github.com/weisyn/contracts/pkg/interfaces/contracts"
	"github.com/weisyn/contracts/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/contracts/pkg/types"
)

// UpgradeAction 升级触发器的保留动作名
const UpgradeAction = "upgrade"

// 沙箱模块的保留导出函数名
const (
	exportOnTransaction = "onTransaction"
	exportOnOracle      = "onOracle"
	exportOnDatetime    = "onDatetime"
	exportOnInterval    = "onInterval"
	exportOnUpgrade     = "onUpgrade"
)

// Dispatcher 触发器分发器
type Dispatcher struct {
	logger   log.Logger
	caster   *cast.Caster
	interp   ifcontracts.InterpretedEvaluator
	modules  ifcontracts.ModuleExecutor
	ledger   ifcontracts.BalanceLedger
	resolver ifcontracts.ChainResolver
}

// New 创建触发器分发器
func New(
	logger log.Logger,
	caster *cast.Caster,
	interp ifcontracts.InterpretedEvaluator,
	modules ifcontracts.ModuleExecutor,
	ledger ifcontracts.BalanceLedger,
	resolver ifcontracts.ChainResolver,
) *Dispatcher {
	return &Dispatcher{
		logger:   logger,
		caster:   caster,
		interp:   interp,
		modules:  modules,
		ledger:   ledger,
		resolver: resolver,
	}
}

// ResolveNow 按触发器种类解析"当前时间"
//
// 📋 **解析规则**：
//   - 显式覆盖（opts.Time）优先，且在验证时间尚不存在时必须提供
//   - transaction/oracle: 触发交易的验证时间
//   - datetime: 触发器声明的目标时间点
//   - interval: 当前cron窗口的起点
func ResolveNow(trigger types.TriggerID, incoming *types.Transaction, opts ifcontracts.ExecOptions) (time.Time, error) {
	if !opts.Time.IsZero() {
		return opts.Time, nil
	}

	switch trigger.Kind {
	case types.TriggerTransaction, types.TriggerOracle:
		if incoming != nil && !incoming.ValidationTime.IsZero() {
			return incoming.ValidationTime, nil
		}
		return time.Time{}, fmt.Errorf("trigger %s: no validation time and no explicit override", trigger.Key())

	case types.TriggerDatetime:
		if trigger.At.IsZero() {
			return time.Time{}, fmt.Errorf("datetime trigger without target time")
		}
		return trigger.At, nil

	case types.TriggerInterval:
		windowStart, err := gronx.PrevTickBefore(trigger.Interval, time.Now().UTC(), true)
		if err != nil {
			return time.Time{}, fmt.Errorf("interval trigger %q: %w", trigger.Interval, err)
		}
		return windowStart, nil

	default:
		return time.Time{}, fmt.Errorf("unknown trigger kind %q", trigger.Kind)
	}
}

// Execute 执行触发器的真实调用（缓存包装由引擎完成）
func (d *Dispatcher) Execute(ctx context.Context, req *ifcontracts.TriggerRequest, now time.Time) *types.Outcome {
	contract := req.Contract

	// 升级触发器不要求出现在能力表中，先于存在性检查处理
	if isUpgrade(req.Trigger) {
		return d.executeUpgrade(ctx, req, now)
	}

	spec, ok := contract.FindTrigger(req.Trigger)
	if !ok {
		return types.OutcomeFromFailure(types.NewFailure(
			types.FailureTriggerNotExists,
			fmt.Sprintf("contract does not declare trigger %s", req.Trigger.Key())))
	}

	args := recipientArgs(req.Recipient)

	// 失败分类封闭，触发器没有专属的参数模式失败种类，
	// 模式违规作为后端层面的故障呈现
	if err := schema.ValidateArgs(spec.InputSchema, args); err != nil {
		return types.OutcomeFromFailure(types.NewFailure(
			types.FailureExecutionRaise,
			fmt.Sprintf("trigger input rejected by declared schema: %v", err)))
	}

	switch contract.Variant {
	case types.VariantInterpreted:
		return d.executeInterpreted(ctx, req, args, now)
	case types.VariantSandboxed:
		return d.executeSandboxed(ctx, req, args, now)
	default:
		return types.OutcomeFromFailure(types.NewFailure(
			types.FailureExecutionRaise,
			fmt.Sprintf("unknown contract variant %q", contract.Variant)))
	}
}

// executeInterpreted 分发到解释型后端
func (d *Dispatcher) executeInterpreted(ctx context.Context, req *ifcontracts.TriggerRequest, args map[string]interface{}, now time.Time) *types.Outcome {
	constants := &types.Constants{
		Contract:    req.Contract,
		Transaction: req.IncomingTx,
		Args:        args,
		Now:         now,
		State:       req.Contract.State,
		Balance:     d.ledger.GetBalance(req.Inputs),
		SeedRef:     seedRef(req.Contract),
	}

	result, fault := d.interp.ExecuteTrigger(ctx, req.Trigger, constants)
	if fault != nil {
		return d.faultOutcome(ctx, fault)
	}
	return d.caster.FromEval(result, req.Contract)
}

// executeSandboxed 分发到沙箱后端
func (d *Dispatcher) executeSandboxed(ctx context.Context, req *ifcontracts.TriggerRequest, args map[string]interface{}, now time.Time) *types.Outcome {
	call := &types.ModuleCall{
		Input:       args,
		State:       req.Contract.State,
		Balance:     d.ledger.GetBalance(req.Inputs),
		Transaction: req.IncomingTx,
		Now:         now,
	}

	result, err := d.modules.Execute(ctx, req.Contract.Bytecode, exportNameFor(req.Trigger), call)
	if err != nil {
		return d.errorOutcome(ctx, err)
	}
	return d.caster.FromModule(result, req.Contract)
}

// ============================================================================
//                              升级触发器
// ============================================================================

// executeUpgrade 处理升级触发器
//
// 📋 **步骤**：
//  1. 合约必须声明升级策略，否则 upgrade_not_supported
//  2. 调用方的根链地址必须等于策略声明的来源链，否则 upgrade_not_authorized
//  3. 参数必须携带合法的替换字节码（及可选清单），否则 invalid_upgrade_params
//  4. 新字节码导出 onUpgrade 时执行状态迁移，未导出时状态原样延续
func (d *Dispatcher) executeUpgrade(ctx context.Context, req *ifcontracts.TriggerRequest, now time.Time) *types.Outcome {
	contract := req.Contract

	if contract.Variant != types.VariantSandboxed || contract.UpgradePolicy == nil {
		return types.OutcomeFromFailure(types.NewFailure(
			types.FailureUpgradeNotSupported,
			"contract does not declare an upgrade policy"))
	}

	if req.IncomingTx == nil {
		return types.OutcomeFromFailure(types.NewFailure(
			types.FailureInvalidUpgradeParams, "upgrade without triggering transaction"))
	}

	root, err := d.resolver.FetchRootAddress(ctx, req.IncomingTx.Address)
	if err != nil {
		return d.errorOutcome(ctx, fmt.Errorf("resolve caller root address: %w", err))
	}
	if !root.Equal(contract.UpgradePolicy.From) {
		return types.OutcomeFromFailure(types.NewFailure(
			types.FailureUpgradeNotAuthorized,
			fmt.Sprintf("caller chain %s is not the declared upgrade origin", root.Hex())))
	}

	upgradeTx, failure := d.buildUpgradeTransaction(contract, recipientArgs(req.Recipient))
	if failure != nil {
		return types.OutcomeFromFailure(failure)
	}
	newBytecode := upgradeTx.Data.Contract.Bytecode

	exports, err := d.modules.ListExportedFunctions(newBytecode)
	if err != nil {
		return d.errorOutcome(ctx, fmt.Errorf("inspect replacement bytecode: %w", err))
	}

	// 迁移钩子缺失时状态原样延续
	migrated := contract.State
	var logs []string
	if _, ok := exports[exportOnUpgrade]; ok {
		call := &types.ModuleCall{
			State:   contract.State,
			Balance: d.ledger.GetBalance(req.Inputs),
			Now:     now,
		}
		result, err := d.modules.Execute(ctx, newBytecode, exportOnUpgrade, call)
		if err != nil {
			return d.errorOutcome(ctx, err)
		}
		if result == nil || result.Update == nil {
			return types.OutcomeFromFailure(types.NewFailure(
				types.FailureInvalidTriggerOutput,
				"migration hook returned no update"))
		}
		migrated = result.Update.State
		logs = result.Update.Logs
	}

	return d.caster.FromModule(&types.ModuleResult{
		Update: &types.ModuleUpdate{
			State:       migrated,
			Transaction: upgradeTx,
			Logs:        logs,
		},
	}, contract)
}

// buildUpgradeTransaction 从升级参数构造替换交易并校验其良构性
func (d *Dispatcher) buildUpgradeTransaction(contract *types.Contract, args map[string]interface{}) (*types.Transaction, *types.Failure) {
	encoded, ok := args["bytecode"].(string)
	if !ok || encoded == "" {
		return nil, types.NewFailure(types.FailureInvalidUpgradeParams, "upgrade params carry no bytecode")
	}
	bytecode, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(bytecode) == 0 {
		return nil, types.NewFailure(types.FailureInvalidUpgradeParams, "upgrade bytecode is not valid base64")
	}

	payload := &types.ContractPayload{Bytecode: bytecode}
	if rawManifest, ok := args["manifest"]; ok {
		encodedManifest, err := encodeManifest(rawManifest)
		if err != nil {
			return nil, types.NewFailure(types.FailureInvalidUpgradeParams,
				fmt.Sprintf("upgrade manifest is not valid JSON: %v", err))
		}
		payload.Manifest = encodedManifest
	} else if contract.Transaction != nil && contract.Transaction.Data.Contract != nil {
		payload.Manifest = contract.Transaction.Data.Contract.Manifest
	}

	upgradeTx := &types.Transaction{
		Type: "contract",
		Data: types.TransactionData{Contract: payload},
	}

	if _, err := parse.ValidateAndParse(upgradeTx); err != nil {
		return nil, types.NewFailure(types.FailureInvalidUpgradeParams,
			fmt.Sprintf("replacement contract payload rejected: %v", err))
	}

	return upgradeTx, nil
}

// ============================================================================
//                              辅助函数
// ============================================================================

// faultOutcome 把后端故障收敛为结局
func (d *Dispatcher) faultOutcome(ctx context.Context, fault *types.Fault) *types.Outcome {
	if ctx.Err() != nil {
		return timeoutOutcome()
	}
	return types.OutcomeFromFailure(d.caster.FromFault(fault))
}

// errorOutcome 把后端错误收敛为结局
//
// 截止时间到达与模块陷阱都以错误形态返回，按 ctx 状态区分。
func (d *Dispatcher) errorOutcome(ctx context.Context, err error) *types.Outcome {
	if ctx.Err() != nil {
		return timeoutOutcome()
	}
	var fault *types.Fault
	if errors.As(err, &fault) {
		return types.OutcomeFromFailure(d.caster.FromFault(fault))
	}
	return types.OutcomeFromFailure(types.NewFailure(types.FailureExecutionRaise, err.Error()))
}

// timeoutOutcome 超时结局
func timeoutOutcome() *types.Outcome {
	return types.OutcomeFromFailure(types.NewFailure(
		types.FailureExecutionTimeout, "trigger execution exceeded deadline"))
}

// isUpgrade 触发器是否为升级触发器
func isUpgrade(trigger types.TriggerID) bool {
	return trigger.Kind == types.TriggerTransaction && trigger.Action == UpgradeAction
}

// exportNameFor 触发器对应的沙箱导出函数名
func exportNameFor(trigger types.TriggerID) string {
	switch trigger.Kind {
	case types.TriggerTransaction:
		if trigger.Action != "" {
			return trigger.Action
		}
		return exportOnTransaction
	case types.TriggerOracle:
		return exportOnOracle
	case types.TriggerDatetime:
		return exportOnDatetime
	case types.TriggerInterval:
		return exportOnInterval
	default:
		return string(trigger.Kind)
	}
}

// recipientArgs 接收方条目的命名参数（nil安全）
func recipientArgs(recipient *types.Recipient) map[string]interface{} {
	if recipient == nil {
		return nil
	}
	return recipient.Args
}

// seedRef 合约的种子引用（不含种子本体）
func seedRef(contract *types.Contract) string {
	addr := contract.Address()
	if addr.IsZero() {
		return ""
	}
	return "contract_seed:" + addr.Hex()
}

// encodeManifest 把升级参数中的清单值编码为JSON
func encodeManifest(v interface{}) ([]byte, error) {
	if s, ok := v.(string); ok {
		return []byte(s), nil
	}
	return json.Marshal(v)
}
