package contracts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asaskevich/EventBus"

	contractsconfig "github.com/weisyn/contracts/internal/config/contracts"
	"github.com/weisyn/contracts/internal/core/contracts/cache"
	"github.com/weisyn/contracts/internal/core/contracts/conditions"
	"github.com/weisyn/contracts/internal/core/contracts/dispatcher"
	"github.com/weisyn/contracts/internal/core/contracts/invoke"
	"github.com/weisyn/contracts/internal/core/contracts/parse"
	"github.com/weisyn/contracts/internal/core/contracts/seed"
	ifcontracts "github.com/weisyn/contracts/pkg/interfaces/contracts"
	"github.com/weisyn/contracts/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/contracts/pkg/types"
)

// TopicExecution 执行结局的事件总线主题
const TopicExecution = "contracts:execution"

// ExecutionEvent 发布到事件总线的执行结局摘要
type ExecutionEvent struct {
	Kind        string            `json:"kind"`     // trigger / condition / function
	Contract    string            `json:"contract"` // 合约地址（hex）
	Identity    string            `json:"identity"` // 触发器/条件/函数的规范键
	OK          bool              `json:"ok"`
	FailureKind types.FailureKind `json:"failure_kind,omitempty"`
	Duration    time.Duration     `json:"duration"`
}

// Engine 合约执行引擎实现
//
// 🎯 **核心职责**：
// 在两种互不兼容的合约后端之上呈现一个确定性的统一契约：
// 执行缓存保证同一逻辑调用至多一次存活执行，显式截止时间保证
// 任何调用绝不悬挂，所有后端结局收敛为封闭失败分类或规范链效果。
type Engine struct {
	logger     log.Logger
	config     *contractsconfig.Config
	cache      *cache.ExecutionCache
	dispatcher *dispatcher.Dispatcher
	conditions *conditions.Evaluator
	invoker    *invoke.Invoker
	seeds      *seed.Manager
	bus        EventBus.Bus
}

var _ ifcontracts.Engine = (*Engine)(nil)

// NewEngine 创建合约执行引擎
func NewEngine(
	logger log.Logger,
	config *contractsconfig.Config,
	executionCache *cache.ExecutionCache,
	triggerDispatcher *dispatcher.Dispatcher,
	conditionEvaluator *conditions.Evaluator,
	functionInvoker *invoke.Invoker,
	seedManager *seed.Manager,
	bus EventBus.Bus,
) *Engine {
	return &Engine{
		logger:     logger,
		config:     config,
		cache:      executionCache,
		dispatcher: triggerDispatcher,
		conditions: conditionEvaluator,
		invoker:    functionInvoker,
		seeds:      seedManager,
		bus:        bus,
	}
}

// ExecuteTrigger 执行触发器，返回链效果或失败
func (e *Engine) ExecuteTrigger(ctx context.Context, req *ifcontracts.TriggerRequest) *types.Outcome {
	started := time.Now()

	if req == nil || req.Contract == nil {
		return types.OutcomeFromFailure(types.NewFailure(types.FailureExecutionRaise, ErrNilContract.Error()))
	}

	now, err := dispatcher.ResolveNow(req.Trigger, req.IncomingTx, req.Opts)
	if err != nil {
		return types.OutcomeFromFailure(types.NewFailure(
			types.FailureExecutionRaise,
			WrapNoResolvedTimeError(req.Trigger.Key(), err).Error()))
	}

	deadline := req.Opts.Deadline
	if deadline <= 0 {
		deadline = e.config.TriggerDeadline()
	}

	compute := func(ctx context.Context) *types.Outcome {
		return e.dispatcher.Execute(ctx, req, now)
	}

	var outcome *types.Outcome
	if req.Opts.SkipCache {
		outcome = e.cache.ExecuteUncached(ctx, deadline, compute)
	} else {
		key := cache.Key{
			Kind:         "trigger",
			Identity:     req.Trigger.Key(),
			Contract:     req.Contract.Address().Hex(),
			Caller:       callerOf(req.IncomingTx),
			Time:         now.Unix(),
			InputsDigest: cache.DigestInputs(req.Inputs),
			ArgsDigest:   cache.DigestArgs(argsOf(req.Recipient)),
		}
		outcome = e.cache.Execute(ctx, key, deadline, compute)
	}

	e.observe("trigger", req.Contract.Address(), req.Trigger.Key(), outcome, started)
	return outcome
}

// ExecuteCondition 校验条件
func (e *Engine) ExecuteCondition(ctx context.Context, req *ifcontracts.ConditionRequest) (*types.Verdict, *types.Failure) {
	started := time.Now()

	if req == nil || req.Contract == nil {
		return nil, types.NewFailure(types.FailureExecutionRaise, ErrNilContract.Error())
	}

	validationTime := req.ValidationTime
	if !req.Opts.Time.IsZero() {
		validationTime = req.Opts.Time
	}
	if validationTime.IsZero() {
		return nil, types.NewFailure(types.FailureExecutionRaise,
			WrapNoResolvedTimeError(req.Condition.Key(),
				errors.New("no validation time and no explicit override")).Error())
	}

	normalized := *req
	normalized.ValidationTime = validationTime

	deadline := req.Opts.Deadline
	if deadline <= 0 {
		deadline = e.config.ConditionDeadline()
	}

	// 裁定经结局形态穿越缓存：拒绝裁定以 invalid_execution 包装
	compute := func(ctx context.Context) *types.Outcome {
		verdict, failure := e.conditions.Execute(ctx, &normalized)
		if failure != nil {
			return types.OutcomeFromFailure(failure)
		}
		if verdict.Valid {
			return types.OutcomeFromEffect(&types.ChainEffect{Logs: verdict.Logs})
		}
		return types.OutcomeFromFailure(types.NewFailure(
			types.FailureInvalidExecution,
			fmt.Sprintf("condition rejected on subject %q", verdict.Subject),
		).WithData(verdict).WithLogs(verdict.Logs))
	}

	var outcome *types.Outcome
	if req.Opts.SkipCache {
		outcome = e.cache.ExecuteUncached(ctx, deadline, compute)
	} else {
		key := cache.Key{
			Kind:         "condition",
			Identity:     req.Condition.Key(),
			Contract:     req.Contract.Address().Hex(),
			Caller:       callerOf(req.IncomingTx),
			Time:         validationTime.Unix(),
			InputsDigest: cache.DigestInputs(req.Inputs),
			ArgsDigest:   cache.DigestArgs(argsOf(req.Recipient)),
		}
		outcome = e.cache.Execute(ctx, key, deadline, compute)
	}

	e.observe("condition", req.Contract.Address(), req.Condition.Key(), outcome, started)

	if outcome.OK() {
		return &types.Verdict{Valid: true, Logs: outcome.Effect.Logs}, nil
	}
	if outcome.Failure.Kind == types.FailureInvalidExecution {
		if verdict, ok := outcome.Failure.Data.(*types.Verdict); ok {
			return verdict, nil
		}
	}
	return nil, outcome.Failure
}

// ExecuteFunction 只读公共函数调用（时间受限、故障隔离，不经缓存）
func (e *Engine) ExecuteFunction(ctx context.Context, req *ifcontracts.FunctionRequest) (*types.FunctionValue, *types.Failure) {
	started := time.Now()

	if req == nil || req.Contract == nil {
		return nil, types.NewFailure(types.FailureExecutionRaise, ErrNilContract.Error())
	}

	value, failure := e.invoker.Execute(ctx, req)

	identity := fmt.Sprintf("%s/%d", req.Function, len(req.Args))
	if failure != nil {
		e.observe("function", req.Contract.Address(), identity, types.OutcomeFromFailure(failure), started)
		return nil, failure
	}
	e.observe("function", req.Contract.Address(), identity, types.OutcomeFromEffect(&types.ChainEffect{}), started)
	return value, nil
}

// SignNextTransaction 用合约链自身的密钥材料联署下一笔交易
func (e *Engine) SignNextTransaction(ctx context.Context, contract *types.Contract, next *types.Transaction, index uint32) (*types.Transaction, error) {
	return e.seeds.SignNextTransaction(ctx, contract, next, index)
}

// ContainsTrigger 合约是否声明了该触发器
func (e *Engine) ContainsTrigger(contract *types.Contract, trigger types.TriggerID) bool {
	if contract == nil {
		return false
	}
	return contract.ContainsTrigger(trigger)
}

// FromTransaction 从定义交易解析合约实例（不做深度校验）
func (e *Engine) FromTransaction(tx *types.Transaction) (*types.Contract, error) {
	return parse.FromTransaction(tx)
}

// ValidateAndParseTransaction 解析合约负载并校验其良构性
func (e *Engine) ValidateAndParseTransaction(tx *types.Transaction) (*types.Contract, error) {
	return parse.ValidateAndParse(tx)
}

// Close 关闭引擎（停止缓存清理协程）
func (e *Engine) Close() {
	e.cache.Close()
}

// observe 记录指标并发布执行结局事件
func (e *Engine) observe(kind string, contract types.Address, identity string, outcome *types.Outcome, started time.Time) {
	elapsed := time.Since(started)

	result := "ok"
	var failureKind types.FailureKind
	if !outcome.OK() {
		result = string(outcome.Failure.Kind)
		failureKind = outcome.Failure.Kind
	}

	executionTotal.WithLabelValues(kind, result).Inc()
	executionDuration.WithLabelValues(kind).Observe(elapsed.Seconds())

	if e.bus != nil {
		e.bus.Publish(TopicExecution, &ExecutionEvent{
			Kind:        kind,
			Contract:    contract.Hex(),
			Identity:    identity,
			OK:          outcome.OK(),
			FailureKind: failureKind,
			Duration:    elapsed,
		})
	}
}

// callerOf 触发交易的调用方地址（hex，nil安全）
func callerOf(tx *types.Transaction) string {
	if tx == nil {
		return ""
	}
	return tx.Address.Hex()
}

// argsOf 接收方条目的命名参数（nil安全）
func argsOf(recipient *types.Recipient) map[string]interface{} {
	if recipient == nil {
		return nil
	}
	return recipient.Args
}
