package contracts

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractsconfig "github.com/weisyn/contracts/internal/config/contracts"
	"github.com/weisyn/contracts/internal/core/contracts/cache"
	"github.com/weisyn/contracts/internal/core/contracts/cast"
	"github.com/weisyn/contracts/internal/core/contracts/conditions"
	"github.com/weisyn/contracts/internal/core/contracts/dispatcher"
	"github.com/weisyn/contracts/internal/core/contracts/engines/interp"
	"github.com/weisyn/contracts/internal/core/contracts/invoke"
	"github.com/weisyn/contracts/internal/core/contracts/parse"
	"github.com/weisyn/contracts/internal/core/contracts/seed"
	"github.com/weisyn/contracts/internal/core/contracts/testutil"
	"github.com/weisyn/contracts/internal/core/eutxo"
	"github.com/weisyn/contracts/internal/core/infrastructure/crypto/rootkey"
	ifcontracts "github.com/weisyn/contracts/pkg/interfaces/contracts"
	"github.com/weisyn/contracts/pkg/types"
)

const boardProgram = `{
	"triggers": {"transaction:post/0": {"state": "{'count': 1}"}},
	"conditions": {"transaction": {"content": "transaction.data.content in ['hola', 'hi']"}},
	"functions": {"add/2": "params[0] + params[1]"}
}`

// countingEvaluator 包装真实求值器并统计触发器求值次数
type countingEvaluator struct {
	inner        ifcontracts.InterpretedEvaluator
	triggerCalls atomic.Int64
}

func (c *countingEvaluator) ExecuteTrigger(ctx context.Context, trigger types.TriggerID, constants *types.Constants) (*types.EvalResult, *types.Fault) {
	c.triggerCalls.Add(1)
	return c.inner.ExecuteTrigger(ctx, trigger, constants)
}

func (c *countingEvaluator) ExecuteCondition(ctx context.Context, condition types.ConditionID, constants *types.Constants) (*types.ConditionResult, *types.Fault) {
	return c.inner.ExecuteCondition(ctx, condition, constants)
}

func (c *countingEvaluator) ExecuteFunction(ctx context.Context, name string, args []interface{}, constants *types.Constants) (*types.EvalResult, *types.Fault) {
	return c.inner.ExecuteFunction(ctx, name, args, constants)
}

// nopModules 测试中不会命中的沙箱执行器
type nopModules struct{}

func (nopModules) Execute(ctx context.Context, module []byte, functionName string, call *types.ModuleCall) (*types.ModuleResult, error) {
	return &types.ModuleResult{}, nil
}

func (nopModules) ListExportedFunctions(module []byte) (map[string]struct{}, error) {
	return nil, nil
}

func newTestEngine(t *testing.T) (*Engine, *countingEvaluator, EventBus.Bus) {
	t.Helper()

	logger := &testutil.MockLogger{}
	cfg := contractsconfig.New(nil)
	caster := cast.New(cfg.StateSizeLimit())
	evaluator := &countingEvaluator{inner: interp.New(logger)}
	executor := nopModules{}
	ledger := eutxo.NewStaticLedger()
	resolver := eutxo.NewStaticResolver()

	cipher, err := rootkey.New([]byte("engine test key"))
	require.NoError(t, err)

	bus := EventBus.New()
	engine := NewEngine(
		logger,
		cfg,
		cache.New(cfg.CacheTTL(), cfg.CacheMaxSize(), logger),
		dispatcher.New(logger, caster, evaluator, executor, ledger, resolver),
		conditions.New(logger, caster, evaluator, executor, ledger),
		invoke.New(logger, caster, evaluator, executor, ledger, cfg.FunctionBudget()),
		seed.New(logger, cipher, resolver),
		bus,
	)
	t.Cleanup(engine.Close)

	return engine, evaluator, bus
}

func boardContract(t *testing.T) *types.Contract {
	t.Helper()
	contract, err := parse.ValidateAndParse(testutil.NewInterpretedDefinition(boardProgram))
	require.NoError(t, err)
	return contract
}

func TestExecuteCondition_VerdictRoundTrip(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	contract := boardContract(t)
	validationTime := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// 每笔交易有自己的地址——缓存键以交易地址区分逻辑调用
	req := func(content string, caller types.Address) *ifcontracts.ConditionRequest {
		return &ifcontracts.ConditionRequest{
			Condition: types.ConditionID{Kind: types.ConditionTransaction},
			Contract:  contract,
			IncomingTx: &types.Transaction{
				Address:        caller,
				Data:           types.TransactionData{Content: content},
				ValidationTime: validationTime,
			},
			ValidationTime: validationTime,
		}
	}

	t.Run("拒绝裁定穿越缓存后仍是裁定", func(t *testing.T) {
		caller := testutil.RandomAddress()

		verdict, failure := engine.ExecuteCondition(context.Background(), req("nope", caller))
		require.Nil(t, failure)
		require.NotNil(t, verdict)
		assert.False(t, verdict.Valid)
		assert.Equal(t, "content", verdict.Subject)

		// 同一逻辑调用的缓存命中返回同一裁定
		again, failure := engine.ExecuteCondition(context.Background(), req("nope", caller))
		require.Nil(t, failure)
		assert.False(t, again.Valid)
		assert.Equal(t, "content", again.Subject)
	})

	t.Run("通过裁定", func(t *testing.T) {
		verdict, failure := engine.ExecuteCondition(context.Background(), req("hola", testutil.RandomAddress()))
		require.Nil(t, failure)
		assert.True(t, verdict.Valid)
	})

	t.Run("无验证时间且无显式覆盖", func(t *testing.T) {
		r := req("hola", testutil.RandomAddress())
		r.ValidationTime = time.Time{}
		r.IncomingTx.ValidationTime = time.Time{}
		verdict, failure := engine.ExecuteCondition(context.Background(), r)
		assert.Nil(t, verdict)
		require.NotNil(t, failure)
		assert.Equal(t, types.FailureExecutionRaise, failure.Kind)
		assert.Contains(t, failure.Message, ErrNoResolvedTime.Error())
	})
}

func TestExecuteTrigger_CachedReuse(t *testing.T) {
	engine, evaluator, _ := newTestEngine(t)
	contract := boardContract(t)
	validationTime := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	req := func(opts ifcontracts.ExecOptions) *ifcontracts.TriggerRequest {
		return &ifcontracts.TriggerRequest{
			Trigger:  types.TriggerID{Kind: types.TriggerTransaction, Action: "post", Arity: 0},
			Contract: contract,
			IncomingTx: &types.Transaction{
				Address:        types.Address{0x11},
				ValidationTime: validationTime,
			},
			Recipient: &types.Recipient{Action: "post"},
			Opts:      opts,
		}
	}

	first := engine.ExecuteTrigger(context.Background(), req(ifcontracts.ExecOptions{}))
	require.True(t, first.OK(), "outcome: %+v", first)
	assert.JSONEq(t, `{"count": 1}`, string(first.Effect.EncodedState))

	second := engine.ExecuteTrigger(context.Background(), req(ifcontracts.ExecOptions{}))
	require.True(t, second.OK())
	assert.Equal(t, first.Effect.EncodedState, second.Effect.EncodedState)
	assert.EqualValues(t, 1, evaluator.triggerCalls.Load(), "同一逻辑调用至多一次存活执行")

	// 跳过缓存路径既不读也不写共享缓存
	third := engine.ExecuteTrigger(context.Background(), req(ifcontracts.ExecOptions{SkipCache: true}))
	require.True(t, third.OK())
	assert.EqualValues(t, 2, evaluator.triggerCalls.Load())
}

func TestExecuteTrigger_NoResolvedTime(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	contract := boardContract(t)

	outcome := engine.ExecuteTrigger(context.Background(), &ifcontracts.TriggerRequest{
		Trigger:  types.TriggerID{Kind: types.TriggerTransaction, Action: "post", Arity: 0},
		Contract: contract,
	})

	require.False(t, outcome.OK())
	assert.Equal(t, types.FailureExecutionRaise, outcome.Failure.Kind)
	assert.Contains(t, outcome.Failure.Message, ErrNoResolvedTime.Error())
	assert.Contains(t, outcome.Failure.Message, "transaction:post/0")
	assert.Contains(t, outcome.Failure.Message, "validation time")
}

func TestNilRequests(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	outcome := engine.ExecuteTrigger(context.Background(), nil)
	require.False(t, outcome.OK())
	assert.Equal(t, types.FailureExecutionRaise, outcome.Failure.Kind)
	assert.Equal(t, ErrNilContract.Error(), outcome.Failure.Message)

	verdict, failure := engine.ExecuteCondition(context.Background(), &ifcontracts.ConditionRequest{})
	assert.Nil(t, verdict)
	require.NotNil(t, failure)
	assert.Equal(t, ErrNilContract.Error(), failure.Message)

	value, failure := engine.ExecuteFunction(context.Background(), nil)
	assert.Nil(t, value)
	require.NotNil(t, failure)
	assert.Equal(t, ErrNilContract.Error(), failure.Message)
}

func TestExecuteFunction(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	contract := boardContract(t)

	value, failure := engine.ExecuteFunction(context.Background(), &ifcontracts.FunctionRequest{
		Contract: contract,
		Function: "add",
		Args:     []interface{}{2, 3},
	})
	require.Nil(t, failure)
	assert.EqualValues(t, 5, value.Value)

	_, failure = engine.ExecuteFunction(context.Background(), &ifcontracts.FunctionRequest{
		Contract: contract,
		Function: "missing",
	})
	require.NotNil(t, failure)
	assert.Equal(t, types.FailureFunctionDoesNotExist, failure.Kind)
}

func TestExecutionEvents(t *testing.T) {
	engine, _, bus := newTestEngine(t)
	contract := boardContract(t)

	var events []*ExecutionEvent
	require.NoError(t, bus.Subscribe(TopicExecution, func(ev *ExecutionEvent) {
		events = append(events, ev)
	}))

	_, failure := engine.ExecuteFunction(context.Background(), &ifcontracts.FunctionRequest{
		Contract: contract,
		Function: "add",
		Args:     []interface{}{1, 1},
	})
	require.Nil(t, failure)

	require.Len(t, events, 1)
	assert.Equal(t, "function", events[0].Kind)
	assert.Equal(t, "add/2", events[0].Identity)
	assert.Equal(t, contract.Address().Hex(), events[0].Contract)
	assert.True(t, events[0].OK)
}

func TestContainsTrigger(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	contract := boardContract(t)

	assert.True(t, engine.ContainsTrigger(contract, types.TriggerID{Kind: types.TriggerTransaction, Action: "post", Arity: 0}))
	assert.False(t, engine.ContainsTrigger(contract, types.TriggerID{Kind: types.TriggerOracle}))
	assert.False(t, engine.ContainsTrigger(nil, types.TriggerID{Kind: types.TriggerOracle}))
}
