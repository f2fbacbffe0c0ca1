package cast

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/contracts/internal/core/contracts/testutil"
	"github.com/weisyn/contracts/pkg/types"
)

func interpretedContract(state []byte) *types.Contract {
	return &types.Contract{
		Variant:     types.VariantInterpreted,
		Transaction: testutil.NewInterpretedDefinition(`{"triggers":{"oracle":{"state":"state"}}}`),
		Code:        `{"triggers":{"oracle":{"state":"state"}}}`,
		State:       state,
	}
}

func TestFromEval_NilResult(t *testing.T) {
	caster := New(1024)

	outcome := caster.FromEval(nil, interpretedContract(nil))

	require.False(t, outcome.OK())
	assert.Equal(t, types.FailureInvalidTriggerOutput, outcome.Failure.Kind)
}

func TestFromEval_PureCall(t *testing.T) {
	caster := New(1024)

	// 前后都无状态且无显式交易：纯调用
	outcome := caster.FromEval(&types.EvalResult{Logs: []string{"hi"}}, interpretedContract(nil))

	require.True(t, outcome.OK())
	assert.Nil(t, outcome.Effect.NextTransaction)
	assert.Empty(t, outcome.Effect.EncodedState)
	assert.Equal(t, []string{"hi"}, outcome.Effect.Logs)
}

func TestFromEval_DroppedState(t *testing.T) {
	caster := New(1024)

	// 前代有状态而后端既未返回状态也未返回交易：后端契约违规
	outcome := caster.FromEval(&types.EvalResult{}, interpretedContract([]byte(`{"n":1}`)))

	require.False(t, outcome.OK())
	assert.Equal(t, types.FailureInvalidTriggerOutput, outcome.Failure.Kind)
}

func TestFromEval_EmptyStateSlotNormalized(t *testing.T) {
	caster := New(1024)

	// 空切片状态槽位等同于"无状态"
	outcome := caster.FromEval(&types.EvalResult{State: []byte{}}, interpretedContract(nil))

	require.True(t, outcome.OK())
	assert.Nil(t, outcome.Effect.NextTransaction)
}

func TestFromEval_NoOpCall(t *testing.T) {
	caster := New(1024)
	state := []byte(`{"count":7}`)

	outcome := caster.FromEval(&types.EvalResult{State: state, Logs: []string{"noop"}}, interpretedContract(state))

	require.True(t, outcome.OK())
	// 无操作调用：不伪造交易，编码状态为空而非重新序列化
	assert.Nil(t, outcome.Effect.NextTransaction)
	assert.Empty(t, outcome.Effect.EncodedState)
	assert.Equal(t, []string{"noop"}, outcome.Effect.Logs)
}

func TestFromEval_StateSizeThreshold(t *testing.T) {
	caster := New(8)

	t.Run("恰好等于上限的状态通过", func(t *testing.T) {
		state := []byte("12345678")
		outcome := caster.FromEval(&types.EvalResult{State: state}, interpretedContract(nil))

		require.True(t, outcome.OK())
		assert.Equal(t, state, outcome.Effect.EncodedState)
	})

	t.Run("超出上限整体转换为失败", func(t *testing.T) {
		outcome := caster.FromEval(&types.EvalResult{
			State: []byte("123456789"),
			Logs:  []string{"kept"},
		}, interpretedContract(nil))

		require.False(t, outcome.OK())
		assert.Equal(t, types.FailureStateExceedThreshold, outcome.Failure.Kind)
		// 日志保留，候选交易丢弃
		assert.Equal(t, []string{"kept"}, outcome.Failure.Logs)
	})
}

func TestFromEval_SynthesizesShellOnStateChange(t *testing.T) {
	caster := New(1024)
	contract := interpretedContract([]byte(`{"count":1}`))

	outcome := caster.FromEval(&types.EvalResult{State: []byte(`{"count":2}`)}, contract)

	require.True(t, outcome.OK())
	require.NotNil(t, outcome.Effect.NextTransaction)
	assert.Equal(t, "contract", outcome.Effect.NextTransaction.Type)
	// 外壳携带前代代码，链上代码绝不静默丢失
	assert.Equal(t, contract.Code, outcome.Effect.NextTransaction.Data.Code)
	assert.Equal(t, []byte(`{"count":2}`), outcome.Effect.EncodedState)
}

func TestFromEval_CarriesCodeIntoExplicitTransaction(t *testing.T) {
	caster := New(1024)
	contract := interpretedContract(nil)

	next := &types.Transaction{Type: "transfer"}
	outcome := caster.FromEval(&types.EvalResult{Transaction: next}, contract)

	require.True(t, outcome.OK())
	assert.Equal(t, contract.Code, outcome.Effect.NextTransaction.Data.Code)
}

func TestFromEval_ExplicitPayloadUntouched(t *testing.T) {
	caster := New(1024)
	contract := interpretedContract(nil)

	next := &types.Transaction{
		Type: "contract",
		Data: types.TransactionData{Code: `{"triggers":{"oracle":{"state":"1"}}}`},
	}
	outcome := caster.FromEval(&types.EvalResult{Transaction: next}, contract)

	require.True(t, outcome.OK())
	assert.Equal(t, next.Data.Code, outcome.Effect.NextTransaction.Data.Code)
}

func TestFromModule_BytecodeCarryForward(t *testing.T) {
	caster := New(1024)
	definition := testutil.NewSandboxedDefinition([]byte{0x00, 0x61, 0x73, 0x6d}, `{"triggers":[{"on":"oracle"}]}`)
	contract := &types.Contract{
		Variant:     types.VariantSandboxed,
		Transaction: definition,
		Bytecode:    definition.Data.Contract.Bytecode,
	}

	outcome := caster.FromModule(&types.ModuleResult{
		Update: &types.ModuleUpdate{State: []byte(`{"v":1}`)},
	}, contract)

	require.True(t, outcome.OK())
	next := outcome.Effect.NextTransaction
	require.NotNil(t, next)
	require.NotNil(t, next.Data.Contract)
	assert.Equal(t, contract.Bytecode, next.Data.Contract.Bytecode)
	assert.Equal(t, definition.Data.Contract.Manifest, next.Data.Contract.Manifest)
}

func TestFromModule_ReadOnTriggerPath(t *testing.T) {
	caster := New(1024)

	outcome := caster.FromModule(&types.ModuleResult{
		Read: &types.ModuleRead{Value: 42, Logs: []string{"leak"}},
	}, interpretedContract(nil))

	require.False(t, outcome.OK())
	assert.Equal(t, types.FailureInvalidTriggerOutput, outcome.Failure.Kind)
	assert.Equal(t, []string{"leak"}, outcome.Failure.Logs)
}

func TestFromFault(t *testing.T) {
	caster := New(1024)

	t.Run("用户抛出转换为contract_throw", func(t *testing.T) {
		thrown := &types.ThrownValue{Code: 42, Message: "insufficient funds", Data: map[string]interface{}{"need": 10.0}}
		failure := caster.FromFault(&types.Fault{Thrown: thrown, Message: thrown.Message, Logs: []string{"l1"}})

		assert.Equal(t, types.FailureContractThrow, failure.Kind)
		assert.Equal(t, "insufficient funds", failure.Message)
		assert.Equal(t, thrown, failure.Data)
		assert.Equal(t, []string{"l1"}, failure.Logs)
	})

	t.Run("内部故障转换为execution_raise并附加源行", func(t *testing.T) {
		failure := caster.FromFault(&types.Fault{Message: "division by zero", Line: 17})

		assert.Equal(t, types.FailureExecutionRaise, failure.Kind)
		assert.True(t, strings.HasSuffix(failure.Message, "(line 17)"), failure.Message)
	})

	t.Run("源行不可判定时无后缀", func(t *testing.T) {
		failure := caster.FromFault(&types.Fault{Message: "division by zero"})

		assert.Equal(t, "division by zero", failure.Message)
	})

	t.Run("nil故障收敛为execution_raise", func(t *testing.T) {
		failure := caster.FromFault(nil)

		assert.Equal(t, types.FailureExecutionRaise, failure.Kind)
	})
}
