package conditions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/contracts/internal/core/contracts/cast"
	"github.com/weisyn/contracts/internal/core/contracts/engines/interp"
	"github.com/weisyn/contracts/internal/core/contracts/parse"
	"github.com/weisyn/contracts/internal/core/contracts/testutil"
	"github.com/weisyn/contracts/internal/core/eutxo"
	ifcontracts "github.com/weisyn/contracts/pkg/interfaces/contracts"
	"github.com/weisyn/contracts/pkg/types"
)

// mockModules 沙箱模块执行器Mock
type mockModules struct {
	exports map[string]struct{}
	result  *types.ModuleResult
	err     error
}

func (m *mockModules) Execute(_ context.Context, _ []byte, _ string, _ *types.ModuleCall) (*types.ModuleResult, error) {
	return m.result, m.err
}

func (m *mockModules) ListExportedFunctions(_ []byte) (map[string]struct{}, error) {
	if m.exports == nil {
		return map[string]struct{}{}, nil
	}
	return m.exports, nil
}

func newTestEvaluator(modules ifcontracts.ModuleExecutor) *Evaluator {
	logger := &testutil.MockLogger{}
	return New(logger, cast.New(3*1024*1024), interp.New(logger), modules, eutxo.NewStaticLedger())
}

func interpretedContract(t *testing.T, code string) *types.Contract {
	t.Helper()
	contract, err := parse.ValidateAndParse(testutil.NewInterpretedDefinition(code))
	require.NoError(t, err)
	return contract
}

func sandboxedContract(t *testing.T, manifest string) *types.Contract {
	t.Helper()
	contract, err := parse.ValidateAndParse(testutil.NewSandboxedDefinition(
		[]byte{0x00, 0x61, 0x73, 0x6d}, manifest))
	require.NoError(t, err)
	return contract
}

func conditionRequest(contract *types.Contract, kind types.ConditionKind) *ifcontracts.ConditionRequest {
	return &ifcontracts.ConditionRequest{
		Condition:      types.ConditionID{Kind: kind},
		Contract:       contract,
		ValidationTime: time.Unix(1700000000, 0).UTC(),
	}
}

func TestExecuteInterpreted_ContentRejection(t *testing.T) {
	e := newTestEvaluator(&mockModules{})
	contract := interpretedContract(t, `{
		"conditions": {"transaction": {"content": "transaction.data.content in ['hola', 'hi']"}}
	}`)

	req := conditionRequest(contract, types.ConditionTransaction)
	req.IncomingTx = &types.Transaction{
		Address: testutil.RandomAddress(),
		Data:    types.TransactionData{Content: "bonjour"},
	}

	verdict, failure := e.Execute(context.Background(), req)

	require.Nil(t, failure)
	assert.False(t, verdict.Valid)
	assert.Equal(t, "content", verdict.Subject)

	req.IncomingTx.Data.Content = "hola"
	verdict, failure = e.Execute(context.Background(), req)
	require.Nil(t, failure)
	assert.True(t, verdict.Valid)
}

func TestExecuteInterpreted_MissingConditionPolicy(t *testing.T) {
	e := newTestEvaluator(&mockModules{})
	contract := interpretedContract(t, `{"triggers": {"oracle": {"state": "state"}}}`)

	t.Run("未声明的inherit默认通过", func(t *testing.T) {
		verdict, failure := e.Execute(context.Background(), conditionRequest(contract, types.ConditionInherit))
		require.Nil(t, failure)
		assert.True(t, verdict.Valid)
	})

	t.Run("未声明的其余种类为硬失败", func(t *testing.T) {
		_, failure := e.Execute(context.Background(), conditionRequest(contract, types.ConditionTransaction))
		require.NotNil(t, failure)
		assert.Equal(t, types.FailureMissingCondition, failure.Kind)
	})
}

func TestExecuteInterpreted_InheritSeesProjectedBalance(t *testing.T) {
	e := newTestEvaluator(&mockModules{})
	contract := interpretedContract(t, `{
		"conditions": {"inherit": {"reserve": "balance.native >= 50"}}
	}`)

	req := conditionRequest(contract, types.ConditionInherit)
	req.Inputs = []*types.UnspentOutput{
		testutil.NewNativeOutput(testutil.RandomAddress(), 100, time.Unix(1, 0)),
	}
	// 候选后继交易转出60：投影余额40，低于保留底线
	req.IncomingTx = &types.Transaction{
		Address:        testutil.RandomAddress(),
		ValidationTime: time.Unix(1700000000, 0),
		Data: types.TransactionData{Ledger: types.LedgerOperations{Transfers: []types.Transfer{
			{To: testutil.RandomAddress(), Amount: 60},
		}}},
	}

	verdict, failure := e.Execute(context.Background(), req)

	require.Nil(t, failure)
	assert.False(t, verdict.Valid)
	assert.Equal(t, "reserve", verdict.Subject)
}

func TestExecuteSandboxed(t *testing.T) {
	manifest := `{"conditions": ["inherit"]}`

	t.Run("非inherit条件平凡通过", func(t *testing.T) {
		e := newTestEvaluator(&mockModules{})
		verdict, failure := e.Execute(context.Background(),
			conditionRequest(sandboxedContract(t, manifest), types.ConditionTransaction))
		require.Nil(t, failure)
		assert.True(t, verdict.Valid)
	})

	t.Run("onInherit未导出即通过", func(t *testing.T) {
		e := newTestEvaluator(&mockModules{exports: map[string]struct{}{"onTransaction": {}}})
		verdict, failure := e.Execute(context.Background(),
			conditionRequest(sandboxedContract(t, manifest), types.ConditionInherit))
		require.Nil(t, failure)
		assert.True(t, verdict.Valid)
	})

	t.Run("布尔裁定", func(t *testing.T) {
		e := newTestEvaluator(&mockModules{
			exports: map[string]struct{}{"onInherit": {}},
			result:  &types.ModuleResult{Read: &types.ModuleRead{Value: false, Logs: []string{"nope"}}},
		})
		verdict, failure := e.Execute(context.Background(),
			conditionRequest(sandboxedContract(t, manifest), types.ConditionInherit))
		require.Nil(t, failure)
		assert.False(t, verdict.Valid)
		assert.Equal(t, "inherit", verdict.Subject)
		assert.Equal(t, []string{"nope"}, verdict.Logs)
	})

	t.Run("映射裁定携带主题", func(t *testing.T) {
		e := newTestEvaluator(&mockModules{
			exports: map[string]struct{}{"onInherit": {}},
			result: &types.ModuleResult{Read: &types.ModuleRead{
				Value: map[string]interface{}{"valid": false, "subject": "reserve"},
			}},
		})
		verdict, failure := e.Execute(context.Background(),
			conditionRequest(sandboxedContract(t, manifest), types.ConditionInherit))
		require.Nil(t, failure)
		assert.False(t, verdict.Valid)
		assert.Equal(t, "reserve", verdict.Subject)
	})

	t.Run("钩子返回更新形态为后端契约违规", func(t *testing.T) {
		e := newTestEvaluator(&mockModules{
			exports: map[string]struct{}{"onInherit": {}},
			result:  &types.ModuleResult{Update: &types.ModuleUpdate{State: []byte(`{}`)}},
		})
		_, failure := e.Execute(context.Background(),
			conditionRequest(sandboxedContract(t, manifest), types.ConditionInherit))
		require.NotNil(t, failure)
		assert.Equal(t, types.FailureExecutionRaise, failure.Kind)
	})
}

// ============================================================================
//                            后继状态投影
// ============================================================================

func TestProjectInputs(t *testing.T) {
	contractAddr := testutil.RandomAddress()
	caller := testutil.RandomAddress()

	t.Run("贪心消费与部分拆分", func(t *testing.T) {
		inputs := []*types.UnspentOutput{
			testutil.NewNativeOutput(caller, 30, time.Unix(2, 0)),
			testutil.NewNativeOutput(caller, 10, time.Unix(1, 0)),
		}
		tx := &types.Transaction{
			Address: caller,
			Data: types.TransactionData{Ledger: types.LedgerOperations{Transfers: []types.Transfer{
				{To: testutil.RandomAddress(), Amount: 25},
			}}},
		}

		projected := ProjectInputs(inputs, tx, contractAddr)

		// 最早的10被整体消费，30被部分消费剩15
		require.Len(t, projected, 1)
		assert.Equal(t, uint64(15), projected[0].Amount)
	})

	t.Run("代币与原生分别结算", func(t *testing.T) {
		token := testutil.RandomAddress()
		inputs := []*types.UnspentOutput{
			testutil.NewNativeOutput(caller, 10, time.Unix(1, 0)),
			testutil.NewTokenOutput(caller, token, 5, time.Unix(1, 0)),
		}
		tx := &types.Transaction{
			Address: caller,
			Data: types.TransactionData{Ledger: types.LedgerOperations{Transfers: []types.Transfer{
				{To: testutil.RandomAddress(), Amount: 5, TokenAddress: token},
			}}},
		}

		projected := ProjectInputs(inputs, tx, contractAddr)

		require.Len(t, projected, 1)
		assert.Equal(t, "native", projected[0].Type)
		assert.Equal(t, uint64(10), projected[0].Amount)
	})

	t.Run("转给合约自身的输出被追加", func(t *testing.T) {
		tx := &types.Transaction{
			Address:        caller,
			ValidationTime: time.Unix(1700000000, 0),
			Data: types.TransactionData{Ledger: types.LedgerOperations{Transfers: []types.Transfer{
				{To: contractAddr, Amount: 7},
			}}},
		}

		projected := ProjectInputs(nil, tx, contractAddr)

		require.Len(t, projected, 1)
		assert.Equal(t, uint64(7), projected[0].Amount)
		assert.Equal(t, "native", projected[0].Type)
		assert.Equal(t, caller, projected[0].From)
		assert.Equal(t, time.Unix(1700000000, 0), projected[0].Timestamp)
	})

	t.Run("无交易时原样保留", func(t *testing.T) {
		inputs := []*types.UnspentOutput{
			testutil.NewNativeOutput(caller, 10, time.Unix(1, 0)),
		}
		projected := ProjectInputs(inputs, nil, contractAddr)
		assert.Equal(t, inputs, projected)
	})
}
