package interp

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/google/cel-go/cel"
	celtypes "github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"google.golang.org/protobuf/types/known/structpb"

	ifcontracts "github.com/weisyn/contracts/pkg/interfaces/contracts"
	"github.com/weisyn/contracts/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/contracts/pkg/types"
)

// throwMarker 用户抛出值在求值错误中的标记前缀
const throwMarker = "__contract_throw__:"

// Evaluator CEL求值器，实现 contracts.InterpretedEvaluator
//
// 🎯 **核心职责**：
// 对解释型合约程序中的触发器/条件/函数体做受控求值：
// - 每次求值组装独立的环境与日志收集器，调用之间零共享状态
// - 用户代码通过 throw(code, message[, data]) 主动抛出结构化错误
// - 取消由传入的 ctx 强制执行（求值按固定频率检查中断）
type Evaluator struct {
	logger log.Logger
}

var _ ifcontracts.InterpretedEvaluator = (*Evaluator)(nil)

// New 创建CEL求值器
func New(logger log.Logger) *Evaluator {
	return &Evaluator{logger: logger}
}

// ExecuteTrigger 对触发器体求值
func (e *Evaluator) ExecuteTrigger(ctx context.Context, trigger types.TriggerID, constants *types.Constants) (*types.EvalResult, *types.Fault) {
	program, fault := e.parseProgram(constants)
	if fault != nil {
		return nil, fault
	}

	body, ok := program.Triggers[trigger.Key()]
	if !ok {
		return nil, &types.Fault{Message: fmt.Sprintf("trigger body %q not declared in program", trigger.Key())}
	}
	e.logger.Debugf("求值触发器体: %s", trigger.Key())

	session, fault := e.newSession(constants)
	if fault != nil {
		return nil, fault
	}

	result := &types.EvalResult{}

	if body.State != "" {
		value, fault := session.eval(ctx, body.State)
		if fault != nil {
			return nil, fault
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, &types.Fault{Message: fmt.Sprintf("encode state: %v", err), Logs: *session.logs}
		}
		result.State = encoded
	}

	if body.Transaction != "" {
		value, fault := session.eval(ctx, body.Transaction)
		if fault != nil {
			return nil, fault
		}
		next, err := decodeTransaction(value)
		if err != nil {
			return nil, &types.Fault{Message: fmt.Sprintf("decode next transaction: %v", err), Logs: *session.logs}
		}
		result.Transaction = next
	}

	result.Logs = *session.logs
	return result, nil
}

// ExecuteCondition 对条件体求值
//
// 条件体按主题拆分为多个布尔表达式，主题按字典序求值；
// 第一个不成立的主题即拒绝主题。未声明的条件以 Declared=false 返回。
func (e *Evaluator) ExecuteCondition(ctx context.Context, condition types.ConditionID, constants *types.Constants) (*types.ConditionResult, *types.Fault) {
	program, fault := e.parseProgram(constants)
	if fault != nil {
		return nil, fault
	}

	subjects, ok := program.Conditions[condition.Key()]
	if !ok {
		return &types.ConditionResult{Declared: false}, nil
	}

	session, fault := e.newSession(constants)
	if fault != nil {
		return nil, fault
	}

	names := make([]string, 0, len(subjects))
	for name := range subjects {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value, fault := session.eval(ctx, subjects[name])
		if fault != nil {
			return nil, fault
		}
		valid, ok := value.(bool)
		if !ok {
			return nil, &types.Fault{
				Message: fmt.Sprintf("condition subject %q evaluated to non-boolean", name),
				Logs:    *session.logs,
			}
		}
		if !valid {
			return &types.ConditionResult{
				Declared: true,
				Valid:    false,
				Subject:  name,
				Logs:     *session.logs,
			}, nil
		}
	}

	return &types.ConditionResult{Declared: true, Valid: true, Logs: *session.logs}, nil
}

// ExecuteFunction 对公共函数体求值（只读）
func (e *Evaluator) ExecuteFunction(ctx context.Context, name string, args []interface{}, constants *types.Constants) (*types.EvalResult, *types.Fault) {
	program, fault := e.parseProgram(constants)
	if fault != nil {
		return nil, fault
	}

	key := FunctionKeyOf(name, len(args))
	body, ok := program.Functions[key]
	if !ok {
		// 可见性检查在引擎侧完成，这里同时接受私有签名键
		body, ok = program.Functions["!"+key]
		if !ok {
			return nil, &types.Fault{Message: fmt.Sprintf("function body %q not declared in program", key)}
		}
	}
	e.logger.Debugf("求值函数体: %s", key)

	session, fault := e.newSession(constants)
	if fault != nil {
		return nil, fault
	}
	session.activation["params"] = args

	value, fault := session.eval(ctx, body)
	if fault != nil {
		return nil, fault
	}

	return &types.EvalResult{Value: value, Logs: *session.logs}, nil
}

// parseProgram 从合约视图解析程序
func (e *Evaluator) parseProgram(constants *types.Constants) (*Program, *types.Fault) {
	if constants == nil || constants.Contract == nil {
		return nil, &types.Fault{Message: "no contract view in constants"}
	}
	program, err := ParseProgram(constants.Contract.Code)
	if err != nil {
		return nil, &types.Fault{Message: fmt.Sprintf("parse program: %v", err)}
	}
	return program, nil
}

// ============================================================================
//                              求值会话
// ============================================================================

// session 单次调用的求值会话（环境 + 常量激活 + 日志收集器）
type session struct {
	env        *cel.Env
	activation map[string]interface{}
	logs       *[]string
}

// newSession 组装求值会话
func (e *Evaluator) newSession(constants *types.Constants) (*session, *types.Fault) {
	logs := &[]string{}

	env, err := cel.NewEnv(
		cel.Variable("contract", cel.DynType),
		cel.Variable("transaction", cel.DynType),
		cel.Variable("next_contract", cel.DynType),
		cel.Variable("args", cel.DynType),
		cel.Variable("params", cel.DynType),
		cel.Variable("now", cel.IntType),
		cel.Variable("state", cel.DynType),
		cel.Variable("balance", cel.DynType),
		cel.Variable("seed_ref", cel.StringType),
		cel.Function("log",
			cel.Overload("log_string", []*cel.Type{cel.StringType}, cel.BoolType,
				cel.UnaryBinding(func(msg ref.Val) ref.Val {
					*logs = append(*logs, fmt.Sprintf("%v", msg.Value()))
					return celtypes.True
				}))),
		cel.Function("throw",
			cel.Overload("throw_int_string", []*cel.Type{cel.IntType, cel.StringType}, cel.DynType,
				cel.BinaryBinding(func(code, msg ref.Val) ref.Val {
					return throwErr(code, msg, nil)
				})),
			cel.Overload("throw_int_string_dyn", []*cel.Type{cel.IntType, cel.StringType, cel.DynType}, cel.DynType,
				cel.FunctionBinding(func(vals ...ref.Val) ref.Val {
					return throwErr(vals[0], vals[1], vals[2])
				}))),
	)
	if err != nil {
		return nil, &types.Fault{Message: fmt.Sprintf("build evaluation env: %v", err)}
	}

	activation := map[string]interface{}{
		"contract":      toJSONValue(constants.Contract),
		"transaction":   toJSONValue(constants.Transaction),
		"next_contract": toJSONValue(constants.NextContract),
		"args":          emptyIfNilMap(constants.Args),
		"params":        []interface{}{},
		"now":           constants.Now.Unix(),
		"state":         decodeState(constants.State),
		"balance":       toJSONValue(constants.Balance),
		"seed_ref":      constants.SeedRef,
	}

	return &session{env: env, activation: activation, logs: logs}, nil
}

// eval 编译并求值单个表达式
func (s *session) eval(ctx context.Context, expr string) (interface{}, *types.Fault) {
	ast, issues := s.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, &types.Fault{
			Message: fmt.Sprintf("compile error: %v", issues.Err()),
			Logs:    *s.logs,
		}
	}

	prg, err := s.env.Program(ast, cel.InterruptCheckFrequency(100))
	if err != nil {
		return nil, &types.Fault{Message: fmt.Sprintf("build program: %v", err), Logs: *s.logs}
	}

	val, _, err := prg.ContextEval(ctx, s.activation)
	if err != nil {
		return nil, faultFromEvalError(err, *s.logs)
	}

	native, err := refToNative(val)
	if err != nil {
		return nil, &types.Fault{Message: fmt.Sprintf("convert result: %v", err), Logs: *s.logs}
	}
	return native, nil
}

// throwErr 构造携带抛出值标记的求值错误
func throwErr(code, msg, data ref.Val) ref.Val {
	thrown := types.ThrownValue{
		Code:    code.Value().(int64),
		Message: fmt.Sprintf("%v", msg.Value()),
	}
	if data != nil {
		if native, err := refToNative(data); err == nil {
			thrown.Data = native
		}
	}
	encoded, err := json.Marshal(&thrown)
	if err != nil {
		encoded = []byte(fmt.Sprintf(`{"code":%d,"message":%q}`, thrown.Code, thrown.Message))
	}
	return celtypes.NewErr("%s%s", throwMarker, string(encoded))
}

// faultFromEvalError 把求值错误转换为后端故障
func faultFromEvalError(err error, logs []string) *types.Fault {
	message := err.Error()

	if idx := strings.Index(message, throwMarker); idx >= 0 {
		encoded := message[idx+len(throwMarker):]
		var thrown types.ThrownValue
		if jsonErr := json.Unmarshal([]byte(encoded), &thrown); jsonErr == nil {
			return &types.Fault{Thrown: &thrown, Message: thrown.Message, Logs: logs}
		}
	}

	return &types.Fault{Message: message, Logs: logs}
}

// refToNative 把CEL值转换为Go原生值（经structpb.Value归一化）
func refToNative(val ref.Val) (interface{}, error) {
	native, err := val.ConvertToNative(reflect.TypeOf(&structpb.Value{}))
	if err != nil {
		return nil, err
	}
	return native.(*structpb.Value).AsInterface(), nil
}

// toJSONValue 把结构体转换为JSON解码后的通用形态
func toJSONValue(v interface{}) interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return map[string]interface{}{}
	}
	var decoded interface{}
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return map[string]interface{}{}
	}
	if decoded == nil {
		return map[string]interface{}{}
	}
	return decoded
}

// decodeState 解码序列化状态（空状态=空映射）
func decodeState(state []byte) interface{} {
	if len(state) == 0 {
		return map[string]interface{}{}
	}
	var decoded interface{}
	if err := json.Unmarshal(state, &decoded); err != nil {
		return map[string]interface{}{}
	}
	return decoded
}

// emptyIfNilMap 空映射归一化
func emptyIfNilMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

// ============================================================================
//                          下一笔交易构造映射解码
// ============================================================================

// txConstruct 交易构造映射的线格式
type txConstruct struct {
	Type      string `json:"type,omitempty"`
	Content   string `json:"content,omitempty"`
	Transfers []struct {
		To     string `json:"to"`
		Amount uint64 `json:"amount"`
		Token  string `json:"token,omitempty"`
	} `json:"transfers,omitempty"`
}

// decodeTransaction 把触发器体产出的构造映射解码为交易
func decodeTransaction(value interface{}) (*types.Transaction, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	var construct txConstruct
	if err := json.Unmarshal(encoded, &construct); err != nil {
		return nil, err
	}

	txType := construct.Type
	if txType == "" {
		txType = "contract"
	}

	tx := &types.Transaction{
		Type: txType,
		Data: types.TransactionData{Content: construct.Content},
	}

	for _, t := range construct.Transfers {
		to, err := types.AddressFromHex(t.To)
		if err != nil {
			return nil, fmt.Errorf("invalid transfer recipient %q: %w", t.To, err)
		}
		transfer := types.Transfer{To: to, Amount: t.Amount}
		if t.Token != "" {
			token, err := types.AddressFromHex(t.Token)
			if err != nil {
				return nil, fmt.Errorf("invalid token address %q: %w", t.Token, err)
			}
			transfer.TokenAddress = token
		}
		tx.Data.Ledger.Transfers = append(tx.Data.Ledger.Transfers, transfer)
	}

	return tx, nil
}
