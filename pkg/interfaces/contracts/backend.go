package contracts

import (
	"context"

	"github.com/weisyn/contracts/pkg/types"
)

// InterpretedEvaluator 解释型领域语言求值器（外部协作方）
//
// 🎯 **契约**：
// - 每个方法要么返回原始结果，要么返回 *types.Fault（用户抛出或内部故障）
// - 求值器自身不做截止时间管理——取消由传入的 ctx 控制
//
// ⚠️ **核心约束**：
// - 返回 (nil, nil, ...) 形态的组合视为后端契约违规，由铸型器转换为类型化失败
type InterpretedEvaluator interface {
	// ExecuteTrigger 对触发器体求值
	ExecuteTrigger(ctx context.Context, trigger types.TriggerID, constants *types.Constants) (*types.EvalResult, *types.Fault)

	// ExecuteCondition 对条件体求值
	//
	// 未声明的条件以 Declared=false 返回，由引擎按条件种类决定
	// 默认通过（inherit）还是硬失败（其余种类）。
	ExecuteCondition(ctx context.Context, condition types.ConditionID, constants *types.Constants) (*types.ConditionResult, *types.Fault)

	// ExecuteFunction 对公共函数体求值（只读）
	ExecuteFunction(ctx context.Context, name string, args []interface{}, constants *types.Constants) (*types.EvalResult, *types.Fault)
}

// ModuleExecutor 沙箱字节码模块执行器（外部协作方）
//
// 🎯 **契约**：
// - Execute 以命名选项调用模块导出函数，返回 {read|update} 结果或错误
// - ListExportedFunctions 返回模块导出函数名集合（用于触发器/钩子存在性检查）
//
// ⚠️ **核心约束**：
// - 模块执行必须在 ctx 截止时间内被强制终止——用户代码不可信任其协作让出
type ModuleExecutor interface {
	// Execute 执行模块导出函数
	Execute(ctx context.Context, module []byte, functionName string, call *types.ModuleCall) (*types.ModuleResult, error)

	// ListExportedFunctions 列出模块导出函数名集合
	ListExportedFunctions(module []byte) (map[string]struct{}, error)
}
