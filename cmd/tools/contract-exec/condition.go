package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	ifcontracts "github.com/weisyn/contracts/pkg/interfaces/contracts"
	"github.com/weisyn/contracts/pkg/types"
)

var (
	conditionTxFile string
	conditionArgs   string
)

// conditionCmd 校验条件
var conditionCmd = &cobra.Command{
	Use:   "condition <contract-tx.json> <transaction|inherit|action:name/arity>",
	Short: "校验条件",
	Long:  "对合约执行一次条件校验模拟，打印裁定或类型化失败",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sim, err := newSimulation(args[0])
		if err != nil {
			return err
		}
		defer sim.close()

		condition, err := parseConditionArg(args[1])
		if err != nil {
			return err
		}

		var incomingTx *types.Transaction
		if conditionTxFile != "" {
			raw, err := os.ReadFile(conditionTxFile)
			if err != nil {
				return fmt.Errorf("读取触发交易失败: %w", err)
			}
			incomingTx = &types.Transaction{}
			if err := json.Unmarshal(raw, incomingTx); err != nil {
				return fmt.Errorf("解析触发交易失败: %w", err)
			}
		}

		var recipient *types.Recipient
		if conditionArgs != "" {
			recipient = &types.Recipient{Address: sim.contract.Address(), Action: condition.Action}
			if err := json.Unmarshal([]byte(conditionArgs), &recipient.Args); err != nil {
				return fmt.Errorf("解析 --args 失败: %w", err)
			}
		}

		verdict, failure := sim.engine.ExecuteCondition(cmd.Context(), &ifcontracts.ConditionRequest{
			Condition:      condition,
			Contract:       sim.contract,
			IncomingTx:     incomingTx,
			Recipient:      recipient,
			ValidationTime: sim.now,
			Inputs:         sim.inputs,
			Opts: ifcontracts.ExecOptions{
				Time:      sim.now,
				SkipCache: true,
			},
		})

		if failure != nil {
			fmt.Printf("❌ 条件 %s 执行失败 (%s)\n", condition.Key(), failure.Kind)
			return printJSON(failure)
		}
		if verdict.Valid {
			fmt.Printf("✅ 条件 %s 通过\n", condition.Key())
		} else {
			fmt.Printf("❌ 条件 %s 未通过 (主题: %s)\n", condition.Key(), verdict.Subject)
		}
		return printJSON(verdict)
	},
}

func init() {
	conditionCmd.Flags().StringVar(&conditionTxFile, "tx", "", "触发交易文件（JSON）")
	conditionCmd.Flags().StringVar(&conditionArgs, "args", "", "命名参数（JSON对象）")
}

// parseConditionArg 解析条件身份参数
//
// 支持形式: "transaction"、"inherit"、"action:name/arity"
func parseConditionArg(s string) (types.ConditionID, error) {
	switch s {
	case "transaction":
		return types.ConditionID{Kind: types.ConditionTransaction}, nil
	case "inherit":
		return types.ConditionID{Kind: types.ConditionInherit}, nil
	}

	rest, ok := strings.CutPrefix(s, "action:")
	if !ok {
		return types.ConditionID{}, fmt.Errorf("未知条件: %s", s)
	}
	name, arityStr, ok := strings.Cut(rest, "/")
	if !ok || name == "" {
		return types.ConditionID{}, fmt.Errorf("动作条件需要 action:name/arity 形式: %s", s)
	}
	arity, err := strconv.Atoi(arityStr)
	if err != nil {
		return types.ConditionID{}, fmt.Errorf("解析参数数量失败: %w", err)
	}
	return types.ConditionID{Kind: types.ConditionAction, Action: name, Arity: arity}, nil
}
