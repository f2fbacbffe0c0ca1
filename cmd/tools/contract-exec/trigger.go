package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	ifcontracts "github.com/weisyn/contracts/pkg/interfaces/contracts"
	"github.com/weisyn/contracts/pkg/types"
)

var (
	triggerKind   string
	triggerAction string
	triggerArgs   string
	triggerTxFile string
	triggerAt     string
	triggerCron   string
)

// triggerCmd 执行触发器
var triggerCmd = &cobra.Command{
	Use:   "trigger <contract-tx.json>",
	Short: "执行触发器",
	Long:  "对合约执行一次触发器模拟，打印规范链效果或类型化失败",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sim, err := newSimulation(args[0])
		if err != nil {
			return err
		}
		defer sim.close()

		trigger, err := buildTriggerID()
		if err != nil {
			return err
		}

		incomingTx, recipient, err := buildTriggerCall(sim.contract.Address())
		if err != nil {
			return err
		}

		outcome := sim.engine.ExecuteTrigger(cmd.Context(), &ifcontracts.TriggerRequest{
			Trigger:    trigger,
			Contract:   sim.contract,
			IncomingTx: incomingTx,
			Recipient:  recipient,
			Inputs:     sim.inputs,
			Opts: ifcontracts.ExecOptions{
				Time:      sim.now,
				SkipCache: true, // 模拟路径绝不污染共享缓存
			},
		})

		if outcome.OK() {
			fmt.Printf("✅ 触发器 %s 执行成功\n", trigger.Key())
		} else {
			fmt.Printf("❌ 触发器 %s 执行失败 (%s)\n", trigger.Key(), outcome.Failure.Kind)
		}
		return printJSON(outcome)
	},
}

func init() {
	triggerCmd.Flags().StringVar(&triggerKind, "kind", "transaction", "触发器种类: transaction|oracle|datetime|interval")
	triggerCmd.Flags().StringVar(&triggerAction, "action", "", "命名动作（transaction触发器）")
	triggerCmd.Flags().StringVar(&triggerArgs, "args", "", "命名参数（JSON对象）")
	triggerCmd.Flags().StringVar(&triggerTxFile, "tx", "", "触发交易文件（JSON）")
	triggerCmd.Flags().StringVar(&triggerAt, "at", "", "触发时间点（RFC3339，datetime触发器）")
	triggerCmd.Flags().StringVar(&triggerCron, "cron", "", "cron表达式（interval触发器）")
}

// buildTriggerID 从标志构造触发器身份
func buildTriggerID() (types.TriggerID, error) {
	switch types.TriggerKind(triggerKind) {
	case types.TriggerTransaction:
		arity := 0
		if triggerArgs != "" {
			var named map[string]interface{}
			if err := json.Unmarshal([]byte(triggerArgs), &named); err != nil {
				return types.TriggerID{}, fmt.Errorf("解析 --args 失败: %w", err)
			}
			arity = len(named)
		}
		return types.TriggerID{Kind: types.TriggerTransaction, Action: triggerAction, Arity: arity}, nil
	case types.TriggerOracle:
		return types.TriggerID{Kind: types.TriggerOracle}, nil
	case types.TriggerDatetime:
		if triggerAt == "" {
			return types.TriggerID{}, fmt.Errorf("datetime触发器需要 --at")
		}
		at, err := time.Parse(time.RFC3339, triggerAt)
		if err != nil {
			return types.TriggerID{}, fmt.Errorf("解析 --at 失败: %w", err)
		}
		return types.TriggerID{Kind: types.TriggerDatetime, At: at}, nil
	case types.TriggerInterval:
		if triggerCron == "" {
			return types.TriggerID{}, fmt.Errorf("interval触发器需要 --cron")
		}
		return types.TriggerID{Kind: types.TriggerInterval, Interval: triggerCron}, nil
	default:
		return types.TriggerID{}, fmt.Errorf("未知触发器种类: %s", triggerKind)
	}
}

// buildTriggerCall 构造触发交易与命中的接收方条目
func buildTriggerCall(contractAddr types.Address) (*types.Transaction, *types.Recipient, error) {
	var incomingTx *types.Transaction
	if triggerTxFile != "" {
		raw, err := os.ReadFile(triggerTxFile)
		if err != nil {
			return nil, nil, fmt.Errorf("读取触发交易失败: %w", err)
		}
		incomingTx = &types.Transaction{}
		if err := json.Unmarshal(raw, incomingTx); err != nil {
			return nil, nil, fmt.Errorf("解析触发交易失败: %w", err)
		}
	}

	var recipient *types.Recipient
	if triggerAction != "" || triggerArgs != "" {
		recipient = &types.Recipient{Address: contractAddr, Action: triggerAction}
		if triggerArgs != "" {
			if err := json.Unmarshal([]byte(triggerArgs), &recipient.Args); err != nil {
				return nil, nil, fmt.Errorf("解析 --args 失败: %w", err)
			}
		}
	}
	return incomingTx, recipient, nil
}
