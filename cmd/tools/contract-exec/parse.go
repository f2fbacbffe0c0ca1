package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weisyn/contracts/internal/core/contracts/parse"
	"github.com/weisyn/contracts/pkg/types"
)

// parseCmd 解析并校验合约定义交易
var parseCmd = &cobra.Command{
	Use:   "parse <contract-tx.json>",
	Short: "解析并校验合约负载",
	Long:  "解析合约定义交易并校验其良构性，打印能力集摘要",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("读取合约定义交易失败: %w", err)
		}

		var tx types.Transaction
		if err := json.Unmarshal(raw, &tx); err != nil {
			return fmt.Errorf("解析合约定义交易失败: %w", err)
		}

		contract, err := parse.ValidateAndParse(&tx)
		if err != nil {
			return fmt.Errorf("合约负载校验失败: %w", err)
		}

		fmt.Printf("✅ 合约负载良构 (变体: %s)\n", contract.Variant)

		triggers := make([]string, 0, len(contract.Triggers))
		for _, spec := range contract.Triggers {
			triggers = append(triggers, spec.ID.Key())
		}
		conditionKeys := make([]string, 0, len(contract.Conditions))
		for _, cond := range contract.Conditions {
			conditionKeys = append(conditionKeys, cond.Key())
		}
		functions := make([]string, 0, len(contract.Functions))
		for _, fn := range contract.Functions {
			functions = append(functions, fmt.Sprintf("%s/%d (%s)", fn.Name, fn.Arity, fn.Visibility))
		}

		return printJSON(map[string]interface{}{
			"variant":    contract.Variant,
			"address":    contract.Address().Hex(),
			"triggers":   triggers,
			"conditions": conditionKeys,
			"functions":  functions,
			"upgradable": contract.UpgradePolicy != nil,
		})
	},
}
