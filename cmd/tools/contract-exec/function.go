package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	ifcontracts "github.com/weisyn/contracts/pkg/interfaces/contracts"
)

var functionArgs string

// functionCmd 调用只读公共函数
var functionCmd = &cobra.Command{
	Use:   "function <contract-tx.json> <name>",
	Short: "调用公共函数",
	Long:  "对合约执行一次只读公共函数调用模拟，打印返回值或类型化失败",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sim, err := newSimulation(args[0])
		if err != nil {
			return err
		}
		defer sim.close()

		var callArgs []interface{}
		if functionArgs != "" {
			if err := json.Unmarshal([]byte(functionArgs), &callArgs); err != nil {
				return fmt.Errorf("解析 --args 失败: %w", err)
			}
		}

		value, failure := sim.engine.ExecuteFunction(cmd.Context(), &ifcontracts.FunctionRequest{
			Contract: sim.contract,
			Function: args[1],
			Args:     callArgs,
			Inputs:   sim.inputs,
		})

		if failure != nil {
			fmt.Printf("❌ 函数 %s/%d 调用失败 (%s)\n", args[1], len(callArgs), failure.Kind)
			return printJSON(failure)
		}
		fmt.Printf("✅ 函数 %s/%d 调用成功\n", args[1], len(callArgs))
		return printJSON(value)
	},
}

func init() {
	functionCmd.Flags().StringVar(&functionArgs, "args", "", "位置参数（JSON数组）")
}
