// roller 离线掷骰与检定工具，使用与服务器相同的规则。
//
// Usage:
//
//	roller check <value>                  - 普通技能检定
//	roller bonus <value>                  - 奖励/惩罚骰检定
//	roller dice <expr>                    - 自由骰，如 3d6
//	roller derive --str --siz --dex --age - 派生属性
//
// Global flags:
//
//	--seed <value>   - 固定种子，结果可复现
//	--format <name>  - text / json / yaml
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wfunc/obscura/internal/dice"
)

// options 全局参数
type options struct {
	seed    int64
	format  string
	noColor bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "roller",
		Short: "Obscura 离线掷骰工具",
		Long: `使用与服务器相同的规则，离线完成技能检定、奖励/惩罚骰、
自由骰表达式与派生属性计算。

示例:
  roller check 65
  roller bonus 40 --seed 7
  roller dice 3d6 --format json
  roller derive --str 70 --siz 65 --dex 55 --age 42`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.format {
			case formatText, formatJSON, formatYAML:
				return nil
			}
			return fmt.Errorf("不支持的输出格式 %q (text, json, yaml)", opts.format)
		},
	}

	root.PersistentFlags().Int64Var(&opts.seed, "seed", 0, "随机种子，0 表示随机生成并输出以便复现")
	root.PersistentFlags().StringVar(&opts.format, "format", formatText, "输出格式: text / json / yaml")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "关闭彩色输出")

	root.AddCommand(newCheckCmd(opts))
	root.AddCommand(newBonusCmd(opts))
	root.AddCommand(newDiceCmd(opts))
	root.AddCommand(newDeriveCmd(opts))
	return root
}

// source 按种子创建随机源，未指定时生成一个种子
func (o *options) source() (dice.Source, int64, error) {
	seed := o.seed
	if seed == 0 {
		var err error
		if seed, err = dice.NewSeed(); err != nil {
			return nil, 0, err
		}
	}
	return dice.NewSeededSource(seed), seed, nil
}
