package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wfunc/obscura/internal/dice"
	"github.com/wfunc/obscura/internal/rules"
)

type checkResult struct {
	Value   int    `json:"value" yaml:"value"`
	Hard    int    `json:"hard" yaml:"hard"`
	Extreme int    `json:"extreme" yaml:"extreme"`
	Roll    int    `json:"roll" yaml:"roll"`
	Text    string `json:"text" yaml:"text"`
	Class   string `json:"class" yaml:"class"`
}

type levelResult struct {
	Level string `json:"level" yaml:"level"`
	Roll  int    `json:"roll" yaml:"roll"`
	Text  string `json:"text" yaml:"text"`
	Class string `json:"class" yaml:"class"`
}

type bonusResult struct {
	Value   int           `json:"value" yaml:"value"`
	Hard    int           `json:"hard" yaml:"hard"`
	Extreme int           `json:"extreme" yaml:"extreme"`
	Draws   []int         `json:"draws" yaml:"draws"`
	Levels  []levelResult `json:"levels" yaml:"levels"`
}

type diceResult struct {
	Expression string `json:"expression" yaml:"expression"`
	Rolls      []int  `json:"rolls" yaml:"rolls"`
	Total      int    `json:"total" yaml:"total"`
	Text       string `json:"text" yaml:"text"`
}

type deriveResult struct {
	DamageBonus string         `json:"damageBonus" yaml:"damageBonus"`
	Build       int            `json:"build" yaml:"build"`
	Movement    int            `json:"movement" yaml:"movement"`
	Ceilings    rules.Ceilings `json:"ceilings" yaml:"ceilings"`
}

// parseValue 技能值参数
func parseValue(arg string) (int, error) {
	v, err := strconv.Atoi(arg)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("无效的技能值 %q", arg)
	}
	return v, nil
}

func newCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check <value>",
		Short: "按技能值进行百分骰检定",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseValue(args[0])
			if err != nil {
				return err
			}
			src, seed, err := opts.source()
			if err != nil {
				return err
			}

			check := rules.RollCheck(src, value)
			r := &report{Kind: "check", Seed: seed, Result: checkResult{
				Value:   check.SkillValue,
				Hard:    check.HardValue,
				Extreme: check.ExtremeValue,
				Roll:    check.Roll,
				Text:    check.Text(),
				Class:   check.Class(),
			}}
			r.add(fmt.Sprintf("%d / %d (困难 %d, 极难 %d)", check.Roll, check.SkillValue, check.HardValue, check.ExtremeValue), "")
			r.add(check.Text(), check.Class())
			return r.write(cmd.OutOrStdout(), opts)
		},
	}
}

func newBonusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "bonus <value>",
		Short: "奖励/惩罚骰，一组骰值给出五个等级",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseValue(args[0])
			if err != nil {
				return err
			}
			src, seed, err := opts.source()
			if err != nil {
				return err
			}

			bp := rules.RollBonusPenalty(src, value)
			res := bonusResult{
				Value:   bp.SkillValue,
				Hard:    bp.HardValue,
				Extreme: bp.ExtremeValue,
				Draws:   bp.Draws[:],
			}
			r := &report{Kind: "bonus", Seed: seed}
			r.add(fmt.Sprintf("骰值 %d, %d, %d 对 %d", bp.Draws[0], bp.Draws[1], bp.Draws[2], bp.SkillValue), "")
			for _, l := range rules.Levels {
				o := bp.Outcome(l)
				res.Levels = append(res.Levels, levelResult{Level: l.Key(), Roll: o.Roll, Text: o.Text, Class: o.Class})
				r.add(fmt.Sprintf("%s  %3d  %s", l.Key(), o.Roll, o.Text), o.Class)
			}
			r.Result = res
			return r.write(cmd.OutOrStdout(), opts)
		},
	}
}

func newDiceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dice <expr>",
		Short: "掷自由骰，如 3d6",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr, err := dice.ParseExpression(args[0], dice.DefaultLimits)
			if err != nil {
				return err
			}
			src, seed, err := opts.source()
			if err != nil {
				return err
			}

			res := expr.Roll(src)
			r := &report{Kind: "dice", Seed: seed, Result: diceResult{
				Expression: expr.Raw,
				Rolls:      res.Rolls,
				Total:      res.Total,
				Text:       res.Text(),
			}}
			r.add(res.Text(), "")
			return r.write(cmd.OutOrStdout(), opts)
		},
	}
}

func newDeriveCmd(opts *options) *cobra.Command {
	var str, siz, dex, age, con, pow, mythos int

	cmd := &cobra.Command{
		Use:   "derive",
		Short: "伤害加值、体格、移动力与上限",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := rules.Calculate(rules.Inputs{STR: str, SIZ: siz, DEX: dex, Age: age})
			c := rules.ComputeCeilings(con, siz, pow, mythos)

			r := &report{Kind: "derive", Result: deriveResult{
				DamageBonus: d.DamageBonus,
				Build:       d.Build,
				Movement:    d.Movement,
				Ceilings:    c,
			}}
			r.add(fmt.Sprintf("伤害加值 %s, 体格 %d, 移动力 %d", d.DamageBonus, d.Build, d.Movement), "")
			r.add(fmt.Sprintf("HP %d, MP %d, SAN %d, 重伤阈值 %d", c.MaxHP, c.MaxMP, c.MaxSAN, c.MajorWoundThreshold), "")
			return r.write(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().IntVar(&str, "str", 50, "STR")
	cmd.Flags().IntVar(&siz, "siz", 50, "SIZ")
	cmd.Flags().IntVar(&dex, "dex", 50, "DEX")
	cmd.Flags().IntVar(&age, "age", 25, "年龄")
	cmd.Flags().IntVar(&con, "con", 50, "CON")
	cmd.Flags().IntVar(&pow, "pow", 50, "POW")
	cmd.Flags().IntVar(&mythos, "mythos", 0, "克苏鲁神话技能")
	return cmd
}
