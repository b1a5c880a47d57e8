package dice

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/wfunc/obscura/internal/errors"
)

// expressionPattern 匹配表达式中第一个 NdM 片段，其余内容保留在原文中
var expressionPattern = regexp.MustCompile(`(\d+)d(\d+)`)

// Limits 骰子表达式的上限
type Limits struct {
	MaxCount int
	MaxSides int
}

// DefaultLimits 默认上限
var DefaultLimits = Limits{MaxCount: 100, MaxSides: 1000}

// Expression 解析后的骰子表达式
type Expression struct {
	Raw   string `json:"raw"`
	Count int    `json:"count"`
	Sides int    `json:"sides"`
}

// Result 一次掷骰的结果
type Result struct {
	Expression Expression `json:"expression"`
	Rolls      []int      `json:"rolls"`
	Total      int        `json:"total"`
}

// ParseExpression 解析骰子表达式
func ParseExpression(raw string, limits Limits) (Expression, error) {
	raw = strings.TrimSpace(raw)
	m := expressionPattern.FindStringSubmatch(raw)
	if m == nil {
		return Expression{}, errors.New(errors.ErrInvalidDice, raw)
	}

	count, err := strconv.Atoi(m[1])
	if err != nil {
		return Expression{}, errors.Wrap(err, errors.ErrInvalidDice, raw)
	}
	sides, err := strconv.Atoi(m[2])
	if err != nil {
		return Expression{}, errors.Wrap(err, errors.ErrInvalidDice, raw)
	}

	if count < 1 || sides < 1 {
		return Expression{}, errors.Newf(errors.ErrInvalidDice, "%s: 数量和面数必须大于0", raw)
	}
	if limits.MaxCount > 0 && count > limits.MaxCount {
		return Expression{}, errors.Newf(errors.ErrInvalidDice, "%s: 骰子数量超过上限 %d", raw, limits.MaxCount)
	}
	if limits.MaxSides > 0 && sides > limits.MaxSides {
		return Expression{}, errors.Newf(errors.ErrInvalidDice, "%s: 骰子面数超过上限 %d", raw, limits.MaxSides)
	}

	return Expression{Raw: raw, Count: count, Sides: sides}, nil
}

// Roll 使用给定随机源掷骰
func (e Expression) Roll(src Source) Result {
	rolls := make([]int, e.Count)
	total := 0
	for i := range rolls {
		rolls[i] = src.RollUniform(1, e.Sides)
		total += rolls[i]
	}
	return Result{Expression: e, Rolls: rolls, Total: total}
}

// Text 聊天记录中展示的文本，例如 "3d6 굴림: 11 (2, 4, 5)"
func (r Result) Text() string {
	parts := make([]string, len(r.Rolls))
	for i, v := range r.Rolls {
		parts[i] = strconv.Itoa(v)
	}
	return r.Expression.Raw + " 굴림: " + strconv.Itoa(r.Total) + " (" + strings.Join(parts, ", ") + ")"
}

// InvalidText 非法表达式对应的叙述文本
func InvalidText(raw string) string {
	return "잘못된 주사위: " + raw
}
