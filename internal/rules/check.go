package rules

import "github.com/wfunc/obscura/internal/dice"

// 百分骰的取值范围
const (
	PercentileLow  = 1
	PercentileHigh = 100

	// FumbleThreshold 掷出不低于该值且未成功即为大失败
	FumbleThreshold = 96
)

// Tier 检定结果等级
type Tier string

const (
	TierCritical Tier = "critical"
	TierExtreme  Tier = "extreme"
	TierHard     Tier = "hard"
	TierRegular  Tier = "regular"
	TierFumble   Tier = "fumble"
	TierFailure  Tier = "failure"
)

var tierLabels = map[Tier]string{
	TierCritical: "대성공",
	TierExtreme:  "극단적 성공",
	TierHard:     "어려운 성공",
	TierRegular:  "성공",
	TierFumble:   "대실패",
	TierFailure:  "실패",
}

// Label 展示文本
func (t Tier) Label() string {
	return tierLabels[t]
}

// IsSuccess 是否为任意成功等级
func (t Tier) IsSuccess() bool {
	switch t {
	case TierCritical, TierExtreme, TierHard, TierRegular:
		return true
	default:
		return false
	}
}

// Class 普通检定的结果分类
func (t Tier) Class() string {
	if t.IsSuccess() {
		return "success-" + string(t)
	}
	return string(t)
}

// Collapsed 奖励/惩罚骰使用的精简分类：success / failure / fumble
func (t Tier) Collapsed() string {
	if t.IsSuccess() {
		return "success"
	}
	return string(t)
}

// ClassifyRoll 按优先级判定等级
//
// 掷出1永远是大成功（即使技能值为0）；成功判定优先于大失败阈值。
func ClassifyRoll(skillValue, roll int) Tier {
	switch {
	case roll <= 1:
		return TierCritical
	case roll <= floorDiv(skillValue, 5):
		return TierExtreme
	case roll <= floorDiv(skillValue, 2):
		return TierHard
	case roll <= skillValue:
		return TierRegular
	case roll >= FumbleThreshold:
		return TierFumble
	default:
		return TierFailure
	}
}

// Check 一次普通检定的结果
type Check struct {
	SkillValue   int  `json:"skillValue"`
	HardValue    int  `json:"hardValue"`
	ExtremeValue int  `json:"extremeValue"`
	Roll         int  `json:"roll"`
	Tier         Tier `json:"tier"`
}

// Text 结果文本
func (c Check) Text() string { return c.Tier.Label() }

// Class 结果分类
func (c Check) Class() string { return c.Tier.Class() }

// ResolveCheck 用指定的骰值解析检定
func ResolveCheck(skillValue, roll int) Check {
	return Check{
		SkillValue:   skillValue,
		HardValue:    floorDiv(skillValue, 2),
		ExtremeValue: floorDiv(skillValue, 5),
		Roll:         roll,
		Tier:         ClassifyRoll(skillValue, roll),
	}
}

// RollCheck 从随机源取一次百分骰并解析
func RollCheck(src dice.Source, skillValue int) Check {
	return ResolveCheck(skillValue, src.RollUniform(PercentileLow, PercentileHigh))
}
