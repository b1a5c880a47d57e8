package rules

import "github.com/wfunc/obscura/internal/dice"

// Level 奖励/惩罚骰等级，+2 到 -2
type Level int

// Levels 展示顺序
var Levels = [...]Level{2, 1, 0, -1, -2}

// Key 消息中使用的键：p2 p1 p0 n1 n2
func (l Level) Key() string {
	switch l {
	case 2:
		return "p2"
	case 1:
		return "p1"
	case 0:
		return "p0"
	case -1:
		return "n1"
	case -2:
		return "n2"
	}
	return ""
}

// selectRoll 从三次骰值中按等级选取
func (l Level) selectRoll(d [3]int) int {
	switch l {
	case 2:
		return min(d[0], d[1], d[2])
	case 1:
		return min(d[0], d[1])
	case -1:
		return max(d[0], d[1])
	case -2:
		return max(d[0], d[1], d[2])
	default:
		return d[0]
	}
}

// LevelOutcome 单个等级的结果
type LevelOutcome struct {
	Roll  int    `json:"roll"`
	Text  string `json:"text"`
	Class string `json:"class"`
	Tier  Tier   `json:"-"`
}

// BonusPenalty 一次奖励/惩罚骰检定的全部结果
//
// 五个等级都由同一组三次骰值选取得到，而不是重新掷骰。
type BonusPenalty struct {
	SkillValue   int
	HardValue    int
	ExtremeValue int
	Draws        [3]int
	Outcomes     map[Level]LevelOutcome
}

// Results 按消息键组织的结果
func (b BonusPenalty) Results() map[string]LevelOutcome {
	out := make(map[string]LevelOutcome, len(b.Outcomes))
	for l, o := range b.Outcomes {
		out[l.Key()] = o
	}
	return out
}

// Outcome 获取指定等级结果
func (b BonusPenalty) Outcome(l Level) LevelOutcome {
	return b.Outcomes[l]
}

// ResolveBonusPenalty 用给定的三次骰值解析奖励/惩罚骰
func ResolveBonusPenalty(skillValue int, draws [3]int) BonusPenalty {
	outcomes := make(map[Level]LevelOutcome, len(Levels))
	for _, l := range Levels {
		roll := l.selectRoll(draws)
		tier := ClassifyRoll(skillValue, roll)
		outcomes[l] = LevelOutcome{
			Roll:  roll,
			Text:  tier.Label(),
			Class: tier.Collapsed(),
			Tier:  tier,
		}
	}

	return BonusPenalty{
		SkillValue:   skillValue,
		HardValue:    floorDiv(skillValue, 2),
		ExtremeValue: floorDiv(skillValue, 5),
		Draws:        draws,
		Outcomes:     outcomes,
	}
}

// RollBonusPenalty 从随机源取三次百分骰并解析
func RollBonusPenalty(src dice.Source, skillValue int) BonusPenalty {
	var draws [3]int
	for i := range draws {
		draws[i] = src.RollUniform(PercentileLow, PercentileHigh)
	}
	return ResolveBonusPenalty(skillValue, draws)
}
