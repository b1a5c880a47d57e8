// Package rules 跑团规则：派生属性、检定与奖励/惩罚骰
//
// 本包内全部函数都是纯函数，对任意整数输入都有定义，不会失败；
// 随机性只从调用方传入的 dice.Source 获得。
package rules

import "strconv"

// Inputs 派生属性计算所需的原始数据
type Inputs struct {
	STR int
	SIZ int
	DEX int
	Age int
}

// Derived 派生属性
type Derived struct {
	DamageBonus string `json:"damage_bonus"`
	Build       int    `json:"build"`
	Movement    int    `json:"movement"`
}

// Ceilings 生命值/魔法值/理智上限与重伤阈值，只在读取时计算，从不存储
type Ceilings struct {
	MaxHP               int `json:"maxHP"`
	MaxMP               int `json:"maxMP"`
	MaxSAN              int `json:"maxSAN"`
	MajorWoundThreshold int `json:"majorWoundThreshold"`
}

// 年龄阈值，每达到一个移动力减1
var movementAgeThresholds = [...]int{40, 50, 60, 70, 80}

// Calculate 计算全部派生属性
func Calculate(in Inputs) Derived {
	db, build := DamageBonusAndBuild(in.STR, in.SIZ)
	return Derived{
		DamageBonus: db,
		Build:       build,
		Movement:    MovementRate(in.DEX, in.STR, in.SIZ, in.Age),
	}
}

// DamageBonusAndBuild 根据 STR+SIZ 查表得出伤害加值与体格
func DamageBonusAndBuild(str, siz int) (string, int) {
	total := str + siz
	switch {
	case total < 65:
		return "-2", -2
	case total < 85:
		return "-1", -1
	case total < 125:
		return "0", 0
	case total < 165:
		return "1d4", 1
	case total < 205:
		return "1d6", 2
	}

	// 每超出80点（向上取整）多一个d6
	k := (total - 204 + 79) / 80
	return strconv.Itoa(1+k) + "d6", 2 + k
}

// MovementRate 计算移动力
//
// 基础值8；DEX、STR都小于SIZ时为7，都大于SIZ时为9；
// 之后按年龄阈值逐级扣减，不设下限。
func MovementRate(dex, str, siz, age int) int {
	mov := 8
	if dex < siz && str < siz {
		mov = 7
	} else if dex > siz && str > siz {
		mov = 9
	}

	for _, threshold := range movementAgeThresholds {
		if age >= threshold {
			mov--
		}
	}
	return mov
}

// ComputeCeilings 计算各项上限
func ComputeCeilings(con, siz, pow, mythos int) Ceilings {
	maxHP := floorDiv(con+siz, 10)
	return Ceilings{
		MaxHP:               maxHP,
		MaxMP:               floorDiv(pow, 5),
		MaxSAN:              99 - mythos,
		MajorWoundThreshold: floorDiv(maxHP, 2),
	}
}

// floorDiv 向下取整的整数除法（Go 的 / 向零取整）
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
