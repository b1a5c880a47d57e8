package rules

import "sort"

// 特殊技能名
const (
	SkillDodge       = "회피"
	SkillOwnLanguage = "모국어"
	SkillMythos      = "크툴루 신화"
)

// baseSkills 技能基础值表（回避与母语由属性动态决定，不在表中）
var baseSkills = map[string]int{
	"관찰력":        25,
	"자료조사":       20,
	"듣기":         20,
	"도약":         20,
	"말재주":        5,
	"매혹":         15,
	"변장":         5,
	"설득":         10,
	"손놀림":        10,
	"수영":         20,
	"승마":         5,
	"심리학":        10,
	"위협":         15,
	"은밀행동":       20,
	"추적":         10,
	"투척":         20,
	"근접전(격투)":    25,
	"사격(권총)":     20,
	"사격(소총/산탄총)": 25,
	"기계수리":       10,
	"열쇠공":        1,
	"전기수리":       10,
	"자동차 운전":     20,
	"중장비 조작":     1,
	"고고학":        1,
	"역사":         5,
	"오컬트":        5,
	"의료":         1,
	"인류학":        1,
	"자연":         10,
	"정신분석":       1,
	SkillMythos:    0,
	"회계":         5,
	"예술/공예":      5,
	"과학":         1,
	"생존술":        10,
	"응급처치":       30,
	"오르기":        20,
	"재력":         0,
	"항법":         10,
}

// AttributeLabels 属性缩写对应的显示名
var AttributeLabels = map[string]string{
	"STR":  "근력",
	"CON":  "건강",
	"SIZ":  "크기",
	"DEX":  "민첩",
	"APP":  "외모",
	"INT":  "지능",
	"POW":  "정신력",
	"EDU":  "교육",
	"MOV":  "이동력",
	"LUCK": "행운",
}

// BaseSkill 查询基础值表
func BaseSkill(name string) (int, bool) {
	v, ok := baseSkills[name]
	return v, ok
}

// BaseSkills 返回基础值表的副本
func BaseSkills() map[string]int {
	out := make(map[string]int, len(baseSkills))
	for k, v := range baseSkills {
		out[k] = v
	}
	return out
}

// IsDynamicSkill 是否为由属性决定默认值的技能
func IsDynamicSkill(name string) bool {
	return name == SkillDodge || name == SkillOwnLanguage
}

// DynamicDefault 动态默认值：回避 = DEX/2，母语 = EDU
func DynamicDefault(name string, dex, edu int) (int, bool) {
	switch name {
	case SkillDodge:
		return floorDiv(dex, 2), true
	case SkillOwnLanguage:
		return edu, true
	}
	return 0, false
}

// ResolveSkill 计算技能的实时值
//
// 顺序：已存储值 > 基础值表 > 动态默认值 > 0。
// 已存储的 0 也视为存在。
func ResolveSkill(stored map[string]int, name string, dex, edu int) int {
	if v, ok := stored[name]; ok {
		return v
	}
	if v, ok := baseSkills[name]; ok {
		return v
	}
	if v, ok := DynamicDefault(name, dex, edu); ok {
		return v
	}
	return 0
}

// LiveSkills 计算全部技能的实时值（基础表、动态默认值与已存储值的并集）
func LiveSkills(stored map[string]int, dex, edu int) map[string]int {
	out := make(map[string]int, len(baseSkills)+len(stored)+2)
	for _, name := range []string{SkillDodge, SkillOwnLanguage} {
		out[name] = ResolveSkill(stored, name, dex, edu)
	}
	for name := range baseSkills {
		out[name] = ResolveSkill(stored, name, dex, edu)
	}
	for name, v := range stored {
		out[name] = v
	}
	return out
}

// MissingDynamicDefaults 返回尚未存储的动态默认技能及其当前值，用于首次加载时写回
func MissingDynamicDefaults(stored map[string]int, dex, edu int) map[string]int {
	out := make(map[string]int, 2)
	for _, name := range []string{SkillDodge, SkillOwnLanguage} {
		if _, ok := stored[name]; ok {
			continue
		}
		v, _ := DynamicDefault(name, dex, edu)
		out[name] = v
	}
	return out
}

// SortedSkillNames 按名称排序
func SortedSkillNames(skills map[string]int) []string {
	names := make([]string, 0, len(skills))
	for name := range skills {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
