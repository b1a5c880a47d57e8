package models

import (
	"github.com/wfunc/obscura/internal/rules"
)

// 角色模板默认值
const (
	DefaultCharacterName   = "이름 없는 탐사자"
	DefaultMentalCondition = "평상심"
	DefaultExpression      = "기본"
	templateAttribute      = 50
)

// CharacterStats 主属性
//
// MOV 是派生值，只能由重算或KP覆盖写入。
type CharacterStats struct {
	STR int `json:"STR"`
	CON int `json:"CON"`
	SIZ int `json:"SIZ"`
	DEX int `json:"DEX"`
	APP int `json:"APP"`
	INT int `json:"INT"`
	POW int `json:"POW"`
	EDU int `json:"EDU"`
	MOV int `json:"MOV"`
}

// CharacterVitals 状态值
type CharacterVitals struct {
	HP                 int  `json:"HP"`
	MP                 int  `json:"MP"`
	SAN                int  `json:"SAN"`
	InitialSAN         int  `json:"initialSAN"`
	LUCK               int  `json:"LUCK"`
	TemporaryInsanity  bool `json:"temporaryInsanity"`
	IndefiniteInsanity bool `json:"indefiniteInsanity"`
	MajorWound         bool `json:"majorWound"`
	Dying              bool `json:"dying"`
	PulpHP             bool `json:"pulpHp"`
}

// DerivedValues 存储的派生值缓存
type DerivedValues struct {
	DamageBonus string `json:"damage_bonus"`
	Build       int    `json:"build"`
}

// Weapon 武器
type Weapon struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Skill   string `json:"skill"`
	Damage  string `json:"damage"`
	Range   string `json:"range"`
	Attacks string `json:"attacks"`
	Ammo    string `json:"ammo"`
	Malf    string `json:"malf"`
}

// Talent 特质
type Talent struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Effect string `json:"effect"`
}

// Backstory 背景故事
type Backstory struct {
	PersonalDescription string `json:"personalDescription"`
	Traits              string `json:"traits"`
	Ideology            string `json:"ideology"`
	Injuries            string `json:"injuries"`
	People              string `json:"people"`
	Phobias             string `json:"phobias"`
	Locations           string `json:"locations"`
	Possessions         string `json:"possessions"`
	Encounters          string `json:"encounters"`
	Gear                string `json:"gear"`
	Cash                string `json:"cash"`
	Spending            string `json:"spending"`
	Assets              string `json:"assets"`
	Memo                string `json:"memo"`
}

// BackstoryFields 背景故事的字段名
var BackstoryFields = []string{
	"personalDescription", "traits", "ideology", "injuries", "people",
	"phobias", "locations", "possessions", "encounters", "gear",
	"cash", "spending", "assets", "memo",
}

// Character 调查员角色卡
type Character struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Owner       string `json:"owner"`
	PortraitURL string `json:"portraitUrl"`
	PlayerName  string `json:"player_name"`
	Age         int    `json:"age"`
	Sex         string `json:"sex"`
	Height      string `json:"height"`
	Family      string `json:"family"`

	Stats   CharacterStats  `json:"stats"`
	Vitals  CharacterVitals `json:"vitals"`
	Derived DerivedValues   `json:"derived"`

	Skills      map[string]int    `json:"skills"`
	Expressions map[string]string `json:"expressions"`

	Weapons   []Weapon  `json:"weapons"`
	Talents   []Talent  `json:"talents"`
	Backstory Backstory `json:"backstory"`

	MentalCondition string `json:"mentalCondition"`
}

// NewCharacterTemplate 创建新角色模板
func NewCharacterTemplate(name, owner, playerName string) *Character {
	if name == "" {
		name = DefaultCharacterName
	}
	return &Character{
		Name:       name,
		Owner:      owner,
		PlayerName: playerName,
		Age:        25,
		Family:     "0",
		Stats: CharacterStats{
			STR: 50, CON: 50, SIZ: 50, DEX: templateAttribute, APP: 50,
			INT: 50, POW: templateAttribute, EDU: templateAttribute, MOV: 8,
		},
		Vitals: CharacterVitals{
			HP: 10, MP: 10, SAN: templateAttribute, InitialSAN: templateAttribute, LUCK: 50,
		},
		Derived: DerivedValues{DamageBonus: "0", Build: 0},
		Skills: map[string]int{
			rules.SkillMythos:      0,
			rules.SkillDodge:       templateAttribute / 2,
			rules.SkillOwnLanguage: templateAttribute,
		},
		Expressions:     map[string]string{DefaultExpression: ""},
		Weapons:         []Weapon{},
		Talents:         []Talent{},
		MentalCondition: DefaultMentalCondition,
	}
}

// IsOwnedBy 所有者判断（身份字符串比较）
func (c *Character) IsOwnedBy(uid string) bool {
	return uid != "" && c.Owner == uid
}

// DerivedInputs 派生计算的输入
func (c *Character) DerivedInputs() rules.Inputs {
	return rules.Inputs{STR: c.Stats.STR, SIZ: c.Stats.SIZ, DEX: c.Stats.DEX, Age: c.Age}
}

// Ceilings 各项上限
func (c *Character) Ceilings() rules.Ceilings {
	return rules.ComputeCeilings(c.Stats.CON, c.Stats.SIZ, c.Stats.POW, c.Skills[rules.SkillMythos])
}

// SkillValue 技能实时值
func (c *Character) SkillValue(name string) int {
	return rules.ResolveSkill(c.Skills, name, c.Stats.DEX, c.Stats.EDU)
}

// LiveSkills 全部技能实时值
func (c *Character) LiveSkills() map[string]int {
	return rules.LiveSkills(c.Skills, c.Stats.DEX, c.Stats.EDU)
}

// Normalize 补全缺失的集合字段，避免写出 null
func (c *Character) Normalize() {
	if c.Skills == nil {
		c.Skills = map[string]int{}
	}
	if c.Expressions == nil {
		c.Expressions = map[string]string{}
	}
	if c.Weapons == nil {
		c.Weapons = []Weapon{}
	}
	if c.Talents == nil {
		c.Talents = []Talent{}
	}
}
