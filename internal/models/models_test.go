package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/wfunc/obscura/internal/dice"
	"github.com/wfunc/obscura/internal/errors"
	"github.com/wfunc/obscura/internal/rules"
)

func TestNewCharacterTemplate(t *testing.T) {
	c := NewCharacterTemplate("", "uid-1", "민수")

	assert.Equal(t, DefaultCharacterName, c.Name)
	assert.Equal(t, "uid-1", c.Owner)
	assert.Equal(t, "민수", c.PlayerName)
	assert.Equal(t, 25, c.Age)
	assert.Equal(t, "0", c.Family)
	assert.Equal(t, 8, c.Stats.MOV)
	assert.Equal(t, 50, c.Vitals.InitialSAN)
	assert.False(t, c.Vitals.PulpHP)
	assert.Equal(t, DerivedValues{DamageBonus: "0", Build: 0}, c.Derived)
	assert.Equal(t, map[string]int{"크툴루 신화": 0, "회피": 25, "모국어": 50}, c.Skills)
	assert.Equal(t, map[string]string{"기본": ""}, c.Expressions)
	assert.Equal(t, DefaultMentalCondition, c.MentalCondition)

	// 模板本身与派生计算一致
	d := rules.Calculate(c.DerivedInputs())
	assert.Equal(t, c.Derived.DamageBonus, d.DamageBonus)
	assert.Equal(t, c.Derived.Build, d.Build)
	assert.Equal(t, c.Stats.MOV, d.Movement)
}

func TestCharacterJSONShape(t *testing.T) {
	raw, err := json.Marshal(NewCharacterTemplate("하나", "uid-1", "p"))
	require.NoError(t, err)

	body := gjson.ParseBytes(raw)
	assert.Equal(t, "하나", body.Get("name").String())
	assert.Equal(t, "p", body.Get("player_name").String())
	assert.Equal(t, int64(50), body.Get("stats.STR").Int())
	assert.Equal(t, int64(50), body.Get("vitals.initialSAN").Int())
	assert.Equal(t, "0", body.Get("derived.damage_bonus").String())
	assert.True(t, body.Get("weapons").IsArray())
	assert.Len(t, body.Get("backstory").Map(), len(BackstoryFields))
	assert.False(t, body.Get("id").Exists())
}

func TestCharacterCeilingsAndSkills(t *testing.T) {
	c := NewCharacterTemplate("", "uid-1", "")
	c.Stats.CON = 65
	c.Stats.SIZ = 70
	c.Stats.POW = 60
	c.Skills[rules.SkillMythos] = 4

	assert.Equal(t, rules.Ceilings{MaxHP: 13, MaxMP: 12, MaxSAN: 95, MajorWoundThreshold: 6}, c.Ceilings())
	assert.Equal(t, 25, c.SkillValue("관찰력"))
	assert.Equal(t, 25, c.SkillValue(rules.SkillDodge))
	assert.True(t, c.IsOwnedBy("uid-1"))
	assert.False(t, c.IsOwnedBy(""))
}

func TestNewScene(t *testing.T) {
	raw, err := json.Marshal(NewScene())
	require.NoError(t, err)
	assert.JSONEq(t, `{"mapUrl":"","maps":[],"bgmUrl":"","bgms":[],"activeHandout":null,"handouts":[]}`, string(raw))

	s := Session{KeeperID: "k"}
	assert.True(t, s.IsKeeper("k"))
	assert.False(t, s.IsKeeper(""))
}

func TestSkillMessage(t *testing.T) {
	msg := NewSkillMessage("하나", "관찰력", rules.ResolveCheck(60, 12))
	require.NoError(t, msg.Validate())

	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	body := gjson.ParseBytes(raw)
	assert.Equal(t, "skill", body.Get("type").String())
	assert.Equal(t, int64(60), body.Get("skillValue").Int())
	assert.Equal(t, int64(30), body.Get("hardValue").Int())
	assert.Equal(t, int64(12), body.Get("extremeValue").Int())
	assert.Equal(t, "success-extreme", body.Get("resultClass").String())
	assert.Equal(t, "극단적 성공", body.Get("resultText").String())
}

func TestSkillMessageKeepsZeroValue(t *testing.T) {
	msg := NewSkillMessage("하나", "크툴루 신화", rules.ResolveCheck(0, 1))
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.True(t, gjson.GetBytes(raw, "skillValue").Exists())
	assert.Equal(t, "success-critical", gjson.GetBytes(raw, "resultClass").String())
}

func TestBonusPenaltyMessage(t *testing.T) {
	msg := NewBonusPenaltyMessage("하나", "듣기", rules.ResolveBonusPenalty(50, [3]int{40, 12, 97}))
	require.NoError(t, msg.Validate())

	assert.Equal(t, []int{40, 12, 97}, msg.AllRolls)
	assert.Equal(t, ChatResult{Roll: 12, Text: "어려운 성공", Class: "success"}, msg.Results["p1"])
	assert.Equal(t, ChatResult{Roll: 97, Text: "대실패", Class: "fumble"}, msg.Results["n2"])
}

func TestDiceMessage(t *testing.T) {
	expr, err := dice.ParseExpression("2d6", dice.DefaultLimits)
	require.NoError(t, err)
	res := expr.Roll(dice.NewSequenceSource(3, 4))

	msg := NewDiceMessage("하나", res, false)
	assert.Equal(t, ChatDice, msg.Type)
	assert.Equal(t, "2d6 굴림: 7 (3, 4)", msg.Text)
	assert.Equal(t, ChatOOCDice, NewDiceMessage("익명", res, true).Type)
}

func TestImageMessage(t *testing.T) {
	msg := NewImageMessage("data:image/png;base64,AAA")
	assert.True(t, msg.IsImage())
	assert.Equal(t, "data:image/png;base64,AAA", msg.ImageData())
	assert.False(t, NewNarration("문이 열린다").IsImage())
}

func TestVNLineNullableFields(t *testing.T) {
	raw, err := json.Marshal(NewVNLine("나레이션", "비가 온다", nil, nil))
	require.NoError(t, err)
	assert.False(t, gjson.GetBytes(raw, "characterId").Exists())

	id, portrait := "c1", "http://img"
	raw, err = json.Marshal(NewVNLine("하나", "안녕", &id, &portrait))
	require.NoError(t, err)
	assert.Equal(t, "c1", gjson.GetBytes(raw, "characterId").String())
}

func TestChatMessageValidate(t *testing.T) {
	tests := []struct {
		name string
		msg  *ChatMessage
		ok   bool
	}{
		{"narration", NewNarration("문이 열린다"), true},
		{"markup", NewMarkup("<b>!</b>"), true},
		{"ooc", NewOOCChat("익명", "ㅋㅋ"), true},
		{"ic", NewICLine("하나", "..."), true},
		{"empty text", NewNarration("  "), false},
		{"unknown kind", &ChatMessage{Type: "shout", Text: "x"}, false},
		{"skill without roll", &ChatMessage{Type: ChatSkill, SkillName: "듣기"}, false},
		{"bonus without results", &ChatMessage{Type: ChatBonusSkill, SkillName: "듣기", SkillValue: intPtr(1), AllRolls: []int{1, 2, 3}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, errors.ErrInvalidChatMessage))
		})
	}
}

func TestRawJSON(t *testing.T) {
	var j RawJSON
	require.NoError(t, j.Scan([]byte(`{"a":1}`)))
	assert.Equal(t, `{"a":1}`, string(j))

	v, err := j.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, v)

	require.NoError(t, j.Scan(nil))
	assert.Equal(t, "null", string(j))
	assert.Error(t, j.Scan(42))
}
