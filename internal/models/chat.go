package models

import (
	"strings"

	"github.com/wfunc/obscura/internal/dice"
	"github.com/wfunc/obscura/internal/errors"
	"github.com/wfunc/obscura/internal/rules"
)

// ChatKind 聊天消息类型
type ChatKind string

const (
	ChatHTML       ChatKind = "html"
	ChatDesc       ChatKind = "desc"
	ChatDice       ChatKind = "dice"
	ChatOOCDice    ChatKind = "ooc-dice"
	ChatOOCChat    ChatKind = "ooc-chat"
	ChatVN         ChatKind = "vn-chat"
	ChatIC         ChatKind = "ic-chat"
	ChatSkill      ChatKind = "skill"
	ChatBonusSkill ChatKind = "bns_pnl_skill"
)

const imageDescPrefix = "/img "

// ChatKinds 全部消息类型
var ChatKinds = []ChatKind{
	ChatHTML, ChatDesc, ChatDice, ChatOOCDice, ChatOOCChat,
	ChatVN, ChatIC, ChatSkill, ChatBonusSkill,
}

// Valid 是否为已知类型
func (k ChatKind) Valid() bool {
	for _, known := range ChatKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ChatResult 奖励/惩罚骰单个等级的展示结果
type ChatResult struct {
	Roll  int    `json:"roll"`
	Text  string `json:"text"`
	Class string `json:"class"`
}

// ChatMessage 聊天日志中的一条消息
//
// 按 Type 区分九种形态，未用到的字段省略。ID 与 Timestamp 由存储分配。
type ChatMessage struct {
	ID        string   `json:"id,omitempty"`
	Type      ChatKind `json:"type"`
	Timestamp int64    `json:"timestamp,omitempty"`
	Sender    string   `json:"sender,omitempty"`
	Text      string   `json:"text,omitempty"`

	CharacterID *string `json:"characterId,omitempty"`
	PortraitURL *string `json:"portraitUrl,omitempty"`

	SkillName    string `json:"skillName,omitempty"`
	SkillValue   *int   `json:"skillValue,omitempty"`
	HardValue    *int   `json:"hardValue,omitempty"`
	ExtremeValue *int   `json:"extremeValue,omitempty"`
	Roll         *int   `json:"roll,omitempty"`
	ResultText   string `json:"resultText,omitempty"`
	ResultClass  string `json:"resultClass,omitempty"`

	AllRolls []int                 `json:"allRolls,omitempty"`
	Results  map[string]ChatResult `json:"results,omitempty"`
}

func intPtr(v int) *int { return &v }

// NewNarration 旁白（desc）
func NewNarration(text string) *ChatMessage {
	return &ChatMessage{Type: ChatDesc, Text: text}
}

// NewImageMessage 图片消息，以 desc 形式保存
func NewImageMessage(data string) *ChatMessage {
	return &ChatMessage{Type: ChatDesc, Text: imageDescPrefix + data}
}

// NewMarkup 原样展示的HTML消息
func NewMarkup(markup string) *ChatMessage {
	return &ChatMessage{Type: ChatHTML, Text: markup}
}

// NewDiceMessage 掷骰结果
func NewDiceMessage(sender string, result dice.Result, ooc bool) *ChatMessage {
	kind := ChatDice
	if ooc {
		kind = ChatOOCDice
	}
	return &ChatMessage{Type: kind, Sender: sender, Text: result.Text()}
}

// NewOOCChat 场外聊天
func NewOOCChat(sender, text string) *ChatMessage {
	return &ChatMessage{Type: ChatOOCChat, Sender: sender, Text: text}
}

// NewVNLine 带立绘的角色台词
func NewVNLine(sender, text string, characterID, portraitURL *string) *ChatMessage {
	return &ChatMessage{
		Type:        ChatVN,
		Sender:      sender,
		Text:        text,
		CharacterID: characterID,
		PortraitURL: portraitURL,
	}
}

// NewICLine 旧式角色台词
func NewICLine(sender, text string) *ChatMessage {
	return &ChatMessage{Type: ChatIC, Sender: sender, Text: text}
}

// NewSkillMessage 普通检定结果
func NewSkillMessage(sender, skillName string, check rules.Check) *ChatMessage {
	return &ChatMessage{
		Type:         ChatSkill,
		Sender:       sender,
		SkillName:    skillName,
		SkillValue:   intPtr(check.SkillValue),
		HardValue:    intPtr(check.HardValue),
		ExtremeValue: intPtr(check.ExtremeValue),
		Roll:         intPtr(check.Roll),
		ResultText:   check.Text(),
		ResultClass:  check.Class(),
	}
}

// NewBonusPenaltyMessage 奖励/惩罚骰检定结果
func NewBonusPenaltyMessage(sender, skillName string, bp rules.BonusPenalty) *ChatMessage {
	results := make(map[string]ChatResult, len(bp.Outcomes))
	for key, o := range bp.Results() {
		results[key] = ChatResult{Roll: o.Roll, Text: o.Text, Class: o.Class}
	}
	return &ChatMessage{
		Type:         ChatBonusSkill,
		Sender:       sender,
		SkillName:    skillName,
		SkillValue:   intPtr(bp.SkillValue),
		HardValue:    intPtr(bp.HardValue),
		ExtremeValue: intPtr(bp.ExtremeValue),
		AllRolls:     []int{bp.Draws[0], bp.Draws[1], bp.Draws[2]},
		Results:      results,
	}
}

// IsImage 是否为图片消息
func (m *ChatMessage) IsImage() bool {
	return m.Type == ChatDesc && strings.HasPrefix(m.Text, imageDescPrefix)
}

// ImageData 图片数据（data URL 或链接）
func (m *ChatMessage) ImageData() string {
	if !m.IsImage() {
		return ""
	}
	return strings.TrimPrefix(m.Text, imageDescPrefix)
}

// Validate 写入前校验消息形态
func (m *ChatMessage) Validate() error {
	if !m.Type.Valid() {
		return errors.Newf(errors.ErrInvalidChatMessage, "未知的消息类型: %q", m.Type)
	}

	switch m.Type {
	case ChatSkill:
		if m.SkillName == "" || m.SkillValue == nil || m.Roll == nil || m.ResultClass == "" {
			return errors.New(errors.ErrInvalidChatMessage, "检定消息缺少必要字段")
		}
	case ChatBonusSkill:
		if m.SkillName == "" || m.SkillValue == nil || len(m.AllRolls) != 3 {
			return errors.New(errors.ErrInvalidChatMessage, "奖励/惩罚骰消息需要三次骰值")
		}
		for _, l := range rules.Levels {
			if _, ok := m.Results[l.Key()]; !ok {
				return errors.Newf(errors.ErrInvalidChatMessage, "缺少等级结果: %s", l.Key())
			}
		}
	default:
		if strings.TrimSpace(m.Text) == "" {
			return errors.New(errors.ErrInvalidChatMessage, "消息内容为空")
		}
	}
	return nil
}
