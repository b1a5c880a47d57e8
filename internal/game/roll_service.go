package game

import (
	"context"
	"strings"

	"github.com/wfunc/obscura/internal/dice"
	"github.com/wfunc/obscura/internal/errors"
	"github.com/wfunc/obscura/internal/logger"
	"github.com/wfunc/obscura/internal/models"
	"github.com/wfunc/obscura/internal/rules"
	"go.uber.org/zap"
)

// RollRequest 技能检定请求
//
// Value 为空时使用角色的技能实时值；属性检定（如 STR、LUCK）由调用方直接传值。
type RollRequest struct {
	CharacterID string `json:"characterId"`
	SkillName   string `json:"skillName"`
	Value       *int   `json:"value,omitempty"`
}

// RollService 技能检定与奖励/惩罚骰
type RollService struct {
	chat       *ChatService
	characters *CharacterService
	source     dice.Source
	opts       Options
	log        *zap.Logger
}

// NewRollService 创建检定服务
func NewRollService(chat *ChatService, characters *CharacterService, src dice.Source, opts Options, log *zap.Logger) *RollService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RollService{chat: chat, characters: characters, source: src, opts: opts, log: log}
}

// resolve 检定所需的发送者与技能值
func (s *RollService) resolve(ctx context.Context, actor Actor, sessionID string, req RollRequest) (string, int, error) {
	if strings.TrimSpace(req.SkillName) == "" {
		return "", 0, errors.New(errors.ErrInvalidSkill, "技能名为空")
	}

	if req.CharacterID == "" {
		if req.Value == nil {
			return "", 0, errors.New(errors.ErrInvalidSkill, "未指定角色时必须给出技能值")
		}
		return actor.NameOr(s.opts.AnonymousNickname), *req.Value, nil
	}

	ch, err := s.characters.Get(ctx, sessionID, req.CharacterID)
	if err != nil {
		return "", 0, err
	}
	if req.Value != nil {
		return ch.Name, *req.Value, nil
	}
	return ch.Name, ch.SkillValue(req.SkillName), nil
}

// SkillCheck 普通检定并写入聊天
func (s *RollService) SkillCheck(ctx context.Context, actor Actor, sessionID string, req RollRequest) (*models.ChatMessage, error) {
	sender, value, err := s.resolve(ctx, actor, sessionID, req)
	if err != nil {
		return nil, err
	}

	check := rules.RollCheck(s.source, value)
	msg, err := s.chat.Post(ctx, sessionID, models.NewSkillMessage(sender, req.SkillName, check))
	if err != nil {
		return nil, err
	}

	logger.LogRollEvent(s.log, NormalizeSessionID(sessionID), string(models.ChatSkill), map[string]interface{}{
		"sender": sender,
		"skill":  req.SkillName,
		"value":  value,
		"roll":   check.Roll,
		"tier":   string(check.Tier),
	})
	return msg, nil
}

// BonusPenalty 奖励/惩罚骰检定并写入聊天
func (s *RollService) BonusPenalty(ctx context.Context, actor Actor, sessionID string, req RollRequest) (*models.ChatMessage, error) {
	sender, value, err := s.resolve(ctx, actor, sessionID, req)
	if err != nil {
		return nil, err
	}

	bp := rules.RollBonusPenalty(s.source, value)
	msg, err := s.chat.Post(ctx, sessionID, models.NewBonusPenaltyMessage(sender, req.SkillName, bp))
	if err != nil {
		return nil, err
	}

	logger.LogRollEvent(s.log, NormalizeSessionID(sessionID), string(models.ChatBonusSkill), map[string]interface{}{
		"sender": sender,
		"skill":  req.SkillName,
		"value":  value,
		"draws":  bp.Draws,
	})
	return msg, nil
}
