package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wfunc/obscura/internal/errors"
	"github.com/wfunc/obscura/internal/game"
	"github.com/wfunc/obscura/internal/logger"
	"github.com/wfunc/obscura/internal/models"
	"github.com/wfunc/obscura/internal/store"
)

// DefaultCommandTimeout 单条指令的处理超时
const DefaultCommandTimeout = 5 * time.Second

// TableHandler 跑团桌指令处理器
type TableHandler struct {
	services *game.Services
	timeout  time.Duration
	logger   *zap.Logger
}

// NewTableHandler 创建跑团桌指令处理器
func NewTableHandler(services *game.Services, timeout time.Duration, log *zap.Logger) *TableHandler {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	if log == nil {
		log = logger.WithModule(logger.ModuleWebSocket)
	}
	return &TableHandler{services: services, timeout: timeout, logger: log}
}

// HandleClientMessage 处理一条客户端指令并应答
func (h *TableHandler) HandleClientMessage(c *Client, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Warn("解析WebSocket消息失败", zap.String("client_id", c.ID), zap.Error(err))
		c.sendError(nil, errors.Wrap(err, errors.ErrMessageFormat))
		return
	}
	logger.LogWebSocketMessage(h.logger, "receive", msg.Type, msg.Topic)

	if msg.Type == MessageTypePing {
		if err := c.reply(&msg, MessageTypePong, nil); err != nil {
			h.logger.Debug("发送pong失败", zap.String("client_id", c.ID), zap.Error(err))
		}
		return
	}

	ctx, cancel := context.WithTimeout(c.Context(), h.timeout)
	defer cancel()

	result, err := h.dispatch(ctx, c, &msg)
	if err != nil {
		c.sendError(&msg, err)
		return
	}
	if err := c.reply(&msg, MessageTypeAck, result); err != nil {
		h.logger.Warn("发送应答失败", zap.String("client_id", c.ID), zap.Error(err))
	}
}

// OnDisconnect 连接断开
func (h *TableHandler) OnDisconnect(c *Client) {
	h.logger.Debug("释放客户端订阅",
		zap.String("client_id", c.ID),
		zap.Strings("topics", c.Subscriptions()))
}

func (h *TableHandler) dispatch(ctx context.Context, c *Client, msg *Message) (interface{}, error) {
	sid := c.SessionID

	switch msg.Type {
	case MessageTypeSubscribe:
		return h.subscribe(c, msg.Topic)

	case MessageTypeUnsubscribe:
		return map[string]interface{}{
			"topic":   msg.Topic,
			"removed": c.cancelSubscription(msg.Topic),
		}, nil

	case MessageTypeAct:
		var p ActPayload
		if err := msg.Decode(&p); err != nil {
			return nil, err
		}
		p.CharacterID = strings.TrimSpace(p.CharacterID)
		if p.CharacterID != "" {
			if _, err := h.services.Characters.Get(ctx, sid, p.CharacterID); err != nil {
				return nil, err
			}
		}
		c.SetActingCharacter(p.CharacterID)
		return c.Actor(), nil

	case MessageTypeChat, MessageTypeOOC, MessageTypeImage:
		var p TextPayload
		if err := msg.Decode(&p); err != nil {
			return nil, err
		}
		switch msg.Type {
		case MessageTypeOOC:
			return h.services.Chat.SendOOC(ctx, c.Actor(), sid, p.Text)
		case MessageTypeImage:
			return h.services.Chat.SendImage(ctx, sid, p.Text)
		}
		return h.services.Chat.Send(ctx, c.Actor(), sid, p.Text)

	case MessageTypeDice:
		var p DicePayload
		if err := msg.Decode(&p); err != nil {
			return nil, err
		}
		return h.services.Chat.RollDice(ctx, c.Actor(), sid, p.Expression, p.OOC)

	case MessageTypeRoll:
		var p RollPayload
		if err := msg.Decode(&p); err != nil {
			return nil, err
		}
		if p.Bonus {
			return h.services.Rolls.BonusPenalty(ctx, c.Actor(), sid, p.RollRequest)
		}
		return h.services.Rolls.SkillCheck(ctx, c.Actor(), sid, p.RollRequest)

	case MessageTypePatch:
		var p PatchPayload
		if err := msg.Decode(&p); err != nil {
			return nil, err
		}
		return h.services.Characters.Update(ctx, c.Actor(), sid, p.CharacterID, p.Fields)

	case "":
		return nil, errors.New(errors.ErrMessageFormat, "消息类型不能为空")
	}

	return nil, errors.Newf(errors.ErrMessageFormat, "不支持的消息类型: %s", msg.Type)
}

// subscribe 订阅主题，立即推送一次当前快照
func (h *TableHandler) subscribe(c *Client, topic string) (interface{}, error) {
	ctx := c.Context()
	sid := c.SessionID

	var (
		unsub store.Unsubscribe
		err   error
	)
	switch topic {
	case TopicScene:
		unsub, err = h.services.Sessions.SubscribeSession(ctx, sid, func(sess *models.Session) {
			c.pushSnapshot(TopicScene, sess)
		})
	case TopicCharacters:
		unsub, err = h.services.Characters.SubscribeCharacters(ctx, sid, func(chars []*models.Character) {
			c.pushSnapshot(TopicCharacters, chars)
		})
	case TopicChat:
		unsub, err = h.services.Chat.Subscribe(ctx, sid, func(msgs []*models.ChatMessage) {
			c.pushSnapshot(TopicChat, msgs)
		})
	default:
		return nil, errors.Newf(errors.ErrInvalidParam, "未知主题: %s", topic)
	}
	if err != nil {
		return nil, err
	}

	c.setSubscription(topic, unsub)
	return map[string]string{"topic": topic}, nil
}
