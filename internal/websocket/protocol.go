package websocket

import (
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/wfunc/obscura/internal/errors"
	"github.com/wfunc/obscura/internal/game"
)

// 消息类型
const (
	// 系统消息
	MessageTypeConnected = "connected"
	MessageTypePresence  = "presence"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
	MessageTypeAck       = "ack"
	MessageTypeError     = "error"
	MessageTypeSnapshot  = "snapshot"

	// 订阅
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"

	// 跑团桌操作
	MessageTypeAct   = "act"
	MessageTypeChat  = "chat"
	MessageTypeOOC   = "ooc"
	MessageTypeDice  = "dice"
	MessageTypeRoll  = "roll"
	MessageTypePatch = "patch"
	MessageTypeImage = "image"
)

// 订阅主题
const (
	TopicScene      = "scene"
	TopicCharacters = "characters"
	TopicChat       = "chat"
)

// Message WebSocket消息
type Message struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"` // 请求ID，应答原样带回
	SessionID string          `json:"sessionId,omitempty"`
	Topic     string          `json:"topic,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// NewMessage 构造消息
func NewMessage(msgType string, data interface{}) (*Message, error) {
	msg := &Message{Type: msgType, Timestamp: time.Now().UnixMilli()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrMessageFormat)
		}
		msg.Data = raw
	}
	return msg, nil
}

// Decode 解析消息数据
func (m *Message) Decode(v interface{}) error {
	if len(m.Data) == 0 {
		return errors.New(errors.ErrMessageFormat, "缺少 data")
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return errors.Wrap(err, errors.ErrMessageFormat, m.Type)
	}
	return nil
}

// ConnectedPayload 连接成功
type ConnectedPayload struct {
	ClientID  string     `json:"clientId"`
	SessionID string     `json:"sessionId"`
	Actor     game.Actor `json:"actor"`
}

// PresencePayload 在线人数
type PresencePayload struct {
	SessionID string `json:"sessionId"`
	Online    int    `json:"online"`
}

// ErrorPayload 错误应答
type ErrorPayload struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Details string           `json:"details,omitempty"`
}

// TextPayload chat / ooc / image
type TextPayload struct {
	Text string `json:"text"`
}

// DicePayload 自由骰
type DicePayload struct {
	Expression string `json:"expression"`
	OOC        bool   `json:"ooc"`
}

// RollPayload 技能检定，Bonus 为 true 时使用奖惩骰
type RollPayload struct {
	game.RollRequest
	Bonus bool `json:"bonus"`
}

// PatchPayload 角色字段修改
type PatchPayload struct {
	CharacterID string                 `json:"characterId"`
	Fields      map[string]interface{} `json:"fields"`
}

// ActPayload 切换扮演角色，空值表示旁白
type ActPayload struct {
	CharacterID string `json:"characterId"`
}

// newErrorPayload 错误转为应答内容
func newErrorPayload(err error) ErrorPayload {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.Wrap(err, errors.ErrUnknown)
	}
	return ErrorPayload{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}
}
