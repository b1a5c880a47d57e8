package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wfunc/obscura/internal/errors"
	"github.com/wfunc/obscura/internal/game"
	"github.com/wfunc/obscura/internal/logger"
	"github.com/wfunc/obscura/internal/store"
)

// Client WebSocket客户端
type Client struct {
	ID        string          // 客户端ID
	SessionID string          // 所在会话
	Hub       *Hub            // Hub引用
	Conn      *websocket.Conn // WebSocket连接
	Send      chan []byte     // 发送通道

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	actor  game.Actor
	subs   map[string]store.Unsubscribe
	closed bool
}

// NewClient 创建新客户端
func NewClient(hub *Hub, conn *websocket.Conn, sessionID string, actor game.Actor) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Hub:       hub,
		Conn:      conn,
		Send:      make(chan []byte, hub.opts.SendBuffer),
		ctx:       ctx,
		cancel:    cancel,
		actor:     actor,
		subs:      make(map[string]store.Unsubscribe),
	}
}

// Context 连接生命周期内有效
func (c *Client) Context() context.Context {
	return c.ctx
}

// Actor 当前身份
func (c *Client) Actor() game.Actor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.actor
}

// SetActingCharacter 切换扮演角色
func (c *Client) SetActingCharacter(characterID string) {
	c.mu.Lock()
	c.actor = c.actor.WithActingCharacter(characterID)
	c.mu.Unlock()
}

// ReadPump 读取消息
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	opts := c.Hub.opts
	c.Conn.SetReadLimit(opts.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(opts.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.Hub.logger.Error("WebSocket读取错误",
					zap.String("client_id", c.ID),
					zap.Error(err))
			}
			return
		}

		if c.Hub.handler != nil {
			c.Hub.handler.HandleClientMessage(c, message)
		}
	}
}

// WritePump 写入消息，每条消息一帧
func (c *Client) WritePump() {
	opts := c.Hub.opts
	ticker := time.NewTicker(opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if !ok {
				// Hub关闭了通道
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.logger.Debug("WebSocket写入失败", zap.String("client_id", c.ID), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue 放入发送队列，不阻塞
func (c *Client) enqueue(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New(errors.ErrWebSocketClosed, c.ID)
	}
	select {
	case c.Send <- data:
		return nil
	default:
		return errors.New(errors.ErrWebSocketSend, "发送缓冲区已满")
	}
}

func (c *Client) sendMessage(msg *Message) error {
	if msg.SessionID == "" {
		msg.SessionID = c.SessionID
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, errors.ErrMessageFormat)
	}
	logger.LogWebSocketMessage(c.Hub.logger, "send", msg.Type, msg.Topic)
	return c.enqueue(data)
}

// SendMessage 发送消息给客户端
func (c *Client) SendMessage(msgType string, data interface{}) error {
	msg, err := NewMessage(msgType, data)
	if err != nil {
		return err
	}
	return c.sendMessage(msg)
}

// reply 应答请求，带回请求ID
func (c *Client) reply(req *Message, msgType string, data interface{}) error {
	msg, err := NewMessage(msgType, data)
	if err != nil {
		return err
	}
	if req != nil {
		msg.ID = req.ID
		msg.Topic = req.Topic
	}
	return c.sendMessage(msg)
}

// sendError 发送错误消息
func (c *Client) sendError(req *Message, err error) {
	if sendErr := c.reply(req, MessageTypeError, newErrorPayload(err)); sendErr != nil {
		c.Hub.logger.Warn("发送错误消息失败", zap.String("client_id", c.ID), zap.Error(sendErr))
	}
}

// pushSnapshot 推送订阅快照
func (c *Client) pushSnapshot(topic string, data interface{}) {
	msg, err := NewMessage(MessageTypeSnapshot, data)
	if err != nil {
		c.Hub.logger.Error("序列化快照失败", zap.String("topic", topic), zap.Error(err))
		return
	}
	msg.Topic = topic
	if err := c.sendMessage(msg); err != nil && !errors.Is(err, errors.ErrWebSocketClosed) {
		c.Hub.logger.Warn("推送快照失败",
			zap.String("client_id", c.ID),
			zap.String("topic", topic),
			zap.Error(err))
	}
}

// setSubscription 记录订阅，替换同主题的旧订阅
func (c *Client) setSubscription(topic string, unsub store.Unsubscribe) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		unsub()
		return
	}
	old := c.subs[topic]
	c.subs[topic] = unsub
	c.mu.Unlock()

	if old != nil {
		old()
	}
}

// cancelSubscription 取消订阅，返回是否存在
func (c *Client) cancelSubscription(topic string) bool {
	c.mu.Lock()
	unsub, ok := c.subs[topic]
	delete(c.subs, topic)
	c.mu.Unlock()

	if ok {
		unsub()
	}
	return ok
}

// Subscriptions 当前订阅的主题
func (c *Client) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	topics := make([]string, 0, len(c.subs))
	for topic := range c.subs {
		topics = append(topics, topic)
	}
	return topics
}

func (c *Client) cancelAll() {
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[string]store.Unsubscribe)
	c.mu.Unlock()

	for _, unsub := range subs {
		unsub()
	}
	c.cancel()
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// Close 关闭客户端连接
func (c *Client) Close() {
	c.Hub.Unregister(c)
}
