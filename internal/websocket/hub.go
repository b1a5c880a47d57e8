package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wfunc/obscura/internal/config"
	"github.com/wfunc/obscura/internal/errors"
	"github.com/wfunc/obscura/internal/game"
	"github.com/wfunc/obscura/internal/logger"
)

// MessageHandler 客户端消息处理器
type MessageHandler interface {
	HandleClientMessage(c *Client, data []byte)
	OnDisconnect(c *Client)
}

// HubOptions 连接参数
type HubOptions struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration // 必须小于 PongWait
	MaxMessageSize int64
	SendBuffer     int
	AllowedOrigins []string
	ReadBuffer     int
	WriteBuffer    int
	Compression    bool
}

// DefaultHubOptions 默认连接参数
func DefaultHubOptions() HubOptions {
	return HubOptions{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 512 * 1024,
		SendBuffer:     256,
		ReadBuffer:     1024,
		WriteBuffer:    1024,
	}
}

// HubOptionsFromConfig 从配置构造连接参数
func HubOptionsFromConfig(cfg *config.WebSocketConfig) HubOptions {
	opts := DefaultHubOptions()
	if cfg == nil {
		return opts
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteWait = cfg.WriteTimeout
	}
	if cfg.PongTimeout > 0 {
		opts.PongWait = cfg.PongTimeout
		opts.PingPeriod = cfg.PongTimeout * 9 / 10
	}
	if cfg.PingInterval > 0 && cfg.PingInterval < opts.PongWait {
		opts.PingPeriod = cfg.PingInterval
	}
	if cfg.MaxMessageSize > 0 {
		opts.MaxMessageSize = cfg.MaxMessageSize
	}
	if cfg.ReadBufferSize > 0 {
		opts.ReadBuffer = cfg.ReadBufferSize
	}
	if cfg.WriteBufferSize > 0 {
		opts.WriteBuffer = cfg.WriteBufferSize
	}
	opts.AllowedOrigins = cfg.AllowedOrigins
	opts.Compression = cfg.EnableCompression
	return opts
}

// Hub WebSocket连接管理中心
type Hub struct {
	// 客户端连接池
	clients map[string]*Client
	// 会话ID到客户端的映射
	sessions map[string]map[string]*Client
	mu       sync.RWMutex

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	handler  MessageHandler
	opts     HubOptions
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub 创建Hub
func NewHub(handler MessageHandler, opts HubOptions, log *zap.Logger) *Hub {
	if log == nil {
		log = logger.WithModule(logger.ModuleWebSocket)
	}
	h := &Hub{
		clients:    make(map[string]*Client),
		sessions:   make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		handler:    handler,
		opts:       opts,
		logger:     log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:    opts.ReadBuffer,
		WriteBufferSize:   opts.WriteBuffer,
		EnableCompression: opts.Compression,
		CheckOrigin:       h.checkOrigin,
	}
	return h
}

// checkOrigin 未配置白名单时允许所有来源
func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Run 运行Hub，ctx 取消后关闭所有连接
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ctx.Done():
			return

		case <-h.done:
			return
		}
	}
}

// Stop 停止Hub
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) shutdown() {
	h.Stop()

	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*Client)
	h.sessions = make(map[string]map[string]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		h.release(c)
	}
	h.logger.Info("WebSocket Hub已停止", zap.Int("clients", len(clients)))
}

// Serve 升级连接并启动读写循环
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sessionID string, actor game.Actor) (*Client, error) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrWebSocketSend, "升级连接失败")
	}

	client := NewClient(h, conn, sessionID, actor)
	if err := h.Register(client); err != nil {
		conn.Close()
		return nil, err
	}

	go client.WritePump()
	go client.ReadPump()
	return client, nil
}

// Register 注册客户端
func (h *Hub) Register(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return errors.New(errors.ErrWebSocketClosed)
	}
}

// Unregister 注销客户端，可重复调用
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// registerClient 注册客户端
func (h *Hub) registerClient(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	if h.sessions[c.SessionID] == nil {
		h.sessions[c.SessionID] = make(map[string]*Client)
	}
	h.sessions[c.SessionID][c.ID] = c
	h.mu.Unlock()

	h.logger.Info("WebSocket客户端连接",
		zap.String("client_id", c.ID),
		zap.String("session_id", c.SessionID),
		zap.String("uid", c.Actor().UID))

	if err := c.SendMessage(MessageTypeConnected, ConnectedPayload{
		ClientID:  c.ID,
		SessionID: c.SessionID,
		Actor:     c.Actor(),
	}); err != nil {
		h.logger.Warn("发送连接消息失败", zap.String("client_id", c.ID), zap.Error(err))
	}
	h.broadcastPresence(c.SessionID)
}

// unregisterClient 注销客户端
func (h *Hub) unregisterClient(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.ID]
	if ok {
		delete(h.clients, c.ID)
		if set := h.sessions[c.SessionID]; set != nil {
			delete(set, c.ID)
			if len(set) == 0 {
				delete(h.sessions, c.SessionID)
			}
		}
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	h.release(c)
	h.logger.Info("WebSocket客户端断开",
		zap.String("client_id", c.ID),
		zap.String("session_id", c.SessionID))
	h.broadcastPresence(c.SessionID)
}

// release 关闭发送通道并取消订阅
func (h *Hub) release(c *Client) {
	if h.handler != nil {
		h.handler.OnDisconnect(c)
	}
	c.closeSend()
	c.cancelAll()
}

func (h *Hub) broadcastPresence(sessionID string) {
	msg, err := NewMessage(MessageTypePresence, PresencePayload{
		SessionID: sessionID,
		Online:    h.SessionClientCount(sessionID),
	})
	if err != nil {
		return
	}
	msg.SessionID = sessionID
	h.BroadcastToSession(sessionID, msg)
}

// BroadcastToSession 向会话内所有客户端广播
func (h *Hub) BroadcastToSession(sessionID string, message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("序列化消息失败", zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.sessions[sessionID]))
	for _, c := range h.sessions[sessionID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.enqueue(data); err != nil {
			h.logger.Warn("客户端发送缓冲区满", zap.String("client_id", c.ID))
		}
	}
}

// SendToClient 发送消息给指定客户端
func (h *Hub) SendToClient(clientID string, message *Message) error {
	h.mu.RLock()
	c, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return errors.New(errors.ErrNotFound, "客户端未找到")
	}
	return c.sendMessage(message)
}

// ClientCount 在线连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SessionClientCount 会话内在线连接数
func (h *Hub) SessionClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}
